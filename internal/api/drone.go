package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/corvid-aero/groundstation/internal/drone"
	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/follow"
	"github.com/corvid-aero/groundstation/internal/httputil"
)

// vehicleCommandTimeout bounds takeoff and land commands issued directly,
// outside a follow session.
const vehicleCommandTimeout = 15 * time.Second

type takeoffRequest struct {
	Altitude *float64 `json:"altitude"`
}

// handleDroneTakeoff is the bench takeoff: climb and hover, no session. A
// running follow session owns the vehicle, so direct commands are rejected.
func (s *Server) handleDroneTakeoff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.follow.Snapshot().Session != nil {
		httputil.Conflict(w, "follow session active")
		return
	}

	var req takeoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	altitude := drone.DefaultTakeoffAltitudeM
	if req.Altitude != nil {
		altitude = *req.Altitude
	}
	if altitude <= 0 || altitude > follow.MaxElevationM {
		httputil.BadRequest(w, fmt.Sprintf("altitude must be between 0 and %v meters", follow.MaxElevationM))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), vehicleCommandTimeout)
	defer cancel()
	if err := s.vehicle.Takeoff(ctx, altitude); err != nil {
		s.events.Append(eventlog.ComponentDrone, eventlog.LevelError, "takeoff failed: %v", err)
		httputil.InternalServerError(w, fmt.Sprintf("takeoff failed: %v", err))
		return
	}
	s.events.Append(eventlog.ComponentDrone, eventlog.LevelSuccess, "takeoff to %.1f m", altitude)

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":   "takeoff initiated",
		"altitude": altitude,
	})
}

// handleDroneLand lands in place. Follow sessions land through /follow/home.
func (s *Server) handleDroneLand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.follow.Snapshot().Session != nil {
		httputil.Conflict(w, "follow session active - use /follow/home")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), vehicleCommandTimeout)
	defer cancel()
	if err := s.vehicle.Land(ctx); err != nil {
		s.events.Append(eventlog.ComponentDrone, eventlog.LevelError, "land failed: %v", err)
		httputil.InternalServerError(w, fmt.Sprintf("land failed: %v", err))
		return
	}
	s.events.Append(eventlog.ComponentDrone, eventlog.LevelSuccess, "landing initiated")

	httputil.WriteJSONOK(w, map[string]string{
		"status": "landing initiated",
	})
}
