package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/corvid-aero/groundstation/internal/follow"
	"github.com/corvid-aero/groundstation/internal/httputil"
)

// Session defaults applied when a start request omits a parameter.
const (
	defaultElevationM = 20.0
	defaultDistanceM  = 10.0
)

type followStartRequest struct {
	Elevation *float64 `json:"elevation"`
	Distance  *float64 `json:"distance"`
}

func (s *Server) handleFollowStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req followStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}

	elevation := defaultElevationM
	if req.Elevation != nil {
		elevation = *req.Elevation
	}
	distance := defaultDistanceM
	if req.Distance != nil {
		distance = *req.Distance
	}

	err := s.follow.Start(elevation, distance)
	switch {
	case errors.Is(err, follow.ErrInvalidParameters):
		httputil.BadRequest(w, err.Error())
		return
	case errors.Is(err, follow.ErrAlreadyActive):
		httputil.Conflict(w, err.Error())
		return
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("failed to start follow mode: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":    "follow mode started",
		"elevation": elevation,
		"distance":  distance,
	})
}

func (s *Server) handleFollowStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	if err := s.follow.Stop(); err != nil {
		if errors.Is(err, follow.ErrNotActive) {
			httputil.Conflict(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to stop follow mode: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]string{
		"status": "follow mode stopped - hovering in place",
	})
}

func (s *Server) handleFollowHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	err := s.follow.Home(r.Context())
	switch {
	case errors.Is(err, follow.ErrNotActive):
		httputil.Conflict(w, err.Error())
		return
	case err != nil:
		// The machine is idle regardless; only the land command failed.
		httputil.InternalServerError(w, fmt.Sprintf("landing failed: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]string{
		"status": "landing initiated",
	})
}
