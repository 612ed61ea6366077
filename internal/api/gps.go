package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/httputil"
)

// positionUpdate accepts both long and short key forms; phone clients have
// shipped with each.
type positionUpdate struct {
	Latitude  *float64 `json:"latitude"`
	Lat       *float64 `json:"lat"`
	Longitude *float64 `json:"longitude"`
	Lon       *float64 `json:"lon"`
	Altitude  *float64 `json:"altitude"`
	Accuracy  *float64 `json:"accuracy"`
}

// coords resolves the two key forms, preferring the long one.
func (p positionUpdate) coords() (lat, lon *float64) {
	lat, lon = p.Latitude, p.Longitude
	if lat == nil {
		lat = p.Lat
	}
	if lon == nil {
		lon = p.Lon
	}
	return lat, lon
}

func (s *Server) handleGPSUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req positionUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	lat, lon := req.coords()
	if lat == nil || lon == nil {
		httputil.BadRequest(w, "missing latitude or longitude")
		return
	}

	if err := s.registry.Update(gps.SourcePhone, *lat, *lon, req.Altitude, req.Accuracy); err != nil {
		if errors.Is(err, gps.ErrInvalidCoordinates) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalServerError(w, "failed to store position")
		return
	}

	s.events.Append(eventlog.ComponentUser, eventlog.LevelInfo, "location received: %.6f, %.6f", *lat, *lon)
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGPSManual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req positionUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	lat, lon := req.coords()
	if lat == nil || lon == nil {
		httputil.BadRequest(w, "missing latitude or longitude")
		return
	}

	if err := s.registry.SetManual(*lat, *lon); err != nil {
		if errors.Is(err, gps.ErrInvalidCoordinates) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalServerError(w, "failed to store position")
		return
	}

	s.events.Append(eventlog.ComponentUser, eventlog.LevelInfo, "manual position set: %.6f, %.6f", *lat, *lon)
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// sourceStatus annotates a registry reading with its health and whether the
// arbitrator currently prefers it.
type sourceStatus struct {
	gps.Reading
	Health     gps.Health `json:"health"`
	AgeSeconds float64    `json:"age_seconds"`
	Active     bool       `json:"active"`
}

func (s *Server) handleGPSSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	active, activeHealth := s.arbitrator.Active()
	now := s.clock.Now()

	readings := s.registry.Snapshot()
	sources := make([]sourceStatus, len(readings))
	for i, reading := range readings {
		sources[i] = sourceStatus{
			Reading:    reading,
			Health:     s.arbitrator.HealthOf(reading),
			AgeSeconds: reading.Age(now).Seconds(),
			Active:     activeHealth != gps.HealthUnavailable && reading.Source == active.Source,
		}
	}

	resp := map[string]interface{}{"sources": sources}
	if activeHealth != gps.HealthUnavailable {
		resp["active"] = active.Source
	}
	httputil.WriteJSONOK(w, resp)
}
