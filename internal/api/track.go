package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/httputil"
	"github.com/corvid-aero/groundstation/internal/track"
)

type lockRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleTrackLock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" {
		httputil.BadRequest(w, "missing person id")
		return
	}

	if err := s.tracker.Lock(req.ID); err != nil {
		if errors.Is(err, track.ErrNotFound) {
			s.events.Append(eventlog.ComponentTracking, eventlog.LevelWarning, "person %s not found", req.ID)
			httputil.NotFound(w, "person not found")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to lock: %v", err))
		return
	}

	s.events.Append(eventlog.ComponentTracking, eventlog.LevelSuccess, "locked onto person %s", req.ID)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status": fmt.Sprintf("locked onto person %s", req.ID),
		"lock":   s.tracker.Status(),
	})
}

func (s *Server) handleTrackUnlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	s.tracker.Unlock()
	s.events.Append(eventlog.ComponentTracking, eventlog.LevelInfo, "unlocked from person")
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status": "unlocked",
		"lock":   s.tracker.Status(),
	})
}

func (s *Server) handleTrackStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.tracker.Status())
}

type detectionsRequest struct {
	Detections []track.Detection `json:"detections"`
}

// detectionsResponse reports the lock after ingesting a frame. Adjustment is
// present only while the locked target is visible.
type detectionsResponse struct {
	Status     string            `json:"status"`
	Lock       track.LockStatus  `json:"lock"`
	Adjustment *track.Adjustment `json:"adjustment,omitempty"`
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req detectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}

	status := s.tracker.Update(req.Detections)

	resp := detectionsResponse{Status: "ok", Lock: status}
	if status.Locked && status.TargetVisible {
		adj := s.tracker.Adjustment(s.currentGains())
		resp.Adjustment = &adj
		if adj.IsZero() {
			resp.Status = "person already centered"
		} else {
			resp.Status = "adjustment calculated"
		}
	}
	httputil.WriteJSONOK(w, resp)
}
