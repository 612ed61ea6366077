package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/corvid-aero/groundstation/internal/httputil"
	"github.com/corvid-aero/groundstation/internal/stream"
)

func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	// The session must outlive this request, so it is bound to the server's
	// base context rather than r.Context().
	if err := s.supervisor.Start(s.baseCtx); err != nil {
		if errors.Is(err, stream.ErrAlreadyRunning) {
			httputil.Conflict(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to start stream: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]string{"status": "stream started"})
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	s.supervisor.Stop()
	httputil.WriteJSONOK(w, map[string]string{"status": "stream stopped"})
}

func (s *Server) handleStreamHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.supervisor.Status())
}
