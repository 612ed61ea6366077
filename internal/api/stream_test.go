package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/corvid-aero/groundstation/internal/stream"
)

var errFailedOpen = errors.New("camera offline")

func TestHandleStreamLifecycle(t *testing.T) {
	h := newTestHarness(t)

	w := postJSON(t, h.server, "/stream/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !h.supervisor.IsRunning() {
		t.Fatal("supervisor should be running after /stream/start")
	}
	if !h.source.IsOpen() {
		t.Error("frame source should be open after /stream/start")
	}

	var session stream.Session
	decodeBody(t, getPath(t, h.server, "/stream/health"), &session)
	if !session.Running {
		t.Error("health: running = false, want true")
	}
	if session.Health != stream.HealthOK {
		t.Errorf("health = %s, want ok", session.Health)
	}

	w = postJSON(t, h.server, "/stream/stop", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", w.Code)
	}
	if h.supervisor.IsRunning() {
		t.Error("supervisor should be stopped after /stream/stop")
	}

	decodeBody(t, getPath(t, h.server, "/stream/health"), &session)
	if session.Running {
		t.Error("health: running = true, want false after stop")
	}
}

func TestHandleStreamStartConflict(t *testing.T) {
	h := newTestHarness(t)

	if w := postJSON(t, h.server, "/stream/start", nil); w.Code != http.StatusOK {
		t.Fatalf("first start: expected 200, got %d", w.Code)
	}
	w := postJSON(t, h.server, "/stream/start", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second start: expected 409, got %d", w.Code)
	}
}

func TestHandleStreamStartOpenFailure(t *testing.T) {
	h := newTestHarness(t)
	h.source.OpenErr = errFailedOpen

	w := postJSON(t, h.server, "/stream/start", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if h.supervisor.IsRunning() {
		t.Error("supervisor must not be running after a failed open")
	}
}

func TestHandleStreamStopWhenStopped(t *testing.T) {
	h := newTestHarness(t)

	w := postJSON(t, h.server, "/stream/stop", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
