package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/gps"
)

func TestHandleLogs(t *testing.T) {
	h := newTestHarness(t)

	for i := 0; i < 60; i++ {
		h.events.Append(eventlog.ComponentSystem, eventlog.LevelInfo, "event %d", i)
	}

	w := getPath(t, h.server, "/logs")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Logs []eventlog.Event `json:"logs"`
	}
	decodeBody(t, w, &resp)

	if len(resp.Logs) != defaultLogLimit {
		t.Fatalf("Expected %d logs, got %d", defaultLogLimit, len(resp.Logs))
	}
	if resp.Logs[0].Message != "event 59" {
		t.Errorf("first log = %q, want newest first", resp.Logs[0].Message)
	}
}

func TestHandleLogsLimit(t *testing.T) {
	h := newTestHarness(t)

	for i := 0; i < 20; i++ {
		h.events.Append(eventlog.ComponentSystem, eventlog.LevelInfo, "event %d", i)
	}

	var resp struct {
		Logs []eventlog.Event `json:"logs"`
	}
	decodeBody(t, getPath(t, h.server, "/logs?limit=5"), &resp)
	if len(resp.Logs) != 5 {
		t.Errorf("Expected 5 logs, got %d", len(resp.Logs))
	}

	w := getPath(t, h.server, "/logs?limit=zero")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a bad limit, got %d", w.Code)
	}
}

func TestHandleLogsClear(t *testing.T) {
	h := newTestHarness(t)

	h.events.Append(eventlog.ComponentDrone, eventlog.LevelInfo, "some event")

	w := postJSON(t, h.server, "/logs/clear", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	// The clear itself is logged, so exactly one event remains.
	recent := h.events.Recent(0)
	if len(recent) != 1 {
		t.Fatalf("Expected 1 event after clear, got %d", len(recent))
	}
	if !strings.Contains(recent[0].Message, "logs cleared") {
		t.Errorf("remaining event = %q, want the clear notice", recent[0].Message)
	}
}

// TestHandleEventsSSE exercises the live feed: subscribe, receive an event,
// then disconnect.
func TestHandleEventsSSE(t *testing.T) {
	h := newTestHarness(t)

	ts := httptest.NewServer(h.server.ServeMux())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected text/event-stream, got %s", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	if scanner.Scan() {
		if line := scanner.Text(); !strings.HasPrefix(line, ": ping") {
			t.Errorf("expected initial ping, got %q", line)
		}
	}

	h.events.Append(eventlog.ComponentFollow, eventlog.LevelSuccess, "hello-sse")

	gotData := false
	for i := 0; i < 5 && scanner.Scan(); i++ {
		if strings.Contains(scanner.Text(), "hello-sse") {
			gotData = true
			break
		}
	}
	if !gotData {
		t.Error("did not receive SSE data event")
	}

	cancel()
}

func TestHandleGPSChart(t *testing.T) {
	h := newTestHarness(t)

	w := getPath(t, h.server, "/charts/gps")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404 without samples, got %d", w.Code)
	}

	base := h.clock.Now()
	for i := 0; i < 10; i++ {
		h.quality.AddSample(gps.QualitySample{
			Satellites: 8 + i%3,
			HDOP:       1.0 + float64(i)*0.1,
			FixQuality: 1,
			At:         base.Add(time.Duration(i) * time.Second),
		})
	}

	w = getPath(t, h.server, "/charts/gps")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(w.Body.String(), "echarts") {
		t.Error("expected an echarts document in the response body")
	}
}

func TestHandleGPSChartNoTracker(t *testing.T) {
	h := newTestHarness(t)
	h.server.quality = nil

	w := getPath(t, h.server, "/charts/gps")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServeMuxUnknownPath(t *testing.T) {
	h := newTestHarness(t)

	w := getPath(t, h.server, "/no/such/path")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
