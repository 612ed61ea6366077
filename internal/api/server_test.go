package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corvid-aero/groundstation/internal/drone"
	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/follow"
	"github.com/corvid-aero/groundstation/internal/geo"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/stream"
	"github.com/corvid-aero/groundstation/internal/timeutil"
	"github.com/corvid-aero/groundstation/internal/track"
	"github.com/corvid-aero/groundstation/internal/units"
)

// testHarness bundles the server with its collaborators so tests can script
// scenarios from both sides of the HTTP boundary.
type testHarness struct {
	server     *Server
	clock      *timeutil.MockClock
	registry   *gps.Registry
	arbitrator *gps.Arbitrator
	tracker    *track.Tracker
	vehicle    *drone.SimVehicle
	follow     *follow.Controller
	supervisor *stream.Supervisor
	source     *stream.SimSource
	events     *eventlog.Log
	quality    *gps.QualityTracker
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	registry := gps.NewRegistry(clock)
	arbitrator := gps.NewArbitrator(registry, clock, gps.ArbitratorConfig{})
	tracker := track.New(track.Config{}, clock)
	vehicle := drone.NewSimVehicle(clock, geo.Point{Lat: 37.7749, Lon: -122.4194})
	gimbal := drone.NewSimGimbal()
	events := eventlog.New(clock, 0)
	controller := follow.NewController(arbitrator, tracker, vehicle, gimbal, events, clock, follow.Config{})
	source := stream.NewSimSource(clock)
	supervisor := stream.NewSupervisor(stream.SupervisorConfig{
		Source: source,
		Prober: source,
		Events: events,
		Clock:  clock,
	})
	quality := gps.NewQualityTracker()

	server := NewServer(ServerConfig{
		Registry:   registry,
		Arbitrator: arbitrator,
		Tracker:    tracker,
		Follow:     controller,
		Vehicle:    vehicle,
		Supervisor: supervisor,
		Events:     events,
		Quality:    quality,
		Units:      units.Metric,
		Clock:      clock,
	})

	t.Cleanup(supervisor.Stop)

	return &testHarness{
		server:     server,
		clock:      clock,
		registry:   registry,
		arbitrator: arbitrator,
		tracker:    tracker,
		vehicle:    vehicle,
		follow:     controller,
		supervisor: supervisor,
		source:     source,
		events:     events,
		quality:    quality,
	}
}

// postJSON runs a POST with a JSON body through the full mux.
func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHandleFollowStart(t *testing.T) {
	h := newTestHarness(t)

	w := postJSON(t, h.server, "/follow/start", map[string]float64{"elevation": 30, "distance": 15})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	decodeBody(t, w, &resp)
	if resp["elevation"] != 30.0 {
		t.Errorf("elevation = %v, want 30", resp["elevation"])
	}
	if resp["distance"] != 15.0 {
		t.Errorf("distance = %v, want 15", resp["distance"])
	}

	if got := h.follow.State(); got != follow.StateStarting {
		t.Errorf("follow state = %s, want %s", got, follow.StateStarting)
	}
}

func TestHandleFollowStartDefaults(t *testing.T) {
	h := newTestHarness(t)

	w := postJSON(t, h.server, "/follow/start", map[string]float64{})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	snap := h.follow.Snapshot()
	if snap.Session == nil {
		t.Fatal("expected a session after start")
	}
	if snap.Session.ElevationM != defaultElevationM {
		t.Errorf("elevation = %v, want %v", snap.Session.ElevationM, defaultElevationM)
	}
	if snap.Session.DistanceM != defaultDistanceM {
		t.Errorf("distance = %v, want %v", snap.Session.DistanceM, defaultDistanceM)
	}
}

func TestHandleFollowStartInvalidParameters(t *testing.T) {
	h := newTestHarness(t)

	tests := []struct {
		name      string
		elevation float64
		distance  float64
	}{
		{"elevation too low", 2, 10},
		{"elevation too high", 200, 10},
		{"distance too low", 20, 1},
		{"distance too high", 20, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, h.server, "/follow/start", map[string]float64{
				"elevation": tt.elevation, "distance": tt.distance,
			})
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}

	if got := h.follow.State(); got != follow.StateIdle {
		t.Errorf("follow state = %s, want idle after rejected starts", got)
	}
}

func TestHandleFollowStartConflict(t *testing.T) {
	h := newTestHarness(t)

	if w := postJSON(t, h.server, "/follow/start", map[string]float64{"elevation": 20, "distance": 10}); w.Code != http.StatusOK {
		t.Fatalf("first start: expected 200, got %d", w.Code)
	}
	w := postJSON(t, h.server, "/follow/start", map[string]float64{"elevation": 20, "distance": 10})
	if w.Code != http.StatusConflict {
		t.Errorf("second start: expected 409, got %d", w.Code)
	}
}

func TestHandleFollowStopWithoutSession(t *testing.T) {
	h := newTestHarness(t)

	w := postJSON(t, h.server, "/follow/stop", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestHandleFollowHome(t *testing.T) {
	h := newTestHarness(t)

	if w := postJSON(t, h.server, "/follow/start", map[string]float64{"elevation": 20, "distance": 10}); w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", w.Code)
	}

	w := postJSON(t, h.server, "/follow/home", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := h.follow.State(); got != follow.StateIdle {
		t.Errorf("follow state = %s, want idle after home", got)
	}
	if got := h.vehicle.LandCount(); got != 1 {
		t.Errorf("land count = %d, want 1", got)
	}
}

func TestHandleFollowHomeIdle(t *testing.T) {
	h := newTestHarness(t)

	w := postJSON(t, h.server, "/follow/home", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestHandleFollowMethodNotAllowed(t *testing.T) {
	h := newTestHarness(t)

	for _, path := range []string{"/follow/start", "/follow/stop", "/follow/home"} {
		w := getPath(t, h.server, path)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: expected 405, got %d", path, w.Code)
		}
	}
}

func TestHandleStatusEmpty(t *testing.T) {
	h := newTestHarness(t)
	h.vehicle.SetHasFix(false)

	w := getPath(t, h.server, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp statusResponse
	decodeBody(t, w, &resp)

	if resp.TrackingActive {
		t.Error("tracking_active = true, want false")
	}
	if resp.FollowMode {
		t.Error("follow_mode = true, want false")
	}
	if resp.FollowState != follow.StateIdle {
		t.Errorf("follow_state = %s, want idle", resp.FollowState)
	}
	if resp.UserHasLocation || resp.DroneHasLocation {
		t.Error("expected no locations on a fresh system")
	}
	if resp.DistanceMeters != 0 || resp.DistanceFeet != 0 {
		t.Errorf("distance = %v m / %v ft, want 0 / 0", resp.DistanceMeters, resp.DistanceFeet)
	}
	if resp.GPSHealth != gps.HealthUnavailable {
		t.Errorf("gps_health = %s, want unavailable", resp.GPSHealth)
	}
	if resp.TargetElevation != defaultElevationM || resp.TargetDistance != defaultDistanceM {
		t.Errorf("targets = %v/%v, want defaults %v/%v",
			resp.TargetElevation, resp.TargetDistance, defaultElevationM, defaultDistanceM)
	}
	if resp.Units != units.Metric {
		t.Errorf("units = %q, want %q", resp.Units, units.Metric)
	}
}

func TestHandleStatusWithPositions(t *testing.T) {
	h := newTestHarness(t)

	// Person roughly 111m north of the drone.
	if err := h.registry.Update(gps.SourcePhone, 37.7759, -122.4194, nil, nil); err != nil {
		t.Fatalf("failed to store phone position: %v", err)
	}

	w := getPath(t, h.server, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp statusResponse
	decodeBody(t, w, &resp)

	if !resp.UserHasLocation {
		t.Fatal("user_has_location = false, want true")
	}
	if !resp.DroneHasLocation {
		t.Fatal("drone_has_location = false, want true")
	}
	if resp.GPSSource != gps.SourcePhone {
		t.Errorf("gps_source = %s, want phone", resp.GPSSource)
	}
	if resp.DistanceMeters < 100 || resp.DistanceMeters > 125 {
		t.Errorf("distance_meters = %v, want ~111", resp.DistanceMeters)
	}
	ratio := resp.DistanceFeet / resp.DistanceMeters
	if ratio < 3.27 || ratio > 3.29 {
		t.Errorf("feet/meters ratio = %v, want ~3.28", ratio)
	}
	if resp.Drone == nil {
		t.Fatal("expected drone telemetry in status")
	}
	if resp.Drone.BatteryPct != 100 {
		t.Errorf("battery = %v, want 100", resp.Drone.BatteryPct)
	}
}

func TestHandleStatusSessionTargets(t *testing.T) {
	h := newTestHarness(t)

	if w := postJSON(t, h.server, "/follow/start", map[string]float64{"elevation": 42, "distance": 21}); w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", w.Code)
	}

	var resp statusResponse
	decodeBody(t, getPath(t, h.server, "/status"), &resp)

	if !resp.TrackingActive {
		t.Error("tracking_active = false, want true with a session open")
	}
	if resp.TargetElevation != 42 || resp.TargetDistance != 21 {
		t.Errorf("targets = %v/%v, want 42/21", resp.TargetElevation, resp.TargetDistance)
	}
}

func TestStatusCodeColor(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, colorBoldGreen + "200" + colorReset},
		{302, colorYellow + "302" + colorReset},
		{404, colorBoldRed + "404" + colorReset},
		{500, colorBoldRed + "500" + colorReset},
		{100, "100"},
	}
	for _, tt := range tests {
		if got := statusCodeColor(tt.code); got != tt.want {
			t.Errorf("statusCodeColor(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestLoggingMiddlewarePreservesResponse(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "short and stout") {
		t.Errorf("body = %q, want passthrough", w.Body.String())
	}
}
