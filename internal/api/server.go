// Package api exposes the ground-station HTTP surface: follow-mode control,
// position ingestion, person-lock management, stream supervision, and the
// operator event feed.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/corvid-aero/groundstation/internal/config"
	"github.com/corvid-aero/groundstation/internal/drone"
	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/follow"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/gpslog"
	"github.com/corvid-aero/groundstation/internal/monitoring"
	"github.com/corvid-aero/groundstation/internal/nmea"
	"github.com/corvid-aero/groundstation/internal/stream"
	"github.com/corvid-aero/groundstation/internal/timeutil"
	"github.com/corvid-aero/groundstation/internal/track"
	"github.com/corvid-aero/groundstation/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// telemetryTimeout bounds the flight-controller read done for a status
// request, so a hung driver returns a degraded status instead of hanging the
// dashboard.
const telemetryTimeout = 2 * time.Second

// telemetryStaleAfter is how old a cached telemetry snapshot may be before
// the status surface stops reporting it.
const telemetryStaleAfter = 10 * time.Second

// ServerConfig wires a Server. Registry, Arbitrator, Tracker, Follow,
// Vehicle, Supervisor, and Events are required; the rest are optional.
type ServerConfig struct {
	Registry   *gps.Registry
	Arbitrator *gps.Arbitrator
	Tracker    *track.Tracker
	Follow     *follow.Controller
	Vehicle    drone.FlightController
	Supervisor *stream.Supervisor
	Events     *eventlog.Log

	// Quality feeds the GPS quality chart. Optional.
	Quality *gps.QualityTracker
	// Telemetry serves status reads from the background poll cache instead
	// of a per-request driver call. Optional.
	Telemetry *drone.Telemetry
	// Store enables the tailsql and backup admin routes. Optional.
	Store *gpslog.Store
	// Receiver and Feed attach the nmea debug endpoints. Optional.
	Receiver *nmea.Receiver
	Feed     AdminAttacher

	// Gains parameterize the framing adjustment reported by /detections.
	// Zero value derives them from Tuning.
	Gains track.Gains

	// Tuning seeds the runtime tuning document served at /tuning. Optional:
	// nil starts from defaults.
	Tuning *config.TuningConfig

	// Units selects the display unit system reported to clients.
	Units string

	// BaseCtx bounds stream sessions started over HTTP. Defaults to
	// context.Background().
	BaseCtx context.Context

	// Clock defaults to the real clock.
	Clock timeutil.Clock
}

// AdminAttacher is anything that can hang debug routes off the mux. The nmea
// feed mux satisfies it for every port type.
type AdminAttacher interface {
	AttachAdminRoutes(mux *http.ServeMux)
}

type Server struct {
	registry   *gps.Registry
	arbitrator *gps.Arbitrator
	tracker    *track.Tracker
	follow     *follow.Controller
	vehicle    drone.FlightController
	supervisor *stream.Supervisor
	events     *eventlog.Log
	quality    *gps.QualityTracker
	telemetry  *drone.Telemetry
	store      *gpslog.Store
	receiver   *nmea.Receiver
	feed       AdminAttacher
	units      string
	baseCtx    context.Context
	clock      timeutil.Clock

	// tuningMu guards tuning and gains, the server state the /tuning
	// endpoint replaces at runtime.
	tuningMu sync.RWMutex
	tuning   *config.TuningConfig
	gains    track.Gains
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.BaseCtx == nil {
		cfg.BaseCtx = context.Background()
	}
	if cfg.Tuning == nil {
		cfg.Tuning = config.EmptyTuningConfig()
	}
	if cfg.Gains == (track.Gains{}) {
		cfg.Gains = track.GainsFromTuning(cfg.Tuning)
	}
	if !units.IsValid(cfg.Units) {
		if cfg.Units != "" {
			monitoring.Logf("api: unknown unit system %q, using %s (valid: %s)",
				cfg.Units, units.Metric, units.GetValidSystemsString())
		}
		cfg.Units = units.Metric
	}
	return &Server{
		registry:   cfg.Registry,
		arbitrator: cfg.Arbitrator,
		tracker:    cfg.Tracker,
		follow:     cfg.Follow,
		vehicle:    cfg.Vehicle,
		supervisor: cfg.Supervisor,
		events:     cfg.Events,
		quality:    cfg.Quality,
		telemetry:  cfg.Telemetry,
		store:      cfg.Store,
		receiver:   cfg.Receiver,
		feed:       cfg.Feed,
		tuning:     cfg.Tuning,
		gains:      cfg.Gains,
		units:      cfg.Units,
		baseCtx:    cfg.BaseCtx,
		clock:      cfg.Clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/follow/start", s.handleFollowStart)
	mux.HandleFunc("/follow/stop", s.handleFollowStop)
	mux.HandleFunc("/follow/home", s.handleFollowHome)
	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("/drone/takeoff", s.handleDroneTakeoff)
	mux.HandleFunc("/drone/land", s.handleDroneLand)

	mux.HandleFunc("/gps/update", s.handleGPSUpdate)
	mux.HandleFunc("/gps/manual", s.handleGPSManual)
	mux.HandleFunc("/gps/sources", s.handleGPSSources)

	mux.HandleFunc("/track/lock", s.handleTrackLock)
	mux.HandleFunc("/track/unlock", s.handleTrackUnlock)
	mux.HandleFunc("/track/status", s.handleTrackStatus)
	mux.HandleFunc("/detections", s.handleDetections)

	mux.HandleFunc("/stream/start", s.handleStreamStart)
	mux.HandleFunc("/stream/stop", s.handleStreamStop)
	mux.HandleFunc("/stream/health", s.handleStreamHealth)

	mux.HandleFunc("/logs", s.handleLogs)
	mux.HandleFunc("/logs/clear", s.handleLogsClear)
	mux.HandleFunc("/events", s.handleEvents)

	mux.HandleFunc("/tuning", s.handleTuning)
	mux.HandleFunc("/charts/gps", s.handleGPSChart)

	if s.feed != nil {
		s.feed.AttachAdminRoutes(mux)
	}
	if s.receiver != nil {
		s.receiver.AttachAdminRoutes(mux)
	}
	if s.store != nil {
		if err := s.store.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("api: attach gpslog admin routes: %v", err)
		}
	}
	return mux
}
