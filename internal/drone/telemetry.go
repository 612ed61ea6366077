package drone

import (
	"context"
	"sync"
	"time"

	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// TelemetryConfig tunes the background state poll.
type TelemetryConfig struct {
	// Interval is the poll cadence while the link is healthy.
	Interval time.Duration
	// ErrorBackoff is the poll cadence after a failed read.
	ErrorBackoff time.Duration
	// Timeout bounds a single CurrentState call.
	Timeout time.Duration
}

// DefaultTelemetryConfig returns the station's poll cadence.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Interval:     2 * time.Second,
		ErrorBackoff: 5 * time.Second,
		Timeout:      2 * time.Second,
	}
}

// Telemetry polls the flight controller in the background and caches the
// latest snapshot, so status reads never wait on a slow or dead link. Loss
// and recovery of an established link are reported to the event log.
type Telemetry struct {
	ctrl   FlightController
	events *eventlog.Log
	clock  timeutil.Clock
	config TelemetryConfig

	mu    sync.RWMutex
	state VehicleState
	at    time.Time
	valid bool
	down  bool
}

// NewTelemetry creates a poller for ctrl. events may be nil; a nil clock
// defaults to the real clock; zero config fields take the defaults.
func NewTelemetry(ctrl FlightController, events *eventlog.Log, clock timeutil.Clock, config TelemetryConfig) *Telemetry {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	def := DefaultTelemetryConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = def.ErrorBackoff
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Telemetry{
		ctrl:   ctrl,
		events: events,
		clock:  clock,
		config: config,
	}
}

// Run polls once immediately, then on the configured cadence until ctx is
// cancelled, backing off after errors.
func (t *Telemetry) Run(ctx context.Context) {
	for {
		delay := t.config.Interval
		if err := t.PollOnce(ctx); err != nil {
			delay = t.config.ErrorBackoff
		}

		timer := t.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
	}
}

// PollOnce reads one snapshot and updates the cache. Exposed so startup can
// prime the cache before serving.
func (t *Telemetry) PollOnce(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	state, err := t.ctrl.CurrentState(pctx)
	cancel()

	t.mu.Lock()
	if err != nil {
		lost := t.valid && !t.down
		t.down = true
		t.mu.Unlock()
		if lost {
			t.logEvent(eventlog.LevelWarning, "telemetry link lost: %v", err)
		}
		return err
	}
	recovered := t.down && t.valid
	t.down = false
	t.state = state
	t.at = t.clock.Now()
	t.valid = true
	t.mu.Unlock()

	if recovered {
		t.logEvent(eventlog.LevelInfo, "telemetry link recovered")
	}
	return nil
}

// Latest returns the most recent snapshot, when it was read, and whether any
// snapshot has been read yet. The snapshot survives link loss; callers judge
// freshness by the read time.
func (t *Telemetry) Latest() (VehicleState, time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state, t.at, t.valid
}

func (t *Telemetry) logEvent(level eventlog.Level, format string, args ...any) {
	if t.events == nil {
		return
	}
	t.events.Append(eventlog.ComponentDrone, level, format, args...)
}
