// Package follow implements the follow-mode session state machine and the
// control loop that keeps the drone at its configured offset from the
// tracked person.
package follow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-aero/groundstation/internal/config"
	"github.com/corvid-aero/groundstation/internal/drone"
	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/geo"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/timeutil"
	"github.com/corvid-aero/groundstation/internal/track"
)

// State is the follow-mode machine state.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateFollowing State = "following"
	StateReturning State = "returning"
	StateFailed    State = "failed"
)

// Session parameter bounds, in meters.
const (
	MinElevationM = 5.0
	MaxElevationM = 100.0
	MinDistanceM  = 5.0
	MaxDistanceM  = 50.0
)

var (
	// ErrInvalidParameters rejects a start request before any side effect.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrAlreadyActive rejects a second start while a session exists.
	ErrAlreadyActive = errors.New("follow session already active")

	// ErrNotActive rejects stop/home without a session to act on.
	ErrNotActive = errors.New("no active follow session")
)

// Session holds the parameters of one follow engagement. It exists only
// while the machine is in starting, following, or returning.
type Session struct {
	ID         string    `json:"id"`
	ElevationM float64   `json:"elevation_m"`
	DistanceM  float64   `json:"distance_m"`
	StartedAt  time.Time `json:"started_at"`
}

// TargetPoint is the last hold point commanded to the flight driver.
type TargetPoint struct {
	Point     geo.Point `json:"point"`
	AltitudeM float64   `json:"altitude_m"`
}

// Snapshot is the read-only view of the controller recomputed after every
// transition and tick.
type Snapshot struct {
	State            State        `json:"state"`
	Session          *Session     `json:"session,omitempty"`
	LastTarget       *TargetPoint `json:"last_target,omitempty"`
	Ticks            int          `json:"ticks"`
	DriverErrors     int          `json:"driver_errors"`
	UnavailableTicks int          `json:"unavailable_ticks"`
	GimbalTiltDeg    float64      `json:"gimbal_tilt_deg"`
	LastError        string       `json:"last_error,omitempty"`
}

// Config holds control-loop parameters.
type Config struct {
	// TickInterval is the follow control cadence; ErrorBackoff replaces it
	// for the tick after a failed one.
	TickInterval time.Duration
	ErrorBackoff time.Duration

	// HysteresisM suppresses goto commands when the new hold point is within
	// this many meters of the last commanded one.
	HysteresisM float64

	// CommandTimeout bounds every driver call so a hung driver cannot stall
	// the loop.
	CommandTimeout time.Duration

	// Altitude confirmation for the starting state: advance to following
	// once relative altitude reaches ConfirmFraction of the target, or
	// unconditionally after ConfirmTimeout.
	ConfirmFraction float64
	ConfirmTimeout  time.Duration

	// UnavailableTolerance is how many consecutive no-position ticks pass
	// before the degradation is reported to the operator log.
	UnavailableTolerance int

	// Gains parameterize the gimbal framing nudge while a lock is engaged.
	Gains track.Gains
}

// DefaultConfig returns the production control-loop parameters.
func DefaultConfig() Config {
	return Config{
		TickInterval:         3 * time.Second,
		ErrorBackoff:         5 * time.Second,
		HysteresisM:          2.0,
		CommandTimeout:       5 * time.Second,
		ConfirmFraction:      0.95,
		ConfirmTimeout:       15 * time.Second,
		UnavailableTolerance: 3,
		Gains:                track.DefaultGains(),
	}
}

// ConfigFromTuning builds the control-loop Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		TickInterval:         cfg.GetTickInterval(),
		ErrorBackoff:         cfg.GetErrorBackoff(),
		HysteresisM:          cfg.GetHysteresisM(),
		CommandTimeout:       cfg.GetCommandTimeout(),
		ConfirmFraction:      cfg.GetConfirmFraction(),
		ConfirmTimeout:       cfg.GetConfirmTimeout(),
		UnavailableTolerance: cfg.GetUnavailableTolerance(),
		Gains:                track.GainsFromTuning(cfg),
	}
}

// Controller owns the follow session. All state transitions and the periodic
// control tick serialize on one mutex, so an operation arriving mid-tick is
// applied between ticks, never interleaved.
type Controller struct {
	mu sync.Mutex

	clock      timeutil.Clock
	arbitrator *gps.Arbitrator
	tracker    *track.Tracker
	vehicle    drone.FlightController
	gimbal     drone.Gimbal
	events     *eventlog.Log
	config     Config

	state   State
	session *Session

	takeoffIssued bool
	takeoffAt     time.Time

	lastTarget    TargetPoint
	hasTarget     bool
	gimbalTiltDeg float64

	ticks            int
	driverErrors     int
	unavailableTicks int
	lastErr          string

	snapMu sync.RWMutex
	snap   Snapshot

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// withDefaults replaces zero config fields with the production values.
func withDefaults(config Config) Config {
	def := DefaultConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = def.TickInterval
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = def.ErrorBackoff
	}
	if config.HysteresisM <= 0 {
		config.HysteresisM = def.HysteresisM
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = def.CommandTimeout
	}
	if config.ConfirmFraction <= 0 {
		config.ConfirmFraction = def.ConfirmFraction
	}
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = def.ConfirmTimeout
	}
	if config.UnavailableTolerance <= 0 {
		config.UnavailableTolerance = def.UnavailableTolerance
	}
	if config.Gains == (track.Gains{}) {
		config.Gains = def.Gains
	}
	return config
}

// NewController wires the follow controller. A nil clock falls back to the
// real clock; zero config fields are replaced with defaults.
func NewController(arbitrator *gps.Arbitrator, tracker *track.Tracker, vehicle drone.FlightController, gimbal drone.Gimbal, events *eventlog.Log, clock timeutil.Clock, config Config) *Controller {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	c := &Controller{
		clock:      clock,
		arbitrator: arbitrator,
		tracker:    tracker,
		vehicle:    vehicle,
		gimbal:     gimbal,
		events:     events,
		config:     withDefaults(config),
		state:      StateIdle,
	}
	c.publishSnapshot()
	return c
}

// SetConfig replaces the control-loop parameters, normalizing zero fields as
// NewController does. The change lands between ticks: the tick in flight
// finishes under the old values.
func (c *Controller) SetConfig(config Config) {
	config = withDefaults(config)
	c.mu.Lock()
	c.config = config
	c.mu.Unlock()
}

// configSnapshot returns the current parameters for scheduling reads outside
// the tick.
func (c *Controller) configSnapshot() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Start validates parameters and opens a session in StateStarting. The
// takeoff command itself is issued by the control loop. A second start while
// any session is active fails with ErrAlreadyActive and alters nothing.
func (c *Controller) Start(elevationM, distanceM float64) error {
	if elevationM < MinElevationM || elevationM > MaxElevationM {
		return fmt.Errorf("%w: elevation must be between %.0f and %.0f meters", ErrInvalidParameters, MinElevationM, MaxElevationM)
	}
	if distanceM < MinDistanceM || distanceM > MaxDistanceM {
		return fmt.Errorf("%w: distance must be between %.0f and %.0f meters", ErrInvalidParameters, MinDistanceM, MaxDistanceM)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return fmt.Errorf("%w: state is %s", ErrAlreadyActive, c.state)
	}

	c.session = &Session{
		ID:         uuid.NewString(),
		ElevationM: elevationM,
		DistanceM:  distanceM,
		StartedAt:  c.clock.Now(),
	}
	c.state = StateStarting
	c.takeoffIssued = false
	c.hasTarget = false
	c.unavailableTicks = 0
	c.lastErr = ""
	c.publishSnapshot()

	c.logEvent(eventlog.ComponentFollow, eventlog.LevelInfo,
		"follow session starting: elevation %.0fm, distance %.0fm", elevationM, distanceM)
	return nil
}

// Stop moves a following session to returning: the drone stops tracking and
// hovers where it is. It does not land.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateFollowing {
		return fmt.Errorf("%w: state is %s", ErrNotActive, c.state)
	}
	c.state = StateReturning
	c.publishSnapshot()
	c.logEvent(eventlog.ComponentFollow, eventlog.LevelInfo, "follow stopped, hovering in place")
	return nil
}

// Home is the abort override: land unconditionally and reset to idle. A
// driver error is surfaced to the caller but never blocks the reset, so
// Home always leaves the machine idle, including from StateFailed.
func (c *Controller) Home(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return fmt.Errorf("%w: already idle", ErrNotActive)
	}

	c.state = StateIdle
	c.session = nil
	c.hasTarget = false
	c.publishSnapshot()
	c.logEvent(eventlog.ComponentDrone, eventlog.LevelInfo, "landing at current position")

	cmdCtx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
	defer cancel()
	if err := c.vehicle.Land(cmdCtx); err != nil {
		c.driverErrors++
		c.lastErr = err.Error()
		c.publishSnapshot()
		c.logEvent(eventlog.ComponentDrone, eventlog.LevelError, "land command failed: %v", err)
		return fmt.Errorf("land: %w", err)
	}
	c.logEvent(eventlog.ComponentDrone, eventlog.LevelSuccess, "landed")
	return nil
}

// State returns the machine state only.
func (c *Controller) State() State {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap.State
}

// Snapshot returns the current read-only view without touching the control
// mutex, so a slow driver call never stalls a status read.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// publishSnapshot recomputes the exposed snapshot. Caller must hold c.mu.
func (c *Controller) publishSnapshot() {
	s := Snapshot{
		State:            c.state,
		Ticks:            c.ticks,
		DriverErrors:     c.driverErrors,
		UnavailableTicks: c.unavailableTicks,
		GimbalTiltDeg:    c.gimbalTiltDeg,
		LastError:        c.lastErr,
	}
	if c.session != nil {
		sess := *c.session
		s.Session = &sess
	}
	if c.hasTarget {
		target := c.lastTarget
		s.LastTarget = &target
	}

	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}

// fail moves the machine to StateFailed and destroys the session. Caller
// must hold c.mu.
func (c *Controller) fail(reason string) {
	c.state = StateFailed
	c.session = nil
	c.hasTarget = false
	c.lastErr = reason
	c.publishSnapshot()
	c.logEvent(eventlog.ComponentFollow, eventlog.LevelError, "follow session failed: %s", reason)
}

func (c *Controller) logEvent(component eventlog.Component, level eventlog.Level, format string, args ...any) {
	if c.events != nil {
		c.events.Append(component, level, format, args...)
	}
}
