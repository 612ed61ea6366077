package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corvid-aero/groundstation/internal/config"
	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/monitoring"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// SupervisorConfig wires a Supervisor.
type SupervisorConfig struct {
	// Source is the local frame pipeline. Required.
	Source FrameSource
	// Prober queries upstream camera status. Optional: without one, health
	// is judged on frame flow alone.
	Prober HealthProber
	// OnFrame, when set, receives every frame read from the source.
	OnFrame func(Frame)
	// Events receives operator-facing log entries. Optional.
	Events *eventlog.Log
	// Clock defaults to the real clock.
	Clock timeutil.Clock

	// FrameInterval is the frame poll cadence (default 100ms).
	FrameInterval time.Duration
	// HealthInterval is the health check cadence (default 10s).
	HealthInterval time.Duration
	// RequestTimeout bounds every source and prober call (default 5s).
	RequestTimeout time.Duration
	// MaxRestarts is the per-session restart budget (default 3).
	MaxRestarts int
	// FrameFailureLimit is how many consecutive frame read failures mark the
	// pipeline stalled (default 15).
	FrameFailureLimit int
}

// ApplyTuning fills the tunable fields from a loaded TuningConfig. Wiring
// fields (Source, Prober, callbacks) are left untouched.
func (c *SupervisorConfig) ApplyTuning(cfg *config.TuningConfig) {
	c.FrameInterval = cfg.GetFrameInterval()
	c.HealthInterval = cfg.GetHealthInterval()
	c.RequestTimeout = cfg.GetRequestTimeout()
	c.MaxRestarts = cfg.GetMaxRestarts()
	c.FrameFailureLimit = cfg.GetFrameFailureLimit()
}

// Supervisor owns the stream session: frame polling, health classification,
// and the bounded restart budget. The budget is explicit state, reset only by
// a fresh Start, so a persistent fault fail-stops instead of retrying forever.
type Supervisor struct {
	source  FrameSource
	prober  HealthProber
	onFrame func(Frame)
	events  *eventlog.Log
	clock   timeutil.Clock

	frameInterval     time.Duration
	healthInterval    time.Duration
	requestTimeout    time.Duration
	maxRestarts       int
	frameFailureLimit int

	mu                  sync.Mutex
	running             bool
	health              Health
	restartCount        int
	frames              int
	consecutiveFailures int
	lastFrameAt         time.Time
	lastHealthAt        time.Time
	lastErr             string
	stopCh              chan struct{}
	doneCh              chan struct{}
}

// NewSupervisor creates a stopped supervisor from cfg, applying defaults for
// zero fields.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 100 * time.Millisecond
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 3
	}
	if cfg.FrameFailureLimit <= 0 {
		cfg.FrameFailureLimit = 15
	}
	return &Supervisor{
		source:            cfg.Source,
		prober:            cfg.Prober,
		onFrame:           cfg.OnFrame,
		events:            cfg.Events,
		clock:             cfg.Clock,
		frameInterval:     cfg.FrameInterval,
		healthInterval:    cfg.HealthInterval,
		requestTimeout:    cfg.RequestTimeout,
		maxRestarts:       cfg.MaxRestarts,
		frameFailureLimit: cfg.FrameFailureLimit,
		health:            HealthStopped,
	}
}

// SetTuning replaces the tunable parameters on a built supervisor. Timeouts
// and limits apply immediately; the poll cadences apply on the next Start,
// since a running session's tickers are already wound.
func (s *Supervisor) SetTuning(cfg *config.TuningConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameInterval = cfg.GetFrameInterval()
	s.healthInterval = cfg.GetHealthInterval()
	s.requestTimeout = cfg.GetRequestTimeout()
	s.maxRestarts = cfg.GetMaxRestarts()
	s.frameFailureLimit = cfg.GetFrameFailureLimit()
}

// timeout returns the current per-request bound.
func (s *Supervisor) timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestTimeout
}

// Start opens the frame source and begins supervision with a zeroed restart
// budget. ctx bounds the whole session: when it is cancelled the loops stop.
// Starting from the terminal failed state is the manual intervention that
// clears it.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	// Claim the session before the source opens so concurrent Starts cannot
	// both open it.
	s.running = true
	s.mu.Unlock()

	octx, cancel := context.WithTimeout(ctx, s.timeout())
	err := s.source.Open(octx)
	cancel()
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.health = HealthStopped
		s.lastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("open frame source: %w", err)
	}

	s.mu.Lock()
	s.health = HealthOK
	s.restartCount = 0
	s.frames = 0
	s.consecutiveFailures = 0
	s.lastFrameAt = time.Time{}
	s.lastHealthAt = time.Time{}
	s.lastErr = ""
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.logEvent(eventlog.LevelInfo, "stream supervision started")
	go s.run(ctx, stopCh, doneCh)
	return nil
}

// Stop halts supervision and closes the source. Safe to call repeatedly and
// when not running. A terminal failed session stays failed; only Start
// changes that.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
		// already closed
	default:
		close(s.stopCh)
	}
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
}

// Status returns the current session snapshot.
func (s *Supervisor) Status() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session{
		Running:           s.running,
		Health:            s.health,
		RestartCount:      s.restartCount,
		Frames:            s.frames,
		LastFrameAt:       s.lastFrameAt,
		LastHealthCheckAt: s.lastHealthAt,
		LastError:         s.lastErr,
	}
}

// IsRunning returns whether supervision is active.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run drives the two poll cadences. The channels are passed in so a stale
// goroutine from a previous session can never touch the current session's
// channels.
func (s *Supervisor) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	s.mu.Lock()
	frameInterval, healthInterval, maxRestarts := s.frameInterval, s.healthInterval, s.maxRestarts
	s.mu.Unlock()

	frames := s.clock.NewTicker(frameInterval)
	defer frames.Stop()
	health := s.clock.NewTicker(healthInterval)
	defer health.Stop()

	monitoring.Logf("StreamSupervisor started: frame=%v health=%v maxRestarts=%d", frameInterval, healthInterval, maxRestarts)

	for {
		select {
		case <-ctx.Done():
			s.finalize(HealthStopped, "context cancelled")
			return
		case <-stopCh:
			s.finalize(HealthStopped, "stopped by operator")
			return
		case <-frames.C():
			s.pollFrame(ctx)
		case <-health.C():
			if s.checkHealth(ctx) {
				return
			}
		}
	}
}

// pollFrame reads one frame and updates liveness counters.
func (s *Supervisor) pollFrame(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, s.timeout())
	frame, err := s.source.ReadFrame(fctx)
	cancel()

	now := s.clock.Now()
	s.mu.Lock()
	if err != nil {
		s.consecutiveFailures++
		s.lastErr = err.Error()
		s.mu.Unlock()
		return
	}
	s.frames++
	s.consecutiveFailures = 0
	s.lastFrameAt = now
	if s.health == HealthStalled {
		// Frames are flowing again; the last restart took.
		s.health = HealthOK
	}
	s.mu.Unlock()

	if s.onFrame != nil {
		s.onFrame(frame)
	}
}

// checkHealth classifies the stream and applies the restart policy. It
// returns true when the session reached a terminal state and the loop must
// exit.
func (s *Supervisor) checkHealth(ctx context.Context) bool {
	streaming := true
	var probeErr error
	if s.prober != nil {
		pctx, cancel := context.WithTimeout(ctx, s.timeout())
		streaming, probeErr = s.prober.Streaming(pctx)
		cancel()
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.lastHealthAt = now
	stalled := s.consecutiveFailures >= s.frameFailureLimit
	if probeErr != nil {
		s.lastErr = probeErr.Error()
	}
	s.mu.Unlock()

	switch {
	case probeErr == nil && !streaming:
		// The camera was stopped on purpose. Restarting would fight the
		// operator, so the session just ends.
		s.finalize(HealthStopped, "camera reports not streaming")
		return true
	case probeErr != nil:
		return s.restartOrFail(ctx, "camera API unresponsive")
	case stalled:
		return s.restartOrFail(ctx, "frame reads stalled")
	default:
		s.mu.Lock()
		s.health = HealthOK
		s.mu.Unlock()
		return false
	}
}

// restartOrFail spends one unit of restart budget on reopening the local
// pipeline, or finalizes the session as failed when the budget is gone.
func (s *Supervisor) restartOrFail(ctx context.Context, reason string) bool {
	s.mu.Lock()
	budget := s.maxRestarts
	if s.restartCount >= budget {
		s.mu.Unlock()
		s.finalize(HealthFailed, fmt.Sprintf("%s after %d restarts", reason, budget))
		return true
	}
	s.restartCount++
	attempt := s.restartCount
	s.health = HealthStalled
	s.consecutiveFailures = 0
	s.mu.Unlock()

	s.logEvent(eventlog.LevelWarning, "%s, restarting stream (%d/%d)", reason, attempt, budget)
	if err := s.source.Close(); err != nil {
		monitoring.Logf("StreamSupervisor: close before restart: %v", err)
	}
	octx, cancel := context.WithTimeout(ctx, s.timeout())
	err := s.source.Open(octx)
	cancel()
	if err != nil {
		// Still stalled; the next health check spends the next unit.
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.logEvent(eventlog.LevelError, "stream restart failed: %v", err)
	}
	return false
}

// finalize ends the session: the source is closed and the published health
// set. Called exactly once per session, from the loop goroutine or a
// terminal health check.
func (s *Supervisor) finalize(health Health, reason string) {
	if err := s.source.Close(); err != nil {
		monitoring.Logf("StreamSupervisor: source close: %v", err)
	}
	s.mu.Lock()
	s.running = false
	s.health = health
	s.mu.Unlock()

	if health == HealthFailed {
		s.logEvent(eventlog.LevelError, "stream supervision failed: %s", reason)
	} else {
		s.logEvent(eventlog.LevelInfo, "stream supervision stopped: %s", reason)
	}
	monitoring.Logf("StreamSupervisor stopped: %s", reason)
}

func (s *Supervisor) logEvent(level eventlog.Level, format string, args ...any) {
	if s.events == nil {
		return
	}
	s.events.Append(eventlog.ComponentCamera, level, format, args...)
}
