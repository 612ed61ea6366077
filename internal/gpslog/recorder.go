package gpslog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/monitoring"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// DefaultSnapshotInterval is the cadence at which receiver quality
// aggregates are written while a recorder runs.
const DefaultSnapshotInterval = 30 * time.Second

// RecorderConfig wires a Recorder.
type RecorderConfig struct {
	// Store receives the session and snapshot rows. Required.
	Store *Store
	// Tracker is the live quality window being sampled. Required.
	Tracker *gps.QualityTracker
	// Source names the receiver the diagnostics describe.
	Source gps.SourceID
	// Clock defaults to the real clock.
	Clock timeutil.Clock
	// Interval is the snapshot cadence (default 30s).
	Interval time.Duration
}

// Recorder periodically writes the quality tracker's aggregates to the
// store under one session. Snapshots with an empty window are skipped, so
// a silent receiver produces a session with no rows rather than a run of
// zeroed ones.
type Recorder struct {
	store    *Store
	tracker  *gps.QualityTracker
	source   gps.SourceID
	clock    timeutil.Clock
	interval time.Duration

	mu        sync.Mutex
	running   bool
	sessionID string
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewRecorder creates a stopped recorder from cfg, applying defaults for
// unset fields.
func NewRecorder(cfg RecorderConfig) *Recorder {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	source := cfg.Source
	if source == "" {
		source = gps.SourceLaptop
	}
	return &Recorder{
		store:    cfg.Store,
		tracker:  cfg.Tracker,
		source:   source,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run opens a session and blocks writing periodic snapshots until the
// context is cancelled or Stop is called. A final snapshot is taken and the
// session closed on the way out. Returns nil on clean shutdown.
func (r *Recorder) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil // already running
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.sessionID = uuid.NewString()
	sessionID := r.sessionID
	r.mu.Unlock()

	defer func() {
		close(r.doneCh)
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if err := r.store.CreateSession(Session{
		ID:        sessionID,
		Source:    string(r.source),
		StartedAt: r.clock.Now(),
	}); err != nil {
		return err
	}
	monitoring.Logf("QualityRecorder started: session=%s source=%s interval=%v", sessionID, r.source, r.interval)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finish(sessionID, "context cancelled")
			return nil
		case <-r.stopCh:
			r.finish(sessionID, "stop requested")
			return nil
		case <-ticker.C():
			r.snapshot(sessionID)
		}
	}
}

// Stop requests the recorder to stop and waits for the session to close.
// It is safe to call multiple times.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	done := r.doneCh
	select {
	case <-r.stopCh:
		// already closed
	default:
		close(r.stopCh)
	}
	r.mu.Unlock()

	<-done
}

// IsRunning returns whether the recorder currently owns an open session.
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SessionID returns the id of the current (or most recent) session, or ""
// if the recorder has never run.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// snapshot writes one aggregate row if the tracker has samples.
func (r *Recorder) snapshot(sessionID string) {
	stats := r.tracker.Stats()
	if stats.Samples == 0 {
		return
	}
	snap := SnapshotFromStats(sessionID, r.clock.Now(), stats)
	if err := r.store.RecordSnapshot(snap); err != nil {
		monitoring.Logf("QualityRecorder: error writing snapshot: %v", err)
	}
}

// finish takes a closing snapshot and stamps the session end.
func (r *Recorder) finish(sessionID, reason string) {
	r.snapshot(sessionID)
	if err := r.store.EndSession(sessionID, r.clock.Now()); err != nil {
		monitoring.Logf("QualityRecorder: error closing session: %v", err)
	}
	monitoring.Logf("QualityRecorder stopped: session=%s (%s)", sessionID, reason)
}

// SnapshotFromStats converts live tracker aggregates into a storable row.
func SnapshotFromStats(sessionID string, at time.Time, stats gps.QualityStats) Snapshot {
	return Snapshot{
		SessionID:        sessionID,
		RecordedAt:       at.UTC(),
		WindowSamples:    stats.Samples,
		MeanSatellites:   stats.MeanSatellites,
		StdDevSatellites: stats.StdDevSatellites,
		MeanHDOP:         stats.MeanHDOP,
		MinHDOP:          stats.MinHDOP,
		MaxHDOP:          stats.MaxHDOP,
		HDOPRating:       stats.HDOPRating,
		FixMode:          dominantFix(stats.FixBreakdown),
		MeanSpeedMPS:     stats.MeanSpeedMPS,
		MaxSpeedMPS:      stats.MaxSpeedMPS,
	}
}

// dominantFix returns the fix label with the highest count, breaking ties
// lexicographically so the result is stable.
func dominantFix(breakdown map[string]int) string {
	if len(breakdown) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(breakdown))
	for label := range breakdown {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best := labels[0]
	for _, label := range labels[1:] {
		if breakdown[label] > breakdown[best] {
			best = label
		}
	}
	return best
}
