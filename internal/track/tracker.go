// Package track maintains the single person lock across detection frames and
// converts pixel-space framing offsets into gimbal adjustments.
package track

import (
	"errors"
	"sync"
	"time"

	"github.com/corvid-aero/groundstation/internal/config"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// ErrNotFound is returned when locking an id absent from the most recent
// detection set.
var ErrNotFound = errors.New("person not found")

// Detection is one bounding box reported by the external detector for a
// frame. Identities are ephemeral: the detector does not guarantee the same
// person keeps the same id across frames.
type Detection struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Confidence float64 `json:"confidence"`
}

// Center returns the pixel center of the bounding box.
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Config holds tracker parameters.
type Config struct {
	// GraceFrames is how many consecutive frames the locked id may be absent
	// before the lock auto-releases.
	GraceFrames int

	// Frame dimensions in pixels, used to compute the offset of the locked
	// box from frame center.
	FrameWidth  float64
	FrameHeight float64
}

// DefaultConfig returns tracker parameters for the stock 720p detector feed.
func DefaultConfig() Config {
	return Config{
		GraceFrames: 2,
		FrameWidth:  1280,
		FrameHeight: 720,
	}
}

// ConfigFromTuning builds a tracker Config from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		GraceFrames: cfg.GetGraceFrames(),
		FrameWidth:  float64(cfg.GetFrameWidth()),
		FrameHeight: float64(cfg.GetFrameHeight()),
	}
}

// LockStatus is a snapshot of the lock after processing a frame.
type LockStatus struct {
	Locked        bool       `json:"locked"`
	LockedID      string     `json:"locked_id,omitempty"`
	TargetVisible bool       `json:"target_visible"`
	GraceLeft     int        `json:"grace_left"`
	OffsetX       float64    `json:"offset_x"`
	OffsetY       float64    `json:"offset_y"`
	Box           *Detection `json:"box,omitempty"`
	AcquiredAt    time.Time  `json:"acquired_at"`
}

// Tracker owns the process-wide person lock. At most one identity is locked
// at a time; lock and unlock are idempotent under concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	clock  timeutil.Clock
	config Config

	latest []Detection

	locked     bool
	lockedID   string
	acquiredAt time.Time
	graceLeft  int

	visible          bool
	lastBox          Detection
	hasBox           bool
	offsetX, offsetY float64
}

// withDefaults replaces zero config fields with the stock values.
func withDefaults(config Config) Config {
	def := DefaultConfig()
	if config.GraceFrames <= 0 {
		config.GraceFrames = def.GraceFrames
	}
	if config.FrameWidth <= 0 {
		config.FrameWidth = def.FrameWidth
	}
	if config.FrameHeight <= 0 {
		config.FrameHeight = def.FrameHeight
	}
	return config
}

// New creates a tracker. A nil clock falls back to the real clock; zero
// config fields are replaced with defaults.
func New(config Config, clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{clock: clock, config: withDefaults(config)}
}

// SetConfig replaces the tracker parameters, normalizing zero fields as New
// does. The next frame observes the new values; a lock in its grace window
// keeps its remaining count until the target reappears.
func (t *Tracker) SetConfig(config Config) {
	config = withDefaults(config)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config = config
}

// Update feeds one frame's detections. An empty slice is valid: it clears
// target visibility but the lock survives until the grace period elapses.
func (t *Tracker) Update(detections []Detection) LockStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = append(t.latest[:0], detections...)

	if !t.locked {
		t.visible = false
		return t.statusLocked()
	}

	if d, ok := findByID(detections, t.lockedID); ok {
		t.adopt(d)
		return t.statusLocked()
	}

	// Locked id absent. Identity is best-effort: during grace, re-acquire the
	// detection nearest to the last known box rather than dropping the lock.
	if len(detections) > 0 && t.hasBox {
		t.lockedID = nearestTo(detections, t.lastBox).ID
		d, _ := findByID(detections, t.lockedID)
		t.adopt(d)
		return t.statusLocked()
	}

	t.visible = false
	t.graceLeft--
	if t.graceLeft <= 0 {
		t.unlockLocked()
	}
	return t.statusLocked()
}

// Lock engages the lock on an id from the most recent detection set. An
// absent id fails with ErrNotFound and changes nothing. Locking while
// already locked re-targets to the new id.
func (t *Tracker) Lock(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := findByID(t.latest, id)
	if !ok {
		return ErrNotFound
	}
	t.locked = true
	t.lockedID = id
	t.acquiredAt = t.clock.Now()
	t.adopt(d)
	return nil
}

// Unlock releases the lock. Unlocking an already-unlocked tracker is a
// no-op, so a caller racing the auto-unlock is safe.
func (t *Tracker) Unlock() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unlockLocked()
}

// Status returns the current lock snapshot without feeding a frame.
func (t *Tracker) Status() LockStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statusLocked()
}

// Adjustment computes the gimbal framing adjustment for the current offset.
// Returns a zero adjustment unless the locked target is visible.
func (t *Tracker) Adjustment(g Gains) Adjustment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.locked || !t.visible {
		return Adjustment{}
	}
	return ComputeAdjustment(t.offsetX, t.offsetY, t.config.FrameWidth, t.config.FrameHeight, g)
}

// adopt records a matched detection for the locked id and resets grace.
// Caller must hold t.mu.
func (t *Tracker) adopt(d Detection) {
	t.visible = true
	t.lastBox = d
	t.hasBox = true
	t.graceLeft = t.config.GraceFrames
	cx, cy := d.Center()
	t.offsetX = cx - t.config.FrameWidth/2
	t.offsetY = cy - t.config.FrameHeight/2
}

// unlockLocked clears all lock state. Caller must hold t.mu.
func (t *Tracker) unlockLocked() {
	t.locked = false
	t.lockedID = ""
	t.acquiredAt = time.Time{}
	t.graceLeft = 0
	t.visible = false
	t.hasBox = false
	t.lastBox = Detection{}
	t.offsetX = 0
	t.offsetY = 0
}

// statusLocked builds a snapshot. Caller must hold t.mu (read or write).
func (t *Tracker) statusLocked() LockStatus {
	s := LockStatus{
		Locked:        t.locked,
		LockedID:      t.lockedID,
		TargetVisible: t.visible,
		GraceLeft:     t.graceLeft,
		OffsetX:       t.offsetX,
		OffsetY:       t.offsetY,
		AcquiredAt:    t.acquiredAt,
	}
	if t.hasBox {
		box := t.lastBox
		s.Box = &box
	}
	return s
}

func findByID(detections []Detection, id string) (Detection, bool) {
	for _, d := range detections {
		if d.ID == id {
			return d, true
		}
	}
	return Detection{}, false
}

// nearestTo returns the detection whose center is closest to ref's center.
// Callers guarantee detections is non-empty.
func nearestTo(detections []Detection, ref Detection) Detection {
	rx, ry := ref.Center()
	best := detections[0]
	bestDist := centerDistSq(best, rx, ry)
	for _, d := range detections[1:] {
		if dist := centerDistSq(d, rx, ry); dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best
}

func centerDistSq(d Detection, x, y float64) float64 {
	cx, cy := d.Center()
	dx, dy := cx-x, cy-y
	return dx*dx + dy*dy
}
