// Package stream supervises the camera frame pipeline: it polls frames for
// the detector, health-checks the camera, and applies a bounded restart
// policy when the local pipeline stalls.
package stream

import (
	"context"
	"errors"
	"time"
)

// Health classifies the supervised stream.
type Health string

const (
	// HealthOK means frames are flowing and the camera answers.
	HealthOK Health = "ok"
	// HealthStalled means the camera claims to stream but frames or its API
	// have stopped responding; the supervisor is spending restart budget.
	HealthStalled Health = "stalled"
	// HealthStopped means supervision is not running, either because it was
	// never started, was stopped, or the camera reported it is not streaming.
	HealthStopped Health = "stopped"
	// HealthFailed is terminal: the restart budget is exhausted and the
	// stream needs manual intervention before a fresh Start.
	HealthFailed Health = "failed"
)

// ErrAlreadyRunning is returned by Start while a session is active.
var ErrAlreadyRunning = errors.New("stream already running")

// Frame is one payload read from the frame source.
type Frame struct {
	Data []byte
	At   time.Time
}

// FrameSource is the local polling path the supervisor owns. Close must be
// safe to call repeatedly; a restart is Close followed by Open.
type FrameSource interface {
	Open(ctx context.Context) error
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// HealthProber asks the upstream camera whether it is still streaming. An
// error means the camera API is unresponsive, which is a stall signal, not a
// deliberate stop.
type HealthProber interface {
	Streaming(ctx context.Context) (bool, error)
}

// Session is the supervisor's published state.
type Session struct {
	Running           bool      `json:"running"`
	Health            Health    `json:"health"`
	RestartCount      int       `json:"restart_count"`
	Frames            int       `json:"frames"`
	LastFrameAt       time.Time `json:"last_frame_at"`
	LastHealthCheckAt time.Time `json:"last_health_check_at"`
	LastError         string    `json:"last_error,omitempty"`
}
