package track

import (
	"math"

	"github.com/corvid-aero/groundstation/internal/config"
)

// Gains parameterizes the proportional framing controller. Offsets are
// normalized by frame half-width/half-height before the gain is applied, so
// YawDeg and TiltDeg are the adjustment produced by a box sitting at the
// frame edge.
type Gains struct {
	YawDeg  float64 `json:"yaw_deg"`
	TiltDeg float64 `json:"tilt_deg"`

	// MaxStepDeg clamps either axis per tick so a single noisy frame cannot
	// saturate the gimbal.
	MaxStepDeg float64 `json:"max_step_deg"`

	// Deadband is the normalized offset magnitude treated as centered.
	Deadband float64 `json:"deadband"`
}

// DefaultGains returns the stock framing gains.
func DefaultGains() Gains {
	return Gains{
		YawDeg:     30,
		TiltDeg:    20,
		MaxStepDeg: 10,
		Deadband:   0.05,
	}
}

// GainsFromTuning builds framing Gains from a loaded TuningConfig.
func GainsFromTuning(cfg *config.TuningConfig) Gains {
	return Gains{
		YawDeg:     cfg.GetYawGainDeg(),
		TiltDeg:    cfg.GetTiltGainDeg(),
		MaxStepDeg: cfg.GetMaxStepDeg(),
		Deadband:   cfg.GetDeadband(),
	}
}

// Adjustment is a per-tick gimbal framing nudge in degrees. Positive yaw
// turns right, positive tilt points further down (pixel y grows downward).
type Adjustment struct {
	YawDeg  float64 `json:"yaw_deg"`
	TiltDeg float64 `json:"tilt_deg"`
}

// IsZero reports whether the adjustment leaves the gimbal alone, meaning the
// target is already centered within the deadband.
func (a Adjustment) IsZero() bool {
	return a.YawDeg == 0 && a.TiltDeg == 0
}

// ComputeAdjustment maps a pixel offset from frame center to a clamped
// yaw/tilt nudge. Degenerate frame dimensions yield a zero adjustment.
func ComputeAdjustment(offsetX, offsetY, frameW, frameH float64, g Gains) Adjustment {
	if frameW <= 0 || frameH <= 0 {
		return Adjustment{}
	}

	nx := offsetX / (frameW / 2)
	ny := offsetY / (frameH / 2)

	var adj Adjustment
	if math.Abs(nx) > g.Deadband {
		adj.YawDeg = clamp(nx*g.YawDeg, g.MaxStepDeg)
	}
	if math.Abs(ny) > g.Deadband {
		adj.TiltDeg = clamp(ny*g.TiltDeg, g.MaxStepDeg)
	}
	return adj
}

func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
