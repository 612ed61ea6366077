// Package drone defines the flight-controller and gimbal contracts the
// ground station drives, plus simulated implementations for bench use.
package drone

import (
	"context"

	"github.com/corvid-aero/groundstation/internal/geo"
)

// DefaultTakeoffAltitudeM is the altitude for a plain takeoff outside follow
// mode.
const DefaultTakeoffAltitudeM = 1.5

// VehicleState is a telemetry snapshot from the flight controller.
type VehicleState struct {
	Position   geo.Point `json:"position"`
	HasFix     bool      `json:"has_fix"`
	AltitudeM  float64   `json:"altitude_m"`
	Armed      bool      `json:"armed"`
	Mode       string    `json:"mode"`
	HeadingDeg float64   `json:"heading_deg"`
	BatteryPct float64   `json:"battery_pct"`
}

// FlightController is the flight driver boundary. Every call is
// fail-capable: connection loss and command rejection come back as errors
// and are never swallowed by implementations.
type FlightController interface {
	// Takeoff arms if needed and climbs to the given relative altitude.
	Takeoff(ctx context.Context, altitudeM float64) error

	// Land descends and disarms where the vehicle currently is.
	Land(ctx context.Context) error

	// Goto repositions the vehicle to the point at the given relative
	// altitude.
	Goto(ctx context.Context, p geo.Point, altitudeM float64) error

	// CurrentState reports the latest telemetry snapshot.
	CurrentState(ctx context.Context) (VehicleState, error)
}

// Gimbal is the camera gimbal driver boundary.
type Gimbal interface {
	// SetTilt points the camera angleDeg below the horizon.
	SetTilt(ctx context.Context, angleDeg float64) error

	// Center returns the camera to level.
	Center(ctx context.Context) error
}
