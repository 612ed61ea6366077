package drone

import (
	"context"
	"sync"
	"time"

	"github.com/corvid-aero/groundstation/internal/geo"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// GotoCall records one reposition command issued to a SimVehicle.
type GotoCall struct {
	Point     geo.Point
	AltitudeM float64
}

// simDrainPerMinute is the battery percentage a SimVehicle uses per minute
// while armed.
const simDrainPerMinute = 0.5

// SimVehicle is an in-memory flight controller for bench mode and tests.
// Commands take effect instantly and every call is recorded. The battery
// drains against the clock while the vehicle is armed. Error fields, when
// set, are returned by the corresponding method; BlockGoto, when set, makes
// Goto wait until the channel closes or the context is cancelled.
type SimVehicle struct {
	mu    sync.Mutex
	clock timeutil.Clock
	state VehicleState

	TakeoffErr error
	LandErr    error
	GotoErr    error
	StateErr   error
	BlockGoto  chan struct{}

	armedAt   time.Time
	drained   float64
	takeoffs  int
	lands     int
	gotoCalls []GotoCall
}

// NewSimVehicle creates a landed, disarmed vehicle at the given position
// with a full battery.
func NewSimVehicle(clock timeutil.Clock, start geo.Point) *SimVehicle {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SimVehicle{
		clock: clock,
		state: VehicleState{
			Position: start,
			HasFix:   true,
			Mode:     "STABILIZE",
		},
	}
}

func (v *SimVehicle) Takeoff(ctx context.Context, altitudeM float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.TakeoffErr != nil {
		return v.TakeoffErr
	}
	v.takeoffs++
	if !v.state.Armed {
		v.armedAt = v.clock.Now()
	}
	v.state.Armed = true
	v.state.Mode = "GUIDED"
	v.state.AltitudeM = altitudeM
	return nil
}

func (v *SimVehicle) Land(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.LandErr != nil {
		return v.LandErr
	}
	v.lands++
	if v.state.Armed {
		v.drained += simDrainPerMinute * v.clock.Since(v.armedAt).Minutes()
	}
	v.state.Mode = "LAND"
	v.state.AltitudeM = 0
	v.state.Armed = false
	return nil
}

func (v *SimVehicle) Goto(ctx context.Context, p geo.Point, altitudeM float64) error {
	v.mu.Lock()
	block := v.BlockGoto
	v.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.GotoErr != nil {
		return v.GotoErr
	}
	v.gotoCalls = append(v.gotoCalls, GotoCall{Point: p, AltitudeM: altitudeM})
	v.state.Position = p
	v.state.AltitudeM = altitudeM
	return nil
}

func (v *SimVehicle) CurrentState(ctx context.Context) (VehicleState, error) {
	if err := ctx.Err(); err != nil {
		return VehicleState{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.StateErr != nil {
		return VehicleState{}, v.StateErr
	}
	st := v.state
	st.BatteryPct = v.batteryPct()
	return st, nil
}

// batteryPct computes the remaining charge. Callers hold mu.
func (v *SimVehicle) batteryPct() float64 {
	used := v.drained
	if v.state.Armed {
		used += simDrainPerMinute * v.clock.Since(v.armedAt).Minutes()
	}
	if used > 100 {
		used = 100
	}
	return 100 - used
}

// SetPosition moves the vehicle without recording a command. Used to script
// scenarios.
func (v *SimVehicle) SetPosition(p geo.Point, altitudeM float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Position = p
	v.state.AltitudeM = altitudeM
}

// SetHasFix controls whether the vehicle reports a position fix.
func (v *SimVehicle) SetHasFix(ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.HasFix = ok
}

// TakeoffCount returns how many takeoff commands succeeded.
func (v *SimVehicle) TakeoffCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.takeoffs
}

// LandCount returns how many land commands succeeded.
func (v *SimVehicle) LandCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lands
}

// GotoCalls returns a copy of every recorded reposition command.
func (v *SimVehicle) GotoCalls() []GotoCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]GotoCall, len(v.gotoCalls))
	copy(out, v.gotoCalls)
	return out
}

// SimGimbal is an in-memory gimbal recording every command.
type SimGimbal struct {
	mu sync.Mutex

	TiltErr   error
	CenterErr error

	tilts   []float64
	centers int
}

// NewSimGimbal creates a level gimbal.
func NewSimGimbal() *SimGimbal {
	return &SimGimbal{}
}

func (g *SimGimbal) SetTilt(ctx context.Context, angleDeg float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.TiltErr != nil {
		return g.TiltErr
	}
	g.tilts = append(g.tilts, angleDeg)
	return nil
}

func (g *SimGimbal) Center(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CenterErr != nil {
		return g.CenterErr
	}
	g.centers++
	g.tilts = append(g.tilts, 0)
	return nil
}

// Tilts returns every tilt angle commanded, including the zero written by
// Center.
func (g *SimGimbal) Tilts() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]float64, len(g.tilts))
	copy(out, g.tilts)
	return out
}

// CenterCount returns how many center commands succeeded.
func (g *SimGimbal) CenterCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.centers
}
