package follow

import (
	"context"
	"fmt"

	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/geo"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/monitoring"
)

// Run drives the periodic control tick. It blocks until the context is
// cancelled or Shutdown is called, and returns nil on clean shutdown.
func (c *Controller) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.running {
		c.runMu.Unlock()
		return nil // already running
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.runMu.Unlock()

	defer func() {
		close(c.doneCh)
		c.runMu.Lock()
		c.running = false
		c.runMu.Unlock()
	}()

	cfg := c.configSnapshot()
	ticker := c.clock.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	monitoring.Logf("FollowController started: tick=%v hysteresis=%.1fm", cfg.TickInterval, cfg.HysteresisM)

	interval := cfg.TickInterval
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("FollowController stopping due to context cancellation")
			return nil
		case <-c.stopCh:
			monitoring.Logf("FollowController stopping due to Shutdown() call")
			return nil
		case <-ticker.C():
			err := c.tick(ctx)
			cfg = c.configSnapshot()
			next := cfg.TickInterval
			if err != nil {
				monitoring.Logf("FollowController: tick error: %v", err)
				next = cfg.ErrorBackoff
			}
			if next != interval {
				ticker.Reset(next)
				interval = next
			}
		}
	}
}

// Shutdown requests the control loop to stop and waits for it to finish. It
// is safe to call multiple times. The session state is left untouched.
func (c *Controller) Shutdown() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	select {
	case <-c.stopCh:
		// already closed
	default:
		close(c.stopCh)
	}
	c.runMu.Unlock()

	<-c.doneCh
}

// IsRunning returns whether the control loop is currently running.
func (c *Controller) IsRunning() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.running
}

// tick runs one control step. Errors are reported for backoff only; a
// failed tick never corrupts session state or tears the loop down.
func (c *Controller) tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticks++
	defer c.publishSnapshot()

	switch c.state {
	case StateStarting:
		return c.tickStarting(ctx)
	case StateFollowing:
		return c.tickFollowing(ctx)
	default:
		// Idle, returning, and failed sessions issue no commands.
		return nil
	}
}

// tickStarting issues the takeoff once, then waits for altitude
// confirmation. Confirmation is advisory: after ConfirmTimeout the session
// advances anyway.
func (c *Controller) tickStarting(ctx context.Context) error {
	if !c.takeoffIssued {
		cmdCtx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
		err := c.vehicle.Takeoff(cmdCtx, c.session.ElevationM)
		cancel()
		if err != nil {
			// Without a takeoff there is nothing to follow with.
			c.driverErrors++
			c.fail(fmt.Sprintf("takeoff failed: %v", err))
			return fmt.Errorf("takeoff: %w", err)
		}
		c.takeoffIssued = true
		c.takeoffAt = c.clock.Now()
		c.logEvent(eventlog.ComponentDrone, eventlog.LevelSuccess, "takeoff to %.0fm commanded", c.session.ElevationM)
		return nil
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
	st, err := c.vehicle.CurrentState(cmdCtx)
	cancel()
	switch {
	case err != nil:
		c.driverErrors++
		c.lastErr = err.Error()
		if c.clock.Since(c.takeoffAt) < c.config.ConfirmTimeout {
			return fmt.Errorf("current state: %w", err)
		}
		// Confirmation is best effort; proceed on timeout.
	case st.AltitudeM < c.config.ConfirmFraction*c.session.ElevationM:
		if c.clock.Since(c.takeoffAt) < c.config.ConfirmTimeout {
			return nil
		}
	}

	c.state = StateFollowing
	c.logEvent(eventlog.ComponentFollow, eventlog.LevelSuccess, "following at %.0fm elevation, %.0fm standoff", c.session.ElevationM, c.session.DistanceM)
	return nil
}

// tickFollowing recomputes the hold point from the active position source
// and repositions the drone when the change beats the hysteresis threshold.
func (c *Controller) tickFollowing(ctx context.Context) error {
	reading, health := c.arbitrator.Active()
	if health == gps.HealthUnavailable {
		// No position, no locomotion. The session holds and waits.
		c.unavailableTicks++
		if c.unavailableTicks == c.config.UnavailableTolerance {
			c.logEvent(eventlog.ComponentFollow, eventlog.LevelWarning, "no eligible position source, holding position")
		}
		return nil
	}
	if c.unavailableTicks >= c.config.UnavailableTolerance {
		c.logEvent(eventlog.ComponentFollow, eventlog.LevelSuccess, "position source %s recovered", reading.Source)
	}
	c.unavailableTicks = 0

	person := geo.Point{Lat: reading.Lat, Lon: reading.Lon}

	cmdCtx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
	vehicleState, err := c.vehicle.CurrentState(cmdCtx)
	cancel()
	if err != nil {
		c.driverErrors++
		c.lastErr = err.Error()
		c.logEvent(eventlog.ComponentDrone, eventlog.LevelError, "telemetry read failed: %v", err)
		return fmt.Errorf("current state: %w", err)
	}

	// Hold point: the person's position offset by the standoff distance
	// along the reciprocal of the drone's bearing to the person, so the
	// drone keeps its current side. Without a vehicle fix, fall back to a
	// due-south offset.
	holdBearing := 180.0
	horizontalM := c.session.DistanceM
	if vehicleState.HasFix {
		var bearingToPerson float64
		horizontalM, bearingToPerson = geo.DistanceBearing(vehicleState.Position, person)
		if horizontalM > 0 {
			holdBearing = geo.ReciprocalBearing(bearingToPerson)
		}
	}
	target := TargetPoint{
		Point:     geo.OffsetPoint(person, c.session.DistanceM, holdBearing),
		AltitudeM: c.session.ElevationM,
	}

	if !c.hasTarget || geo.Distance(c.lastTarget.Point, target.Point) > c.config.HysteresisM {
		cmdCtx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		err = c.vehicle.Goto(cmdCtx, target.Point, target.AltitudeM)
		cancel()
		if err != nil {
			// Surfaced, logged, retried next tick. The session survives.
			c.driverErrors++
			c.lastErr = err.Error()
			c.logEvent(eventlog.ComponentDrone, eventlog.LevelError, "goto failed: %v", err)
			return fmt.Errorf("goto: %w", err)
		}
		c.lastTarget = target
		c.hasTarget = true
	}

	c.pointGimbal(ctx, horizontalM)
	return nil
}

// pointGimbal keeps the camera on the subject: visual framing nudges while a
// lock is engaged, geometric pointing from the standoff triangle otherwise.
// A locked but momentarily hidden target holds the current tilt. Gimbal
// failures are logged and retried next tick.
func (c *Controller) pointGimbal(ctx context.Context, horizontalM float64) {
	if c.gimbal == nil {
		return
	}

	tilt := clampTilt(geo.GimbalTilt(horizontalM, c.session.ElevationM))
	if c.tracker != nil && c.tracker.Status().Locked {
		adj := c.tracker.Adjustment(c.config.Gains)
		if adj.IsZero() {
			return
		}
		tilt = clampTilt(c.gimbalTiltDeg + adj.TiltDeg)
	}
	if tilt == c.gimbalTiltDeg {
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
	err := c.gimbal.SetTilt(cmdCtx, tilt)
	cancel()
	if err != nil {
		c.driverErrors++
		c.lastErr = err.Error()
		c.logEvent(eventlog.ComponentGimbal, eventlog.LevelError, "tilt adjustment failed: %v", err)
		return
	}
	c.gimbalTiltDeg = tilt
}

func clampTilt(deg float64) float64 {
	if deg < 0 {
		return 0
	}
	if deg > 90 {
		return 90
	}
	return deg
}
