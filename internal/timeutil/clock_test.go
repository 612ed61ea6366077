package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)

	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClockUntil(t *testing.T) {
	clock := RealClock{}
	future := time.Now().Add(time.Hour)

	if d := clock.Until(future); d < 59*time.Minute {
		t.Errorf("Until() returned %v, expected >= 59m", d)
	}
}

func TestRealClockTimerFires(t *testing.T) {
	clock := RealClock{}
	timer := clock.NewTimer(10 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Error("timer did not fire")
	}
}

func TestRealClockTickerFires(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClockNowAndSet(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}

	jumped := start.Add(48 * time.Hour)
	clock.Set(jumped)

	if !clock.Now().Equal(jumped) {
		t.Errorf("after Set: Now() = %v, want %v", clock.Now(), jumped)
	}
}

func TestMockClockSetDoesNotFire(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	timer := clock.NewTimer(time.Minute)

	// Set jumps time without delivering; Advance delivers.
	clock.Set(start.Add(time.Hour))

	select {
	case <-timer.C():
		t.Error("Set should not fire timers")
	default:
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(time.Hour)

	if want := start.Add(time.Hour); !clock.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", clock.Now(), want)
	}
}

func TestMockClockSinceUntil(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)

	if d := clock.Since(now.Add(-5 * time.Minute)); d != 5*time.Minute {
		t.Errorf("Since: got %v, want 5m", d)
	}

	if d := clock.Until(now.Add(10 * time.Minute)); d != 10*time.Minute {
		t.Errorf("Until: got %v, want 10m", d)
	}
}

func TestMockClockSleepRecords(t *testing.T) {
	clock := NewMockClock(time.Now())
	clock.Sleep(time.Second)
	clock.Sleep(2 * time.Second)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("got %d sleeps, want 2", len(sleeps))
	}

	if sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("got sleeps %v, want [1s 2s]", sleeps)
	}
}

func TestMockTimerFiresAfterDeadline(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	timer := clock.NewTimer(5 * time.Minute)

	select {
	case <-timer.C():
		t.Error("timer fired too early")
	default:
	}

	clock.Advance(6 * time.Minute)

	select {
	case <-timer.C():
	default:
		t.Error("timer did not fire after advance")
	}
}

func TestMockTimerFiresOnce(t *testing.T) {
	clock := NewMockClock(time.Now())
	timer := clock.NewTimer(time.Minute)

	clock.Advance(time.Minute)
	<-timer.C()

	clock.Advance(time.Hour)

	select {
	case <-timer.C():
		t.Error("single-shot timer fired twice")
	default:
	}
}

func TestMockTimerStop(t *testing.T) {
	clock := NewMockClock(time.Now())
	timer := clock.NewTimer(time.Minute)

	if !timer.Stop() {
		t.Error("Stop should return true for a pending timer")
	}

	clock.Advance(2 * time.Minute)

	select {
	case <-timer.C():
		t.Error("stopped timer should not fire")
	default:
	}

	if timer.Stop() {
		t.Error("Stop should return false once already stopped")
	}
}

func TestMockTimerResetReschedules(t *testing.T) {
	clock := NewMockClock(time.Now())
	timer := clock.NewTimer(time.Minute)

	clock.Advance(time.Minute)
	<-timer.C()

	// Reset re-arms relative to the current mock time.
	timer.Reset(30 * time.Second)

	clock.Advance(20 * time.Second)
	select {
	case <-timer.C():
		t.Error("reset timer fired before its new deadline")
	default:
	}

	clock.Advance(10 * time.Second)
	select {
	case <-timer.C():
	default:
		t.Error("reset timer did not fire at its new deadline")
	}
}

func TestMockClockAfter(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ch := clock.After(time.Hour)

	select {
	case <-ch:
		t.Error("After channel received too early")
	default:
	}

	clock.Advance(2 * time.Hour)

	select {
	case <-ch:
	default:
		t.Error("After channel did not receive after advance")
	}
}

func TestMockTickerTicks(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Minute)

	select {
	case <-ticker.C():
		t.Error("ticker fired too early")
	default:
	}

	clock.Advance(time.Minute)

	select {
	case <-ticker.C():
	default:
		t.Error("ticker did not fire after one interval")
	}
}

func TestMockTickerKeepsGrid(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(3 * time.Second)

	// 5s passes the 3s boundary; the next tick stays on the 6s grid.
	clock.Advance(5 * time.Second)
	<-ticker.C()

	clock.Advance(time.Second)

	select {
	case <-ticker.C():
	default:
		t.Error("ticker lost its grid after a partial advance")
	}
}

func TestMockTickerStop(t *testing.T) {
	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()
	clock.Advance(5 * time.Second)

	select {
	case <-ticker.C():
		t.Error("stopped ticker should not tick")
	default:
	}
}

func TestMockTickerResetChangesPeriod(t *testing.T) {
	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(time.Second)

	// Slow the cadence, as the control loop does when backing off.
	ticker.Reset(time.Minute)

	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Error("ticker kept its old period after Reset")
	default:
	}

	clock.Advance(55 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Error("ticker did not fire at its new period")
	}
}

func TestMockTickerResetRestartsStopped(t *testing.T) {
	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()
	ticker.Reset(time.Second)

	clock.Advance(time.Second)

	select {
	case <-ticker.C():
	default:
		t.Error("Reset should restart a stopped ticker")
	}
}
