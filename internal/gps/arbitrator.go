package gps

import (
	"sync"
	"time"

	"github.com/corvid-aero/groundstation/internal/config"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// Health classifies how much the follow controller should trust the active
// source. Unavailable is a degraded state, not an error: callers hold
// position rather than abort.
type Health string

const (
	HealthExcellent   Health = "excellent"
	HealthGood        Health = "good"
	HealthFair        Health = "fair"
	HealthPoor        Health = "poor"
	HealthManual      Health = "manual"
	HealthUnavailable Health = "unavailable"
)

// ArbitratorConfig holds the thresholds for eligibility and health
// classification.
type ArbitratorConfig struct {
	// Priority lists sources from most to least preferred.
	Priority []SourceID

	// Staleness is the maximum reading age for automatic sources to stay
	// eligible. Manual readings never expire.
	Staleness time.Duration

	// FreshAge and RecentAge bound the excellent and good health bands.
	FreshAge  time.Duration
	RecentAge time.Duration

	// GoodAccuracy is the horizontal accuracy (meters) at or under which a
	// fresh reading rates excellent.
	GoodAccuracy float64
}

// DefaultArbitratorConfig returns the thresholds used in production.
func DefaultArbitratorConfig() ArbitratorConfig {
	return ArbitratorConfig{
		Priority:     []SourceID{SourcePhone, SourceLaptop, SourceManual},
		Staleness:    10 * time.Second,
		FreshAge:     2 * time.Second,
		RecentAge:    5 * time.Second,
		GoodAccuracy: 10.0,
	}
}

// ArbitratorConfigFromTuning builds the arbitration thresholds from a loaded
// TuningConfig. The priority order is not tunable.
func ArbitratorConfigFromTuning(cfg *config.TuningConfig) ArbitratorConfig {
	return ArbitratorConfig{
		Priority:     []SourceID{SourcePhone, SourceLaptop, SourceManual},
		Staleness:    cfg.GetGPSStaleness(),
		FreshAge:     cfg.GetGPSFreshAge(),
		RecentAge:    cfg.GetGPSRecentAge(),
		GoodAccuracy: cfg.GetGPSGoodAccuracyM(),
	}
}

// Arbitrator picks the highest-priority eligible reading from a registry.
// Identical registry contents, clock, and thresholds always produce the same
// winner.
type Arbitrator struct {
	registry *Registry
	clock    timeutil.Clock

	mu     sync.RWMutex
	config ArbitratorConfig
}

// NewArbitrator creates an arbitrator over the registry. A nil clock falls
// back to the real clock; a zero-value config is replaced with defaults.
func NewArbitrator(registry *Registry, clock timeutil.Clock, config ArbitratorConfig) *Arbitrator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if len(config.Priority) == 0 {
		config = DefaultArbitratorConfig()
	}
	return &Arbitrator{registry: registry, clock: clock, config: config}
}

// SetConfig replaces the arbitration thresholds. An empty priority list
// keeps the current order. The next Active call observes the new values.
func (a *Arbitrator) SetConfig(config ArbitratorConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(config.Priority) == 0 {
		config.Priority = a.config.Priority
	}
	a.config = config
}

func (a *Arbitrator) snapshotConfig() ArbitratorConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// Active returns the highest-priority eligible reading and its health.
// When no source is eligible it returns a zero Reading and
// HealthUnavailable.
func (a *Arbitrator) Active() (Reading, Health) {
	cfg := a.snapshotConfig()
	now := a.clock.Now()
	for _, id := range cfg.Priority {
		r, ok := a.registry.Latest(id)
		if !ok {
			continue
		}
		if !eligible(r, now, cfg) {
			continue
		}
		return r, healthOf(r, now, cfg)
	}
	return Reading{}, HealthUnavailable
}

// HealthOf classifies a reading against the current clock without consulting
// priority. Used by the status API to annotate every source in a snapshot.
func (a *Arbitrator) HealthOf(r Reading) Health {
	return healthOf(r, a.clock.Now(), a.snapshotConfig())
}

func eligible(r Reading, now time.Time, cfg ArbitratorConfig) bool {
	if r.Source == SourceManual {
		return true
	}
	return r.Age(now) <= cfg.Staleness
}

func healthOf(r Reading, now time.Time, cfg ArbitratorConfig) Health {
	if r.Source == SourceManual {
		return HealthManual
	}
	age := r.Age(now)
	switch {
	case age < cfg.FreshAge && r.Accuracy != nil && *r.Accuracy <= cfg.GoodAccuracy:
		return HealthExcellent
	case age < cfg.RecentAge:
		return HealthGood
	case age <= cfg.Staleness:
		return HealthFair
	default:
		return HealthPoor
	}
}
