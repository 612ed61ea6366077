package gps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/corvid-aero/groundstation/internal/geo"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// Registry stores the latest reading per source. Updates are last-writer-wins
// with monotonic timestamps: a stored reading is never replaced by one whose
// assigned timestamp is older.
type Registry struct {
	mu       sync.RWMutex
	clock    timeutil.Clock
	readings map[SourceID]Reading
}

// NewRegistry creates an empty registry. A nil clock falls back to the real
// clock.
func NewRegistry(clock timeutil.Clock) *Registry {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Registry{
		clock:    clock,
		readings: make(map[SourceID]Reading),
	}
}

// Update stores a reading for the source, creating the slot if the source is
// new. Coordinates are validated before any state changes. An update whose
// assigned timestamp would move the stored reading backwards is discarded.
func (g *Registry) Update(id SourceID, lat, lon float64, altitude, accuracy *float64) error {
	if !geo.Valid(lat, lon) {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if existing, ok := g.readings[id]; ok && existing.ReceivedAt.After(now) {
		// Stale writer lost the race; keep the newer reading.
		return nil
	}
	g.readings[id] = Reading{
		Source:     id,
		Lat:        lat,
		Lon:        lon,
		Altitude:   altitude,
		Accuracy:   accuracy,
		ReceivedAt: now,
	}
	return nil
}

// SetManual stores an operator-entered position. Manual readings never go
// stale in arbitration.
func (g *Registry) SetManual(lat, lon float64) error {
	return g.Update(SourceManual, lat, lon, nil, nil)
}

// Latest returns the current reading for the source.
func (g *Registry) Latest(id SourceID) (Reading, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.readings[id]
	return r, ok
}

// Snapshot returns all current readings ordered by arbitration priority, with
// any unrecognized sources after the known ones.
func (g *Registry) Snapshot() []Reading {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Reading, 0, len(g.readings))
	seen := make(map[SourceID]bool, len(g.readings))
	for _, id := range []SourceID{SourcePhone, SourceLaptop, SourceManual} {
		if r, ok := g.readings[id]; ok {
			out = append(out, r)
			seen[id] = true
		}
	}
	var rest []Reading
	for id, r := range g.readings {
		if !seen[id] {
			rest = append(rest, r)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Source < rest[j].Source })
	return append(out, rest...)
}

// Clear removes all stored readings. Intended for tests and session resets.
func (g *Registry) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readings = make(map[SourceID]Reading)
}
