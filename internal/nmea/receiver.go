package nmea

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/monitoring"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// Horizontal accuracy is estimated as HDOP scaled by a nominal 5 m user
// range error, the usual rule of thumb for consumer receivers.
const hdopAccuracyBaseM = 5.0

// Subscriber is the part of a mux the receiver consumes.
type Subscriber interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// Fix is the merged view of the latest position sentences. GGA is the
// position authority; RMC contributes speed and course.
type Fix struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	AltitudeM  float64   `json:"altitude_m"`
	Satellites int       `json:"satellites"`
	HDOP       float64   `json:"hdop"`
	Quality    int       `json:"fix_quality"`
	SpeedMS    float64   `json:"speed_mps"`
	CourseDeg  float64   `json:"course_deg"`
	At         time.Time `json:"at"`
}

// ReceiverStatus summarizes the health of the NMEA feed.
type ReceiverStatus struct {
	Sentences   int  `json:"sentences"`
	ParseErrors int  `json:"parse_errors"`
	LastFix     *Fix `json:"last_fix,omitempty"`
}

// Receiver parses NMEA sentences into the position registry and quality
// statistics for the laptop source.
type Receiver struct {
	registry *gps.Registry
	quality  *gps.QualityTracker
	events   *eventlog.Log
	clock    timeutil.Clock

	mu          sync.Mutex
	lastFix     *Fix
	sentences   int
	parseErrors int
}

// NewReceiver creates a receiver. The registry, quality tracker, and event
// log may each be nil, disabling the corresponding output. A nil clock
// falls back to the real clock.
func NewReceiver(registry *gps.Registry, quality *gps.QualityTracker, events *eventlog.Log, clock timeutil.Clock) *Receiver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Receiver{
		registry: registry,
		quality:  quality,
		events:   events,
		clock:    clock,
	}
}

// Run subscribes to the mux and handles sentences until the context is done
// or the subscription channel closes.
func (r *Receiver) Run(ctx context.Context, mux Subscriber) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			r.Handle(line)
		}
	}
}

// Handle parses a single raw line. Sentence types other than GGA/RMC are
// counted and ignored; receivers chatter GSV/GSA constantly.
func (r *Receiver) Handle(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	r.mu.Lock()
	r.sentences++
	r.mu.Unlock()

	switch ClassifySentence(line) {
	case SentenceGGA:
		gga, err := ParseGGA(line)
		if err != nil {
			r.recordParseError(line, err)
			return
		}
		r.applyGGA(gga)
	case SentenceRMC:
		rmc, err := ParseRMC(line)
		if err != nil {
			r.recordParseError(line, err)
			return
		}
		r.applyRMC(rmc)
	}
}

func (r *Receiver) recordParseError(line string, err error) {
	r.mu.Lock()
	r.parseErrors++
	r.mu.Unlock()
	monitoring.Logf("nmea: discarding %q: %v", line, err)
}

func (r *Receiver) applyGGA(g GGA) {
	if g.Quality > 0 && r.quality != nil {
		r.quality.AddSample(gps.QualitySample{
			Satellites: g.Satellites,
			HDOP:       g.HDOP,
			FixQuality: g.Quality,
			At:         r.clock.Now(),
		})
	}
	if !g.HasFix {
		return
	}
	now := r.clock.Now()

	r.mu.Lock()
	acquired := r.lastFix == nil
	fix := Fix{
		Lat:        g.Lat,
		Lon:        g.Lon,
		AltitudeM:  g.AltitudeM,
		Satellites: g.Satellites,
		HDOP:       g.HDOP,
		Quality:    g.Quality,
		At:         now,
	}
	if r.lastFix != nil {
		fix.SpeedMS = r.lastFix.SpeedMS
		fix.CourseDeg = r.lastFix.CourseDeg
	}
	r.lastFix = &fix
	r.mu.Unlock()

	if r.registry != nil {
		alt := g.AltitudeM
		var accuracy *float64
		if g.HDOP > 0 {
			a := g.HDOP * hdopAccuracyBaseM
			accuracy = &a
		}
		if err := r.registry.Update(gps.SourceLaptop, g.Lat, g.Lon, &alt, accuracy); err != nil {
			monitoring.Logf("nmea: registry rejected fix: %v", err)
		}
	}
	if acquired && r.events != nil {
		r.events.Append(eventlog.ComponentSystem, eventlog.LevelSuccess,
			"gps fix acquired: %d satellites, hdop %.1f", g.Satellites, g.HDOP)
	}
}

func (r *Receiver) applyRMC(m RMC) {
	if !m.Valid {
		return
	}
	r.mu.Lock()
	if r.lastFix != nil {
		r.lastFix.SpeedMS = m.SpeedMS()
		r.lastFix.CourseDeg = m.CourseDeg
	}
	r.mu.Unlock()

	if r.quality != nil {
		r.quality.AddSpeed(m.SpeedMS())
	}
}

// Status returns feed counters and the latest fix.
func (r *Receiver) Status() ReceiverStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := ReceiverStatus{
		Sentences:   r.sentences,
		ParseErrors: r.parseErrors,
	}
	if r.lastFix != nil {
		fix := *r.lastFix
		st.LastFix = &fix
	}
	return st
}

// LastFix returns the most recent merged fix, if any sentence with a usable
// position has arrived.
func (r *Receiver) LastFix() (Fix, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastFix == nil {
		return Fix{}, false
	}
	return *r.lastFix, true
}

// AttachAdminRoutes exposes the current parsed fix and feed counters as a
// debug endpoint under /debug/.
func (r *Receiver) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleSilentFunc("gps-fix", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(r.Status())
	})
}
