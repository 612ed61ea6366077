// Package eventlog keeps a bounded in-memory ring of operator-facing events
// and fans new events out to live subscribers. It is a display log, not a
// durable store: once an event falls off the ring it is gone.
package eventlog

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/corvid-aero/groundstation/internal/monitoring"
	"github.com/corvid-aero/groundstation/internal/timeutil"
)

// Level classifies an event for display.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
	LevelSuccess Level = "SUCCESS"
)

// Component names the subsystem an event came from.
type Component string

const (
	ComponentDrone    Component = "DRONE"
	ComponentUser     Component = "USER"
	ComponentSystem   Component = "SYSTEM"
	ComponentGimbal   Component = "GIMBAL"
	ComponentFollow   Component = "FOLLOW"
	ComponentCamera   Component = "CAMERA"
	ComponentTracking Component = "TRACKING"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 100

// subscriberBuffer bounds each subscriber channel; a subscriber that falls
// further behind than this starts losing events rather than blocking Append.
const subscriberBuffer = 16

// Event is one display log entry. Timestamp is pre-formatted for the
// dashboard; At carries the full time for ordering.
type Event struct {
	At        time.Time `json:"-"`
	Timestamp string    `json:"timestamp"`
	Level     Level     `json:"level"`
	Component Component `json:"component"`
	Message   string    `json:"message"`
}

// Log is the bounded event ring. Safe for concurrent use.
type Log struct {
	mu          sync.Mutex
	clock       timeutil.Clock
	capacity    int
	events      []Event
	subscribers map[string]chan Event
}

// New creates a log holding at most capacity events. A nil clock falls back
// to the real clock; capacity <= 0 uses DefaultCapacity.
func New(clock timeutil.Clock, capacity int) *Log {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		clock:       clock,
		capacity:    capacity,
		subscribers: make(map[string]chan Event),
	}
}

// Append records an event, evicting the oldest entry when the ring is full,
// and delivers it to subscribers without blocking. The event is echoed to
// the dev log.
func (l *Log) Append(component Component, level Level, format string, args ...any) {
	now := l.clock.Now()
	ev := Event{
		At:        now,
		Timestamp: now.Format("15:04:05"),
		Level:     level,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
	}
	monitoring.Logf("[%s] %s: %s", ev.Level, ev.Component, ev.Message)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	for _, ch := range l.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall the writer.
		}
	}
}

// Recent returns up to n events, newest first. n <= 0 returns everything.
func (l *Log) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = l.events[len(l.events)-1-i]
	}
	return out
}

// Len returns the number of events currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Clear empties the ring. Subscribers are unaffected.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// Subscribe registers a live event consumer and returns its id and channel.
// The channel is closed on Unsubscribe.
func (l *Log) Subscribe() (string, <-chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := randomID()
	ch := make(chan Event, subscriberBuffer)
	l.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored.
func (l *Log) Unsubscribe(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, ok := l.subscribers[id]; ok {
		close(ch)
		delete(l.subscribers, id)
	}
}

func randomID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
