// Package gps maintains the latest position reading per source and arbitrates
// which source the follow controller should trust.
package gps

import (
	"errors"
	"time"
)

// SourceID identifies a position source feeding the registry.
type SourceID string

// Known sources, in arbitration priority order.
const (
	SourcePhone  SourceID = "phone"
	SourceLaptop SourceID = "laptop"
	SourceManual SourceID = "manual"
)

// ErrInvalidCoordinates is returned for readings outside WGS84 bounds or
// carrying NaN/Inf components.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Reading is the most recent position report from one source. ReceivedAt is
// assigned by the registry clock when the reading is stored, not by the
// sender.
type Reading struct {
	Source     SourceID  `json:"source"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Altitude   *float64  `json:"altitude,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Age returns how old the reading is relative to now.
func (r Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.ReceivedAt)
}
