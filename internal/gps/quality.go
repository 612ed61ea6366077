package gps

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Rolling window sizes for receiver diagnostics. Positions are never kept
// here, only quality indicators.
const (
	qualityWindow = 100
	speedWindow   = 50
)

// QualitySample is one receiver quality observation, typically parsed from a
// GGA sentence.
type QualitySample struct {
	Satellites int       `json:"satellites"`
	HDOP       float64   `json:"hdop"`
	FixQuality int       `json:"fix_quality"`
	At         time.Time `json:"at"`
}

// QualityStats aggregates the current rolling windows.
type QualityStats struct {
	Samples          int            `json:"samples"`
	MeanSatellites   float64        `json:"mean_satellites"`
	StdDevSatellites float64        `json:"stddev_satellites"`
	MeanHDOP         float64        `json:"mean_hdop"`
	MinHDOP          float64        `json:"min_hdop"`
	MaxHDOP          float64        `json:"max_hdop"`
	HDOPRating       string         `json:"hdop_rating"`
	FixBreakdown     map[string]int `json:"fix_breakdown"`
	MeanSpeedMPS     float64        `json:"mean_speed_mps"`
	MaxSpeedMPS      float64        `json:"max_speed_mps"`
}

// QualityTracker keeps bounded rolling windows of receiver quality samples
// and speeds for one source.
type QualityTracker struct {
	mu      sync.Mutex
	samples []QualitySample
	speeds  []float64
}

func NewQualityTracker() *QualityTracker {
	return &QualityTracker{}
}

// AddSample appends a quality observation, evicting the oldest once the
// window is full.
func (q *QualityTracker) AddSample(s QualitySample) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.samples = append(q.samples, s)
	if len(q.samples) > qualityWindow {
		q.samples = q.samples[len(q.samples)-qualityWindow:]
	}
}

// AddSpeed appends a speed-over-ground observation in m/s.
func (q *QualityTracker) AddSpeed(mps float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.speeds = append(q.speeds, mps)
	if len(q.speeds) > speedWindow {
		q.speeds = q.speeds[len(q.speeds)-speedWindow:]
	}
}

// SampleCount returns the number of quality samples currently windowed.
func (q *QualityTracker) SampleCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.samples)
}

// Samples returns a copy of the current quality window, oldest first.
func (q *QualityTracker) Samples() []QualitySample {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QualitySample, len(q.samples))
	copy(out, q.samples)
	return out
}

// Stats computes aggregates over the current windows.
func (q *QualityTracker) Stats() QualityStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := QualityStats{
		Samples:      len(q.samples),
		FixBreakdown: make(map[string]int),
	}
	if len(q.samples) == 0 {
		return out
	}

	sats := make([]float64, len(q.samples))
	hdops := make([]float64, len(q.samples))
	out.MinHDOP = q.samples[0].HDOP
	for i, s := range q.samples {
		sats[i] = float64(s.Satellites)
		hdops[i] = s.HDOP
		if s.HDOP < out.MinHDOP {
			out.MinHDOP = s.HDOP
		}
		if s.HDOP > out.MaxHDOP {
			out.MaxHDOP = s.HDOP
		}
		out.FixBreakdown[FixQualityLabel(s.FixQuality)]++
	}
	out.MeanSatellites = stat.Mean(sats, nil)
	if len(sats) > 1 {
		out.StdDevSatellites = stat.StdDev(sats, nil)
	}
	out.MeanHDOP = stat.Mean(hdops, nil)
	out.HDOPRating = HDOPRating(out.MeanHDOP)

	if len(q.speeds) > 0 {
		out.MeanSpeedMPS = stat.Mean(q.speeds, nil)
		for _, v := range q.speeds {
			if v > out.MaxSpeedMPS {
				out.MaxSpeedMPS = v
			}
		}
	}
	return out
}

// HDOPRating maps a horizontal dilution of precision to a rating band.
func HDOPRating(hdop float64) string {
	switch {
	case hdop <= 0:
		return "unknown"
	case hdop < 1:
		return "ideal"
	case hdop < 2:
		return "excellent"
	case hdop < 5:
		return "good"
	case hdop < 10:
		return "moderate"
	case hdop < 20:
		return "fair"
	default:
		return "poor"
	}
}

// FixQualityLabel maps a GGA fix quality indicator to its name.
func FixQualityLabel(quality int) string {
	switch quality {
	case 0:
		return "invalid"
	case 1:
		return "gps"
	case 2:
		return "dgps"
	case 3:
		return "pps"
	case 4:
		return "rtk"
	case 5:
		return "float_rtk"
	case 6:
		return "estimated"
	default:
		return "other"
	}
}
