package gpslog

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/corvid-aero/groundstation/internal/gps"
)

// SessionReport aggregates one session's stored snapshots into the numbers
// an operator reads after a flight: how good was reception, how stable, and
// what fix class the receiver held.
type SessionReport struct {
	Session        Session        `json:"session"`
	Snapshots      int            `json:"snapshots"`
	Duration       time.Duration  `json:"duration"`
	MeanSatellites float64        `json:"mean_satellites"`
	MeanHDOP       float64        `json:"mean_hdop"`
	MinHDOP        float64        `json:"min_hdop"`
	MaxHDOP        float64        `json:"max_hdop"`
	HDOPRating     string         `json:"hdop_rating"`
	MaxSpeedMPS    float64        `json:"max_speed_mps"`
	FixModes       map[string]int `json:"fix_modes"`
}

// SessionReport computes the aggregate report for one session. A session
// with no snapshots yields a report with zeroed statistics, not an error.
func (s *Store) SessionReport(sessionID string) (SessionReport, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return SessionReport{}, err
	}
	snaps, err := s.Snapshots(sessionID)
	if err != nil {
		return SessionReport{}, err
	}

	report := SessionReport{
		Session:   sess,
		Snapshots: len(snaps),
		FixModes:  make(map[string]int),
	}
	if sess.EndedAt != nil {
		report.Duration = sess.EndedAt.Sub(sess.StartedAt)
	} else if len(snaps) > 0 {
		report.Duration = snaps[len(snaps)-1].RecordedAt.Sub(sess.StartedAt)
	}
	if len(snaps) == 0 {
		return report, nil
	}

	sats := make([]float64, len(snaps))
	hdops := make([]float64, len(snaps))
	report.MinHDOP = snaps[0].MinHDOP
	for i, snap := range snaps {
		sats[i] = snap.MeanSatellites
		hdops[i] = snap.MeanHDOP
		if snap.MinHDOP < report.MinHDOP {
			report.MinHDOP = snap.MinHDOP
		}
		if snap.MaxHDOP > report.MaxHDOP {
			report.MaxHDOP = snap.MaxHDOP
		}
		if snap.MaxSpeedMPS > report.MaxSpeedMPS {
			report.MaxSpeedMPS = snap.MaxSpeedMPS
		}
		report.FixModes[snap.FixMode]++
	}
	report.MeanSatellites = stat.Mean(sats, nil)
	report.MeanHDOP = stat.Mean(hdops, nil)
	report.HDOPRating = gps.HDOPRating(report.MeanHDOP)

	return report, nil
}
