package api

import (
	"encoding/json"
	"net/http"

	"github.com/corvid-aero/groundstation/internal/config"
	"github.com/corvid-aero/groundstation/internal/eventlog"
	"github.com/corvid-aero/groundstation/internal/follow"
	"github.com/corvid-aero/groundstation/internal/gps"
	"github.com/corvid-aero/groundstation/internal/httputil"
	"github.com/corvid-aero/groundstation/internal/track"
)

// maxTuningBody caps a tuning update payload, matching the tuning file
// size limit.
const maxTuningBody = 1 << 20

// tuningView is the flat document served by /tuning: every parameter with
// the value currently in force, durations rendered as strings. The keys
// match the tuning file schema, so a GET response body is valid POST input.
type tuningView struct {
	TickInterval         string  `json:"tick_interval"`
	ErrorBackoff         string  `json:"error_backoff"`
	HysteresisM          float64 `json:"hysteresis_m"`
	CommandTimeout       string  `json:"command_timeout"`
	ConfirmFraction      float64 `json:"confirm_fraction"`
	ConfirmTimeout       string  `json:"confirm_timeout"`
	UnavailableTolerance int     `json:"unavailable_tolerance"`

	GPSStaleness     string  `json:"gps_staleness"`
	GPSFreshAge      string  `json:"gps_fresh_age"`
	GPSRecentAge     string  `json:"gps_recent_age"`
	GPSGoodAccuracyM float64 `json:"gps_good_accuracy_m"`

	GraceFrames int     `json:"grace_frames"`
	FrameWidth  int     `json:"frame_width"`
	FrameHeight int     `json:"frame_height"`
	YawGainDeg  float64 `json:"yaw_gain_deg"`
	TiltGainDeg float64 `json:"tilt_gain_deg"`
	MaxStepDeg  float64 `json:"max_step_deg"`
	Deadband    float64 `json:"deadband"`

	FrameInterval     string `json:"frame_interval"`
	HealthInterval    string `json:"health_interval"`
	RequestTimeout    string `json:"request_timeout"`
	MaxRestarts       int    `json:"max_restarts"`
	FrameFailureLimit int    `json:"frame_failure_limit"`
}

func newTuningView(cfg *config.TuningConfig, gains track.Gains) tuningView {
	return tuningView{
		TickInterval:         cfg.GetTickInterval().String(),
		ErrorBackoff:         cfg.GetErrorBackoff().String(),
		HysteresisM:          cfg.GetHysteresisM(),
		CommandTimeout:       cfg.GetCommandTimeout().String(),
		ConfirmFraction:      cfg.GetConfirmFraction(),
		ConfirmTimeout:       cfg.GetConfirmTimeout().String(),
		UnavailableTolerance: cfg.GetUnavailableTolerance(),

		GPSStaleness:     cfg.GetGPSStaleness().String(),
		GPSFreshAge:      cfg.GetGPSFreshAge().String(),
		GPSRecentAge:     cfg.GetGPSRecentAge().String(),
		GPSGoodAccuracyM: cfg.GetGPSGoodAccuracyM(),

		GraceFrames: cfg.GetGraceFrames(),
		FrameWidth:  cfg.GetFrameWidth(),
		FrameHeight: cfg.GetFrameHeight(),
		YawGainDeg:  gains.YawDeg,
		TiltGainDeg: gains.TiltDeg,
		MaxStepDeg:  gains.MaxStepDeg,
		Deadband:    gains.Deadband,

		FrameInterval:     cfg.GetFrameInterval().String(),
		HealthInterval:    cfg.GetHealthInterval().String(),
		RequestTimeout:    cfg.GetRequestTimeout().String(),
		MaxRestarts:       cfg.GetMaxRestarts(),
		FrameFailureLimit: cfg.GetFrameFailureLimit(),
	}
}

// currentGains returns the framing gains in force.
func (s *Server) currentGains() track.Gains {
	s.tuningMu.RLock()
	defer s.tuningMu.RUnlock()
	return s.gains
}

// handleTuning serves the runtime tuning document. GET returns the values in
// force; POST merges a partial document over them and pushes the result to
// the running components. Loop cadences land on the follow controller's next
// tick and the stream supervisor's next session.
func (s *Server) handleTuning(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.tuningMu.RLock()
		view := newTuningView(s.tuning, s.gains)
		s.tuningMu.RUnlock()
		httputil.WriteJSONOK(w, view)
	case http.MethodPost:
		s.updateTuning(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// updateTuning applies a partial tuning document. Merge is by key presence:
// absent keys keep their values, an explicit null resets a parameter to its
// default. Nothing is applied unless the merged document validates.
func (s *Server) updateTuning(w http.ResponseWriter, r *http.Request) {
	s.tuningMu.RLock()
	merged := s.tuning.Clone()
	s.tuningMu.RUnlock()

	r.Body = http.MaxBytesReader(w, r.Body, maxTuningBody)
	if err := json.NewDecoder(r.Body).Decode(merged); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	if err := merged.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	gains := track.GainsFromTuning(merged)
	s.tuningMu.Lock()
	s.tuning = merged
	s.gains = gains
	s.tuningMu.Unlock()

	s.tracker.SetConfig(track.ConfigFromTuning(merged))
	s.arbitrator.SetConfig(gps.ArbitratorConfigFromTuning(merged))
	s.follow.SetConfig(follow.ConfigFromTuning(merged))
	s.supervisor.SetTuning(merged)

	s.events.Append(eventlog.ComponentSystem, eventlog.LevelInfo, "tuning parameters updated")
	httputil.WriteJSONOK(w, newTuningView(merged, gains))
}
