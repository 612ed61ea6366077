package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /tuning endpoint so the same JSON can be used
// for both startup configuration and runtime updates.
type TuningConfig struct {
	// Follow loop params
	TickInterval         *string  `json:"tick_interval,omitempty"` // duration string like "3s"
	ErrorBackoff         *string  `json:"error_backoff,omitempty"` // duration string like "5s"
	HysteresisM          *float64 `json:"hysteresis_m,omitempty"`
	CommandTimeout       *string  `json:"command_timeout,omitempty"`
	ConfirmFraction      *float64 `json:"confirm_fraction,omitempty"`
	ConfirmTimeout       *string  `json:"confirm_timeout,omitempty"`
	UnavailableTolerance *int     `json:"unavailable_tolerance,omitempty"`

	// GPS arbitration params
	GPSStaleness     *string  `json:"gps_staleness,omitempty"`
	GPSFreshAge      *string  `json:"gps_fresh_age,omitempty"`
	GPSRecentAge     *string  `json:"gps_recent_age,omitempty"`
	GPSGoodAccuracyM *float64 `json:"gps_good_accuracy_m,omitempty"`

	// Person-lock tracker params
	GraceFrames *int     `json:"grace_frames,omitempty"`
	FrameWidth  *int     `json:"frame_width,omitempty"`
	FrameHeight *int     `json:"frame_height,omitempty"`
	YawGainDeg  *float64 `json:"yaw_gain_deg,omitempty"`
	TiltGainDeg *float64 `json:"tilt_gain_deg,omitempty"`
	MaxStepDeg  *float64 `json:"max_step_deg,omitempty"`
	Deadband    *float64 `json:"deadband,omitempty"`

	// Stream supervisor params
	FrameInterval     *string `json:"frame_interval,omitempty"` // duration string like "100ms"
	HealthInterval    *string `json:"health_interval,omitempty"`
	RequestTimeout    *string `json:"request_timeout,omitempty"`
	MaxRestarts       *int    `json:"max_restarts,omitempty"`
	FrameFailureLimit *int    `json:"frame_failure_limit,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// Clone returns a deep copy via a JSON round trip. The copy shares no
// pointers with the receiver, so decoding a partial update into it cannot
// write through to the original.
func (c *TuningConfig) Clone() *TuningConfig {
	out := EmptyTuningConfig()
	data, err := json.Marshal(c)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, out); err != nil {
		return EmptyTuningConfig()
	}
	return out
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/stream/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	durations := map[string]*string{
		"tick_interval":   c.TickInterval,
		"error_backoff":   c.ErrorBackoff,
		"command_timeout": c.CommandTimeout,
		"confirm_timeout": c.ConfirmTimeout,
		"gps_staleness":   c.GPSStaleness,
		"gps_fresh_age":   c.GPSFreshAge,
		"gps_recent_age":  c.GPSRecentAge,
		"frame_interval":  c.FrameInterval,
		"health_interval": c.HealthInterval,
		"request_timeout": c.RequestTimeout,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.HysteresisM != nil && *c.HysteresisM < 0 {
		return fmt.Errorf("hysteresis_m must be non-negative, got %f", *c.HysteresisM)
	}
	if c.ConfirmFraction != nil {
		if *c.ConfirmFraction <= 0 || *c.ConfirmFraction > 1 {
			return fmt.Errorf("confirm_fraction must be between 0 and 1, got %f", *c.ConfirmFraction)
		}
	}
	if c.Deadband != nil {
		if *c.Deadband < 0 || *c.Deadband >= 0.5 {
			return fmt.Errorf("deadband must be between 0 and 0.5, got %f", *c.Deadband)
		}
	}
	if c.GraceFrames != nil && *c.GraceFrames < 0 {
		return fmt.Errorf("grace_frames must be non-negative, got %d", *c.GraceFrames)
	}
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	if c.MaxRestarts != nil && *c.MaxRestarts < 0 {
		return fmt.Errorf("max_restarts must be non-negative, got %d", *c.MaxRestarts)
	}
	if c.FrameFailureLimit != nil && *c.FrameFailureLimit <= 0 {
		return fmt.Errorf("frame_failure_limit must be positive, got %d", *c.FrameFailureLimit)
	}

	return nil
}

// getDuration parses v as a duration, falling back to def when v is
// unset, empty, or malformed.
func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetTickInterval returns the follow control cadence or the default.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return getDuration(c.TickInterval, 3*time.Second)
}

// GetErrorBackoff returns the post-failure tick delay or the default.
func (c *TuningConfig) GetErrorBackoff() time.Duration {
	return getDuration(c.ErrorBackoff, 5*time.Second)
}

// GetHysteresisM returns the hysteresis_m value or the default.
func (c *TuningConfig) GetHysteresisM() float64 {
	if c.HysteresisM == nil {
		return 2.0
	}
	return *c.HysteresisM
}

// GetCommandTimeout returns the per-command driver timeout or the default.
func (c *TuningConfig) GetCommandTimeout() time.Duration {
	return getDuration(c.CommandTimeout, 5*time.Second)
}

// GetConfirmFraction returns the confirm_fraction value or the default.
func (c *TuningConfig) GetConfirmFraction() float64 {
	if c.ConfirmFraction == nil {
		return 0.95
	}
	return *c.ConfirmFraction
}

// GetConfirmTimeout returns the altitude confirmation deadline or the default.
func (c *TuningConfig) GetConfirmTimeout() time.Duration {
	return getDuration(c.ConfirmTimeout, 15*time.Second)
}

// GetUnavailableTolerance returns the unavailable_tolerance value or the default.
func (c *TuningConfig) GetUnavailableTolerance() int {
	if c.UnavailableTolerance == nil {
		return 3
	}
	return *c.UnavailableTolerance
}

// GetGPSStaleness returns the source eligibility window or the default.
func (c *TuningConfig) GetGPSStaleness() time.Duration {
	return getDuration(c.GPSStaleness, 10*time.Second)
}

// GetGPSFreshAge returns the excellent-health age bound or the default.
func (c *TuningConfig) GetGPSFreshAge() time.Duration {
	return getDuration(c.GPSFreshAge, 2*time.Second)
}

// GetGPSRecentAge returns the good-health age bound or the default.
func (c *TuningConfig) GetGPSRecentAge() time.Duration {
	return getDuration(c.GPSRecentAge, 5*time.Second)
}

// GetGPSGoodAccuracyM returns the gps_good_accuracy_m value or the default.
func (c *TuningConfig) GetGPSGoodAccuracyM() float64 {
	if c.GPSGoodAccuracyM == nil {
		return 10.0
	}
	return *c.GPSGoodAccuracyM
}

// GetGraceFrames returns the grace_frames value or the default.
func (c *TuningConfig) GetGraceFrames() int {
	if c.GraceFrames == nil {
		return 2
	}
	return *c.GraceFrames
}

// GetFrameWidth returns the frame_width value or the default.
func (c *TuningConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 1280
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 720
	}
	return *c.FrameHeight
}

// GetYawGainDeg returns the yaw_gain_deg value or the default.
func (c *TuningConfig) GetYawGainDeg() float64 {
	if c.YawGainDeg == nil {
		return 30
	}
	return *c.YawGainDeg
}

// GetTiltGainDeg returns the tilt_gain_deg value or the default.
func (c *TuningConfig) GetTiltGainDeg() float64 {
	if c.TiltGainDeg == nil {
		return 20
	}
	return *c.TiltGainDeg
}

// GetMaxStepDeg returns the max_step_deg value or the default.
func (c *TuningConfig) GetMaxStepDeg() float64 {
	if c.MaxStepDeg == nil {
		return 10
	}
	return *c.MaxStepDeg
}

// GetDeadband returns the deadband value or the default.
func (c *TuningConfig) GetDeadband() float64 {
	if c.Deadband == nil {
		return 0.05
	}
	return *c.Deadband
}

// GetFrameInterval returns the frame poll cadence or the default.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	return getDuration(c.FrameInterval, 100*time.Millisecond)
}

// GetHealthInterval returns the health check cadence or the default.
func (c *TuningConfig) GetHealthInterval() time.Duration {
	return getDuration(c.HealthInterval, 10*time.Second)
}

// GetRequestTimeout returns the per-request stream timeout or the default.
func (c *TuningConfig) GetRequestTimeout() time.Duration {
	return getDuration(c.RequestTimeout, 5*time.Second)
}

// GetMaxRestarts returns the max_restarts value or the default.
func (c *TuningConfig) GetMaxRestarts() int {
	if c.MaxRestarts == nil {
		return 3
	}
	return *c.MaxRestarts
}

// GetFrameFailureLimit returns the frame_failure_limit value or the default.
func (c *TuningConfig) GetFrameFailureLimit() int {
	if c.FrameFailureLimit == nil {
		return 15
	}
	return *c.FrameFailureLimit
}
