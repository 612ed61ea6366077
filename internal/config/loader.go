package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/corvid-aero/groundstation/internal/units"
)

// CameraConfig points at the companion camera daemon on the drone side.
type CameraConfig struct {
	FrameURL  string `yaml:"frame_url" validate:"omitempty,url"`
	StatusURL string `yaml:"status_url" validate:"omitempty,url"`
}

// GPSConfig selects the laptop GPS receiver ports. SerialPath empty
// disables the serial listener; UDPPort 0 disables the UDP listener.
type GPSConfig struct {
	SerialPath string `yaml:"serial_path"`
	BaudRate   int    `yaml:"baud_rate" validate:"gte=0"`
	UDPPort    int    `yaml:"udp_port" validate:"gte=0,lte=65535"`
}

// Config is the root station configuration loaded from YAML.
type Config struct {
	Listen     string       `yaml:"listen" validate:"required"`
	Units      string       `yaml:"units" validate:"oneof=metric imperial"`
	DBPath     string       `yaml:"db_path"`
	TuningPath string       `yaml:"tuning_path"`
	Camera     CameraConfig `yaml:"camera"`
	GPS        GPSConfig    `yaml:"gps"`
}

// DefaultConfig returns the station defaults used when no config file is
// present. The camera URLs point at the drone-side daemon's usual address.
func DefaultConfig() Config {
	return Config{
		Listen: ":8080",
		Units:  units.Metric,
		DBPath: "gps_quality.db",
		Camera: CameraConfig{
			FrameURL:  "http://192.168.10.1:8081/frame",
			StatusURL: "http://192.168.10.1:8081/status",
		},
		GPS: GPSConfig{
			BaudRate: 9600,
			UDPPort:  11123,
		},
	}
}

// Load reads the station configuration from a YAML file. A missing file is
// not an error: the defaults cover a bench setup with no file at all.
// Fields omitted from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadTuning resolves the tuning parameters for a loaded Config: the file
// named by TuningPath when set, empty defaults otherwise.
func (c Config) LoadTuning() (*TuningConfig, error) {
	if c.TuningPath == "" {
		return EmptyTuningConfig(), nil
	}
	return LoadTuningConfig(c.TuningPath)
}
