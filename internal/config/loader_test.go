package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load() with missing file: %v", err)
	}
	def := DefaultConfig()
	if cfg.Listen != def.Listen {
		t.Errorf("Listen = %q, want %q", cfg.Listen, def.Listen)
	}
	if cfg.Units != "metric" {
		t.Errorf("Units = %q, want metric", cfg.Units)
	}
	if cfg.GPS.UDPPort != 11123 {
		t.Errorf("GPS.UDPPort = %d, want 11123", cfg.GPS.UDPPort)
	}
	if cfg.GPS.BaudRate != 9600 {
		t.Errorf("GPS.BaudRate = %d, want 9600", cfg.GPS.BaudRate)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yml")
	doc := `
listen: ":9090"
units: imperial
db_path: /tmp/quality.db
camera:
  frame_url: http://10.0.0.5:8081/frame
  status_url: http://10.0.0.5:8081/status
gps:
  serial_path: /dev/ttyUSB0
  baud_rate: 4800
  udp_port: 12000
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want :9090", cfg.Listen)
	}
	if cfg.Units != "imperial" {
		t.Errorf("Units = %q, want imperial", cfg.Units)
	}
	if cfg.Camera.FrameURL != "http://10.0.0.5:8081/frame" {
		t.Errorf("Camera.FrameURL = %q", cfg.Camera.FrameURL)
	}
	if cfg.GPS.SerialPath != "/dev/ttyUSB0" {
		t.Errorf("GPS.SerialPath = %q, want /dev/ttyUSB0", cfg.GPS.SerialPath)
	}
	if cfg.GPS.BaudRate != 4800 {
		t.Errorf("GPS.BaudRate = %d, want 4800", cfg.GPS.BaudRate)
	}
	if cfg.GPS.UDPPort != 12000 {
		t.Errorf("GPS.UDPPort = %d, want 12000", cfg.GPS.UDPPort)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yml")
	doc := "listen: \":9999\"\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Errorf("Listen = %q, want :9999", cfg.Listen)
	}
	if cfg.Units != "metric" {
		t.Errorf("Units = %q, want default metric", cfg.Units)
	}
	if cfg.DBPath != "gps_quality.db" {
		t.Errorf("DBPath = %q, want default gps_quality.db", cfg.DBPath)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yml")
	if err := os.WriteFile(path, []byte("listen: [unterminated"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML, got nil")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown units system", "units: nautical\n"},
		{"bad camera url", "camera:\n  frame_url: not-a-url\n"},
		{"udp port out of range", "gps:\n  udp_port: 70000\n"},
		{"negative baud rate", "gps:\n  baud_rate: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "station.yml")
			if err := os.WriteFile(path, []byte(tt.doc), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadTuningFromConfig(t *testing.T) {
	// No tuning path configured: empty tuning, all getters at defaults.
	cfg := DefaultConfig()
	tuning, err := cfg.LoadTuning()
	if err != nil {
		t.Fatalf("LoadTuning() = %v", err)
	}
	if tuning.GetGraceFrames() != 2 {
		t.Errorf("GetGraceFrames() = %d, want 2", tuning.GetGraceFrames())
	}

	// Configured path: overrides flow through.
	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(`{"grace_frames": 6}`), 0644); err != nil {
		t.Fatalf("Failed to write tuning: %v", err)
	}
	cfg.TuningPath = path
	tuning, err = cfg.LoadTuning()
	if err != nil {
		t.Fatalf("LoadTuning() = %v", err)
	}
	if tuning.GetGraceFrames() != 6 {
		t.Errorf("GetGraceFrames() = %d, want 6", tuning.GetGraceFrames())
	}
}
