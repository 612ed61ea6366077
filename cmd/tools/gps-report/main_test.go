package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corvid-aero/groundstation/internal/gpslog"
)

func sampleSnapshots(start time.Time) []gpslog.Snapshot {
	snaps := make([]gpslog.Snapshot, 4)
	for i := range snaps {
		snaps[i] = gpslog.Snapshot{
			SessionID:        "f1db8a9c-0000-0000-0000-000000000000",
			RecordedAt:       start.Add(time.Duration(i) * 30 * time.Second),
			WindowSamples:    60,
			MeanSatellites:   8.5 + float64(i)*0.5,
			StdDevSatellites: 1.2,
			MeanHDOP:         1.4 - float64(i)*0.1,
			MinHDOP:          0.9,
			MaxHDOP:          2.1,
			HDOPRating:       "good",
			FixMode:          "gps",
			MeanSpeedMPS:     1.3,
			MaxSpeedMPS:      2.8,
		}
	}
	return snaps
}

func TestRenderSessionPlots(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	report := gpslog.SessionReport{
		Session: gpslog.Session{
			ID:        "f1db8a9c-0000-0000-0000-000000000000",
			Source:    "laptop",
			StartedAt: start,
		},
	}

	dir := t.TempDir()
	files, err := renderSessionPlots(report, sampleSnapshots(start), dir)
	if err != nil {
		t.Fatalf("renderSessionPlots failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 plot files, got %d", len(files))
	}

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatalf("expected plot file %s: %v", f, err)
		}
		if info.Size() == 0 {
			t.Errorf("plot file %s is empty", f)
		}
	}

	// Session id is truncated for filenames.
	want := filepath.Join(dir, "f1db8a9c_satellites.png")
	if files[0] != want {
		t.Errorf("expected first file %s, got %s", want, files[0])
	}
}

func TestRenderSessionPlotsCreatesDirectory(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	report := gpslog.SessionReport{
		Session: gpslog.Session{ID: "short", Source: "laptop", StartedAt: start},
	}

	nested := filepath.Join(t.TempDir(), "reports", "june")
	files, err := renderSessionPlots(report, sampleSnapshots(start), nested)
	if err != nil {
		t.Fatalf("renderSessionPlots failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 plot files, got %d", len(files))
	}
	if _, err := os.Stat(nested); err != nil {
		t.Errorf("expected nested output dir to exist: %v", err)
	}
}

func TestFormatFixModes(t *testing.T) {
	got := formatFixModes(map[string]int{"rtk": 1, "gps": 12, "dgps": 3})
	want := "dgps=3 gps=12 rtk=1"
	if got != want {
		t.Errorf("formatFixModes = %q, want %q", got, want)
	}

	if got := formatFixModes(nil); got != "" {
		t.Errorf("formatFixModes(nil) = %q, want empty", got)
	}
}
