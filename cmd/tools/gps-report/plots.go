package main

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/corvid-aero/groundstation/internal/gpslog"
)

var (
	colorMean = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorLow  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorHigh = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// series is one labelled line on a plot.
type series struct {
	label string
	pts   plotter.XYs
	color color.Color
}

// renderSessionPlots writes the satellites, HDOP, and speed plots for one
// session and returns the created file paths. The x axis is minutes since
// session start.
func renderSessionPlots(report gpslog.SessionReport, snaps []gpslog.Snapshot, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	start := report.Session.StartedAt
	n := len(snaps)

	satMean := make(plotter.XYs, 0, n)
	satHigh := make(plotter.XYs, 0, n)
	satLow := make(plotter.XYs, 0, n)
	hdopMean := make(plotter.XYs, 0, n)
	hdopMin := make(plotter.XYs, 0, n)
	hdopMax := make(plotter.XYs, 0, n)
	speedMean := make(plotter.XYs, 0, n)
	speedMax := make(plotter.XYs, 0, n)

	for _, snap := range snaps {
		x := snap.RecordedAt.Sub(start).Minutes()
		satMean = append(satMean, plotter.XY{X: x, Y: snap.MeanSatellites})
		satHigh = append(satHigh, plotter.XY{X: x, Y: snap.MeanSatellites + snap.StdDevSatellites})
		satLow = append(satLow, plotter.XY{X: x, Y: snap.MeanSatellites - snap.StdDevSatellites})
		hdopMean = append(hdopMean, plotter.XY{X: x, Y: snap.MeanHDOP})
		hdopMin = append(hdopMin, plotter.XY{X: x, Y: snap.MinHDOP})
		hdopMax = append(hdopMax, plotter.XY{X: x, Y: snap.MaxHDOP})
		speedMean = append(speedMean, plotter.XY{X: x, Y: snap.MeanSpeedMPS})
		speedMax = append(speedMax, plotter.XY{X: x, Y: snap.MaxSpeedMPS})
	}

	prefix := report.Session.ID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	var files []string

	satFile := filepath.Join(outDir, prefix+"_satellites.png")
	err := savePlot(
		fmt.Sprintf("Session %s - Satellites in View", prefix), "Satellites", satFile,
		[]series{
			{label: "mean", pts: satMean, color: colorMean},
			{label: "+1 sd", pts: satHigh, color: colorHigh},
			{label: "-1 sd", pts: satLow, color: colorLow},
		})
	if err != nil {
		return files, fmt.Errorf("save satellites plot: %w", err)
	}
	files = append(files, satFile)

	hdopFile := filepath.Join(outDir, prefix+"_hdop.png")
	err = savePlot(
		fmt.Sprintf("Session %s - Horizontal Dilution of Precision", prefix), "HDOP", hdopFile,
		[]series{
			{label: "mean", pts: hdopMean, color: colorMean},
			{label: "min", pts: hdopMin, color: colorLow},
			{label: "max", pts: hdopMax, color: colorHigh},
		})
	if err != nil {
		return files, fmt.Errorf("save hdop plot: %w", err)
	}
	files = append(files, hdopFile)

	speedFile := filepath.Join(outDir, prefix+"_speed.png")
	err = savePlot(
		fmt.Sprintf("Session %s - Ground Speed", prefix), "Speed (m/s)", speedFile,
		[]series{
			{label: "mean", pts: speedMean, color: colorMean},
			{label: "max", pts: speedMax, color: colorHigh},
		})
	if err != nil {
		return files, fmt.Errorf("save speed plot: %w", err)
	}
	files = append(files, speedFile)

	return files, nil
}

// savePlot renders one PNG with the given line series.
func savePlot(title, yLabel, file string, ss []series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Minutes since session start"
	p.Y.Label.Text = yLabel

	for _, s := range ss {
		if len(s.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return err
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(14*vg.Inch, 6*vg.Inch, file)
}
