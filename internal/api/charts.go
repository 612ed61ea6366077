package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/corvid-aero/groundstation/internal/httputil"
)

// handleGPSChart renders a quick scatter (HTML) of the rolling GPS quality
// window using go-echarts. This is a debugging-only endpoint (no auth) to eyeball
// receiver quality without a dashboard: x is seconds since the oldest sample,
// y is HDOP, color is satellite count.
func (s *Server) handleGPSChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.quality == nil {
		httputil.NotFound(w, "no quality tracker configured")
		return
	}

	samples := s.quality.Samples()
	if len(samples) == 0 {
		httputil.NotFound(w, "no quality samples available")
		return
	}

	origin := samples[0].At
	data := make([]opts.ScatterData, 0, len(samples))
	maxSats := 0
	maxHDOP := 0.0
	for _, sample := range samples {
		t := sample.At.Sub(origin).Seconds()
		data = append(data, opts.ScatterData{Value: []interface{}{t, sample.HDOP, sample.Satellites}})
		if sample.Satellites > maxSats {
			maxSats = sample.Satellites
		}
		if sample.HDOP > maxHDOP {
			maxHDOP = sample.HDOP
		}
	}
	if maxSats == 0 {
		maxSats = 1
	}

	// Add a small padding so points at the edges are visible
	pad := maxHDOP * 1.05
	if pad == 0 {
		pad = 1.0
	}

	stats := s.quality.Stats()

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "GPS Quality", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "GPS Receiver Quality", Subtitle: fmt.Sprintf("samples=%d mean_hdop=%.2f rating=%s", stats.Samples, stats.MeanHDOP, stats.HDOPRating)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: pad, Name: "HDOP", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSats),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("hdop", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
