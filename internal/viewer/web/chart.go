package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sonarscope/internal/httputil"
	"github.com/banshee-data/sonarscope/internal/scope/render"
)

// ScopeChart builds a square scatter of f: blips coloured by brightness
// through the visual map, with rings, bearings and exclusion zones drawn
// as fixed-colour point series.
func ScopeChart(f render.Frame) *charts.Scatter {
	cfg := f.Config
	reach := cfg.MaxRange * cfg.ScalePxPerUnit * 1.05
	ox, oy := cfg.Origin[0], cfg.Origin[1]

	blips := make([]opts.ScatterData, 0, len(f.Points))
	for _, p := range f.Points {
		blips = append(blips, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Brightness}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "sonarscope", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Scope",
			Subtitle: fmt.Sprintf("seq=%d session=%.8s lit=%d overruns=%d", f.Seq, f.SessionID, f.Stats.Lit, f.Stats.Overruns),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: ox - reach, Max: ox + reach, SplitLine: &opts.SplitLine{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{Min: oy - reach, Max: oy + reach, SplitLine: &opts.SplitLine{Show: opts.Bool(false)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#1a0500", "#7a1a00", "#ff4d00", "#ffb38a"}},
		}),
	)
	scatter.AddSeries("blips", blips, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	if g := f.Overlay; g != nil {
		var rings []opts.ScatterData
		for _, r := range g.Rings {
			for _, p := range r.Path {
				rings = append(rings, opts.ScatterData{Value: []interface{}{p[0], p[1]}})
			}
		}
		var bearings []opts.ScatterData
		for _, b := range g.Bearings {
			if len(b.Line) == 2 {
				end := b.Line[1]
				bearings = append(bearings, opts.ScatterData{Name: b.Label.Text, Value: []interface{}{end[0], end[1]}})
			}
		}
		var zones []opts.ScatterData
		for _, z := range g.Zones {
			for _, p := range z.Polygon[0] {
				zones = append(zones, opts.ScatterData{Value: []interface{}{p[0], p[1]}})
			}
		}
		scatter.AddSeries("rings", rings,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(cfg.Palette.Ring)}))
		scatter.AddSeries("bearings", bearings,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top", Formatter: "{b}"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(cfg.Palette.Bearing)}))
		scatter.AddSeries("exclusion", zones,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(cfg.Palette.Exclusion)}))
	}
	return scatter
}

func (s *Server) handleScopeChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	f, ok := s.Latest()
	if !ok {
		httputil.NotFound(w, "no frame rendered yet")
		return
	}

	var buf bytes.Buffer
	if err := ScopeChart(f).Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	page := buf.Bytes()
	if v := r.URL.Query().Get("refresh"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 && secs <= 3600 {
			w.Header().Set("Refresh", strconv.Itoa(secs))
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
