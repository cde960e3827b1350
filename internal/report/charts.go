package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/uwb.report/internal/analysis"
)

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func sampleAxis(n int) []int {
	x := make([]int, n)
	for i := range x {
		x[i] = i
	}
	return x
}

func newLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "UWB analysis", Width: "1200px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sample", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Distance", Scale: opts.Bool(true)}),
	)
	return line
}

// sessionCharts builds the chart set for s: a distance trend across
// sources, then per filtered source the raw and filtered series, the noise
// reduction of each filter and the innovations of the best filter.
func sessionCharts(s *analysis.Session) []components.Charter {
	var out []components.Charter

	trend := newLine("Distance trend", fmt.Sprintf("session %s", s.ID))
	longest := 0
	for i := range s.Sources {
		d := s.Sources[i].Distances()
		if len(d) == 0 {
			continue
		}
		longest = max(longest, len(d))
		trend.AddSeries(s.Sources[i].Path, lineData(d), charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	if longest > 0 {
		trend.SetXAxis(sampleAxis(longest))
		out = append(out, trend)
	}

	for i := range s.Sources {
		src := &s.Sources[i]
		cmp := src.Comparison
		if cmp == nil || len(cmp.Results) == 0 {
			continue
		}
		ranked := cmp.Ranked()

		filtered := newLine("Kalman filtering", src.Path)
		filtered.SetXAxis(sampleAxis(len(ranked[0].Raw)))
		filtered.AddSeries("raw", lineData(ranked[0].Raw), charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		for _, r := range ranked {
			filtered.AddSeries(r.Config.Name, lineData(r.Filtered), charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}))
		}
		out = append(out, filtered)

		names := make([]string, len(ranked))
		reductions := make([]opts.BarData, len(ranked))
		for j, r := range ranked {
			names[j] = r.Config.Name
			reductions[j] = opts.BarData{Value: r.Stats.NoiseReductionPercent}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: "UWB analysis", Width: "1200px", Height: "360px"}),
			charts.WithTitleOpts(opts.Title{Title: "Noise reduction (%)", Subtitle: fmt.Sprintf("%s, best %s", src.Path, cmp.Best)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(names).
			AddSeries("noise reduction", reductions,
				charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
			)
		out = append(out, bar)

		if best := cmp.BestResult(); best != nil {
			innov := newLine("Innovations", fmt.Sprintf("%s, %s", src.Path, best.Config.Name))
			innov.SetGlobalOptions(charts.WithYAxisOpts(opts.YAxis{Name: "Innovation", Scale: opts.Bool(true)}))
			innov.SetXAxis(sampleAxis(len(best.Innovations))).
				AddSeries("innovation", lineData(best.Innovations), charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
			out = append(out, innov)
		}
	}
	return out
}

// WriteCharts renders every chart for s on one ECharts page. It returns
// the number of charts written.
func WriteCharts(w io.Writer, s *analysis.Session) (int, error) {
	set := sessionCharts(s)
	page := components.NewPage()
	page.PageTitle = "UWB analysis"
	page.AddCharts(set...)
	if err := page.Render(w); err != nil {
		return 0, fmt.Errorf("render charts: %w", err)
	}
	return len(set), nil
}
