package report

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/uwb.report/internal/analysis"
	"github.com/banshee-data/uwb.report/internal/kalman"
)

const (
	plotWidth     = 14 * vg.Inch
	plotHeight    = 6 * vg.Inch
	histogramBins = 30
)

// Plot suffixes appended to the sanitized source name.
const (
	PlotFiltered       = "_kalman.png"
	PlotNoiseReduction = "_noise_reduction.png"
	PlotHistogram      = "_histogram.png"
	PlotInnovations    = "_innovations.png"
)

func seriesXY(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	return pts
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

func addLine(p *plot.Plot, label string, values []float64, colour int) error {
	line, err := plotter.NewLine(seriesXY(values))
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(colour)
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

// filteredPlot overlays the raw distances with every filter output.
func filteredPlot(source string, ranked []*kalman.RunResult) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("%s - Kalman filtering", source), "Sample", "Distance")
	if err := addLine(p, "raw", ranked[0].Raw, 0); err != nil {
		return nil, err
	}
	for i, r := range ranked {
		if err := addLine(p, r.Config.Name, r.Filtered, i+1); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func noiseReductionPlot(source string, ranked []*kalman.RunResult) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("%s - Noise reduction", source), "Filter", "Noise reduction (%)")
	values := make(plotter.Values, len(ranked))
	names := make([]string, len(ranked))
	for i, r := range ranked {
		values[i] = r.Stats.NoiseReductionPercent
		names[i] = r.Config.Name
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(2)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

func histogramPlot(source string, distances []float64) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("%s - Distance distribution", source), "Distance", "Count")
	h, err := plotter.NewHist(plotter.Values(distances), histogramBins)
	if err != nil {
		return nil, err
	}
	p.Add(h)
	return p, nil
}

func innovationPlot(source string, best *kalman.RunResult) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("%s - Innovations (%s)", source, best.Config.Name), "Sample", "Innovation")
	if err := addLine(p, "innovation", best.Innovations, 3); err != nil {
		return nil, err
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// sourcePlots returns the plots for one source keyed by file suffix, in a
// stable order. Sources that were not filtered only get a histogram.
func sourcePlots(src *analysis.SourceResult) ([]string, []*plot.Plot, error) {
	var (
		suffixes []string
		plots    []*plot.Plot
	)
	add := func(suffix string, p *plot.Plot, err error) error {
		if err != nil {
			return fmt.Errorf("%s%s: %w", src.Path, suffix, err)
		}
		suffixes = append(suffixes, suffix)
		plots = append(plots, p)
		return nil
	}

	if cmp := src.Comparison; cmp != nil && len(cmp.Results) > 0 {
		ranked := cmp.Ranked()
		p, err := filteredPlot(src.Path, ranked)
		if err := add(PlotFiltered, p, err); err != nil {
			return nil, nil, err
		}
		p, err = noiseReductionPlot(src.Path, ranked)
		if err := add(PlotNoiseReduction, p, err); err != nil {
			return nil, nil, err
		}
		if best := cmp.BestResult(); best != nil {
			p, err = innovationPlot(src.Path, best)
			if err := add(PlotInnovations, p, err); err != nil {
				return nil, nil, err
			}
		}
	}
	if d := src.Distances(); len(d) > 0 {
		p, err := histogramPlot(src.Path, d)
		if err := add(PlotHistogram, p, err); err != nil {
			return nil, nil, err
		}
	}
	return suffixes, plots, nil
}

// WritePNG renders p as a PNG of the standard report size.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
