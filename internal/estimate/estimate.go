// Package estimate computes a single best distance for a sequence of
// repeated measurements at a fixed range, using several estimators and
// ranking them by confidence and error margin.
package estimate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/uwb.report/internal/kalman"
	"github.com/banshee-data/uwb.report/internal/quality"
)

// Method names.
const (
	MethodMean          = "mean"
	MethodMedian        = "median"
	MethodWeightedMean  = "weighted_mean"
	MethodRobustMean    = "robust_mean"
	MethodMovingAverage = "moving_average"
	MethodKalman        = "kalman"
)

const (
	z95      = 1.96   // two-sided 95% normal quantile
	madScale = 1.4826 // MAD to standard deviation under normality

	kalmanProcessNoise      = 0.1
	kalmanInitialCovariance = 1.0
	minMeasurementNoise     = 1e-9 // a constant sequence has zero variance
)

// Estimate is the result of one estimator.
type Estimate struct {
	Method      string  `json:"method"`
	Value       float64 `json:"value"`
	Confidence  float64 `json:"confidence"`   // 1 / (1 + spread/value), 0 for value <= 0
	ErrorMargin float64 `json:"error_margin"` // half-width of the 95% interval
	SampleCount int     `json:"sample_count"`
}

// Score ranks estimates: confidence discounted by the relative error margin.
func (e Estimate) Score() float64 {
	if e.Value <= 0 {
		return 0
	}
	return e.Confidence / (1 + e.ErrorMargin/e.Value)
}

func confidence(spread, value float64) float64 {
	if value <= 0 {
		return 0
	}
	return 1 / (1 + spread/value)
}

func fromSpread(method string, values []float64) *Estimate {
	mean, std := stat.PopMeanStdDev(values, nil)
	return &Estimate{
		Method:      method,
		Value:       mean,
		Confidence:  confidence(std, mean),
		ErrorMargin: z95 * std / math.Sqrt(float64(len(values))),
		SampleCount: len(values),
	}
}

// Mean is the arithmetic mean with a normal 95% margin.
func Mean(values []float64) *Estimate {
	if len(values) == 0 {
		return nil
	}
	return fromSpread(MethodMean, values)
}

// Median uses the median absolute deviation as its spread.
func Median(values []float64) *Estimate {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	med := quality.Percentile(sorted, 50)

	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	sort.Float64s(dev)
	mad := quality.Percentile(dev, 50)

	return &Estimate{
		Method:      MethodMedian,
		Value:       med,
		Confidence:  confidence(mad, med),
		ErrorMargin: madScale * mad,
		SampleCount: len(values),
	}
}

// WeightedMean weights each distinct value by its frequency.
func WeightedMean(values []float64) *Estimate {
	if len(values) == 0 {
		return nil
	}
	counts := make(map[float64]float64)
	for _, v := range values {
		counts[v]++
	}
	distinct := make([]float64, 0, len(counts))
	for v := range counts {
		distinct = append(distinct, v)
	}
	sort.Float64s(distinct)
	weights := make([]float64, len(distinct))
	for i, v := range distinct {
		weights[i] = counts[v]
	}

	mean, variance := stat.PopMeanVariance(distinct, weights)
	std := math.Sqrt(variance)
	return &Estimate{
		Method:      MethodWeightedMean,
		Value:       mean,
		Confidence:  confidence(std, mean),
		ErrorMargin: z95 * std / math.Sqrt(float64(len(values))),
		SampleCount: len(values),
	}
}

// RobustMean averages the values inside the Tukey fences.
func RobustMean(values []float64) *Estimate {
	if len(values) == 0 {
		return nil
	}
	kept := values
	if r, err := quality.Outliers(values, quality.MethodIQR); err == nil && len(r.Indices) > 0 && len(r.Indices) < len(values) {
		drop := make(map[int]bool, len(r.Indices))
		for _, i := range r.Indices {
			drop[i] = true
		}
		kept = make([]float64, 0, len(values)-len(r.Indices))
		for i, v := range values {
			if !drop[i] {
				kept = append(kept, v)
			}
		}
	}
	return fromSpread(MethodRobustMean, kept)
}

// MovingAverage averages the means of every window of the given size. It
// returns nil when there are fewer values than one window.
func MovingAverage(values []float64, window int) *Estimate {
	if window < 1 || len(values) < window {
		return nil
	}
	means := make([]float64, 0, len(values)-window+1)
	for i := 0; i+window <= len(values); i++ {
		means = append(means, stat.Mean(values[i:i+window], nil))
	}
	e := fromSpread(MethodMovingAverage, means)
	e.Method = fmt.Sprintf("%s(%d)", MethodMovingAverage, window)
	return e
}

// Kalman runs a scalar filter seeded with the first value, with the
// sequence's own variance as measurement noise, and reports the final
// estimate with a margin from the final covariance.
func Kalman(values []float64) *Estimate {
	if len(values) == 0 {
		return nil
	}
	cfg := kalman.Config{
		Name:              MethodKalman,
		Kind:              kalman.KindStandard,
		ProcessNoise:      kalmanProcessNoise,
		MeasurementNoise:  max(stat.PopVariance(values, nil), minMeasurementNoise),
		InitialCovariance: kalmanInitialCovariance,
		InitialState:      values[0],
		StateTransition:   1,
		Observation:       1,
	}
	f, err := kalman.New(cfg)
	if err != nil {
		return nil
	}
	for _, z := range values[1:] {
		f.Step(z)
	}
	x, p, _ := f.State()
	sd := math.Sqrt(p)
	return &Estimate{
		Method:      MethodKalman,
		Value:       x,
		Confidence:  confidence(sd, x),
		ErrorMargin: z95 * sd,
		SampleCount: len(values),
	}
}

// All runs every estimator, omitting those that cannot produce a value.
func All(values []float64, window int) []Estimate {
	var out []Estimate
	for _, e := range []*Estimate{
		Mean(values),
		Median(values),
		WeightedMean(values),
		RobustMean(values),
		MovingAverage(values, window),
		Kalman(values),
	} {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

// Best returns the estimate with the highest Score; the first wins ties.
func Best(estimates []Estimate) (Estimate, bool) {
	if len(estimates) == 0 {
		return Estimate{}, false
	}
	best := 0
	for i := 1; i < len(estimates); i++ {
		if estimates[i].Score() > estimates[best].Score() {
			best = i
		}
	}
	return estimates[best], true
}
