// Package quality describes a source's distance sequence and flags records
// that fall outside application-level plausibility limits.
package quality

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a distance sequence. Spread measures are population
// values; quartiles and percentiles interpolate linearly between order
// statistics.
type Summary struct {
	Count       int               `json:"count"`
	Mean        float64           `json:"mean"`
	Median      float64           `json:"median"`
	Mode        float64           `json:"mode"`
	Std         float64           `json:"std"`
	Variance    float64           `json:"variance"`
	Min         float64           `json:"min"`
	Max         float64           `json:"max"`
	Range       float64           `json:"range"`
	Q1          float64           `json:"q1"`
	Q3          float64           `json:"q3"`
	IQR         float64           `json:"iqr"`
	Skewness    float64           `json:"skewness"`
	Kurtosis    float64           `json:"kurtosis"` // excess
	Percentiles []PercentileValue `json:"percentiles"`
}

// PercentileValue is one requested percentile of a sequence.
type PercentileValue struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// Summarize computes a Summary with the given percentiles. It returns nil
// for an empty sequence.
func Summarize(values []float64, percentiles []float64) *Summary {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, variance := stat.PopMeanVariance(values, nil)
	s := &Summary{
		Count:       len(values),
		Mean:        mean,
		Median:      Percentile(sorted, 50),
		Mode:        mode(values, mean),
		Std:         math.Sqrt(variance),
		Variance:    variance,
		Min:         floats.Min(values),
		Max:         floats.Max(values),
		Q1:          Percentile(sorted, 25),
		Q3:          Percentile(sorted, 75),
		Percentiles: make([]PercentileValue, 0, len(percentiles)),
	}
	s.Range = s.Max - s.Min
	s.IQR = s.Q3 - s.Q1
	if s.Std > 0 {
		s.Skewness = stat.Moment(3, values, nil) / math.Pow(s.Std, 3)
		s.Kurtosis = stat.Moment(4, values, nil)/math.Pow(s.Std, 4) - 3
	}
	for _, p := range percentiles {
		s.Percentiles = append(s.Percentiles, PercentileValue{P: p, Value: Percentile(sorted, p)})
	}
	return s
}

// Percentile returns the p-th percentile (0..100) of an ascending slice,
// interpolating linearly between the two nearest ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	p = min(max(p, 0), 100)
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// mode returns the most frequent value, the earliest one on a tie. A
// sequence without repeats has no mode and yields mean instead.
func mode(values []float64, mean float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	if len(counts) == len(values) {
		return mean
	}
	best, bestCount := values[0], 0
	for _, v := range values {
		if c := counts[v]; c > bestCount {
			best, bestCount = v, c
		}
	}
	return best
}
