package quality

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Outlier detection methods.
const (
	MethodIQR    = "iqr"
	MethodZScore = "zscore"
)

const (
	iqrFence        = 1.5
	zScoreThreshold = 3.0
)

// OutlierReport lists the positions of outlying values and the bounds used.
type OutlierReport struct {
	Method  string  `json:"method"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Indices []int   `json:"indices"`
}

// Fraction returns the share of n values flagged as outliers.
func (r *OutlierReport) Fraction(n int) float64 {
	if r == nil || n == 0 {
		return 0
	}
	return float64(len(r.Indices)) / float64(n)
}

// Outliers flags values outside the Tukey fences (iqr) or more than three
// population standard deviations from the mean (zscore).
func Outliers(values []float64, method string) (*OutlierReport, error) {
	r := &OutlierReport{Method: method}
	if len(values) == 0 {
		return r, nil
	}

	switch method {
	case MethodIQR:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		q1, q3 := Percentile(sorted, 25), Percentile(sorted, 75)
		iqr := q3 - q1
		r.Lower, r.Upper = q1-iqrFence*iqr, q3+iqrFence*iqr
	case MethodZScore:
		mean, std := stat.PopMeanStdDev(values, nil)
		if std == 0 {
			r.Lower, r.Upper = mean, mean
			return r, nil
		}
		r.Lower, r.Upper = mean-zScoreThreshold*std, mean+zScoreThreshold*std
	default:
		return nil, fmt.Errorf("unknown outlier method %q", method)
	}

	for i, v := range values {
		if v < r.Lower || v > r.Upper || math.IsNaN(v) {
			r.Indices = append(r.Indices, i)
		}
	}
	return r, nil
}
