package kalman

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrNoMeasurements is returned by Run for an empty sequence.
var ErrNoMeasurements = errors.New("no measurements")

// Stats compares a filtered sequence with its raw input. Standard deviations
// are population values.
type Stats struct {
	RawStd                float64 `json:"raw_std"`
	FilteredStd           float64 `json:"filtered_std"`
	NoiseReductionPercent float64 `json:"noise_reduction_percent"`
	MSE                   float64 `json:"mse"`
	SNRImprovementDB      float64 `json:"snr_improvement_db"` // +Inf when raw == filtered
	FinalCovariance       float64 `json:"final_covariance"`
	InnovationMean        float64 `json:"average_innovation"`
	InnovationStd         float64 `json:"innovation_std"`
	DataPoints            int     `json:"data_points"`
}

// RunResult holds the histories of one filter pass over a sequence. All
// sequences have the same length as Raw.
type RunResult struct {
	Config                Config
	Raw                   []float64
	Filtered              []float64
	Predicted             []float64
	Innovations           []float64
	Covariances           []float64
	Stats                 Stats
	FinalMeasurementNoise float64 // differs from Config for adaptive filters
}

// Run filters measurements in order with a fresh filter built from cfg.
func Run(cfg Config, measurements []float64) (*RunResult, error) {
	if len(measurements) == 0 {
		return nil, ErrNoMeasurements
	}
	f, err := New(cfg)
	if err != nil {
		return nil, err
	}

	n := len(measurements)
	res := &RunResult{
		Config:      cfg,
		Raw:         append([]float64(nil), measurements...),
		Filtered:    make([]float64, 0, n),
		Predicted:   make([]float64, 0, n),
		Innovations: make([]float64, 0, n),
		Covariances: make([]float64, 0, n),
	}
	for _, z := range measurements {
		s := f.Step(z)
		res.Predicted = append(res.Predicted, s.Predicted)
		res.Filtered = append(res.Filtered, s.Estimate)
		res.Innovations = append(res.Innovations, s.Innovation)
		res.Covariances = append(res.Covariances, s.Covariance)
	}
	_, p, r := f.State()
	res.FinalMeasurementNoise = r
	res.Stats = ComputeStats(res.Raw, res.Filtered, res.Innovations)
	res.Stats.FinalCovariance = p
	return res, nil
}

// ComputeStats derives the comparison statistics for raw against filtered.
// Both slices must have the same length. A constant raw sequence yields a
// noise reduction of 0.
func ComputeStats(raw, filtered, innovations []float64) Stats {
	s := Stats{DataPoints: len(raw)}
	if len(raw) == 0 || len(raw) != len(filtered) {
		return s
	}

	s.RawStd = stat.PopStdDev(raw, nil)
	s.FilteredStd = stat.PopStdDev(filtered, nil)
	if s.RawStd != 0 {
		s.NoiseReductionPercent = (s.RawStd - s.FilteredStd) / s.RawStd * 100
	}

	var signal, noise float64
	for i := range raw {
		d := raw[i] - filtered[i]
		noise += d * d
		signal += filtered[i] * filtered[i]
	}
	n := float64(len(raw))
	signal /= n
	noise /= n
	s.MSE = noise
	if noise > 0 {
		s.SNRImprovementDB = 10 * math.Log10(signal/noise)
	} else {
		s.SNRImprovementDB = math.Inf(1)
	}

	if len(innovations) > 0 {
		s.InnovationMean, s.InnovationStd = stat.PopMeanStdDev(innovations, nil)
	}
	return s
}
