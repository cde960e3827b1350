// Package kalman implements the scalar Kalman filters used to smooth UWB
// distance sequences: a standard filter with fixed noise parameters and an
// adaptive variant that re-estimates measurement noise from recent
// innovations.
package kalman

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfig is returned when a configuration cannot drive a filter.
	ErrInvalidConfig = errors.New("invalid filter configuration")
	// ErrUnknownFilter is returned for names outside the presets, and by
	// Validate for a configuration without a kind.
	ErrUnknownFilter = errors.New("unknown filter")
)

// Kind selects the filter variant.
type Kind string

const (
	KindStandard Kind = "standard"
	KindAdaptive Kind = "adaptive"
)

// Adaptive noise estimation constants.
const (
	AdaptiveWindow     = 10  // innovations kept for the variance estimate
	AdaptiveMinSamples = 3   // innovations needed before R adapts
	AdaptiveMinR       = 0.1 // lower clamp for the estimated R
	AdaptiveMaxR       = 100 // upper clamp for the estimated R
)

// Config is an immutable named parameter set for one scalar filter.
type Config struct {
	Name              string  `json:"name"`
	Kind              Kind    `json:"kind"`
	ProcessNoise      float64 `json:"process_noise"`      // Q
	MeasurementNoise  float64 `json:"measurement_noise"`  // R
	InitialCovariance float64 `json:"initial_covariance"` // P0
	InitialState      float64 `json:"initial_state"`      // x0
	StateTransition   float64 `json:"state_transition"`   // F
	Observation       float64 `json:"observation"`        // H
	Control           float64 `json:"control"`            // B, unused without a control input
}

// Validate reports whether c can drive a filter. R must be strictly
// positive; Q and P0 must be non-negative.
func (c Config) Validate() error {
	switch c.Kind {
	case "":
		return fmt.Errorf("%w: %q", ErrUnknownFilter, c.Name)
	case KindStandard, KindAdaptive:
	default:
		return fmt.Errorf("%w: %q: unknown kind %q", ErrInvalidConfig, c.Name, c.Kind)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"process_noise", c.ProcessNoise},
		{"measurement_noise", c.MeasurementNoise},
		{"initial_covariance", c.InitialCovariance},
		{"initial_state", c.InitialState},
		{"state_transition", c.StateTransition},
		{"observation", c.Observation},
		{"control", c.Control},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return fmt.Errorf("%w: %q: %s is not finite", ErrInvalidConfig, c.Name, v.name)
		}
	}
	if c.MeasurementNoise <= 0 {
		return fmt.Errorf("%w: %q: measurement_noise must be > 0, got %g", ErrInvalidConfig, c.Name, c.MeasurementNoise)
	}
	if c.ProcessNoise < 0 {
		return fmt.Errorf("%w: %q: process_noise must be >= 0, got %g", ErrInvalidConfig, c.Name, c.ProcessNoise)
	}
	if c.InitialCovariance < 0 {
		return fmt.Errorf("%w: %q: initial_covariance must be >= 0, got %g", ErrInvalidConfig, c.Name, c.InitialCovariance)
	}
	return nil
}

// WithInitialState returns a copy of c starting at x0.
func (c Config) WithInitialState(x0 float64) Config {
	c.InitialState = x0
	return c
}

func preset(name string, kind Kind, q, r, p0 float64) Config {
	return Config{
		Name:              name,
		Kind:              kind,
		ProcessNoise:      q,
		MeasurementNoise:  r,
		InitialCovariance: p0,
		StateTransition:   1,
		Observation:       1,
	}
}

// Standard trusts the model and the sensor moderately.
func Standard() Config { return preset("standard", KindStandard, 1, 50, 100) }

// Smooth favours the model, trading lag for a flatter output.
func Smooth() Config { return preset("smooth", KindStandard, 0.1, 100, 200) }

// Responsive favours the sensor and follows changes quickly.
func Responsive() Config { return preset("responsive", KindStandard, 5, 10, 50) }

// Adaptive starts like Standard and re-estimates R online.
func Adaptive() Config { return preset("adaptive", KindAdaptive, 1, 50, 100) }

// Presets returns the built-in catalogue in evaluation order.
func Presets() []Config {
	return []Config{Standard(), Smooth(), Responsive(), Adaptive()}
}

// Lookup returns the preset called name.
func Lookup(name string) (Config, error) {
	for _, c := range Presets() {
		if c.Name == name {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
}
