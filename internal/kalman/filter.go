package kalman

import (
	"gonum.org/v1/gonum/stat"
)

// Filter is a scalar Kalman filter. The variant is fixed at construction;
// adaptive filters additionally carry their innovation window.
type Filter struct {
	kind Kind
	q    float64
	r    float64
	f    float64
	h    float64
	b    float64

	x float64 // current estimate
	p float64 // current estimate covariance

	window []float64 // recent innovations, adaptive only
}

// Step is the outcome of one predict/update cycle.
type Step struct {
	Predicted  float64 // x after predict, before the measurement
	Estimate   float64 // x after update
	Innovation float64 // z - H*x_predicted
	Covariance float64 // P after update
	Gain       float64
	R          float64 // measurement noise used for this update
}

// New builds a filter from a validated configuration.
func New(cfg Config) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{
		kind: cfg.Kind,
		q:    cfg.ProcessNoise,
		r:    cfg.MeasurementNoise,
		f:    cfg.StateTransition,
		h:    cfg.Observation,
		b:    cfg.Control,
		x:    cfg.InitialState,
		p:    cfg.InitialCovariance,
	}
	if f.kind == KindAdaptive {
		f.window = make([]float64, 0, AdaptiveWindow)
	}
	return f, nil
}

// Kind returns the filter variant.
func (f *Filter) Kind() Kind { return f.kind }

// State returns the current estimate, covariance and measurement noise.
func (f *Filter) State() (x, p, r float64) { return f.x, f.p, f.r }

// Step runs predict then update for measurement z.
func (f *Filter) Step(z float64) Step {
	predicted := f.predict(0)
	y := z - f.h*predicted
	if f.kind == KindAdaptive {
		f.adapt(y)
	}
	k := f.p * f.h / (f.h*f.p*f.h + f.r)
	f.x += k * y
	f.p = (1 - k*f.h) * f.p
	return Step{
		Predicted:  predicted,
		Estimate:   f.x,
		Innovation: y,
		Covariance: f.p,
		Gain:       k,
		R:          f.r,
	}
}

func (f *Filter) predict(u float64) float64 {
	f.x = f.f*f.x + f.b*u
	f.p = f.f*f.p*f.f + f.q
	return f.x
}

// adapt pushes y into the window and, once enough innovations are held,
// replaces R with their clamped population variance.
func (f *Filter) adapt(y float64) {
	if len(f.window) == AdaptiveWindow {
		copy(f.window, f.window[1:])
		f.window = f.window[:AdaptiveWindow-1]
	}
	f.window = append(f.window, y)
	if len(f.window) < AdaptiveMinSamples {
		return
	}
	f.r = min(max(stat.PopVariance(f.window, nil), AdaptiveMinR), AdaptiveMaxR)
}
