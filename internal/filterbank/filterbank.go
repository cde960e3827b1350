// Package filterbank evaluates a catalogue of Kalman filter configurations
// against one distance sequence and selects the configuration with the
// greatest noise reduction.
package filterbank

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/uwb.report/internal/kalman"
	"github.com/banshee-data/uwb.report/internal/monitoring"
)

// MinSamples is the shortest sequence Compare accepts.
const MinSamples = 2

// ErrTooFewSamples is returned for sequences shorter than MinSamples.
// Callers skip such sequences.
var ErrTooFewSamples = errors.New("too few samples to filter")

// Comparison is the immutable outcome of one Compare call.
type Comparison struct {
	Order              []string                     // catalogue names in evaluation order
	Results            map[string]*kalman.RunResult // successful runs only
	Skipped            map[string]string            // name -> reason
	Best               string                       // "" when every configuration was skipped
	BestNoiseReduction float64
}

// Ranked returns the successful results in catalogue order.
func (c *Comparison) Ranked() []*kalman.RunResult {
	out := make([]*kalman.RunResult, 0, len(c.Results))
	for _, name := range c.Order {
		if r, ok := c.Results[name]; ok {
			out = append(out, r)
		}
	}
	return out
}

// BestResult returns the run of the selected configuration, or nil.
func (c *Comparison) BestResult() *kalman.RunResult {
	if c.Best == "" {
		return nil
	}
	return c.Results[c.Best]
}

// Bank runs a catalogue of configurations. The zero value uses the
// built-in presets sequentially.
type Bank struct {
	Catalogue []kalman.Config
	Parallel  bool
}

// New returns a bank over catalogue, or the presets when catalogue is empty.
func New(catalogue []kalman.Config, parallel bool) *Bank {
	return &Bank{Catalogue: catalogue, Parallel: parallel}
}

func (b *Bank) catalogue() []kalman.Config {
	if b == nil || len(b.Catalogue) == 0 {
		return kalman.Presets()
	}
	return b.Catalogue
}

// unique drops configurations whose name already appeared earlier in cat.
func unique(cat []kalman.Config) []kalman.Config {
	seen := make(map[string]bool, len(cat))
	out := make([]kalman.Config, 0, len(cat))
	for _, c := range cat {
		if seen[c.Name] {
			monitoring.Logf("filterbank: ignoring duplicate configuration %q", c.Name)
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}

// Compare runs every configuration over measurements with its initial state
// set to the first measurement. A configuration that fails is logged and
// recorded in Skipped; the remaining ones still run. Only the first
// configuration of a given name runs. Compare only fails for short input or
// a cancelled context.
func (b *Bank) Compare(ctx context.Context, measurements []float64) (*Comparison, error) {
	if len(measurements) < MinSamples {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrTooFewSamples, len(measurements), MinSamples)
	}
	cat := unique(b.catalogue())
	results := make([]*kalman.RunResult, len(cat))
	errs := make([]error, len(cat))

	run := func(i int) {
		cfg := cat[i].WithInitialState(measurements[0])
		results[i], errs[i] = kalman.Run(cfg, measurements)
	}

	if b != nil && b.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range cat {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				run(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range cat {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			run(i)
		}
	}

	cmp := &Comparison{
		Order:   make([]string, 0, len(cat)),
		Results: make(map[string]*kalman.RunResult, len(cat)),
		Skipped: make(map[string]string),
	}
	best := math.Inf(-1)
	for i, cfg := range cat {
		cmp.Order = append(cmp.Order, cfg.Name)
		if errs[i] != nil {
			monitoring.Logf("filterbank: skipping %q: %v", cfg.Name, errs[i])
			cmp.Skipped[cfg.Name] = errs[i].Error()
			continue
		}
		cmp.Results[cfg.Name] = results[i]
		if nr := results[i].Stats.NoiseReductionPercent; nr > best {
			best = nr
			cmp.Best = cfg.Name
		}
	}
	if cmp.Best != "" {
		cmp.BestNoiseReduction = best
	}
	return cmp, nil
}
