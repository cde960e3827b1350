// Package analysis runs the load, scan, quality and filter stages over a
// batch of hex dumps and collects the results into a Session.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/uwb.report/internal/config"
	"github.com/banshee-data/uwb.report/internal/estimate"
	"github.com/banshee-data/uwb.report/internal/filterbank"
	"github.com/banshee-data/uwb.report/internal/frames"
	"github.com/banshee-data/uwb.report/internal/fsutil"
	"github.com/banshee-data/uwb.report/internal/hexstream"
	"github.com/banshee-data/uwb.report/internal/monitoring"
	"github.com/banshee-data/uwb.report/internal/quality"
	"github.com/banshee-data/uwb.report/internal/timeutil"
)

// ErrNoFiles is returned when a pattern matches no input.
var ErrNoFiles = errors.New("no input files matched")

// Stage names recorded in SourceResult.Timings.
const (
	StageLoad     = "load"
	StageScan     = "scan"
	StageQuality  = "quality"
	StageFilter   = "filter"
	StageEstimate = "estimate"
)

// Analyzer holds the collaborators of a batch run. Build one with New;
// it is safe for concurrent use once built.
type Analyzer struct {
	Loader   *hexstream.Loader
	Scanner  frames.Scanner
	Bank     *filterbank.Bank
	Config   *config.AnalysisConfig
	Template config.Template
	Clock    timeutil.Clock
	Workers  int
}

// New builds an Analyzer from cfg reading through fsys. A nil cfg uses the
// defaults and a nil fsys the OS filesystem.
func New(cfg *config.AnalysisConfig, fsys fsutil.FileSystem) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := config.LookupTemplate(cfg.GetTemplate())
	if err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Analyzer{
		Loader:   &hexstream.Loader{FS: fsys},
		Scanner:  frames.Scanner{Standalone: cfg.GetStandaloneInertial()},
		Bank:     filterbank.New(cfg.GetFilterCatalogue(), cfg.GetParallelFilters()),
		Config:   cfg,
		Template: tmpl,
		Clock:    timeutil.RealClock{},
		Workers:  cfg.GetWorkers(),
	}, nil
}

func (a *Analyzer) clock() timeutil.Clock {
	if a.Clock == nil {
		return timeutil.RealClock{}
	}
	return a.Clock
}

func (a *Analyzer) config() *config.AnalysisConfig {
	if a.Config == nil {
		return config.EmptyAnalysisConfig()
	}
	return a.Config
}

// Discover lists the input files for pattern. An empty pattern tries one
// glob per supported extension. The result is sorted and de-duplicated.
func (a *Analyzer) Discover(pattern string) ([]string, error) {
	patterns := []string{pattern}
	if pattern == "" {
		patterns = a.config().GetFilePatterns()
	}
	seen := make(map[string]bool)
	var paths []string
	for _, p := range patterns {
		matches, err := a.Loader.Glob(p)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoFiles, pattern)
	}
	return paths, nil
}

// AnalyzePattern discovers the files for pattern and analyses them.
func (a *Analyzer) AnalyzePattern(ctx context.Context, pattern string) (*Session, error) {
	paths, err := a.Discover(pattern)
	if err != nil {
		return nil, err
	}
	s, err := a.AnalyzeFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	s.Pattern = pattern
	return s, nil
}

// AnalyzeFiles analyses paths with up to Workers sources in flight.
// Sources keep the order of paths. A source that fails is logged and
// recorded in its SourceResult; only a cancelled context fails the call.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string) (*Session, error) {
	clock := a.clock()
	s := &Session{
		ID:        uuid.New(),
		StartedAt: clock.Now(),
		Template:  a.Template.Name,
		Sources:   make([]SourceResult, len(paths)),
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Workers > 0 {
		g.SetLimit(a.Workers)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.analyzePath(gctx, path)
			if err != nil {
				return err
			}
			s.Sources[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.FinishedAt = clock.Now()
	monitoring.Logf("analysis: session %s: %d sources, %d ranging, %d inertial, %d failed",
		s.ID, len(s.Sources), s.RangingCount(), s.InertialCount(), s.FailedCount())
	return s, nil
}

// analyzePath returns an error only for context cancellation.
func (a *Analyzer) analyzePath(ctx context.Context, path string) (SourceResult, error) {
	sw := timeutil.NewStopwatch(a.clock())
	buf, err := a.Loader.Load(path)
	sw.Lap(StageLoad)
	if err != nil {
		monitoring.Logf("analysis: skipping %s: %v", path, err)
		return SourceResult{Path: path, Err: err, Timings: sw.Laps()}, nil
	}
	return a.analyze(ctx, buf, sw)
}

// AnalyzeBuffer runs every stage after loading on an already decoded buffer.
func (a *Analyzer) AnalyzeBuffer(ctx context.Context, buf *hexstream.Buffer) (SourceResult, error) {
	return a.analyze(ctx, buf, timeutil.NewStopwatch(a.clock()))
}

func (a *Analyzer) analyze(ctx context.Context, buf *hexstream.Buffer, sw *timeutil.Stopwatch) (SourceResult, error) {
	cfg := a.config()
	res := SourceResult{Path: buf.Source, Bytes: len(buf.Data)}

	scanned := a.Scanner.Scan(buf.Data)
	res.Records, res.Stats = scanned.Records, scanned.Stats
	sw.Lap(StageScan)
	monitoring.Debugf("analysis: %s: %d ranging, %d inertial, %d/%d rejected",
		buf.Source, res.Stats.RangingCount, res.Stats.InertialCount,
		res.Stats.RejectedRanging, res.Stats.RejectedInertial)

	distances := frames.Distances(res.Records)
	res.Violations = quality.CheckRanges(res.Records, quality.Limits{
		DistanceMin: cfg.GetDistanceMin(),
		DistanceMax: cfg.GetDistanceMax(),
		AccelLimit:  cfg.GetAccelLimit(),
		GyroLimit:   cfg.GetGyroLimit(),
	})
	if a.Template.Statistics {
		res.Summary = quality.Summarize(distances, cfg.GetPercentiles())
	}
	if a.Template.Outliers && len(distances) > 0 {
		report, err := quality.Outliers(distances, cfg.GetOutlierMethod())
		if err != nil {
			res.Err = err
			res.Timings = sw.Laps()
			return res, nil
		}
		res.Outliers = report
	}
	sw.Lap(StageQuality)

	if len(distances) >= filterbank.MinSamples {
		cmp, err := a.Bank.Compare(ctx, distances)
		if err != nil {
			if ctx.Err() != nil {
				return SourceResult{}, ctx.Err()
			}
			res.Err = err
			res.Timings = sw.Laps()
			monitoring.Logf("analysis: %s: filter comparison failed: %v", buf.Source, err)
			return res, nil
		}
		res.Comparison = cmp
	} else {
		monitoring.Debugf("analysis: %s: %d distances, filtering skipped", buf.Source, len(distances))
	}
	sw.Lap(StageFilter)

	if a.Template.Statistics {
		res.Estimates = estimate.All(distances, cfg.GetMovingAverageWindow())
		if best, ok := estimate.Best(res.Estimates); ok {
			res.Best = &best
		}
	}
	sw.Lap(StageEstimate)

	res.Timings = sw.Laps()
	return res, nil
}
