package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/uwb.report/internal/estimate"
	"github.com/banshee-data/uwb.report/internal/filterbank"
	"github.com/banshee-data/uwb.report/internal/frames"
	"github.com/banshee-data/uwb.report/internal/quality"
	"github.com/banshee-data/uwb.report/internal/timeutil"
)

// SourceResult is everything derived from one input file. When Err is set
// the remaining fields hold whatever was produced before the failure.
type SourceResult struct {
	Path       string
	Bytes      int // decoded length
	Records    []frames.Record
	Stats      frames.SourceStats
	Summary    *quality.Summary
	Violations []quality.Violation
	Outliers   *quality.OutlierReport // nil unless the template asks for it
	Comparison *filterbank.Comparison // nil with fewer than two distances
	Estimates  []estimate.Estimate
	Best       *estimate.Estimate
	Timings    []timeutil.Lap
	Err        error
}

// OK reports whether the source was analysed without error.
func (r *SourceResult) OK() bool { return r.Err == nil }

// Distances returns the ranging distances in stream order.
func (r *SourceResult) Distances() []float64 {
	return frames.Distances(r.Records)
}

// Session is one batch run over a set of sources.
type Session struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Pattern    string
	Template   string
	Sources    []SourceResult
}

// Duration is the wall time of the whole session.
func (s *Session) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RangingCount totals ranging records over all sources.
func (s *Session) RangingCount() int {
	n := 0
	for i := range s.Sources {
		n += s.Sources[i].Stats.RangingCount
	}
	return n
}

// InertialCount totals inertial records over all sources.
func (s *Session) InertialCount() int {
	n := 0
	for i := range s.Sources {
		n += s.Sources[i].Stats.InertialCount
	}
	return n
}

// FilteredCount is the number of sources that went through the filter bank.
func (s *Session) FilteredCount() int {
	n := 0
	for i := range s.Sources {
		if s.Sources[i].Comparison != nil {
			n++
		}
	}
	return n
}

// FailedCount is the number of sources that could not be analysed.
func (s *Session) FailedCount() int {
	n := 0
	for i := range s.Sources {
		if s.Sources[i].Err != nil {
			n++
		}
	}
	return n
}
