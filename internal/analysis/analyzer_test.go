package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uwb.report/internal/config"
	"github.com/banshee-data/uwb.report/internal/fsutil"
	"github.com/banshee-data/uwb.report/internal/hexstream"
	"github.com/banshee-data/uwb.report/internal/monitoring"
	"github.com/banshee-data/uwb.report/internal/testutil"
	"github.com/banshee-data/uwb.report/internal/timeutil"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func noisyDistances(n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(1000 + (i*7)%11 - 5)
	}
	return out
}

func quietLogs(t *testing.T) *[]string {
	t.Helper()
	var (
		mu    sync.Mutex
		lines []string
	)
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })
	return &lines
}

func newAnalyzer(t *testing.T, cfg *config.AnalysisConfig, fsys fsutil.FileSystem) *Analyzer {
	t.Helper()
	a, err := New(cfg, fsys)
	require.NoError(t, err)
	a.Clock = timeutil.NewMockClock(epoch)
	a.Workers = 1
	return a
}

func TestAnalyzeFiles(t *testing.T) {
	quietLogs(t)
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDump(t, fsys, "data/a.txt", testutil.SampleStream(noisyDistances(20)...))
	require.NoError(t, fsys.WriteFile("data/b.txt", []byte("DD 66 zz"), 0644))
	testutil.WriteDump(t, fsys, "data/c.txt", testutil.RangingStream(1234))

	a := newAnalyzer(t, nil, fsys)
	a.Workers = 2
	s, err := a.AnalyzeFiles(context.Background(), []string{"data/a.txt", "data/b.txt", "data/c.txt", "data/missing.txt"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, epoch, s.StartedAt)
	assert.Equal(t, config.TemplateBasic, s.Template)
	require.Len(t, s.Sources, 4)

	first := s.Sources[0]
	assert.Equal(t, "data/a.txt", first.Path)
	require.True(t, first.OK())
	assert.Equal(t, 20, first.Stats.RangingCount)
	assert.Equal(t, 20, first.Stats.InertialCount)
	require.NotNil(t, first.Comparison)
	assert.NotEmpty(t, first.Comparison.Best)
	require.NotNil(t, first.Summary)
	assert.Equal(t, 20, first.Summary.Count)
	assert.Len(t, first.Estimates, 6)
	require.NotNil(t, first.Best)
	assert.InDelta(t, 1000, first.Best.Value, 5)
	assert.Nil(t, first.Outliers, "basic template does not flag outliers")
	assert.Empty(t, first.Violations)

	assert.ErrorIs(t, s.Sources[1].Err, hexstream.ErrInvalidHex)
	assert.Equal(t, "data/b.txt", s.Sources[1].Path)

	last := s.Sources[2]
	require.True(t, last.OK())
	assert.Equal(t, 1, last.Stats.RangingCount)
	assert.Nil(t, last.Comparison, "a single distance is not filtered")
	assert.Equal(t, []float64{1234}, last.Distances())

	assert.Error(t, s.Sources[3].Err)

	assert.Equal(t, 21, s.RangingCount())
	assert.Equal(t, 20, s.InertialCount())
	assert.Equal(t, 1, s.FilteredCount())
	assert.Equal(t, 2, s.FailedCount())
	assert.Equal(t, time.Duration(0), s.Duration())
}

func TestAnalyzeFiles_LogsSkippedSources(t *testing.T) {
	lines := quietLogs(t)
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("bad.txt", []byte("ABC"), 0644))

	s, err := newAnalyzer(t, nil, fsys).AnalyzeFiles(context.Background(), []string{"bad.txt"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Sources[0].Err, hexstream.ErrOddLength)
	assert.Contains(t, *lines, "analysis: skipping %s: %v")
}

func TestAnalyzeFiles_Cancelled(t *testing.T) {
	quietLogs(t)
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDump(t, fsys, "a.txt", testutil.RangingStream(1, 2, 3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAnalyzer(t, nil, fsys).AnalyzeFiles(ctx, []string{"a.txt"})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestAnalyzePattern(t *testing.T) {
	quietLogs(t)
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteDump(t, fsys, "b.hex", testutil.RangingStream(10, 11))
	testutil.WriteDump(t, fsys, "a.txt", testutil.RangingStream(20, 21))
	require.NoError(t, fsys.WriteFile("notes.md", []byte("# notes"), 0644))

	a := newAnalyzer(t, nil, fsys)
	paths, err := a.Discover("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.hex"}, paths)

	s, err := a.AnalyzePattern(context.Background(), "*.hex")
	require.NoError(t, err)
	assert.Equal(t, "*.hex", s.Pattern)
	require.Len(t, s.Sources, 1)
	assert.Equal(t, "b.hex", s.Sources[0].Path)

	_, err = a.AnalyzePattern(context.Background(), "*.bin")
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestAnalyzeBuffer_DetailedTemplate(t *testing.T) {
	quietLogs(t)
	distances := noisyDistances(30)
	distances[7] = 9000

	cfg := config.EmptyAnalysisConfig()
	tmpl := config.TemplateDetailed
	limit := 5000.0
	cfg.Template = &tmpl
	cfg.DistanceMax = &limit

	a := newAnalyzer(t, cfg, fsutil.NewMemoryFileSystem())
	res, err := a.AnalyzeBuffer(context.Background(), &hexstream.Buffer{
		Source: "inline",
		Data:   testutil.RangingStream(distances...),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Outliers)
	assert.Equal(t, []int{7}, res.Outliers.Indices)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "distance", res.Violations[0].Field)
	assert.Equal(t, 9000.0, res.Violations[0].Value)
}

func TestAnalyzeBuffer_Timings(t *testing.T) {
	quietLogs(t)
	a := newAnalyzer(t, nil, fsutil.NewMemoryFileSystem())
	a.Clock = timeutil.NewSteppingClock(epoch, time.Millisecond)

	res, err := a.AnalyzeBuffer(context.Background(), &hexstream.Buffer{
		Source: "inline",
		Data:   testutil.RangingStream(noisyDistances(10)...),
	})
	require.NoError(t, err)

	var phases []string
	for _, lap := range res.Timings {
		phases = append(phases, lap.Phase)
		assert.Equal(t, time.Millisecond, lap.Duration)
	}
	assert.Equal(t, []string{StageScan, StageQuality, StageFilter, StageEstimate}, phases)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.EmptyAnalysisConfig()
	bad := "fancy"
	cfg.Template = &bad
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, config.ErrUnknownTemplate)
}
