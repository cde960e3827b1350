package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uwb.report/internal/kalman"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	c := EmptyAnalysisConfig()

	assert.Equal(t, "*.txt", c.GetFilePattern())
	assert.Equal(t, []string{".txt", ".hex", ".dat"}, c.GetSupportedExtensions())
	assert.Equal(t, []string{"*.txt", "*.hex", "*.dat"}, c.GetFilePatterns())
	assert.False(t, c.GetStandaloneInertial())
	assert.Equal(t, runtime.NumCPU(), c.GetWorkers())
	assert.Equal(t, "analysis_output", c.GetOutputDir())
	assert.Equal(t, TemplateBasic, c.GetTemplate())
	assert.Equal(t, 100, c.GetMaxDisplayRecords())
	assert.Equal(t, 2, c.GetJSONIndent())
	assert.Equal(t, ',', c.GetCSVDelimiter())
	assert.Equal(t, "UTC", c.GetTimezone())
	assert.Equal(t, time.UTC, c.GetLocation())
	assert.Equal(t, 0.0, c.GetDistanceMin())
	assert.Equal(t, 10000.0, c.GetDistanceMax())
	assert.Equal(t, 1000.0, c.GetAccelLimit())
	assert.Equal(t, 1000.0, c.GetGyroLimit())
	assert.Equal(t, OutlierIQR, c.GetOutlierMethod())
	assert.Equal(t, []float64{25, 50, 75, 90, 95, 99}, c.GetPercentiles())
	assert.Equal(t, 5, c.GetMovingAverageWindow())
	assert.False(t, c.GetParallelFilters())
	assert.Equal(t, kalman.Presets(), c.GetFilterCatalogue())
	assert.NoError(t, c.Validate())
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	got := MustLoadDefaultConfig()
	want := DefaultAnalysisConfig()

	if diff := cmp.Diff(got.GetFilterCatalogue(), kalman.Presets()); diff != "" {
		t.Errorf("filter catalogue mismatch (-file +presets):\n%s", diff)
	}
	got.Filters = nil
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("defaults file mismatch (-file +builtin):\n%s", diff)
	}
}

func TestLoadAnalysisConfig_Partial(t *testing.T) {
	path := writeConfig(t, `{
		"file_pattern": "*.hex",
		"workers": 3,
		"template": "detailed",
		"distance_max": 5000,
		"outlier_method": "zscore",
		"csv_delimiter": ";",
		"device_names": {"0x00000010": "Anchor A"}
	}`)

	cfg, err := LoadAnalysisConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "*.hex", cfg.GetFilePattern())
	assert.Equal(t, 3, cfg.GetWorkers())
	assert.Equal(t, TemplateDetailed, cfg.GetTemplate())
	assert.Equal(t, 5000.0, cfg.GetDistanceMax())
	assert.Equal(t, 0.0, cfg.GetDistanceMin())
	assert.Equal(t, OutlierZScore, cfg.GetOutlierMethod())
	assert.Equal(t, ';', cfg.GetCSVDelimiter())

	names := cfg.GetDeviceNames()
	assert.Equal(t, "Anchor A", names.Name(0x10))
	assert.Equal(t, "Device 1", names.Name(0x21A688DB))
	assert.Equal(t, "0x000000FF", names.Name(0xFF))
	assert.Equal(t, 3, names.Len())
}

func TestLoadAnalysisConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed json", `{"workers": }`, "failed to parse config JSON"},
		{"negative workers", `{"workers": -1}`, "workers must be non-negative"},
		{"unknown template", `{"template": "fancy"}`, "unknown analysis template"},
		{"inverted distance range", `{"distance_min": 10, "distance_max": 5}`, "distance_min"},
		{"bad outlier method", `{"outlier_method": "mad"}`, "outlier_method"},
		{"percentile out of range", `{"percentiles": [50, 101]}`, "percentiles"},
		{"bad glob", `{"file_pattern": "[a"}`, "invalid file_pattern"},
		{"extension without dot", `{"supported_extensions": ["txt"]}`, "must start with '.'"},
		{"unknown timezone", `{"timezone": "Mars/Olympus"}`, "invalid timezone"},
		{"long delimiter", `{"csv_delimiter": ";;"}`, "csv_delimiter"},
		{"zero accel limit", `{"accel_limit": 0}`, "accel_limit"},
		{"zero window", `{"moving_average_window": 0}`, "moving_average_window"},
		{"unnamed filter", `{"filters": [{"kind": "standard"}]}`, "name is required"},
		{"duplicate filter", `{"filters": [{"name": "a"}, {"name": "a"}]}`, "duplicate name"},
		{"unknown filter kind", `{"filters": [{"name": "a", "kind": "ukf"}]}`, "unknown kind"},
		{"bad device id", `{"device_names": {"device-1": "x"}}`, "invalid device id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAnalysisConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAnalysisConfig_FileChecks(t *testing.T) {
	_, err := LoadAnalysisConfig("config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")

	_, err = LoadAnalysisConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat")

	big := writeConfig(t, `{"output_dir": "`+strings.Repeat("a", maxConfigFileSize)+`"}`)
	_, err = LoadAnalysisConfig(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, EmptyAnalysisConfig(), cfg)

	_, err = LoadOrDefault(writeConfig(t, `{"workers": -5}`))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "saved.json")
	want := DefaultAnalysisConfig()
	want.Filters = []FilterConfig{{Name: "slow", Kind: "standard", ProcessNoise: ptrFloat64(0.01)}}

	require.NoError(t, want.Save(path))
	got, err := LoadAnalysisConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("round trip mismatch (-got +want):\n%s", diff)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"file_pattern\"")

	assert.Error(t, want.Save(filepath.Join(t.TempDir(), "saved.txt")))
}

func TestGetFilterCatalogue_Overrides(t *testing.T) {
	cfg := &AnalysisConfig{Filters: []FilterConfig{
		{Name: "smooth", MeasurementNoise: ptrFloat64(80)},
		{Name: "custom", Kind: "adaptive", ProcessNoise: ptrFloat64(2), MeasurementNoise: ptrFloat64(30), InitialCovariance: ptrFloat64(10)},
		{Name: "broken", MeasurementNoise: ptrFloat64(0)},
	}}
	require.NoError(t, cfg.Validate())

	cat := cfg.GetFilterCatalogue()
	require.Len(t, cat, 3)

	smooth := kalman.Smooth()
	smooth.MeasurementNoise = 80
	assert.Equal(t, smooth, cat[0])

	assert.Equal(t, "custom", cat[1].Name)
	assert.Equal(t, kalman.KindAdaptive, cat[1].Kind)
	assert.Equal(t, 2.0, cat[1].ProcessNoise)
	assert.Equal(t, 30.0, cat[1].MeasurementNoise)
	assert.Equal(t, 10.0, cat[1].InitialCovariance)
	assert.Equal(t, 1.0, cat[1].StateTransition)
	assert.NoError(t, cat[1].Validate())

	// unusable filters load fine and are skipped at comparison time
	assert.ErrorIs(t, cat[2].Validate(), kalman.ErrInvalidConfig)
}

func TestGetFilterCatalogue_UnknownNames(t *testing.T) {
	cfg := &AnalysisConfig{Filters: []FilterConfig{
		{Name: "adaptve"},
		{Name: "kind-only", Kind: "adaptive"},
		{Name: "noise-only", MeasurementNoise: ptrFloat64(20)},
		{Name: "adaptive"},
	}}
	require.NoError(t, cfg.Validate())

	cat := cfg.GetFilterCatalogue()
	require.Len(t, cat, 4)
	for _, c := range cat[:3] {
		assert.ErrorIs(t, c.Validate(), kalman.ErrUnknownFilter, c.Name)
		_, err := kalman.Run(c, []float64{100, 104})
		assert.ErrorIs(t, err, kalman.ErrUnknownFilter, c.Name)
	}
	assert.Equal(t, kalman.Adaptive(), cat[3])
}

func TestTemplates(t *testing.T) {
	all := Templates()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"basic", "detailed", "performance"}, []string{all[0].Name, all[1].Name, all[2].Name})

	d, err := LookupTemplate(TemplateDetailed)
	require.NoError(t, err)
	assert.True(t, d.JSON && d.CSV && d.Outliers && d.HTML && d.Charts)
	assert.False(t, d.Timing)

	p, err := LookupTemplate(TemplatePerformance)
	require.NoError(t, err)
	assert.True(t, p.Timing)
	assert.False(t, p.JSON)

	_, err = LookupTemplate("nope")
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	// callers get a copy
	all[0].HTML = false
	b, _ := LookupTemplate(TemplateBasic)
	assert.True(t, b.HTML)
}

func TestFormatDeviceID(t *testing.T) {
	assert.Equal(t, "0x21A688DB", FormatDeviceID(0x21A688DB))
	id, err := parseDeviceID("0x3543c42e")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3543C42E), id)
	_, err = parseDeviceID("0x1FFFFFFFF")
	assert.Error(t, err)
}

func TestGetLocation(t *testing.T) {
	tz := "Europe/Berlin"
	c := &AnalysisConfig{Timezone: &tz}
	require.NoError(t, c.Validate())
	assert.Equal(t, "Europe/Berlin", c.GetLocation().String())
}
