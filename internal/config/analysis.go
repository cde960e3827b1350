package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/banshee-data/uwb.report/internal/kalman"
	"github.com/banshee-data/uwb.report/internal/units"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// Outlier detection methods.
const (
	OutlierIQR    = "iqr"
	OutlierZScore = "zscore"
)

// AnalysisConfig is the root configuration of a batch analysis. Fields
// omitted from the JSON fall back to the defaults returned by the Get*
// methods, so partial files are safe.
type AnalysisConfig struct {
	// Input
	FilePattern         *string  `json:"file_pattern,omitempty"`
	SupportedExtensions []string `json:"supported_extensions,omitempty"`
	StandaloneInertial  *bool    `json:"standalone_inertial,omitempty"`
	Workers             *int     `json:"workers,omitempty"` // 0 means one per CPU

	// Output
	OutputDir         *string `json:"output_dir,omitempty"`
	Template          *string `json:"template,omitempty"`
	MaxDisplayRecords *int    `json:"max_display_records,omitempty"`
	JSONIndent        *int    `json:"json_indent,omitempty"`
	CSVDelimiter      *string `json:"csv_delimiter,omitempty"`
	Timezone          *string `json:"timezone,omitempty"` // tz database name for report times

	// Application-range checks, tighter than the wire ranges
	DistanceMin *float64 `json:"distance_min,omitempty"`
	DistanceMax *float64 `json:"distance_max,omitempty"`
	AccelLimit  *float64 `json:"accel_limit,omitempty"` // |acc| above this is flagged
	GyroLimit   *float64 `json:"gyro_limit,omitempty"`  // |gyro| above this is flagged

	// Statistics
	OutlierMethod       *string   `json:"outlier_method,omitempty"`
	Percentiles         []float64 `json:"percentiles,omitempty"`
	MovingAverageWindow *int      `json:"moving_average_window,omitempty"`

	// Filters
	Filters         []FilterConfig `json:"filters,omitempty"`
	ParallelFilters *bool          `json:"parallel_filters,omitempty"`

	// Devices maps "0x%08X" ids to display names.
	DeviceNames map[string]string `json:"device_names,omitempty"`
}

// FilterConfig overrides one entry of the filter catalogue. A name matching
// a preset starts from that preset and unset fields keep the preset value.
// Any other name is a custom filter and must set kind and measurement_noise;
// the remaining fields default to the standard preset.
type FilterConfig struct {
	Name              string   `json:"name"`
	Kind              string   `json:"kind,omitempty"`
	ProcessNoise      *float64 `json:"process_noise,omitempty"`
	MeasurementNoise  *float64 `json:"measurement_noise,omitempty"`
	InitialCovariance *float64 `json:"initial_covariance,omitempty"`
	StateTransition   *float64 `json:"state_transition,omitempty"`
	Observation       *float64 `json:"observation,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set to its
// default, suitable for writing out as a starting point.
func DefaultAnalysisConfig() *AnalysisConfig {
	e := EmptyAnalysisConfig()
	return &AnalysisConfig{
		FilePattern:         ptrString(e.GetFilePattern()),
		SupportedExtensions: e.GetSupportedExtensions(),
		StandaloneInertial:  ptrBool(false),
		Workers:             ptrInt(0),
		OutputDir:           ptrString(e.GetOutputDir()),
		Template:            ptrString(e.GetTemplate()),
		MaxDisplayRecords:   ptrInt(e.GetMaxDisplayRecords()),
		JSONIndent:          ptrInt(e.GetJSONIndent()),
		CSVDelimiter:        ptrString(string(e.GetCSVDelimiter())),
		Timezone:            ptrString(e.GetTimezone()),
		DistanceMin:         ptrFloat64(e.GetDistanceMin()),
		DistanceMax:         ptrFloat64(e.GetDistanceMax()),
		AccelLimit:          ptrFloat64(e.GetAccelLimit()),
		GyroLimit:           ptrFloat64(e.GetGyroLimit()),
		OutlierMethod:       ptrString(e.GetOutlierMethod()),
		Percentiles:         e.GetPercentiles(),
		MovingAverageWindow: ptrInt(e.GetMovingAverageWindow()),
		ParallelFilters:     ptrBool(false),
		DeviceNames: map[string]string{
			FormatDeviceID(0x21A688DB): "Device 1",
			FormatDeviceID(0x3543C42E): "Device 2",
		},
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns an empty config
// otherwise. Any other load error is returned.
func LoadOrDefault(path string) (*AnalysisConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return EmptyAnalysisConfig(), nil
	}
	return LoadAnalysisConfig(path)
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or a parent. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Save writes the configuration as indented JSON.
func (c *AnalysisConfig) Save(path string) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	data, err := json.MarshalIndent(c, "", strings.Repeat(" ", c.GetJSONIndent()))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cleanPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration values are usable. Filter noise
// parameters are not checked here: an unusable filter is skipped at
// comparison time without stopping the others.
func (c *AnalysisConfig) Validate() error {
	if c.FilePattern != nil {
		if _, err := filepath.Match(*c.FilePattern, ""); err != nil {
			return fmt.Errorf("invalid file_pattern %q: %w", *c.FilePattern, err)
		}
	}
	for _, ext := range c.SupportedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("supported_extensions entry %q must start with '.'", ext)
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Template != nil {
		if _, err := LookupTemplate(*c.Template); err != nil {
			return err
		}
	}
	if c.MaxDisplayRecords != nil && *c.MaxDisplayRecords < 0 {
		return fmt.Errorf("max_display_records must be non-negative, got %d", *c.MaxDisplayRecords)
	}
	if c.JSONIndent != nil && (*c.JSONIndent < 0 || *c.JSONIndent > 8) {
		return fmt.Errorf("json_indent must be between 0 and 8, got %d", *c.JSONIndent)
	}
	if c.CSVDelimiter != nil && len([]rune(*c.CSVDelimiter)) != 1 {
		return fmt.Errorf("csv_delimiter must be a single character, got %q", *c.CSVDelimiter)
	}
	if c.Timezone != nil && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("invalid timezone %q", *c.Timezone)
	}
	if c.GetDistanceMin() >= c.GetDistanceMax() {
		return fmt.Errorf("distance_min (%g) must be below distance_max (%g)", c.GetDistanceMin(), c.GetDistanceMax())
	}
	if c.GetAccelLimit() <= 0 {
		return fmt.Errorf("accel_limit must be positive, got %g", c.GetAccelLimit())
	}
	if c.GetGyroLimit() <= 0 {
		return fmt.Errorf("gyro_limit must be positive, got %g", c.GetGyroLimit())
	}
	if c.OutlierMethod != nil {
		switch *c.OutlierMethod {
		case OutlierIQR, OutlierZScore:
		default:
			return fmt.Errorf("outlier_method must be %q or %q, got %q", OutlierIQR, OutlierZScore, *c.OutlierMethod)
		}
	}
	for _, p := range c.Percentiles {
		if p < 0 || p > 100 {
			return fmt.Errorf("percentiles must be within [0, 100], got %g", p)
		}
	}
	if c.MovingAverageWindow != nil && *c.MovingAverageWindow < 1 {
		return fmt.Errorf("moving_average_window must be at least 1, got %d", *c.MovingAverageWindow)
	}

	seen := make(map[string]bool, len(c.Filters))
	for i, f := range c.Filters {
		if f.Name == "" {
			return fmt.Errorf("filters[%d]: name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("filters[%d]: duplicate name %q", i, f.Name)
		}
		seen[f.Name] = true
		switch kalman.Kind(f.Kind) {
		case "", kalman.KindStandard, kalman.KindAdaptive:
		default:
			return fmt.Errorf("filters[%d]: unknown kind %q", i, f.Kind)
		}
	}

	for key := range c.DeviceNames {
		if _, err := parseDeviceID(key); err != nil {
			return fmt.Errorf("device_names: %w", err)
		}
	}
	return nil
}

// GetFilePattern returns the input glob or the default "*.txt".
func (c *AnalysisConfig) GetFilePattern() string {
	if c.FilePattern == nil || *c.FilePattern == "" {
		return "*.txt"
	}
	return *c.FilePattern
}

// GetSupportedExtensions returns the recognised input extensions.
func (c *AnalysisConfig) GetSupportedExtensions() []string {
	if len(c.SupportedExtensions) == 0 {
		return []string{".txt", ".hex", ".dat"}
	}
	return c.SupportedExtensions
}

// GetFilePatterns returns one glob per supported extension.
func (c *AnalysisConfig) GetFilePatterns() []string {
	exts := c.GetSupportedExtensions()
	out := make([]string, len(exts))
	for i, ext := range exts {
		out[i] = "*" + ext
	}
	return out
}

// GetStandaloneInertial reports whether inertial frames are accepted
// without a preceding ranging frame.
func (c *AnalysisConfig) GetStandaloneInertial() bool {
	if c.StandaloneInertial == nil {
		return false
	}
	return *c.StandaloneInertial
}

// GetWorkers returns the number of sources analysed concurrently.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetOutputDir returns the report directory or "analysis_output".
func (c *AnalysisConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "analysis_output"
	}
	return *c.OutputDir
}

// GetTemplate returns the analysis template name or "basic".
func (c *AnalysisConfig) GetTemplate() string {
	if c.Template == nil || *c.Template == "" {
		return TemplateBasic
	}
	return *c.Template
}

// GetTimezone returns the report timezone or "UTC".
func (c *AnalysisConfig) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return units.DefaultTimezone
	}
	return *c.Timezone
}

// GetLocation loads GetTimezone, falling back to UTC when the tz database
// does not know it.
func (c *AnalysisConfig) GetLocation() *time.Location {
	loc, err := units.Location(c.GetTimezone())
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetMaxDisplayRecords returns how many records the HTML report lists.
func (c *AnalysisConfig) GetMaxDisplayRecords() int {
	if c.MaxDisplayRecords == nil {
		return 100
	}
	return *c.MaxDisplayRecords
}

// GetJSONIndent returns the indent width of JSON output.
func (c *AnalysisConfig) GetJSONIndent() int {
	if c.JSONIndent == nil {
		return 2
	}
	return *c.JSONIndent
}

// GetCSVDelimiter returns the CSV field separator.
func (c *AnalysisConfig) GetCSVDelimiter() rune {
	if c.CSVDelimiter == nil || *c.CSVDelimiter == "" {
		return ','
	}
	return []rune(*c.CSVDelimiter)[0]
}

// GetDistanceMin returns the lowest plausible distance.
func (c *AnalysisConfig) GetDistanceMin() float64 {
	if c.DistanceMin == nil {
		return 0
	}
	return *c.DistanceMin
}

// GetDistanceMax returns the highest plausible distance.
func (c *AnalysisConfig) GetDistanceMax() float64 {
	if c.DistanceMax == nil {
		return 10000
	}
	return *c.DistanceMax
}

// GetAccelLimit returns the plausible accelerometer magnitude.
func (c *AnalysisConfig) GetAccelLimit() float64 {
	if c.AccelLimit == nil {
		return 1000
	}
	return *c.AccelLimit
}

// GetGyroLimit returns the plausible gyroscope magnitude.
func (c *AnalysisConfig) GetGyroLimit() float64 {
	if c.GyroLimit == nil {
		return 1000
	}
	return *c.GyroLimit
}

// GetOutlierMethod returns "iqr" or "zscore".
func (c *AnalysisConfig) GetOutlierMethod() string {
	if c.OutlierMethod == nil || *c.OutlierMethod == "" {
		return OutlierIQR
	}
	return *c.OutlierMethod
}

// GetPercentiles returns the percentiles reported per source.
func (c *AnalysisConfig) GetPercentiles() []float64 {
	if len(c.Percentiles) == 0 {
		return []float64{25, 50, 75, 90, 95, 99}
	}
	return c.Percentiles
}

// GetMovingAverageWindow returns the moving-average estimator window.
func (c *AnalysisConfig) GetMovingAverageWindow() int {
	if c.MovingAverageWindow == nil {
		return 5
	}
	return *c.MovingAverageWindow
}

// GetParallelFilters reports whether catalogue entries run concurrently.
func (c *AnalysisConfig) GetParallelFilters() bool {
	if c.ParallelFilters == nil {
		return false
	}
	return *c.ParallelFilters
}

// GetFilterCatalogue returns the filter configurations to compare, in
// order. Without overrides this is the preset catalogue.
func (c *AnalysisConfig) GetFilterCatalogue() []kalman.Config {
	if len(c.Filters) == 0 {
		return kalman.Presets()
	}
	out := make([]kalman.Config, 0, len(c.Filters))
	for _, f := range c.Filters {
		base, err := kalman.Lookup(f.Name)
		if err != nil {
			if f.Kind == "" || f.MeasurementNoise == nil {
				// kindless entries are rejected when the bank runs them
				out = append(out, kalman.Config{Name: f.Name})
				continue
			}
			base = kalman.Standard()
			base.Name = f.Name
		}
		if f.Kind != "" {
			base.Kind = kalman.Kind(f.Kind)
		}
		if f.ProcessNoise != nil {
			base.ProcessNoise = *f.ProcessNoise
		}
		if f.MeasurementNoise != nil {
			base.MeasurementNoise = *f.MeasurementNoise
		}
		if f.InitialCovariance != nil {
			base.InitialCovariance = *f.InitialCovariance
		}
		if f.StateTransition != nil {
			base.StateTransition = *f.StateTransition
		}
		if f.Observation != nil {
			base.Observation = *f.Observation
		}
		out = append(out, base)
	}
	return out
}
