package config

import (
	"errors"
	"fmt"
)

// ErrUnknownTemplate is returned for template names outside Templates.
var ErrUnknownTemplate = errors.New("unknown analysis template")

// Built-in template names.
const (
	TemplateBasic       = "basic"
	TemplateDetailed    = "detailed"
	TemplatePerformance = "performance"
)

// Template selects which outputs an analysis produces.
type Template struct {
	Name        string
	Description string
	Charts      bool // ECharts page and PNG plots
	Statistics  bool // distance summaries and estimators
	HTML        bool
	JSON        bool
	CSV         bool
	Outliers    bool
	Timing      bool // per-stage durations in the reports
}

var templates = []Template{
	{
		Name:        TemplateBasic,
		Description: "Basic analysis",
		Charts:      true,
		Statistics:  true,
		HTML:        true,
	},
	{
		Name:        TemplateDetailed,
		Description: "Detailed analysis with JSON/CSV export and outliers",
		Charts:      true,
		Statistics:  true,
		HTML:        true,
		JSON:        true,
		CSV:         true,
		Outliers:    true,
	},
	{
		Name:        TemplatePerformance,
		Description: "Performance analysis with timing",
		Charts:      true,
		Statistics:  true,
		HTML:        true,
		Timing:      true,
	},
}

// Templates returns the built-in templates in display order.
func Templates() []Template {
	return append([]Template(nil), templates...)
}

// LookupTemplate returns the template called name.
func LookupTemplate(name string) (Template, error) {
	for _, t := range templates {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}
