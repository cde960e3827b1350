package report

import (
	"embed"
	"html/template"
	"io"
	"strconv"
)

//go:embed templates/*
var templateFS embed.FS

var htmlTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"f0":  func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) },
	"f2":  func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"f3":  func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) },
	"snr": formatSNR,
}).ParseFS(templateFS, "templates/report.html.tmpl"))

func formatSNR(s StatsReport) string {
	switch {
	case s.SNRInfinite:
		return "∞"
	case s.SNRImprovementDB == nil:
		return "-"
	default:
		return strconv.FormatFloat(*s.SNRImprovementDB, 'f', 2, 64)
	}
}

// WriteHTML renders doc as a standalone HTML page.
func WriteHTML(w io.Writer, doc *Document) error {
	return htmlTemplate.Execute(w, doc)
}
