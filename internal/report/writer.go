package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/uwb.report/internal/analysis"
	"github.com/banshee-data/uwb.report/internal/config"
	"github.com/banshee-data/uwb.report/internal/fsutil"
	"github.com/banshee-data/uwb.report/internal/monitoring"
	"github.com/banshee-data/uwb.report/internal/security"
)

// Output file names, prefixed with the session prefix.
const (
	suffixHTML   = "_report.html"
	suffixJSON   = "_analysis.json"
	suffixCSV    = "_records.csv"
	suffixCharts = "_charts.html"
	plotsDir     = "plots"
)

// Writer writes the files a template enables into Dir.
type Writer struct {
	FS           fsutil.FileSystem
	Dir          string
	Options      Options
	JSONIndent   int
	CSVDelimiter rune
}

// NewWriter configures a writer from cfg. A nil fsys uses the OS.
func NewWriter(cfg *config.AnalysisConfig, fsys fsutil.FileSystem) *Writer {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Writer{
		FS:  fsys,
		Dir: cfg.GetOutputDir(),
		Options: Options{
			Devices:    cfg.GetDeviceNames(),
			MaxRecords: cfg.GetMaxDisplayRecords(),
			Location:   cfg.GetLocation(),
		},
		JSONIndent:   cfg.GetJSONIndent(),
		CSVDelimiter: cfg.GetCSVDelimiter(),
	}
}

// SessionPrefix is the file name prefix for a session's outputs.
func SessionPrefix(s *analysis.Session) string {
	return security.SanitizeFilename("uwb_" + s.ID.String()[:8])
}

// Write renders s as enabled by tmpl and returns the written paths in
// the order they were produced.
func (w *Writer) Write(s *analysis.Session, tmpl config.Template) ([]string, error) {
	if err := w.FS.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	opts := w.Options
	opts.Timing = tmpl.Timing
	opts.Outliers = tmpl.Outliers
	doc := NewDocument(s, opts)
	prefix := SessionPrefix(s)

	var written []string
	emit := func(name string, render func(io.Writer) error) error {
		path, err := w.create(name, render)
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if tmpl.HTML {
		if err := emit(prefix+suffixHTML, func(out io.Writer) error { return WriteHTML(out, doc) }); err != nil {
			return written, err
		}
	}
	if tmpl.JSON {
		if err := emit(prefix+suffixJSON, func(out io.Writer) error { return WriteJSON(out, doc, w.JSONIndent) }); err != nil {
			return written, err
		}
	}
	if tmpl.CSV {
		if err := emit(prefix+suffixCSV, func(out io.Writer) error { return WriteCSV(out, s, w.CSVDelimiter) }); err != nil {
			return written, err
		}
	}
	if tmpl.Charts {
		if s.RangingCount() > 0 {
			if err := emit(prefix+suffixCharts, func(out io.Writer) error {
				_, err := WriteCharts(out, s)
				return err
			}); err != nil {
				return written, err
			}
		}
		paths, err := w.writePlots(s)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}

	monitoring.Logf("report: wrote %d files to %s", len(written), w.Dir)
	return written, nil
}

// writePlots writes the PNG plots of every source under Dir/plots. Names
// carry the source index so inputs with the same base name do not collide.
func (w *Writer) writePlots(s *analysis.Session) ([]string, error) {
	var written []string
	for i := range s.Sources {
		suffixes, plots, err := sourcePlots(&s.Sources[i])
		if err != nil {
			return written, err
		}
		for j, p := range plots {
			name := filepath.Join(plotsDir, fmt.Sprintf("%03d_%s", i, security.SourceFilename(s.Sources[i].Path, suffixes[j])))
			path, err := w.create(name, func(out io.Writer) error { return WritePNG(out, p) })
			if err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func (w *Writer) create(name string, render func(io.Writer) error) (string, error) {
	path, err := security.JoinWithin(w.Dir, name)
	if err != nil {
		return "", err
	}
	if err := w.FS.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := w.FS.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
