// Command uwb-report analyses UWB/inertial hex dumps and writes the
// filter comparison reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/uwb.report/internal/analysis"
	"github.com/banshee-data/uwb.report/internal/config"
	"github.com/banshee-data/uwb.report/internal/db"
	"github.com/banshee-data/uwb.report/internal/geometry"
	"github.com/banshee-data/uwb.report/internal/hexstream"
	"github.com/banshee-data/uwb.report/internal/monitoring"
	"github.com/banshee-data/uwb.report/internal/report"
	"github.com/banshee-data/uwb.report/internal/security"
	"github.com/banshee-data/uwb.report/internal/version"
)

type options struct {
	pattern     string
	output      string
	template    string
	configPath  string
	dbPath      string
	workers     int
	verbose     bool
	list        bool
	info        string
	templates   bool
	triangulate string
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("uwb-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.pattern, "pattern", "", "Glob of hex dumps to analyse (default: file_pattern and supported_extensions from the config)")
	fs.StringVar(&o.output, "output", "", "Output directory (default from config)")
	fs.StringVar(&o.template, "template", "", "Analysis template: basic, detailed or performance")
	fs.StringVar(&o.configPath, "config", "", "Analysis config JSON (default "+config.DefaultConfigPath+" when present)")
	fs.StringVar(&o.dbPath, "db", "", "Record the session in this SQLite database")
	fs.IntVar(&o.workers, "workers", -1, "Sources analysed in parallel (0 = one per CPU, default from config)")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&o.list, "list", false, "List matching input files and exit")
	fs.StringVar(&o.info, "info", "", "Show size and a preview of one input file and exit")
	fs.BoolVar(&o.templates, "templates", false, "List analysis templates and exit")
	fs.StringVar(&o.triangulate, "triangulate", "", "Place three nodes from pairwise distances d01,d02,d12 and exit")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// loadConfig applies the command-line overrides on top of the config file.
func loadConfig(o *options) (*config.AnalysisConfig, error) {
	var (
		cfg *config.AnalysisConfig
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadAnalysisConfig(o.configPath)
	} else {
		cfg, err = config.LoadOrDefault(config.DefaultConfigPath)
	}
	if err != nil {
		return nil, err
	}
	if o.output != "" {
		cfg.OutputDir = &o.output
	}
	if o.template != "" {
		cfg.Template = &o.template
	}
	if o.workers >= 0 {
		cfg.Workers = &o.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseTriangle(s string) (d01, d02, d12 float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("want three comma-separated distances, got %q", s)
	}
	var d [3]float64
	for i, p := range parts {
		if d[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64); err != nil {
			return 0, 0, 0, fmt.Errorf("distance %d: %w", i+1, err)
		}
	}
	return d[0], d[1], d[2], nil
}

func printTemplates(w io.Writer) {
	for _, t := range config.Templates() {
		fmt.Fprintf(w, "%-12s %s\n", t.Name, t.Description)
	}
}

func printSession(w io.Writer, s *analysis.Session) {
	fmt.Fprintf(w, "Session %s: %d files, %d UWB records, %d inertial records, %d failed (%v)\n",
		s.ID, len(s.Sources), s.RangingCount(), s.InertialCount(), s.FailedCount(), s.Duration())
	for i := range s.Sources {
		src := &s.Sources[i]
		if src.Err != nil {
			fmt.Fprintf(w, "  %s: FAILED: %v\n", src.Path, src.Err)
			continue
		}
		fmt.Fprintf(w, "  %s: %d UWB, %d inertial", src.Path, src.Stats.RangingCount, src.Stats.InertialCount)
		if c := src.Comparison; c != nil && c.Best != "" {
			fmt.Fprintf(w, ", best filter %s (%.1f%% noise reduction)", c.Best, c.BestNoiseReduction)
		}
		if b := src.Best; b != nil {
			fmt.Fprintf(w, ", %s %.2f ± %.2f", b.Method, b.Value, b.ErrorMargin)
		}
		fmt.Fprintln(w)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "uwb-report: %v\n", err)
		return 2
	}
	fail := func(err error) int {
		fmt.Fprintf(stderr, "uwb-report: %v\n", err)
		return 1
	}

	switch {
	case o.version:
		fmt.Fprintln(stdout, version.String("uwb-report"))
		return 0
	case o.templates:
		printTemplates(stdout)
		return 0
	case o.triangulate != "":
		d01, d02, d12, err := parseTriangle(o.triangulate)
		if err != nil {
			return fail(err)
		}
		layout, err := geometry.Triangulate(d01, d02, d12)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintln(stdout, layout)
		return 0
	}

	monitoring.SetVerbose(o.verbose)
	cfg, err := loadConfig(o)
	if err != nil {
		return fail(err)
	}
	a, err := analysis.New(cfg, nil)
	if err != nil {
		return fail(err)
	}

	if o.info != "" {
		info, err := a.Loader.Info(o.info, hexstream.DefaultPreviewBytes)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "File: %s\nSize: %d bytes\n\n%s\n", info.Path, info.Size, info.Preview)
		return 0
	}
	if o.list {
		paths, err := a.Discover(o.pattern)
		if err != nil {
			return fail(err)
		}
		for _, p := range paths {
			fmt.Fprintln(stdout, p)
		}
		return 0
	}

	s, err := a.AnalyzePattern(ctx, o.pattern)
	if err != nil {
		return fail(err)
	}
	printSession(stdout, s)
	if s.FailedCount() == len(s.Sources) {
		return fail(errors.New("no file could be analysed"))
	}

	if err := security.ValidateOutputDir(cfg.GetOutputDir()); err != nil {
		return fail(err)
	}
	paths, err := report.NewWriter(cfg, nil).Write(s, a.Template)
	if err != nil {
		return fail(err)
	}
	for _, p := range paths {
		fmt.Fprintf(stdout, "wrote %s\n", p)
	}

	if o.dbPath != "" {
		database, err := db.NewDB(o.dbPath)
		if err != nil {
			return fail(err)
		}
		defer database.Close()
		if err := database.RecordSession(s); err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "recorded session %s in %s\n", s.ID, o.dbPath)
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
