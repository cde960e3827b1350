// Command uwb-server serves recorded analysis sessions and report files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/uwb.report/internal/api"
	"github.com/banshee-data/uwb.report/internal/db"
	"github.com/banshee-data/uwb.report/internal/version"
)

type options struct {
	listen     string
	dbPath     string
	reportDir  string
	version    bool
	subcommand []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("uwb-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.listen, "listen", ":8080", "Listen address")
	fs.StringVar(&o.dbPath, "db", "uwb_analysis.db", "SQLite database of recorded sessions")
	fs.StringVar(&o.reportDir, "reports", "analysis_output", "Directory served under /reports/ (empty to disable)")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.subcommand = fs.Args()
	if len(o.subcommand) > 0 && o.subcommand[0] != "migrate" {
		return nil, fmt.Errorf("unknown command %q", o.subcommand[0])
	}
	return o, nil
}

// newHandler mounts the API and the admin routes on one mux.
func newHandler(database *db.DB, reportDir string) (http.Handler, error) {
	mux := api.NewServer(database, reportDir).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return api.LoggingMiddleware(mux), nil
}

// serve runs until ctx is cancelled, then shuts the server down.
func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "uwb-server: %v\n", err)
		return 2
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("uwb-server"))
		return 0
	}
	if len(o.subcommand) > 0 {
		if err := db.RunMigrateCommand(o.subcommand[1:], o.dbPath, stdout); err != nil {
			fmt.Fprintf(stderr, "uwb-server: %v\n", err)
			return 1
		}
		return 0
	}

	database, err := db.NewDB(o.dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "uwb-server: failed to open database: %v\n", err)
		return 1
	}
	defer database.Close()

	handler, err := newHandler(database, o.reportDir)
	if err != nil {
		fmt.Fprintf(stderr, "uwb-server: %v\n", err)
		return 1
	}
	ln, err := net.Listen("tcp", o.listen)
	if err != nil {
		fmt.Fprintf(stderr, "uwb-server: %v\n", err)
		return 1
	}
	log.Printf("HTTP server listening on %s (db %s, reports %q)", ln.Addr(), o.dbPath, o.reportDir)
	if err := serve(ctx, ln, handler); err != nil {
		fmt.Fprintf(stderr, "uwb-server: %v\n", err)
		return 1
	}
	log.Printf("Graceful shutdown complete")
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
