// Package api serves stored analysis sessions and the generated report
// files over HTTP.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/uwb.report/internal/db"
	"github.com/banshee-data/uwb.report/internal/httputil"
	"github.com/banshee-data/uwb.report/internal/monitoring"
	"github.com/banshee-data/uwb.report/internal/security"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultSessionLimit caps /api/sessions when no limit is given.
const DefaultSessionLimit = 50

type Server struct {
	db        *db.DB
	reportDir string
}

// NewServer serves sessions from database and report files from
// reportDir. An empty reportDir disables /reports/.
func NewServer(database *db.DB, reportDir string) *Server {
	return &Server{db: database, reportDir: reportDir}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}", s.handleSession)
	mux.HandleFunc("/api/sessions/{id}/filters", s.listFilterRuns)
	mux.HandleFunc("/api/sessions/{id}/distances", s.listDistances)
	if s.reportDir != "" {
		mux.Handle("/reports/", http.StripPrefix("/reports/", http.HandlerFunc(s.serveReport)))
	}
	return mux
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := DefaultSessionLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.Sessions(limit)
	if err != nil {
		httputil.InternalServerError(w, "Failed to retrieve sessions: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		detail, err := s.db.Session(id)
		if err != nil {
			httputil.WriteError(w, err, db.ErrNotFound)
			return
		}
		httputil.WriteJSONOK(w, detail)
	case http.MethodDelete:
		if err := s.db.DeleteSession(id); err != nil {
			httputil.WriteError(w, err, db.ErrNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listFilterRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.PathValue("id")
	if _, err := s.db.Session(id); err != nil {
		httputil.WriteError(w, err, db.ErrNotFound)
		return
	}
	runs, err := s.db.FilterRuns(id)
	if err != nil {
		httputil.InternalServerError(w, "Failed to retrieve filter runs: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) listDistances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		httputil.BadRequest(w, "Missing 'source' parameter")
		return
	}
	rows, err := s.db.RangingRecords(r.PathValue("id"), source)
	if err != nil {
		httputil.WriteError(w, err, db.ErrNotFound)
		return
	}
	httputil.WriteJSONOK(w, rows)
}

// serveReport serves one generated file. Directory listings are not
// offered and every path must resolve inside the report directory.
func (s *Server) serveReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w)
		return
	}
	name := r.URL.Path
	if name == "" || strings.HasSuffix(name, "/") {
		httputil.NotFound(w, "no such report")
		return
	}
	path, err := security.JoinWithin(s.reportDir, filepath.FromSlash(name))
	if err == nil {
		err = security.ValidatePathWithinDirectory(path, s.reportDir)
	}
	if err != nil {
		monitoring.Logf("api: rejected report path %q: %v", name, err)
		httputil.NotFound(w, "no such report")
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		httputil.NotFound(w, "no such report")
		return
	}
	http.ServeFile(w, r, path)
}
