package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uwb.report/internal/analysis"
	"github.com/banshee-data/uwb.report/internal/db"
	"github.com/banshee-data/uwb.report/internal/fsutil"
	"github.com/banshee-data/uwb.report/internal/monitoring"
	"github.com/banshee-data/uwb.report/internal/testutil"
	"github.com/banshee-data/uwb.report/internal/timeutil"
)

func setupTestServer(t *testing.T) (*Server, *db.DB, string) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	dbInst, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbInst.Close() })

	reportDir := t.TempDir()
	return NewServer(dbInst, reportDir), dbInst, reportDir
}

func recordSession(t *testing.T, dbInst *db.DB, start time.Time) *analysis.Session {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	distances := make([]uint16, 12)
	for i := range distances {
		distances[i] = uint16(500 + (i*3)%7)
	}
	testutil.WriteDump(t, fsys, "walk.txt", testutil.SampleStream(distances...))

	a, err := analysis.New(nil, fsys)
	require.NoError(t, err)
	a.Clock = timeutil.NewMockClock(start)
	s, err := a.AnalyzeFiles(context.Background(), []string{"walk.txt"})
	require.NoError(t, err)
	require.NoError(t, dbInst.RecordSession(s))
	return s
}

func serve(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out), w.Body.String())
	return out
}

func TestListSessions(t *testing.T) {
	server, dbInst, _ := setupTestServer(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	older := recordSession(t, dbInst, base)
	newer := recordSession(t, dbInst, base.Add(time.Hour))

	w := serve(t, server, http.MethodGet, "/api/sessions")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	sessions := decode[[]db.SessionSummary](t, w)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID.String(), sessions[0].ID)
	assert.Equal(t, older.ID.String(), sessions[1].ID)
	assert.Equal(t, 12, sessions[0].RangingCount)

	w = serve(t, server, http.MethodGet, "/api/sessions?limit=1")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Len(t, decode[[]db.SessionSummary](t, w), 1)
}

func TestListSessions_Errors(t *testing.T) {
	server, _, _ := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"bad limit", http.MethodGet, "/api/sessions?limit=abc", http.StatusBadRequest},
		{"negative limit", http.MethodGet, "/api/sessions?limit=-1", http.StatusBadRequest},
		{"post", http.MethodPost, "/api/sessions", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, server, tt.method, tt.target)
			testutil.AssertStatusCode(t, w.Code, tt.want)
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}

	w := serve(t, server, http.MethodGet, "/api/sessions")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestGetAndDeleteSession(t *testing.T) {
	server, dbInst, _ := setupTestServer(t)
	s := recordSession(t, dbInst, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	target := "/api/sessions/" + s.ID.String()

	w := serve(t, server, http.MethodGet, target)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	detail := decode[db.SessionDetail](t, w)
	assert.Equal(t, s.ID.String(), detail.ID)
	require.Len(t, detail.Sources, 1)
	assert.Equal(t, "walk.txt", detail.Sources[0].Path)
	require.NotNil(t, detail.Sources[0].BestFilter)

	w = serve(t, server, http.MethodPut, target)
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)

	w = serve(t, server, http.MethodDelete, target)
	testutil.AssertStatusCode(t, w.Code, http.StatusNoContent)

	w = serve(t, server, http.MethodGet, target)
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
	w = serve(t, server, http.MethodDelete, target)
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestListFilterRuns(t *testing.T) {
	server, dbInst, _ := setupTestServer(t)
	s := recordSession(t, dbInst, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	w := serve(t, server, http.MethodGet, "/api/sessions/"+s.ID.String()+"/filters")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	runs := decode[[]db.FilterRun](t, w)
	require.Len(t, runs, len(s.Sources[0].Comparison.Order))
	best := 0
	for _, r := range runs {
		if r.IsBest {
			best++
			assert.Equal(t, s.Sources[0].Comparison.Best, r.Name)
		}
	}
	assert.Equal(t, 1, best)

	w = serve(t, server, http.MethodGet, "/api/sessions/unknown/filters")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestListDistances(t *testing.T) {
	server, dbInst, _ := setupTestServer(t)
	s := recordSession(t, dbInst, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	base := "/api/sessions/" + s.ID.String() + "/distances"

	w := serve(t, server, http.MethodGet, base+"?source=walk.txt")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	rows := decode[[]db.RangingRow](t, w)
	require.Len(t, rows, 12)
	assert.Equal(t, uint16(500), rows[0].Distance)
	assert.Equal(t, testutil.HostID, rows[0].HostID)

	w = serve(t, server, http.MethodGet, base)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	w = serve(t, server, http.MethodGet, base+"?source=other.txt")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	w = serve(t, server, http.MethodPost, base+"?source=walk.txt")
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestServeReport(t *testing.T) {
	server, _, reportDir := setupTestServer(t)
	require.NoError(t, os.MkdirAll(filepath.Join(reportDir, "plots"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "uwb_1234_report.html"), []byte("<html>ok</html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "plots", "000_walk_kalman.png"), []byte("png"), 0644))

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(reportDir, "link.txt")))

	w := serve(t, server, http.MethodGet, "/reports/uwb_1234_report.html")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "<html>ok</html>", w.Body.String())

	w = serve(t, server, http.MethodGet, "/reports/plots/000_walk_kalman.png")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	for _, target := range []string{"/reports/link.txt", "/reports/plots", "/reports/plots/", "/reports/", "/reports/missing.html"} {
		w = serve(t, server, http.MethodGet, target)
		testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
		assert.NotContains(t, w.Body.String(), "secret", target)
	}

	w = serve(t, server, http.MethodPost, "/reports/uwb_1234_report.html")
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestServeReport_Disabled(t *testing.T) {
	_, dbInst, _ := setupTestServer(t)
	server := NewServer(dbInst, "")
	w := serve(t, server, http.MethodGet, "/reports/anything.html")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestLoggingMiddleware(t *testing.T) {
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

	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=1", nil))

	testutil.AssertStatusCode(t, w.Code, http.StatusTeapot)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "[%s] %s"))
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}
