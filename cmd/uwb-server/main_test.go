package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uwb.report/internal/db"
	"github.com/banshee-data/uwb.report/internal/monitoring"
)

func quiet(t *testing.T) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", o.listen)
	assert.Equal(t, "uwb_analysis.db", o.dbPath)
	assert.Equal(t, "analysis_output", o.reportDir)
	assert.Empty(t, o.subcommand)

	o, err = parseFlags([]string{"-db", "x.db", "migrate", "status"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "x.db", o.dbPath)
	assert.Equal(t, []string{"migrate", "status"}, o.subcommand)

	_, err = parseFlags([]string{"serve"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), []string{"-version"}, &out, &bytes.Buffer{}))
	assert.Contains(t, out.String(), "uwb-server dev")
}

func TestRun_Migrate(t *testing.T) {
	quiet(t)
	dbPath := filepath.Join(t.TempDir(), "m.db")

	var out bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), []string{"-db", dbPath, "migrate", "up"}, &out, &bytes.Buffer{}))
	assert.Contains(t, out.String(), "Current version: 2")

	var errOut bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), []string{"-db", dbPath, "migrate", "sideways"}, &bytes.Buffer{}, &errOut))
	assert.Contains(t, errOut.String(), "invalid migrate command")
}

func TestNewHandler(t *testing.T) {
	quiet(t)
	database, err := db.NewDB(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer database.Close()

	handler, err := newHandler(database, t.TempDir())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var sessions []db.SessionSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sessions))
	assert.Empty(t, sessions)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}

func TestServe_Shutdown(t *testing.T) {
	quiet(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
