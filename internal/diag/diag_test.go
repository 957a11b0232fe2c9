package diag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iambrandonn/editorgate/internal/tracker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seeded(t *testing.T) (*tracker.Tracker, string, string) {
	t.Helper()
	tr := tracker.New()
	done := tr.Begin("project.scan", "/p")
	require.NoError(t, tr.MarkRunning(done))
	require.NoError(t, tr.MarkCompleted(done, map[string]any{"Success": true}))
	failed := tr.Begin("build.run", "/p")
	require.NoError(t, tr.MarkFailed(failed, errors.New("boom")))
	running := tr.Begin("build.run", "/q")
	require.NoError(t, tr.MarkRunning(running))
	return tr, done, failed
}

func get(t *testing.T, h http.Handler, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil {
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestHealthz(t *testing.T) {
	tr, _, _ := seeded(t)
	s := New(tr, Options{Version: "1.2.3"}, discardLogger())

	var h Health
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/healthz", &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "1.2.3", h.Version)
	assert.Equal(t, 3, h.Operations)
	assert.Equal(t, 1, h.Running)
}

func TestOperations(t *testing.T) {
	tr, _, _ := seeded(t)
	s := New(tr, Options{}, discardLogger())

	type view struct {
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
		Operations []tracker.Record `json:"operations"`
	}

	var all view
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/operations", &all))
	assert.Equal(t, 3, all.Summary.Total)
	assert.Len(t, all.Operations, 3)

	var builds view
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/operations?action=build.run", &builds))
	assert.Len(t, builds.Operations, 2)

	var failed view
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/operations?action=build.run&status=failed", &failed))
	require.Len(t, failed.Operations, 1)
	assert.Equal(t, "boom", failed.Operations[0].Error)

	var bad map[string]string
	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/operations?status=sleeping", &bad))
	assert.Contains(t, bad["error"], "sleeping")
}

func TestOperationByID(t *testing.T) {
	tr, done, _ := seeded(t)
	s := New(tr, Options{}, discardLogger())

	var rec tracker.Record
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/operations/"+done, &rec))
	assert.Equal(t, done, rec.ID)
	assert.Equal(t, tracker.StatusCompleted, rec.Status)

	var missing map[string]string
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/operations/nope", &missing))
}

func TestMCPMount(t *testing.T) {
	tr := tracker.New()
	without := New(tr, Options{}, discardLogger())
	assert.Equal(t, http.StatusNotFound, get(t, without.Handler(), MCPPath, nil))

	var hits int
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusAccepted)
	})
	with := New(tr, Options{MCP: mcp}, discardLogger())
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		rec := httptest.NewRecorder()
		with.Handler().ServeHTTP(rec, httptest.NewRequest(method, MCPPath, nil))
		assert.Equal(t, http.StatusAccepted, rec.Code, method)
	}
	assert.Equal(t, 3, hits)
}

func TestServeStopsOnCancel(t *testing.T) {
	s := New(tracker.New(), Options{}, discardLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
