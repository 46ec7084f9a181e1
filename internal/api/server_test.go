package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/autocache-warmer/internal/warmer"
)

type fakeRuns struct {
	mu      sync.Mutex
	running bool
	starts  int
	last    *warmer.RunStats
}

func (f *fakeRuns) Start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return false
	}
	f.running = true
	f.starts++
	return true
}

func (f *fakeRuns) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeRuns) Last() (warmer.RunStats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return warmer.RunStats{}, false
	}
	return *f.last, true
}

func serve(t *testing.T, s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeRuns{}, Config{}, zap.NewNop())
	rec := serve(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	reqID, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), reqID.Version(), "generated request ids are time ordered")
}

func TestServer_RequestIDPropagates(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeRuns{}, Config{}, zap.NewNop())
	rec := serve(t, s, http.MethodGet, "/healthz", http.Header{"X-Request-Id": {"abc-123"}})
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	ready := NewServer(&fakeRuns{}, Config{Ready: func(context.Context) error { return nil }}, nil)
	require.Equal(t, http.StatusOK, serve(t, ready, http.MethodGet, "/readyz", nil).Code)

	notReady := NewServer(&fakeRuns{}, Config{Ready: func(context.Context) error {
		return errors.New("cache directory missing")
	}}, nil)
	rec := serve(t, notReady, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "cache directory missing")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeRuns{}, Config{}, nil)
	_ = serve(t, s, http.MethodGet, "/healthz", nil)
	rec := serve(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_StartRun(t *testing.T) {
	t.Parallel()

	runs := &fakeRuns{}
	s := NewServer(runs, Config{}, nil)

	rec := serve(t, s, http.MethodPost, "/v1/runs", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "started")

	rec = serve(t, s, http.MethodPost, "/v1/runs", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1, runs.starts)

	rec = serve(t, s, http.MethodGet, "/v1/runs/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"running":true}`, rec.Body.String())
}

func TestServer_LastRun(t *testing.T) {
	t.Parallel()

	runs := &fakeRuns{}
	s := NewServer(runs, Config{}, nil)

	require.Equal(t, http.StatusNotFound, serve(t, s, http.MethodGet, "/v1/runs/last", nil).Code)

	runs.last = &warmer.RunStats{
		RunID:     "run-1",
		TotalURLs: 9,
		Elapsed:   1500 * time.Millisecond,
	}
	rec := serve(t, s, http.MethodGet, "/v1/runs/last", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&body))
	require.Equal(t, "run-1", body["run_id"])
	require.InDelta(t, 9, body["total_urls"], 0)
	require.InDelta(t, 1.5, body["elapsed_seconds"], 1e-9)
}

func TestServer_APIKey(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeRuns{}, Config{AuthEnabled: true, APIKey: "secret"}, nil)

	require.Equal(t, http.StatusForbidden, serve(t, s, http.MethodPost, "/v1/runs", nil).Code)
	for _, wrong := range []string{"secre", "secret2", "SECRET"} {
		require.Equal(t, http.StatusForbidden,
			serve(t, s, http.MethodPost, "/v1/runs", http.Header{"X-Api-Key": {wrong}}).Code, wrong)
	}
	require.Equal(t, http.StatusAccepted,
		serve(t, s, http.MethodPost, "/v1/runs", http.Header{"X-Api-Key": {"secret"}}).Code)
	require.Equal(t, http.StatusNotFound, serve(t, s, http.MethodGet, "/v1/runs/last?api_key=secret", nil).Code,
		"query-string key is accepted")
	require.Equal(t, http.StatusOK, serve(t, s, http.MethodGet, "/healthz", nil).Code, "health checks stay open")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
