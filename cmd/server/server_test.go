package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/config"
	"ifrs9-risk-lab/internal/dashboard"
	"ifrs9-risk-lab/internal/observability"
	"ifrs9-risk-lab/internal/storage/backend"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Generator.Loans = 200
	cfg.Report.OutputDir = t.TempDir()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg, "test")

	stores, err := backend.Open(context.Background(), cfg.Storage, false, nil)
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	hub := dashboard.NewHub(nil)
	t.Cleanup(hub.Close)

	p, err := newPipeline(cfg, "", stores, hub, metrics, zap.NewNop())
	require.NoError(t, err)

	return &Server{
		pipeline:  p,
		summaries: stores.Summaries,
		hub:       hub,
		gatherer:  reg,
		logger:    zap.NewNop(),
		started:   time.Now(),
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	rec := get(t, newTestServer(t).handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_StatusBeforeFirstRun(t *testing.T) {
	rec := get(t, newTestServer(t).handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "running", resp.Status)
	assert.Zero(t, resp.PipelineRuns)
	assert.Nil(t, resp.LatestRun)
	assert.Nil(t, resp.LastPipelineRun)
}

func TestServer_StatusAfterRun(t *testing.T) {
	s := newTestServer(t)
	s.runPipeline(context.Background())

	rec := get(t, s.handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.PipelineRuns)
	assert.Zero(t, resp.PipelineErrors)
	assert.Empty(t, resp.LastError)
	require.NotNil(t, resp.LastPipelineRun)
	require.NotNil(t, resp.LatestRun)
	assert.Equal(t, 200, resp.LatestRun.TotalLoans)
	assert.Equal(t, "2024-12-31", resp.LatestRun.ReportingDate)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)
	s.runPipeline(context.Background())

	rec := get(t, s.handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "test_pipeline_runs_total"))
	assert.True(t, strings.Contains(string(body), "test_engine_loans_processed_total"))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	s.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pipelineRuns == 1
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
