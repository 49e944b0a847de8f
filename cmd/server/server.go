package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/dashboard"
	"ifrs9-risk-lab/internal/observability"
	"ifrs9-risk-lab/internal/pipeline"
	"ifrs9-risk-lab/internal/storage"
)

// Server runs the pipeline on a schedule and serves health, status, metrics
// and the live dashboard feed.
type Server struct {
	pipeline  *pipeline.Pipeline
	summaries storage.RunSummaryStore
	hub       *dashboard.Hub
	gatherer  prometheus.Gatherer
	interval  time.Duration
	logger    *zap.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	pipelineRunning bool
	lastPipelineRun time.Time
	lastError       string
	pipelineRuns    int
	pipelineErrors  int
}

// run executes the pipeline once, then every interval until ctx ends.
// A zero interval runs once.
func (s *Server) run(ctx context.Context) error {
	s.logger.Info("starting pipeline scheduler", zap.Duration("interval", s.interval))

	s.runPipeline(ctx)
	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runPipeline(ctx)
		}
	}
}

// runPipeline executes one pipeline pass unless one is already running.
func (s *Server) runPipeline(ctx context.Context) {
	s.mu.Lock()
	if s.pipelineRunning {
		s.mu.Unlock()
		s.logger.Info("pipeline already running, skipping")
		return
	}
	s.pipelineRunning = true
	s.mu.Unlock()

	_, err := s.pipeline.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelineRunning = false
	s.lastPipelineRun = time.Now().UTC()
	s.pipelineRuns++
	if err != nil {
		s.pipelineErrors++
		s.lastError = err.Error()
		return
	}
	s.lastError = ""
}

// handler builds the HTTP routes.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.HandlerFor(s.gatherer))
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/ws", s.hub)
	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status           string                 `json:"status"`
	Uptime           string                 `json:"uptime"`
	LastPipelineRun  *time.Time             `json:"last_pipeline_run,omitempty"`
	PipelineRuns     int                    `json:"pipeline_runs"`
	PipelineErrors   int                    `json:"pipeline_errors"`
	PipelineRunning  bool                   `json:"pipeline_running"`
	LastError        string                 `json:"last_error,omitempty"`
	DashboardClients int                    `json:"dashboard_clients"`
	LatestRun        *dashboard.SummaryView `json:"latest_run,omitempty"`
}

// handleStatus returns server state and the latest run summary as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest, err := s.summaries.Latest(r.Context())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("load latest run summary", zap.Error(err))
		http.Error(w, "failed to load run summary", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	resp := StatusResponse{
		Status:           "running",
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		PipelineRuns:     s.pipelineRuns,
		PipelineErrors:   s.pipelineErrors,
		PipelineRunning:  s.pipelineRunning,
		LastError:        s.lastError,
		DashboardClients: s.hub.Clients(),
	}
	if !s.lastPipelineRun.IsZero() {
		t := s.lastPipelineRun
		resp.LastPipelineRun = &t
	}
	s.mu.Unlock()

	if latest != nil {
		view := dashboard.NewSummaryView(latest)
		resp.LatestRun = &view
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("encode status", zap.Error(err))
	}
}
