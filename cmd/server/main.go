// Command server runs the IFRS 9 pipeline on a schedule and serves:
//   - /health   liveness probe
//   - /status   scheduler state and the latest run summary (JSON)
//   - /metrics  Prometheus metrics
//   - /ws       live run summaries over WebSocket
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/config"
	"ifrs9-risk-lab/internal/dashboard"
	"ifrs9-risk-lab/internal/engine"
	"ifrs9-risk-lab/internal/generator"
	"ifrs9-risk-lab/internal/logging"
	"ifrs9-risk-lab/internal/observability"
	"ifrs9-risk-lab/internal/pipeline"
	"ifrs9-risk-lab/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	input := flag.String("input", "", "Portfolio CSV re-read on every run; when empty a synthetic portfolio is generated")
	addr := flag.String("addr", "", "HTTP listen address (default from config)")
	interval := flag.Duration("interval", 0, "Pipeline interval (default from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "interval":
			cfg.Server.Interval = *interval
		}
	})

	logger, err := logging.New(cfg.Logging.Level, "server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, *input, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func serve(ctx context.Context, cfg *config.Config, input string, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg, observability.DefaultNamespace)

	stores, err := backend.Open(ctx, cfg.Storage, true, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stores.Close()

	hubCfg := dashboard.DefaultConfig()
	hubCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	hub := dashboard.NewHub(&hubCfg, dashboard.WithLogger(logger), dashboard.WithMetrics(metrics))
	defer hub.Close()

	p, err := newPipeline(cfg, input, stores, hub, metrics, logger)
	if err != nil {
		return err
	}

	s := &Server{
		pipeline:  p,
		summaries: stores.Summaries,
		hub:       hub,
		gatherer:  reg,
		interval:  cfg.Server.Interval,
		logger:    logger,
		started:   time.Now(),
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	err = s.run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("graceful shutdown failed", zap.Error(shutdownErr))
	}
	return err
}

func newPipeline(
	cfg *config.Config,
	input string,
	stores *backend.Stores,
	hub pipeline.Broadcaster,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*pipeline.Pipeline, error) {
	reportingDate, err := cfg.ReportingDate()
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(cfg.Risk.Params, engine.SeededStreams{Seed: cfg.Generator.Seed}, engine.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var source pipeline.Source = &pipeline.GeneratorSource{Config: generator.Config{
		N:             cfg.Generator.Loans,
		Seed:          cfg.Generator.Seed,
		ReportingDate: reportingDate,
	}}
	if input != "" {
		source = &pipeline.CSVSource{Path: input}
	}

	return pipeline.New(eng, cfg.Generator.Seed, source).
		WithWorkers(cfg.Risk.Workers).
		WithStores(stores.Name, stores.Loans, stores.Summaries).
		WithOutputDir(cfg.Report.OutputDir).
		WithReportOptions(cfg.Report.Currency, cfg.Report.WatchlistSize).
		WithBroadcaster(hub).
		WithMetrics(metrics).
		WithLogger(logger), nil
}
