// Command pipeline runs one end-to-end pass: load a portfolio, enrich it,
// persist the snapshot and run summary, and write the report files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/config"
	"ifrs9-risk-lab/internal/engine"
	"ifrs9-risk-lab/internal/generator"
	"ifrs9-risk-lab/internal/logging"
	"ifrs9-risk-lab/internal/observability"
	"ifrs9-risk-lab/internal/pipeline"
	"ifrs9-risk-lab/internal/storage/backend"
)

func main() {
	defaults := config.Default()
	configPath := flag.String("config", "", "Path to YAML config file")
	input := flag.String("input", "", "Portfolio CSV; when empty a synthetic portfolio is generated")
	n := flag.Int("n", defaults.Generator.Loans, "Synthetic portfolio size")
	seed := flag.Uint64("seed", defaults.Generator.Seed, "Random seed")
	outputDir := flag.String("output-dir", defaults.Report.OutputDir, "Output directory")
	mode := flag.String("storage", "", "Storage mode (default from config)")
	migrate := flag.Bool("migrate", true, "Apply storage migrations before the run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.Generator.Loans = *n
		case "seed":
			cfg.Generator.Seed = *seed
		case "output-dir":
			cfg.Report.OutputDir = *outputDir
		case "storage":
			cfg.Storage.Mode = *mode
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, "pipeline")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := backend.Open(ctx, cfg.Storage, *migrate, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer stores.Close()

	p, err := build(cfg, *input, stores, observability.NewMetrics(prometheus.NewRegistry(), observability.DefaultNamespace), logger)
	if err != nil {
		logger.Fatal("build pipeline", zap.Error(err))
	}

	res, err := p.Run(ctx)
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	fmt.Printf("Run %s complete: %d loans, %d rejected, coverage %.2f%%\n",
		res.Summary.RunID, res.Summary.TotalLoans, res.Summary.RejectedLoans, res.Summary.CoverageRatio)
	for _, f := range res.Files {
		fmt.Printf("  - %s\n", f)
	}
}

// build assembles a pipeline from the config. A non-empty input selects the
// CSV source.
func build(cfg *config.Config, input string, stores *backend.Stores, metrics *observability.Metrics, logger *zap.Logger) (*pipeline.Pipeline, error) {
	reportingDate, err := cfg.ReportingDate()
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(cfg.Risk.Params, engine.SeededStreams{Seed: cfg.Generator.Seed}, engine.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var source pipeline.Source
	if input != "" {
		source = &pipeline.CSVSource{Path: input}
	} else {
		source = &pipeline.GeneratorSource{Config: generator.Config{
			N:             cfg.Generator.Loans,
			Seed:          cfg.Generator.Seed,
			ReportingDate: reportingDate,
		}}
	}

	return pipeline.New(eng, cfg.Generator.Seed, source).
		WithWorkers(cfg.Risk.Workers).
		WithStores(stores.Name, stores.Loans, stores.Summaries).
		WithOutputDir(cfg.Report.OutputDir).
		WithReportOptions(cfg.Report.Currency, cfg.Report.WatchlistSize).
		WithMetrics(metrics).
		WithLogger(logger), nil
}
