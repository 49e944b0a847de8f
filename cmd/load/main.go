// Command load applies the storage migrations and loads a portfolio CSV into
// the configured store, replacing the snapshot of its reporting date.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/config"
	"ifrs9-risk-lab/internal/csvio"
	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/logging"
	"ifrs9-risk-lab/internal/storage"
	"ifrs9-risk-lab/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	input := flag.String("input", "", "Portfolio CSV to load (required)")
	mode := flag.String("storage", "", "Storage mode: postgres, clickhouse, sqlite (default from config)")
	migrateOnly := flag.Bool("migrate-only", false, "Apply migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Storage.Mode = *mode
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.Storage.Mode == config.StorageMemory {
		fmt.Fprintln(os.Stderr, "Error: load needs a persistent store (set --storage or STORAGE_MODE)")
		os.Exit(1)
	}
	if *input == "" && !*migrateOnly {
		fmt.Fprintln(os.Stderr, "Error: --input is required")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, "load")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := backend.Open(ctx, cfg.Storage, true, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer stores.Close()

	if *migrateOnly {
		return
	}
	if err := load(ctx, stores.Loans, *input, logger); err != nil {
		logger.Fatal("load failed", zap.Error(err))
	}
}

func load(ctx context.Context, store storage.LoanStore, input string, logger *zap.Logger) error {
	// #nosec G304: input path comes from the operator's command line
	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open %s: %w", input, err)
	}
	defer f.Close()

	res, err := csvio.ReadLenient(f)
	if err != nil {
		return err
	}
	for _, rowErr := range res.Rejected {
		logger.Warn("row rejected", zap.Int("row", rowErr.Row), zap.Error(rowErr.Err))
	}

	// one snapshot per reporting date
	byDate := make(map[time.Time][]*domain.Loan)
	var dates []time.Time
	for _, l := range res.Loans {
		d := storage.DateOnly(l.ReportingDate)
		if _, ok := byDate[d]; !ok {
			dates = append(dates, d)
		}
		byDate[d] = append(byDate[d], l)
	}

	for _, d := range dates {
		start := time.Now()
		if err := store.ReplaceSnapshot(ctx, d, byDate[d]); err != nil {
			return fmt.Errorf("replace snapshot %s: %w", d.Format(domain.DateLayout), err)
		}
		logger.Info("snapshot loaded",
			zap.String("reporting_date", d.Format(domain.DateLayout)),
			zap.Int("loans", len(byDate[d])),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	if len(res.Rejected) > 0 {
		logger.Warn("rows skipped", zap.Int("rejected", len(res.Rejected)))
	}
	return nil
}
