// Command enrich reads a portfolio CSV, runs the risk engine over every valid
// row and writes the enriched portfolio.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/config"
	"ifrs9-risk-lab/internal/csvio"
	"ifrs9-risk-lab/internal/engine"
	"ifrs9-risk-lab/internal/logging"
)

func main() {
	defaults := config.Default()
	configPath := flag.String("config", "", "Path to YAML config file")
	input := flag.String("input", "", "Input portfolio CSV (required)")
	output := flag.String("output", "loan_portfolio_enriched.csv", "Output CSV path")
	seed := flag.Uint64("seed", defaults.Generator.Seed, "Seed for the LGD draws")
	workers := flag.Int("workers", 0, "Parallel workers (0 = GOMAXPROCS)")
	strict := flag.Bool("strict", false, "Fail on the first invalid row instead of skipping it")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: --input is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Generator.Seed = *seed
		case "workers":
			cfg.Risk.Workers = *workers
		}
	})

	logger, err := logging.New(cfg.Logging.Level, "enrich")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *input, *output, *strict, logger); err != nil {
		logger.Fatal("enrich failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, input, output string, strict bool, logger *zap.Logger) error {
	// #nosec G304: input path comes from the operator's command line
	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open %s: %w", input, err)
	}
	defer in.Close()

	var res *csvio.Result
	if strict {
		loans, err := csvio.Read(in)
		if err != nil {
			return err
		}
		res = &csvio.Result{Loans: loans}
	} else {
		res, err = csvio.ReadLenient(in)
		if err != nil {
			return err
		}
	}
	for _, rowErr := range res.Rejected {
		logger.Warn("row rejected", zap.Int("row", rowErr.Row), zap.Error(rowErr.Err))
	}

	eng, err := engine.New(cfg.Risk.Params, engine.SeededStreams{Seed: cfg.Generator.Seed}, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	// derived columns present in the input are recomputed
	for _, l := range res.Loans {
		l.Risk = nil
	}
	batch, err := eng.EnrichBatch(ctx, res.Loans, cfg.Risk.Workers)
	if err != nil {
		return err
	}
	for _, r := range batch.Rejected {
		logger.Warn("loan rejected", zap.String("loan_id", r.Loan.LoanID), zap.Error(r.Err))
	}

	// #nosec G304: output path comes from the operator's command line
	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := csvio.Write(out, batch.Enriched); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	logger.Info("portfolio enriched",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("enriched", len(batch.Enriched)),
		zap.Int("rejected", len(res.Rejected)+len(batch.Rejected)),
		zap.Int("flagged", batch.Flagged),
	)
	return nil
}
