// Package pipeline wires a portfolio source through the risk engine into
// storage, reports and the live dashboard.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/engine"
	"ifrs9-risk-lab/internal/observability"
	"ifrs9-risk-lab/internal/reporting"
	"ifrs9-risk-lab/internal/storage"
)

// Broadcaster publishes run summaries to live subscribers.
type Broadcaster interface {
	Broadcast(s *domain.RunSummary) error
}

// Result is the outcome of one pipeline run.
type Result struct {
	Summary    *domain.RunSummary
	Loans      []*domain.Loan // enriched, in input order
	Rejections []engine.Rejection
	Report     *reporting.Report
	Files      []string // written output paths
}

// Pipeline runs source -> engine -> store -> report -> broadcast for one
// reporting date.
type Pipeline struct {
	engine  *engine.Engine
	seed    uint64
	source  Source
	workers int

	loanStore    storage.LoanStore       // optional
	summaryStore storage.RunSummaryStore // optional
	storeName    string                  // metrics label for both stores

	reportGen      *reporting.Generator
	outputDir      string // empty skips report files
	writePortfolio bool

	hub     Broadcaster // optional
	metrics *observability.Metrics
	log     *zap.Logger
	clock   func() time.Time
}

// New creates a pipeline. seed must be the seed of the engine's streams; it
// is recorded in the run summary.
func New(eng *engine.Engine, seed uint64, source Source) *Pipeline {
	return &Pipeline{
		engine:         eng,
		seed:           seed,
		source:         source,
		reportGen:      reporting.NewGenerator(nil, nil),
		writePortfolio: true,
		log:            zap.NewNop(),
		clock:          func() time.Time { return time.Now().UTC() },
	}
}

// WithWorkers sets engine parallelism. 0 uses GOMAXPROCS.
func (p *Pipeline) WithWorkers(n int) *Pipeline {
	p.workers = n
	return p
}

// WithStores persists the enriched snapshot and the run summary. name labels
// database metrics ("postgres", "clickhouse", "sqlite", "memory").
func (p *Pipeline) WithStores(name string, loans storage.LoanStore, summaries storage.RunSummaryStore) *Pipeline {
	p.storeName = name
	p.loanStore = loans
	p.summaryStore = summaries
	return p
}

// WithOutputDir writes the report and CSV exports into dir.
func (p *Pipeline) WithOutputDir(dir string) *Pipeline {
	p.outputDir = dir
	return p
}

// WithPortfolioExport toggles loan_portfolio_data.csv in the output dir.
func (p *Pipeline) WithPortfolioExport(enabled bool) *Pipeline {
	p.writePortfolio = enabled
	return p
}

// WithReportOptions sets the report currency and watchlist size.
func (p *Pipeline) WithReportOptions(currency string, watchlistSize int) *Pipeline {
	p.reportGen = p.reportGen.WithCurrency(currency).WithWatchlistSize(watchlistSize)
	return p
}

// WithBroadcaster publishes each run summary.
func (p *Pipeline) WithBroadcaster(b Broadcaster) *Pipeline {
	p.hub = b
	return p
}

// WithMetrics records Prometheus metrics.
func (p *Pipeline) WithMetrics(m *observability.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithLogger sets the pipeline logger.
func (p *Pipeline) WithLogger(l *zap.Logger) *Pipeline {
	if l != nil {
		p.log = l
	}
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	p.reportGen = p.reportGen.WithClock(clock)
	return p
}

// Run executes the pipeline once.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	source := p.source.Name()
	log := p.log.With(zap.String("source", source), zap.Uint64("seed", p.seed))

	defer func() {
		status := observability.StatusSuccess
		if err != nil {
			status = observability.StatusFailure
			log.Error("pipeline run failed", zap.Error(err))
		}
		p.metrics.RecordPipelineRun(source, status, time.Since(start))
	}()

	// 1. Load input snapshot
	snap, err := p.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	log = log.With(zap.String("reporting_date", snap.ReportingDate.Format(domain.DateLayout)))
	log.Info("snapshot loaded", zap.Int("loans", len(snap.Loans)), zap.Int("load_rejected", snap.Rejected))

	// 2. Enrich
	batchStart := time.Now()
	batch, err := p.engine.EnrichBatch(ctx, snap.Loans, p.workers)
	if err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}
	rejected := snap.Rejected + len(batch.Rejected)
	p.metrics.RecordBatch(batch.Enriched, rejected, time.Since(batchStart))
	for _, r := range batch.Rejected {
		log.Warn("loan rejected", zap.String("loan_id", r.Loan.LoanID), zap.Error(r.Err))
	}
	if len(batch.Enriched) == 0 {
		return nil, fmt.Errorf("enrich: %w", ErrEmptySnapshot)
	}

	summary := BuildSummary(snap.ReportingDate, p.seed, source, p.engine.ParamsDigest(), snap.Loans, batch.Enriched, rejected, p.clock())
	log = log.With(zap.String("run_id", summary.RunID))

	// 3. Persist
	if err := p.persist(ctx, log, snap.ReportingDate, batch.Enriched, summary); err != nil {
		return nil, err
	}

	res = &Result{
		Summary:    summary,
		Loans:      batch.Enriched,
		Rejections: batch.Rejected,
	}

	// 4. Report
	report, err := p.reportGen.FromLoans(snap.ReportingDate, batch.Enriched, summary)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	report.DataQuality = append(report.DataQuality, snap.Notes...)
	res.Report = report

	if p.outputDir != "" {
		var portfolio []*domain.Loan
		if p.writePortfolio {
			portfolio = batch.Enriched
		}
		files, err := reporting.WriteFiles(p.outputDir, report, portfolio)
		if err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		res.Files = files
		p.metrics.RecordReport()
	}

	// 5. Publish
	if p.hub != nil {
		if err := p.hub.Broadcast(summary); err != nil {
			log.Warn("broadcast failed", zap.Error(err))
		}
	}
	p.metrics.RecordPortfolio(summary)

	log.Info("pipeline run complete",
		zap.Int("loans", summary.TotalLoans),
		zap.Int("rejected", summary.RejectedLoans),
		zap.Int("flagged", summary.FlaggedLoans),
		zap.Float64("total_ecl", summary.TotalECL),
		zap.Float64("coverage_ratio", summary.CoverageRatio),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, log *zap.Logger, date time.Time, loans []*domain.Loan, summary *domain.RunSummary) error {
	if p.loanStore != nil {
		t := time.Now()
		err := p.loanStore.ReplaceSnapshot(ctx, date, loans)
		p.metrics.RecordDBQuery(p.storeName, "replace_snapshot", time.Since(t), err)
		if err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}
	}

	if p.summaryStore != nil {
		t := time.Now()
		err := p.summaryStore.Insert(ctx, summary)
		p.metrics.RecordDBQuery(p.storeName, "insert_run_summary", time.Since(t), err)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			// identical inputs, seed and calibration produce the same run id
			log.Info("run summary already recorded")
		case err != nil:
			return fmt.Errorf("store run summary: %w", err)
		}
	}
	return nil
}
