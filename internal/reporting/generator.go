package reporting

import (
	"context"
	"fmt"
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/metrics"
	"ifrs9-risk-lab/internal/storage"
)

// Generator produces reports from stored or in-memory snapshots.
type Generator struct {
	loanStore     storage.LoanStore
	summaryStore  storage.RunSummaryStore // optional
	currency      string
	watchlistSize int
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. Either store may be nil
// when reports are built with FromLoans only.
func NewGenerator(loanStore storage.LoanStore, summaryStore storage.RunSummaryStore) *Generator {
	return &Generator{
		loanStore:     loanStore,
		summaryStore:  summaryStore,
		currency:      DefaultCurrency,
		watchlistSize: DefaultWatchlistSize,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithCurrency sets the ISO 4217 code used for money columns.
func (g *Generator) WithCurrency(code string) *Generator {
	if code != "" {
		g.currency = code
	}
	return g
}

// WithWatchlistSize sets how many high-risk loans the Markdown report lists.
func (g *Generator) WithWatchlistSize(n int) *Generator {
	if n > 0 {
		g.watchlistSize = n
	}
	return g
}

// Generate produces the report of a stored snapshot. The run summary is the
// most recent one recorded for reportingDate, if any.
func (g *Generator) Generate(ctx context.Context, reportingDate time.Time) (*Report, error) {
	if g.loanStore == nil {
		return nil, fmt.Errorf("generate report: no loan store configured")
	}

	agg := metrics.NewAggregator(g.loanStore)
	analysis, err := agg.ComputeForDate(ctx, reportingDate)
	if err != nil {
		return nil, err
	}

	run, err := g.latestRun(ctx, reportingDate)
	if err != nil {
		return nil, err
	}

	r := g.build(reportingDate, analysis, run)
	r.DataQuality = agg.GetUnenrichedErrors()
	return r, nil
}

// FromLoans produces the report of an in-memory snapshot of enriched loans.
func (g *Generator) FromLoans(reportingDate time.Time, loans []*domain.Loan, run *domain.RunSummary) (*Report, error) {
	analysis, err := metrics.Analyze(loans)
	if err != nil {
		return nil, err
	}
	r := g.build(reportingDate, analysis, run)
	if run != nil && run.RejectedLoans > 0 {
		r.DataQuality = append(r.DataQuality,
			fmt.Sprintf("%s record(s) rejected by validation", formatCount(run.RejectedLoans)))
	}
	return r, nil
}

func (g *Generator) build(reportingDate time.Time, analysis *metrics.Analysis, run *domain.RunSummary) *Report {
	watchlist := analysis.Watchlist
	if len(watchlist) > g.watchlistSize {
		watchlist = watchlist[:g.watchlistSize]
	}

	return &Report{
		GeneratedAt:   g.now(),
		ReportingDate: storage.DateOnly(reportingDate),
		Currency:      g.currency,
		Run:           run,
		Analysis:      analysis,
		Watchlist:     watchlist,
	}
}

func (g *Generator) latestRun(ctx context.Context, reportingDate time.Time) (*domain.RunSummary, error) {
	if g.summaryStore == nil {
		return nil, nil
	}
	runs, err := g.summaryStore.GetByReportingDate(ctx, reportingDate)
	if err != nil {
		return nil, fmt.Errorf("load run summaries: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[len(runs)-1], nil
}
