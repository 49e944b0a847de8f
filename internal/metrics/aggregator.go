package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
)

// Aggregator computes portfolio analytics from a stored snapshot.
type Aggregator struct {
	loanStore storage.LoanStore

	// Unenriched tracks loan_ids of the last snapshot that carried no risk
	// metrics and were left out of the analysis.
	Unenriched []string
}

// NewAggregator creates a new analytics aggregator.
func NewAggregator(loanStore storage.LoanStore) *Aggregator {
	return &Aggregator{loanStore: loanStore}
}

// ComputeForDate loads the snapshot of reportingDate and analyzes its
// enriched records. Returns ErrNoLoans if none are enriched.
func (a *Aggregator) ComputeForDate(ctx context.Context, reportingDate time.Time) (*Analysis, error) {
	loans, err := a.loanStore.GetByReportingDate(ctx, reportingDate)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", reportingDate.Format(domain.DateLayout), err)
	}

	a.Unenriched = a.Unenriched[:0]
	enriched := make([]*domain.Loan, 0, len(loans))
	for _, l := range loans {
		if !l.Enriched() {
			a.Unenriched = append(a.Unenriched, l.LoanID)
			continue
		}
		enriched = append(enriched, l)
	}
	sort.Strings(a.Unenriched)

	return Analyze(enriched)
}

// ComputeLatest analyzes the most recent reporting date in the store.
func (a *Aggregator) ComputeLatest(ctx context.Context) (*Analysis, time.Time, error) {
	dates, err := a.loanStore.ReportingDates(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(dates) == 0 {
		return nil, time.Time{}, ErrNoLoans
	}
	latest := dates[0]
	for _, d := range dates[1:] {
		if d.After(latest) {
			latest = d
		}
	}

	analysis, err := a.ComputeForDate(ctx, latest)
	return analysis, latest, err
}

// GetUnenrichedErrors returns data quality messages for skipped records.
func (a *Aggregator) GetUnenrichedErrors() []string {
	if len(a.Unenriched) == 0 {
		return nil
	}
	errs := make([]string, len(a.Unenriched))
	for i, id := range a.Unenriched {
		errs[i] = fmt.Sprintf("loan %s has no risk metrics", id)
	}
	return errs
}
