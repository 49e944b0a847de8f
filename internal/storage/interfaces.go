package storage

import (
	"context"
	"fmt"
	"time"

	"ifrs9-risk-lab/internal/domain"
)

// LoanStore provides access to the loan_portfolio table. Records are keyed
// by (reporting_date, loan_id).
type LoanStore interface {
	// Insert adds a record. Returns ErrDuplicateKey if the key exists.
	Insert(ctx context.Context, l *domain.Loan) error

	// InsertBulk adds records atomically. Fails the entire batch on any duplicate.
	InsertBulk(ctx context.Context, loans []*domain.Loan) error

	// ReplaceSnapshot deletes every record of reportingDate and inserts loans.
	// All loans must carry reportingDate.
	ReplaceSnapshot(ctx context.Context, reportingDate time.Time, loans []*domain.Loan) error

	// GetByID retrieves one record. Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, reportingDate time.Time, loanID string) (*domain.Loan, error)

	// GetByReportingDate retrieves a snapshot ordered by loan_id ASC.
	GetByReportingDate(ctx context.Context, reportingDate time.Time) ([]*domain.Loan, error)

	// GetByStage retrieves enriched records of one stage ordered by loan_id ASC.
	GetByStage(ctx context.Context, reportingDate time.Time, stage domain.Stage) ([]*domain.Loan, error)

	// ReportingDates lists stored reporting dates ascending.
	ReportingDates(ctx context.Context) ([]time.Time, error)
}

// RunSummaryStore provides access to the run_summaries table.
type RunSummaryStore interface {
	// Insert adds a summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetByID retrieves a summary. Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetByReportingDate retrieves summaries ordered by created_at ASC.
	GetByReportingDate(ctx context.Context, reportingDate time.Time) ([]*domain.RunSummary, error)

	// Latest returns the most recently created summary. Returns ErrNotFound if empty.
	Latest(ctx context.Context) (*domain.RunSummary, error)
}

// DateOnly truncates t to a UTC calendar date, the granularity of
// reporting_date and origination_date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckLoan validates the storage key of l.
func CheckLoan(l *domain.Loan) error {
	if l == nil || l.LoanID == "" || l.ReportingDate.IsZero() {
		return ErrInvalidInput
	}
	if l.Risk != nil && !l.Risk.Stage.IsValid() {
		return fmt.Errorf("%w: loan %s has stage %d", ErrInvalidInput, l.LoanID, l.Risk.Stage)
	}
	return nil
}

// CheckSnapshot validates that every loan belongs to reportingDate and that
// keys are unique within the batch.
func CheckSnapshot(reportingDate time.Time, loans []*domain.Loan) error {
	if reportingDate.IsZero() {
		return ErrInvalidInput
	}
	date := DateOnly(reportingDate)
	seen := make(map[string]struct{}, len(loans))
	for _, l := range loans {
		if err := CheckLoan(l); err != nil {
			return err
		}
		if !DateOnly(l.ReportingDate).Equal(date) {
			return fmt.Errorf("%w: loan %s reporting date %s, snapshot %s", ErrInvalidInput,
				l.LoanID, l.ReportingDate.Format(domain.DateLayout), date.Format(domain.DateLayout))
		}
		if _, ok := seen[l.LoanID]; ok {
			return ErrDuplicateKey
		}
		seen[l.LoanID] = struct{}{}
	}
	return nil
}

// CheckBatch validates keys and rejects intra-batch duplicates.
func CheckBatch(loans []*domain.Loan) error {
	seen := make(map[string]struct{}, len(loans))
	for _, l := range loans {
		if err := CheckLoan(l); err != nil {
			return err
		}
		key := LoanKey(l.ReportingDate, l.LoanID)
		if _, ok := seen[key]; ok {
			return ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}
	return nil
}

// LoanKey is the composite key rendered as "YYYY-MM-DD|loan_id".
func LoanKey(reportingDate time.Time, loanID string) string {
	return DateOnly(reportingDate).Format(domain.DateLayout) + "|" + loanID
}
