package sqlite

import (
	"context"
	"fmt"
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
)

// RunSummaryStore implements storage.RunSummaryStore using SQLite.
type RunSummaryStore struct {
	db *DB
}

// NewRunSummaryStore creates a new RunSummaryStore.
func NewRunSummaryStore(db *DB) *RunSummaryStore {
	return &RunSummaryStore{db: db}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

// timestampLayout is fixed-width so that text order is chronological.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectSummaryColumns = `
	SELECT run_id, reporting_date, seed, data_source,
		total_loans, rejected_loans, flagged_loans,
		total_exposure, total_ecl, coverage_ratio,
		stage1_count, stage2_count, stage3_count, created_at
	FROM run_summaries
`

// Insert adds a summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(ctx context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO run_summaries (
			run_id, reporting_date, seed, data_source,
			total_loans, rejected_loans, flagged_loans,
			total_exposure, total_ecl, coverage_ratio,
			stage1_count, stage2_count, stage3_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.RunID,
		dateString(r.ReportingDate),
		int64(r.Seed),
		r.DataSource,
		r.TotalLoans,
		r.RejectedLoans,
		r.FlaggedLoans,
		r.TotalExposure,
		r.TotalECL,
		r.CoverageRatio,
		r.Stage1Count,
		r.Stage2Count,
		r.Stage3Count,
		r.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// GetByID retrieves a summary. Returns ErrNotFound if it does not exist.
func (s *RunSummaryStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	r, err := scanSummary(s.db.QueryRowContext(ctx, selectSummaryColumns+` WHERE run_id = ?`, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run summary by id: %w", err)
	}
	return r, nil
}

// GetByReportingDate retrieves summaries ordered by created_at ASC.
func (s *RunSummaryStore) GetByReportingDate(ctx context.Context, reportingDate time.Time) ([]*domain.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		selectSummaryColumns+` WHERE reporting_date = ? ORDER BY created_at ASC, run_id ASC`,
		dateString(reportingDate))
	if err != nil {
		return nil, fmt.Errorf("get run summaries by reporting date: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.RunSummary
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run summary row: %w", err)
		}
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summary rows: %w", err)
	}
	return summaries, nil
}

// Latest returns the most recently created summary.
func (s *RunSummaryStore) Latest(ctx context.Context) (*domain.RunSummary, error) {
	r, err := scanSummary(s.db.QueryRowContext(ctx, selectSummaryColumns+` ORDER BY created_at DESC, run_id DESC LIMIT 1`))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest run summary: %w", err)
	}
	return r, nil
}

func scanSummary(row scanner) (*domain.RunSummary, error) {
	var (
		r                  domain.RunSummary
		seed               int64
		reporting, created string
	)
	err := row.Scan(
		&r.RunID, &reporting, &seed, &r.DataSource,
		&r.TotalLoans, &r.RejectedLoans, &r.FlaggedLoans,
		&r.TotalExposure, &r.TotalECL, &r.CoverageRatio,
		&r.Stage1Count, &r.Stage2Count, &r.Stage3Count, &created,
	)
	if err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	if r.ReportingDate, err = parseDate(reporting); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = time.Parse(timestampLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return &r, nil
}
