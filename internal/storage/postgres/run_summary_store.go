package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
)

// RunSummaryStore implements storage.RunSummaryStore using PostgreSQL.
type RunSummaryStore struct {
	pool *Pool
}

// NewRunSummaryStore creates a new RunSummaryStore.
func NewRunSummaryStore(pool *Pool) *RunSummaryStore {
	return &RunSummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID,
		storage.DateOnly(r.ReportingDate),
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
		r.CreatedAt,
	)
	return translate(err, "insert run summary")
}

// GetByID retrieves a summary. Returns ErrNotFound if it does not exist.
func (s *RunSummaryStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	row := s.pool.QueryRow(ctx, selectSummaryColumns+` WHERE run_id = $1`, runID)
	r, err := scanSummary(row)
	if err != nil {
		return nil, translate(err, "get run summary by id")
	}
	return r, nil
}

// GetByReportingDate retrieves summaries ordered by created_at ASC.
func (s *RunSummaryStore) GetByReportingDate(ctx context.Context, reportingDate time.Time) ([]*domain.RunSummary, error) {
	query := selectSummaryColumns + ` WHERE reporting_date = $1 ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, storage.DateOnly(reportingDate))
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
	row := s.pool.QueryRow(ctx, selectSummaryColumns+` ORDER BY created_at DESC, run_id DESC LIMIT 1`)
	r, err := scanSummary(row)
	if err != nil {
		return nil, translate(err, "get latest run summary")
	}
	return r, nil
}

func scanSummary(row pgx.Row) (*domain.RunSummary, error) {
	var (
		r    domain.RunSummary
		seed int64
	)
	err := row.Scan(
		&r.RunID,
		&r.ReportingDate,
		&seed,
		&r.DataSource,
		&r.TotalLoans,
		&r.RejectedLoans,
		&r.FlaggedLoans,
		&r.TotalExposure,
		&r.TotalECL,
		&r.CoverageRatio,
		&r.Stage1Count,
		&r.Stage2Count,
		&r.Stage3Count,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	r.ReportingDate = storage.DateOnly(r.ReportingDate)
	return &r, nil
}
