package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
)

// LoanStore implements storage.LoanStore using PostgreSQL.
type LoanStore struct {
	pool *Pool
}

// NewLoanStore creates a new LoanStore.
func NewLoanStore(pool *Pool) *LoanStore {
	return &LoanStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LoanStore = (*LoanStore)(nil)

const insertLoanQuery = `
	INSERT INTO loan_portfolio (
		loan_id, reporting_date, product_type, origination_date,
		original_amount, outstanding_balance,
		credit_score_origination, credit_score_current, days_past_due,
		interest_rate, industry_sector, geography,
		pd_12m, pd_lifetime, lgd, ifrs9_stage, ecl_amount, ecl_rate
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`

const selectLoanColumns = `
	SELECT loan_id, reporting_date, product_type, origination_date,
		original_amount, outstanding_balance,
		credit_score_origination, credit_score_current, days_past_due,
		interest_rate, industry_sector, geography,
		pd_12m, pd_lifetime, lgd, ifrs9_stage, ecl_amount, ecl_rate
	FROM loan_portfolio
`

// Insert adds a record. Returns ErrDuplicateKey if the key exists.
func (s *LoanStore) Insert(ctx context.Context, l *domain.Loan) error {
	if err := storage.CheckLoan(l); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, insertLoanQuery, loanArgs(l)...)
	return translate(err, "insert loan")
}

// InsertBulk adds records atomically. Fails the entire batch on any duplicate.
func (s *LoanStore) InsertBulk(ctx context.Context, loans []*domain.Loan) error {
	if len(loans) == 0 {
		return nil
	}
	if err := storage.CheckBatch(loans); err != nil {
		return err
	}

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		return copyLoans(ctx, tx, loans)
	})
}

// ReplaceSnapshot deletes every record of reportingDate and inserts loans
// in one transaction.
func (s *LoanStore) ReplaceSnapshot(ctx context.Context, reportingDate time.Time, loans []*domain.Loan) error {
	if err := storage.CheckSnapshot(reportingDate, loans); err != nil {
		return err
	}

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM loan_portfolio WHERE reporting_date = $1`, storage.DateOnly(reportingDate)); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		if len(loans) == 0 {
			return nil
		}
		return copyLoans(ctx, tx, loans)
	})
}

// copyLoans streams loans with the COPY protocol.
func copyLoans(ctx context.Context, tx pgx.Tx, loans []*domain.Loan) error {
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"loan_portfolio"},
		domain.Columns,
		pgx.CopyFromSlice(len(loans), func(i int) ([]any, error) {
			return loanArgs(loans[i]), nil
		}),
	)
	return translate(err, "copy loans")
}

// GetByID retrieves one record. Returns ErrNotFound if it does not exist.
func (s *LoanStore) GetByID(ctx context.Context, reportingDate time.Time, loanID string) (*domain.Loan, error) {
	query := selectLoanColumns + ` WHERE reporting_date = $1 AND loan_id = $2`

	row := s.pool.QueryRow(ctx, query, storage.DateOnly(reportingDate), loanID)
	l, err := scanLoan(row)
	if err != nil {
		return nil, translate(err, "get loan by id")
	}
	return l, nil
}

// GetByReportingDate retrieves a snapshot ordered by loan_id ASC.
func (s *LoanStore) GetByReportingDate(ctx context.Context, reportingDate time.Time) ([]*domain.Loan, error) {
	query := selectLoanColumns + ` WHERE reporting_date = $1 ORDER BY loan_id ASC`

	rows, err := s.pool.Query(ctx, query, storage.DateOnly(reportingDate))
	if err != nil {
		return nil, fmt.Errorf("get loans by reporting date: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// GetByStage retrieves enriched records of one stage ordered by loan_id ASC.
func (s *LoanStore) GetByStage(ctx context.Context, reportingDate time.Time, stage domain.Stage) ([]*domain.Loan, error) {
	query := selectLoanColumns + ` WHERE reporting_date = $1 AND ifrs9_stage = $2 ORDER BY loan_id ASC`

	rows, err := s.pool.Query(ctx, query, storage.DateOnly(reportingDate), int16(stage))
	if err != nil {
		return nil, fmt.Errorf("get loans by stage: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// ReportingDates lists stored reporting dates ascending.
func (s *LoanStore) ReportingDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT reporting_date FROM loan_portfolio ORDER BY reporting_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("get reporting dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan reporting date: %w", err)
		}
		dates = append(dates, storage.DateOnly(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reporting dates: %w", err)
	}
	return dates, nil
}

// loanArgs returns column values in domain.Columns order.
func loanArgs(l *domain.Loan) []any {
	var (
		pd12, pdLife, lgd, ecl, rate *float64
		stage                        *int16
	)
	if r := l.Risk; r != nil {
		st := int16(r.Stage)
		pd12, pdLife, lgd, ecl, rate, stage = &r.PD12M, &r.PDLifetime, &r.LGD, &r.ECLAmount, &r.ECLRate, &st
	}
	return []any{
		l.LoanID,
		storage.DateOnly(l.ReportingDate),
		l.ProductType.String(),
		storage.DateOnly(l.OriginationDate),
		l.OriginalAmount,
		l.OutstandingBalance,
		int32(l.CreditScoreOrigination),
		int32(l.CreditScoreCurrent),
		int32(l.DaysPastDue),
		l.InterestRate,
		l.IndustrySector,
		l.Geography,
		pd12, pdLife, lgd, stage, ecl, rate,
	}
}

// scanLoan scans a single row into a Loan.
func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		l                            domain.Loan
		product                      string
		scoreOrig, scoreCur, dpd     int32
		pd12, pdLife, lgd, ecl, rate *float64
		stage                        *int16
	)

	err := row.Scan(
		&l.LoanID,
		&l.ReportingDate,
		&product,
		&l.OriginationDate,
		&l.OriginalAmount,
		&l.OutstandingBalance,
		&scoreOrig,
		&scoreCur,
		&dpd,
		&l.InterestRate,
		&l.IndustrySector,
		&l.Geography,
		&pd12, &pdLife, &lgd, &stage, &ecl, &rate,
	)
	if err != nil {
		return nil, err
	}

	l.ProductType = domain.ProductType(product)
	l.ReportingDate = storage.DateOnly(l.ReportingDate)
	l.OriginationDate = storage.DateOnly(l.OriginationDate)
	l.CreditScoreOrigination = int(scoreOrig)
	l.CreditScoreCurrent = int(scoreCur)
	l.DaysPastDue = int(dpd)

	if stage != nil {
		l.Risk = &domain.RiskMetrics{
			PD12M:      deref(pd12),
			PDLifetime: deref(pdLife),
			LGD:        deref(lgd),
			Stage:      domain.Stage(*stage),
			ECLAmount:  deref(ecl),
			ECLRate:    deref(rate),
		}
		l.Risk.Flags = domain.DeriveFlags(&l)
	}
	return &l, nil
}

// scanLoans scans multiple rows into a slice of Loan.
func scanLoans(rows pgx.Rows) ([]*domain.Loan, error) {
	var loans []*domain.Loan

	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan row: %w", err)
		}
		loans = append(loans, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loan rows: %w", err)
	}

	return loans, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
