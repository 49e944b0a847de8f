package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
)

// LoanStore implements storage.LoanStore using SQLite.
type LoanStore struct {
	db *DB
}

// NewLoanStore creates a new LoanStore.
func NewLoanStore(db *DB) *LoanStore {
	return &LoanStore{db: db}
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
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
	if _, err := s.db.ExecContext(ctx, insertLoanQuery, loanArgs(l)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// InsertBulk adds records atomically. Fails the entire batch on any duplicate.
func (s *LoanStore) InsertBulk(ctx context.Context, loans []*domain.Loan) error {
	if len(loans) == 0 {
		return nil
	}
	if err := storage.CheckBatch(loans); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertAll(ctx, tx, loans)
	})
}

// ReplaceSnapshot deletes every record of reportingDate and inserts loans
// in one transaction.
func (s *LoanStore) ReplaceSnapshot(ctx context.Context, reportingDate time.Time, loans []*domain.Loan) error {
	if err := storage.CheckSnapshot(reportingDate, loans); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM loan_portfolio WHERE reporting_date = ?`, dateString(reportingDate)); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		return insertAll(ctx, tx, loans)
	})
}

func (s *LoanStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, loans []*domain.Loan) error {
	stmt, err := tx.PrepareContext(ctx, insertLoanQuery)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range loans {
		if _, err := stmt.ExecContext(ctx, loanArgs(l)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert loan in bulk: %w", err)
		}
	}
	return nil
}

// GetByID retrieves one record. Returns ErrNotFound if it does not exist.
func (s *LoanStore) GetByID(ctx context.Context, reportingDate time.Time, loanID string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx, selectLoanColumns+` WHERE reporting_date = ? AND loan_id = ?`,
		dateString(reportingDate), loanID)
	l, err := scanLoan(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get loan by id: %w", err)
	}
	return l, nil
}

// GetByReportingDate retrieves a snapshot ordered by loan_id ASC.
func (s *LoanStore) GetByReportingDate(ctx context.Context, reportingDate time.Time) ([]*domain.Loan, error) {
	rows, err := s.db.QueryContext(ctx, selectLoanColumns+` WHERE reporting_date = ? ORDER BY loan_id ASC`,
		dateString(reportingDate))
	if err != nil {
		return nil, fmt.Errorf("get loans by reporting date: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// GetByStage retrieves enriched records of one stage ordered by loan_id ASC.
func (s *LoanStore) GetByStage(ctx context.Context, reportingDate time.Time, stage domain.Stage) ([]*domain.Loan, error) {
	rows, err := s.db.QueryContext(ctx, selectLoanColumns+` WHERE reporting_date = ? AND ifrs9_stage = ? ORDER BY loan_id ASC`,
		dateString(reportingDate), int(stage))
	if err != nil {
		return nil, fmt.Errorf("get loans by stage: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// ReportingDates lists stored reporting dates ascending.
func (s *LoanStore) ReportingDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT reporting_date FROM loan_portfolio ORDER BY reporting_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("get reporting dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan reporting date: %w", err)
		}
		d, err := parseDate(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reporting dates: %w", err)
	}
	return dates, nil
}

func dateString(t time.Time) string {
	return storage.DateOnly(t).Format(domain.DateLayout)
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

func loanArgs(l *domain.Loan) []any {
	var pd12, pdLife, lgd, stage, ecl, rate any
	if r := l.Risk; r != nil {
		pd12, pdLife, lgd, stage, ecl, rate = r.PD12M, r.PDLifetime, r.LGD, int(r.Stage), r.ECLAmount, r.ECLRate
	}
	var sector any
	if l.IndustrySector != nil {
		sector = *l.IndustrySector
	}
	return []any{
		l.LoanID,
		dateString(l.ReportingDate),
		l.ProductType.String(),
		dateString(l.OriginationDate),
		l.OriginalAmount,
		l.OutstandingBalance,
		l.CreditScoreOrigination,
		l.CreditScoreCurrent,
		l.DaysPastDue,
		l.InterestRate,
		sector,
		l.Geography,
		pd12, pdLife, lgd, stage, ecl, rate,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (*domain.Loan, error) {
	var (
		l                            domain.Loan
		product, reporting, orig     string
		sector                       sql.NullString
		pd12, pdLife, lgd, ecl, rate sql.NullFloat64
		stage                        sql.NullInt64
	)

	err := row.Scan(
		&l.LoanID, &reporting, &product, &orig,
		&l.OriginalAmount, &l.OutstandingBalance,
		&l.CreditScoreOrigination, &l.CreditScoreCurrent, &l.DaysPastDue,
		&l.InterestRate, &sector, &l.Geography,
		&pd12, &pdLife, &lgd, &stage, &ecl, &rate,
	)
	if err != nil {
		return nil, err
	}

	if l.ReportingDate, err = parseDate(reporting); err != nil {
		return nil, err
	}
	if l.OriginationDate, err = parseDate(orig); err != nil {
		return nil, err
	}
	l.ProductType = domain.ProductType(product)
	if sector.Valid {
		l.IndustrySector = &sector.String
	}

	if stage.Valid {
		l.Risk = &domain.RiskMetrics{
			PD12M:      pd12.Float64,
			PDLifetime: pdLife.Float64,
			LGD:        lgd.Float64,
			Stage:      domain.Stage(stage.Int64),
			ECLAmount:  ecl.Float64,
			ECLRate:    rate.Float64,
		}
		l.Risk.Flags = domain.DeriveFlags(&l)
	}
	return &l, nil
}

func scanLoans(rows *sql.Rows) ([]*domain.Loan, error) {
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
