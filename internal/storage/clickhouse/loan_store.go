package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
)

// LoanStore implements storage.LoanStore using ClickHouse. The table is
// partitioned by reporting_date and ordered by (ifrs9_stage, product_type),
// so stage and product scans within a snapshot stay cheap.
type LoanStore struct {
	conn *Conn
}

// NewLoanStore creates a new LoanStore.
func NewLoanStore(conn *Conn) *LoanStore {
	return &LoanStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LoanStore = (*LoanStore)(nil)

// insertLoans is formatted with the target table name.
const insertLoans = `
	INSERT INTO %s (
		loan_id, reporting_date, product_type, origination_date,
		original_amount, outstanding_balance,
		credit_score_origination, credit_score_current, days_past_due,
		interest_rate, industry_sector, geography,
		pd_12m, pd_lifetime, lgd, ifrs9_stage, ecl_amount, ecl_rate
	)
`

const selectLoans = `
	SELECT
		loan_id, reporting_date, product_type, origination_date,
		original_amount, outstanding_balance,
		credit_score_origination, credit_score_current, days_past_due,
		interest_rate, industry_sector, geography,
		pd_12m, pd_lifetime, lgd, ifrs9_stage, ecl_amount, ecl_rate
	FROM loan_portfolio FINAL
`

// Insert adds a record. Returns ErrDuplicateKey if the key exists.
func (s *LoanStore) Insert(ctx context.Context, l *domain.Loan) error {
	return s.InsertBulk(ctx, []*domain.Loan{l})
}

// InsertBulk adds records in one batch. Fails the entire batch on any duplicate.
func (s *LoanStore) InsertBulk(ctx context.Context, loans []*domain.Loan) error {
	if len(loans) == 0 {
		return nil
	}
	if err := storage.CheckBatch(loans); err != nil {
		return err
	}

	// MergeTree does not enforce uniqueness, check against existing rows
	byDate := make(map[time.Time][]string)
	for _, l := range loans {
		d := storage.DateOnly(l.ReportingDate)
		byDate[d] = append(byDate[d], l.LoanID)
	}
	for date, ids := range byDate {
		n, err := s.countExisting(ctx, date, ids)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	return s.send(ctx, "loan_portfolio", loans)
}

// ReplaceSnapshot swaps the reporting_date partition for loans. Rows are
// staged in a scratch table with the same layout and moved in with one
// REPLACE PARTITION, so a failed load leaves the previous snapshot intact.
func (s *LoanStore) ReplaceSnapshot(ctx context.Context, reportingDate time.Time, loans []*domain.Loan) error {
	if err := storage.CheckSnapshot(reportingDate, loans); err != nil {
		return err
	}
	partition := dateString(reportingDate)

	if len(loans) == 0 {
		if err := s.conn.Exec(ctx, fmt.Sprintf("ALTER TABLE loan_portfolio DROP PARTITION '%s'", partition)); err != nil {
			return fmt.Errorf("drop snapshot: %w", err)
		}
		return nil
	}

	staging := stagingTable(reportingDate)
	if err := s.conn.Exec(ctx, fmt.Sprintf("CREATE TABLE `%s` AS loan_portfolio", staging)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}
	defer func() {
		// cleanup must run even when ctx is done
		_ = s.conn.Exec(context.WithoutCancel(ctx), fmt.Sprintf("DROP TABLE IF EXISTS `%s`", staging))
	}()

	if err := s.send(ctx, staging, loans); err != nil {
		return fmt.Errorf("stage snapshot: %w", err)
	}

	err := s.conn.Exec(ctx, fmt.Sprintf("ALTER TABLE loan_portfolio REPLACE PARTITION '%s' FROM `%s`", partition, staging))
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// stagingTable names a per-call scratch table for a snapshot load.
func stagingTable(reportingDate time.Time) string {
	return fmt.Sprintf("loan_portfolio_stage_%s_%d",
		storage.DateOnly(reportingDate).Format("20060102"), time.Now().UnixNano())
}

func (s *LoanStore) send(ctx context.Context, table string, loans []*domain.Loan) error {
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(insertLoans, table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, l := range loans {
		if err := batch.Append(loanValues(l)...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByID retrieves one record. Returns ErrNotFound if it does not exist.
func (s *LoanStore) GetByID(ctx context.Context, reportingDate time.Time, loanID string) (*domain.Loan, error) {
	query := selectLoans + `
		WHERE reporting_date = toDate(?) AND loan_id = ?
		LIMIT 1
	`

	row := s.conn.QueryRow(ctx, query, dateString(reportingDate), loanID)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get loan by id: %w", err)
	}
	return l, nil
}

// GetByReportingDate retrieves a snapshot ordered by loan_id ASC.
func (s *LoanStore) GetByReportingDate(ctx context.Context, reportingDate time.Time) ([]*domain.Loan, error) {
	query := selectLoans + `
		WHERE reporting_date = toDate(?)
		ORDER BY loan_id ASC
	`

	rows, err := s.conn.Query(ctx, query, dateString(reportingDate))
	if err != nil {
		return nil, fmt.Errorf("query by reporting date: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// GetByStage retrieves enriched records of one stage ordered by loan_id ASC.
func (s *LoanStore) GetByStage(ctx context.Context, reportingDate time.Time, stage domain.Stage) ([]*domain.Loan, error) {
	query := selectLoans + `
		WHERE reporting_date = toDate(?) AND ifrs9_stage = ?
		ORDER BY loan_id ASC
	`

	rows, err := s.conn.Query(ctx, query, dateString(reportingDate), uint8(stage))
	if err != nil {
		return nil, fmt.Errorf("query by stage: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// ReportingDates lists stored reporting dates ascending.
func (s *LoanStore) ReportingDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT reporting_date FROM loan_portfolio ORDER BY reporting_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query reporting dates: %w", err)
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

func (s *LoanStore) countExisting(ctx context.Context, date time.Time, loanIDs []string) (uint64, error) {
	query := `
		SELECT count(*) FROM loan_portfolio FINAL
		WHERE reporting_date = toDate(?) AND loan_id IN (?)
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, dateString(date), loanIDs).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func dateString(t time.Time) string {
	return storage.DateOnly(t).Format(domain.DateLayout)
}

// loanValues returns column values in domain.Columns order. Unenriched
// records are written with stage 0 and NULL derived metrics.
func loanValues(l *domain.Loan) []any {
	var (
		pd12, pdLife, lgd, ecl, rate *float64
		stage                        uint8
	)
	if r := l.Risk; r != nil {
		pd12, pdLife, lgd, ecl, rate = &r.PD12M, &r.PDLifetime, &r.LGD, &r.ECLAmount, &r.ECLRate
		stage = uint8(r.Stage)
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

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

type chRow interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row chRow) (*domain.Loan, error) {
	var (
		l                            domain.Loan
		product                      string
		scoreOrig, scoreCur, dpd     int32
		pd12, pdLife, lgd, ecl, rate *float64
		stage                        uint8
	)

	err := row.Scan(
		&l.LoanID, &l.ReportingDate, &product, &l.OriginationDate,
		&l.OriginalAmount, &l.OutstandingBalance,
		&scoreOrig, &scoreCur, &dpd,
		&l.InterestRate, &l.IndustrySector, &l.Geography,
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

	if stage != 0 {
		l.Risk = &domain.RiskMetrics{
			PD12M:      value(pd12),
			PDLifetime: value(pdLife),
			LGD:        value(lgd),
			Stage:      domain.Stage(stage),
			ECLAmount:  value(ecl),
			ECLRate:    value(rate),
		}
		l.Risk.Flags = domain.DeriveFlags(&l)
	}
	return &l, nil
}

// scanLoans scans multiple rows into a slice.
func scanLoans(rows chRows) ([]*domain.Loan, error) {
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

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
