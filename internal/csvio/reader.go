// Package csvio reads and writes the loan portfolio CSV format.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ifrs9-risk-lab/internal/domain"
)

// ErrMissingColumn is returned when a required input column is absent.
var ErrMissingColumn = errors.New("missing column")

// RowError is a failure to parse or validate one data row.
// Row is 1-based and counts data rows only (the header is row 0).
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// inputColumns must be present in every file; the derived columns are optional.
var inputColumns = domain.Columns[:12]

var dateLayouts = []string{domain.DateLayout, "2006-01-02 15:04:05", time.RFC3339}

// Result holds the rows read from a CSV file.
type Result struct {
	Loans    []*domain.Loan
	Rejected []*RowError
}

// Read parses every row. The first invalid row aborts the read.
func Read(r io.Reader) ([]*domain.Loan, error) {
	res, err := read(r, false)
	if err != nil {
		return nil, err
	}
	return res.Loans, nil
}

// ReadLenient parses every row, collecting invalid rows instead of failing.
// Only a malformed header or an I/O error returns an error.
func ReadLenient(r io.Reader) (*Result, error) {
	return read(r, true)
}

func read(r io.Reader, lenient bool) (*Result, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("read row %d: %w", row, err)
			}
			rerr := &RowError{Row: row, Err: err}
			if !lenient {
				return nil, rerr
			}
			res.Rejected = append(res.Rejected, rerr)
			continue
		}

		loan, err := parseRow(record, idx)
		if err == nil {
			err = domain.ValidateLoan(loan)
		}
		if err != nil {
			rerr := &RowError{Row: row, Err: err}
			if !lenient {
				return nil, rerr
			}
			res.Rejected = append(res.Rejected, rerr)
			continue
		}
		res.Loans = append(res.Loans, loan)
	}
	return res, nil
}

func indexHeader(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range inputColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return idx, nil
}

type rowParser struct {
	record []string
	idx    map[string]int
	err    error
}

func (p *rowParser) field(col string) string {
	i, ok := p.idx[col]
	if !ok || i >= len(p.record) {
		return ""
	}
	return strings.TrimSpace(p.record[i])
}

func (p *rowParser) str(col string) string {
	return p.field(col)
}

func (p *rowParser) float(col string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.field(col), 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", col, err)
	}
	return v
}

// integer accepts values written as floats (e.g. "720.0").
func (p *rowParser) integer(col string) int {
	if p.err != nil {
		return 0
	}
	raw := p.field(col)
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		p.err = fmt.Errorf("%s: not an integer: %q", col, raw)
		return 0
	}
	return int(f)
}

func (p *rowParser) date(col string) time.Time {
	if p.err != nil {
		return time.Time{}
	}
	raw := p.field(col)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	p.err = fmt.Errorf("%s: invalid date %q", col, raw)
	return time.Time{}
}

func parseRow(record []string, idx map[string]int) (*domain.Loan, error) {
	p := &rowParser{record: record, idx: idx}

	l := &domain.Loan{
		LoanID:                 p.str("loan_id"),
		ReportingDate:          p.date("reporting_date"),
		ProductType:            domain.ProductType(p.str("product_type")),
		OriginationDate:        p.date("origination_date"),
		OriginalAmount:         p.float("original_amount"),
		OutstandingBalance:     p.float("outstanding_balance"),
		CreditScoreOrigination: p.integer("credit_score_origination"),
		CreditScoreCurrent:     p.integer("credit_score_current"),
		DaysPastDue:            p.integer("days_past_due"),
		InterestRate:           p.float("interest_rate"),
		IndustrySector:         nullableSector(p.str("industry_sector")),
		Geography:              p.str("geography"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if !hasDerived(p) {
		return l, nil
	}
	stage := domain.Stage(p.integer("ifrs9_stage"))
	m := domain.RiskMetrics{
		PD12M:      p.float("pd_12m"),
		PDLifetime: p.float("pd_lifetime"),
		LGD:        p.float("lgd"),
		Stage:      stage,
		ECLAmount:  p.float("ecl_amount"),
		ECLRate:    p.float("ecl_rate"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if !stage.IsValid() {
		return nil, fmt.Errorf("ifrs9_stage: invalid stage %d", stage)
	}
	m.Flags = domain.DeriveFlags(l)
	l.Risk = &m
	return l, nil
}

// hasDerived reports whether any derived column carries a value.
func hasDerived(p *rowParser) bool {
	for _, col := range domain.Columns[12:] {
		if p.field(col) != "" {
			return true
		}
	}
	return false
}

func nullableSector(s string) *string {
	if s == "" || strings.EqualFold(s, "N/A") {
		return nil
	}
	return &s
}
