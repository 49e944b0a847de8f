package domain

import "time"

// Loan is one loan record: source attributes plus the engine-derived risk
// metrics. Corresponds to the loan_portfolio table (18 columns).
type Loan struct {
	LoanID                 string      `validate:"required"`
	ReportingDate          time.Time   `validate:"required"`
	ProductType            ProductType `validate:"required"`
	OriginationDate        time.Time   `validate:"required"`
	OriginalAmount         float64     `validate:"gte=0"`
	OutstandingBalance     float64     `validate:"gte=0"` // EAD
	CreditScoreOrigination int         `validate:"min=300,max=850"`
	CreditScoreCurrent     int         `validate:"min=300,max=850"`
	DaysPastDue            int         `validate:"gte=0"`
	InterestRate           float64     `validate:"gte=0"` // percent
	IndustrySector         *string     // SME loans only (nullable)
	Geography              string      `validate:"required"`

	// Risk is nil until the record has been through the engine.
	Risk *RiskMetrics
}

// Enriched reports whether the record carries derived risk metrics.
func (l *Loan) Enriched() bool {
	return l.Risk != nil
}

// Clone returns a deep copy of l.
func (l *Loan) Clone() *Loan {
	c := *l
	if l.IndustrySector != nil {
		s := *l.IndustrySector
		c.IndustrySector = &s
	}
	if l.Risk != nil {
		r := *l.Risk
		c.Risk = &r
	}
	return &c
}

// ScoreDrop returns the credit-score deterioration since origination.
func (l *Loan) ScoreDrop() int {
	return l.CreditScoreOrigination - l.CreditScoreCurrent
}

// VintageYear returns the origination year.
func (l *Loan) VintageYear() int {
	return l.OriginationDate.Year()
}

// Columns lists the persisted schema in column order.
var Columns = []string{
	"loan_id",
	"reporting_date",
	"product_type",
	"origination_date",
	"original_amount",
	"outstanding_balance",
	"credit_score_origination",
	"credit_score_current",
	"days_past_due",
	"interest_rate",
	"industry_sector",
	"geography",
	"pd_12m",
	"pd_lifetime",
	"lgd",
	"ifrs9_stage",
	"ecl_amount",
	"ecl_rate",
}

// DateLayout is the layout of reporting_date and origination_date.
const DateLayout = "2006-01-02"
