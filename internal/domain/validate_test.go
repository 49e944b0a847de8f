package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLoan() *Loan {
	return &Loan{
		LoanID:                 "LN0000001",
		ReportingDate:          time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		ProductType:            ProductMortgage,
		OriginationDate:        time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		OriginalAmount:         250000,
		OutstandingBalance:     180000,
		CreditScoreOrigination: 720,
		CreditScoreCurrent:     715,
		DaysPastDue:            0,
		InterestRate:           4.8,
		Geography:              "North",
	}
}

func TestValidateLoan_Valid(t *testing.T) {
	require.NoError(t, ValidateLoan(validLoan()))
}

func TestValidateLoan_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *Loan)
		field  string
	}{
		{"missing id", func(l *Loan) { l.LoanID = "" }, "LoanID"},
		{"missing product", func(l *Loan) { l.ProductType = "" }, "ProductType"},
		{"negative balance", func(l *Loan) { l.OutstandingBalance = -1 }, "OutstandingBalance"},
		{"nan balance", func(l *Loan) { l.OutstandingBalance = math.NaN() }, "OutstandingBalance"},
		{"score below range", func(l *Loan) { l.CreditScoreCurrent = 299 }, "CreditScoreCurrent"},
		{"score above range", func(l *Loan) { l.CreditScoreOrigination = 851 }, "CreditScoreOrigination"},
		{"negative dpd", func(l *Loan) { l.DaysPastDue = -30 }, "DaysPastDue"},
		{"missing geography", func(l *Loan) { l.Geography = "" }, "Geography"},
		{"missing reporting date", func(l *Loan) { l.ReportingDate = time.Time{} }, "ReportingDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLoan()
			tt.mutate(l)

			err := ValidateLoan(l)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidLoan))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateEngineInput_IgnoresContextFields(t *testing.T) {
	l := validLoan()
	l.Geography = ""
	l.ReportingDate = time.Time{}

	assert.NoError(t, ValidateEngineInput(l))

	l.CreditScoreCurrent = 900
	assert.ErrorIs(t, ValidateEngineInput(l), ErrInvalidLoan)
}

func TestValidateEngineInput_UnknownProductAccepted(t *testing.T) {
	l := validLoan()
	l.ProductType = "Student Loan"
	assert.NoError(t, ValidateEngineInput(l))
}

func TestDeriveFlags(t *testing.T) {
	l := validLoan()
	assert.Equal(t, RiskFlag(0), DeriveFlags(l))

	l.ProductType = "Boat Loan"
	l.OutstandingBalance = 0
	f := DeriveFlags(l)
	assert.True(t, f.Has(FlagUnknownProduct))
	assert.True(t, f.Has(FlagZeroExposure))
	assert.Equal(t, "unknown_product|zero_exposure", f.String())
}

func TestLoanClone_DeepCopy(t *testing.T) {
	sector := "Retail"
	l := validLoan()
	l.IndustrySector = &sector
	l.Risk = &RiskMetrics{PD12M: 0.01}

	c := l.Clone()
	*c.IndustrySector = "Services"
	c.Risk.PD12M = 0.5

	assert.Equal(t, "Retail", *l.IndustrySector)
	assert.Equal(t, 0.01, l.Risk.PD12M)
}

func TestColumns_EighteenInSchemaOrder(t *testing.T) {
	require.Len(t, Columns, 18)
	assert.Equal(t, "loan_id", Columns[0])
	assert.Equal(t, "pd_12m", Columns[12])
	assert.Equal(t, "ecl_rate", Columns[17])
}
