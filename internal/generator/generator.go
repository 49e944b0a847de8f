// Package generator produces synthetic loan portfolios with realistic
// product, balance, score and delinquency distributions.
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"ifrs9-risk-lab/internal/domain"
)

// ErrInvalidConfig is returned when Config fails validation.
var ErrInvalidConfig = errors.New("invalid generator config")

// DefaultReportingDate is the reporting date used when none is configured.
var DefaultReportingDate = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

// Config controls portfolio generation.
type Config struct {
	N             int
	Seed          uint64
	ReportingDate time.Time
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.N <= 0 {
		return fmt.Errorf("%w: n must be positive, got %d", ErrInvalidConfig, c.N)
	}
	return nil
}

// Generate returns c.N loans. The same config always yields the same
// portfolio.
func Generate(c Config) ([]*domain.Loan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	reportingDate := c.ReportingDate
	if reportingDate.IsZero() {
		reportingDate = DefaultReportingDate
	}
	reportingDate = reportingDate.UTC().Truncate(24 * time.Hour)

	g := &gen{rng: rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))}
	loans := make([]*domain.Loan, c.N)
	for i := range loans {
		loans[i] = g.loan(i+1, reportingDate)
	}
	return loans, nil
}

type gen struct {
	rng *rand.Rand
}

func (g *gen) loan(seq int, reportingDate time.Time) *domain.Loan {
	product := productMix.pick(g.rng)
	profile := profiles[product]

	daysAgo := 365 + g.rng.IntN(1825-365)
	origination := reportingDate.AddDate(0, 0, -daysAgo)

	original := math.Exp(profile.logMean + profile.logStdDev*g.rng.NormFloat64())
	monthsElapsed := float64(daysAgo) / 30
	amortization := math.Max(0.3, 1-monthsElapsed/60)
	outstanding := original * amortization * g.uniform(0.85, 1.0)

	scoreOrig := clipScore(680 + 80*g.rng.NormFloat64())
	scoreCur := clipScore(scoreOrig + 30*g.rng.NormFloat64())

	dpd := dpdMix.pick(g.rng)

	premium := (750 - scoreOrig) / 100 * 0.5
	rate := math.Max(2.0, profile.baseRate+premium+g.uniform(-0.5, 0.5))

	var sector *string
	if product == domain.ProductSMELoan {
		s := sectors[g.rng.IntN(len(sectors))]
		sector = &s
	}

	return &domain.Loan{
		LoanID:                 LoanID(seq),
		ReportingDate:          reportingDate,
		ProductType:            product,
		OriginationDate:        origination,
		OriginalAmount:         round2(original),
		OutstandingBalance:     round2(outstanding),
		CreditScoreOrigination: int(math.RoundToEven(scoreOrig)),
		CreditScoreCurrent:     int(math.RoundToEven(scoreCur)),
		DaysPastDue:            dpd,
		InterestRate:           round2(rate),
		IndustrySector:         sector,
		Geography:              regionMix.pick(g.rng),
	}
}

func (g *gen) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rng.Float64()
}

// LoanID formats a sequence number as a loan identifier, e.g. LN0000042.
func LoanID(seq int) string {
	return fmt.Sprintf("LN%07d", seq)
}

func clipScore(v float64) float64 {
	return math.Max(300, math.Min(850, v))
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}
