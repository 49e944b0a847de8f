package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifrs9-risk-lab/internal/domain"
)

func TestGenerate_Reproducible(t *testing.T) {
	cfg := Config{N: 200, Seed: 42}

	a, err := Generate(cfg)
	require.NoError(t, err)
	b, err := Generate(cfg)
	require.NoError(t, err)

	require.Len(t, a, 200)
	assert.Equal(t, a, b)

	c, err := Generate(Config{N: 200, Seed: 43})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerate_RecordsAreValid(t *testing.T) {
	loans, err := Generate(Config{N: 2000, Seed: 7})
	require.NoError(t, err)

	validDPD := map[int]bool{0: true, 30: true, 60: true, 90: true, 120: true, 180: true}
	for i, l := range loans {
		require.NoError(t, domain.ValidateLoan(l), l.LoanID)

		assert.Equal(t, LoanID(i+1), l.LoanID)
		assert.True(t, l.ProductType.Known())
		assert.Equal(t, DefaultReportingDate, l.ReportingDate)
		assert.True(t, validDPD[l.DaysPastDue], "dpd %d", l.DaysPastDue)
		assert.GreaterOrEqual(t, l.InterestRate, 2.0)
		assert.LessOrEqual(t, l.OutstandingBalance, l.OriginalAmount+0.01)

		age := l.ReportingDate.Sub(l.OriginationDate)
		assert.GreaterOrEqual(t, age, 365*24*time.Hour)
		assert.Less(t, age, 1825*24*time.Hour)

		if l.ProductType == domain.ProductSMELoan {
			require.NotNil(t, l.IndustrySector)
			assert.Contains(t, sectors, *l.IndustrySector)
		} else {
			assert.Nil(t, l.IndustrySector)
		}
	}
}

func TestGenerate_ProductMixRoughlyMatches(t *testing.T) {
	loans, err := Generate(Config{N: 10000, Seed: 1})
	require.NoError(t, err)

	counts := make(map[domain.ProductType]int)
	for _, l := range loans {
		counts[l.ProductType]++
	}
	for i, p := range productMix.values {
		share := float64(counts[p]) / float64(len(loans))
		assert.InDelta(t, productMix.weights[i], share, 0.03, p)
	}
}

func TestGenerate_CustomReportingDate(t *testing.T) {
	date := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	loans, err := Generate(Config{N: 5, Seed: 3, ReportingDate: date})
	require.NoError(t, err)
	for _, l := range loans {
		assert.Equal(t, date, l.ReportingDate)
	}
}

func TestGenerate_RejectsEmpty(t *testing.T) {
	_, err := Generate(Config{N: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWeighted_SumsCoverRange(t *testing.T) {
	for _, w := range [][]float64{productMix.weights, dpdMix.weights, regionMix.weights} {
		sum := 0.0
		for _, p := range w {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}
