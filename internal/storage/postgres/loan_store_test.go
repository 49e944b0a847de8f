package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
	"ifrs9-risk-lab/internal/storage/postgres"
)

var reportingDate = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

func testLoan(id string, stage domain.Stage) *domain.Loan {
	l := &domain.Loan{
		LoanID:                 id,
		ReportingDate:          reportingDate,
		ProductType:            domain.ProductSMELoan,
		OriginationDate:        time.Date(2021, 9, 14, 0, 0, 0, 0, time.UTC),
		OriginalAmount:         120000,
		OutstandingBalance:     87000.55,
		CreditScoreOrigination: 690,
		CreditScoreCurrent:     655,
		DaysPastDue:            30,
		InterestRate:           8.25,
		IndustrySector:         ptr("Technology"),
		Geography:              "South",
	}
	if stage != 0 {
		l.Risk = &domain.RiskMetrics{
			PD12M:      0.065,
			PDLifetime: 0.195,
			LGD:        0.4821,
			Stage:      stage,
			ECLAmount:  8179.66,
			ECLRate:    9.4019,
		}
	}
	return l
}

func TestLoanStore_InsertAndGetByID(t *testing.T) {
	pool := setupTestDB(t)

	store := postgres.NewLoanStore(pool)
	ctx := context.Background()

	loan := testLoan("LN0000001", domain.Stage2)
	require.NoError(t, store.Insert(ctx, loan))

	got, err := store.GetByID(ctx, reportingDate, "LN0000001")
	require.NoError(t, err)

	assert.Equal(t, loan.LoanID, got.LoanID)
	assert.True(t, loan.ReportingDate.Equal(got.ReportingDate))
	assert.True(t, loan.OriginationDate.Equal(got.OriginationDate))
	assert.Equal(t, loan.ProductType, got.ProductType)
	assert.Equal(t, loan.OutstandingBalance, got.OutstandingBalance)
	assert.Equal(t, loan.CreditScoreCurrent, got.CreditScoreCurrent)
	assert.Equal(t, *loan.IndustrySector, *got.IndustrySector)
	require.NotNil(t, got.Risk)
	assert.Equal(t, *loan.Risk, *got.Risk)
}

func TestLoanStore_UnenrichedRoundTrip(t *testing.T) {
	pool := setupTestDB(t)

	store := postgres.NewLoanStore(pool)
	ctx := context.Background()

	loan := testLoan("LN0000002", 0)
	loan.IndustrySector = nil
	require.NoError(t, store.Insert(ctx, loan))

	got, err := store.GetByID(ctx, reportingDate, "LN0000002")
	require.NoError(t, err)
	assert.Nil(t, got.Risk)
	assert.Nil(t, got.IndustrySector)
}

func TestLoanStore_InsertDuplicate(t *testing.T) {
	pool := setupTestDB(t)

	store := postgres.NewLoanStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testLoan("LN1", domain.Stage1)))
	err := store.Insert(ctx, testLoan("LN1", domain.Stage1))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.Loan{testLoan("LN2", 1), testLoan("LN1", 1)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, reportingDate, "LN2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoanStore_ReplaceSnapshot(t *testing.T) {
	pool := setupTestDB(t)

	store := postgres.NewLoanStore(pool)
	ctx := context.Background()

	var first []*domain.Loan
	for i := 1; i <= 500; i++ {
		first = append(first, testLoan(fmt.Sprintf("LN%07d", i), domain.Stage(1+i%3)))
	}
	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, first))

	got, err := store.GetByReportingDate(ctx, reportingDate)
	require.NoError(t, err)
	require.Len(t, got, 500)
	assert.Equal(t, "LN0000001", got[0].LoanID)

	second := []*domain.Loan{testLoan("LN9999999", domain.Stage3)}
	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, second))

	got, err = store.GetByReportingDate(ctx, reportingDate)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "LN9999999", got[0].LoanID)

	stage3, err := store.GetByStage(ctx, reportingDate, domain.Stage3)
	require.NoError(t, err)
	assert.Len(t, stage3, 1)

	dates, err := store.ReportingDates(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.True(t, dates[0].Equal(reportingDate))
}

func TestLoanStore_NotFound(t *testing.T) {
	pool := setupTestDB(t)

	_, err := postgres.NewLoanStore(pool).GetByID(context.Background(), reportingDate, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
