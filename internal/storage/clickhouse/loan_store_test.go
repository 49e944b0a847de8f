package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
	"ifrs9-risk-lab/internal/storage/clickhouse"
)

var reportingDate = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

func testLoan(id string, date time.Time, stage domain.Stage) *domain.Loan {
	l := &domain.Loan{
		LoanID:                 id,
		ReportingDate:          date,
		ProductType:            domain.ProductCreditCard,
		OriginationDate:        time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		OriginalAmount:         6000,
		OutstandingBalance:     4100.5,
		CreditScoreOrigination: 640,
		CreditScoreCurrent:     610,
		DaysPastDue:            60,
		InterestRate:           19.4,
		Geography:              "Central",
	}
	if stage != 0 {
		l.Risk = &domain.RiskMetrics{PD12M: 0.3, PDLifetime: 0.9, LGD: 0.7112, Stage: stage, ECLAmount: 2624.7, ECLRate: 64.0093}
	}
	return l
}

func TestLoanStore_InsertAndGetByID(t *testing.T) {
	conn := setupTestDB(t)

	store := clickhouse.NewLoanStore(conn)
	ctx := context.Background()

	loan := testLoan("LN0000001", reportingDate, domain.Stage2)
	loan.IndustrySector = ptr("Retail")
	require.NoError(t, store.Insert(ctx, loan))

	got, err := store.GetByID(ctx, reportingDate, "LN0000001")
	require.NoError(t, err)
	assert.Equal(t, loan.LoanID, got.LoanID)
	assert.True(t, reportingDate.Equal(got.ReportingDate))
	assert.Equal(t, "Retail", *got.IndustrySector)
	require.NotNil(t, got.Risk)
	assert.Equal(t, *loan.Risk, *got.Risk)

	assert.ErrorIs(t, store.Insert(ctx, loan), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, reportingDate, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoanStore_ReplaceSnapshotKeepsOtherPartitions(t *testing.T) {
	conn := setupTestDB(t)

	store := clickhouse.NewLoanStore(conn)
	ctx := context.Background()
	other := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)

	var first []*domain.Loan
	for i := 1; i <= 100; i++ {
		first = append(first, testLoan(fmt.Sprintf("LN%07d", i), reportingDate, domain.Stage(1+i%3)))
	}
	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, first))
	require.NoError(t, store.ReplaceSnapshot(ctx, other, []*domain.Loan{testLoan("LN0000001", other, 0)}))

	stage1, err := store.GetByStage(ctx, reportingDate, domain.Stage1)
	require.NoError(t, err)
	assert.Len(t, stage1, 33)

	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, first[:10]))

	got, err := store.GetByReportingDate(ctx, reportingDate)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	prev, err := store.GetByReportingDate(ctx, other)
	require.NoError(t, err)
	require.Len(t, prev, 1)
	assert.Nil(t, prev[0].Risk)

	dates, err := store.ReportingDates(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].Equal(other))
}

func TestLoanStore_FailedReplaceKeepsSnapshot(t *testing.T) {
	conn := setupTestDB(t)

	store := clickhouse.NewLoanStore(conn)
	ctx := context.Background()

	var current []*domain.Loan
	for i := 1; i <= 50; i++ {
		current = append(current, testLoan(fmt.Sprintf("LN%07d", i), reportingDate, domain.Stage1))
	}
	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, current))

	// Date columns start at 1970-01-01, so the last row fails mid-load
	next := []*domain.Loan{
		testLoan("LN0000001", reportingDate, domain.Stage2),
		testLoan("LN0000002", reportingDate, domain.Stage2),
	}
	next[1].OriginationDate = time.Date(1965, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Error(t, store.ReplaceSnapshot(ctx, reportingDate, next))

	got, err := store.GetByReportingDate(ctx, reportingDate)
	require.NoError(t, err)
	assert.Len(t, got, 50)

	var staging uint64
	require.NoError(t, conn.QueryRow(ctx,
		`SELECT count() FROM system.tables WHERE database = currentDatabase() AND name LIKE 'loan_portfolio_stage%'`,
	).Scan(&staging))
	assert.Zero(t, staging)
}

func TestLoanStore_ReplaceSnapshotWithNoLoansClearsPartition(t *testing.T) {
	conn := setupTestDB(t)

	store := clickhouse.NewLoanStore(conn)
	ctx := context.Background()

	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, []*domain.Loan{testLoan("LN0000001", reportingDate, domain.Stage1)}))
	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, nil))

	got, err := store.GetByReportingDate(ctx, reportingDate)
	require.NoError(t, err)
	assert.Empty(t, got)
}
