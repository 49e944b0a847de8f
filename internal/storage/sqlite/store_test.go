package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifrs9-risk-lab/internal/domain"
	"ifrs9-risk-lab/internal/storage"
	"ifrs9-risk-lab/internal/storage/migrations"
	"ifrs9-risk-lab/internal/storage/sqlite"
)

var reportingDate = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sqlite.DB {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "portfolio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.RunSqliteMigrations(ctx, db))
	// idempotent
	require.NoError(t, migrations.RunSqliteMigrations(ctx, db))
	return db
}

func ptr[T any](v T) *T { return &v }

func testLoan(id string, stage domain.Stage) *domain.Loan {
	l := &domain.Loan{
		LoanID:                 id,
		ReportingDate:          reportingDate,
		ProductType:            domain.ProductPersonalLoan,
		OriginationDate:        time.Date(2020, 11, 2, 0, 0, 0, 0, time.UTC),
		OriginalAmount:         15000,
		OutstandingBalance:     9100.4,
		CreditScoreOrigination: 700,
		CreditScoreCurrent:     580,
		DaysPastDue:            0,
		InterestRate:           10.95,
		Geography:              "North",
	}
	if stage != 0 {
		l.Risk = &domain.RiskMetrics{PD12M: 0.12, PDLifetime: 0.36, LGD: 0.6321, Stage: stage, ECLAmount: 2070.86, ECLRate: 22.7555}
	}
	return l
}

func TestLoanStore_RoundTrip(t *testing.T) {
	store := sqlite.NewLoanStore(setupDB(t))
	ctx := context.Background()

	enriched := testLoan("LN0000001", domain.Stage2)
	enriched.IndustrySector = ptr("Services")
	plain := testLoan("LN0000002", 0)
	plain.ProductType = "Boat Loan"

	require.NoError(t, store.InsertBulk(ctx, []*domain.Loan{enriched, plain}))

	got, err := store.GetByID(ctx, reportingDate, "LN0000001")
	require.NoError(t, err)
	assert.Equal(t, enriched, got)

	got, err = store.GetByID(ctx, reportingDate, "LN0000002")
	require.NoError(t, err)
	assert.Nil(t, got.Risk)
	assert.Nil(t, got.IndustrySector)
	assert.False(t, got.ProductType.Known())

	_, err = store.GetByID(ctx, reportingDate, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoanStore_Duplicates(t *testing.T) {
	store := sqlite.NewLoanStore(setupDB(t))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testLoan("LN1", domain.Stage1)))
	assert.ErrorIs(t, store.Insert(ctx, testLoan("LN1", domain.Stage1)), storage.ErrDuplicateKey)

	err := store.InsertBulk(ctx, []*domain.Loan{testLoan("LN2", 1), testLoan("LN1", 1)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, reportingDate, "LN2")
	assert.ErrorIs(t, err, storage.ErrNotFound, "bulk insert must roll back")
}

func TestLoanStore_ReplaceSnapshot(t *testing.T) {
	store := sqlite.NewLoanStore(setupDB(t))
	ctx := context.Background()

	var loans []*domain.Loan
	for i := 1; i <= 60; i++ {
		loans = append(loans, testLoan(fmt.Sprintf("LN%07d", i), domain.Stage(1+i%3)))
	}
	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, loans))
	require.NoError(t, store.ReplaceSnapshot(ctx, reportingDate, loans[:6]))

	got, err := store.GetByReportingDate(ctx, reportingDate)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, "LN0000001", got[0].LoanID)

	stage3, err := store.GetByStage(ctx, reportingDate, domain.Stage3)
	require.NoError(t, err)
	assert.Len(t, stage3, 2)

	dates, err := store.ReportingDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{reportingDate}, dates)
}

func TestRunSummaryStore_Ordering(t *testing.T) {
	store := sqlite.NewRunSummaryStore(setupDB(t))
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{time.Second, 500 * time.Millisecond, 0} {
		require.NoError(t, store.Insert(ctx, &domain.RunSummary{
			RunID:         fmt.Sprintf("run-%d", i),
			ReportingDate: reportingDate,
			Seed:          uint64(i) + 1<<63,
			DataSource:    "csv",
			TotalLoans:    10,
			CreatedAt:     base.Add(offset),
		}))
	}

	byDate, err := store.GetByReportingDate(ctx, reportingDate)
	require.NoError(t, err)
	require.Len(t, byDate, 3)
	assert.Equal(t, "run-2", byDate[0].RunID)
	assert.Equal(t, "run-1", byDate[1].RunID)
	assert.Equal(t, "run-0", byDate[2].RunID)
	assert.Equal(t, uint64(2)+1<<63, byDate[0].Seed)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-0", latest.RunID)
	assert.True(t, base.Add(time.Second).Equal(latest.CreatedAt))

	_, err = store.GetByID(ctx, "none")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
