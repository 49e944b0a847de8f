// Package backend opens the loan and run summary stores selected by config.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ifrs9-risk-lab/internal/config"
	"ifrs9-risk-lab/internal/storage"
	chstore "ifrs9-risk-lab/internal/storage/clickhouse"
	"ifrs9-risk-lab/internal/storage/memory"
	"ifrs9-risk-lab/internal/storage/migrations"
	pgstore "ifrs9-risk-lab/internal/storage/postgres"
	sqlitestore "ifrs9-risk-lab/internal/storage/sqlite"
)

// Stores holds the opened stores and releases their connections on Close.
type Stores struct {
	Name      string // storage mode, used as the metrics label
	Loans     storage.LoanStore
	Summaries storage.RunSummaryStore
	closers   []func()
}

// Close releases all connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Open connects to the configured backend. With migrate set, embedded
// migrations are applied first.
func Open(ctx context.Context, cfg config.StorageConfig, migrate bool, log *zap.Logger) (*Stores, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("storage", cfg.Mode))

	switch cfg.Mode {
	case config.StorageMemory:
		return &Stores{
			Name:      cfg.Mode,
			Loans:     memory.NewLoanStore(),
			Summaries: memory.NewRunSummaryStore(),
		}, nil

	case config.StoragePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			log.Info("migrations applied")
		}
		return &Stores{
			Name:      cfg.Mode,
			Loans:     pgstore.NewLoanStore(pool),
			Summaries: pgstore.NewRunSummaryStore(pool),
			closers:   []func(){pool.Close},
		}, nil

	case config.StorageClickHouse:
		var (
			conn *chstore.Conn
			err  error
		)
		if migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
			if err == nil {
				log.Info("migrations applied")
			}
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
		}
		if err != nil {
			return nil, err
		}
		// the warehouse holds loan snapshots only
		log.Info("run summaries are kept in memory")
		return &Stores{
			Name:      cfg.Mode,
			Loans:     chstore.NewLoanStore(conn),
			Summaries: memory.NewRunSummaryStore(),
			closers:   []func(){func() { _ = conn.Close() }},
		}, nil

	case config.StorageSQLite:
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := migrations.RunSqliteMigrations(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("sqlite migrations: %w", err)
			}
			log.Info("migrations applied")
		}
		return &Stores{
			Name:      cfg.Mode,
			Loans:     sqlitestore.NewLoanStore(db),
			Summaries: sqlitestore.NewRunSummaryStore(db),
			closers:   []func(){func() { _ = db.Close() }},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown storage mode %q", config.ErrInvalidConfig, cfg.Mode)
}
