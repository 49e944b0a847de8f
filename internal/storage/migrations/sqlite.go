package migrations

import (
	"context"

	"ifrs9-risk-lab/internal/storage/sqlite"
)

// RunSqliteMigrations applies all embedded SQL files in lexical order.
func RunSqliteMigrations(ctx context.Context, db *sqlite.DB) error {
	return apply(ctx, SqliteFS, "sqlite", false, func(ctx context.Context, sql string) error {
		_, err := db.ExecContext(ctx, sql)
		return err
	})
}
