package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedFilesInOrder(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.Len(t, pg, 2)
	assert.Equal(t, "001_loan_portfolio.sql", pg[0].name)
	assert.Equal(t, "002_run_summaries.sql", pg[1].name)

	ch, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	for _, m := range ch {
		stmts, err := splitStatements(m.sql)
		assert.NoError(t, err, m.name)
		assert.NotEmpty(t, stmts, m.name)
	}

	lite, err := load(SqliteFS, "sqlite")
	require.NoError(t, err)
	require.NotEmpty(t, lite)
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- comment; with semicolon
CREATE TABLE a (x Int32);

CREATE TABLE b (y String) -- trailing; comment
ENGINE = MergeTree();
`
	stmts, err := splitStatements(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int32)", stmts[0])
	assert.Contains(t, stmts[1], "ENGINE = MergeTree()")
	assert.NotContains(t, stmts[1], "trailing")
}

func TestSplitStatements_StringLiterals(t *testing.T) {
	stmts, err := splitStatements(`SELECT 'a;b'; SELECT 'it''s; fine'; SELECT '--not a comment'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 'a;b'", "SELECT 'it''s; fine'", "SELECT '--not a comment'"}, stmts)

	_, err = splitStatements(`SELECT 'open`)
	assert.ErrorIs(t, err, errUnterminatedString)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:pw@localhost:9000/ifrs9")
	require.NoError(t, err)
	assert.Equal(t, "ifrs9", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
