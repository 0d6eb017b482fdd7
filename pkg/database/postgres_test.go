package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesScriptsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	files := fstest.MapFS{
		"002_indexes.sql": {Data: []byte("CREATE INDEX IF NOT EXISTS idx_a ON a (b)")},
		"001_init.sql":    {Data: []byte("CREATE TABLE IF NOT EXISTS a (b TEXT)")},
		"README.md":       {Data: []byte("ignored")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS a (b TEXT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_a ON a (b)")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"), files))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	files := fstest.MapFS{
		"001_init.sql": {Data: []byte("CREATE TABLE broken")},
		"002_next.sql": {Data: []byte("SELECT 1")},
	}
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))

	err = Migrate(context.Background(), sqlx.NewDb(db, "sqlmock"), files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_init.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
