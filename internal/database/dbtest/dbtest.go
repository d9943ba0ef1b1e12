// Package dbtest opens throwaway stores for package tests.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/database"
)

// NewStore returns a migrated SQLite store in a temp directory that is
// closed when the test ends.
func NewStore(t testing.TB) *database.Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.Migrate(context.Background(), db, database.SQLite)
	require.NoError(t, err)
	return &database.Store{DB: db, Dialect: database.SQLite}
}

// Child tables first so TRUNCATE never trips a foreign key.
var mysqlTables = []string{"reservations", "seats", "refresh_tokens", "shows", "users"}

// NewMySQLStore connects to the MySQL server described by the DB_* env
// vars, migrates it and empties every table.  The test is skipped unless
// DB_DRIVER=mysql, so a plain `go test ./...` never needs a server.
func NewMySQLStore(t testing.TB) *database.Store {
	t.Helper()
	if os.Getenv("DB_DRIVER") != "mysql" {
		t.Skip("set DB_DRIVER=mysql and DB_USER/DB_PASS/DB_HOST/DB_PORT/DB_NAME to run against MySQL")
	}
	db, err := database.Open(os.Getenv("DB_USER"), os.Getenv("DB_PASS"),
		os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_NAME"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = database.Migrate(ctx, db, database.MySQL)
	require.NoError(t, err)

	// FOREIGN_KEY_CHECKS is per session, so pin one connection.
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0")
	require.NoError(t, err)
	for _, table := range mysqlTables {
		_, err = conn.ExecContext(ctx, "TRUNCATE TABLE "+table)
		require.NoError(t, err, table)
	}
	_, err = conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
	require.NoError(t, err)

	return &database.Store{DB: db, Dialect: database.MySQL}
}
