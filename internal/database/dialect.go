package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the handful of behaviours that differ between the
// supported backends.
type Dialect interface {
	// Name is "mysql" or "sqlite"; it also names the migrations directory.
	Name() string
	// NowQuery selects the store's current UTC time as a single column.
	NowQuery() string
	// ForUpdate is appended to a SELECT that must lock the rows it reads.
	ForUpdate() string
	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation(err error) bool
	// IsRetryable reports whether err aborted the transaction because of
	// lock contention (deadlock, lock wait timeout, busy database), so the
	// whole transaction may be run again.
	IsRetryable(err error) bool
	// LockingTxOptions are used for transactions that lock rows with
	// ForUpdate and then insert.  nil selects the driver defaults.
	LockingTxOptions() *sql.TxOptions
}

var (
	MySQL  Dialect = mysqlDialect{}
	SQLite Dialect = sqliteDialect{}
)

type mysqlDialect struct{}

func (mysqlDialect) Name() string      { return "mysql" }
func (mysqlDialect) NowQuery() string  { return "SELECT UTC_TIMESTAMP(6)" }
func (mysqlDialect) ForUpdate() string { return " FOR UPDATE" }

// MySQL server error numbers.
const (
	erDupEntry        = 1062
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
)

func (mysqlDialect) IsUniqueViolation(err error) bool {
	return mysqlErrorNumber(err) == erDupEntry
}

func (mysqlDialect) IsRetryable(err error) bool {
	switch mysqlErrorNumber(err) {
	case erLockDeadlock, erLockWaitTimeout:
		return true
	}
	return false
}

// READ COMMITTED keeps InnoDB from taking gap locks on FOR UPDATE searches
// that match nothing, so two inserts into the same empty range cannot
// deadlock each other.  The active-seat unique key still arbitrates.
func (mysqlDialect) LockingTxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

func mysqlErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string     { return "sqlite" }
func (sqliteDialect) NowQuery() string { return "SELECT strftime('%Y-%m-%d %H:%M:%f','now')" }

// SQLite has no row locks; a transaction on the single pooled connection
// already excludes every other writer.
func (sqliteDialect) ForUpdate() string { return "" }

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// Extended result codes keep the primary code in the low byte.
func (sqliteDialect) IsRetryable(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func (sqliteDialect) LockingTxOptions() *sql.TxOptions { return nil }

// Now reads the current time from the store's clock.
func Now(ctx context.Context, q Querier, d Dialect) (time.Time, error) {
	var ts Timestamp
	if err := q.QueryRowContext(ctx, d.NowQuery()).Scan(&ts); err != nil {
		return time.Time{}, err
	}
	return ts.Time, nil
}
