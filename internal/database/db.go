package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping verifies the connection with a bounded timeout.
func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Store pairs a connection pool with the SQL dialect spoken by it.
// Repositories take the pool for queries and the dialect for the few
// statements that differ between MySQL and SQLite.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// OpenStore opens the backend named by driver ("mysql" or "sqlite").
// For sqlite only sqlitePath is used.
func OpenStore(driver, user, pass, host, port, name, sqlitePath string) (*Store, error) {
	switch driver {
	case "", "mysql":
		db, err := Open(user, pass, host, port, name)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		return &Store{DB: db, Dialect: MySQL}, nil
	case "sqlite":
		db, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Store{DB: db, Dialect: SQLite}, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.DB.Close() }
