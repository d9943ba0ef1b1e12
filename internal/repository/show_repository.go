// Package repository contains data access logic for shows, seats,
// reservations, users and refresh tokens.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// ErrShowNotFound indicates that a show was not located in the DB.
var ErrShowNotFound = errors.New("show not found")

// ShowRepo manages persistence for shows.
type ShowRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewShowRepo constructs a ShowRepo on the given store.
func NewShowRepo(s *database.Store) *ShowRepo {
	return &ShowRepo{db: s.DB, dialect: s.Dialect}
}

const showCols = "id, title, venue, starts_at, created_at, updated_at"

// Create inserts a new show and fills in its generated ID and timestamps.
// A show with the same title and start time yields ErrConflict.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) error {
	const q = `INSERT INTO shows (title, venue, starts_at) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.Title, s.Venue, database.FormatTime(s.StartsAt))
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	// Retrieve the auto-incremented ID assigned by the database.
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	// Query the inserted row to obtain default fields such as timestamps.
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*s = got
	return nil
}

// GetByID returns the show with the given id or ErrShowNotFound.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (model.Show, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

// GetByIDTx is GetByID on a caller-supplied transaction or pool.
func (r *ShowRepo) GetByIDTx(ctx context.Context, q database.Querier, id uint64) (model.Show, error) {
	return scanShow(q.QueryRowContext(ctx, "SELECT "+showCols+" FROM shows WHERE id = ?", id))
}

// List returns shows ordered by start time.  A non-empty title filters
// by case-insensitive substring.
func (r *ShowRepo) List(ctx context.Context, title string, limit, offset int) ([]model.Show, error) {
	q := "SELECT " + showCols + " FROM shows"
	args := []any{}
	if t := strings.TrimSpace(title); t != "" {
		q += " WHERE LOWER(title) LIKE ?"
		args = append(args, "%"+strings.ToLower(t)+"%")
	}
	q += " ORDER BY starts_at, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	shows := make([]model.Show, 0)
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, s)
	}
	return shows, rows.Err()
}

func scanShow(row rowScanner) (model.Show, error) {
	var (
		s                         model.Show
		starts, created, updated database.Timestamp
	)
	err := row.Scan(&s.ID, &s.Title, &s.Venue, &starts, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Show{}, ErrShowNotFound
	}
	if err != nil {
		return model.Show{}, err
	}
	s.StartsAt, s.CreatedAt, s.UpdatedAt = starts.Time, created.Time, updated.Time
	return s, nil
}
