package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// ErrSeatNotFound is returned when no seat matches the lookup.
var ErrSeatNotFound = errors.New("seat not found")

// SeatRepo handles CRUD operations for seats.
type SeatRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSeatRepo creates a new SeatRepo.
func NewSeatRepo(s *database.Store) *SeatRepo {
	return &SeatRepo{db: s.DB, dialect: s.Dialect}
}

const seatCols = "id, show_id, label, created_at"

// CreateBulkTx inserts one seat per label inside tx.  Labels must already
// be normalized.  The first label that already exists for the show aborts
// the batch with an error wrapping ErrConflict; the caller rolls back.
func (r *SeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, showID uint64, labels []string) ([]model.Seat, error) {
	seats := make([]model.Seat, 0, len(labels))
	for _, label := range labels {
		res, err := tx.ExecContext(ctx, "INSERT INTO seats (show_id, label) VALUES (?, ?)", showID, label)
		if err != nil {
			if r.dialect.IsUniqueViolation(err) {
				return nil, fmt.Errorf("seat %q: %w", label, ErrConflict)
			}
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		s, err := scanSeat(tx.QueryRowContext(ctx, "SELECT "+seatCols+" FROM seats WHERE id = ?", id))
		if err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, nil
}

// ListByShow returns all seats of a show ordered by label.
func (r *SeatRepo) ListByShow(ctx context.Context, showID uint64) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+seatCols+" FROM seats WHERE show_id = ? ORDER BY label, id", showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// GetByLabelTx finds a seat by its normalized label within a show.
func (r *SeatRepo) GetByLabelTx(ctx context.Context, q database.Querier, showID uint64, label string) (model.Seat, error) {
	return scanSeat(q.QueryRowContext(ctx,
		"SELECT "+seatCols+" FROM seats WHERE show_id = ? AND label = ?", showID, label))
}

// Availability derives the status of every seat of a show.  Only HELD and
// CONFIRMED reservations are joined; at most one exists per seat.  A HELD
// row whose expiry is at or before now counts as AVAILABLE.
func (r *SeatRepo) Availability(ctx context.Context, showID uint64, now time.Time) ([]model.SeatAvailability, error) {
	const q = `SELECT s.id, s.show_id, s.label, s.created_at, r.status, r.hold_expiry
               FROM seats s
               LEFT JOIN reservations r
                 ON r.seat_id = s.id AND r.status IN ('HELD', 'CONFIRMED')
               WHERE s.show_id = ?
               ORDER BY s.label, s.id`
	rows, err := r.db.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SeatAvailability, 0)
	for rows.Next() {
		var (
			a       model.SeatAvailability
			created database.Timestamp
			status  sql.NullString
			expiry  database.Timestamp
		)
		if err := rows.Scan(&a.ID, &a.ShowID, &a.Label, &created, &status, &expiry); err != nil {
			return nil, err
		}
		a.CreatedAt = created.Time
		a.Status = model.SeatAvailable
		switch model.ReservationStatus(status.String) {
		case model.StatusConfirmed:
			a.Status = model.SeatReserved
		case model.StatusHeld:
			if expiry.Valid && expiry.Time.After(now) {
				a.Status = model.SeatHeld
				exp := expiry.Time
				a.HoldExpiry = &exp
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanSeat(row rowScanner) (model.Seat, error) {
	var (
		s       model.Seat
		created database.Timestamp
	)
	err := row.Scan(&s.ID, &s.ShowID, &s.Label, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, ErrSeatNotFound
	}
	if err != nil {
		return model.Seat{}, err
	}
	s.CreatedAt = created.Time
	return s, nil
}
