package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// ErrReservationNotFound is returned when no reservation has the given id.
var ErrReservationNotFound = errors.New("reservation not found")

// ReservationRepo persists reservations.  Every method that changes a row
// takes the caller's transaction; the caller decides when to commit.  All
// times are bound with database.FormatTime so both backends compare them
// the same way.
type ReservationRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewReservationRepo returns a new ReservationRepo bound to the given store.
func NewReservationRepo(s *database.Store) *ReservationRepo {
	return &ReservationRepo{db: s.DB, dialect: s.Dialect}
}

const reservationCols = "id, user_id, seat_id, status, hold_expiry, created_at, updated_at"

// CreateHeldTx inserts a HELD reservation.  If the seat already has an
// active reservation the unique index rejects the row and ErrConflict is
// returned.
func (r *ReservationRepo) CreateHeldTx(ctx context.Context, tx *sql.Tx, userID, seatID uint64, expiry, now time.Time) (model.Reservation, error) {
	const q = `INSERT INTO reservations (user_id, seat_id, status, hold_expiry, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	ts := database.FormatTime(now)
	res, err := tx.ExecContext(ctx, q, userID, seatID, string(model.StatusHeld), database.FormatTime(expiry), ts, ts)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return model.Reservation{}, ErrConflict
		}
		return model.Reservation{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Reservation{}, err
	}
	return r.GetByIDTx(ctx, tx, uint64(id), false)
}

// GetByID returns a reservation without locking it.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	return r.GetByIDTx(ctx, r.db, id, false)
}

// GetByIDTx reads a reservation; with lock set the row stays locked until
// the surrounding transaction ends.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, q database.Querier, id uint64, lock bool) (model.Reservation, error) {
	query := "SELECT " + reservationCols + " FROM reservations WHERE id = ?"
	if lock {
		query += r.dialect.ForUpdate()
	}
	return scanReservation(q.QueryRowContext(ctx, query, id))
}

// UpdateStatusTx moves a reservation from one status to another.  The
// WHERE clause repeats the expected current status so a stale caller
// changes nothing and gets ErrConflict.  A unique-index rejection is also
// reported as ErrConflict.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.ReservationStatus, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), database.FormatTime(now), id, string(from))
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ExpireLapsedForSeatTx flips every HELD reservation on the seat whose
// expiry is at or before now to EXPIRED and returns the affected rows in
// their new state.
func (r *ReservationRepo) ExpireLapsedForSeatTx(ctx context.Context, tx *sql.Tx, seatID uint64, now time.Time) ([]model.Reservation, error) {
	return r.expireTx(ctx, tx,
		"seat_id = ? AND status = 'HELD' AND hold_expiry <= ?",
		[]any{seatID, database.FormatTime(now)}, now, 0)
}

// ExpireLapsedTx flips up to limit lapsed HELD reservations, oldest
// expiry first, to EXPIRED.  A limit of zero or less means no limit.
func (r *ReservationRepo) ExpireLapsedTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]model.Reservation, error) {
	return r.expireTx(ctx, tx,
		"status = 'HELD' AND hold_expiry <= ?",
		[]any{database.FormatTime(now)}, now, limit)
}

func (r *ReservationRepo) expireTx(ctx context.Context, tx *sql.Tx, where string, args []any, now time.Time, limit int) ([]model.Reservation, error) {
	query := "SELECT " + reservationCols + " FROM reservations WHERE " + where + " ORDER BY hold_expiry, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	query += r.dialect.ForUpdate()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var lapsed []model.Reservation
	for rows.Next() {
		res, scanErr := scanReservation(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		lapsed = append(lapsed, res)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(lapsed) == 0 {
		return []model.Reservation{}, nil
	}

	placeholders := make([]string, len(lapsed))
	upd := []any{string(model.StatusExpired), database.FormatTime(now)}
	for i, res := range lapsed {
		placeholders[i] = "?"
		upd = append(upd, res.ID)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE reservations SET status = ?, updated_at = ? WHERE status = 'HELD' AND id IN ("+
			strings.Join(placeholders, ",")+")", upd...)
	if err != nil {
		return nil, err
	}
	for i := range lapsed {
		lapsed[i].Status = model.StatusExpired
		lapsed[i].UpdatedAt = now
	}
	return lapsed, nil
}

// ListByUser returns all reservations of a user together with the seat
// label and show, newest first.  When no reservations exist, an empty
// slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ReservationDetail, error) {
	const q = `SELECT r.id, r.user_id, r.seat_id, r.status, r.hold_expiry, r.created_at, r.updated_at,
                      s.show_id, s.label, sh.title
               FROM reservations r
               JOIN seats s ON s.id = r.seat_id
               JOIN shows sh ON sh.id = s.show_id
               WHERE r.user_id = ?
               ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]model.ReservationDetail, 0)
	for rows.Next() {
		var (
			d                        model.ReservationDetail
			status                   string
			expiry, created, updated database.Timestamp
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.SeatID, &status, &expiry, &created, &updated,
			&d.ShowID, &d.SeatLabel, &d.ShowTitle); err != nil {
			return nil, err
		}
		d.Status = model.ReservationStatus(status)
		d.HoldExpiry, d.CreatedAt, d.UpdatedAt = expiry.Time, created.Time, updated.Time
		details = append(details, d)
	}
	return details, rows.Err()
}

func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		res                      model.Reservation
		status                   string
		expiry, created, updated database.Timestamp
	)
	err := row.Scan(&res.ID, &res.UserID, &res.SeatID, &status, &expiry, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.ReservationStatus(status)
	res.HoldExpiry, res.CreatedAt, res.UpdatedAt = expiry.Time, created.Time, updated.Time
	return res, nil
}
