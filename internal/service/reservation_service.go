package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// DefaultHoldMinutes and MaxHoldMinutes bound the hold duration a caller
// may request.
const (
	DefaultHoldMinutes = 10
	MaxHoldMinutes     = 20
)

// txAttempts bounds how often a transaction aborted by lock contention is
// run again before the failure is returned.
const txAttempts = 3

// ReservationService runs the reservation lifecycle.  Every transition is
// one transaction: confirm and release lock the reservation row first,
// and hold relies on the active-seat unique index to reject a second
// claim.  "Now" always comes from the store's clock inside the
// transaction.
type ReservationService struct {
	store        *database.Store
	users        *repository.UserRepo
	shows        *repository.ShowRepo
	seats        *repository.SeatRepo
	reservations *repository.ReservationRepo
	events       EventPublisher
	log          *slog.Logger
	maxHold      int
}

// NewReservationService wires the service.  A nil publisher discards
// events; maxHold outside 1..MaxHoldMinutes selects MaxHoldMinutes.
func NewReservationService(store *database.Store, events EventPublisher, log *slog.Logger, maxHold int) *ReservationService {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	if maxHold <= 0 || maxHold > MaxHoldMinutes {
		maxHold = MaxHoldMinutes
	}
	return &ReservationService{
		store:        store,
		users:        repository.NewUserRepo(store),
		shows:        repository.NewShowRepo(store),
		seats:        repository.NewSeatRepo(store),
		reservations: repository.NewReservationRepo(store),
		events:       events,
		log:          log,
		maxHold:      maxHold,
	}
}

// HoldRequest names the seat to hold by show and label.
type HoldRequest struct {
	UserID      uint64
	ShowID      uint64
	SeatLabel   string
	HoldMinutes int
}

// Hold places a time-limited HELD reservation on a seat.  Lapsed holds on
// the same seat are expired first so they no longer block the unique
// index.  A seat that is already held or reserved yields a conflict.
func (s *ReservationService) Hold(ctx context.Context, req HoldRequest) (model.Reservation, error) {
	if err := validateHoldMinutes(req.HoldMinutes, s.maxHold); err != nil {
		return model.Reservation{}, err
	}
	label := NormalizeLabel(req.SeatLabel)
	if label == "" {
		return model.Reservation{}, validation("seat_label is required")
	}

	var (
		res    model.Reservation
		lapsed []model.Reservation
		now    time.Time
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.users.GetByIDTx(ctx, tx, req.UserID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return notFound("user %d not found", req.UserID)
			}
			return err
		}
		if _, err := s.shows.GetByIDTx(ctx, tx, req.ShowID); err != nil {
			if errors.Is(err, repository.ErrShowNotFound) {
				return notFound("show %d not found", req.ShowID)
			}
			return err
		}
		seat, err := s.seats.GetByLabelTx(ctx, tx, req.ShowID, label)
		if err != nil {
			if errors.Is(err, repository.ErrSeatNotFound) {
				return notFound("seat %q not found in show %d", label, req.ShowID)
			}
			return err
		}

		now, err = database.Now(ctx, tx, s.store.Dialect)
		if err != nil {
			return err
		}
		lapsed, err = s.reservations.ExpireLapsedForSeatTx(ctx, tx, seat.ID, now)
		if err != nil {
			return err
		}
		res, err = s.reservations.CreateHeldTx(ctx, tx, req.UserID, seat.ID, ComputeExpiry(now, req.HoldMinutes), now)
		if errors.Is(err, repository.ErrConflict) {
			return conflict("seat already held or reserved", err)
		}
		return err
	})
	if s.store.Dialect.IsRetryable(err) {
		err = conflict("seat is contended, try again", err)
	}
	if err != nil {
		s.logFailure(ctx, "hold", err, "user_id", req.UserID, "show_id", req.ShowID, "seat", label)
		return model.Reservation{}, classify("hold seat", err)
	}

	for _, l := range lapsed {
		s.publish(ctx, queue.EventExpired, l, now)
	}
	s.publish(ctx, queue.EventHeld, res, now)
	s.log.InfoContext(ctx, "seat held",
		"reservation_id", res.ID, "user_id", res.UserID, "seat_id", res.SeatID, "hold_expiry", res.HoldExpiry)
	return res, nil
}

// Confirm turns a HELD reservation into CONFIRMED.
func (s *ReservationService) Confirm(ctx context.Context, id uint64) (model.Reservation, error) {
	return s.confirm(ctx, id, 0)
}

// ConfirmAs is Confirm restricted to reservations owned by userID; any
// other reservation is reported as not found.
func (s *ReservationService) ConfirmAs(ctx context.Context, userID, id uint64) (model.Reservation, error) {
	return s.confirm(ctx, id, userID)
}

// confirm locks the row and then:
//   - CONFIRMED: returns it unchanged.
//   - not HELD: invalid state.
//   - HELD but lapsed: writes EXPIRED, commits, and reports expiry.
//   - HELD: writes CONFIRMED.
func (s *ReservationService) confirm(ctx context.Context, id, owner uint64) (model.Reservation, error) {
	var (
		res     model.Reservation
		now     time.Time
		changed bool
		lapsed  bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		changed, lapsed = false, false
		var err error
		res, err = s.lockOwned(ctx, tx, id, owner)
		if err != nil {
			return err
		}
		if res.Status == model.StatusConfirmed {
			return nil
		}
		if !res.Status.CanTransitionTo(model.StatusConfirmed) {
			return invalidState(res.Status)
		}
		now, err = database.Now(ctx, tx, s.store.Dialect)
		if err != nil {
			return err
		}
		next := model.StatusConfirmed
		if IsExpired(res.HoldExpiry, now) {
			next, lapsed = model.StatusExpired, true
		}
		if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, res.Status, next, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("seat already reserved", err)
			}
			return err
		}
		res.Status, res.UpdatedAt, changed = next, now, true
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "confirm", err, "reservation_id", id)
		return model.Reservation{}, classify("confirm reservation", err)
	}
	if lapsed {
		s.publish(ctx, queue.EventExpired, res, now)
		s.log.InfoContext(ctx, "hold expired at confirm", "reservation_id", res.ID)
		return model.Reservation{}, expired(res.ID)
	}
	if changed {
		s.publish(ctx, queue.EventConfirmed, res, now)
		s.log.InfoContext(ctx, "reservation confirmed", "reservation_id", res.ID, "user_id", res.UserID)
	}
	return res, nil
}

// Release cancels a HELD reservation.
func (s *ReservationService) Release(ctx context.Context, id uint64) (model.Reservation, error) {
	return s.release(ctx, id, 0)
}

// ReleaseAs is Release restricted to reservations owned by userID.
func (s *ReservationService) ReleaseAs(ctx context.Context, userID, id uint64) (model.Reservation, error) {
	return s.release(ctx, id, userID)
}

// release locks the row; CANCELLED is returned unchanged, any other
// non-HELD status is an invalid state.
func (s *ReservationService) release(ctx context.Context, id, owner uint64) (model.Reservation, error) {
	var (
		res     model.Reservation
		now     time.Time
		changed bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		changed = false
		var err error
		res, err = s.lockOwned(ctx, tx, id, owner)
		if err != nil {
			return err
		}
		if res.Status == model.StatusCancelled {
			return nil
		}
		if !res.Status.CanTransitionTo(model.StatusCancelled) {
			return invalidState(res.Status)
		}
		now, err = database.Now(ctx, tx, s.store.Dialect)
		if err != nil {
			return err
		}
		if err := s.reservations.UpdateStatusTx(ctx, tx, res.ID, res.Status, model.StatusCancelled, now); err != nil {
			return internal("cancel reservation", err)
		}
		res.Status, res.UpdatedAt, changed = model.StatusCancelled, now, true
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "release", err, "reservation_id", id)
		return model.Reservation{}, classify("release reservation", err)
	}
	if changed {
		s.publish(ctx, queue.EventCancelled, res, now)
		s.log.InfoContext(ctx, "reservation released", "reservation_id", res.ID, "user_id", res.UserID)
	}
	return res, nil
}

// lockOwned reads and locks a reservation.  A non-zero owner that does not
// match the row is treated as missing so other users' ids are not leaked.
func (s *ReservationService) lockOwned(ctx context.Context, tx *sql.Tx, id, owner uint64) (model.Reservation, error) {
	res, err := s.reservations.GetByIDTx(ctx, tx, id, true)
	if errors.Is(err, repository.ErrReservationNotFound) || (err == nil && owner != 0 && res.UserID != owner) {
		return model.Reservation{}, notFound("reservation %d not found", id)
	}
	return res, err
}

// Get returns a reservation.  A non-zero owner restricts the lookup to
// that user's reservations.
func (s *ReservationService) Get(ctx context.Context, owner, id uint64) (model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrReservationNotFound) || (err == nil && owner != 0 && res.UserID != owner) {
		return model.Reservation{}, notFound("reservation %d not found", id)
	}
	if err != nil {
		return model.Reservation{}, internal("get reservation", err)
	}
	return res, nil
}

// ListByUser returns the user's reservations, newest first.
func (s *ReservationService) ListByUser(ctx context.Context, userID uint64) ([]model.ReservationDetail, error) {
	list, err := s.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, internal("list reservations", err)
	}
	return list, nil
}

// ExpireLapsed marks up to limit lapsed holds EXPIRED in one transaction
// and returns how many it changed.  It is the body of the periodic
// sweeper; confirm and hold already expire rows lazily, so the sweeper
// only keeps the table tidy.
func (s *ReservationService) ExpireLapsed(ctx context.Context, limit int) (int, error) {
	var (
		expiredRows []model.Reservation
		now         time.Time
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		now, err = database.Now(ctx, tx, s.store.Dialect)
		if err != nil {
			return err
		}
		expiredRows, err = s.reservations.ExpireLapsedTx(ctx, tx, now, limit)
		return err
	})
	if err != nil {
		s.logFailure(ctx, "expire lapsed", err)
		return 0, classify("expire lapsed holds", err)
	}
	for _, r := range expiredRows {
		s.publish(ctx, queue.EventExpired, r, now)
	}
	if len(expiredRows) > 0 {
		s.log.InfoContext(ctx, "lapsed holds expired", "count", len(expiredRows))
	}
	return len(expiredRows), nil
}

// inTx runs fn in a transaction with the dialect's locking options and
// runs it again, up to txAttempts times, when the store aborts it for
// lock contention.  fn must reset any state it captures.
func (s *ReservationService) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = database.WithTxOptions(ctx, s.store.DB, s.store.Dialect.LockingTxOptions(), fn)
		if err == nil || !s.store.Dialect.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		s.log.DebugContext(ctx, "transaction aborted by lock contention, retrying", "attempt", attempt, "err", err)
	}
	return err
}

// publish is best effort; the transition has already committed.
func (s *ReservationService) publish(ctx context.Context, typ string, r model.Reservation, at time.Time) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.Publish(pctx, queue.NewReservationEvent(typ, r, at)); err != nil {
		s.log.WarnContext(ctx, "publish reservation event failed", "type", typ, "reservation_id", r.ID, "err", err)
	}
}

func (s *ReservationService) logFailure(ctx context.Context, op string, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "err", err)
	if KindOf(err) == ErrInternal {
		s.log.ErrorContext(ctx, "reservation operation failed", attrs...)
		return
	}
	s.log.DebugContext(ctx, "reservation operation rejected", attrs...)
}
