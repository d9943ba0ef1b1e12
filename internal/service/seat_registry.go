package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// SeatRegistry owns shows and their seats.
type SeatRegistry struct {
	store *database.Store
	shows *repository.ShowRepo
	seats *repository.SeatRepo
	log   *slog.Logger
}

// NewSeatRegistry wires a registry on the given store.
func NewSeatRegistry(store *database.Store, log *slog.Logger) *SeatRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &SeatRegistry{
		store: store,
		shows: repository.NewShowRepo(store),
		seats: repository.NewSeatRepo(store),
		log:   log,
	}
}

// NewShow is the input to CreateShow.
type NewShow struct {
	Title    string
	Venue    string
	StartsAt time.Time
}

// CreateShow publishes a new show.  Title and venue are required and a
// second show with the same title and start time is a conflict.
func (r *SeatRegistry) CreateShow(ctx context.Context, in NewShow) (model.Show, error) {
	s := model.Show{
		Title:    strings.TrimSpace(in.Title),
		Venue:    strings.TrimSpace(in.Venue),
		StartsAt: in.StartsAt.UTC(),
	}
	if s.Title == "" || s.Venue == "" {
		return model.Show{}, validation("title and venue are required")
	}
	if s.StartsAt.IsZero() {
		return model.Show{}, validation("starts_at is required")
	}
	if err := r.shows.Create(ctx, &s); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Show{}, conflict("a show with this title and start time already exists", err)
		}
		return model.Show{}, internal("create show", err)
	}
	r.log.InfoContext(ctx, "show created", "show_id", s.ID, "title", s.Title)
	return s, nil
}

// GetShow returns a show by id.
func (r *SeatRegistry) GetShow(ctx context.Context, id uint64) (model.Show, error) {
	s, err := r.shows.GetByID(ctx, id)
	if errors.Is(err, repository.ErrShowNotFound) {
		return model.Show{}, notFound("show %d not found", id)
	}
	if err != nil {
		return model.Show{}, internal("get show", err)
	}
	return s, nil
}

// ListShows pages through shows, optionally filtered by title.
func (r *SeatRegistry) ListShows(ctx context.Context, title string, limit, offset int) ([]model.Show, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	shows, err := r.shows.List(ctx, title, limit, offset)
	if err != nil {
		return nil, internal("list shows", err)
	}
	return shows, nil
}

// RegisterSeats normalizes the labels and creates one seat per label in a
// single transaction.  Either every seat is created or none is.
func (r *SeatRegistry) RegisterSeats(ctx context.Context, showID uint64, labels []string) ([]model.Seat, error) {
	normalized, err := NormalizeLabels(labels)
	if err != nil {
		return nil, err
	}

	var seats []model.Seat
	err = database.WithTx(ctx, r.store.DB, func(tx *sql.Tx) error {
		if _, err := r.shows.GetByIDTx(ctx, tx, showID); err != nil {
			if errors.Is(err, repository.ErrShowNotFound) {
				return notFound("show %d not found", showID)
			}
			return err
		}
		created, err := r.seats.CreateBulkTx(ctx, tx, showID, normalized)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("seat label already exists for this show", err)
			}
			return err
		}
		seats = created
		return nil
	})
	if err != nil {
		return nil, classify("register seats", err)
	}
	r.log.InfoContext(ctx, "seats registered", "show_id", showID, "count", len(seats))
	return seats, nil
}

// ListSeats returns every seat of a show.
func (r *SeatRegistry) ListSeats(ctx context.Context, showID uint64) ([]model.Seat, error) {
	if _, err := r.GetShow(ctx, showID); err != nil {
		return nil, err
	}
	seats, err := r.seats.ListByShow(ctx, showID)
	if err != nil {
		return nil, internal("list seats", err)
	}
	return seats, nil
}

// Availability derives each seat's status from the reservations table as
// of the store's clock.  It never writes; holds that have lapsed but are
// not yet marked EXPIRED are reported AVAILABLE.
func (r *SeatRegistry) Availability(ctx context.Context, showID uint64) ([]model.SeatAvailability, error) {
	if _, err := r.GetShow(ctx, showID); err != nil {
		return nil, err
	}
	now, err := database.Now(ctx, r.store.DB, r.store.Dialect)
	if err != nil {
		return nil, internal("read clock", err)
	}
	out, err := r.seats.Availability(ctx, showID, now)
	if err != nil {
		return nil, internal("seat availability", err)
	}
	return out, nil
}
