package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/database/dbtest"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type env struct {
	store    *database.Store
	registry *SeatRegistry
	svc      *ReservationService
	events   *recordingPublisher
	show     model.Show
	alice    uint64
	bob      uint64
}

func newEnv(t *testing.T, labels ...string) *env {
	t.Helper()
	return newEnvOn(t, dbtest.NewStore(t), labels...)
}

// newEnvOn seeds two users and one show with the given seats into store,
// which must be empty.
func newEnvOn(t *testing.T, store *database.Store, labels ...string) *env {
	t.Helper()
	ctx := context.Background()
	events := &recordingPublisher{}
	e := &env{
		store:    store,
		registry: NewSeatRegistry(store, nil),
		svc:      NewReservationService(store, events, nil, 0),
		events:   events,
	}

	users := repository.NewUserRepo(store)
	var err error
	e.alice, err = users.Create(ctx, repository.NewUser{
		Name: "Alice", PhoneNumber: "5550001111", Email: "alice@example.com", Password: "pw", Role: model.RoleCustomer,
	}, 4)
	require.NoError(t, err)
	e.bob, err = users.Create(ctx, repository.NewUser{
		Name: "Bob", PhoneNumber: "5550002222", Email: "bob@example.com", Password: "pw", Role: model.RoleCustomer,
	}, 4)
	require.NoError(t, err)

	e.show, err = e.registry.CreateShow(ctx, NewShow{
		Title: "Tosca", Venue: "Opera House", StartsAt: time.Date(2030, 3, 1, 19, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	if len(labels) > 0 {
		_, err = e.registry.RegisterSeats(ctx, e.show.ID, labels)
		require.NoError(t, err)
	}
	return e
}

func (e *env) hold(user uint64, label string, minutes int) (model.Reservation, error) {
	return e.svc.Hold(context.Background(), HoldRequest{UserID: user, ShowID: e.show.ID, SeatLabel: label, HoldMinutes: minutes})
}

// lapse moves a reservation's hold expiry into the past.
func (e *env) lapse(t *testing.T, id uint64) {
	t.Helper()
	_, err := e.store.DB.Exec("UPDATE reservations SET hold_expiry = ? WHERE id = ?",
		database.FormatTime(time.Now().Add(-time.Minute)), id)
	require.NoError(t, err)
}

func (e *env) status(t *testing.T, id uint64) model.ReservationStatus {
	t.Helper()
	res, err := e.svc.Get(context.Background(), 0, id)
	require.NoError(t, err)
	return res.Status
}

func TestComputeExpiryAndIsExpired(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := ComputeExpiry(now, 10)
	assert.Equal(t, now.Add(10*time.Minute), exp)

	assert.False(t, IsExpired(exp, now))
	assert.True(t, IsExpired(exp, exp))
	assert.True(t, IsExpired(exp, exp.Add(time.Nanosecond)))
}

func TestNormalizeLabels(t *testing.T) {
	got, err := NormalizeLabels([]string{" a1 ", "b2", "C3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2", "C3"}, got)

	for _, in := range [][]string{nil, {"A1", " "}, {"a1", "A1 "}, {"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456"}} {
		_, err := NormalizeLabels(in)
		assert.ErrorIs(t, err, ErrValidation, "%q", in)
	}
	assert.Equal(t, "VIP-7", NormalizeLabel("  vip-7\t"))
}

func TestErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("driver")
	err := conflict("seat taken", cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrConflict, KindOf(err))
	assert.Equal(t, ErrInternal, KindOf(cause))

	var e *Error
	require.ErrorAs(t, invalidState(model.StatusExpired), &e)
	assert.Equal(t, model.StatusExpired, e.Status)
}

func TestCreateShowValidationAndConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.registry.CreateShow(ctx, NewShow{Title: " ", Venue: "X", StartsAt: time.Now()})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.registry.CreateShow(ctx, NewShow{Title: "Y", Venue: "X"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.registry.CreateShow(ctx, NewShow{Title: "Tosca", Venue: "Elsewhere", StartsAt: e.show.StartsAt})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = e.registry.GetShow(ctx, e.show.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterSeats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	seats, err := e.registry.RegisterSeats(ctx, e.show.ID, []string{" a1", "a2 "})
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "A1", seats[0].Label)
	assert.Equal(t, "A2", seats[1].Label)

	_, err = e.registry.RegisterSeats(ctx, e.show.ID, []string{"b1", "B1"})
	assert.ErrorIs(t, err, ErrValidation)

	// One existing label rejects the whole batch.
	_, err = e.registry.RegisterSeats(ctx, e.show.ID, []string{"B1", "a1"})
	assert.ErrorIs(t, err, ErrConflict)
	list, err := e.registry.ListSeats(ctx, e.show.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = e.registry.RegisterSeats(ctx, e.show.ID+99, []string{"Z1"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.registry.ListSeats(ctx, e.show.ID+99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHoldValidationAndNotFound(t *testing.T) {
	e := newEnv(t, "A1")

	for _, minutes := range []int{0, -1, MaxHoldMinutes + 1} {
		_, err := e.hold(e.alice, "A1", minutes)
		assert.ErrorIs(t, err, ErrValidation, "minutes=%d", minutes)
	}
	_, err := e.hold(e.alice, "  ", 5)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.hold(9999, "A1", 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.svc.Hold(context.Background(), HoldRequest{UserID: e.alice, ShowID: 9999, SeatLabel: "A1", HoldMinutes: 5})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.hold(e.alice, "Z9", 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHoldNormalizesLabelAndSetsExpiry(t *testing.T) {
	e := newEnv(t, "A1")
	before := time.Now().UTC()

	res, err := e.hold(e.alice, " a1 ", 10)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHeld, res.Status)
	assert.Equal(t, e.alice, res.UserID)
	assert.WithinDuration(t, before.Add(10*time.Minute), res.HoldExpiry, time.Minute)
	assert.Equal(t, []string{queue.EventHeld}, e.events.types())
}

func TestHoldConflictsWithActiveReservation(t *testing.T) {
	e := newEnv(t, "A1")

	_, err := e.hold(e.alice, "A1", 10)
	require.NoError(t, err)
	_, err = e.hold(e.bob, "A1", 10)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConcurrentHoldsExactlyOneWins(t *testing.T) {
	assertOneHoldWins(t, newEnv(t, "A1"), 20)
}

// assertOneHoldWins races n holds on seat A1 and checks that exactly one
// succeeds, the rest conflict, and one active reservation remains.
func assertOneHoldWins(t *testing.T, e *env, n int) {
	t.Helper()
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		user := e.alice
		if i%2 == 1 {
			user = e.bob
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.hold(user, "A1", 5)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)

	var active int
	require.NoError(t, e.store.DB.QueryRow(
		"SELECT COUNT(*) FROM reservations WHERE status IN ('HELD','CONFIRMED')").Scan(&active))
	assert.Equal(t, 1, active)
}

// contendedDialect fails the store clock query with an error it reports as
// retryable, so every transaction that reads the clock aborts.
type contendedDialect struct {
	database.Dialect
	clockReads atomic.Int32
}

func (d *contendedDialect) NowQuery() string {
	d.clockReads.Add(1)
	return "SELECT no_such_clock()"
}

func (d *contendedDialect) IsRetryable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no_such_clock")
}

func TestHoldRetriesLockContentionThenConflicts(t *testing.T) {
	e := newEnv(t, "A1")
	d := &contendedDialect{Dialect: e.store.Dialect}
	svc := NewReservationService(&database.Store{DB: e.store.DB, Dialect: d}, nil, nil, 0)

	_, err := svc.Hold(context.Background(), HoldRequest{UserID: e.alice, ShowID: e.show.ID, SeatLabel: "A1", HoldMinutes: 5})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotEqual(t, ErrInternal, KindOf(err))
	assert.EqualValues(t, txAttempts, d.clockReads.Load())

	var n int
	require.NoError(t, e.store.DB.QueryRow("SELECT COUNT(*) FROM reservations").Scan(&n))
	assert.Zero(t, n)
}

func TestInTxRetriesUntilSuccess(t *testing.T) {
	e := newEnv(t)
	d := &contendedDialect{Dialect: e.store.Dialect}
	svc := NewReservationService(&database.Store{DB: e.store.DB, Dialect: d}, nil, nil, 0)

	calls := 0
	err := svc.inTx(context.Background(), func(tx *sql.Tx) error {
		calls++
		if calls == 1 {
			return errors.New("no_such_clock: database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	boom := errors.New("boom")
	err = svc.inTx(context.Background(), func(tx *sql.Tx) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestMaxHoldIsCappedAtTwentyMinutes(t *testing.T) {
	e := newEnv(t, "A1", "A2")
	svc := NewReservationService(e.store, nil, nil, 60)

	_, err := svc.Hold(context.Background(), HoldRequest{UserID: e.alice, ShowID: e.show.ID, SeatLabel: "A1", HoldMinutes: 45})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Hold(context.Background(), HoldRequest{UserID: e.alice, ShowID: e.show.ID, SeatLabel: "A1", HoldMinutes: MaxHoldMinutes + 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Hold(context.Background(), HoldRequest{UserID: e.alice, ShowID: e.show.ID, SeatLabel: "A2", HoldMinutes: MaxHoldMinutes})
	assert.NoError(t, err)
}

func TestConfirmIsIdempotent(t *testing.T) {
	e := newEnv(t, "A1")
	ctx := context.Background()
	res, err := e.hold(e.alice, "A1", 10)
	require.NoError(t, err)

	first, err := e.svc.Confirm(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, first.Status)

	second, err := e.svc.Confirm(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	assert.Equal(t, []string{queue.EventHeld, queue.EventConfirmed}, e.events.types())

	_, err = e.hold(e.bob, "A1", 10)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConcurrentConfirmsBothSucceed(t *testing.T) {
	e := newEnv(t, "A1")
	res, err := e.hold(e.alice, "A1", 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Confirm(context.Background(), res.ID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, model.StatusConfirmed, e.status(t, res.ID))
}

func TestReleaseIsIdempotentAndFreesSeat(t *testing.T) {
	e := newEnv(t, "A1")
	ctx := context.Background()
	res, err := e.hold(e.alice, "A1", 10)
	require.NoError(t, err)

	got, err := e.svc.Release(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	got, err = e.svc.Release(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	_, err = e.svc.Confirm(ctx, res.ID)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, model.StatusCancelled, se.Status)

	_, err = e.hold(e.bob, "A1", 10)
	assert.NoError(t, err)
}

func TestReleaseConfirmedIsInvalidState(t *testing.T) {
	e := newEnv(t, "A1")
	ctx := context.Background()
	res, err := e.hold(e.alice, "A1", 10)
	require.NoError(t, err)
	_, err = e.svc.Confirm(ctx, res.ID)
	require.NoError(t, err)

	_, err = e.svc.Release(ctx, res.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, model.StatusConfirmed, e.status(t, res.ID))
}

func TestConfirmAfterExpiryPersistsExpired(t *testing.T) {
	e := newEnv(t, "C1", "C2")
	ctx := context.Background()

	c1, err := e.hold(e.alice, "C1", 10)
	require.NoError(t, err)
	got, err := e.svc.Confirm(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	c2, err := e.hold(e.alice, "C2", 1)
	require.NoError(t, err)
	e.lapse(t, c2.ID)

	_, err = e.svc.Confirm(ctx, c2.ID)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, model.StatusExpired, e.status(t, c2.ID))

	// EXPIRED is terminal.
	_, err = e.svc.Confirm(ctx, c2.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = e.svc.Release(ctx, c2.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.Contains(t, e.events.types(), queue.EventExpired)
}

func TestHoldReclaimsLapsedSeat(t *testing.T) {
	e := newEnv(t, "A1")
	first, err := e.hold(e.alice, "A1", 1)
	require.NoError(t, err)
	e.lapse(t, first.ID)

	second, err := e.hold(e.bob, "A1", 5)
	require.NoError(t, err)
	assert.Equal(t, e.bob, second.UserID)
	assert.Equal(t, model.StatusExpired, e.status(t, first.ID))

	_, err = e.svc.Confirm(context.Background(), first.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOwnerScopedOperations(t *testing.T) {
	e := newEnv(t, "A1")
	ctx := context.Background()
	res, err := e.hold(e.alice, "A1", 10)
	require.NoError(t, err)

	_, err = e.svc.ConfirmAs(ctx, e.bob, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.svc.ReleaseAs(ctx, e.bob, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.svc.Get(ctx, e.bob, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, model.StatusHeld, e.status(t, res.ID))

	got, err := e.svc.ConfirmAs(ctx, e.alice, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	_, err = e.svc.Confirm(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.svc.Release(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireLapsedSweep(t *testing.T) {
	e := newEnv(t, "A1", "A2", "A3")
	ctx := context.Background()

	a1, err := e.hold(e.alice, "A1", 5)
	require.NoError(t, err)
	a2, err := e.hold(e.alice, "A2", 5)
	require.NoError(t, err)
	a3, err := e.hold(e.bob, "A3", 5)
	require.NoError(t, err)
	e.lapse(t, a1.ID)
	e.lapse(t, a2.ID)

	n, err := e.svc.ExpireLapsed(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, model.StatusExpired, e.status(t, a1.ID))
	assert.Equal(t, model.StatusExpired, e.status(t, a2.ID))
	assert.Equal(t, model.StatusHeld, e.status(t, a3.ID))

	n, err = e.svc.ExpireLapsed(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAvailabilityTreatsLapsedHoldsAsAvailable(t *testing.T) {
	e := newEnv(t, "A1", "A2", "A3")
	ctx := context.Background()

	_, err := e.hold(e.alice, "A1", 5)
	require.NoError(t, err)
	a2, err := e.hold(e.alice, "A2", 5)
	require.NoError(t, err)
	_, err = e.svc.Confirm(ctx, a2.ID)
	require.NoError(t, err)
	a3, err := e.hold(e.bob, "A3", 5)
	require.NoError(t, err)
	e.lapse(t, a3.ID)

	avail, err := e.registry.Availability(ctx, e.show.ID)
	require.NoError(t, err)
	require.Len(t, avail, 3)
	assert.Equal(t, model.SeatHeld, avail[0].Status)
	assert.Equal(t, model.SeatReserved, avail[1].Status)
	assert.Equal(t, model.SeatAvailable, avail[2].Status)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	e := newEnv(t, "A1")
	e.events.err = errors.New("broker down")

	res, err := e.hold(e.alice, "A1", 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHeld, e.status(t, res.ID))
}

func TestListByUser(t *testing.T) {
	e := newEnv(t, "A1", "A2")
	_, err := e.hold(e.alice, "A1", 5)
	require.NoError(t, err)
	_, err = e.hold(e.bob, "A2", 5)
	require.NoError(t, err)

	list, err := e.svc.ListByUser(context.Background(), e.alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A1", list[0].SeatLabel)
	assert.Equal(t, e.show.ID, list[0].ShowID)
}
