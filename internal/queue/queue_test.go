package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

type fakeExpirer struct {
	limit int
	n     int
	err   error
}

func (f *fakeExpirer) ExpireLapsed(_ context.Context, limit int) (int, error) {
	f.limit = limit
	return f.n, f.err
}

func TestNewReservationEvent(t *testing.T) {
	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	r := model.Reservation{ID: 9, UserID: 2, SeatID: 3, Status: model.StatusConfirmed, HoldExpiry: at.Add(10 * time.Minute)}

	ev := NewReservationEvent(EventConfirmed, r, at)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, EventConfirmed, ev.Type)
	assert.Equal(t, "CONFIRMED", ev.Status)
	assert.Equal(t, "2030-01-01T12:10:00Z", ev.HoldExpiry)
	assert.Equal(t, "2030-01-01T12:00:00Z", ev.OccurredAt)
	assert.NotEqual(t, ev.ID, NewReservationEvent(EventConfirmed, r, at).ID)
}

func TestHandleMessageAppendsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reservations.log")
	ev := NewReservationEvent(EventHeld, model.Reservation{ID: 4, UserID: 1, SeatID: 7, Status: model.StatusHeld}, time.Now())
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, handleMessage(body, path))
	require.NoError(t, handleMessage(body, path))

	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(bs), "reservation.held | reservation_id=4 | user_id=1 | seat_id=7 | status=HELD")
	assert.Equal(t, 2, countLines(bs))

	assert.Error(t, handleMessage([]byte("{"), path))
	assert.Error(t, handleMessage([]byte(`{"type":""}`), path))
}

func countLines(bs []byte) int {
	n := 0
	for _, b := range bs {
		if b == '\n' {
			n++
		}
	}
	return n
}

func TestExpireHoldsHandler(t *testing.T) {
	exp := &fakeExpirer{n: 3}
	h := NewExpireHoldsHandler(exp, nil)

	task, err := NewExpireHoldsTask(250)
	require.NoError(t, err)
	assert.Equal(t, TypeExpireHolds, task.Type())
	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, 250, exp.limit)

	exp.err = errors.New("db down")
	assert.Error(t, h.ProcessTask(context.Background(), task))

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeExpireHolds, []byte("not json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
