package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservationTransitions(t *testing.T) {
	all := []ReservationStatus{StatusHeld, StatusConfirmed, StatusExpired, StatusCancelled}

	for _, next := range []ReservationStatus{StatusConfirmed, StatusExpired, StatusCancelled} {
		assert.True(t, StatusHeld.CanTransitionTo(next), "HELD -> %s", next)
	}
	assert.False(t, StatusHeld.CanTransitionTo(StatusHeld))

	for _, from := range all[1:] {
		assert.True(t, from.Terminal(), from)
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, StatusHeld.Terminal())
}

func TestReservationStatusPredicates(t *testing.T) {
	assert.True(t, StatusHeld.Active())
	assert.True(t, StatusConfirmed.Active())
	assert.False(t, StatusExpired.Active())
	assert.False(t, StatusCancelled.Active())

	assert.True(t, StatusCancelled.Valid())
	assert.False(t, ReservationStatus("PENDING").Valid())
}
