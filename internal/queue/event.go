// Package queue defines message payloads exchanged over the message broker
// and the background jobs that consume or schedule them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// ReservationQueue is the durable queue every reservation lifecycle event
// is published to.
const ReservationQueue = "reservation.events"

// Event types carried in ReservationEvent.Type and the AMQP Type header.
const (
	EventHeld      = "reservation.held"
	EventConfirmed = "reservation.confirmed"
	EventExpired   = "reservation.expired"
	EventCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation transition commits.
// It contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.
type ReservationEvent struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	SeatID        uint64 `json:"seat_id"`
	Status        string `json:"status"`
	HoldExpiry    string `json:"hold_expiry"`
	OccurredAt    string `json:"occurred_at"`
}

// NewReservationEvent snapshots r as an event of the given type.
func NewReservationEvent(typ string, r model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		ReservationID: r.ID,
		UserID:        r.UserID,
		SeatID:        r.SeatID,
		Status:        string(r.Status),
		HoldExpiry:    r.HoldExpiry.UTC().Format(time.RFC3339Nano),
		OccurredAt:    at.UTC().Format(time.RFC3339Nano),
	}
}
