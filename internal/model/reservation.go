package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusHeld      ReservationStatus = "HELD"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusExpired   ReservationStatus = "EXPIRED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// transitions lists the allowed moves out of each state.  HELD is the only
// state with exits; the other three are terminal.
var transitions = map[ReservationStatus][]ReservationStatus{
	StatusHeld: {StatusConfirmed, StatusExpired, StatusCancelled},
}

// CanTransitionTo reports whether a reservation in s may move to next.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s ReservationStatus) Terminal() bool { return len(transitions[s]) == 0 }

// Active reports whether s occupies its seat.  A HELD row only truly
// occupies the seat until its hold expiry passes.
func (s ReservationStatus) Active() bool { return s == StatusHeld || s == StatusConfirmed }

// Valid reports whether s is one of the four known states.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusHeld, StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Reservation records one user's claim on one seat.  Rows are created
// only by a hold, mutated only by lifecycle transitions and never deleted.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – user who placed the hold.
//  SeatID     – seat being claimed.
//  Status     – HELD, CONFIRMED, EXPIRED or CANCELLED.
//  HoldExpiry – instant after which a HELD row no longer occupies the seat.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last transition timestamp.
type Reservation struct {
	ID         uint64            `json:"id"`          // reservations.id
	UserID     uint64            `json:"user_id"`     // reservations.user_id
	SeatID     uint64            `json:"seat_id"`     // reservations.seat_id
	Status     ReservationStatus `json:"status"`      // reservations.status
	HoldExpiry time.Time         `json:"hold_expiry"` // reservations.hold_expiry
	CreatedAt  time.Time         `json:"created_at"`  // reservations.created_at
	UpdatedAt  time.Time         `json:"updated_at"`  // reservations.updated_at
}

// ReservationDetail is a reservation joined with its seat and show for
// listings.
type ReservationDetail struct {
	Reservation
	ShowID    uint64 `json:"show_id"`
	SeatLabel string `json:"seat_label"`
	ShowTitle string `json:"show_title"`
}
