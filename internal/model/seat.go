package model

import "time"

// Seat is a reservable position within a show.  Labels are stored
// normalized (trimmed, upper-cased) and are unique per show.  A seat has
// no status column; its availability is derived from reservations.
//
// Fields:
//  ID        – primary key identifier.
//  ShowID    – show to which this seat belongs.
//  Label     – normalized seat label such as "A1".
//  CreatedAt – creation timestamp.
type Seat struct {
	ID        uint64    `json:"id"`         // seats.id
	ShowID    uint64    `json:"show_id"`    // seats.show_id
	Label     string    `json:"label"`      // seats.label
	CreatedAt time.Time `json:"created_at"` // seats.created_at
}

// SeatStatus is the derived occupancy of a seat.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatReserved  SeatStatus = "RESERVED"
)

// SeatAvailability pairs a seat with its derived status.  HoldExpiry is
// only set while the seat is HELD.
type SeatAvailability struct {
	Seat
	Status     SeatStatus `json:"status"`
	HoldExpiry *time.Time `json:"hold_expiry,omitempty"`
}
