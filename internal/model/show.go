package model

import "time"

// Show represents a scheduled event that seats can be reserved for.
// Shows are immutable once created and own zero or more Seats.  The
// pair (Title, StartsAt) is unique.
//
// Fields:
//  ID        – primary key identifier.
//  Title     – name of the event.
//  Venue     – where the event takes place.
//  StartsAt  – when the event begins (UTC).
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Show struct {
	ID        uint64    `json:"id"`         // shows.id
	Title     string    `json:"title"`      // shows.title
	Venue     string    `json:"venue"`      // shows.venue
	StartsAt  time.Time `json:"starts_at"`  // shows.starts_at
	CreatedAt time.Time `json:"created_at"` // shows.created_at
	UpdatedAt time.Time `json:"updated_at"` // shows.updated_at
}
