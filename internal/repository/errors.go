// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between different failure scenarios without inspecting
// driver errors itself.
package repository

import "errors"

// ErrConflict is returned when an insert or update would violate a
// unique constraint, such as a duplicate seat label within a show or a
// second active reservation on the same seat.  Callers translate it
// into a domain conflict.
var ErrConflict = errors.New("conflict")

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
