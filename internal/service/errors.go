package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Error kinds.  Every error returned by this package matches exactly one
// of them under errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("hold expired")
	ErrInternal     = errors.New("internal error")
)

// Error is a classified failure.  Status is set for invalid-state errors
// and names the reservation's current status.
type Error struct {
	Kind    error
	Message string
	Status  model.ReservationStatus
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func notFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func conflict(msg string, cause error) error {
	return &Error{Kind: ErrConflict, Message: msg, Err: cause}
}

func invalidState(status model.ReservationStatus) error {
	return &Error{Kind: ErrInvalidState, Message: fmt.Sprintf("reservation is %s", status), Status: status}
}

func expired(id uint64) error {
	return &Error{Kind: ErrExpired, Message: fmt.Sprintf("hold on reservation %d has expired", id)}
}

func internal(msg string, cause error) error {
	return &Error{Kind: ErrInternal, Message: msg, Err: cause}
}

// classify passes through errors that already carry a kind and wraps
// anything else as internal.
func classify(msg string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return internal(msg, err)
}

// KindOf returns the kind sentinel of err, or ErrInternal when err was not
// produced by this package.
func KindOf(err error) error {
	for _, k := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrInvalidState, ErrExpired} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}
