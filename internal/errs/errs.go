// Package errs defines the error kinds shared by the domain rules, the store
// and the HTTP layer. Callers wrap a kind with context using E or fmt.Errorf
// and test for it with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrInvalidScheduleState = errors.New("invalid schedule state")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrDuplicate            = fmt.Errorf("%w: duplicate value", ErrValidation)
)

// Error attaches a human readable message to one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

// E builds an *Error of the given kind with a formatted message.
func E(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validation is shorthand for E(ErrValidation, ...).
func Validation(format string, args ...any) error {
	return E(ErrValidation, format, args...)
}

// NotFound reports a missing entity by name and id.
func NotFound(entity string, id any) error {
	return E(ErrNotFound, "%s %v", entity, id)
}

// Message returns the message part of err without the kind prefix, falling
// back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
