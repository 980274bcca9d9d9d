package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned by the state machine when a trigger has no edge from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidStateValue is returned when a status value is not a known claim state
	ErrInvalidStateValue = errors.New("unknown claim state")
)

// Rejections returned to callers. None of them leaves a partial mutation behind.
var (
	ErrNotFound     = errors.New("claim not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("action not allowed in current state")
	ErrValidation   = errors.New("validation failed")
)

var (
	// ErrTransient marks storage faults; the caller may retry the whole operation
	ErrTransient = errors.New("transient storage failure")

	// ErrConcurrentUpdate is returned when another writer committed first and the
	// precondition still holds on the fresh state
	ErrConcurrentUpdate = fmt.Errorf("%w: concurrent update", ErrTransient)
)

// IsRejection reports whether err is a deterministic business rejection
// (as opposed to a storage fault)
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrValidation)
}
