package feedback

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a panel was closed while an operation was in flight.
// The operation's result has been discarded.
var ErrClosed = errors.New("feedback: panel closed")

// ValidationError reports a precondition failure: empty text, empty selection,
// or an action on an item in the wrong state. It is never surfaced as a notice.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "feedback: " + e.Reason
}

// PersistenceError wraps a Gateway failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("feedback: %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StaleReferenceError reports an id that is no longer held locally.
type StaleReferenceError struct {
	ID ID
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("feedback: item %s no longer exists", e.ID)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPersistence reports whether err is a PersistenceError
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

// IsStaleReference reports whether err is a StaleReferenceError
func IsStaleReference(err error) bool {
	var s *StaleReferenceError
	return errors.As(err, &s)
}
