package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	ErrCardNotFound  = errors.New("card not found")
	ErrDiaryNotFound = errors.New("diary not found")

	// ErrCardLocked is returned when a card of a finalized diary is deleted.
	ErrCardLocked = errors.New("card belongs to a finalized diary")

	// ErrStaleSuggestion marks a suggestion response that arrived after the
	// session moved on (newer request or changed card set).
	ErrStaleSuggestion = errors.New("stale layout suggestion")

	// ErrCollaboratorUnavailable is matched by every *CollaboratorError.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// ValidationError reports caller input the engine refuses. No state is
// mutated when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// CollaboratorError wraps a failed call to an external collaborator
// (persistence, suggestion, sentiment, feedback).
type CollaboratorError struct {
	Collaborator string
	Op           string
	StatusCode   int // 0 when the call never got an HTTP response
	Err          error
}

func (e *CollaboratorError) Error() string {
	msg := fmt.Sprintf("%s %s unavailable", e.Collaborator, e.Op)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaboratorUnavailable }

// Unavailable builds a *CollaboratorError without an HTTP status.
func Unavailable(collaborator, op string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}
