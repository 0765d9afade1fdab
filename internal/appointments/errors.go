package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no appointment has the requested id.
	ErrNotFound = errors.New("appointments: not found")
	// ErrInvalidTransition is returned when the current status does not allow the operation.
	ErrInvalidTransition = errors.New("appointments: invalid status transition")
	// ErrNotConfirmed is returned when a destructive operation was not confirmed.
	ErrNotConfirmed = errors.New("appointments: operation not confirmed")
	// ErrSessionRequired is returned when completing without a logged session.
	ErrSessionRequired = fmt.Errorf("%w: a session record is required to complete", ErrInvalidTransition)

	ErrStaffRequired    = errors.New("a doctor must be assigned")
	ErrInvalidTreatment = errors.New("treatment is not in the clinic catalog")
	ErrInvalidTime      = errors.New("appointment time is required")
	ErrPatientRequired  = errors.New("patient is required")
)

// ValidationError reports bad input on a single field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("appointments: invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransitionError carries the offending from/to pair and wraps ErrInvalidTransition.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("appointments: cannot move %s from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ConflictError blocks a scheduling write until the caller overrides the warning.
type ConflictError struct {
	Warning ConflictWarning
}

func (e *ConflictError) Error() string {
	return "appointments: " + e.Warning.Message()
}
