package patients

import "errors"

var (
	// ErrInvalidName is returned when the name is missing
	ErrInvalidName = errors.New("patients: name is required")

	// ErrMissingContact is returned when both email and phone are missing
	ErrMissingContact = errors.New("patients: either email or phone is required")

	// ErrMissingOrgID is returned when no clinic is attached to the request
	ErrMissingOrgID = errors.New("patients: org id is required")

	// ErrNotFound is returned when a patient is not found
	ErrNotFound = errors.New("patients: patient not found")
)
