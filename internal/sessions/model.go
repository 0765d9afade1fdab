// Package sessions records clinic visits and completes the appointment they
// belong to.
package sessions

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("sessions: session not found")
	ErrAlreadyLogged   = errors.New("sessions: appointment already has a session")
	ErrSummaryRequired = errors.New("sessions: summary is required")
)

// Record is the clinical log of one completed visit.
type Record struct {
	ID               string     `json:"id"`
	OrgID            string     `json:"org_id"`
	AppointmentID    string     `json:"appointment_id"`
	PatientID        string     `json:"patient_id"`
	DoctorID         string     `json:"doctor_id"`
	Timestamp        time.Time  `json:"timestamp"`
	Summary          string     `json:"summary"`
	Results          string     `json:"results"`
	NextSessionDate  *time.Time `json:"next_session_date,omitempty"`
	CareInstructions string     `json:"care_instructions"`
	TreatmentType    string     `json:"treatment_type"`
}

// LogInput is what the doctor enters after a visit.
type LogInput struct {
	AppointmentID    string     `json:"appointment_id" validate:"required"`
	Summary          string     `json:"summary" validate:"required"`
	Results          string     `json:"results"`
	NextSessionDate  *time.Time `json:"next_session_date"`
	CareInstructions string     `json:"care_instructions"`
}
