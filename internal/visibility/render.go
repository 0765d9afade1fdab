package visibility

import (
	"encoding/json"
	"time"

	"github.com/medpulse/medpulse-connect/internal/sessions"
)

// RestrictedMarker replaces a gated field so an empty value and a hidden one
// stay distinguishable.
const RestrictedMarker = "[restricted]"

// Field is a session field as seen by a reader.
type Field struct {
	Value      string
	Restricted bool
}

func (f Field) MarshalJSON() ([]byte, error) {
	if f.Restricted {
		return json.Marshal(RestrictedMarker)
	}
	return json.Marshal(f.Value)
}

// String renders the field for display.
func (f Field) String() string {
	if f.Restricted {
		return RestrictedMarker
	}
	return f.Value
}

// SessionView is a session record after the visibility policy is applied.
type SessionView struct {
	ID               string     `json:"id"`
	AppointmentID    string     `json:"appointment_id"`
	PatientID        string     `json:"patient_id"`
	DoctorID         string     `json:"doctor_id"`
	TreatmentType    string     `json:"treatment_type"`
	Timestamp        time.Time  `json:"timestamp"`
	NextSessionDate  *time.Time `json:"next_session_date,omitempty"`
	Summary          Field      `json:"summary"`
	Results          Field      `json:"results"`
	CareInstructions Field      `json:"care_instructions"`
}

// Render applies p to rec. Gated fields never carry the underlying value.
func Render(p Policy, rec *sessions.Record) SessionView {
	gate := func(allowed bool, v string) Field {
		if !allowed {
			return Field{Restricted: true}
		}
		return Field{Value: v}
	}
	return SessionView{
		ID:               rec.ID,
		AppointmentID:    rec.AppointmentID,
		PatientID:        rec.PatientID,
		DoctorID:         rec.DoctorID,
		TreatmentType:    rec.TreatmentType,
		Timestamp:        rec.Timestamp,
		NextSessionDate:  rec.NextSessionDate,
		Summary:          gate(p.Summary, rec.Summary),
		Results:          gate(p.Results, rec.Results),
		CareInstructions: gate(p.CareInstructions, rec.CareInstructions),
	}
}
