package events

import (
	"time"

	"github.com/medpulse/medpulse-connect/internal/appointments"
)

// AppointmentLifecycleV1 is published for every committed appointment
// transition. The event type is the transition kind with a version suffix,
// e.g. appointment.scheduled.v1.
type AppointmentLifecycleV1 struct {
	Kind                  appointments.TransitionKind `json:"-"`
	AppointmentID         string                      `json:"appointment_id"`
	OrgID                 string                      `json:"org_id"`
	PatientID             string                      `json:"patient_id"`
	StaffID               string                      `json:"staff_id,omitempty"`
	Treatment             string                      `json:"treatment"`
	Status                appointments.Status         `json:"status"`
	PreviousStatus        appointments.Status         `json:"previous_status,omitempty"`
	DateTime              time.Time                   `json:"date_time"`
	OriginalSuggestedTime *time.Time                  `json:"original_suggested_time,omitempty"`
	TimeChanged           bool                        `json:"time_changed,omitempty"`
	DirectBooking         bool                        `json:"direct_booking,omitempty"`
	ActorRole             string                      `json:"actor_role"`
	ActorID               string                      `json:"actor_id"`
	OccurredAt            time.Time                   `json:"occurred_at"`
}

func (e AppointmentLifecycleV1) EventType() string {
	if e.Kind == "" {
		return ""
	}
	return string(e.Kind) + ".v1"
}

func (e AppointmentLifecycleV1) Routing() (string, string) {
	if e.AppointmentID == "" {
		return e.OrgID, ""
	}
	return e.OrgID, "appointment:" + e.AppointmentID
}

// LifecycleFromTransition maps a committed transition onto its event.
func LifecycleFromTransition(t appointments.Transition) AppointmentLifecycleV1 {
	a := t.Appointment
	return AppointmentLifecycleV1{
		Kind:                  t.Kind,
		AppointmentID:         a.ID,
		OrgID:                 a.OrgID,
		PatientID:             a.PatientID,
		StaffID:               a.AssignedStaffID,
		Treatment:             a.Type,
		Status:                a.Status,
		PreviousStatus:        t.From,
		DateTime:              a.DateTime,
		OriginalSuggestedTime: a.OriginalSuggestedTime,
		TimeChanged:           t.TimeChanged,
		DirectBooking:         t.DirectBooking,
		ActorRole:             string(t.ActorRole),
		ActorID:               t.ActorID,
		OccurredAt:            t.OccurredAt,
	}
}
