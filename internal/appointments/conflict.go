package appointments

import (
	"fmt"
	"time"
)

// ConflictWindow is the minimum spacing between two appointments of one staff member.
const ConflictWindow = 60 * time.Minute

// ConflictWarning describes the first appointment that sits too close to a candidate time.
type ConflictWarning struct {
	AppointmentID   string    `json:"appointment_id"`
	ConflictingTime time.Time `json:"conflicting_time"`
	DeltaMinutes    int       `json:"delta_minutes"`
}

// Message is the prompt shown to the operator before overriding.
func (w ConflictWarning) Message() string {
	return fmt.Sprintf("Warning: %d minutes from another appointment with this staff. Proceed anyway?", w.DeltaMinutes)
}

// CheckConflict scans existing in order and returns the first scheduled or
// completed appointment of staffID within ConflictWindow of candidate, skipping
// excludeID. It returns nil when there is no conflict.
func CheckConflict(existing []*Appointment, staffID string, candidate time.Time, excludeID string) *ConflictWarning {
	if staffID == "" {
		return nil
	}
	for _, a := range existing {
		if a == nil || a.ID == excludeID || a.AssignedStaffID != staffID {
			continue
		}
		if a.Status != StatusScheduled && a.Status != StatusCompleted {
			continue
		}
		delta := a.DateTime.Sub(candidate)
		if delta < 0 {
			delta = -delta
		}
		if delta < ConflictWindow {
			return &ConflictWarning{
				AppointmentID:   a.ID,
				ConflictingTime: a.DateTime,
				DeltaMinutes:    int(delta / time.Minute),
			}
		}
	}
	return nil
}
