package appointments

import (
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Treatments is the clinic's fixed treatment catalog.
var Treatments = []string{
	"Facial",
	"CO2 Laser",
	"Candela Laser",
	"Diag Laser",
	"Lose Weight Machine",
	"Hair Implementation",
	"Botox Injection",
	"Mezo Gel Injection",
	"Skin Tightening",
	"Chemical Peel",
}

// IsTreatment reports whether name is in the catalog.
func IsTreatment(name string) bool {
	return slices.Contains(Treatments, strings.TrimSpace(name))
}

// Appointment is a scheduled (or requested) clinic visit.
type Appointment struct {
	ID                    string     `json:"id"`
	OrgID                 string     `json:"org_id"`
	PatientID             string     `json:"patient_id"`
	DateTime              time.Time  `json:"date_time"`
	Type                  string     `json:"type"`
	Status                Status     `json:"status"`
	AssignedStaffID       string     `json:"assigned_staff_id,omitempty"`
	IsVerified            bool       `json:"is_verified"`
	OriginalSuggestedTime *time.Time `json:"original_suggested_time,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Clone returns a deep copy.
func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	cp := *a
	if a.OriginalSuggestedTime != nil {
		t := *a.OriginalSuggestedTime
		cp.OriginalSuggestedTime = &t
	}
	return &cp
}

// Filter selects appointments. Empty fields match everything.
type Filter struct {
	OrgID     string
	StaffID   string
	PatientID string
	Statuses  []Status
}

// Matches reports whether a satisfies the filter.
func (f Filter) Matches(a *Appointment) bool {
	if f.OrgID != "" && a.OrgID != f.OrgID {
		return false
	}
	if f.StaffID != "" && a.AssignedStaffID != f.StaffID {
		return false
	}
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
		return false
	}
	return true
}

// Stats is a per-status count for a clinic dashboard.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Rejected  int `json:"rejected"`
}

func (s *Stats) add(status Status) {
	s.Total++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusScheduled:
		s.Scheduled++
	case StatusCompleted:
		s.Completed++
	case StatusCancelled:
		s.Cancelled++
	case StatusRejected:
		s.Rejected++
	}
}
