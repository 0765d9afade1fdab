// Package visibility holds per-clinic settings and renders session records
// for patients.
package visibility

import "time"

// Policy gates which session fields patients may read.
type Policy struct {
	Summary          bool `json:"summary"`
	Results          bool `json:"results"`
	CareInstructions bool `json:"care_instructions"`
}

// AllVisible exposes every field.
var AllVisible = Policy{Summary: true, Results: true, CareInstructions: true}

// Settings are the clinic-wide toggles.
type Settings struct {
	OrgID                 string    `json:"org_id"`
	PatientVisibility     Policy    `json:"patient_visibility"`
	RestrictStaffLogs     bool      `json:"restrict_staff_logs"`
	AIConsultationEnabled bool      `json:"ai_consultation_enabled"`
	UpdatedAt             time.Time `json:"updated_at,omitempty"`
}

// DefaultSettings returns the settings a clinic starts with.
func DefaultSettings(orgID string) *Settings {
	return &Settings{
		OrgID:                 orgID,
		PatientVisibility:     AllVisible,
		AIConsultationEnabled: true,
	}
}

// UpdateSettingsRequest is a partial update; nil fields are left alone.
type UpdateSettingsRequest struct {
	Summary               *bool `json:"summary,omitempty"`
	Results               *bool `json:"results,omitempty"`
	CareInstructions      *bool `json:"care_instructions,omitempty"`
	RestrictStaffLogs     *bool `json:"restrict_staff_logs,omitempty"`
	AIConsultationEnabled *bool `json:"ai_consultation_enabled,omitempty"`
}

func (r UpdateSettingsRequest) apply(s *Settings) {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.PatientVisibility.Summary, r.Summary)
	set(&s.PatientVisibility.Results, r.Results)
	set(&s.PatientVisibility.CareInstructions, r.CareInstructions)
	set(&s.RestrictStaffLogs, r.RestrictStaffLogs)
	set(&s.AIConsultationEnabled, r.AIConsultationEnabled)
}
