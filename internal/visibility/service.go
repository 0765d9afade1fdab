package visibility

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/compliance"
	"github.com/medpulse/medpulse-connect/internal/sessions"
	"github.com/medpulse/medpulse-connect/internal/textgen"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

var (
	ErrConsultationDisabled = errors.New("visibility: ai consultation is disabled for this clinic")
	ErrConcernRequired      = errors.New("visibility: concern is required")
)

var timeNow = func() time.Time { return time.Now().UTC() }

// SessionLister reads a patient's session records.
type SessionLister interface {
	ListByPatient(ctx context.Context, patientID string) ([]*sessions.Record, error)
}

// Service applies clinic settings to read paths.
type Service struct {
	store      Store
	sessions   SessionLister
	gate       *access.Gate
	messages   *textgen.Messages
	disclaimer *compliance.Disclaimer
	logger     *logging.Logger
}

func NewService(store Store, lister SessionLister, gate *access.Gate, logger *logging.Logger) *Service {
	if store == nil || lister == nil {
		panic("visibility: store and session lister required")
	}
	if gate == nil {
		gate = access.NewGate()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, sessions: lister, gate: gate, logger: logger}
}

// WithMessages enables the patient consultation assistant.
func (s *Service) WithMessages(m *textgen.Messages) *Service {
	s.messages = m
	return s
}

// WithDisclaimer appends a notice to generated recommendations.
func (s *Service) WithDisclaimer(d *compliance.Disclaimer) *Service {
	s.disclaimer = d
	return s
}

// Settings returns the actor's clinic settings. Admin only.
func (s *Service) Settings(ctx context.Context, actor access.Actor) (*Settings, error) {
	if err := s.gate.Authorize(actor, access.ActionUpdateSettings, access.Resource{}); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, actor.OrgID)
}

// UpdateSettings applies a partial update. Admin only.
func (s *Service) UpdateSettings(ctx context.Context, actor access.Actor, req UpdateSettingsRequest) (*Settings, error) {
	if err := s.gate.Authorize(actor, access.ActionUpdateSettings, access.Resource{}); err != nil {
		return nil, err
	}
	current, err := s.store.Get(ctx, actor.OrgID)
	if err != nil {
		return nil, err
	}
	req.apply(current)
	current.OrgID = actor.OrgID
	current.UpdatedAt = timeNow()
	if err := s.store.Set(ctx, current); err != nil {
		return nil, err
	}
	s.logger.Info("clinic settings updated", "org_id", actor.OrgID, "user_id", actor.UserID)
	return current, nil
}

// PatientSessions returns a patient's sessions as the actor may see them.
// Patients get the clinic's visibility policy applied; staff reads are not
// gated, except that RestrictStaffLogs limits doctors to their own visits.
func (s *Service) PatientSessions(ctx context.Context, actor access.Actor, patientID string) ([]SessionView, error) {
	if actor.Role == access.RolePatient && patientID == "" {
		patientID = actor.UserID
	}
	if err := s.gate.Authorize(actor, access.ActionViewSession, access.Resource{OwnerPatientID: patientID}); err != nil {
		return nil, err
	}
	settings, err := s.store.Get(ctx, actor.OrgID)
	if err != nil {
		return nil, err
	}
	records, err := s.sessions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("visibility: list sessions: %w", err)
	}

	policy := AllVisible
	if actor.Role == access.RolePatient {
		policy = settings.PatientVisibility
	}
	out := make([]SessionView, 0, len(records))
	for _, rec := range records {
		if rec.OrgID != "" && actor.OrgID != "" && rec.OrgID != actor.OrgID {
			continue
		}
		if actor.Role == access.RoleDoctor && settings.RestrictStaffLogs && rec.DoctorID != actor.UserID {
			continue
		}
		out = append(out, Render(policy, rec))
	}
	return out, nil
}

// Consult drafts a treatment recommendation from the clinic catalog when the
// clinic has the assistant enabled.
func (s *Service) Consult(ctx context.Context, actor access.Actor, concern string) (textgen.Outcome, error) {
	if actor.UserID == "" || !actor.Role.Valid() {
		return textgen.Outcome{}, &access.DeniedError{Role: actor.Role, Action: access.ActionViewSession, Reason: "unknown actor"}
	}
	if strings.TrimSpace(concern) == "" {
		return textgen.Outcome{}, ErrConcernRequired
	}
	settings, err := s.store.Get(ctx, actor.OrgID)
	if err != nil {
		return textgen.Outcome{}, err
	}
	if !settings.AIConsultationEnabled {
		return textgen.Outcome{}, ErrConsultationDisabled
	}
	if s.messages == nil {
		return textgen.Outcome{Text: textgen.ConsultationFallback, Fallback: true, Err: textgen.ErrNoProvider}, nil
	}
	outcome := s.messages.Consultation(ctx, concern, appointments.Treatments)
	if !outcome.Fallback {
		outcome.Text = s.disclaimer.Apply(outcome.Text)
	}
	return outcome, nil
}
