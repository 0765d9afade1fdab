package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/textgen"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

var tracer = otel.Tracer("medpulse.internal.sessions")

// Appointments is the slice of the appointment workflow sessions depend on.
type Appointments interface {
	Get(ctx context.Context, actor access.Actor, id string) (*appointments.Appointment, error)
	Complete(ctx context.Context, actor access.Actor, id string) (*appointments.Appointment, error)
}

// Service logs visits. Logging a session is the only path that completes an
// appointment.
type Service struct {
	repo     Repository
	appts    Appointments
	gate     *access.Gate
	messages *textgen.Messages
	logger   *logging.Logger
	now      func() time.Time
}

func NewService(repo Repository, appts Appointments, gate *access.Gate, logger *logging.Logger) *Service {
	if repo == nil || appts == nil {
		panic("sessions: repository and appointments required")
	}
	if gate == nil {
		gate = access.NewGate()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		appts:  appts,
		gate:   gate,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithMessages enables care-instruction drafting.
func (s *Service) WithMessages(m *textgen.Messages) *Service {
	s.messages = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Log records the session for a scheduled appointment and completes it. If
// completion fails the record is removed again.
func (s *Service) Log(ctx context.Context, actor access.Actor, in LogInput) (*Record, error) {
	ctx, span := tracer.Start(ctx, "sessions.log")
	defer span.End()
	span.SetAttributes(attribute.String("medpulse.appointment_id", in.AppointmentID))

	appt, err := s.appts.Get(ctx, actor, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	res := access.Resource{OwnerPatientID: appt.PatientID, AssignedStaffID: appt.AssignedStaffID}
	if err := s.gate.Authorize(actor, access.ActionCreateSession, res); err != nil {
		return nil, err
	}
	if appt.Status != appointments.StatusScheduled {
		return nil, &appointments.TransitionError{ID: appt.ID, From: appt.Status, To: appointments.StatusCompleted}
	}
	if strings.TrimSpace(in.Summary) == "" {
		return nil, ErrSummaryRequired
	}

	_, err = s.repo.GetByAppointment(ctx, appt.ID)
	switch {
	case err == nil:
		return nil, ErrAlreadyLogged
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("sessions: lookup: %w", err)
	}

	rec := &Record{
		ID:               uuid.NewString(),
		OrgID:            appt.OrgID,
		AppointmentID:    appt.ID,
		PatientID:        appt.PatientID,
		DoctorID:         appt.AssignedStaffID,
		Timestamp:        s.now(),
		Summary:          strings.TrimSpace(in.Summary),
		Results:          strings.TrimSpace(in.Results),
		NextSessionDate:  in.NextSessionDate,
		CareInstructions: strings.TrimSpace(in.CareInstructions),
		TreatmentType:    appt.Type,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyLogged) {
			return nil, err
		}
		return nil, fmt.Errorf("sessions: create: %w", err)
	}

	if _, err := s.appts.Complete(ctx, actor, appt.ID); err != nil {
		if delErr := s.repo.Delete(ctx, rec.ID); delErr != nil {
			s.logger.Error("failed to remove orphaned session", "session_id", rec.ID, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("session logged", "session_id", rec.ID, "appointment_id", appt.ID, "doctor_id", rec.DoctorID)
	return rec, nil
}

// SuggestCareInstructions drafts home-care advice from the session notes.
// The outcome carries fallback text when generation is unavailable.
func (s *Service) SuggestCareInstructions(ctx context.Context, actor access.Actor, summary, results string) (textgen.Outcome, error) {
	if err := s.gate.Authorize(actor, access.ActionCreateSession, access.Resource{AssignedStaffID: actor.UserID}); err != nil {
		return textgen.Outcome{}, err
	}
	if strings.TrimSpace(summary) == "" {
		return textgen.Outcome{}, ErrSummaryRequired
	}
	if s.messages == nil {
		return textgen.Outcome{Text: textgen.CareInstructionsFallback, Fallback: true, Err: textgen.ErrNoProvider}, nil
	}
	return s.messages.CareInstructions(ctx, summary, results), nil
}

// ListByPatient returns the raw records; patient-facing reads go through the
// visibility package.
func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]*Record, error) {
	return s.repo.ListByPatient(ctx, patientID)
}
