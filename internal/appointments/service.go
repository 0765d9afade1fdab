package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medpulse/medpulse-connect/internal/access"
	"github.com/medpulse/medpulse-connect/internal/observability/metrics"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

var tracer = otel.Tracer("medpulse.internal.appointments")

// Confirmation prompts passed to ConfirmFunc.
const (
	RejectPrompt = "Delete this pending suggestion? It will remain grayed out for records."
	CancelPrompt = "Cancel this appointment? A message will be sent to the patient and reminders will be removed."
)

// ConfirmFunc asks the operator to confirm a destructive action.
type ConfirmFunc func(prompt string) bool

// ConfirmWith answers every prompt with v, for callers that collected the
// confirmation up front (HTTP request bodies).
func ConfirmWith(v bool) ConfirmFunc {
	return func(string) bool { return v }
}

// TransitionKind names a committed lifecycle change.
type TransitionKind string

const (
	TransitionSuggested TransitionKind = "appointment.suggested"
	TransitionScheduled TransitionKind = "appointment.scheduled"
	TransitionRejected  TransitionKind = "appointment.rejected"
	TransitionCancelled TransitionKind = "appointment.cancelled"
	TransitionCompleted TransitionKind = "appointment.completed"
)

// Transition describes a committed change and is handed to downstream
// notifiers and event recorders after the appointment write succeeds.
type Transition struct {
	Kind          TransitionKind `json:"kind"`
	Appointment   Appointment    `json:"appointment"`
	From          Status         `json:"from,omitempty"`
	TimeChanged   bool           `json:"time_changed,omitempty"`
	DirectBooking bool           `json:"direct_booking,omitempty"`
	ActorRole     access.Role    `json:"actor_role"`
	ActorID       string         `json:"actor_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// Notifier reacts to committed transitions. It must not fail the transition.
type Notifier interface {
	Notify(ctx context.Context, t Transition)
}

// EventRecorder persists lifecycle events for downstream delivery.
type EventRecorder interface {
	Record(ctx context.Context, t Transition) error
}

// SuggestInput is a patient-proposed time.
type SuggestInput struct {
	PatientID string
	DateTime  time.Time
	Type      string
}

// BookInput is a direct admin booking.
type BookInput struct {
	PatientID        string
	DateTime         time.Time
	Type             string
	StaffID          string
	OverrideConflict bool
}

// VerifyInput approves a pending suggestion. A nil DateTime keeps the suggested time.
type VerifyInput struct {
	AppointmentID    string
	StaffID          string
	DateTime         *time.Time
	OverrideConflict bool
}

// SessionLookup reports whether a visit record exists for an appointment.
type SessionLookup interface {
	HasSession(ctx context.Context, appointmentID string) (bool, error)
}

// Service owns the appointment lifecycle.
type Service struct {
	repo     Repository
	gate     *access.Gate
	notifier Notifier
	events   EventRecorder
	sessions SessionLookup
	metrics  *metrics.WorkflowMetrics
	logger   *logging.Logger
	now      func() time.Time
	sync     bool

	mu       sync.Mutex
	inflight sync.WaitGroup
	lanes    notifyLanes
}

func NewService(repo Repository, gate *access.Gate, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if gate == nil {
		gate = access.NewGate()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		gate:   gate,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithEventRecorder(r EventRecorder) *Service {
	s.events = r
	return s
}

// WithSessionLookup enables Complete, which requires a logged session.
func (s *Service) WithSessionLookup(l SessionLookup) *Service {
	s.sessions = l
	return s
}

func (s *Service) WithMetrics(m *metrics.WorkflowMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithSynchronousCascade runs notifiers inline instead of in a detached
// goroutine. Detached runs for one appointment still execute in commit order.
func (s *Service) WithSynchronousCascade() *Service {
	s.sync = true
	return s
}

// Wait blocks until every detached notifier run has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Suggest records a patient's requested time as a pending appointment.
func (s *Service) Suggest(ctx context.Context, actor access.Actor, in SuggestInput) (*Appointment, error) {
	ctx, span := s.startSpan(ctx, "appointments.suggest", "")
	defer span.End()

	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" && actor.Role == access.RolePatient {
		patientID = actor.UserID
	}
	if err := s.gate.Authorize(actor, access.ActionSuggestAppointment, access.Resource{OwnerPatientID: patientID}); err != nil {
		return nil, err
	}
	if err := validateRequest(patientID, in.Type, in.DateTime); err != nil {
		return nil, err
	}

	now := s.now()
	appt := &Appointment{
		ID:        uuid.NewString(),
		OrgID:     actor.OrgID,
		PatientID: patientID,
		DateTime:  in.DateTime.UTC(),
		Type:      strings.TrimSpace(in.Type),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("appointments: suggest: %w", err)
	}
	span.SetAttributes(attribute.String("medpulse.appointment_id", appt.ID))

	s.committed(ctx, actor, Transition{Kind: TransitionSuggested, Appointment: *appt}, s.reserveLane(appt.ID))
	return appt, nil
}

// Book creates an already-verified appointment on behalf of the clinic.
func (s *Service) Book(ctx context.Context, actor access.Actor, in BookInput) (*Appointment, error) {
	ctx, span := s.startSpan(ctx, "appointments.book", "")
	defer span.End()

	staffID := strings.TrimSpace(in.StaffID)
	res := access.Resource{OwnerPatientID: in.PatientID, AssignedStaffID: staffID}
	if err := s.gate.Authorize(actor, access.ActionBookAppointment, res); err != nil {
		return nil, err
	}
	if err := validateRequest(in.PatientID, in.Type, in.DateTime); err != nil {
		return nil, err
	}
	if staffID == "" {
		return nil, invalid("staff_id", ErrStaffRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	when := in.DateTime.UTC()
	if err := s.guardConflict(ctx, actor.OrgID, staffID, when, "", in.OverrideConflict); err != nil {
		return nil, err
	}

	now := s.now()
	appt := &Appointment{
		ID:              uuid.NewString(),
		OrgID:           actor.OrgID,
		PatientID:       strings.TrimSpace(in.PatientID),
		DateTime:        when,
		Type:            strings.TrimSpace(in.Type),
		Status:          StatusScheduled,
		AssignedStaffID: staffID,
		IsVerified:      true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("appointments: book: %w", err)
	}
	span.SetAttributes(attribute.String("medpulse.appointment_id", appt.ID))

	s.committed(ctx, actor, Transition{Kind: TransitionScheduled, Appointment: *appt, DirectBooking: true}, s.reserveLane(appt.ID))
	return appt, nil
}

// Verify moves a pending suggestion to scheduled, assigning staff and
// optionally a different time.
func (s *Service) Verify(ctx context.Context, actor access.Actor, in VerifyInput) (*Appointment, error) {
	ctx, span := s.startSpan(ctx, "appointments.verify", in.AppointmentID)
	defer span.End()

	current, err := s.load(ctx, actor, in.AppointmentID, access.ActionVerifyAppointment)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, &TransitionError{ID: current.ID, From: current.Status, To: StatusScheduled}
	}
	staffID := strings.TrimSpace(in.StaffID)
	if staffID == "" {
		return nil, invalid("staff_id", ErrStaffRequired)
	}
	if in.DateTime != nil && in.DateTime.IsZero() {
		return nil, invalid("date_time", ErrInvalidTime)
	}

	var timeChanged bool
	updated, from, lane, err := s.mutate(ctx, current.ID, func(a *Appointment) error {
		if a.Status != StatusPending {
			return &TransitionError{ID: a.ID, From: a.Status, To: StatusScheduled}
		}
		final := a.DateTime
		if in.DateTime != nil && !in.DateTime.Equal(a.DateTime) {
			original := a.DateTime
			a.OriginalSuggestedTime = &original
			final = in.DateTime.UTC()
			timeChanged = true
		}
		if err := s.guardConflict(ctx, a.OrgID, staffID, final, a.ID, in.OverrideConflict); err != nil {
			return err
		}
		a.DateTime = final
		a.AssignedStaffID = staffID
		a.Status = StatusScheduled
		a.IsVerified = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, actor, Transition{Kind: TransitionScheduled, Appointment: *updated, From: from, TimeChanged: timeChanged}, lane)
	return updated, nil
}

// Reject closes a pending suggestion without deleting it.
func (s *Service) Reject(ctx context.Context, actor access.Actor, id string, confirm ConfirmFunc) (*Appointment, error) {
	ctx, span := s.startSpan(ctx, "appointments.reject", id)
	defer span.End()

	current, err := s.load(ctx, actor, id, access.ActionRejectAppointment)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, &TransitionError{ID: current.ID, From: current.Status, To: StatusRejected}
	}
	if confirm == nil || !confirm(RejectPrompt) {
		return nil, ErrNotConfirmed
	}

	updated, from, lane, err := s.mutate(ctx, id, func(a *Appointment) error {
		if a.Status != StatusPending {
			return &TransitionError{ID: a.ID, From: a.Status, To: StatusRejected}
		}
		a.Status = StatusRejected
		a.IsVerified = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, actor, Transition{Kind: TransitionRejected, Appointment: *updated, From: from}, lane)
	return updated, nil
}

// Cancel withdraws a scheduled appointment.
func (s *Service) Cancel(ctx context.Context, actor access.Actor, id string, confirm ConfirmFunc) (*Appointment, error) {
	ctx, span := s.startSpan(ctx, "appointments.cancel", id)
	defer span.End()

	current, err := s.load(ctx, actor, id, access.ActionCancelAppointment)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, &TransitionError{ID: current.ID, From: current.Status, To: StatusCancelled}
	}
	if confirm == nil || !confirm(CancelPrompt) {
		return nil, ErrNotConfirmed
	}

	updated, from, lane, err := s.mutate(ctx, id, func(a *Appointment) error {
		if a.Status != StatusScheduled {
			return &TransitionError{ID: a.ID, From: a.Status, To: StatusCancelled}
		}
		a.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, actor, Transition{Kind: TransitionCancelled, Appointment: *updated, From: from}, lane)
	return updated, nil
}

// Complete marks a scheduled appointment as done. The visit's session record
// must already exist; without a SessionLookup Complete always refuses.
func (s *Service) Complete(ctx context.Context, actor access.Actor, id string) (*Appointment, error) {
	ctx, span := s.startSpan(ctx, "appointments.complete", id)
	defer span.End()

	current, err := s.load(ctx, actor, id, access.ActionCompleteAppointment)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, &TransitionError{ID: current.ID, From: current.Status, To: StatusCompleted}
	}
	if s.sessions == nil {
		return nil, ErrSessionRequired
	}
	logged, err := s.sessions.HasSession(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("appointments: session lookup: %w", err)
	}
	if !logged {
		return nil, ErrSessionRequired
	}

	updated, from, lane, err := s.mutate(ctx, id, func(a *Appointment) error {
		if a.Status != StatusScheduled {
			return &TransitionError{ID: a.ID, From: a.Status, To: StatusCompleted}
		}
		a.Status = StatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, actor, Transition{Kind: TransitionCompleted, Appointment: *updated, From: from}, lane)
	return updated, nil
}

// Get returns an appointment the actor may see.
func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (*Appointment, error) {
	appt, err := s.load(ctx, actor, id, access.ActionViewAppointment)
	if err != nil {
		return nil, err
	}
	if !visibleTo(actor, appt) {
		return nil, ErrNotFound
	}
	return appt, nil
}

// List returns the appointments visible to the actor: admins see the clinic,
// doctors their own non-pending visits, patients their own non-rejected ones.
func (s *Service) List(ctx context.Context, actor access.Actor, filter Filter) ([]*Appointment, error) {
	if actor.UserID == "" || !actor.Role.Valid() {
		return nil, s.gate.Authorize(actor, access.ActionViewAppointment, access.Resource{})
	}
	if actor.OrgID != "" {
		filter.OrgID = actor.OrgID
	}
	switch actor.Role {
	case access.RoleDoctor:
		filter.StaffID = actor.UserID
	case access.RolePatient:
		filter.PatientID = actor.UserID
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	out := items[:0]
	for _, a := range items {
		if visibleTo(actor, a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Stats counts the clinic's appointments by status.
func (s *Service) Stats(ctx context.Context, actor access.Actor) (Stats, error) {
	if err := s.gate.Authorize(actor, access.ActionViewAppointment, access.Resource{}); err != nil {
		return Stats{}, err
	}
	items, err := s.repo.List(ctx, Filter{OrgID: actor.OrgID})
	if err != nil {
		return Stats{}, fmt.Errorf("appointments: stats: %w", err)
	}
	var stats Stats
	for _, a := range items {
		stats.add(a.Status)
	}
	return stats, nil
}

// CheckConflict reports the first staff appointment too close to candidate.
func (s *Service) CheckConflict(ctx context.Context, actor access.Actor, staffID string, candidate time.Time, excludeID string) (*ConflictWarning, error) {
	if err := s.gate.Authorize(actor, access.ActionBookAppointment, access.Resource{AssignedStaffID: staffID}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(staffID) == "" {
		return nil, invalid("staff_id", ErrStaffRequired)
	}
	if candidate.IsZero() {
		return nil, invalid("date_time", ErrInvalidTime)
	}
	return s.conflictFor(ctx, actor.OrgID, staffID, candidate, excludeID)
}

func (s *Service) conflictFor(ctx context.Context, orgID, staffID string, candidate time.Time, excludeID string) (*ConflictWarning, error) {
	existing, err := s.repo.List(ctx, Filter{
		OrgID:    orgID,
		StaffID:  staffID,
		Statuses: []Status{StatusScheduled, StatusCompleted},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: conflict lookup: %w", err)
	}
	return CheckConflict(existing, staffID, candidate, excludeID), nil
}

func (s *Service) guardConflict(ctx context.Context, orgID, staffID string, candidate time.Time, excludeID string, override bool) error {
	warning, err := s.conflictFor(ctx, orgID, staffID, candidate, excludeID)
	if err != nil {
		return err
	}
	if warning == nil {
		return nil
	}
	s.metrics.ObserveConflict(override)
	if !override {
		return &ConflictError{Warning: *warning}
	}
	s.logger.Info("staff conflict overridden",
		"staff_id", staffID,
		"conflicting_appointment_id", warning.AppointmentID,
		"delta_minutes", warning.DeltaMinutes,
	)
	return nil
}

// load fetches an appointment, hides other clinics' records, and runs the gate.
func (s *Service) load(ctx context.Context, actor access.Actor, id string, action access.Action) (*Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	appt, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	if actor.OrgID != "" && appt.OrgID != "" && appt.OrgID != actor.OrgID {
		return nil, ErrNotFound
	}
	res := access.Resource{OwnerPatientID: appt.PatientID, AssignedStaffID: appt.AssignedStaffID}
	if err := s.gate.Authorize(actor, action, res); err != nil {
		return nil, err
	}
	return appt, nil
}

// mutate re-reads the appointment under the service lock, applies fn, and
// persists the result.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Appointment) error) (*Appointment, Status, laneTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", laneTicket{}, ErrNotFound
		}
		return nil, "", laneTicket{}, fmt.Errorf("appointments: get: %w", err)
	}
	from := appt.Status
	if err := fn(appt); err != nil {
		return nil, "", laneTicket{}, err
	}
	appt.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, "", laneTicket{}, fmt.Errorf("appointments: update: %w", err)
	}
	return appt, from, s.reserveLane(appt.ID), nil
}

// committed fans a successful transition out to metrics, the event recorder,
// and the notifier. Failures there are logged and never surface to the caller.
func (s *Service) committed(ctx context.Context, actor access.Actor, t Transition, lane laneTicket) {
	t.ActorRole = actor.Role
	t.ActorID = actor.UserID
	t.OccurredAt = s.now()

	s.metrics.ObserveTransition(string(t.From), string(t.Appointment.Status))
	s.logger.Info("appointment transition",
		"appointment_id", t.Appointment.ID,
		"org_id", t.Appointment.OrgID,
		"kind", string(t.Kind),
		"from", string(t.From),
		"to", string(t.Appointment.Status),
	)

	if s.events != nil {
		if err := s.events.Record(ctx, t); err != nil {
			s.logger.Error("failed to record appointment event", "appointment_id", t.Appointment.ID, "kind", string(t.Kind), "error", err)
		}
	}

	if s.notifier == nil {
		return
	}
	if s.sync {
		s.notifier.Notify(ctx, t)
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.lanes.release(lane)
		lane.wait()
		s.notifier.Notify(context.WithoutCancel(ctx), t)
	}()
}

// reserveLane is a no-op unless notifiers run detached.
func (s *Service) reserveLane(id string) laneTicket {
	if s.notifier == nil || s.sync {
		return laneTicket{}
	}
	return s.lanes.join(id)
}

func (s *Service) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if id != "" {
		span.SetAttributes(attribute.String("medpulse.appointment_id", id))
	}
	return ctx, span
}

func validateRequest(patientID, treatment string, when time.Time) error {
	if strings.TrimSpace(patientID) == "" {
		return invalid("patient_id", ErrPatientRequired)
	}
	if !IsTreatment(treatment) {
		return invalid("type", ErrInvalidTreatment)
	}
	if when.IsZero() {
		return invalid("date_time", ErrInvalidTime)
	}
	return nil
}

func visibleTo(actor access.Actor, a *Appointment) bool {
	switch actor.Role {
	case access.RoleAdmin:
		return true
	case access.RoleDoctor:
		return a.AssignedStaffID == actor.UserID && a.Status != StatusPending
	case access.RolePatient:
		return a.PatientID == actor.UserID && a.Status != StatusRejected
	}
	return false
}
