package notify

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/observability/metrics"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

var tracer = otel.Tracer("medpulse.internal.notify")

// RecipientDirectory resolves patient contact details.
type RecipientDirectory interface {
	Recipient(ctx context.Context, patientID string) (Recipient, error)
}

// ImmediateSender pushes a just-recorded notification to the patient.
type ImmediateSender interface {
	Deliver(ctx context.Context, n *Notification, r Recipient) error
}

// LifecycleNotifier turns committed appointment transitions into persisted
// notifications. It implements appointments.Notifier.
type LifecycleNotifier struct {
	cascade   *Cascade
	store     Store
	directory RecipientDirectory
	alerts    *OperatorAlerts
	sender    ImmediateSender
	metrics   *metrics.WorkflowMetrics
	logger    *logging.Logger
}

var _ appointments.Notifier = (*LifecycleNotifier)(nil)

func NewLifecycleNotifier(cascade *Cascade, store Store, directory RecipientDirectory, logger *logging.Logger) *LifecycleNotifier {
	if cascade == nil {
		panic("notify: cascade required")
	}
	if store == nil {
		panic("notify: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LifecycleNotifier{cascade: cascade, store: store, directory: directory, logger: logger}
}

// WithOperatorAlerts emails clinic staff when patients suggest a time.
func (n *LifecycleNotifier) WithOperatorAlerts(a *OperatorAlerts) *LifecycleNotifier {
	n.alerts = a
	return n
}

// WithImmediateSender delivers sent-status notices as soon as they are recorded.
func (n *LifecycleNotifier) WithImmediateSender(s ImmediateSender) *LifecycleNotifier {
	n.sender = s
	return n
}

func (n *LifecycleNotifier) WithMetrics(m *metrics.WorkflowMetrics) *LifecycleNotifier {
	n.metrics = m
	return n
}

// Notify handles one transition. Failures are logged and counted only.
func (n *LifecycleNotifier) Notify(ctx context.Context, t appointments.Transition) {
	ctx, span := tracer.Start(ctx, "notify.lifecycle")
	defer span.End()
	span.SetAttributes(
		attribute.String("medpulse.appointment_id", t.Appointment.ID),
		attribute.String("medpulse.transition", string(t.Kind)),
	)

	appt := t.Appointment
	switch t.Kind {
	case appointments.TransitionSuggested:
		if n.alerts != nil {
			n.alerts.AppointmentRequested(ctx, appt, n.recipient(ctx, appt.PatientID))
		}
	case appointments.TransitionScheduled:
		r := n.recipient(ctx, appt.PatientID)
		records := n.cascade.OnScheduled(ctx, ScheduleEvent{
			Appointment:   appt,
			Recipient:     r,
			TimeChanged:   t.TimeChanged,
			DirectBooking: t.DirectBooking,
		})
		n.persist(ctx, r, records...)
	case appointments.TransitionRejected:
		r := n.recipient(ctx, appt.PatientID)
		n.persist(ctx, r, n.cascade.OnRejected(appt, r))
	case appointments.TransitionCancelled:
		removed, err := n.store.DeletePendingByAppointment(ctx, appt.ID)
		if err != nil {
			n.metrics.ObserveCascadeFailure("purge")
			n.logger.Error("failed to purge pending reminders", "appointment_id", appt.ID, "error", err)
		} else {
			n.logger.Info("purged pending reminders", "appointment_id", appt.ID, "count", removed)
		}
		r := n.recipient(ctx, appt.PatientID)
		n.persist(ctx, r, n.cascade.OnCancelled(appt, r))
	}
}

// Welcome records (and optionally delivers) the welcome message for a new patient.
func (n *LifecycleNotifier) Welcome(ctx context.Context, r Recipient) *Notification {
	record := n.cascade.OnRegistered(ctx, r)
	n.persist(ctx, r, record)
	return record
}

func (n *LifecycleNotifier) persist(ctx context.Context, r Recipient, records ...*Notification) {
	for _, rec := range records {
		if err := n.store.Create(ctx, rec); err != nil {
			n.metrics.ObserveCascadeFailure("create")
			n.logger.Error("failed to record notification",
				"appointment_id", rec.AppointmentID,
				"patient_id", rec.PatientID,
				"type", string(rec.Type),
				"error", err,
			)
			continue
		}
		n.metrics.ObserveNotification(string(rec.Type), string(rec.Status))
		if rec.Status == StatusSent && n.sender != nil && r.Phone != "" {
			if err := n.sender.Deliver(ctx, rec, r); err != nil {
				n.logger.Warn("immediate delivery failed", "notification_id", rec.ID, "error", err)
			}
		}
	}
}

func (n *LifecycleNotifier) recipient(ctx context.Context, patientID string) Recipient {
	fallback := Recipient{ID: patientID, WhatsAppOptIn: true}
	if n.directory == nil {
		return fallback
	}
	r, err := n.directory.Recipient(ctx, patientID)
	if err != nil {
		n.logger.Warn("patient lookup failed, using defaults", "patient_id", patientID, "error", err)
		return fallback
	}
	return r
}
