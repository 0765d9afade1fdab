package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/observability/metrics"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// AppointmentLookup loads the appointment a reminder belongs to.
type AppointmentLookup interface {
	Get(ctx context.Context, id string) (*appointments.Appointment, error)
}

// Dispatcher delivers pending reminders once they fall due.
type Dispatcher struct {
	store     Store
	appts     AppointmentLookup
	directory RecipientDirectory
	senders   map[Channel]Sender
	metrics   *metrics.WorkflowMetrics
	logger    *logging.Logger
	now       func() time.Time
	batchSize int
	interval  time.Duration

	maxAttempts  int
	retryBackoff time.Duration
}

// Retry defaults for reminders that fail to deliver.
const (
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = time.Minute
	maxRetryBackoff     = time.Hour
)

func NewDispatcher(store Store, appts AppointmentLookup, directory RecipientDirectory, logger *logging.Logger) *Dispatcher {
	if store == nil || appts == nil {
		panic("notify: dispatcher requires a store and appointment lookup")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		store:     store,
		appts:     appts,
		directory: directory,
		senders:   make(map[Channel]Sender),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		batchSize: 50,
		interval:  time.Minute,

		maxAttempts:  DefaultMaxAttempts,
		retryBackoff: DefaultRetryBackoff,
	}
}

// WithSender registers the sender for a channel. The SMS sender doubles as the
// fallback for every other channel.
func (d *Dispatcher) WithSender(ch Channel, s Sender) *Dispatcher {
	if s != nil {
		d.senders[ch] = s
	}
	return d
}

func (d *Dispatcher) WithBatchSize(n int) *Dispatcher {
	if n > 0 {
		d.batchSize = n
	}
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithRetry sets how many attempts a reminder gets and the first backoff,
// which doubles per attempt up to an hour.
func (d *Dispatcher) WithRetry(maxAttempts int, backoff time.Duration) *Dispatcher {
	if maxAttempts > 0 {
		d.maxAttempts = maxAttempts
	}
	if backoff > 0 {
		d.retryBackoff = backoff
	}
	return d
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	if now != nil {
		d.now = now
	}
	return d
}

func (d *Dispatcher) WithMetrics(m *metrics.WorkflowMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// Start polls until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("reminder dispatcher started", "interval", d.interval.String(), "batch_size", d.batchSize)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("reminder dispatch pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			d.logger.Info("reminder dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessDue delivers every reminder due as of now and returns how many were sent.
func (d *Dispatcher) ProcessDue(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.store.ListDue(ctx, now, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("notify: list due reminders: %w", err)
	}

	sent := 0
	for _, n := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		result, cause := d.processOne(ctx, n, now)
		if cause != nil {
			result = d.recordFailure(ctx, n, cause, now)
		}
		d.metrics.ObserveReminder(string(n.Type), result)
		if result == "sent" {
			sent++
		}
	}
	if len(due) > 0 {
		d.logger.Info("reminder dispatch pass complete", "due", len(due), "sent", sent)
	}
	return sent, nil
}

// processOne returns the pass result, or a cause when the attempt failed and
// should be retried.
func (d *Dispatcher) processOne(ctx context.Context, n *Notification, now time.Time) (string, error) {
	appt, err := d.appts.Get(ctx, n.AppointmentID)
	if errors.Is(err, appointments.ErrNotFound) {
		d.purge(ctx, n.AppointmentID, "appointment missing")
		return "skipped", nil
	}
	if err != nil {
		return "", fmt.Errorf("appointment lookup: %w", err)
	}
	if appt.Status != appointments.StatusScheduled {
		d.purge(ctx, appt.ID, "appointment "+string(appt.Status))
		return "skipped", nil
	}
	if now.After(appt.DateTime) {
		d.purge(ctx, appt.ID, "appointment already started")
		return "expired", nil
	}

	r, err := d.lookup(ctx, n.PatientID)
	if err != nil {
		return "", fmt.Errorf("recipient lookup: %w", err)
	}
	if err := d.Deliver(ctx, n, r); err != nil {
		return "", err
	}
	if err := d.store.MarkSent(ctx, n.ID, d.now()); err != nil {
		// Delivered already; a retry would send it twice.
		d.logger.Error("failed to mark reminder sent", "notification_id", n.ID, "error", err)
		return "error", nil
	}
	return "sent", nil
}

// recordFailure pushes a failed reminder back so the rest of the queue keeps
// moving, and exhausts it once it runs out of attempts.
func (d *Dispatcher) recordFailure(ctx context.Context, n *Notification, cause error, now time.Time) string {
	attempt := n.Attempts + 1
	result := "retry"
	var retryAt time.Time
	if attempt < d.maxAttempts {
		retryAt = now.Add(d.backoff(attempt))
	} else {
		result = "exhausted"
	}
	d.logger.Warn("reminder delivery failed",
		"notification_id", n.ID,
		"appointment_id", n.AppointmentID,
		"attempt", attempt,
		"result", result,
		"error", cause,
	)
	if err := d.store.MarkFailed(ctx, n.ID, cause.Error(), retryAt); err != nil {
		d.logger.Error("failed to record reminder failure", "notification_id", n.ID, "error", err)
		return "error"
	}
	return result
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	wait := d.retryBackoff
	for i := 1; i < attempt && wait < maxRetryBackoff; i++ {
		wait *= 2
	}
	if wait > maxRetryBackoff {
		wait = maxRetryBackoff
	}
	return wait
}

// Deliver sends n to r on its channel, falling back to SMS.
func (d *Dispatcher) Deliver(ctx context.Context, n *Notification, r Recipient) error {
	if r.Phone == "" {
		return errors.New("notify: recipient has no phone number")
	}
	msg := OutboundMessage{OrgID: n.OrgID, To: r.Phone, Body: n.Content, Channel: n.Channel}

	primary, ok := d.senders[n.Channel]
	if ok {
		err := primary.Send(ctx, msg)
		if err == nil || n.Channel == ChannelSMS {
			return err
		}
		d.logger.Warn("primary channel failed, falling back to sms", "notification_id", n.ID, "channel", string(n.Channel), "error", err)
	}
	fallback, ok := d.senders[ChannelSMS]
	if !ok {
		return fmt.Errorf("notify: no sender for channel %s", n.Channel)
	}
	msg.Channel = ChannelSMS
	return fallback.Send(ctx, msg)
}

func (d *Dispatcher) lookup(ctx context.Context, patientID string) (Recipient, error) {
	if d.directory == nil {
		return Recipient{}, errors.New("notify: no patient directory configured")
	}
	return d.directory.Recipient(ctx, patientID)
}

func (d *Dispatcher) purge(ctx context.Context, appointmentID, reason string) {
	removed, err := d.store.DeletePendingByAppointment(ctx, appointmentID)
	if err != nil {
		d.logger.Error("failed to purge stale reminders", "appointment_id", appointmentID, "error", err)
		return
	}
	d.logger.Info("purged stale reminders", "appointment_id", appointmentID, "reason", reason, "count", removed)
}
