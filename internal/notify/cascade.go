package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/textgen"
)

// DisplayTimeLayout formats appointment times in patient messages.
const DisplayTimeLayout = "Jan 2, 2006 3:04 PM"

// ScheduleEvent carries what the cascade needs about a newly scheduled appointment.
type ScheduleEvent struct {
	Appointment   appointments.Appointment
	Recipient     Recipient
	TimeChanged   bool
	DirectBooking bool
}

// Cascade builds the notification records that follow lifecycle transitions.
// It never fails: generation errors degrade to fixed template text.
type Cascade struct {
	messages *textgen.Messages
	location *time.Location
	now      func() time.Time
}

func NewCascade(messages *textgen.Messages) *Cascade {
	if messages == nil {
		messages = textgen.NewMessages(nil, "MedPulse Connect")
	}
	return &Cascade{
		messages: messages,
		location: time.UTC,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithLocation renders appointment times in the clinic's timezone.
func (c *Cascade) WithLocation(loc *time.Location) *Cascade {
	if loc != nil {
		c.location = loc
	}
	return c
}

func (c *Cascade) WithClock(now func() time.Time) *Cascade {
	if now != nil {
		c.now = now
	}
	return c
}

// FormatTime renders t the way patients see it.
func (c *Cascade) FormatTime(t time.Time) string {
	return t.In(c.location).Format(DisplayTimeLayout)
}

// OnScheduled returns exactly three records: the immediate confirmation (or
// time-change request) and the 24h and 2h reminders.
func (c *Cascade) OnScheduled(ctx context.Context, evt ScheduleEvent) []*Notification {
	appt := evt.Appointment
	name := evt.Recipient.DisplayName()
	when := c.FormatTime(appt.DateTime)

	var (
		immediate textgen.Outcome
		typ       = TypeVerificationConfirm
	)
	switch {
	case evt.TimeChanged:
		typ = TypeVerificationRequest
		immediate = c.messages.TimeChange(ctx, name, appt.Type, when)
	case evt.DirectBooking:
		immediate = c.messages.Booking(ctx, name, appt.Type, when)
	default:
		immediate = c.messages.Confirmation(ctx, name, appt.Type, when)
	}

	out := []*Notification{c.sent(appt.OrgID, appt.PatientID, appt.ID, typ, evt.Recipient.PreferredChannel(), immediate)}
	for _, reminder := range []struct {
		typ  Type
		lead string
	}{
		{TypeReminder24h, "24 hours"},
		{TypeReminder2h, "2 hours"},
	} {
		outcome := c.messages.Reminder(ctx, name, appt.Type, when, reminder.lead)
		due := appt.DateTime.Add(-reminder.typ.LeadTime()).UTC()
		out = append(out, &Notification{
			ID:            uuid.NewString(),
			OrgID:         appt.OrgID,
			PatientID:     appt.PatientID,
			AppointmentID: appt.ID,
			Type:          reminder.typ,
			Channel:       evt.Recipient.PreferredChannel(),
			Content:       outcome.Text,
			SentAt:        ScheduledMarker,
			Status:        StatusPending,
			DueAt:         &due,
			TextSource:    sourceOf(outcome),
			CreatedAt:     c.now(),
		})
	}
	return out
}

// OnRejected returns the single notice for a declined suggestion.
func (c *Cascade) OnRejected(appt appointments.Appointment, r Recipient) *Notification {
	content := fmt.Sprintf("Unfortunately, your suggested appointment time for %s could not be accommodated. "+
		"Please suggest another time through the portal.", appt.Type)
	return c.template(appt, r, content)
}

// OnCancelled returns the single notice for a cancelled appointment.
func (c *Cascade) OnCancelled(appt appointments.Appointment, r Recipient) *Notification {
	content := fmt.Sprintf("Your scheduled appointment for %s on %s has been cancelled by the clinic. "+
		"We apologize for the inconvenience.", appt.Type, c.FormatTime(appt.DateTime))
	return c.template(appt, r, content)
}

// OnRegistered returns the welcome message for a newly registered patient.
func (c *Cascade) OnRegistered(ctx context.Context, r Recipient) *Notification {
	outcome := c.messages.Welcome(ctx, r.DisplayName())
	return c.sent(r.OrgID, r.ID, "", TypeWelcome, r.PreferredChannel(), outcome)
}

func (c *Cascade) template(appt appointments.Appointment, r Recipient, content string) *Notification {
	now := c.now()
	return &Notification{
		ID:            uuid.NewString(),
		OrgID:         appt.OrgID,
		PatientID:     appt.PatientID,
		AppointmentID: appt.ID,
		Type:          TypeRejection,
		Channel:       r.PreferredChannel(),
		Content:       content,
		SentAt:        now.Format(time.RFC3339),
		Status:        StatusSent,
		TextSource:    SourceTemplate,
		CreatedAt:     now,
	}
}

func (c *Cascade) sent(orgID, patientID, appointmentID string, typ Type, channel Channel, outcome textgen.Outcome) *Notification {
	now := c.now()
	return &Notification{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		PatientID:     patientID,
		AppointmentID: appointmentID,
		Type:          typ,
		Channel:       channel,
		Content:       outcome.Text,
		SentAt:        now.Format(time.RFC3339),
		Status:        StatusSent,
		TextSource:    sourceOf(outcome),
		CreatedAt:     now,
	}
}

func sourceOf(o textgen.Outcome) TextSource {
	if o.Fallback {
		return SourceFallback
	}
	return SourceGenerated
}
