package notify

import "time"

// Type classifies a patient notification.
type Type string

const (
	TypeWelcome             Type = "welcome"
	TypeReminder24h         Type = "reminder_24h"
	TypeReminder2h          Type = "reminder_2h"
	TypeVerificationRequest Type = "verification_request"
	TypeVerificationConfirm Type = "verification_confirm"
	TypeRejection           Type = "rejection"
)

// IsReminder reports whether t is a deferred reminder type.
func (t Type) IsReminder() bool {
	return t == TypeReminder24h || t == TypeReminder2h
}

// LeadTime is how long before the appointment a reminder becomes due.
func (t Type) LeadTime() time.Duration {
	switch t {
	case TypeReminder24h:
		return 24 * time.Hour
	case TypeReminder2h:
		return 2 * time.Hour
	}
	return 0
}

// Channel is the delivery medium.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// Status is the delivery state of a notification record.
type Status string

const (
	StatusSent    Status = "sent"
	StatusPending Status = "pending"
)

// TextSource records where a notification's content came from.
type TextSource string

const (
	SourceGenerated TextSource = "generated"
	SourceFallback  TextSource = "fallback"
	SourceTemplate  TextSource = "template"
)

// ScheduledMarker fills SentAt for reminders that have not been delivered.
const ScheduledMarker = "Scheduled (Auto)"

// Notification is a patient-facing message record.
type Notification struct {
	ID            string     `json:"id"`
	OrgID         string     `json:"org_id"`
	PatientID     string     `json:"patient_id"`
	AppointmentID string     `json:"appointment_id,omitempty"`
	Type          Type       `json:"type"`
	Channel       Channel    `json:"channel"`
	Content       string     `json:"content"`
	SentAt        string     `json:"sent_at"`
	Status        Status     `json:"status"`
	DueAt         *time.Time `json:"due_at,omitempty"`
	TextSource    TextSource `json:"text_source"`
	CreatedAt     time.Time  `json:"created_at"`

	// Delivery bookkeeping for pending reminders. Exhausted reminders stay
	// pending (a cancel still purges them) but are no longer listed as due.
	Attempts      int        `json:"attempts,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	Exhausted     bool       `json:"exhausted,omitempty"`
}

// readyAt is when a pending reminder may next be tried.
func (n *Notification) readyAt() time.Time {
	if n.NextAttemptAt != nil {
		return *n.NextAttemptAt
	}
	if n.DueAt != nil {
		return *n.DueAt
	}
	return time.Time{}
}

// Clone returns a deep copy.
func (n *Notification) Clone() *Notification {
	cp := *n
	if n.DueAt != nil {
		due := *n.DueAt
		cp.DueAt = &due
	}
	if n.NextAttemptAt != nil {
		next := *n.NextAttemptAt
		cp.NextAttemptAt = &next
	}
	return &cp
}

// Recipient is the contact information needed to address a patient.
type Recipient struct {
	ID            string
	OrgID         string
	Name          string
	Phone         string
	Email         string
	WhatsAppOptIn bool
}

// PreferredChannel is WhatsApp when the patient opted in, otherwise SMS.
func (r Recipient) PreferredChannel() Channel {
	if r.WhatsAppOptIn {
		return ChannelWhatsApp
	}
	return ChannelSMS
}

// DisplayName falls back to a generic salutation.
func (r Recipient) DisplayName() string {
	if r.Name == "" {
		return "Valued Patient"
	}
	return r.Name
}
