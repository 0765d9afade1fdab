package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/medpulse/medpulse-connect/internal/appointments"
	"github.com/medpulse/medpulse-connect/internal/compliance"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// OperatorAlerts emails clinic staff about patient activity that needs review.
type OperatorAlerts struct {
	email      EmailSender
	recipients []string
	cascade    *Cascade
	logger     *logging.Logger
}

func NewOperatorAlerts(email EmailSender, recipients []string, cascade *Cascade, logger *logging.Logger) *OperatorAlerts {
	if logger == nil {
		logger = logging.Default()
	}
	if cascade == nil {
		cascade = NewCascade(nil)
	}
	return &OperatorAlerts{email: email, recipients: recipients, cascade: cascade, logger: logger}
}

// AppointmentRequested notifies operators that a suggestion awaits verification.
func (a *OperatorAlerts) AppointmentRequested(ctx context.Context, appt appointments.Appointment, r Recipient) {
	if a == nil || a.email == nil || len(a.recipients) == 0 {
		return
	}

	when := a.cascade.FormatTime(appt.DateTime)
	subject := fmt.Sprintf("New appointment request: %s", appt.Type)
	body := fmt.Sprintf("%s suggested %s for %s.\nPhone: %s\nReview it in the appointments queue to verify or reject.",
		r.DisplayName(), appt.Type, when, valueOr(r.Phone, "not provided"))
	htmlBody := fmt.Sprintf("<p><strong>%s</strong> suggested <strong>%s</strong> for %s.</p><p>Phone: %s</p>"+
		"<p>Review it in the appointments queue to verify or reject.</p>",
		html.EscapeString(r.DisplayName()), html.EscapeString(appt.Type), html.EscapeString(when),
		html.EscapeString(valueOr(r.Phone, "not provided")))

	for _, to := range a.recipients {
		to = strings.TrimSpace(to)
		if to == "" {
			continue
		}
		err := a.email.Send(ctx, EmailMessage{
			OrgID:    appt.OrgID,
			To:       to,
			Subject:  subject,
			Body:     body,
			HTML:     htmlBody,
			Category: CategoryAppointmentRequest,
		})
		if err != nil {
			a.logger.Error("operator alert failed", "appointment_id", appt.ID, "to", compliance.MaskEmail(to), "error", err)
		}
	}
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
