package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/medpulse/medpulse-connect/internal/compliance"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

const defaultFromName = "MedPulse Connect"

// CategoryAppointmentRequest tags operator mail about pending suggestions.
const CategoryAppointmentRequest = "appointment-request"

// EmailSender delivers operator mail. Patients are never emailed.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type EmailMessage struct {
	OrgID    string
	To       string
	ToName   string
	Subject  string
	Body     string // plain text
	HTML     string
	Category string
}

// SendGridSender delivers operator mail through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// message builds the v3 payload. The clinic id rides along as a custom arg
// so SendGrid activity can be filtered per clinic.
func (s *SendGridSender) message(msg EmailMessage) *mail.SGMailV3 {
	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = msg.Body
	}
	m := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		htmlBody,
	)
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	if msg.OrgID != "" && len(m.Personalizations) > 0 {
		m.Personalizations[0].SetCustomArg("org_id", msg.OrgID)
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	response, err := s.client.SendWithContext(ctx, s.message(msg))
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected operator email",
			"org_id", msg.OrgID,
			"status", response.StatusCode,
			"to", compliance.MaskEmail(msg.To),
		)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("operator email sent", "provider", "sendgrid", "org_id", msg.OrgID, "category", msg.Category, "to", compliance.MaskEmail(msg.To))
	return nil
}

// StubEmailSender logs instead of sending.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send operator email",
		"org_id", msg.OrgID,
		"category", msg.Category,
		"to", compliance.MaskEmail(msg.To),
		"subject", msg.Subject,
	)
	return nil
}
