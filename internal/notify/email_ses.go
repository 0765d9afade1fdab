package notify

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/medpulse/medpulse-connect/internal/compliance"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers operator mail through SES v2.
type SESSender struct {
	client    sesAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	FromEmail string
	FromName  string
}

// NewSESSender returns nil when client is nil.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SESSender{client: client, fromEmail: cfg.FromEmail, fromName: cfg.FromName, logger: logger}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	content := func(v string) *types.Content {
		return &types.Content{Data: aws.String(v), Charset: aws.String("UTF-8")}
	}

	body := &types.Body{}
	if msg.Body != "" {
		body.Text = content(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = content(msg.HTML)
	}

	output, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: content(msg.Subject), Body: body},
		},
		EmailTags: sesTags(msg),
	})
	if err != nil {
		return fmt.Errorf("notify: SES send: %w", err)
	}

	s.logger.Info("operator email sent",
		"provider", "ses",
		"org_id", msg.OrgID,
		"category", msg.Category,
		"to", compliance.MaskEmail(msg.To),
		"message_id", aws.ToString(output.MessageId),
	)
	return nil
}

// sesTags exposes clinic and category to SES event publishing. Tag values
// only allow letters, digits, '_' and '-'.
func sesTags(msg EmailMessage) []types.MessageTag {
	var tags []types.MessageTag
	add := func(name, value string) {
		value = sesTagValue.ReplaceAllString(value, "_")
		if value == "" {
			return
		}
		tags = append(tags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}
	add("org_id", msg.OrgID)
	add("category", msg.Category)
	return tags
}

var sesTagValue = regexp.MustCompile(`[^A-Za-z0-9_-]`)

var _ EmailSender = (*SESSender)(nil)
