package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/medpulse/medpulse-connect/internal/config"
	"github.com/medpulse/medpulse-connect/internal/events"
	"github.com/medpulse/medpulse-connect/internal/notify"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// BuildEmailSender returns the operator alert transport. Anything
// misconfigured degrades to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; operator alerts are logged only")
	case "ses":
		if awsCfg != nil && cfg.SESFromEmail != "" {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.ClinicName,
			}, logger)
		}
		logger.Warn("ses selected but SES_FROM_EMAIL or AWS config missing; operator alerts are logged only")
	}
	return notify.NewStubEmailSender(logger)
}

// ChannelSenders returns the WhatsApp and SMS transports. Without a Telnyx
// key both only log.
func ChannelSenders(cfg *appconfig.Config, logger *logging.Logger) (whatsapp, sms notify.Sender) {
	if cfg.TelnyxAPIKey == "" {
		log := notify.NewLogSender(logger)
		return log, log
	}
	sms = notify.NewTelnyxSender(notify.TelnyxConfig{
		APIKey:             cfg.TelnyxAPIKey,
		MessagingProfileID: cfg.TelnyxMessagingProfileID,
		From:               cfg.TelnyxFromNumber,
	}, logger)
	whatsapp = sms
	if cfg.TelnyxWhatsAppFrom != "" {
		whatsapp = notify.NewTelnyxSender(notify.TelnyxConfig{
			APIKey:             cfg.TelnyxAPIKey,
			MessagingProfileID: cfg.TelnyxMessagingProfileID,
			From:               cfg.TelnyxWhatsAppFrom,
		}, logger)
	}
	return whatsapp, sms
}

// BuildEventPublisher returns the outbox delivery handler, or nil when no
// queue is configured.
func BuildEventPublisher(cfg *appconfig.Config, awsCfg *aws.Config) events.DeliveryHandler {
	if cfg.EventsQueueURL == "" || awsCfg == nil {
		return nil
	}
	return events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.EventsQueueURL)
}
