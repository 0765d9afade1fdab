package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/medpulse/medpulse-connect/internal/compliance"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

const defaultTelnyxEndpoint = "https://api.telnyx.com/v2/messages"

// OutboundMessage is a single patient message handed to a Sender.
type OutboundMessage struct {
	OrgID   string
	To      string
	Body    string
	Channel Channel
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// TelnyxConfig configures one Telnyx-backed channel.
type TelnyxConfig struct {
	APIKey             string
	MessagingProfileID string
	From               string
	Endpoint           string
}

// TelnyxSender posts messages using Telnyx's V2 messaging API.
type TelnyxSender struct {
	cfg        TelnyxConfig
	httpClient *http.Client
	logger     *logging.Logger
	attempts   int
}

func NewTelnyxSender(cfg TelnyxConfig, logger *logging.Logger) *TelnyxSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultTelnyxEndpoint
	}
	return &TelnyxSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		attempts:   3,
	}
}

// Send dispatches one message, retrying transient failures.
func (s *TelnyxSender) Send(ctx context.Context, msg OutboundMessage) error {
	if s.cfg.APIKey == "" {
		return errors.New("notify: telnyx api key missing")
	}
	if s.cfg.From == "" {
		return errors.New("notify: telnyx from number missing")
	}
	if msg.To == "" {
		return errors.New("notify: recipient phone required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("notify: body required")
	}

	ctx, span := tracer.Start(ctx, "notify.telnyx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("medpulse.org_id", msg.OrgID),
		attribute.String("medpulse.channel", string(msg.Channel)),
	)

	payload := map[string]any{
		"from": s.cfg.From,
		"to":   msg.To,
		"text": msg.Body,
	}
	if s.cfg.MessagingProfileID != "" {
		payload["messaging_profile_id"] = s.cfg.MessagingProfileID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal telnyx payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		retry, err := s.post(ctx, body)
		if err == nil {
			s.logger.Info("telnyx message sent", "org_id", msg.OrgID, "channel", string(msg.Channel))
			return nil
		}
		lastErr = err
		if !retry || attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(200+rand.Intn(300)) * time.Millisecond):
		}
	}

	span.RecordError(lastErr)
	return lastErr
}

// post returns whether a failure is worth retrying.
func (s *TelnyxSender) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("notify: build telnyx request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("notify: telnyx request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	err = fmt.Errorf("notify: telnyx send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, err
}

// LogSender logs messages instead of sending them.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg OutboundMessage) error {
	s.logger.Info("log sender: would send message",
		"org_id", msg.OrgID,
		"channel", string(msg.Channel),
		"chars", len(msg.Body),
		"preview", compliance.Preview(msg.Body, 60),
	)
	return nil
}
