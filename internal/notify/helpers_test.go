package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/medpulse/medpulse-connect/internal/textgen"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type stubLLM struct {
	text string
	err  error
}

func (s stubLLM) Complete(context.Context, textgen.LLMRequest) (textgen.LLMResponse, error) {
	if s.err != nil {
		return textgen.LLMResponse{}, s.err
	}
	return textgen.LLMResponse{Text: s.text}, nil
}

func failingMessages() *textgen.Messages {
	gen := textgen.NewGenerator(stubLLM{err: errors.New("provider down")}, logging.Discard())
	return textgen.NewMessages(gen, "MedPulse Connect")
}

func generatingMessages(text string) *textgen.Messages {
	return textgen.NewMessages(textgen.NewGenerator(stubLLM{text: text}, logging.Discard()), "MedPulse Connect")
}

func testCascade(msgs *textgen.Messages) *Cascade {
	return NewCascade(msgs).WithClock(func() time.Time { return fixedNow })
}

type staticDirectory map[string]Recipient

func (d staticDirectory) Recipient(_ context.Context, id string) (Recipient, error) {
	r, ok := d[id]
	if !ok {
		return Recipient{}, errors.New("unknown patient")
	}
	return r, nil
}

type recordingSender struct {
	mu   sync.Mutex
	err  error
	sent []OutboundMessage
}

func (s *recordingSender) Send(_ context.Context, msg OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []EmailMessage
}

func (r *recordingEmail) Send(_ context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

type failingStore struct {
	*MemoryStore
	createErr error
}

func (s *failingStore) Create(ctx context.Context, n *Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.MemoryStore.Create(ctx, n)
}
