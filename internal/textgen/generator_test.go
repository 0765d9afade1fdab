package textgen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medpulse/medpulse-connect/pkg/logging"
)

type stubLLM struct {
	mu       sync.Mutex
	text     string
	err      error
	delay    time.Duration
	requests []LLMRequest
}

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		}
	}
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

type recordedOutcome struct {
	kind     string
	fallback bool
}

type stubRecorder struct{ outcomes []recordedOutcome }

func (r *stubRecorder) ObserveTextGeneration(kind string, fallback bool, _ time.Duration) {
	r.outcomes = append(r.outcomes, recordedOutcome{kind: kind, fallback: fallback})
}

func TestGenerateReturnsProviderText(t *testing.T) {
	llm := &stubLLM{text: "  Hello Dana, see you Friday.  "}
	rec := &stubRecorder{}
	gen := NewGenerator(llm, logging.Discard()).WithModel("gemini-test").WithRecorder(rec)

	out := gen.Generate(context.Background(), Prompt{Kind: KindConfirmation, System: "sys", User: "hi"}, "fallback")

	assert.True(t, out.OK())
	assert.Equal(t, "Hello Dana, see you Friday.", out.Text)
	require.Len(t, llm.requests, 1)
	assert.Equal(t, "gemini-test", llm.requests[0].Model)
	assert.Equal(t, []string{"sys"}, llm.requests[0].System)
	assert.Equal(t, []recordedOutcome{{kind: KindConfirmation, fallback: false}}, rec.outcomes)
}

func TestGenerateFallsBackOnError(t *testing.T) {
	boom := errors.New("quota exceeded")
	gen := NewGenerator(&stubLLM{err: boom}, logging.Discard())

	out := gen.Generate(context.Background(), Prompt{Kind: KindReminder, User: "x"}, "fallback text")

	assert.True(t, out.Fallback)
	assert.Equal(t, "fallback text", out.Text)
	assert.ErrorIs(t, out.Err, boom)
}

func TestGenerateFallsBackOnEmptyText(t *testing.T) {
	gen := NewGenerator(&stubLLM{text: "   "}, logging.Discard())
	out := gen.Generate(context.Background(), Prompt{Kind: KindWelcome, User: "x"}, "welcome!")
	assert.True(t, out.Fallback)
	assert.Equal(t, "welcome!", out.Text)
}

func TestGenerateFallsBackOnTimeout(t *testing.T) {
	gen := NewGenerator(&stubLLM{text: "late", delay: time.Second}, logging.Discard()).WithTimeout(20 * time.Millisecond)

	start := time.Now()
	out := gen.Generate(context.Background(), Prompt{Kind: KindReminder, User: "x"}, "fb")

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, out.Fallback)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

func TestGenerateWithoutProvider(t *testing.T) {
	out := NewGenerator(nil, nil).Generate(context.Background(), Prompt{Kind: KindWelcome}, "fb")
	assert.True(t, out.Fallback)
	assert.ErrorIs(t, out.Err, ErrNoProvider)
	assert.Equal(t, "fb", out.Text)
}

func TestNilGeneratorFallsBack(t *testing.T) {
	var g *Generator
	var out Outcome
	require.NotPanics(t, func() {
		out = g.Generate(context.Background(), Prompt{Kind: "welcome", User: "hi"}, "fallback text")
	})
	assert.True(t, out.Fallback)
	assert.Equal(t, "fallback text", out.Text)
	assert.ErrorIs(t, out.Err, ErrNoProvider)
}

func TestMessagesFallbackTexts(t *testing.T) {
	msgs := NewMessages(NewGenerator(&stubLLM{err: errors.New("down")}, logging.Discard()), "MedPulse Connect")
	ctx := context.Background()

	assert.Equal(t, "Your appointment for Botox Injection has been fixed for Mar 3, 2025 10:00 AM. See you soon!",
		msgs.Confirmation(ctx, "Ana", "Botox Injection", "Mar 3, 2025 10:00 AM").Text)
	assert.Equal(t, "The time you have chosen is full, your new appointment is Mar 3, 2025 11:00 AM, please reply to confirm so we can fix your new appointment.",
		msgs.TimeChange(ctx, "Ana", "Facial", "Mar 3, 2025 11:00 AM").Text)
	assert.Equal(t, "Friendly reminder: You have a Facial appointment on Mar 3, 2025 11:00 AM at MedPulse Connect.",
		msgs.Reminder(ctx, "Ana", "Facial", "Mar 3, 2025 11:00 AM", "2 hours").Text)
	assert.Equal(t, "Welcome to MedPulse Connect, Ana! We are happy to have you.", msgs.Welcome(ctx, "Ana").Text)
	assert.Equal(t, CareInstructionsFallback, msgs.CareInstructions(ctx, "notes", "results").Text)
	assert.Equal(t, ConsultationFallback, msgs.Consultation(ctx, "acne scars", []string{"Facial"}).Text)
}

func TestReminderPromptCarriesLeadTime(t *testing.T) {
	llm := &stubLLM{text: "See you tomorrow"}
	msgs := NewMessages(NewGenerator(llm, logging.Discard()), "MedPulse Connect")

	out := msgs.Reminder(context.Background(), "Ana", "Chemical Peel", "Mar 3", "24 hours")

	require.True(t, out.OK())
	require.Len(t, llm.requests, 1)
	prompt := llm.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "Ana")
	assert.Contains(t, prompt, "Chemical Peel")
	assert.Contains(t, prompt, "24 hours")
}
