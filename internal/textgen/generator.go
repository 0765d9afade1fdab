package textgen

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medpulse/medpulse-connect/pkg/logging"
)

var tracer = otel.Tracer("medpulse.internal.textgen")

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 8 * time.Second

// ErrNoProvider is reported in the outcome when no LLM client is configured.
var ErrNoProvider = errors.New("textgen: no provider configured")

// Outcome is the result of a generation attempt: either generated text or the
// caller-supplied fallback. Text is never empty when the fallback is non-empty.
type Outcome struct {
	Text     string
	Fallback bool
	Err      error
}

// OK reports whether the text came from the provider.
func (o Outcome) OK() bool { return !o.Fallback }

// Recorder observes generation outcomes (metrics).
type Recorder interface {
	ObserveTextGeneration(kind string, fallback bool, duration time.Duration)
}

// Prompt is a single generation request.
type Prompt struct {
	Kind      string
	System    string
	User      string
	MaxTokens int32
}

// Generator produces text with a bounded timeout and never fails.
type Generator struct {
	client   LLMClient
	model    string
	timeout  time.Duration
	logger   *logging.Logger
	recorder Recorder
}

// NewGenerator wraps client. A nil client makes every call fall back.
func NewGenerator(client LLMClient, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{client: client, timeout: DefaultTimeout, logger: logger}
}

// WithTimeout overrides the per-call timeout.
func (g *Generator) WithTimeout(d time.Duration) *Generator {
	if d > 0 {
		g.timeout = d
	}
	return g
}

// WithModel sets the model id sent on every request.
func (g *Generator) WithModel(model string) *Generator {
	g.model = strings.TrimSpace(model)
	return g
}

// WithRecorder attaches an outcome observer.
func (g *Generator) WithRecorder(r Recorder) *Generator {
	g.recorder = r
	return g
}

// Generate runs the prompt and returns the generated text, or fallback when
// the provider is missing, errors, times out, or returns nothing. A nil
// Generator always falls back.
func (g *Generator) Generate(ctx context.Context, p Prompt, fallback string) Outcome {
	if g == nil {
		return Outcome{Text: fallback, Fallback: true, Err: ErrNoProvider}
	}
	ctx, span := tracer.Start(ctx, "textgen.generate")
	defer span.End()
	span.SetAttributes(attribute.String("medpulse.textgen.kind", p.Kind))

	start := time.Now()
	outcome := g.generate(ctx, p, fallback)
	span.SetAttributes(attribute.Bool("medpulse.textgen.fallback", outcome.Fallback))
	if g.recorder != nil {
		g.recorder.ObserveTextGeneration(p.Kind, outcome.Fallback, time.Since(start))
	}
	if outcome.Fallback && outcome.Err != nil && !errors.Is(outcome.Err, ErrNoProvider) {
		g.logger.Warn("text generation fell back", "kind", p.Kind, "error", outcome.Err)
	}
	return outcome
}

func (g *Generator) generate(ctx context.Context, p Prompt, fallback string) Outcome {
	if g.client == nil {
		return Outcome{Text: fallback, Fallback: true, Err: ErrNoProvider}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := LLMRequest{
		Model:       g.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: p.User}},
		MaxTokens:   p.MaxTokens,
		Temperature: 0.4,
	}
	if strings.TrimSpace(p.System) != "" {
		req.System = []string{p.System}
	}

	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return Outcome{Text: fallback, Fallback: true, Err: err}
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return Outcome{Text: fallback, Fallback: true, Err: errors.New("textgen: empty completion")}
	}
	return Outcome{Text: text}
}
