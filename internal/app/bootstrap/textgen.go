package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/medpulse/medpulse-connect/internal/config"
	"github.com/medpulse/medpulse-connect/internal/observability/metrics"
	"github.com/medpulse/medpulse-connect/internal/textgen"
	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// BuildLLMClient selects the text generation backend. "none" (or a provider
// missing its credentials) returns nil so every message uses its fixed text.
// "auto" prefers Gemini and falls back to Bedrock when both are configured.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (textgen.LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	gemini := func() (textgen.LLMClient, error) {
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, nil
		}
		return textgen.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	}
	bedrock := func() textgen.LLMClient {
		if awsCfg == nil || strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil
		}
		return textgen.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID)
	}

	switch cfg.TextGenProvider {
	case "", "none":
		return nil, nil
	case "gemini":
		client, err := gemini()
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		if client == nil {
			logger.Warn("gemini selected but GEMINI_API_KEY is empty; using fixed message text")
		}
		return client, nil
	case "bedrock":
		client := bedrock()
		if client == nil {
			logger.Warn("bedrock selected but model or AWS config missing; using fixed message text")
		}
		return client, nil
	case "auto":
		primary, err := gemini()
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		secondary := bedrock()
		switch {
		case primary != nil && secondary != nil:
			return textgen.NewFallbackClient(primary, secondary, logger), nil
		case primary != nil:
			return primary, nil
		default:
			return secondary, nil
		}
	default:
		return nil, fmt.Errorf("bootstrap: unknown text generation provider %q", cfg.TextGenProvider)
	}
}

// BuildMessages wraps client in the clinic's message catalog.
func BuildMessages(cfg *appconfig.Config, client textgen.LLMClient, m *metrics.WorkflowMetrics, logger *logging.Logger) *textgen.Messages {
	if client == nil {
		return textgen.NewMessages(nil, cfg.ClinicName)
	}
	gen := textgen.NewGenerator(client, logger).WithTimeout(cfg.TextGenTimeout)
	switch cfg.TextGenProvider {
	case "gemini":
		gen = gen.WithModel(cfg.GeminiModelID)
	case "bedrock":
		gen = gen.WithModel(cfg.BedrockModelID)
	}
	if m != nil {
		gen = gen.WithRecorder(m)
	}
	return textgen.NewMessages(gen, cfg.ClinicName)
}
