package textgen

import (
	"context"

	"github.com/medpulse/medpulse-connect/pkg/logging"
)

// FallbackClient tries the primary provider and, on error, the secondary.
type FallbackClient struct {
	primary   LLMClient
	secondary LLMClient
	logger    *logging.Logger
}

// NewFallbackClient chains two providers. A nil secondary disables failover.
func NewFallbackClient(primary, secondary LLMClient, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("textgen: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, secondary: secondary, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary llm failed", "error", err, "secondary_available", c.secondary != nil)
	if c.secondary == nil {
		return LLMResponse{}, err
	}

	resp, secondaryErr := c.secondary.Complete(ctx, req)
	if secondaryErr != nil {
		c.logger.Error("secondary llm also failed", "primary_error", err, "secondary_error", secondaryErr)
		return LLMResponse{}, secondaryErr
	}
	return resp, nil
}
