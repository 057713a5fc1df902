package driven

import (
	"context"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// LLMService provides the generative answer capability.
// It may fail or time out; callers convert failures into the fixed
// fallback answer and never let them escape the answering pipeline.
type LLMService interface {
	// Generate produces a bounded-length answer from a system instruction
	// and a user prompt (question + context + optional external data block).
	Generate(ctx context.Context, systemPrompt, userPrompt string) (*domain.Generation, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
