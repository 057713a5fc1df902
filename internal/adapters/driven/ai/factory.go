package ai

import (
	"fmt"

	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
)

// Provider names accepted by the factory
const (
	ProviderOpenAI  = "openai"
	ProviderMistral = "mistral"
)

// Config selects and configures an AI provider
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// NewEmbeddingService creates an embedding service from config.
// An empty provider defaults to OpenAI.
func NewEmbeddingService(cfg Config) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAIEmbedding(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewLLMService creates a chat service from config.
// An empty provider defaults to Mistral.
func NewLLMService(cfg Config) (driven.LLMService, error) {
	switch cfg.Provider {
	case "", ProviderMistral:
		return NewMistralLLM(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderOpenAI:
		return NewOpenAILLM(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", cfg.Provider)
	}
}
