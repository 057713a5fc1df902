package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

// OpenAILLM implements LLMService using OpenAI's chat completion API.
// It is the alternative generation backend when Mistral is not configured.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewOpenAILLM creates a new OpenAI chat service
func NewOpenAILLM(apiKey, model, baseURL string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAILLM{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Generate produces an answer from a system instruction and a user prompt
func (o *OpenAILLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (*domain.Generation, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", domain.ErrGeneration)
	}

	return &domain.Generation{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Model returns the model name being used
func (o *OpenAILLM) Model() string {
	return o.model
}

// Ping verifies the chat service is reachable
func (o *OpenAILLM) Ping(ctx context.Context) error {
	_, err := o.client.ListModels(ctx)
	return err
}

// Close releases resources held by the chat service
func (o *OpenAILLM) Close() error {
	return nil
}
