package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
)

const (
	// Generation parameters tuned for short practical farming answers
	chatTemperature = 0.7
	chatMaxTokens   = 800
)

// Ensure MistralLLM implements LLMService
var _ driven.LLMService = (*MistralLLM)(nil)

// MistralLLM implements LLMService using Mistral's chat completion API
type MistralLLM struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewMistralLLM creates a new Mistral chat service
func NewMistralLLM(apiKey, model, baseURL string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Mistral API key is required")
	}

	if model == "" {
		model = "mistral-small-latest"
	}

	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1"
	}

	return &MistralLLM{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// chatMessage is one message in a chat completion request
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for the Mistral chat API
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// chatResponse is the response from the Mistral chat API
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Message string `json:"message,omitempty"`
}

// Generate produces an answer from a system instruction and a user prompt
func (m *MistralLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (*domain.Generation, error) {
	reqBody := chatRequest{
		Model: m.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: Mistral API returned status %d: %s",
			domain.ErrGeneration, resp.StatusCode, chatResp.Message)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", domain.ErrGeneration)
	}

	return &domain.Generation{
		Text:  chatResp.Choices[0].Message.Content,
		Model: chatResp.Model,
		Usage: domain.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// Model returns the model name being used
func (m *MistralLLM) Model() string {
	return m.model
}

// Ping verifies the chat service is reachable
func (m *MistralLLM) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", m.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Mistral API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources held by the chat service
func (m *MistralLLM) Close() error {
	m.client.CloseIdleConnections()
	return nil
}
