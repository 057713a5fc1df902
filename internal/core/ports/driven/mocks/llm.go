package mocks

import (
	"context"
	"errors"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	response   string
	failNext   bool
	failAlways bool

	Calls      int
	LastSystem string
	LastUser   string
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{
		response: "mock answer",
	}
}

func (m *MockLLMService) Generate(ctx context.Context, systemPrompt, userPrompt string) (*domain.Generation, error) {
	m.Calls++
	m.LastSystem = systemPrompt
	m.LastUser = userPrompt

	if m.failAlways || m.failNext {
		m.failNext = false
		return nil, errors.New("generation unavailable")
	}

	return &domain.Generation{
		Text:  m.response,
		Model: "mock-llm",
		Usage: domain.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockLLMService) SetResponse(text string) {
	m.response = text
}

func (m *MockLLMService) SetFailNext(fail bool) {
	m.failNext = fail
}

func (m *MockLLMService) SetFailAlways(fail bool) {
	m.failAlways = fail
}
