package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

func TestNewMistralLLM_RequiresAPIKey(t *testing.T) {
	_, err := NewMistralLLM("", "", "")
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNewMistralLLM_Defaults(t *testing.T) {
	svc, err := NewMistralLLM("mk-test", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if svc.Model() != "mistral-small-latest" {
		t.Errorf("expected default model mistral-small-latest, got %s", svc.Model())
	}
}

func TestMistralLLM_Generate_Success(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer mk-test" {
			t.Error("expected Authorization header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"model": "mistral-small-latest",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ควรรดน้ำทุกสามวัน"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`))
	}))
	defer server.Close()

	svc, err := NewMistralLLM("mk-test", "", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gen, err := svc.Generate(context.Background(), "you are a cassava expert", "how often to water?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gen.Text != "ควรรดน้ำทุกสามวัน" {
		t.Errorf("unexpected answer text: %s", gen.Text)
	}
	if gen.Usage.TotalTokens != 150 {
		t.Errorf("expected 150 total tokens, got %d", gen.Usage.TotalTokens)
	}

	if len(gotReq.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != "you are a cassava expert" {
		t.Errorf("unexpected system message: %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[1].Role != "user" || gotReq.Messages[1].Content != "how often to water?" {
		t.Errorf("unexpected user message: %+v", gotReq.Messages[1])
	}
	if gotReq.MaxTokens != chatMaxTokens {
		t.Errorf("expected max_tokens %d, got %d", chatMaxTokens, gotReq.MaxTokens)
	}
}

func TestMistralLLM_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message": "rate limit exceeded"}`))
	}))
	defer server.Close()

	svc, err := NewMistralLLM("mk-test", "", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Generate(context.Background(), "system", "user")
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestMistralLLM_Generate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "cmpl-1", "model": "mistral-small-latest", "choices": []}`))
	}))
	defer server.Close()

	svc, err := NewMistralLLM("mk-test", "", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Generate(context.Background(), "system", "user")
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestMistralLLM_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("expected /models, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	svc, err := NewMistralLLM("mk-test", "", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
