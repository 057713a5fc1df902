package driving

import (
	"context"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// AnswerService is the single entry point for answering questions.
// Answer never returns an error: every failure mode of the dependent
// capabilities degrades into a well-formed AnswerResult.
type AnswerService interface {
	// Answer runs the full pipeline: tiered retrieval, conditional external
	// data, generation, confidence scoring.
	Answer(ctx context.Context, question, userID string) *domain.AnswerResult

	// AnswerBatch answers a list of questions sequentially. A failing
	// question yields its Error fallback entry; the batch continues.
	AnswerBatch(ctx context.Context, questions []string, userID string) []*domain.AnswerResult
}

// RetrievalService runs similarity search across priority tiers.
// Failures are absorbed at this boundary: an embedding or store error
// yields {Found: false} rather than an error.
type RetrievalService interface {
	Search(ctx context.Context, question string) *domain.RetrievalResult
}
