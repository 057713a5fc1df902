package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driving"
)

const (
	// minSimilarity is the relevance cutoff for retrieved chunks
	minSimilarity = 0.7

	// perTierLimit is how many snippets one tier scan may contribute
	perTierLimit = 3

	// maxSnippets caps the merged result set
	maxSnippets = 5
)

// Ensure retrieverService implements RetrievalService
var _ driving.RetrievalService = (*retrieverService)(nil)

// retrieverService runs similarity search across priority tiers with an
// early-exit policy: each tier scan costs a similarity pass, so once enough
// high-trust evidence exists the lower tiers are skipped.
type retrieverService struct {
	embedder driven.EmbeddingService
	chunks   driven.ChunkStore
	logger   *slog.Logger
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(
	embedder driven.EmbeddingService,
	chunks driven.ChunkStore,
	logger *slog.Logger,
) driving.RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	return &retrieverService{
		embedder: embedder,
		chunks:   chunks,
		logger:   logger,
	}
}

// Search embeds the question and scans tiers A, B, C in priority order.
// Tier C is only consulted when A and B together produced fewer than four
// results: lower tiers are a fallback, not a supplement. All failures are
// absorbed here and surface as Found=false.
func (s *retrieverService) Search(ctx context.Context, question string) *domain.RetrievalResult {
	queryVector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		s.logger.Warn("query embedding failed, skipping retrieval", "error", err)
		return &domain.RetrievalResult{Found: false, Snippets: []domain.Snippet{}, Err: err.Error()}
	}

	var merged []domain.Snippet
	tierACount := 0

	for _, tier := range domain.TiersByPriority {
		snippets, err := s.chunks.SimilaritySearch(ctx, queryVector, tier, minSimilarity, perTierLimit)
		if err != nil {
			s.logger.Warn("similarity search failed", "tier", tier, "error", err)
			return &domain.RetrievalResult{Found: false, Snippets: []domain.Snippet{}, Err: err.Error()}
		}
		merged = append(merged, snippets...)

		if tier == domain.TierA {
			tierACount = len(snippets)
			if tierACount >= 2 {
				break
			}
		}
		if tier == domain.TierB && len(merged) >= 4 {
			break
		}
	}

	// Stable on ties: accumulation order is tier priority then store order.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	if len(merged) > maxSnippets {
		merged = merged[:maxSnippets]
	}

	result := &domain.RetrievalResult{
		Found:    len(merged) > 0,
		Snippets: merged,
	}
	if result.Found {
		result.Confidence = merged[0].Similarity
	}
	if result.Snippets == nil {
		result.Snippets = []domain.Snippet{}
	}

	s.logger.Debug("retrieval completed",
		"found", result.Found,
		"snippets", len(result.Snippets),
		"confidence", result.Confidence,
	)
	return result
}
