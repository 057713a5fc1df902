package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driving"
)

// defaultPlatform tags records whose caller did not set one
const defaultPlatform = "LINE"

// topQuestionsDefault is the top-question count inside Analytics
const topQuestionsDefault = 10

// Ensure ledgerService implements LedgerService
var _ driving.LedgerService = (*ledgerService)(nil)

// ledgerService records answer outcomes (append-only) and aggregates
// analytics by scanning records inside a time window. Aggregation runs
// in-process so it works the same against Postgres or the in-memory store.
type ledgerService struct {
	records driven.ConversationStore
	stats   driven.UserStatsStore
	logger  *slog.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	records driven.ConversationStore,
	stats driven.UserStatsStore,
	logger *slog.Logger,
) driving.LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerService{
		records: records,
		stats:   stats,
		logger:  logger,
	}
}

// Record appends an immutable conversation record, then updates the user's
// aggregate statistics with an atomic upsert.
func (s *ledgerService) Record(ctx context.Context, question, userID string, result *domain.AnswerResult, latency time.Duration, platform string) (*domain.ConversationRecord, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: nil answer result", domain.ErrInvalidInput)
	}
	if platform == "" {
		platform = defaultPlatform
	}

	sources := make([]domain.SourceRef, 0, len(result.Snippets))
	for _, sn := range result.Snippets {
		sources = append(sources, domain.SourceRef{
			DocumentID: sn.DocumentID,
			ChunkIndex: sn.ChunkIndex,
			Similarity: sn.Similarity,
			Tier:       sn.Tier,
		})
	}

	rec := &domain.ConversationRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Question:    question,
		Answer:      result.Answer,
		Source:      result.Source,
		Confidence:  result.Confidence,
		Sources:     sources,
		ExternalAPI: result.ExternalAPI,
		LatencyMS:   latency.Milliseconds(),
		Platform:    platform,
		CreatedAt:   time.Now(),
	}

	if err := s.records.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append record: %w", err)
	}

	if err := s.stats.IncrementQuestions(ctx, userID, rec.CreatedAt); err != nil {
		// Stats are best-effort; the record itself is already durable.
		s.logger.Warn("user stats update failed", "user_id", userID, "error", err)
	}

	return rec, nil
}

// Analytics aggregates records created within [now - timeRange, now].
// The window start is inclusive; daily grouping uses the server's
// reporting timezone.
func (s *ledgerService) Analytics(ctx context.Context, timeRange time.Duration) (*domain.Analytics, error) {
	start := time.Now().Add(-timeRange)
	recs, err := s.records.ListSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	out := &domain.Analytics{
		TotalCount:      len(recs),
		SourceBreakdown: make(map[domain.AnswerSource]int),
		TopQuestions:    topQuestions(recs, topQuestionsDefault),
	}

	confSum, confN := 0.0, 0
	latSum, latN := int64(0), 0
	daily := make(map[string]*domain.DailyCount)

	for _, rec := range recs {
		out.SourceBreakdown[rec.Source]++

		if rec.Confidence > 0 {
			confSum += rec.Confidence
			confN++
		}
		if rec.LatencyMS > 0 {
			latSum += rec.LatencyMS
			latN++
		}

		day := rec.CreatedAt.Local().Format("2006-01-02")
		dc := daily[day]
		if dc == nil {
			dc = &domain.DailyCount{Date: day}
			daily[day] = dc
		}
		dc.Total++
		switch rec.Source {
		case domain.SourceRAG:
			dc.RAG++
		case domain.SourceExternal:
			dc.External++
		}
	}

	if confN > 0 {
		out.AvgConfidence = confSum / float64(confN)
	}
	if latN > 0 {
		out.AvgLatencyMS = float64(latSum) / float64(latN)
	}

	out.Daily = make([]domain.DailyCount, 0, len(daily))
	for _, dc := range daily {
		out.Daily = append(out.Daily, *dc)
	}
	sort.Slice(out.Daily, func(i, j int) bool {
		return out.Daily[i].Date < out.Daily[j].Date
	})

	return out, nil
}

// TopQuestions groups window records by exact question text and returns the
// limit most frequent.
func (s *ledgerService) TopQuestions(ctx context.Context, timeRange time.Duration, limit int) ([]domain.QuestionCount, error) {
	if limit <= 0 {
		limit = topQuestionsDefault
	}
	recs, err := s.records.ListSince(ctx, time.Now().Add(-timeRange))
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return topQuestions(recs, limit), nil
}

// List returns a filtered, paginated page of records
func (s *ledgerService) List(ctx context.Context, filter domain.RecordFilter) (*domain.RecordPage, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.records.List(ctx, filter)
}

// UserStats retrieves a user's aggregate counters
func (s *ledgerService) UserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	return s.stats.Get(ctx, userID)
}

// topQuestions counts exact question texts (case-sensitive, no
// normalization) across recs, which arrive in natural record order.
// Ties keep first-seen order via the stable sort.
func topQuestions(recs []*domain.ConversationRecord, limit int) []domain.QuestionCount {
	counts := make(map[string]int)
	var order []string
	for _, rec := range recs {
		if counts[rec.Question] == 0 {
			order = append(order, rec.Question)
		}
		counts[rec.Question]++
	}

	top := make([]domain.QuestionCount, 0, len(order))
	for _, q := range order {
		top = append(top, domain.QuestionCount{Question: q, Count: counts[q]})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})

	if len(top) > limit {
		top = top[:limit]
	}
	return top
}
