package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven/mocks"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driving"
)

func newTestLedger() (driving.LedgerService, *mocks.MockConversationStore, *mocks.MockUserStatsStore) {
	records := mocks.NewMockConversationStore()
	stats := mocks.NewMockUserStatsStore()
	return NewLedgerService(records, stats, nil), records, stats
}

func ragResult() *domain.AnswerResult {
	return &domain.AnswerResult{
		Answer:     "ปลูกช่วงต้นฤดูฝน",
		Source:     domain.SourceRAG,
		Confidence: 0.85,
		Snippets: []domain.Snippet{
			{DocumentID: "d1", Tier: domain.TierA, ChunkIndex: 2, Similarity: 0.9},
			{DocumentID: "d2", Tier: domain.TierB, ChunkIndex: 0, Similarity: 0.75},
		},
	}
}

func TestRecord_Basic(t *testing.T) {
	svc, records, stats := newTestLedger()

	rec, err := svc.Record(context.Background(), "ปลูกเมื่อไหร่", "user-1", ragResult(), 1500*time.Millisecond, "")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, domain.SourceRAG, rec.Source)
	assert.Equal(t, 0.85, rec.Confidence)
	assert.Equal(t, int64(1500), rec.LatencyMS)
	assert.Equal(t, "LINE", rec.Platform, "empty platform defaults to LINE")

	require.Len(t, rec.Sources, 2)
	assert.Equal(t, "d1", rec.Sources[0].DocumentID)
	assert.Equal(t, 2, rec.Sources[0].ChunkIndex)
	assert.Equal(t, domain.TierA, rec.Sources[0].Tier)

	assert.Equal(t, 1, records.Len())

	us, err := stats.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), us.TotalQuestions)
}

func TestRecord_NilResult(t *testing.T) {
	svc, records, _ := newTestLedger()

	_, err := svc.Record(context.Background(), "q", "user-1", nil, 0, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, 0, records.Len())
}

func TestRecord_Concurrent(t *testing.T) {
	svc, records, stats := newTestLedger()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := svc.Record(context.Background(), fmt.Sprintf("q-%d", i), "user-1", ragResult(), time.Second, "LINE")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, records.Len(), "every record must be appended exactly once")

	us, err := stats.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), us.TotalQuestions, "increments must not be lost under concurrency")
}

func TestAnalytics_Aggregates(t *testing.T) {
	svc, records, _ := newTestLedger()
	now := time.Now()

	seed := []*domain.ConversationRecord{
		{ID: "1", Question: "a", Source: domain.SourceRAG, Confidence: 0.8, LatencyMS: 100, CreatedAt: now.Add(-30 * time.Minute)},
		{ID: "2", Question: "a", Source: domain.SourceRAG, Confidence: 0.6, LatencyMS: 300, CreatedAt: now.Add(-20 * time.Minute)},
		{ID: "3", Question: "b", Source: domain.SourceExternal, Confidence: 0.5, LatencyMS: 0, CreatedAt: now.Add(-10 * time.Minute)},
		// Error records count toward totals but not toward the confidence average.
		{ID: "4", Question: "c", Source: domain.SourceError, Confidence: 0, LatencyMS: 50, CreatedAt: now.Add(-5 * time.Minute)},
		// Outside the window, must be ignored entirely.
		{ID: "5", Question: "old", Source: domain.SourceRAG, Confidence: 1.0, LatencyMS: 999, CreatedAt: now.Add(-2 * time.Hour)},
	}
	for _, rec := range seed {
		require.NoError(t, records.Append(context.Background(), rec))
	}

	a, err := svc.Analytics(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, a.TotalCount)
	assert.Equal(t, 2, a.SourceBreakdown[domain.SourceRAG])
	assert.Equal(t, 1, a.SourceBreakdown[domain.SourceExternal])
	assert.Equal(t, 1, a.SourceBreakdown[domain.SourceError])

	// Confidence averages over the three records with confidence > 0.
	assert.InDelta(t, (0.8+0.6+0.5)/3, a.AvgConfidence, 1e-9)
	// Latency averages over the three records with latency > 0.
	assert.InDelta(t, float64(100+300+50)/3, a.AvgLatencyMS, 1e-9)

	require.NotEmpty(t, a.Daily)
	total := 0
	for _, dc := range a.Daily {
		total += dc.Total
	}
	assert.Equal(t, 4, total)

	require.Len(t, a.TopQuestions, 3)
	assert.Equal(t, "a", a.TopQuestions[0].Question)
	assert.Equal(t, 2, a.TopQuestions[0].Count)
}

func TestListSince_WindowStartInclusive(t *testing.T) {
	_, records, _ := newTestLedger()
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	seed := []*domain.ConversationRecord{
		{ID: "before", Question: "a", Source: domain.SourceRAG, CreatedAt: start.Add(-time.Nanosecond)},
		{ID: "edge", Question: "b", Source: domain.SourceRAG, CreatedAt: start},
		{ID: "after", Question: "c", Source: domain.SourceRAG, CreatedAt: start.Add(time.Minute)},
	}
	for _, rec := range seed {
		require.NoError(t, records.Append(context.Background(), rec))
	}

	got, err := records.ListSince(context.Background(), start)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "edge", got[0].ID, "record exactly at the window start must be included")
	assert.Equal(t, "after", got[1].ID)
}

func TestTopQuestions_TiesKeepFirstSeenOrder(t *testing.T) {
	svc, records, _ := newTestLedger()
	now := time.Now()

	for i, q := range []string{"first", "second", "second", "first", "third"} {
		require.NoError(t, records.Append(context.Background(), &domain.ConversationRecord{
			ID:        fmt.Sprintf("%d", i),
			Question:  q,
			Source:    domain.SourceRAG,
			CreatedAt: now.Add(-time.Minute),
		}))
	}

	top, err := svc.TopQuestions(context.Background(), time.Hour, 2)
	require.NoError(t, err)

	require.Len(t, top, 2)
	assert.Equal(t, "first", top[0].Question, "tie between first and second resolves by first occurrence")
	assert.Equal(t, 2, top[0].Count)
	assert.Equal(t, "second", top[1].Question)
	assert.Equal(t, 2, top[1].Count)
}

func TestList_DefaultsAndFilters(t *testing.T) {
	svc, records, _ := newTestLedger()
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, records.Append(context.Background(), &domain.ConversationRecord{
			ID:        fmt.Sprintf("%d", i),
			UserID:    "user-1",
			Question:  fmt.Sprintf("คำถาม %d", i),
			Source:    domain.SourceRAG,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, records.Append(context.Background(), &domain.ConversationRecord{
		ID:        "x",
		UserID:    "user-2",
		Question:  "อื่น",
		Source:    domain.SourceExternal,
		CreatedAt: now,
	}))

	page, err := svc.List(context.Background(), domain.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 4, page.Total)

	filtered, err := svc.List(context.Background(), domain.RecordFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, filtered.Total)

	bySource, err := svc.List(context.Background(), domain.RecordFilter{Source: domain.SourceExternal})
	require.NoError(t, err)
	require.Equal(t, 1, bySource.Total)
	assert.Equal(t, "user-2", bySource.Records[0].UserID)
}

func TestUserStats_Unknown(t *testing.T) {
	svc, _, _ := newTestLedger()

	_, err := svc.UserStats(context.Background(), "nobody")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
