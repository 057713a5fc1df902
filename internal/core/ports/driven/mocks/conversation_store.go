package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// MockConversationStore is an in-memory append-only ConversationStore
type MockConversationStore struct {
	mu      sync.RWMutex
	records []*domain.ConversationRecord
}

// NewMockConversationStore creates a new MockConversationStore
func NewMockConversationStore() *MockConversationStore {
	return &MockConversationStore{}
}

func (m *MockConversationStore) Append(ctx context.Context, rec *domain.ConversationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *rec
	m.records = append(m.records, &copied)
	return nil
}

func (m *MockConversationStore) ListSince(ctx context.Context, start time.Time) ([]*domain.ConversationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.ConversationRecord
	for _, rec := range m.records {
		// Window start is inclusive
		if !rec.CreatedAt.Before(start) {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockConversationStore) List(ctx context.Context, filter domain.RecordFilter) (*domain.RecordPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.ConversationRecord
	for _, rec := range m.records {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.Source != "" && rec.Source != filter.Source {
			continue
		}
		if filter.Start != nil && rec.CreatedAt.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && rec.CreatedAt.After(*filter.End) {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(rec.Question), strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(rec.Answer), strings.ToLower(filter.Search)) {
			continue
		}
		copied := *rec
		matched = append(matched, &copied)
	}

	// Newest first
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	total := len(matched)
	pages := (total + filter.Limit - 1) / filter.Limit
	offset := (filter.Page - 1) * filter.Limit
	if offset > total {
		offset = total
	}
	end := offset + filter.Limit
	if end > total {
		end = total
	}

	return &domain.RecordPage{
		Records: matched[offset:end],
		Page:    filter.Page,
		Limit:   filter.Limit,
		Total:   total,
		Pages:   pages,
	}, nil
}

// Len returns the number of stored records
func (m *MockConversationStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// MockUserStatsStore is an in-memory UserStatsStore with atomic increments
type MockUserStatsStore struct {
	mu    sync.Mutex
	stats map[string]*domain.UserStats
}

// NewMockUserStatsStore creates a new MockUserStatsStore
func NewMockUserStatsStore() *MockUserStatsStore {
	return &MockUserStatsStore{
		stats: make(map[string]*domain.UserStats),
	}
}

func (m *MockUserStatsStore) IncrementQuestions(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[userID]
	if !ok {
		s = &domain.UserStats{UserID: userID, CreatedAt: at}
		m.stats[userID] = s
	}
	s.TotalQuestions++
	s.LastActive = at
	return nil
}

func (m *MockUserStatsStore) Get(ctx context.Context, userID string) (*domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *s
	return &copied, nil
}
