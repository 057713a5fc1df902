package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// MockDocumentStore is an in-memory DocumentStore for testing
type MockDocumentStore struct {
	mu    sync.RWMutex
	docs  map[string]*domain.Document
	order []string

	// StatusHistory records every status transition per document
	StatusHistory map[string][]domain.ProcessingStatus
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		docs:          make(map[string]*domain.Document),
		StatusHistory: make(map[string][]domain.ProcessingStatus),
	}
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; !exists {
		m.order = append(m.order, doc.ID)
	}
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *MockDocumentStore) ListByTier(ctx context.Context, tier domain.Tier, limit, offset int) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Document
	for _, id := range m.order {
		doc := m.docs[id]
		if tier != "" && doc.Tier != tier {
			continue
		}
		copied := *doc
		out = append(out, &copied)
	}

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockDocumentStore) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.Error = errMsg
	m.StatusHistory[id] = append(m.StatusHistory[id], status)
	return nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockDocumentStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// MockChunkStore is an in-memory ChunkStore for testing. It resolves tier
// and completion status through the associated MockDocumentStore, the same
// join the Postgres adapter performs.
type MockChunkStore struct {
	mu       sync.RWMutex
	docs     *MockDocumentStore
	byDoc    map[string][]*domain.Chunk
	docOrder []string

	// SearchCalls counts SimilaritySearch invocations per tier,
	// for early-exit assertions
	SearchCalls map[domain.Tier]int

	failSearch bool
}

// NewMockChunkStore creates a new MockChunkStore backed by docs
func NewMockChunkStore(docs *MockDocumentStore) *MockChunkStore {
	return &MockChunkStore{
		docs:        docs,
		byDoc:       make(map[string][]*domain.Chunk),
		SearchCalls: make(map[domain.Tier]int),
	}
}

func (m *MockChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if _, ok := m.byDoc[c.DocumentID]; !ok {
			m.docOrder = append(m.docOrder, c.DocumentID)
		}
		copied := *c
		m.byDoc[c.DocumentID] = append(m.byDoc[c.DocumentID], &copied)
	}
	return nil
}

func (m *MockChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := m.byDoc[documentID]
	out := make([]*domain.Chunk, len(chunks))
	for i, c := range chunks {
		copied := *c
		out[i] = &copied
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *MockChunkStore) UpdateEmbeddings(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.byDoc[documentID]
	for _, c := range chunks {
		for _, sc := range stored {
			if sc.ID == c.ID {
				sc.Embedding = append([]float32(nil), c.Embedding...)
			}
		}
	}
	return nil
}

func (m *MockChunkStore) ClearEmbeddings(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byDoc[documentID] {
		c.Embedding = nil
	}
	return nil
}

func (m *MockChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byDoc, documentID)
	for i, id := range m.docOrder {
		if id == documentID {
			m.docOrder = append(m.docOrder[:i], m.docOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockChunkStore) SimilaritySearch(ctx context.Context, queryVector []float32, tier domain.Tier, minScore float64, limit int) ([]domain.Snippet, error) {
	m.mu.Lock()
	m.SearchCalls[tier]++
	m.mu.Unlock()

	if m.failSearch {
		return nil, domain.ErrRetrieval
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var snippets []domain.Snippet
	for _, docID := range m.docOrder {
		doc, err := m.docs.Get(ctx, docID)
		if err != nil || doc.Tier != tier || doc.Status != domain.StatusCompleted {
			continue
		}
		for _, c := range m.byDoc[docID] {
			if !c.Embedded() {
				continue
			}
			score := dot(queryVector, c.Embedding)
			if score < minScore {
				continue
			}
			snippets = append(snippets, domain.Snippet{
				DocumentID: docID,
				Title:      doc.Title,
				Tier:       doc.Tier,
				ChunkIndex: c.Index,
				Content:    c.Content,
				Similarity: score,
			})
		}
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Similarity > snippets[j].Similarity
	})
	if len(snippets) > limit {
		snippets = snippets[:limit]
	}
	return snippets, nil
}

// Helper methods for testing

// SetFailSearch makes SimilaritySearch return ErrRetrieval
func (m *MockChunkStore) SetFailSearch(fail bool) {
	m.failSearch = fail
}

// TotalSearchCalls sums SimilaritySearch calls across tiers
func (m *MockChunkStore) TotalSearchCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.SearchCalls {
		total += n
	}
	return total
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
