package driven

import (
	"context"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// DocumentStore handles knowledge document persistence (PostgreSQL)
type DocumentStore interface {
	// Save creates or updates a document
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ListByTier retrieves documents for a tier with pagination.
	// An empty tier lists all documents.
	ListByTier(ctx context.Context, tier domain.Tier, limit, offset int) ([]*domain.Document, error)

	// UpdateStatus advances the processing status of a document.
	// errMsg is stored alongside a failed status and cleared otherwise.
	UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMsg string) error

	// Delete deletes a document and cascades to its chunks
	Delete(ctx context.Context, id string) error

	// Count returns total document count
	Count(ctx context.Context) (int, error)
}

// ChunkStore handles chunk persistence and tier-scoped similarity search
type ChunkStore interface {
	// SaveBatch saves multiple chunks in a transaction
	SaveBatch(ctx context.Context, chunks []*domain.Chunk) error

	// GetByDocument retrieves all chunks for a document ordered by index
	GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)

	// UpdateEmbeddings writes embeddings for a document's chunks in one
	// transaction. All-or-nothing: a partial write never becomes visible.
	UpdateEmbeddings(ctx context.Context, documentID string, chunks []*domain.Chunk) error

	// ClearEmbeddings drops all embeddings for a document (re-embedding prep)
	ClearEmbeddings(ctx context.Context, documentID string) error

	// DeleteByDocument deletes all chunks for a document
	DeleteByDocument(ctx context.Context, documentID string) error

	// SimilaritySearch scores every embedded chunk of completed documents in
	// the given tier against queryVector (dot product; vectors are
	// pre-normalized so this is cosine similarity), keeps scores >= minScore,
	// and returns at most limit snippets sorted descending. Ties preserve
	// document/chunk insertion order.
	SimilaritySearch(ctx context.Context, queryVector []float32, tier domain.Tier, minScore float64, limit int) ([]domain.Snippet, error)
}
