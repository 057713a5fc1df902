package driving

import (
	"context"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// DocumentService manages knowledge base documents
type DocumentService interface {
	// Ingest chunks content, stores the document with status pending and
	// enqueues the background embedding job. It returns as soon as the
	// document row exists; embedding completion is observed via Get.
	Ingest(ctx context.Context, title, content string, tier domain.Tier) (*domain.Document, error)

	// Get retrieves a document by ID (without chunk embeddings)
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetWithChunks retrieves a document with its ordered chunks
	GetWithChunks(ctx context.Context, id string) (*domain.DocumentWithChunks, error)

	// List retrieves documents, optionally scoped to a tier
	List(ctx context.Context, tier domain.Tier, limit, offset int) ([]*domain.Document, error)

	// Delete removes the document and all its chunks
	Delete(ctx context.Context, id string) error

	// Reprocess clears embeddings and re-runs the embedding pipeline.
	// The ingest lock guarantees at most one in-flight job per document.
	Reprocess(ctx context.Context, id string) error
}
