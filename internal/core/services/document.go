package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaset-ai/kaset-core/internal/chunker"
	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService manages knowledge documents. Ingestion is decoupled from
// the caller: chunking and row creation happen synchronously, embedding runs
// as a background task picked up by the ingest worker.
type documentService struct {
	documents driven.DocumentStore
	chunks    driven.ChunkStore
	queue     driven.TaskQueue
	logger    *slog.Logger

	maxChunkChars int
	overlapChars  int
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documents driven.DocumentStore,
	chunks driven.ChunkStore,
	queue driven.TaskQueue,
	logger *slog.Logger,
) driving.DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		documents:     documents,
		chunks:        chunks,
		queue:         queue,
		logger:        logger,
		maxChunkChars: chunker.DefaultMaxChunkChars,
		overlapChars:  chunker.DefaultOverlapChars,
	}
}

// Ingest chunks content, stores the document with status pending and
// enqueues the embedding job. Empty content is tolerated: the document is
// stored and immediately marked failed, since no chunks can be produced.
func (s *documentService) Ingest(ctx context.Context, title, content string, tier domain.Tier) (*domain.Document, error) {
	if tier == "" {
		tier = domain.TierB
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, tier)
	}

	now := time.Now()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Content:   content,
		Tier:      tier,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	pieces := chunker.Split(content, s.maxChunkChars, s.overlapChars)
	if len(pieces) == 0 {
		s.logger.Warn("document produced no chunks", "document_id", doc.ID)
		doc.Status = domain.StatusFailed
		doc.Error = "no chunks produced from content"
		if err := s.documents.UpdateStatus(ctx, doc.ID, domain.StatusFailed, doc.Error); err != nil {
			return nil, fmt.Errorf("mark document failed: %w", err)
		}
		return doc, nil
	}

	chunks := make([]*domain.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = &domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    text,
			CreatedAt:  now,
		}
	}
	if err := s.chunks.SaveBatch(ctx, chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	if err := s.queue.Enqueue(ctx, domain.NewEmbedDocumentTask(doc.ID)); err != nil {
		return nil, fmt.Errorf("enqueue embed task: %w", err)
	}

	s.logger.Info("document ingested",
		"document_id", doc.ID,
		"tier", doc.Tier,
		"chunks", len(chunks),
	)
	return doc, nil
}

// Get retrieves a document by ID
func (s *documentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.documents.Get(ctx, id)
}

// GetWithChunks retrieves a document with its ordered chunks
func (s *documentService) GetWithChunks(ctx context.Context, id string) (*domain.DocumentWithChunks, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunks.GetByDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.DocumentWithChunks{
		Document: doc,
		Chunks:   chunks,
	}, nil
}

// List retrieves documents, optionally scoped to a tier
func (s *documentService) List(ctx context.Context, tier domain.Tier, limit, offset int) ([]*domain.Document, error) {
	if tier != "" && !tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, tier)
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.documents.ListByTier(ctx, tier, limit, offset)
}

// Delete removes the document and all its chunks
func (s *documentService) Delete(ctx context.Context, id string) error {
	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// Reprocess clears embeddings and schedules a fresh embedding run. The
// ingest lock in the worker keeps concurrent runs to at most one.
func (s *documentService) Reprocess(ctx context.Context, id string) error {
	if _, err := s.documents.Get(ctx, id); err != nil {
		return err
	}

	if err := s.chunks.ClearEmbeddings(ctx, id); err != nil {
		return fmt.Errorf("clear embeddings: %w", err)
	}
	if err := s.documents.UpdateStatus(ctx, id, domain.StatusPending, ""); err != nil {
		return fmt.Errorf("reset status: %w", err)
	}
	if err := s.queue.Enqueue(ctx, domain.NewEmbedDocumentTask(id)); err != nil {
		return fmt.Errorf("enqueue embed task: %w", err)
	}

	s.logger.Info("document reprocessing scheduled", "document_id", id)
	return nil
}
