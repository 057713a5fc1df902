package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
)

const (
	// ingestLockTTL bounds how long one embedding job may hold the lock
	ingestLockTTL = 10 * time.Minute

	// embedTimeout bounds the embedding call for one document
	embedTimeout = 2 * time.Minute
)

// IngestOrchestrator embeds a document's chunks in the background worker.
// A document's status moves pending -> processing -> completed, or failed
// on any chunk-embedding error (all-or-nothing: partial embeddings are
// never made visible). The distributed lock keeps embedding jobs to
// at most one in flight per document.
type IngestOrchestrator struct {
	documents driven.DocumentStore
	chunks    driven.ChunkStore
	embedder  driven.EmbeddingService
	lock      driven.DistributedLock
	logger    *slog.Logger
}

// IngestOrchestratorConfig holds dependencies for the orchestrator
type IngestOrchestratorConfig struct {
	DocumentStore driven.DocumentStore
	ChunkStore    driven.ChunkStore
	Embedder      driven.EmbeddingService
	Lock          driven.DistributedLock
	Logger        *slog.Logger
}

// NewIngestOrchestrator creates a new IngestOrchestrator
func NewIngestOrchestrator(cfg IngestOrchestratorConfig) *IngestOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestOrchestrator{
		documents: cfg.DocumentStore,
		chunks:    cfg.ChunkStore,
		embedder:  cfg.Embedder,
		lock:      cfg.Lock,
		logger:    logger,
	}
}

// Process handles one embed_document task. Errors are returned to the
// worker, which nacks the task for retry; a crash mid-task still leaves
// the document in failed, never pending forever.
func (o *IngestOrchestrator) Process(ctx context.Context, task *domain.Task) (err error) {
	docID := task.DocumentID()
	if docID == "" {
		return fmt.Errorf("%w: task %s has no document_id", domain.ErrInvalidInput, task.ID)
	}

	lockName := "ingest:" + docID
	acquired, err := o.lock.Acquire(ctx, lockName, ingestLockTTL)
	if err != nil {
		return fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: document %s", domain.ErrIngestInProgress, docID)
	}
	defer func() {
		if relErr := o.lock.Release(ctx, lockName); relErr != nil {
			o.logger.Warn("failed to release ingest lock", "document_id", docID, "error", relErr)
		}
	}()

	// A panicking embedding job must not leave the document stuck in
	// processing: mark it failed and surface the panic as a task error.
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			o.markFailed(docID, msg)
			err = fmt.Errorf("%w: %s", domain.ErrIngestion, msg)
		}
	}()

	if _, err := o.documents.Get(ctx, docID); err != nil {
		return fmt.Errorf("load document %s: %w", docID, err)
	}

	if err := o.documents.UpdateStatus(ctx, docID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	chunks, err := o.chunks.GetByDocument(ctx, docID)
	if err != nil {
		o.markFailed(docID, err.Error())
		return fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		o.markFailed(docID, "no chunks to embed")
		return fmt.Errorf("%w: document %s has no chunks", domain.ErrIngestion, docID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vectors, err := o.embedder.Embed(embedCtx, texts)
	if err != nil {
		o.markFailed(docID, err.Error())
		return fmt.Errorf("%w: %v", domain.ErrIngestion, err)
	}
	if len(vectors) != len(chunks) {
		msg := fmt.Sprintf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
		o.markFailed(docID, msg)
		return fmt.Errorf("%w: %s", domain.ErrIngestion, msg)
	}

	for i, c := range chunks {
		c.Embedding = vectors[i]
	}

	if err := o.chunks.UpdateEmbeddings(ctx, docID, chunks); err != nil {
		o.markFailed(docID, err.Error())
		return fmt.Errorf("store embeddings: %w", err)
	}

	if err := o.documents.UpdateStatus(ctx, docID, domain.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	o.logger.Info("document embedded",
		"document_id", docID,
		"chunks", len(chunks),
		"dimensions", o.embedder.Dimensions(),
	)
	return nil
}

// markFailed records a failed status. The update uses a background context
// so a cancelled task context cannot leave the document in processing.
func (o *IngestOrchestrator) markFailed(docID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.documents.UpdateStatus(ctx, docID, domain.StatusFailed, reason); err != nil {
		o.logger.Error("failed to mark document failed", "document_id", docID, "error", err)
	}
}
