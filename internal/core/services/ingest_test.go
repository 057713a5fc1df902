package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven/mocks"
)

type ingestFixture struct {
	orchestrator *IngestOrchestrator
	docs         *mocks.MockDocumentStore
	chunks       *mocks.MockChunkStore
	embedder     *mocks.MockEmbeddingService
	lock         *mocks.MockDistributedLock
}

func newIngestFixture() *ingestFixture {
	docs := mocks.NewMockDocumentStore()
	chunks := mocks.NewMockChunkStore(docs)
	embedder := mocks.NewMockEmbeddingService()
	lock := mocks.NewMockDistributedLock()
	return &ingestFixture{
		orchestrator: NewIngestOrchestrator(IngestOrchestratorConfig{
			DocumentStore: docs,
			ChunkStore:    chunks,
			Embedder:      embedder,
			Lock:          lock,
		}),
		docs:     docs,
		chunks:   chunks,
		embedder: embedder,
		lock:     lock,
	}
}

// seedPendingDoc stores a pending document with n unembedded chunks
func (f *ingestFixture) seedPendingDoc(t *testing.T, id string, n int) {
	t.Helper()
	now := time.Now()
	if err := f.docs.Save(context.Background(), &domain.Document{
		ID:        id,
		Title:     "doc " + id,
		Tier:      domain.TierA,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	chunks := make([]*domain.Chunk, n)
	for i := range chunks {
		chunks[i] = &domain.Chunk{
			ID:         id + "-c" + string(rune('0'+i)),
			DocumentID: id,
			Index:      i,
			Content:    "chunk content",
			CreatedAt:  now,
		}
	}
	if err := f.chunks.SaveBatch(context.Background(), chunks); err != nil {
		t.Fatalf("seed chunks: %v", err)
	}
}

func TestIngestOrchestrator_HappyPath(t *testing.T) {
	f := newIngestFixture()
	f.seedPendingDoc(t, "doc-1", 3)

	err := f.orchestrator.Process(context.Background(), domain.NewEmbedDocumentTask("doc-1"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	doc, _ := f.docs.Get(context.Background(), "doc-1")
	if doc.Status != domain.StatusCompleted {
		t.Errorf("expected status completed, got %s", doc.Status)
	}

	history := f.docs.StatusHistory["doc-1"]
	if len(history) != 2 || history[0] != domain.StatusProcessing || history[1] != domain.StatusCompleted {
		t.Errorf("unexpected status transitions: %v", history)
	}

	chunks, _ := f.chunks.GetByDocument(context.Background(), "doc-1")
	for i, c := range chunks {
		if !c.Embedded() {
			t.Errorf("chunk %d not embedded", i)
		}
		if len(c.Embedding) != f.embedder.Dimensions() {
			t.Errorf("chunk %d has %d dimensions, want %d", i, len(c.Embedding), f.embedder.Dimensions())
		}
	}

	if f.lock.IsHeld("ingest:doc-1") {
		t.Error("lock must be released after processing")
	}
}

func TestIngestOrchestrator_LockHeld(t *testing.T) {
	f := newIngestFixture()
	f.seedPendingDoc(t, "doc-1", 2)
	f.lock.Hold("ingest:doc-1")

	err := f.orchestrator.Process(context.Background(), domain.NewEmbedDocumentTask("doc-1"))
	if !errors.Is(err, domain.ErrIngestInProgress) {
		t.Fatalf("expected ErrIngestInProgress, got %v", err)
	}

	// The job must not have touched the document.
	doc, _ := f.docs.Get(context.Background(), "doc-1")
	if doc.Status != domain.StatusPending {
		t.Errorf("document status changed to %s while locked", doc.Status)
	}
	if f.embedder.EmbedCalls != 0 {
		t.Errorf("embedder called while locked")
	}
}

func TestIngestOrchestrator_MissingDocumentID(t *testing.T) {
	f := newIngestFixture()

	task := domain.NewEmbedDocumentTask("")
	if err := f.orchestrator.Process(context.Background(), task); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestOrchestrator_UnknownDocument(t *testing.T) {
	f := newIngestFixture()

	err := f.orchestrator.Process(context.Background(), domain.NewEmbedDocumentTask("ghost"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if f.lock.IsHeld("ingest:ghost") {
		t.Error("lock must be released on failure")
	}
}

func TestIngestOrchestrator_NoChunks(t *testing.T) {
	f := newIngestFixture()
	f.seedPendingDoc(t, "doc-1", 0)

	err := f.orchestrator.Process(context.Background(), domain.NewEmbedDocumentTask("doc-1"))
	if !errors.Is(err, domain.ErrIngestion) {
		t.Fatalf("expected ErrIngestion, got %v", err)
	}

	doc, _ := f.docs.Get(context.Background(), "doc-1")
	if doc.Status != domain.StatusFailed {
		t.Errorf("expected status failed, got %s", doc.Status)
	}
	if doc.Error == "" {
		t.Error("expected failure reason on the document")
	}
}

func TestIngestOrchestrator_EmbedFailure(t *testing.T) {
	f := newIngestFixture()
	f.seedPendingDoc(t, "doc-1", 2)
	f.embedder.SetFailNext(true)

	err := f.orchestrator.Process(context.Background(), domain.NewEmbedDocumentTask("doc-1"))
	if !errors.Is(err, domain.ErrIngestion) {
		t.Fatalf("expected ErrIngestion, got %v", err)
	}

	doc, _ := f.docs.Get(context.Background(), "doc-1")
	if doc.Status != domain.StatusFailed {
		t.Errorf("expected status failed, got %s", doc.Status)
	}

	// All-or-nothing: no partial embeddings become visible.
	chunks, _ := f.chunks.GetByDocument(context.Background(), "doc-1")
	for i, c := range chunks {
		if c.Embedded() {
			t.Errorf("chunk %d embedded despite failed run", i)
		}
	}
	if f.lock.IsHeld("ingest:doc-1") {
		t.Error("lock must be released after a failed run")
	}
}

// panicEmbedder panics on Embed to exercise the recovery path
type panicEmbedder struct {
	mocks.MockEmbeddingService
}

func (p *panicEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	panic("embedder blew up")
}

func TestIngestOrchestrator_PanicRecovery(t *testing.T) {
	docs := mocks.NewMockDocumentStore()
	chunks := mocks.NewMockChunkStore(docs)
	lock := mocks.NewMockDistributedLock()
	orchestrator := NewIngestOrchestrator(IngestOrchestratorConfig{
		DocumentStore: docs,
		ChunkStore:    chunks,
		Embedder:      &panicEmbedder{},
		Lock:          lock,
	})

	f := &ingestFixture{docs: docs, chunks: chunks, lock: lock}
	f.seedPendingDoc(t, "doc-1", 2)

	err := orchestrator.Process(context.Background(), domain.NewEmbedDocumentTask("doc-1"))
	if !errors.Is(err, domain.ErrIngestion) {
		t.Fatalf("expected ErrIngestion after panic, got %v", err)
	}

	doc, _ := docs.Get(context.Background(), "doc-1")
	if doc.Status != domain.StatusFailed {
		t.Errorf("expected status failed after panic, got %s", doc.Status)
	}
	if lock.IsHeld("ingest:doc-1") {
		t.Error("lock must be released even after a panic")
	}
}

func TestIngestOrchestrator_Reentry(t *testing.T) {
	f := newIngestFixture()
	f.seedPendingDoc(t, "doc-1", 2)

	if err := f.orchestrator.Process(context.Background(), domain.NewEmbedDocumentTask("doc-1")); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	// The lock is free again, so a reprocess run can proceed.
	if err := f.orchestrator.Process(context.Background(), domain.NewEmbedDocumentTask("doc-1")); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if f.lock.AcquireCalls != 2 {
		t.Errorf("expected 2 lock acquisitions, got %d", f.lock.AcquireCalls)
	}
}
