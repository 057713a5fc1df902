package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven/mocks"
	"github.com/kaset-ai/kaset-core/internal/core/services"
)

// workerFixture wires a worker to in-memory dependencies
type workerFixture struct {
	worker *Worker
	queue  *mocks.MockTaskQueue
	docs   *mocks.MockDocumentStore
	chunks *mocks.MockChunkStore
	lock   *mocks.MockDistributedLock
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	docs := mocks.NewMockDocumentStore()
	chunks := mocks.NewMockChunkStore(docs)
	lock := mocks.NewMockDistributedLock()
	queue := mocks.NewMockTaskQueue()

	orchestrator := services.NewIngestOrchestrator(services.IngestOrchestratorConfig{
		DocumentStore: docs,
		ChunkStore:    chunks,
		Embedder:      mocks.NewMockEmbeddingService(),
		Lock:          lock,
		Logger:        slog.Default(),
	})

	return &workerFixture{
		worker: NewWorker(WorkerConfig{
			TaskQueue:    queue,
			Orchestrator: orchestrator,
		}),
		queue:  queue,
		docs:   docs,
		chunks: chunks,
		lock:   lock,
	}
}

// seedDocument stores a pending document with one unembedded chunk
func (f *workerFixture) seedDocument(t *testing.T, docID string) {
	t.Helper()
	ctx := context.Background()

	if err := f.docs.Save(ctx, &domain.Document{
		ID:     docID,
		Title:  "การให้น้ำมันสำปะหลัง",
		Tier:   domain.TierA,
		Status: domain.StatusPending,
	}); err != nil {
		t.Fatalf("failed to seed document: %v", err)
	}
	if err := f.chunks.SaveBatch(ctx, []*domain.Chunk{
		{ID: docID + "-c0", DocumentID: docID, Index: 0, Content: "รดน้ำทุกสามวัน"},
	}); err != nil {
		t.Fatalf("failed to seed chunks: %v", err)
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: mocks.NewMockTaskQueue()})

	if w.concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5 {
		t.Errorf("expected default dequeue timeout 5, got %d", w.dequeueTimeout)
	}
	if w.logger == nil {
		t.Error("expected logger to default")
	}
}

func TestNewWorker_Config(t *testing.T) {
	w := NewWorker(WorkerConfig{
		TaskQueue:      mocks.NewMockTaskQueue(),
		Concurrency:    4,
		DequeueTimeout: 10,
	})

	if w.concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 10 {
		t.Errorf("expected dequeue timeout 10, got %d", w.dequeueTimeout)
	}
}

func TestWorker_StartStop(t *testing.T) {
	f := newWorkerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.worker.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	// Starting twice is a no-op
	if err := f.worker.Start(ctx); err != nil {
		t.Fatalf("second start returned error: %v", err)
	}

	f.worker.Stop()

	// Stopping twice is a no-op
	f.worker.Stop()
}

func TestWorker_ProcessTask_EmbedDocument(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.seedDocument(t, "doc-1")
	task := domain.NewEmbedDocumentTask("doc-1")
	if err := f.queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	dequeued, err := f.queue.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("failed to dequeue: %v", err)
	}
	f.worker.processTask(ctx, dequeued, slog.Default())

	if len(f.queue.Acked) != 1 || f.queue.Acked[0] != task.ID {
		t.Errorf("expected task %s acked, got %v", task.ID, f.queue.Acked)
	}

	doc, err := f.docs.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("failed to load document: %v", err)
	}
	if doc.Status != domain.StatusCompleted {
		t.Errorf("expected document completed, got %s", doc.Status)
	}
}

func TestWorker_ProcessTask_UnknownType(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	task := domain.NewTask("rebuild_index", nil)
	if err := f.queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	dequeued, _ := f.queue.DequeueWithTimeout(ctx, 1)
	f.worker.processTask(ctx, dequeued, slog.Default())

	if len(f.queue.Nacked) != 1 {
		t.Errorf("expected 1 nack for unknown task type, got %d", len(f.queue.Nacked))
	}
	if len(f.queue.Acked) != 0 {
		t.Errorf("expected no acks, got %d", len(f.queue.Acked))
	}
}

func TestWorker_ProcessTask_LockHeldNacks(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.seedDocument(t, "doc-1")
	f.lock.Hold("ingest:doc-1")

	task := domain.NewEmbedDocumentTask("doc-1")
	if err := f.queue.Enqueue(ctx, task); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	dequeued, _ := f.queue.DequeueWithTimeout(ctx, 1)
	f.worker.processTask(ctx, dequeued, slog.Default())

	if len(f.queue.Nacked) != 1 {
		t.Errorf("expected nack while lock is held, got %d", len(f.queue.Nacked))
	}

	// The document must be untouched by the losing worker
	doc, _ := f.docs.Get(ctx, "doc-1")
	if doc.Status != domain.StatusPending {
		t.Errorf("expected document still pending, got %s", doc.Status)
	}
}

func TestWorker_ProcessLoop_DrainsQueue(t *testing.T) {
	f := newWorkerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.seedDocument(t, "doc-1")
	f.seedDocument(t, "doc-2")
	_ = f.queue.Enqueue(ctx, domain.NewEmbedDocumentTask("doc-1"))
	_ = f.queue.Enqueue(ctx, domain.NewEmbedDocumentTask("doc-2"))

	if err := f.worker.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.queue.AckedCount() == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.worker.Stop()

	if len(f.queue.Acked) != 2 {
		t.Fatalf("expected 2 acked tasks, got %d", len(f.queue.Acked))
	}
	for _, id := range []string{"doc-1", "doc-2"} {
		doc, _ := f.docs.Get(ctx, id)
		if doc.Status != domain.StatusCompleted {
			t.Errorf("expected %s completed, got %s", id, doc.Status)
		}
	}
}

func TestWorker_ContextCancellation(t *testing.T) {
	f := newWorkerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.worker.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	cancel()

	done := make(chan struct{})
	go func() {
		f.worker.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorker_Health(t *testing.T) {
	f := newWorkerFixture(t)

	health := f.worker.Health(context.Background())
	if health.Running {
		t.Error("expected worker not running before Start")
	}
	if !health.QueueHealth {
		t.Error("expected healthy queue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.worker.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer f.worker.Stop()

	health = f.worker.Health(context.Background())
	if !health.Running {
		t.Error("expected worker running after Start")
	}
}
