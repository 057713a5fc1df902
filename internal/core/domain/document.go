package domain

import "time"

// Tier is the priority/trust level of a knowledge document.
// Tier A content is the most trusted and is searched first.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// TiersByPriority lists tiers from most to least trusted.
var TiersByPriority = []Tier{TierA, TierB, TierC}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierA || t == TierB || t == TierC
}

// ProcessingStatus represents the embedding pipeline state of a document
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Document represents a knowledge base document.
// Chunking happens at ingest; embeddings are filled in by the background
// ingest worker, which advances Status pending -> processing -> completed
// (or failed, all-or-nothing per document).
type Document struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Tier      Tier             `json:"tier"`
	Status    ProcessingStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Chunk is a bounded segment of a document's text, the unit of embedding
// and retrieval. A chunk without an embedding is not eligible for search.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"` // zero-based position within the document
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Embedded reports whether the chunk carries an embedding vector.
func (c *Chunk) Embedded() bool {
	return len(c.Embedding) > 0
}

// DocumentWithChunks combines a document with its ordered chunks
type DocumentWithChunks struct {
	Document *Document `json:"document"`
	Chunks   []*Chunk  `json:"chunks"`
}
