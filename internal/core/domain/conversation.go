package domain

import "time"

// SourceRef records which chunk contributed to an answer
type SourceRef struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Tier       Tier    `json:"tier"`
}

// ConversationRecord is the persisted copy of an AnswerResult plus request
// metadata. Records are append-only: created once per answered question and
// never mutated afterwards.
type ConversationRecord struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Question    string       `json:"question"`
	Answer      string       `json:"answer"`
	Source      AnswerSource `json:"source"`
	Confidence  float64      `json:"confidence"`
	Sources     []SourceRef  `json:"sources,omitempty"`
	ExternalAPI string       `json:"external_api,omitempty"`
	LatencyMS   int64        `json:"latency_ms"`
	Platform    string       `json:"platform"`
	SessionID   string       `json:"session_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// UserStats holds per-user aggregate counters, updated by atomic upsert
// on every recorded conversation.
type UserStats struct {
	UserID         string    `json:"user_id"`
	TotalQuestions int64     `json:"total_questions"`
	LastActive     time.Time `json:"last_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecordFilter selects conversation records for listing
type RecordFilter struct {
	UserID string
	Source AnswerSource
	Start  *time.Time
	End    *time.Time
	Search string // substring match on question or answer
	Page   int
	Limit  int
}

// RecordPage is one page of conversation records
type RecordPage struct {
	Records []*ConversationRecord `json:"records"`
	Page    int                   `json:"page"`
	Limit   int                   `json:"limit"`
	Total   int                   `json:"total"`
	Pages   int                   `json:"pages"`
}

// QuestionCount is a question grouped by exact text with its frequency
type QuestionCount struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

// DailyCount is one calendar day of answer volume in the reporting timezone
type DailyCount struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Total    int    `json:"total"`
	RAG      int    `json:"rag"`
	External int    `json:"external"`
}

// Analytics aggregates conversation records within a time window
type Analytics struct {
	TotalCount      int                  `json:"total_count"`
	SourceBreakdown map[AnswerSource]int `json:"source_breakdown"`
	TopQuestions    []QuestionCount      `json:"top_questions"`
	AvgConfidence   float64              `json:"avg_confidence"`
	AvgLatencyMS    float64              `json:"avg_latency_ms"`
	Daily           []DailyCount         `json:"daily"`
}
