package driven

import (
	"context"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// ConversationStore persists conversation records (append-only)
type ConversationStore interface {
	// Append inserts a record. Records are never updated or deleted.
	Append(ctx context.Context, rec *domain.ConversationRecord) error

	// ListSince returns all records with CreatedAt >= start, in insertion
	// order. Used by the ledger's analytics aggregation.
	ListSince(ctx context.Context, start time.Time) ([]*domain.ConversationRecord, error)

	// List returns a filtered, paginated page of records, newest first
	List(ctx context.Context, filter domain.RecordFilter) (*domain.RecordPage, error)
}

// UserStatsStore maintains per-user aggregate counters
type UserStatsStore interface {
	// IncrementQuestions atomically increments the user's question counter
	// and sets the last-active timestamp, creating the row if absent.
	// Implementations must use a single atomic upsert, not read-modify-write.
	IncrementQuestions(ctx context.Context, userID string, at time.Time) error

	// Get retrieves a user's stats
	Get(ctx context.Context, userID string) (*domain.UserStats, error)
}
