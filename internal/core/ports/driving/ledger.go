package driving

import (
	"context"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// LedgerService records answer outcomes and aggregates analytics
type LedgerService interface {
	// Record appends an immutable conversation record and atomically
	// updates the user's aggregate statistics (upsert semantics).
	Record(ctx context.Context, question, userID string, result *domain.AnswerResult, latency time.Duration, platform string) (*domain.ConversationRecord, error)

	// Analytics aggregates records created within [now - timeRange, now],
	// inclusive of the window start.
	Analytics(ctx context.Context, timeRange time.Duration) (*domain.Analytics, error)

	// TopQuestions groups records in the window by exact question text and
	// returns the limit most frequent, ties broken by natural record order.
	TopQuestions(ctx context.Context, timeRange time.Duration, limit int) ([]domain.QuestionCount, error)

	// List returns a filtered, paginated page of records
	List(ctx context.Context, filter domain.RecordFilter) (*domain.RecordPage, error)

	// UserStats retrieves a user's aggregate counters
	UserStats(ctx context.Context, userID string) (*domain.UserStats, error)
}
