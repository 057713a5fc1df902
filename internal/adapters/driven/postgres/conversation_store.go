package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ConversationStore = (*ConversationStore)(nil)
	_ driven.UserStatsStore    = (*UserStatsStore)(nil)
)

// ConversationStore implements driven.ConversationStore using PostgreSQL.
// Records are append-only; there is no update path.
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a new ConversationStore
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Append inserts a conversation record
func (s *ConversationStore) Append(ctx context.Context, rec *domain.ConversationRecord) error {
	sourcesJSON, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	query := `
		INSERT INTO conversations (
			id, user_id, question, answer, source, confidence, sources,
			external_api, latency_ms, platform, session_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Question,
		rec.Answer,
		string(rec.Source),
		rec.Confidence,
		sourcesJSON,
		rec.ExternalAPI,
		rec.LatencyMS,
		rec.Platform,
		rec.SessionID,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	return nil
}

// ListSince returns records created at or after start, oldest first
func (s *ConversationStore) ListSince(ctx context.Context, start time.Time) ([]*domain.ConversationRecord, error) {
	query := `
		SELECT id, user_id, question, answer, source, confidence, sources,
		       external_api, latency_ms, platform, session_id, created_at
		FROM conversations
		WHERE created_at >= $1
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// List returns a filtered page of records, newest first
func (s *ConversationStore) List(ctx context.Context, filter domain.RecordFilter) (*domain.RecordPage, error) {
	where := " WHERE 1=1"
	args := []any{}
	argIndex := 1

	if filter.UserID != "" {
		where += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, filter.UserID)
		argIndex++
	}
	if filter.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", argIndex)
		args = append(args, string(filter.Source))
		argIndex++
	}
	if filter.Start != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.Start)
		argIndex++
	}
	if filter.End != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, *filter.End)
		argIndex++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (question ILIKE $%d OR answer ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}

	query := `
		SELECT id, user_id, question, answer, source, confidence, sources,
		       external_api, latency_ms, platform, session_id, created_at
		FROM conversations` + where +
		fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	return &domain.RecordPage{
		Records: records,
		Page:    filter.Page,
		Limit:   filter.Limit,
		Total:   total,
		Pages:   (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func scanRecords(rows *sql.Rows) ([]*domain.ConversationRecord, error) {
	var records []*domain.ConversationRecord
	for rows.Next() {
		var rec domain.ConversationRecord
		var sourcesJSON []byte

		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Question,
			&rec.Answer,
			&rec.Source,
			&rec.Confidence,
			&sourcesJSON,
			&rec.ExternalAPI,
			&rec.LatencyMS,
			&rec.Platform,
			&rec.SessionID,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(sourcesJSON) > 0 {
			if err := json.Unmarshal(sourcesJSON, &rec.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// UserStatsStore implements driven.UserStatsStore using PostgreSQL
type UserStatsStore struct {
	db *DB
}

// NewUserStatsStore creates a new UserStatsStore
func NewUserStatsStore(db *DB) *UserStatsStore {
	return &UserStatsStore{db: db}
}

// IncrementQuestions bumps a user's question counter. The upsert is a single
// atomic statement, so concurrent increments never lose updates.
func (s *UserStatsStore) IncrementQuestions(ctx context.Context, userID string, at time.Time) error {
	query := `
		INSERT INTO user_stats (user_id, total_questions, last_active, created_at)
		VALUES ($1, 1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			total_questions = user_stats.total_questions + 1,
			last_active = EXCLUDED.last_active
	`

	_, err := s.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("increment user stats: %w", err)
	}

	return nil
}

// Get retrieves a user's aggregate counters
func (s *UserStatsStore) Get(ctx context.Context, userID string) (*domain.UserStats, error) {
	query := `
		SELECT user_id, total_questions, last_active, created_at
		FROM user_stats
		WHERE user_id = $1
	`

	var stats domain.UserStats
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID,
		&stats.TotalQuestions,
		&stats.LastActive,
		&stats.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
