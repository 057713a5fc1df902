package postgres

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
	"github.com/pgvector/pgvector-go"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore using PostgreSQL with a pgvector
// column for embeddings. Similarity scoring happens in-process: candidate
// chunks for a tier are loaded and ranked by dot product, which equals
// cosine similarity because embeddings are L2-normalized on write.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// SaveBatch saves multiple chunks in a transaction. Embeddings are left NULL;
// the ingest worker fills them via UpdateEmbeddings.
func (s *ChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO chunks (id, document_id, chunk_index, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				chunk_index = EXCLUDED.chunk_index,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			_, err = stmt.ExecContext(ctx,
				chunk.ID,
				chunk.DocumentID,
				chunk.Index,
				chunk.Content,
				vectorOrNull(chunk.Embedding),
				chunk.CreatedAt,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByDocument retrieves all chunks for a document in index order
func (s *ChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, content, embedding, created_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var emb nullVector
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Index,
			&chunk.Content,
			&emb,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if emb.Valid {
			chunk.Embedding = emb.Vector.Slice()
		}
		chunks = append(chunks, &chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return chunks, nil
}

// UpdateEmbeddings writes embeddings for a document's chunks in one
// transaction, so readers never observe a partially embedded document.
func (s *ChunkStore) UpdateEmbeddings(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `UPDATE chunks SET embedding = $1 WHERE id = $2 AND document_id = $3`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			_, err = stmt.ExecContext(ctx,
				pgvector.NewVector(chunk.Embedding),
				chunk.ID,
				documentID,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// ClearEmbeddings nulls out all embeddings for a document
func (s *ChunkStore) ClearEmbeddings(ctx context.Context, documentID string) error {
	query := `UPDATE chunks SET embedding = NULL WHERE document_id = $1`
	_, err := s.db.ExecContext(ctx, query, documentID)
	return err
}

// DeleteByDocument removes all chunks for a document
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	query := `DELETE FROM chunks WHERE document_id = $1`
	_, err := s.db.ExecContext(ctx, query, documentID)
	return err
}

// SimilaritySearch scores embedded chunks of completed documents in the
// given tier against the query vector, returning at most limit snippets at
// or above minScore, best first.
func (s *ChunkStore) SimilaritySearch(ctx context.Context, queryVector []float32, tier domain.Tier, minScore float64, limit int) ([]domain.Snippet, error) {
	query := `
		SELECT c.document_id, d.title, c.chunk_index, c.content, c.created_at, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.tier = $1
		  AND d.status = $2
		  AND c.embedding IS NOT NULL
	`

	rows, err := s.db.QueryContext(ctx, query, string(tier), string(domain.StatusCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []scoredChunk
	for rows.Next() {
		var c scoredChunk
		var emb pgvector.Vector
		if err := rows.Scan(&c.snippet.DocumentID, &c.snippet.Title, &c.snippet.ChunkIndex, &c.snippet.Content, &c.createdAt, &emb); err != nil {
			return nil, err
		}

		score := dot(queryVector, emb.Slice())
		if score < minScore {
			continue
		}
		c.snippet.Tier = tier
		c.snippet.Similarity = score
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rankSnippets(candidates, limit), nil
}

// scoredChunk pairs a candidate snippet with its insertion key, so ranking
// never depends on the row order the database happens to return.
type scoredChunk struct {
	snippet   domain.Snippet
	createdAt time.Time
}

// rankSnippets orders candidates by similarity descending. Ties keep chunk
// insertion order: created_at first, then chunk index within a document.
func rankSnippets(candidates []scoredChunk, limit int) []domain.Snippet {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.snippet.Similarity != b.snippet.Similarity {
			return a.snippet.Similarity > b.snippet.Similarity
		}
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.Before(b.createdAt)
		}
		if a.snippet.DocumentID != b.snippet.DocumentID {
			return a.snippet.DocumentID < b.snippet.DocumentID
		}
		return a.snippet.ChunkIndex < b.snippet.ChunkIndex
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]domain.Snippet, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.snippet)
	}
	return out
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// vectorOrNull maps an absent embedding to SQL NULL
func vectorOrNull(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// nullVector scans a nullable pgvector column
type nullVector struct {
	Vector pgvector.Vector
	Valid  bool
}

func (v *nullVector) Scan(src interface{}) error {
	if src == nil {
		v.Valid = false
		return nil
	}
	if err := v.Vector.Scan(src); err != nil {
		return err
	}
	v.Valid = true
	return nil
}
