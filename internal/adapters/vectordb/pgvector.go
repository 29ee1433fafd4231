package vectordb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// PGVectorStore implements ports.VectorStore on PostgreSQL with pgvector.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
}

// NewPGVectorStore creates a store over table. Call Init before first use.
func NewPGVectorStore(pool *pgxpool.Pool, table string, dimension int) *PGVectorStore {
	if table == "" {
		table = "document_chunks"
	}
	return &PGVectorStore{pool: pool, table: pgx.Identifier{table}.Sanitize(), dimension: dimension}
}

// Init creates the extension and table when missing.
func (s *PGVectorStore) Init(ctx context.Context) error {
	if s.dimension <= 0 {
		return fmt.Errorf("pgvector: invalid dimension %d", s.dimension)
	}
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table, s.dimension))
	if err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	return nil
}

// Upsert inserts chunks, updating rows that already exist.
func (s *PGVectorStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta, err := json.Marshal(chunkMetadata(c))
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		batch.Queue(fmt.Sprintf(
			`INSERT INTO %s (id, document_id, content, chunk_index, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET
			   document_id = EXCLUDED.document_id,
			   content = EXCLUDED.content,
			   chunk_index = EXCLUDED.chunk_index,
			   metadata = EXCLUDED.metadata,
			   embedding = EXCLUDED.embedding`, s.table),
			c.ID, c.DocumentID, c.Content, c.Index, meta, pgvector.NewVector(c.Embedding),
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}
	return nil
}

// Query orders rows by cosine distance.
func (s *PGVectorStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]entities.Match, error) {
	vec := pgvector.NewVector(vector)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, metadata, 1 - (embedding <=> $1) AS similarity
		 FROM %s
		 ORDER BY embedding <=> $1
		 LIMIT $2`, s.table),
		vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var matches []entities.Match
	for rows.Next() {
		var m entities.Match
		var meta []byte
		if err := rows.Scan(&m.ID, &meta, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if includeMetadata {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", m.ID, err)
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Delete removes every chunk of documentID.
func (s *PGVectorStore) Delete(ctx context.Context, documentID string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, s.table), documentID); err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	return nil
}

// Clear truncates the table.
func (s *PGVectorStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, s.table)); err != nil {
		return fmt.Errorf("truncating chunks: %w", err)
	}
	return nil
}
