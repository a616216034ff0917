// Package pgvector stores chunk vectors in a PostgreSQL table with the
// pgvector extension.
package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/vectorstore"
)

// Backend implements vectorstore.Backend on the chunks table.
// The pool must have pgvector types registered.
type Backend struct {
	pool *pgxpool.Pool
}

var _ vectorstore.Backend = (*Backend)(nil)

// NewBackend creates a pgvector backend
func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

const insertChunk = `
	INSERT INTO chunks (id, agent_id, file_type, file_name, chunk_index, chunk_size, indexed_at, content, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// Upsert inserts all records in one batch
func (b *Backend) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		m := r.Chunk.Metadata
		batch.Queue(insertChunk,
			r.ID, m.AgentID, string(m.FileType), m.FileName, m.ChunkIndex, m.ChunkSize, m.Timestamp,
			r.Chunk.Text, pgvector.NewVector(r.Vector),
		)
	}

	if err := b.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert %d chunks: %w", len(records), err)
	}
	return nil
}

// Nearest orders the agent's chunks by cosine distance
func (b *Backend) Nearest(ctx context.Context, vector []float32, agentID string, limit int) ([]domain.ScoredChunk, error) {
	query := `
		SELECT agent_id, file_type, file_name, chunk_index, chunk_size, indexed_at, content,
		       1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE agent_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := b.pool.Query(ctx, query, pgvector.NewVector(vector), agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	out := []domain.ScoredChunk{}
	for rows.Next() {
		var (
			c        domain.ScoredChunk
			fileType string
			score    float64
		)
		if err := rows.Scan(
			&c.Metadata.AgentID,
			&fileType,
			&c.Metadata.FileName,
			&c.Metadata.ChunkIndex,
			&c.Metadata.ChunkSize,
			&c.Metadata.Timestamp,
			&c.Text,
			&score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Metadata.FileType = domain.FileType(fileType)
		c.Score = float32(score)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	return out, nil
}

// DeleteByAgent removes the agent's chunks
func (b *Backend) DeleteByAgent(ctx context.Context, agentID string) (int, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM chunks WHERE agent_id = $1`, agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
