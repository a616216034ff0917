// Package vectorstore embeds document chunks and answers similarity queries
// scoped to one agent.
package vectorstore

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/llm"
)

// Index is the vector index contract used by ingestion, chat and agent deletion
type Index interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, query, agentID string, k int) ([]domain.ScoredChunk, error)
	Purge(ctx context.Context, agentID string) error
}

// Record is a chunk together with its embedding
type Record struct {
	ID     uuid.UUID
	Vector []float32
	Chunk  domain.Chunk
}

// Backend persists records and ranks them against a query vector.
// Nearest may return candidates belonging to other agents; the Store filters.
type Backend interface {
	Upsert(ctx context.Context, records []Record) error
	Nearest(ctx context.Context, vector []float32, agentID string, limit int) ([]domain.ScoredChunk, error)
	DeleteByAgent(ctx context.Context, agentID string) (int, error)
}

// Options tunes embedding batches
type Options struct {
	BatchSize   int
	Concurrency int
}

// Store implements Index over any Backend
type Store struct {
	backend  Backend
	embedder llm.Embedder
	opts     Options
}

var _ Index = (*Store)(nil)

// NewStore creates a store
func NewStore(backend Backend, embedder llm.Embedder, opts Options) *Store {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Store{backend: backend, embedder: embedder, opts: opts}
}

// Add embeds and stores chunks. Duplicates are kept.
func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := llm.EmbedBatched(ctx, s.embedder, texts, s.opts.BatchSize, s.opts.Concurrency)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
	}

	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{ID: uuid.New(), Vector: vectors[i], Chunk: c}
	}

	if err := s.backend.Upsert(ctx, records); err != nil {
		return fmt.Errorf("failed to store %d chunks: %w", len(records), err)
	}

	log.Debug().
		Str("agent_id", chunks[0].Metadata.AgentID).
		Int("chunks", len(records)).
		Msg("Chunks indexed")
	return nil
}

// Search returns up to k chunks of agentID most similar to query. It ranks
// the global top 2k candidates first, then drops other agents' chunks.
func (s *Store) Search(ctx context.Context, query, agentID string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d query vectors", domain.ErrEmbeddingFailed, len(vectors))
	}

	candidates, err := s.backend.Nearest(ctx, vectors[0], agentID, 2*k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, k)
	for _, c := range candidates {
		if c.Metadata.AgentID != agentID {
			continue
		}
		results = append(results, c)
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Purge removes every chunk belonging to agentID
func (s *Store) Purge(ctx context.Context, agentID string) error {
	n, err := s.backend.DeleteByAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("failed to purge agent %s: %w", agentID, err)
	}
	log.Info().Str("agent_id", agentID).Int("removed", n).Msg("Agent chunks purged")
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when undefined
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
