package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChunkIndexer receives the chunks produced by ingestion
type ChunkIndexer interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
}

// Ingestor extracts, splits and indexes uploaded documents
type Ingestor struct {
	registry *Registry
	splitter *RecursiveSplitter
	index    ChunkIndexer
	now      func() time.Time
}

// NewIngestor creates a new ingestor
func NewIngestor(registry *Registry, splitter *RecursiveSplitter, index ChunkIndexer) *Ingestor {
	return &Ingestor{
		registry: registry,
		splitter: splitter,
		index:    index,
		now:      time.Now,
	}
}

// Supports reports whether fileName has an extension the ingestor can read
func (i *Ingestor) Supports(fileName string) error {
	ft, err := domain.FileTypeFromName(fileName)
	if err != nil {
		return err
	}
	if !i.registry.Supports(ft) {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, ft)
	}
	return nil
}

// Ingest indexes the document stored at path on behalf of agentID.
// fileName is the name recorded in chunk metadata. It returns the number of
// chunks indexed; an empty document yields zero chunks.
func (i *Ingestor) Ingest(ctx context.Context, path, fileName string, agentID uuid.UUID) (int, error) {
	fileType, err := domain.FileTypeFromName(fileName)
	if err != nil {
		return 0, err
	}

	extractor, err := i.registry.Get(fileType)
	if err != nil {
		return 0, err
	}

	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to extract %s: %w", domain.ErrIngestionFailed, fileName, err)
	}

	pieces := i.splitter.Split(text)
	if len(pieces) == 0 {
		log.Warn().
			Str("agent_id", agentID.String()).
			Str("file_name", fileName).
			Msg("No text extracted from document")
		return 0, nil
	}

	ts := i.now().UnixMilli()
	chunks := make([]domain.Chunk, len(pieces))
	for idx, piece := range pieces {
		chunks[idx] = domain.Chunk{
			Text: piece,
			Metadata: domain.ChunkMetadata{
				AgentID:    agentID.String(),
				FileType:   fileType,
				FileName:   fileName,
				Timestamp:  ts,
				ChunkSize:  i.splitter.ChunkSize(),
				ChunkIndex: idx,
			},
		}
	}

	if err := i.index.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("%w: failed to index %s: %w", domain.ErrIngestionFailed, fileName, err)
	}

	log.Info().
		Str("agent_id", agentID.String()).
		Str("file_name", fileName).
		Str("file_type", string(fileType)).
		Int("chunks", len(chunks)).
		Msg("Document ingested")

	return len(chunks), nil
}
