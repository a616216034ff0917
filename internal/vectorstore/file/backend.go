// Package file keeps the whole vector index in a single gob file.
package file

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/vectorstore"
)

// Backend implements vectorstore.Backend on a local file. One mutex guards
// every load, mutation and save.
type Backend struct {
	path string

	mu      sync.Mutex
	loaded  bool
	records []vectorstore.Record
}

var _ vectorstore.Backend = (*Backend)(nil)

type snapshot struct {
	Version int
	Records []vectorstore.Record
}

const snapshotVersion = 1

// NewBackend creates a backend persisting to path. Nothing is read until first use.
func NewBackend(path string) *Backend {
	return &Backend{path: path}
}

// Upsert appends records and rewrites the index file
func (b *Backend) Upsert(_ context.Context, records []vectorstore.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ensureLoaded()

	next := make([]vectorstore.Record, 0, len(b.records)+len(records))
	next = append(next, b.records...)
	next = append(next, records...)

	if err := b.save(next); err != nil {
		return err
	}
	b.records = next
	return nil
}

// Nearest ranks all records by cosine similarity and returns the top limit,
// regardless of agent
func (b *Backend) Nearest(_ context.Context, vector []float32, _ string, limit int) ([]domain.ScoredChunk, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ensureLoaded()
	if len(b.records) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	scored := make([]domain.ScoredChunk, len(b.records))
	for i, r := range b.records {
		scored[i] = domain.ScoredChunk{Chunk: r.Chunk, Score: vectorstore.Cosine(vector, r.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// DeleteByAgent rewrites the index without agentID's records
func (b *Backend) DeleteByAgent(_ context.Context, agentID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ensureLoaded()

	kept := make([]vectorstore.Record, 0, len(b.records))
	for _, r := range b.records {
		if r.Chunk.Metadata.AgentID != agentID {
			kept = append(kept, r)
		}
	}

	removed := len(b.records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := b.save(kept); err != nil {
		return 0, err
	}
	b.records = kept
	return removed, nil
}

// Len reports the number of stored records
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureLoaded()
	return len(b.records)
}

// ensureLoaded reads the file once. A missing or unreadable file is an empty index.
func (b *Backend) ensureLoaded() {
	if b.loaded {
		return
	}
	b.loaded = true

	data, err := os.ReadFile(b.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", b.path).Msg("Vector index unreadable, starting empty")
		}
		return
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		log.Warn().Err(err).Str("path", b.path).Msg("Vector index corrupt, starting empty")
		return
	}
	if snap.Version != snapshotVersion {
		log.Warn().Int("version", snap.Version).Str("path", b.path).Msg("Vector index version mismatch, starting empty")
		return
	}
	b.records = snap.Records
}

// save writes to a temp file in the same directory and renames it into place
func (b *Backend) save(records []vectorstore.Record) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snapshot{Version: snapshotVersion, Records: records}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("failed to replace index: %w", err)
	}
	return nil
}
