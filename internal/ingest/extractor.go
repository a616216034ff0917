package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Rrens/rag-agent/internal/domain"
)

// Extractor turns a stored document into plain text
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorFunc adapts a function to Extractor
type ExtractorFunc func(ctx context.Context, path string) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Registry maps file types to extractors
type Registry struct {
	extractors map[domain.FileType]Extractor
	mu         sync.RWMutex
}

// NewRegistry creates an empty extractor registry
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[domain.FileType]Extractor),
	}
}

// Register binds an extractor to a file type, replacing any previous one
func (r *Registry) Register(fileType domain.FileType, extractor Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[fileType] = extractor
}

// Get returns the extractor for a file type
func (r *Registry) Get(fileType domain.FileType) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.extractors[fileType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, fileType)
	}
	return e, nil
}

// Supports reports whether fileType has a registered extractor
func (r *Registry) Supports(fileType domain.FileType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[fileType]
	return ok
}

// SupportedTypes returns the registered file types in sorted order
func (r *Registry) SupportedTypes() []domain.FileType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.FileType, 0, len(r.extractors))
	for ft := range r.extractors {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
