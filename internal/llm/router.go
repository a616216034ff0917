package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoProvider is returned when the requested chat provider is unknown or
// has no credentials
var ErrNoProvider = errors.New("llm provider unavailable")

// Router resolves chat providers by name and remembers which embedder backs
// the vector index
type Router struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
	embedder        Embedder
}

// NewRouter creates a router that answers with defaultProvider when no name is given
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider adds or replaces a chat provider under its own name
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// UseEmbedder records the embedder used for ingestion and search
func (r *Router) UseEmbedder(e Embedder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedder = e
}

// GetProvider returns the named provider, or the default one when name is empty
func (r *Router) GetProvider(name string) (Provider, error) {
	if name == "" {
		name = r.defaultProvider
	}

	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrNoProvider, name)
	}
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%w: %q is not configured", ErrNoProvider, name)
	}
	return p, nil
}

// ProviderInfo describes one chat provider
type ProviderInfo struct {
	Name         string   `json:"name"`
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
	Default      bool     `json:"default"`
	Configured   bool     `json:"configured"`
}

// EmbeddingInfo describes the embedder behind the vector index
type EmbeddingInfo struct {
	Provider   string `json:"provider"`
	Dimensions int    `json:"dimensions"`
}

// Catalog is the admin view of the models this server can use
type Catalog struct {
	DefaultProvider string         `json:"default_provider"`
	Providers       []ProviderInfo `json:"providers"`
	Embedding       *EmbeddingInfo `json:"embedding,omitempty"`
}

// Catalog lists every registered provider sorted by name
func (r *Router) Catalog() Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := Catalog{
		DefaultProvider: r.defaultProvider,
		Providers:       make([]ProviderInfo, 0, len(r.providers)),
	}
	for name, p := range r.providers {
		c.Providers = append(c.Providers, ProviderInfo{
			Name:         name,
			Models:       p.AvailableModels(),
			DefaultModel: p.DefaultModel(),
			Default:      name == r.defaultProvider,
			Configured:   p.IsConfigured(),
		})
	}
	sort.Slice(c.Providers, func(i, j int) bool { return c.Providers[i].Name < c.Providers[j].Name })

	if r.embedder != nil {
		c.Embedding = &EmbeddingInfo{
			Provider:   r.embedder.Name(),
			Dimensions: r.embedder.Dimensions(),
		}
	}
	return c
}
