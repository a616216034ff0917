package ollama

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Embedder implements llm.Embedder with one /api/embeddings call per text
type Embedder struct {
	*Provider
	model       string
	dimensions  int
	concurrency int
}

// NewEmbedder creates an embedder. concurrency bounds in-flight requests.
func NewEmbedder(p *Provider, model string, dimensions, concurrency int) *Embedder {
	if model == "" {
		model = "nomic-embed-text"
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Embedder{Provider: p, model: model, dimensions: dimensions, concurrency: concurrency}
}

// Dimensions returns the configured vector size
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns one vector per text
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			var resp embeddingResponse
			if err := e.post(gctx, "/api/embeddings", embeddingRequest{Model: e.model, Prompt: text}, &resp); err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			if len(resp.Embedding) == 0 {
				return fmt.Errorf("embed text %d: empty embedding", i)
			}
			if e.dimensions > 0 && len(resp.Embedding) != e.dimensions {
				return fmt.Errorf("embed text %d: got %d dimensions, want %d", i, len(resp.Embedding), e.dimensions)
			}
			out[i] = resp.Embedding
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
