package openai

import (
	"context"
	"fmt"
)

// Embedder implements llm.Embedder against the /embeddings endpoint
type Embedder struct {
	*Provider
	model      string
	dimensions int
}

// NewEmbedder creates an embedder sharing the provider's credentials
func NewEmbedder(p *Provider, model string, dimensions int) *Embedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Embedder{Provider: p, model: model, dimensions: dimensions}
}

// Dimensions returns the configured vector size
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per text
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	if err := e.post(ctx, "/embeddings", embeddingRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned out-of-range embedding index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
