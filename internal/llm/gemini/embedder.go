package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// Embedder implements llm.Embedder with batched embedding requests
type Embedder struct {
	*Provider
	model      string
	dimensions int
}

func NewEmbedder(p *Provider, model string, dimensions int) *Embedder {
	if model == "" {
		model = "text-embedding-004"
	}
	return &Embedder{Provider: p, model: model, dimensions: dimensions}
}

func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	client, err := e.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	em := client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding error: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
