package llm_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/rag-agent/internal/llm"
)

type lengthEmbedder struct {
	mu       sync.Mutex
	batches  [][]string
	inFlight atomic.Int32
	peak     atomic.Int32
	failOn   string
}

func (e *lengthEmbedder) Name() string    { return "length" }
func (e *lengthEmbedder) Dimensions() int { return 1 }

func (e *lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}

	e.mu.Lock()
	e.batches = append(e.batches, texts)
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == e.failOn {
			return nil, errors.New("boom")
		}
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestEmbedBatched_PreservesOrder(t *testing.T) {
	e := &lengthEmbedder{}
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vecs, err := llm.EmbedBatched(context.Background(), e, texts, 2, 2)

	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Len(t, e.batches, 3)
	assert.LessOrEqual(t, e.peak.Load(), int32(2))
}

func TestEmbedBatched_Error(t *testing.T) {
	e := &lengthEmbedder{failOn: "ccc"}

	_, err := llm.EmbedBatched(context.Background(), e, []string{"a", "bb", "ccc"}, 1, 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEmbedBatched_Empty(t *testing.T) {
	vecs, err := llm.EmbedBatched(context.Background(), &lengthEmbedder{}, nil, 10, 2)

	require.NoError(t, err)
	assert.Nil(t, vecs)
}

type blockingEmbedder struct{ lengthEmbedder }

func (e *blockingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	e := llm.WithTimeout(&blockingEmbedder{}, 20*time.Millisecond)

	_, err := e.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "length", e.Name())

	plain := &lengthEmbedder{}
	assert.Same(t, plain, llm.WithTimeout(plain, 0))
}
