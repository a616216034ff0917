package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/rag-agent/internal/llm"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.System, "retrieved facts")
		// the leading assistant turn is dropped
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Write([]byte(`{"content":[{"type":"text","text":"Yes."}],"usage":{"input_tokens":10,"output_tokens":2}}`))
	}))
	defer srv.Close()

	p := NewProvider("key", "").WithBaseURL(srv.URL)
	resp, err := p.Generate(context.Background(), llm.Request{
		History:  []llm.ChatMessage{{Role: llm.RoleAssistant, Content: "Welcome"}},
		Question: "Is it?",
		Context:  "retrieved facts",
	}, "")

	require.NoError(t, err)
	assert.Equal(t, "Yes.", resp.Content)
	assert.Equal(t, 12, resp.TokensUsed)
}

func TestGenerate_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewProvider("key", "").WithBaseURL(srv.URL).Generate(context.Background(), llm.Request{Question: "q"}, "")

	assert.Error(t, err)
}
