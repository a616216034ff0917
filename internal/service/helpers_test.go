package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/ingest"
	"github.com/Rrens/rag-agent/internal/llm"
	"github.com/Rrens/rag-agent/internal/repository/sqlite"
	"github.com/Rrens/rag-agent/internal/security"
	"github.com/Rrens/rag-agent/internal/uploads"
	"github.com/Rrens/rag-agent/internal/vectorstore"
	"github.com/Rrens/rag-agent/internal/vectorstore/file"
)

// letterEmbedder embeds text as letter frequencies
type letterEmbedder struct{}

func (letterEmbedder) Name() string    { return "letters" }
func (letterEmbedder) Dimensions() int { return 26 }

func (letterEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 26)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

// stack wires the services over sqlite, a temp upload dir and a file index
type stack struct {
	agents   *AgentService
	sessions *SessionService
	chat     *ChatService
	index    *vectorstore.Store
	uploads  *uploads.Store
	provider *MockProvider
}

func newStack(t *testing.T, opts ...func(*AgentServiceConfig)) *stack {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.Open(context.Background(), filepath.Join(dir, "rag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	files, err := uploads.NewStore(filepath.Join(dir, "uploads"), 1<<20)
	require.NoError(t, err)

	index := vectorstore.NewStore(file.NewBackend(filepath.Join(dir, "index.gob")), letterEmbedder{}, vectorstore.Options{})

	splitter, err := ingest.NewRecursiveSplitter(1000, 200)
	require.NoError(t, err)

	hasher, err := security.NewTokenHasher(security.DeriveKey("test-secret", "agent-token-hash"))
	require.NoError(t, err)
	encryptor, err := security.NewEncryptor(security.DeriveKey("test-secret", "agent-token-cipher"))
	require.NoError(t, err)

	sessions := NewSessionService(sqlite.NewSessionRepository(db))
	cfg := AgentServiceConfig{
		Agents:    sqlite.NewAgentRepository(db),
		Sessions:  sessions,
		Index:     index,
		Ingester:  ingest.NewIngestor(ingest.NewDefaultRegistry(), splitter, index),
		Files:     files,
		Hasher:    hasher,
		Encryptor: encryptor,
		MaxFiles:  20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	agents := NewAgentService(cfg)

	provider := new(MockProvider)
	router := llm.NewRouter("mock")
	router.RegisterProvider(provider)

	return &stack{
		agents:   agents,
		sessions: sessions,
		chat:     NewChatService(agents, sessions, index, router, ChatOptions{}),
		index:    index,
		uploads:  files,
		provider: provider,
	}
}

// memAgentCache is an in-process AgentCache
type memAgentCache struct {
	mu     sync.Mutex
	agents map[string]domain.Agent
}

func newMemAgentCache() *memAgentCache {
	return &memAgentCache{agents: make(map[string]domain.Agent)}
}

func (c *memAgentCache) Get(_ context.Context, tokenHash string) (*domain.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	agent, ok := c.agents[tokenHash]
	if !ok {
		return nil, nil
	}
	return &agent, nil
}

func (c *memAgentCache) Set(_ context.Context, agent *domain.Agent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents[agent.TokenHash] = *agent
	return nil
}

func (c *memAgentCache) Invalidate(_ context.Context, tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.agents, tokenHash)
	return nil
}

// hookedAgentRepository runs beforeDelete ahead of the wrapped Delete
type hookedAgentRepository struct {
	domain.AgentRepository
	beforeDelete func()
}

func (h *hookedAgentRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if h.beforeDelete != nil {
		h.beforeDelete()
	}
	return h.AgentRepository.Delete(ctx, id)
}
