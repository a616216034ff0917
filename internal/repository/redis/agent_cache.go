package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Rrens/rag-agent/internal/domain"
)

const agentCacheTTL = 5 * time.Minute

// AgentCache caches agent records by token hash so authenticated requests
// skip the agent store
type AgentCache struct {
	client *Client
	ttl    time.Duration
}

// NewAgentCache creates a new agent cache
func NewAgentCache(client *Client) *AgentCache {
	return &AgentCache{client: client, ttl: agentCacheTTL}
}

func (c *AgentCache) key(tokenHash string) string {
	return c.client.key("agent_token", tokenHash)
}

type cachedAgent struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	TokenHash   string             `json:"token_hash"`
	TokenCipher string             `json:"token_cipher"`
	TokenHint   string             `json:"token_hint"`
	Files       []domain.AgentFile `json:"files"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Get returns the cached agent, or nil on a miss
func (c *AgentCache) Get(ctx context.Context, tokenHash string) (*domain.Agent, error) {
	data, err := c.client.rdb.Get(ctx, c.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read agent cache: %w", err)
	}

	var ca cachedAgent
	if err := json.Unmarshal(data, &ca); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	return &domain.Agent{
		ID:          ca.ID,
		Name:        ca.Name,
		TokenHash:   ca.TokenHash,
		TokenCipher: ca.TokenCipher,
		TokenHint:   ca.TokenHint,
		Files:       ca.Files,
		CreatedAt:   ca.CreatedAt,
	}, nil
}

// Set stores the agent under its token hash
func (c *AgentCache) Set(ctx context.Context, agent *domain.Agent) error {
	data, err := json.Marshal(cachedAgent{
		ID:          agent.ID,
		Name:        agent.Name,
		TokenHash:   agent.TokenHash,
		TokenCipher: agent.TokenCipher,
		TokenHint:   agent.TokenHint,
		Files:       agent.Files,
		CreatedAt:   agent.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}
	return c.client.rdb.Set(ctx, c.key(agent.TokenHash), data, c.ttl).Err()
}

// Invalidate drops the cached entry for a token hash
func (c *AgentCache) Invalidate(ctx context.Context, tokenHash string) error {
	return c.client.rdb.Del(ctx, c.key(tokenHash)).Err()
}
