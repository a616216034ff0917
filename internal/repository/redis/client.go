// Package redis holds the Redis-backed session store, agent cache and rate limiter.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/rag-agent/internal/config"
)

// Client wraps the Redis client and namespaces every key it hands out
type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return NewClientFromRedis(rdb, cfg.KeyPrefix), nil
}

// NewClientFromRedis wraps an existing go-redis client. A non-empty
// namespace is prepended to every key, followed by a colon.
func NewClientFromRedis(rdb *redis.Client, namespace string) *Client {
	namespace = strings.TrimSuffix(namespace, ":")
	if namespace != "" {
		namespace += ":"
	}
	return &Client{rdb: rdb, namespace: namespace}
}

// key joins parts with colons under the client namespace
func (c *Client) key(parts ...string) string {
	return c.namespace + strings.Join(parts, ":")
}

// Ping verifies Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
