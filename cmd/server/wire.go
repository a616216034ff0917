package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/api"
	"github.com/Rrens/rag-agent/internal/api/handler"
	"github.com/Rrens/rag-agent/internal/config"
	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/ingest"
	"github.com/Rrens/rag-agent/internal/llm"
	"github.com/Rrens/rag-agent/internal/llm/anthropic"
	"github.com/Rrens/rag-agent/internal/llm/gemini"
	"github.com/Rrens/rag-agent/internal/llm/ollama"
	"github.com/Rrens/rag-agent/internal/llm/openai"
	"github.com/Rrens/rag-agent/internal/repository/mongo"
	"github.com/Rrens/rag-agent/internal/repository/postgres"
	"github.com/Rrens/rag-agent/internal/repository/redis"
	"github.com/Rrens/rag-agent/internal/repository/sqlite"
	"github.com/Rrens/rag-agent/internal/security"
	"github.com/Rrens/rag-agent/internal/service"
	"github.com/Rrens/rag-agent/internal/uploads"
	"github.com/Rrens/rag-agent/internal/vectorstore"
	"github.com/Rrens/rag-agent/internal/vectorstore/file"
	"github.com/Rrens/rag-agent/internal/vectorstore/pgvector"
	"github.com/Rrens/rag-agent/internal/vectorstore/qdrant"
)

// application holds the wired dependencies and the connections to close
type application struct {
	deps    api.Dependencies
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// connections opens each external store at most once
type connections struct {
	cfg    *config.Config
	app    *application
	checks map[string]handler.Pinger

	sqlite   *sqlite.DB
	postgres *postgres.DB
	mongo    *mongo.Client
	redis    *redis.Client
}

func (c *connections) sqliteDB(ctx context.Context) (*sqlite.DB, error) {
	if c.sqlite == nil {
		db, err := sqlite.Open(ctx, c.cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		c.sqlite = db
		c.app.closers = append(c.app.closers, func() { db.Close() })
		c.checks["sqlite"] = db.PingContext
	}
	return c.sqlite, nil
}

func (c *connections) postgresDB(ctx context.Context) (*postgres.DB, error) {
	if c.postgres == nil {
		db, err := postgres.Open(ctx, c.cfg.Database, c.cfg.VectorStore.Type == "pgvector")
		if err != nil {
			return nil, err
		}
		c.postgres = db
		c.app.closers = append(c.app.closers, db.Close)
		c.checks["postgres"] = db.Ping
	}
	return c.postgres, nil
}

func (c *connections) mongoClient(ctx context.Context) (*mongo.Client, error) {
	if c.mongo == nil {
		client, err := mongo.Connect(ctx, c.cfg.Mongo)
		if err != nil {
			return nil, err
		}
		c.mongo = client
		c.app.closers = append(c.app.closers, func() { client.Close() })
		c.checks["mongo"] = client.Ping
	}
	return c.mongo, nil
}

func (c *connections) redisClient(ctx context.Context) (*redis.Client, error) {
	if c.redis == nil {
		client, err := redis.NewClient(ctx, c.cfg.Redis)
		if err != nil {
			return nil, err
		}
		c.redis = client
		c.app.closers = append(c.app.closers, func() { client.Close() })
		c.checks["redis"] = client.Ping
	}
	return c.redis, nil
}

func wire(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{}
	conns := &connections{cfg: cfg, app: app, checks: map[string]handler.Pinger{}}

	agentRepo, err := agentRepository(ctx, conns)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("agent store: %w", err)
	}
	sessionRepo, err := sessionRepository(ctx, conns)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("session store: %w", err)
	}

	llmRouter := newLLMRouter(cfg)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	llmRouter.UseEmbedder(embedder)
	backend, err := vectorBackend(ctx, conns)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("vector store: %w", err)
	}
	index := vectorstore.NewStore(backend, llm.WithTimeout(embedder, cfg.Embedding.Timeout), vectorstore.Options{
		Concurrency: cfg.Embedding.Concurrency,
	})

	splitter, err := ingest.NewRecursiveSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		app.Close()
		return nil, err
	}
	files, err := uploads.NewStore(cfg.Ingest.UploadDir, cfg.Ingest.MaxUploadBytes)
	if err != nil {
		app.Close()
		return nil, err
	}

	secret := cfg.Auth.TokenKey
	if secret == "" {
		secret = cfg.Auth.JWTSecret
	}
	if secret == "" {
		app.Close()
		return nil, fmt.Errorf("auth.token_key or auth.jwt_secret must be set")
	}
	hasher, err := security.NewTokenHasher(security.DeriveKey(secret, "agent-token-hash"))
	if err != nil {
		app.Close()
		return nil, err
	}
	encryptor, err := security.NewEncryptor(security.DeriveKey(secret, "agent-token-cipher"))
	if err != nil {
		app.Close()
		return nil, err
	}

	var (
		agentCache  service.AgentCache
		rateLimiter *redis.RateLimiter
	)
	if cfg.Security.RateLimit.Enabled || cfg.Storage.SessionDriver == "redis" {
		client, err := conns.redisClient(ctx)
		if err != nil {
			app.Close()
			return nil, err
		}
		agentCache = redis.NewAgentCache(client)
		if cfg.Security.RateLimit.Enabled {
			rateLimiter = redis.NewRateLimiter(client, cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
		}
	}

	sessions := service.NewSessionService(sessionRepo)
	agents := service.NewAgentService(service.AgentServiceConfig{
		Agents:    agentRepo,
		Sessions:  sessions,
		Index:     index,
		Ingester:  ingest.NewIngestor(ingest.NewDefaultRegistry(), splitter, index),
		Files:     files,
		Cache:     agentCache,
		Hasher:    hasher,
		Encryptor: encryptor,
		MaxFiles:  cfg.Ingest.MaxFiles,
	})
	chat := service.NewChatService(agents, sessions, index, llmRouter, service.ChatOptions{
		TopK:          cfg.Chat.TopK,
		HistoryWindow: cfg.Chat.HistoryWindow,
		LLMTimeout:    cfg.Chat.LLMTimeout,
		SystemPrompt:  cfg.Chat.SystemPrompt,
		Provider:      cfg.LLM.DefaultProvider,
		Model:         cfg.Chat.Model,
	})

	if cfg.Auth.AdminPasswordHash == "" {
		log.Warn().Msg("auth.admin_password_hash is empty, admin login is disabled")
	}

	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	app.deps = api.Dependencies{
		Agents:      agents,
		Sessions:    sessions,
		Chat:        chat,
		Auth:        service.NewAuthService(cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash, jwtManager),
		LLM:         llmRouter,
		JWT:         jwtManager,
		ReadyChecks: conns.checks,
	}
	if rateLimiter != nil {
		app.deps.RateLimiter = rateLimiter
	}
	return app, nil
}

func agentRepository(ctx context.Context, conns *connections) (domain.AgentRepository, error) {
	switch conns.cfg.Storage.Driver {
	case "", "sqlite":
		db, err := conns.sqliteDB(ctx)
		if err != nil {
			return nil, err
		}
		return sqlite.NewAgentRepository(db), nil
	case "postgres":
		db, err := conns.postgresDB(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewAgentRepository(db.Pool), nil
	case "mongo":
		client, err := conns.mongoClient(ctx)
		if err != nil {
			return nil, err
		}
		return mongo.NewAgentRepository(client), nil
	default:
		return nil, fmt.Errorf("unknown storage.driver %q", conns.cfg.Storage.Driver)
	}
}

func sessionRepository(ctx context.Context, conns *connections) (domain.SessionRepository, error) {
	switch conns.cfg.Storage.SessionDriver {
	case "", "sqlite":
		db, err := conns.sqliteDB(ctx)
		if err != nil {
			return nil, err
		}
		return sqlite.NewSessionRepository(db), nil
	case "postgres":
		db, err := conns.postgresDB(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewSessionRepository(db.Pool), nil
	case "redis":
		client, err := conns.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewSessionRepository(client), nil
	case "mongo":
		client, err := conns.mongoClient(ctx)
		if err != nil {
			return nil, err
		}
		return mongo.NewSessionRepository(client), nil
	default:
		return nil, fmt.Errorf("unknown storage.session_driver %q", conns.cfg.Storage.SessionDriver)
	}
}

func vectorBackend(ctx context.Context, conns *connections) (vectorstore.Backend, error) {
	cfg := conns.cfg
	switch cfg.VectorStore.Type {
	case "qdrant":
		backend, err := qdrant.NewBackend(cfg.VectorStore.Qdrant, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, err
		}
		conns.app.closers = append(conns.app.closers, func() { backend.Close() })
		if err := backend.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		conns.checks["qdrant"] = backend.Ping
		return backend, nil
	case "pgvector":
		db, err := conns.postgresDB(ctx)
		if err != nil {
			return nil, err
		}
		return pgvector.NewBackend(db.Pool), nil
	default:
		return file.NewBackend(cfg.VectorStore.Path), nil
	}
}

func newEmbedder(cfg *config.Config) (llm.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "openai":
		if cfg.LLM.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("embedding.provider openai needs llm.openai.api_key")
		}
		p := openai.NewProvider(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model, cfg.LLM.OpenAI.BaseURL)
		return openai.NewEmbedder(p, e.Model, e.Dimensions), nil
	case "ollama":
		p := ollama.NewProvider(cfg.LLM.Ollama.Host, cfg.LLM.Ollama.DefaultModel)
		return ollama.NewEmbedder(p, e.Model, e.Dimensions, e.Concurrency), nil
	case "gemini":
		if cfg.LLM.Gemini.APIKey == "" {
			return nil, fmt.Errorf("embedding.provider gemini needs llm.gemini.api_key")
		}
		return gemini.NewEmbedder(gemini.NewProvider(cfg.LLM.Gemini), e.Model, e.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding.provider %q", e.Provider)
	}
}

func newLLMRouter(cfg *config.Config) *llm.Router {
	router := llm.NewRouter(cfg.LLM.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.LLM.DefaultProvider)

	if cfg.LLM.Ollama.Host != "" {
		log.Info().Str("host", cfg.LLM.Ollama.Host).Msg("Registering Ollama provider")
		router.RegisterProvider(ollama.NewProvider(cfg.LLM.Ollama.Host, cfg.LLM.Ollama.DefaultModel))
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		router.RegisterProvider(openai.NewProvider(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model, cfg.LLM.OpenAI.BaseURL))
	}
	if cfg.LLM.Anthropic.APIKey != "" {
		router.RegisterProvider(anthropic.NewProvider(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model))
	}
	if cfg.LLM.Gemini.APIKey != "" {
		router.RegisterProvider(gemini.NewProvider(cfg.LLM.Gemini))
	}

	if _, err := router.GetProvider(""); err != nil {
		log.Warn().Err(err).Msg("Default LLM provider unavailable; chat requests will fail")
	}
	return router
}
