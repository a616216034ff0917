package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/rag-agent/internal/api/handler"
	customMiddleware "github.com/Rrens/rag-agent/internal/api/middleware"
	"github.com/Rrens/rag-agent/internal/config"
	"github.com/Rrens/rag-agent/internal/llm"
	"github.com/Rrens/rag-agent/internal/security"
	"github.com/Rrens/rag-agent/internal/service"
)

// Dependencies are the wired services the router serves
type Dependencies struct {
	Agents      *service.AgentService
	Sessions    *service.SessionService
	Chat        *service.ChatService
	Auth        *service.AuthService
	LLM         *llm.Router
	JWT         *security.JWTManager
	RateLimiter customMiddleware.Limiter
	ReadyChecks map[string]handler.Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	allowedOrigins := cfg.Server.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Agent-Token"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	sessionHandler := handler.NewSessionHandler(deps.Sessions)
	chatHandler := handler.NewChatHandler(deps.Chat)
	authHandler := handler.NewAuthHandler(deps.Auth)
	adminHandler := handler.NewAdminHandler(deps.Agents, deps.Sessions, cfg.Ingest.MaxFiles, cfg.Ingest.MaxUploadBytes)

	agentAuth := customMiddleware.NewAgentAuthMiddleware(deps.Agents)
	adminAuth := customMiddleware.NewAdminAuthMiddleware(deps.JWT)

	// Timeout is applied per group rather than globally so agent creation
	// can run under its own, longer budget
	timeout := func(next http.Handler) http.Handler { return next }
	if cfg.Server.MiddlewareTimeout > 0 {
		timeout = middleware.Timeout(cfg.Server.MiddlewareTimeout)
	}

	limit := func(next http.Handler) http.Handler { return next }
	if deps.RateLimiter != nil {
		limit = customMiddleware.NewRateLimitMiddleware(deps.RateLimiter).Limit
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(timeout)
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.ReadyChecks))

		r.Group(func(r chi.Router) {
			r.Use(agentAuth.Authenticate)
			r.Use(limit)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Post("/", sessionHandler.Create)
				r.Get("/{sessionID}", sessionHandler.Get)
				r.Delete("/{sessionID}", sessionHandler.Delete)
			})
			r.Post("/chat/{sessionID}", chatHandler.Send)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(timeout, limit).Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(adminAuth.Authenticate)
			r.Use(limit)

			r.With(customMiddleware.Deadline(cfg.Ingest.RequestTimeout)).Post("/agents", adminHandler.CreateAgent)

			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Get("/llm-providers", handler.ListLLMProviders(deps.LLM))

				r.Get("/agents", adminHandler.ListAgents)
				r.Get("/agents/{agentID}", adminHandler.GetAgent)
				r.Delete("/agents/{agentID}", adminHandler.DeleteAgent)
				r.Get("/agents/{agentID}/token", adminHandler.RevealToken)
				r.Get("/agents/{agentID}/sessions", adminHandler.AgentSessions)
				r.Get("/agents/{agentID}/details", adminHandler.AgentDetails)

				r.Get("/sessions/{sessionID}", adminHandler.GetSession)
				r.Delete("/sessions/{sessionID}", adminHandler.DeleteSession)
			})
		})
	})

	return r
}
