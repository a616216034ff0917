package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/api/response"
	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/security"
)

// AgentTokenHeader carries the agent's bearer secret on public routes
const AgentTokenHeader = "x-agent-token"

type contextKey string

const (
	AgentKey      contextKey = "agent"
	AdminUserKey  contextKey = "adminUser"
	rateLimitUser contextKey = "rateLimitKey"
)

// AgentAuthenticator resolves an agent from its raw token
type AgentAuthenticator interface {
	GetByToken(ctx context.Context, token string) (*domain.Agent, error)
}

// AgentAuthMiddleware authenticates requests by agent token
type AgentAuthMiddleware struct {
	agents AgentAuthenticator
}

// NewAgentAuthMiddleware creates a new agent auth middleware
func NewAgentAuthMiddleware(agents AgentAuthenticator) *AgentAuthMiddleware {
	return &AgentAuthMiddleware{agents: agents}
}

// Authenticate resolves the x-agent-token header to an agent
func (m *AgentAuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AgentTokenHeader)
		if token == "" {
			response.Unauthorized(w, "agent token is required")
			return
		}

		agent, err := m.agents.GetByToken(r.Context(), token)
		if errors.Is(err, domain.ErrUnauthorized) {
			response.Unauthorized(w, "invalid agent token")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("Agent authentication failed")
			response.InternalError(w, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), AgentKey, agent)
		ctx = context.WithValue(ctx, rateLimitUser, "agent:"+agent.ID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAgent gets the authenticated agent from context
func GetAgent(ctx context.Context) (*domain.Agent, bool) {
	agent, ok := ctx.Value(AgentKey).(*domain.Agent)
	return agent, ok && agent != nil
}

// WithAgent returns a context carrying agent
func WithAgent(ctx context.Context, agent *domain.Agent) context.Context {
	return context.WithValue(ctx, AgentKey, agent)
}

// AdminAuthMiddleware handles JWT authentication for the dashboard
type AdminAuthMiddleware struct {
	jwtManager *security.JWTManager
}

// NewAdminAuthMiddleware creates a new admin auth middleware
func NewAdminAuthMiddleware(jwtManager *security.JWTManager) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{jwtManager: jwtManager}
}

// Authenticate validates the bearer JWT
func (m *AdminAuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Unauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), AdminUserKey, claims.Username)
		ctx = context.WithValue(ctx, rateLimitUser, "admin:"+claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAdminUser gets the admin username from context
func GetAdminUser(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(AdminUserKey).(string)
	return username, ok
}
