package handler

import (
	"net/http"

	"github.com/Rrens/rag-agent/internal/api/middleware"
	"github.com/Rrens/rag-agent/internal/api/response"
	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/service"
)

// SessionHandler serves an agent's own sessions
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create opens a session for the authenticated agent
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.GetAgent(r.Context())
	if !ok {
		response.Unauthorized(w, domain.ErrUnauthorized.Error())
		return
	}

	session, err := h.sessions.Create(r.Context(), agent.ID, userMetadata(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, session)
}

// List returns the agent's sessions, most recent first
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.GetAgent(r.Context())
	if !ok {
		response.Unauthorized(w, domain.ErrUnauthorized.Error())
		return
	}

	sessions, err := h.sessions.ListByAgent(r.Context(), agent.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, sessions)
}

// Get returns one session with its messages
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	response.OK(w, session)
}

// Delete removes one of the agent's sessions
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	deleted, err := h.sessions.Delete(r.Context(), session.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, domain.ErrSessionNotFound)
		return
	}

	response.OK(w, map[string]string{"message": "session deleted"})
}

func (h *SessionHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	agent, ok := middleware.GetAgent(r.Context())
	if !ok {
		response.Unauthorized(w, domain.ErrUnauthorized.Error())
		return nil, false
	}

	id, ok := urlUUID(w, r, "sessionID")
	if !ok {
		return nil, false
	}

	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if session.AgentID != agent.ID {
		writeError(w, r, domain.ErrForbidden)
		return nil, false
	}
	return session, true
}
