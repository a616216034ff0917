package handler

import (
	"net/http"

	"github.com/Rrens/rag-agent/internal/api/middleware"
	"github.com/Rrens/rag-agent/internal/api/response"
	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/service"
)

// ChatRequest is the body of a chat turn
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=10000"`
}

// ChatHandler serves chat turns
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Send answers a message within a session
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	agent, ok := middleware.GetAgent(r.Context())
	if !ok {
		response.Unauthorized(w, domain.ErrUnauthorized.Error())
		return
	}

	sessionID, ok := urlUUID(w, r, "sessionID")
	if !ok {
		return
	}

	var req ChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reply, err := h.chat.ChatAs(r.Context(), agent, sessionID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, reply)
}
