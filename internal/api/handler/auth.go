package handler

import (
	"net/http"

	"github.com/Rrens/rag-agent/internal/api/response"
	"github.com/Rrens/rag-agent/internal/service"
)

// LoginRequest holds admin credentials
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// AuthHandler handles admin authentication
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login exchanges admin credentials for an access token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	result, err := h.authService.Login(input.Username, input.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.OK(w, result)
}
