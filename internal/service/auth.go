package service

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/security"
)

// LoginResult carries an admin access token
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthService authenticates the dashboard administrator
type AuthService struct {
	username     string
	passwordHash []byte
	jwtManager   *security.JWTManager
}

// NewAuthService creates a new auth service. passwordHash is a bcrypt hash.
func NewAuthService(username, passwordHash string, jwtManager *security.JWTManager) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: []byte(passwordHash),
		jwtManager:   jwtManager,
	}
}

// Login checks admin credentials and issues an access token
func (s *AuthService) Login(username, password string) (*LoginResult, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1

	// bcrypt runs even when the username is wrong
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil || len(s.passwordHash) == 0 {
		log.Warn().Str("username", username).Msg("Admin login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateAccessToken(username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtManager.AccessTokenTTL() / time.Second),
	}, nil
}
