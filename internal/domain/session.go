package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Device describes the client a session was opened from
type Device struct {
	Type    string `json:"type"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

// UserMetadata is captured when a session is created
type UserMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Device    Device `json:"device"`
}

const unknownMetadata = "Unknown"

// WithDefaults fills empty fields with "Unknown" for dashboard display
func (m UserMetadata) WithDefaults() UserMetadata {
	orUnknown := func(s string) string {
		if s == "" {
			return unknownMetadata
		}
		return s
	}
	return UserMetadata{
		IPAddress: orUnknown(m.IPAddress),
		UserAgent: orUnknown(m.UserAgent),
		Device: Device{
			Type:    orUnknown(m.Device.Type),
			Browser: orUnknown(m.Device.Browser),
			OS:      orUnknown(m.Device.OS),
		},
	}
}

// Session is one conversation thread tied to exactly one agent
type Session struct {
	ID           uuid.UUID    `json:"id"`
	AgentID      uuid.UUID    `json:"agent_id"`
	Messages     []Message    `json:"messages"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// LastMessage returns the most recent message, or nil for an empty session
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	m := s.Messages[len(s.Messages)-1]
	return &m
}

// Summary projects the session for list views
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		AgentID:      s.AgentID,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
		LastMessage:  s.LastMessage(),
		UserMetadata: s.UserMetadata,
	}
}

// SessionSummary is the list projection of a session
type SessionSummary struct {
	ID           uuid.UUID    `json:"id"`
	AgentID      uuid.UUID    `json:"agent_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	MessageCount int          `json:"message_count"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// SessionRepository defines the interface for session storage.
// AppendMessage persists msg and sets the session's updated_at to updatedAt;
// it returns ErrSessionNotFound when the session does not exist.
// ListByAgent must return summaries ordered by updated_at descending.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	AppendMessage(ctx context.Context, id uuid.UUID, msg Message, updatedAt time.Time) error
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]SessionSummary, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteByAgent(ctx context.Context, agentID uuid.UUID) (int, error)
}
