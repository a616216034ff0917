package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/domain"
)

// SessionService owns conversation state. Appends to one session are
// serialised and timestamps never go backwards within a session.
type SessionService struct {
	repo  domain.SessionRepository
	locks *keyedMutex
	now   func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(repo domain.SessionRepository) *SessionService {
	return &SessionService{
		repo:  repo,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// Create starts an empty session for an agent
func (s *SessionService) Create(ctx context.Context, agentID uuid.UUID, meta domain.UserMetadata) (*domain.Session, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	session := &domain.Session{
		ID:           uuid.New(),
		AgentID:      agentID,
		Messages:     []domain.Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
		UserMetadata: meta,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("agent_id", agentID.String()).
		Msg("Session created")
	return session, nil
}

// Get returns a session with its messages
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return s.repo.Get(ctx, id)
}

// AppendMessage adds a message with a store-assigned timestamp
func (s *SessionService) AppendMessage(ctx context.Context, id uuid.UUID, role domain.MessageRole, content string) (*domain.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}

	unlock := s.Lock(id)
	defer unlock()

	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var prev int64
	if last := session.LastMessage(); last != nil {
		prev = last.Timestamp
	}
	return s.appendLocked(ctx, id, prev, role, content)
}

// Lock holds the session's append lock until the returned func is called
func (s *SessionService) Lock(id uuid.UUID) func() {
	return s.locks.Lock(id.String())
}

// appendLocked writes a message; the caller holds the session lock and
// passes the previous message's timestamp
func (s *SessionService) appendLocked(ctx context.Context, id uuid.UUID, prev int64, role domain.MessageRole, content string) (*domain.Message, error) {
	ts := max(s.now().UnixMilli(), prev)
	msg := domain.Message{Role: role, Content: content, Timestamp: ts}

	if err := s.repo.AppendMessage(ctx, id, msg, time.UnixMilli(ts).UTC()); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByAgent returns session summaries, most recently active first
func (s *SessionService) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.SessionSummary, error) {
	summaries, err := s.repo.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if summaries == nil {
		summaries = []domain.SessionSummary{}
	}
	return summaries, nil
}

// Delete removes one session
func (s *SessionService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	unlock := s.Lock(id)
	defer unlock()

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return deleted, nil
}

// DeleteByAgent removes every session of an agent
func (s *SessionService) DeleteByAgent(ctx context.Context, agentID uuid.UUID) (int, error) {
	n, err := s.repo.DeleteByAgent(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return n, nil
}
