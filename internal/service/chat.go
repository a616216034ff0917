package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/llm"
)

// Searcher retrieves the chunks of one agent closest to a query
type Searcher interface {
	Search(ctx context.Context, query, agentID string, k int) ([]domain.ScoredChunk, error)
}

// ChatOptions tunes the retrieval-chat turn
type ChatOptions struct {
	TopK          int
	HistoryWindow int
	LLMTimeout    time.Duration
	SystemPrompt  string
	Provider      string
	Model         string
}

// ChatService answers a user message from the agent's documents and the
// session history
type ChatService struct {
	agents   *AgentService
	sessions *SessionService
	index    Searcher
	llm      *llm.Router
	opts     ChatOptions
}

// NewChatService creates a new chat service
func NewChatService(agents *AgentService, sessions *SessionService, index Searcher, llmRouter *llm.Router, opts ChatOptions) *ChatService {
	if opts.TopK <= 0 {
		opts.TopK = 8
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	return &ChatService{
		agents:   agents,
		sessions: sessions,
		index:    index,
		llm:      llmRouter,
		opts:     opts,
	}
}

// Chat runs one turn. Nothing is persisted unless generation succeeds; the
// user and assistant messages are then appended back to back.
func (s *ChatService) Chat(ctx context.Context, token string, sessionID uuid.UUID, message string) (*domain.ChatReply, error) {
	agent, err := s.agents.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.ChatAs(ctx, agent, sessionID, message)
}

// ChatAs runs one turn for an already authenticated agent
func (s *ChatService) ChatAs(ctx context.Context, agent *domain.Agent, sessionID uuid.UUID, message string) (*domain.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.AgentID != agent.ID {
		return nil, domain.ErrForbidden
	}

	startTime := time.Now()
	logger := log.With().
		Str("agent_id", agent.ID.String()).
		Str("session_id", sessionID.String()).
		Logger()

	chunks, err := s.index.Search(ctx, message, agent.ID.String(), s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieval: %w", domain.ErrChatFailed, err)
	}

	provider, err := s.llm.GetProvider(s.opts.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrChatFailed, err)
	}

	req := llm.Request{
		SystemPrompt: s.opts.SystemPrompt,
		History:      historyWindow(session.Messages, s.opts.HistoryWindow),
		Question:     message,
		Context:      llm.FormatContext(chunks),
	}

	genCtx := ctx
	if s.opts.LLMTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.opts.LLMTimeout)
		defer cancel()
	}

	resp, err := provider.Generate(genCtx, req, s.opts.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: generation: %w", domain.ErrChatFailed, err)
	}

	var prev int64
	if last := session.LastMessage(); last != nil {
		prev = last.Timestamp
	}
	userMsg, err := s.sessions.appendLocked(ctx, sessionID, prev, domain.RoleUser, message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrChatFailed, err)
	}
	if _, err := s.sessions.appendLocked(ctx, sessionID, userMsg.Timestamp, domain.RoleAssistant, resp.Content); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrChatFailed, err)
	}

	logger.Info().
		Str("provider", provider.Name()).
		Str("model", resp.Model).
		Int("sources", len(chunks)).
		Int("tokens", resp.TokensUsed).
		Dur("duration", time.Since(startTime)).
		Msg("Chat turn completed")

	return &domain.ChatReply{
		Answer:  resp.Content,
		Sources: toSources(chunks),
	}, nil
}

// historyWindow converts the last n session messages to provider turns
func historyWindow(msgs []domain.Message, n int) []llm.ChatMessage {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]llm.ChatMessage, len(msgs))
	for i, m := range msgs {
		role := llm.RoleUser
		if m.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		out[i] = llm.ChatMessage{Role: role, Content: m.Content}
	}
	return out
}

func toSources(chunks []domain.ScoredChunk) []domain.Source {
	sources := make([]domain.Source, len(chunks))
	for i, c := range chunks {
		sources[i] = domain.Source{
			FileName:   c.Metadata.FileName,
			FileType:   c.Metadata.FileType,
			ChunkIndex: c.Metadata.ChunkIndex,
			Content:    c.Text,
			Score:      c.Score,
		}
	}
	return sources
}
