package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/security"
)

// Upload is one document submitted with a new agent
type Upload struct {
	FileName string
	Content  io.Reader
}

// Ingester turns a stored document into indexed chunks
type Ingester interface {
	Supports(fileName string) error
	Ingest(ctx context.Context, path, fileName string, agentID uuid.UUID) (int, error)
}

// FileStore persists uploaded documents on disk
type FileStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Remove(path string) error
}

// AgentCache is an optional read-through cache keyed by token hash.
// Get returns nil, nil on a miss.
type AgentCache interface {
	Get(ctx context.Context, tokenHash string) (*domain.Agent, error)
	Set(ctx context.Context, agent *domain.Agent) error
	Invalidate(ctx context.Context, tokenHash string) error
}

// Purger drops every indexed chunk of an agent
type Purger interface {
	Purge(ctx context.Context, agentID string) error
}

// AgentService handles agent lifecycle and token authentication
type AgentService struct {
	agents    domain.AgentRepository
	sessions  *SessionService
	index     Purger
	ingester  Ingester
	files     FileStore
	cache     AgentCache
	hasher    *security.TokenHasher
	encryptor *security.Encryptor
	maxFiles  int
	now       func() time.Time
}

// AgentServiceConfig bundles the collaborators of an AgentService
type AgentServiceConfig struct {
	Agents    domain.AgentRepository
	Sessions  *SessionService
	Index     Purger
	Ingester  Ingester
	Files     FileStore
	Cache     AgentCache
	Hasher    *security.TokenHasher
	Encryptor *security.Encryptor
	MaxFiles  int
}

// NewAgentService creates a new agent service
func NewAgentService(cfg AgentServiceConfig) *AgentService {
	return &AgentService{
		agents:    cfg.Agents,
		sessions:  cfg.Sessions,
		index:     cfg.Index,
		ingester:  cfg.Ingester,
		files:     cfg.Files,
		cache:     cfg.Cache,
		hasher:    cfg.Hasher,
		encryptor: cfg.Encryptor,
		maxFiles:  cfg.MaxFiles,
		now:       time.Now,
	}
}

// Create registers an agent, stores and ingests its documents, and returns
// the agent with its plaintext token. Ingestion stops at the first failing
// file; chunks already indexed for earlier files are kept.
func (s *AgentService) Create(ctx context.Context, name string, uploads []Upload) (*domain.AgentCreated, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: at least one file is required", domain.ErrValidation)
	}
	if s.maxFiles > 0 && len(uploads) > s.maxFiles {
		return nil, fmt.Errorf("%w: at most %d files are allowed", domain.ErrValidation, s.maxFiles)
	}
	for _, u := range uploads {
		if err := s.ingester.Supports(u.FileName); err != nil {
			return nil, fmt.Errorf("%s: %w", u.FileName, err)
		}
	}

	id := uuid.New()
	token := security.GenerateAgentToken()
	cipher, err := s.encryptor.SealToken(id.String(), token)
	if err != nil {
		return nil, fmt.Errorf("failed to seal token: %w", err)
	}

	agent := &domain.Agent{
		ID:          id,
		Name:        name,
		TokenHash:   s.hasher.Hash(token),
		TokenCipher: cipher,
		TokenHint:   security.MaskToken(token),
		Files:       make([]domain.AgentFile, 0, len(uploads)),
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}

	logger := log.With().Str("agent_id", agent.ID.String()).Logger()

	for _, u := range uploads {
		path, err := s.files.Save(u.FileName, u.Content)
		if err != nil {
			s.removeFiles(agent)
			return nil, fmt.Errorf("failed to store %s: %w", u.FileName, err)
		}
		fileType, _ := domain.FileTypeFromName(u.FileName)
		agent.Files = append(agent.Files, domain.AgentFile{
			Path:         path,
			FileType:     fileType,
			OriginalName: u.FileName,
		})
	}

	for i := range agent.Files {
		f := &agent.Files[i]
		n, err := s.ingester.Ingest(ctx, f.Path, f.OriginalName, agent.ID)
		if err != nil {
			logger.Error().Err(err).Str("file_name", f.OriginalName).Msg("Agent creation aborted")
			s.removeFiles(agent)
			return nil, err
		}
		f.Chunks = n
	}

	if err := s.agents.Create(ctx, agent); err != nil {
		s.removeFiles(agent)
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	logger.Info().
		Str("name", agent.Name).
		Int("files", len(agent.Files)).
		Msg("Agent created")

	return &domain.AgentCreated{AgentPublic: agent.Public(), Token: token}, nil
}

// GetByToken authenticates a raw agent token
func (s *AgentService) GetByToken(ctx context.Context, token string) (*domain.Agent, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	hash := s.hasher.Hash(token)

	if s.cache != nil {
		agent, err := s.cache.Get(ctx, hash)
		if err != nil {
			log.Warn().Err(err).Msg("Agent cache read failed")
		} else if agent != nil && s.hasher.Matches(token, agent.TokenHash) {
			return agent, nil
		}
	}

	agent, err := s.agents.GetByTokenHash(ctx, hash)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if !s.hasher.Matches(token, agent.TokenHash) {
		return nil, domain.ErrUnauthorized
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, agent); err != nil {
			log.Warn().Err(err).Msg("Agent cache write failed")
		}
	}
	return agent, nil
}

// Get returns an agent by id
func (s *AgentService) Get(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	return s.agents.Get(ctx, id)
}

// List returns the masked projections of all agents
func (s *AgentService) List(ctx context.Context) ([]domain.AgentPublic, error) {
	agents, err := s.agents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	out := make([]domain.AgentPublic, len(agents))
	for i := range agents {
		out[i] = agents[i].Public()
	}
	return out, nil
}

// RevealToken decrypts an agent's token for the admin
func (s *AgentService) RevealToken(ctx context.Context, id uuid.UUID) (string, error) {
	agent, err := s.agents.Get(ctx, id)
	if err != nil {
		return "", err
	}
	token, err := s.encryptor.OpenToken(agent.ID.String(), agent.TokenCipher)
	if err != nil {
		return "", fmt.Errorf("failed to open token: %w", err)
	}
	return token, nil
}

// Details returns an agent together with its sessions
func (s *AgentService) Details(ctx context.Context, id uuid.UUID) (*domain.AgentDetails, error) {
	agent, err := s.agents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].UserMetadata = sessions[i].UserMetadata.WithDefaults()
	}
	return &domain.AgentDetails{Agent: agent.Public(), Sessions: sessions}, nil
}

// Delete removes an agent and everything it owns. The record goes first so
// the token stops authenticating before anything is torn down; cleanup of
// the cache, files, chunks and sessions after that is best-effort.
func (s *AgentService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	agent, err := s.agents.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get agent: %w", err)
	}

	deleted, err := s.agents.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete agent: %w", err)
	}
	if !deleted {
		return false, nil
	}

	logger := log.With().Str("agent_id", id.String()).Logger()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, agent.TokenHash); err != nil {
			logger.Warn().Err(err).Msg("Failed to invalidate agent cache")
		}
	}

	s.removeFiles(agent)

	if err := s.index.Purge(ctx, id.String()); err != nil {
		logger.Warn().Err(err).Msg("Failed to purge agent chunks")
	}
	if n, err := s.sessions.DeleteByAgent(ctx, id); err != nil {
		logger.Warn().Err(err).Msg("Failed to delete agent sessions")
	} else {
		logger.Debug().Int("sessions", n).Msg("Agent sessions deleted")
	}

	logger.Info().Msg("Agent deleted")
	return true, nil
}

func (s *AgentService) removeFiles(agent *domain.Agent) {
	for _, f := range agent.Files {
		if err := s.files.Remove(f.Path); err != nil {
			log.Warn().
				Err(err).
				Str("agent_id", agent.ID.String()).
				Str("file_name", f.OriginalName).
				Msg("Failed to remove stored file")
		}
	}
}
