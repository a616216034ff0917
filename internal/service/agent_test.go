package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/security"
)

func textUpload(name, content string) Upload {
	return Upload{FileName: name, Content: strings.NewReader(content)}
}

func TestAgentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("identical creations get distinct ids and tokens", func(t *testing.T) {
		s := newStack(t)

		a, err := s.agents.Create(ctx, "Support", []Upload{textUpload("faq.txt", "hello world")})
		require.NoError(t, err)
		b, err := s.agents.Create(ctx, "Support", []Upload{textUpload("faq.txt", "hello world")})
		require.NoError(t, err)

		assert.NotEqual(t, a.ID, b.ID)
		assert.NotEqual(t, a.Token, b.Token)
		assert.Equal(t, security.MaskToken(a.Token), a.AgentPublic.Token)
		assert.NotEqual(t, a.Token, a.AgentPublic.Token)
	})

	t.Run("long document is chunked and search stays within the agent", func(t *testing.T) {
		s := newStack(t)

		var sb strings.Builder
		for sb.Len() < 3000 {
			sb.WriteString("the quick brown fox jumps over the lazy dog. ")
		}
		created, err := s.agents.Create(ctx, "Foxes", []Upload{textUpload("fox.txt", sb.String())})
		require.NoError(t, err)
		_, err = s.agents.Create(ctx, "Other", []Upload{textUpload("other.txt", sb.String())})
		require.NoError(t, err)

		require.Len(t, created.Files, 1)
		assert.GreaterOrEqual(t, created.Files[0].Chunks, 3)

		hits, err := s.index.Search(ctx, "quick fox", created.ID.String(), 4)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(hits), 4)
		assert.NotEmpty(t, hits)
		for _, h := range hits {
			assert.Equal(t, created.ID.String(), h.Metadata.AgentID)
			assert.Equal(t, "fox.txt", h.Metadata.FileName)
		}
	})

	t.Run("validation", func(t *testing.T) {
		s := newStack(t)

		_, err := s.agents.Create(ctx, "  ", []Upload{textUpload("a.txt", "x")})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = s.agents.Create(ctx, "No files", nil)
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = s.agents.Create(ctx, "Bad type", []Upload{
			textUpload("a.txt", "x"),
			textUpload("b.exe", "x"),
		})
		assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
		assert.ErrorIs(t, err, domain.ErrValidation)

		entries, err := os.ReadDir(s.uploads.Dir())
		require.NoError(t, err)
		assert.Empty(t, entries, "nothing is written before validation passes")

		agents, err := s.agents.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, agents)
	})

	t.Run("too many files", func(t *testing.T) {
		s := newStack(t)
		uploads := make([]Upload, 21)
		for i := range uploads {
			uploads[i] = textUpload("f.txt", "x")
		}
		_, err := s.agents.Create(ctx, "Many", uploads)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestAgentService_Create_IngestionFailureRemovesFiles(t *testing.T) {
	ctx := context.Background()
	agents := new(MockAgentRepository)
	ingester := new(MockIngester)
	files := new(MockFileStore)

	hasher, err := security.NewTokenHasher([]byte("k"))
	require.NoError(t, err)
	encryptor, err := security.NewEncryptor(security.DeriveKey("s", "p"))
	require.NoError(t, err)

	svc := NewAgentService(AgentServiceConfig{
		Agents:    agents,
		Ingester:  ingester,
		Files:     files,
		Hasher:    hasher,
		Encryptor: encryptor,
	})

	ingester.On("Supports", mock.Anything).Return(nil)
	files.On("Save", "a.txt", mock.Anything).Return("/up/a.txt", nil)
	files.On("Save", "b.txt", mock.Anything).Return("/up/b.txt", nil)
	ingester.On("Ingest", ctx, "/up/a.txt", "a.txt", mock.Anything).Return(2, nil)
	ingester.On("Ingest", ctx, "/up/b.txt", "b.txt", mock.Anything).
		Return(0, errors.Join(domain.ErrIngestionFailed, errors.New("broken pdf")))
	files.On("Remove", "/up/a.txt").Return(nil)
	files.On("Remove", "/up/b.txt").Return(nil)

	_, err = svc.Create(ctx, "Docs", []Upload{textUpload("a.txt", "a"), textUpload("b.txt", "b")})
	assert.ErrorIs(t, err, domain.ErrIngestionFailed)

	agents.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	files.AssertExpectations(t)
}

func TestAgentService_GetByToken(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	created, err := s.agents.Create(ctx, "Support", []Upload{textUpload("faq.txt", "hello")})
	require.NoError(t, err)

	agent, err := s.agents.GetByToken(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, agent.ID)

	_, err = s.agents.GetByToken(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = s.agents.GetByToken(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	token, err := s.agents.RevealToken(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Token, token)
}

func TestAgentService_Delete(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	created, err := s.agents.Create(ctx, "Support", []Upload{
		textUpload("faq.txt", "how do refunds work"),
		textUpload("notes.md", "# Notes\n\nrefunds take five days"),
	})
	require.NoError(t, err)
	require.Len(t, created.Files, 2)

	for range 3 {
		_, err := s.sessions.Create(ctx, created.ID, domain.UserMetadata{})
		require.NoError(t, err)
	}

	deleted, err := s.agents.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.agents.GetByToken(ctx, created.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	sessions, err := s.sessions.ListByAgent(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	hits, err := s.index.Search(ctx, "refunds", created.ID.String(), 8)
	require.NoError(t, err)
	assert.Empty(t, hits)

	for _, f := range created.Files {
		_, err := os.Stat(f.Path)
		assert.True(t, os.IsNotExist(err), "file %s should be removed", f.OriginalName)
	}

	deleted, err = s.agents.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAgentService_Delete_ConcurrentUseDuringDelete(t *testing.T) {
	ctx := context.Background()
	cache := newMemAgentCache()
	var hooked *hookedAgentRepository
	s := newStack(t, func(cfg *AgentServiceConfig) {
		hooked = &hookedAgentRepository{AgentRepository: cfg.Agents}
		cfg.Agents = hooked
		cfg.Cache = cache
	})

	created, err := s.agents.Create(ctx, "Support", []Upload{textUpload("faq.txt", "hello")})
	require.NoError(t, err)

	// a request authenticates and opens a session while the delete is in flight
	hooked.beforeDelete = func() {
		agent, err := s.agents.GetByToken(ctx, created.Token)
		require.NoError(t, err)
		_, err = s.sessions.Create(ctx, agent.ID, domain.UserMetadata{})
		require.NoError(t, err)
	}

	deleted, err := s.agents.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.agents.GetByToken(ctx, created.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	sessions, err := s.sessions.ListByAgent(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestAgentService_Delete_CleanupFailuresAreTolerated(t *testing.T) {
	ctx := context.Background()
	agents := new(MockAgentRepository)
	sessionRepo := new(MockSessionRepository)
	index := new(MockIndex)
	files := new(MockFileStore)

	svc := NewAgentService(AgentServiceConfig{
		Agents:   agents,
		Sessions: NewSessionService(sessionRepo),
		Index:    index,
		Files:    files,
	})

	agent := &domain.Agent{
		ID:    uuid.New(),
		Files: []domain.AgentFile{{Path: "/up/a.txt", OriginalName: "a.txt"}},
	}
	agents.On("Get", ctx, agent.ID).Return(agent, nil)
	files.On("Remove", "/up/a.txt").Return(errors.New("permission denied"))
	index.On("Purge", ctx, agent.ID.String()).Return(errors.New("index unavailable"))
	sessionRepo.On("DeleteByAgent", ctx, agent.ID).Return(0, errors.New("db down"))
	agents.On("Delete", ctx, agent.ID).Return(true, nil)

	deleted, err := svc.Delete(ctx, agent.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	agents.AssertExpectations(t)
	index.AssertExpectations(t)
	sessionRepo.AssertExpectations(t)
}

func TestAgentService_Details(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	created, err := s.agents.Create(ctx, "Support", []Upload{textUpload("faq.txt", "hello")})
	require.NoError(t, err)
	_, err = s.sessions.Create(ctx, created.ID, domain.UserMetadata{IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	details, err := s.agents.Details(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, details.Agent.ID)
	require.Len(t, details.Sessions, 1)
	meta := details.Sessions[0].UserMetadata
	assert.Equal(t, "10.0.0.1", meta.IPAddress)
	assert.Equal(t, "Unknown", meta.UserAgent)
	assert.Equal(t, "Unknown", meta.Device.Browser)

	_, err = s.agents.Details(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}
