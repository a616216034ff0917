package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/rag-agent/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewClientFromRedis(rdb, "test"), mr
}

func newSession(agentID uuid.UUID, at time.Time) *domain.Session {
	return &domain.Session{
		ID:        uuid.New(),
		AgentID:   agentID,
		Messages:  []domain.Message{},
		CreatedAt: at,
		UpdatedAt: at,
		UserMetadata: domain.UserMetadata{
			IPAddress: "10.0.0.1",
			Device:    domain.Device{Type: "desktop", Browser: "Firefox", OS: "Linux"},
		},
	}
}

func TestSessionRepository_CreateGetAppend(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client)

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(uuid.New(), start)
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.AgentID, got.AgentID)
	assert.Empty(t, got.Messages)
	assert.Equal(t, "Firefox", got.UserMetadata.Device.Browser)

	later := start.Add(time.Minute)
	require.NoError(t, repo.AppendMessage(ctx, s.ID, domain.Message{Role: domain.RoleUser, Content: "hi", Timestamp: later.UnixMilli()}, later))
	require.NoError(t, repo.AppendMessage(ctx, s.ID, domain.Message{Role: domain.RoleAssistant, Content: "hello", Timestamp: later.UnixMilli()}, later))

	got, err = repo.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hi", got.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, got.Messages[1].Role)
	assert.True(t, got.UpdatedAt.Equal(later))
}

func TestSessionRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client)

	_, err := repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = repo.AppendMessage(ctx, uuid.New(), domain.Message{Role: domain.RoleUser, Content: "x"}, time.Now())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	deleted, err := repo.Delete(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionRepository_ListByAgentOrder(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client)

	agentID := uuid.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older := newSession(agentID, base)
	newer := newSession(agentID, base.Add(time.Hour))
	other := newSession(uuid.New(), base)
	for _, s := range []*domain.Session{older, newer, other} {
		require.NoError(t, repo.Create(ctx, s))
	}

	// touching the older session moves it to the front
	touched := base.Add(2 * time.Hour)
	require.NoError(t, repo.AppendMessage(ctx, older.ID, domain.Message{Role: domain.RoleUser, Content: "ping", Timestamp: touched.UnixMilli()}, touched))

	list, err := repo.ListByAgent(ctx, agentID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, 1, list[0].MessageCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "ping", list[0].LastMessage.Content)
	assert.Equal(t, newer.ID, list[1].ID)
	assert.Nil(t, list[1].LastMessage)

	empty, err := repo.ListByAgent(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	repo := NewSessionRepository(client)

	s := newSession(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, s))
	require.NoError(t, repo.AppendMessage(ctx, s.ID, domain.Message{Role: domain.RoleUser, Content: "a"}, time.Now()))

	deleted, err := repo.Delete(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	assert.False(t, mr.Exists(repo.sessionKey(s.ID.String())))
	assert.False(t, mr.Exists(repo.messagesKey(s.ID.String())))

	list, err := repo.ListByAgent(ctx, s.AgentID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSessionRepository_DeleteByAgent(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client)

	agentID := uuid.New()
	keep := newSession(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, keep))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newSession(agentID, time.Now())))
	}

	n, err := repo.DeleteByAgent(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.DeleteByAgent(ctx, agentID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.Get(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestSessionRepository_DeleteByAgentWithConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client)

	agentID := uuid.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newSession(agentID, time.Now())))
	}

	created := make(chan uuid.UUID, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newSession(agentID, time.Now())
			if assert.NoError(t, repo.Create(ctx, s)) {
				created <- s.ID
			}
		}()
	}
	_, err := repo.DeleteByAgent(ctx, agentID)
	require.NoError(t, err)
	wg.Wait()
	close(created)

	// every session that survived the delete is still reachable through the agent index
	listed, err := repo.ListByAgent(ctx, agentID)
	require.NoError(t, err)
	ids := make(map[uuid.UUID]bool, len(listed))
	for _, l := range listed {
		ids[l.ID] = true
	}
	for id := range created {
		if _, err := repo.Get(ctx, id); err == nil {
			assert.True(t, ids[id], "session %s exists but is not indexed", id)
		}
	}

	n, err := repo.DeleteByAgent(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, len(listed), n)
	listed, err = repo.ListByAgent(ctx, agentID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSessionRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client)

	s := newSession(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, s))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AppendMessage(ctx, s.ID, domain.Message{Role: domain.RoleUser, Content: "m"}, time.Now()))
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 5)
}

func TestClient_KeyNamespace(t *testing.T) {
	assert.Equal(t, "rag:session:1", NewClientFromRedis(nil, "rag:").key("session", "1"))
	assert.Equal(t, "session:1", NewClientFromRedis(nil, "").key("session", "1"))

	ctx := context.Background()
	client, mr := newTestClient(t)
	s := newSession(uuid.New(), time.Now())
	require.NoError(t, NewSessionRepository(client).Create(ctx, s))
	assert.True(t, mr.Exists("test:session:"+s.ID.String()))
	assert.False(t, mr.Exists("session:"+s.ID.String()))
}
