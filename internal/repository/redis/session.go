package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Rrens/rag-agent/internal/domain"
)

const maxWatchRetries = 10

// SessionRepository implements domain.SessionRepository on Redis.
// Layout under the client namespace: session:<id> holds the session header
// as JSON, session:<id>:messages is a list of message JSON, and
// agent_sessions:<agentId> is a sorted set of session ids scored by updated_at.
type SessionRepository struct {
	client *Client
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *Client) *SessionRepository {
	return &SessionRepository{client: client}
}

type sessionHeader struct {
	ID           uuid.UUID           `json:"id"`
	AgentID      uuid.UUID           `json:"agent_id"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	UserMetadata domain.UserMetadata `json:"user_metadata"`
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *SessionRepository) sessionKey(id string) string { return r.client.key("session", id) }
func (r *SessionRepository) messagesKey(id string) string { return r.client.key("session", id, "messages") }
func (r *SessionRepository) agentKey(agentID uuid.UUID) string {
	return r.client.key("agent_sessions", agentID.String())
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	header, err := json.Marshal(sessionHeader{
		ID:           session.ID,
		AgentID:      session.AgentID,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		UserMetadata: session.UserMetadata,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID.String()), header, 0)
		pipe.ZAdd(ctx, r.agentKey(session.AgentID), redis.Z{
			Score:  float64(session.UpdatedAt.UnixMilli()),
			Member: session.ID.String(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	header, err := r.header(ctx, r.client.rdb, id)
	if err != nil {
		return nil, err
	}

	raw, err := r.client.rdb.LRange(ctx, r.messagesKey(id.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(raw))
	for _, m := range raw {
		msg, err := decodeMessage(m)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return &domain.Session{
		ID:           header.ID,
		AgentID:      header.AgentID,
		Messages:     msgs,
		CreatedAt:    header.CreatedAt,
		UpdatedAt:    header.UpdatedAt,
		UserMetadata: header.UserMetadata,
	}, nil
}

// AppendMessage pushes the message and bumps updated_at inside a WATCH/MULTI
// transaction on the session header
func (r *SessionRepository) AppendMessage(ctx context.Context, id uuid.UUID, msg domain.Message, updatedAt time.Time) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	key := r.sessionKey(id.String())
	txf := func(tx *redis.Tx) error {
		header, err := r.header(ctx, tx, id)
		if err != nil {
			return err
		}
		header.UpdatedAt = updatedAt
		encoded, err := json.Marshal(header)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, r.messagesKey(id.String()), payload)
			pipe.Set(ctx, key, encoded, 0)
			pipe.ZAdd(ctx, r.agentKey(header.AgentID), redis.Z{
				Score:  float64(updatedAt.UnixMilli()),
				Member: id.String(),
			})
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to append message: %w", err)
		}
		return err
	}
	return fmt.Errorf("failed to append message: too much contention on session %s", id)
}

func (r *SessionRepository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.SessionSummary, error) {
	ids, err := r.client.rdb.ZRevRange(ctx, r.agentKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		return []domain.SessionSummary{}, nil
	}

	type pending struct {
		header *redis.StringCmd
		count  *redis.IntCmd
		last   *redis.StringCmd
	}
	cmds := make([]pending, len(ids))

	_, err = r.client.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid session id %q in index: %w", raw, err)
			}
			cmds[i] = pending{
				header: pipe.Get(ctx, r.sessionKey(id.String())),
				count:  pipe.LLen(ctx, r.messagesKey(id.String())),
				last:   pipe.LIndex(ctx, r.messagesKey(id.String()), -1),
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	summaries := make([]domain.SessionSummary, 0, len(ids))
	for _, c := range cmds {
		raw, err := c.header.Bytes()
		if errors.Is(err, redis.Nil) {
			// index entry outlived its session
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}

		var h sessionHeader
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}

		summary := domain.SessionSummary{
			ID:           h.ID,
			AgentID:      h.AgentID,
			CreatedAt:    h.CreatedAt,
			UpdatedAt:    h.UpdatedAt,
			MessageCount: int(c.count.Val()),
			UserMetadata: h.UserMetadata,
		}
		if last, err := c.last.Result(); err == nil {
			msg, err := decodeMessage(last)
			if err != nil {
				return nil, err
			}
			summary.LastMessage = &msg
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	header, err := r.header(ctx, r.client.rdb, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id.String()), r.messagesKey(id.String()))
		pipe.ZRem(ctx, r.agentKey(header.AgentID), id.String())
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return true, nil
}

// DeleteByAgent removes every session indexed for the agent. The index is
// watched so a session created concurrently either lands before the snapshot
// and is deleted, or forces a retry.
func (r *SessionRepository) DeleteByAgent(ctx context.Context, agentID uuid.UUID) (int, error) {
	index := r.agentKey(agentID)
	var deleted int

	txf := func(tx *redis.Tx) error {
		ids, err := tx.ZRange(ctx, index, 0, -1).Result()
		if err != nil {
			return err
		}
		deleted = 0
		if len(ids) == 0 {
			return nil
		}

		sessionKeys := make([]string, len(ids))
		keys := make([]string, 0, 2*len(ids)+1)
		for i, raw := range ids {
			sessionKeys[i] = r.sessionKey(raw)
			keys = append(keys, r.sessionKey(raw), r.messagesKey(raw))
		}
		keys = append(keys, index)

		n, err := tx.Exists(ctx, sessionKeys...).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			return nil
		})
		if err == nil {
			deleted = int(n)
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.rdb.Watch(ctx, txf, index)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to delete sessions: %w", err)
		}
		return deleted, nil
	}
	return 0, fmt.Errorf("failed to delete sessions: too much contention on agent %s", agentID)
}

func (r *SessionRepository) header(ctx context.Context, c getter, id uuid.UUID) (*sessionHeader, error) {
	raw, err := c.Get(ctx, r.sessionKey(id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var h sessionHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &h, nil
}

func decodeMessage(raw string) (domain.Message, error) {
	var m domain.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("failed to decode message: %w", err)
	}
	return m, nil
}
