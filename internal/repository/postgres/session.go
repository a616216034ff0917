package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/rag-agent/internal/domain"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, agent_id, created_at, updated_at, ip_address, user_agent, device_type, device_browser, device_os`

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	m := session.UserMetadata
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.AgentID,
		session.CreatedAt,
		session.UpdatedAt,
		m.IPAddress,
		m.UserAgent,
		m.Device.Type,
		m.Device.Browser,
		m.Device.OS,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	msgs, err := r.messages(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	s.Messages = msgs[id]
	if s.Messages == nil {
		s.Messages = []domain.Message{}
	}
	return s, nil
}

// AppendMessage inserts the message and bumps updated_at in one transaction
func (r *SessionRepository) AppendMessage(ctx context.Context, id uuid.UUID, msg domain.Message, updatedAt time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE sessions SET updated_at = $2 WHERE id = $1`, id, updatedAt)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrSessionNotFound
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (session_id, role, content, ts) VALUES ($1, $2, $3, $4)`,
			id, string(msg.Role), msg.Content, msg.Timestamp,
		); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
}

func (r *SessionRepository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.SessionSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE agent_id = $1
		ORDER BY updated_at DESC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	ids := make([]uuid.UUID, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	msgs, err := r.messages(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.SessionSummary, len(sessions))
	for i, s := range sessions {
		s.Messages = msgs[s.ID]
		summaries[i] = s.Summary()
	}
	return summaries, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepository) DeleteByAgent(ctx context.Context, agentID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE agent_id = $1`, agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// messages loads messages for the given sessions in append order
func (r *SessionRepository) messages(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.Message, error) {
	out := make(map[uuid.UUID][]domain.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := r.pool.Query(ctx, `
		SELECT session_id, role, content, ts
		FROM messages
		WHERE session_id = ANY($1::uuid[])
		ORDER BY id ASC
	`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sessionID uuid.UUID
			role      string
			m         domain.Message
		)
		if err := rows.Scan(&sessionID, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.MessageRole(role)
		out[sessionID] = append(out[sessionID], m)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	m := &s.UserMetadata
	if err := row.Scan(
		&s.ID,
		&s.AgentID,
		&s.CreatedAt,
		&s.UpdatedAt,
		&m.IPAddress,
		&m.UserAgent,
		&m.Device.Type,
		&m.Device.Browser,
		&m.Device.OS,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
