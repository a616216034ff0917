package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/rag-agent/internal/domain"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, agent_id, created_at, updated_at, ip_address, user_agent, device_type, device_browser, device_os`

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m := session.UserMetadata
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID.String(),
		session.AgentID.String(),
		session.CreatedAt.UnixMilli(),
		session.UpdatedAt.UnixMilli(),
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
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if s.Messages, err = r.messages(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

// AppendMessage inserts the message and bumps updated_at in one transaction
func (r *SessionRepository) AppendMessage(ctx context.Context, id uuid.UUID, msg domain.Message, updatedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, updatedAt.UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, ts) VALUES (?, ?, ?, ?)`,
		id.String(), string(msg.Role), msg.Content, msg.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// ListByAgent summarizes in SQL: one grouped pass over messages yields the
// count and last message id of every session of the agent.
func (r *SessionRepository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH stats AS (
			SELECT session_id, COUNT(*) AS n, MAX(id) AS last_id
			FROM messages
			WHERE session_id IN (SELECT id FROM sessions WHERE agent_id = ?1)
			GROUP BY session_id
		)
		SELECT s.id, s.agent_id, s.created_at, s.updated_at, s.ip_address, s.user_agent,
			s.device_type, s.device_browser, s.device_os,
			COALESCE(st.n, 0), lm.role, lm.content, lm.ts
		FROM sessions s
		LEFT JOIN stats st ON st.session_id = s.id
		LEFT JOIN messages lm ON lm.id = st.last_id
		WHERE s.agent_id = ?1
		ORDER BY s.updated_at DESC, s.created_at DESC
	`, agentID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	summaries := []domain.SessionSummary{}
	for rows.Next() {
		var (
			count   int
			role    sql.NullString
			content sql.NullString
			ts      sql.NullInt64
		)
		s, err := scanSession(rows, &count, &role, &content, &ts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		summary := s.Summary()
		summary.MessageCount = count
		if role.Valid {
			summary.LastMessage = &domain.Message{
				Role:      domain.MessageRole(role.String),
				Content:   content.String,
				Timestamp: ts.Int64,
			}
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return summaries, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

func (r *SessionRepository) DeleteByAgent(ctx context.Context, agentID uuid.UUID) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE agent_id = ?`, agentID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return int(n), nil
}

// messages loads a session's messages in append order
func (r *SessionRepository) messages(ctx context.Context, id uuid.UUID) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT role, content, ts
		FROM messages
		WHERE session_id = ?
		ORDER BY id ASC
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	out := []domain.Message{}
	for rows.Next() {
		var (
			role string
			m    domain.Message
		)
		if err := rows.Scan(&role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.MessageRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanSession reads the session columns followed by any extra destinations
func scanSession(row scanner, extra ...any) (*domain.Session, error) {
	var (
		s                    domain.Session
		id, agentID          string
		createdAt, updatedAt int64
	)
	m := &s.UserMetadata
	dest := append([]any{
		&id,
		&agentID,
		&createdAt,
		&updatedAt,
		&m.IPAddress,
		&m.UserAgent,
		&m.Device.Type,
		&m.Device.Browser,
		&m.Device.OS,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}
	if s.AgentID, err = uuid.Parse(agentID); err != nil {
		return nil, fmt.Errorf("invalid agent id %q: %w", agentID, err)
	}
	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &s, nil
}
