package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/rag-agent/internal/domain"
)

// AgentRepository implements domain.AgentRepository
type AgentRepository struct {
	db *DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *DB) *AgentRepository {
	return &AgentRepository{db: db}
}

const agentColumns = `id, name, token_hash, token_cipher, token_hint, files, created_at`

func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	files := agent.Files
	if files == nil {
		files = []domain.AgentFile{}
	}
	encoded, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to encode agent files: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO agents (`+agentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		agent.ID.String(),
		agent.Name,
		agent.TokenHash,
		agent.TokenCipher,
		agent.TokenHint,
		string(encoded),
		agent.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	return r.getOne(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id.String())
}

func (r *AgentRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Agent, error) {
	return r.getOne(ctx, `SELECT `+agentColumns+` FROM agents WHERE token_hash = ?`, tokenHash)
}

func (r *AgentRepository) getOne(ctx context.Context, query string, arg any) (*domain.Agent, error) {
	a, err := scanAgent(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return a, nil
}

func (r *AgentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := []domain.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (r *AgentRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete agent: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*domain.Agent, error) {
	var (
		a         domain.Agent
		id, files string
		createdAt int64
	)
	if err := row.Scan(&id, &a.Name, &a.TokenHash, &a.TokenCipher, &a.TokenHint, &files, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid agent id %q: %w", id, err)
	}
	a.ID = parsed
	a.CreatedAt = time.UnixMilli(createdAt).UTC()

	if err := json.Unmarshal([]byte(files), &a.Files); err != nil {
		return nil, fmt.Errorf("failed to decode agent files: %w", err)
	}
	return &a, nil
}
