package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/rag-agent/internal/domain"
)

// AgentRepository implements domain.AgentRepository
type AgentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{pool: pool}
}

const agentColumns = `id, name, token_hash, token_cipher, token_hint, files, created_at`

func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	files, err := json.Marshal(agentFiles(agent.Files))
	if err != nil {
		return fmt.Errorf("failed to encode agent files: %w", err)
	}

	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.TokenHash,
		agent.TokenCipher,
		agent.TokenHint,
		files,
		agent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	return r.getOne(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
}

func (r *AgentRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Agent, error) {
	return r.getOne(ctx, `SELECT `+agentColumns+` FROM agents WHERE token_hash = $1`, tokenHash)
}

func (r *AgentRepository) getOne(ctx context.Context, query string, arg any) (*domain.Agent, error) {
	a, err := scanAgent(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return a, nil
}

func (r *AgentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC`)
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
	tag, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete agent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var (
		a     domain.Agent
		files []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.Name,
		&a.TokenHash,
		&a.TokenCipher,
		&a.TokenHint,
		&files,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(files, &a.Files); err != nil {
		return nil, fmt.Errorf("failed to decode agent files: %w", err)
	}
	return &a, nil
}

func agentFiles(files []domain.AgentFile) []domain.AgentFile {
	if files == nil {
		return []domain.AgentFile{}
	}
	return files
}
