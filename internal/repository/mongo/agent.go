package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/rag-agent/internal/domain"
)

// AgentRepository implements domain.AgentRepository
type AgentRepository struct {
	coll *mongo.Collection
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(c *Client) *AgentRepository {
	return &AgentRepository{coll: c.db.Collection(agentsCollection)}
}

type agentFileDoc struct {
	Path         string `bson:"path"`
	FileType     string `bson:"file_type"`
	OriginalName string `bson:"original_name"`
	Chunks       int    `bson:"chunks"`
}

type agentDoc struct {
	ID          string         `bson:"_id"`
	Name        string         `bson:"name"`
	TokenHash   string         `bson:"token_hash"`
	TokenCipher string         `bson:"token_cipher"`
	TokenHint   string         `bson:"token_hint"`
	Files       []agentFileDoc `bson:"files"`
	CreatedAt   time.Time      `bson:"created_at"`
}

func toAgentDoc(a *domain.Agent) agentDoc {
	files := make([]agentFileDoc, len(a.Files))
	for i, f := range a.Files {
		files[i] = agentFileDoc{Path: f.Path, FileType: string(f.FileType), OriginalName: f.OriginalName, Chunks: f.Chunks}
	}
	return agentDoc{
		ID:          a.ID.String(),
		Name:        a.Name,
		TokenHash:   a.TokenHash,
		TokenCipher: a.TokenCipher,
		TokenHint:   a.TokenHint,
		Files:       files,
		CreatedAt:   a.CreatedAt,
	}
}

func (d agentDoc) toDomain() (*domain.Agent, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid agent id %q: %w", d.ID, err)
	}
	files := make([]domain.AgentFile, len(d.Files))
	for i, f := range d.Files {
		files[i] = domain.AgentFile{Path: f.Path, FileType: domain.FileType(f.FileType), OriginalName: f.OriginalName, Chunks: f.Chunks}
	}
	return &domain.Agent{
		ID:          id,
		Name:        d.Name,
		TokenHash:   d.TokenHash,
		TokenCipher: d.TokenCipher,
		TokenHint:   d.TokenHint,
		Files:       files,
		CreatedAt:   d.CreatedAt.UTC(),
	}, nil
}

func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	if _, err := r.coll.InsertOne(ctx, toAgentDoc(agent)); err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *AgentRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Agent, error) {
	return r.findOne(ctx, bson.M{"token_hash": tokenHash})
}

func (r *AgentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Agent, error) {
	var doc agentDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return doc.toDomain()
}

func (r *AgentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer cur.Close(ctx)

	agents := []domain.Agent{}
	for cur.Next(ctx) {
		var doc agentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode agent: %w", err)
		}
		a, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, cur.Err()
}

func (r *AgentRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return false, fmt.Errorf("failed to delete agent: %w", err)
	}
	return res.DeletedCount > 0, nil
}
