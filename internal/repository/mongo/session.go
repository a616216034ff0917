package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Rrens/rag-agent/internal/domain"
)

// SessionRepository implements domain.SessionRepository with messages
// embedded in the session document
type SessionRepository struct {
	coll *mongo.Collection
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(c *Client) *SessionRepository {
	return &SessionRepository{coll: c.db.Collection(sessionsCollection)}
}

type messageDoc struct {
	Role      string `bson:"role"`
	Content   string `bson:"content"`
	Timestamp int64  `bson:"timestamp"`
}

type metadataDoc struct {
	IPAddress     string `bson:"ip_address"`
	UserAgent     string `bson:"user_agent"`
	DeviceType    string `bson:"device_type"`
	DeviceBrowser string `bson:"device_browser"`
	DeviceOS      string `bson:"device_os"`
}

type sessionDoc struct {
	ID           string       `bson:"_id"`
	AgentID      string       `bson:"agent_id"`
	Messages     []messageDoc `bson:"messages"`
	CreatedAt    time.Time    `bson:"created_at"`
	UpdatedAt    time.Time    `bson:"updated_at"`
	UserMetadata metadataDoc  `bson:"user_metadata"`
}

// summaryDoc is the aggregation projection used by ListByAgent
type summaryDoc struct {
	ID           string      `bson:"_id"`
	AgentID      string      `bson:"agent_id"`
	CreatedAt    time.Time   `bson:"created_at"`
	UpdatedAt    time.Time   `bson:"updated_at"`
	UserMetadata metadataDoc `bson:"user_metadata"`
	MessageCount int         `bson:"message_count"`
	LastMessage  *messageDoc `bson:"last_message"`
}

func (m metadataDoc) toDomain() domain.UserMetadata {
	return domain.UserMetadata{
		IPAddress: m.IPAddress,
		UserAgent: m.UserAgent,
		Device:    domain.Device{Type: m.DeviceType, Browser: m.DeviceBrowser, OS: m.DeviceOS},
	}
}

func (m messageDoc) toDomain() domain.Message {
	return domain.Message{Role: domain.MessageRole(m.Role), Content: m.Content, Timestamp: m.Timestamp}
}

func parseIDs(id, agentID string) (uuid.UUID, uuid.UUID, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}
	aid, err := uuid.Parse(agentID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid agent id %q: %w", agentID, err)
	}
	return sid, aid, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m := session.UserMetadata
	doc := sessionDoc{
		ID:        session.ID.String(),
		AgentID:   session.AgentID.String(),
		Messages:  []messageDoc{},
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		UserMetadata: metadataDoc{
			IPAddress:     m.IPAddress,
			UserAgent:     m.UserAgent,
			DeviceType:    m.Device.Type,
			DeviceBrowser: m.Device.Browser,
			DeviceOS:      m.Device.OS,
		},
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var doc sessionDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sid, aid, err := parseIDs(doc.ID, doc.AgentID)
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, len(doc.Messages))
	for i, m := range doc.Messages {
		msgs[i] = m.toDomain()
	}
	return &domain.Session{
		ID:           sid,
		AgentID:      aid,
		Messages:     msgs,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
		UserMetadata: doc.UserMetadata.toDomain(),
	}, nil
}

// AppendMessage pushes onto the embedded array in a single-document update
func (r *SessionRepository) AppendMessage(ctx context.Context, id uuid.UUID, msg domain.Message, updatedAt time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{
			"$push": bson.M{"messages": messageDoc{Role: string(msg.Role), Content: msg.Content, Timestamp: msg.Timestamp}},
			"$set":  bson.M{"updated_at": updatedAt},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.SessionSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"agent_id": agentID.String()}}},
		{{Key: "$sort", Value: bson.D{{Key: "updated_at", Value: -1}}}},
		{{Key: "$project", Value: bson.M{
			"agent_id":      1,
			"created_at":    1,
			"updated_at":    1,
			"user_metadata": 1,
			"message_count": bson.M{"$size": "$messages"},
			"last_message":  bson.M{"$arrayElemAt": bson.A{"$messages", -1}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cur.Close(ctx)

	summaries := []domain.SessionSummary{}
	for cur.Next(ctx) {
		var doc summaryDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		sid, aid, err := parseIDs(doc.ID, doc.AgentID)
		if err != nil {
			return nil, err
		}
		s := domain.SessionSummary{
			ID:           sid,
			AgentID:      aid,
			CreatedAt:    doc.CreatedAt.UTC(),
			UpdatedAt:    doc.UpdatedAt.UTC(),
			MessageCount: doc.MessageCount,
			UserMetadata: doc.UserMetadata.toDomain(),
		}
		if doc.LastMessage != nil {
			m := doc.LastMessage.toDomain()
			s.LastMessage = &m
		}
		summaries = append(summaries, s)
	}
	return summaries, cur.Err()
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *SessionRepository) DeleteByAgent(ctx context.Context, agentID uuid.UUID) (int, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"agent_id": agentID.String()})
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return int(res.DeletedCount), nil
}
