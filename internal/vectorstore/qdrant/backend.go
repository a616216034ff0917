// Package qdrant stores chunk vectors in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Rrens/rag-agent/internal/config"
	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/vectorstore"
)

const healthTTL = 5 * time.Second

// Payload keys
const (
	fieldAgentID    = "agent_id"
	fieldFileType   = "file_type"
	fieldFileName   = "file_name"
	fieldTimestamp  = "timestamp"
	fieldChunkSize  = "chunk_size"
	fieldChunkIndex = "chunk_index"
	fieldText       = "text"
)

// Backend implements vectorstore.Backend on Qdrant
type Backend struct {
	client     *qdrant.Client
	collection string
	dims       uint64

	healthGroup singleflight.Group
	healthErr   atomic.Pointer[error]
	healthAt    atomic.Int64
}

var _ vectorstore.Backend = (*Backend)(nil)

// parseURL extracts host, gRPC port and TLS flag. The REST port 6333 maps to 6334.
func parseURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()
	port = 6334

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port in qdrant URL: %q", portStr)
		}
		if p != 6333 {
			port = p
		}
	}
	return host, port, useTLS, nil
}

// NewBackend connects to Qdrant. Call EnsureCollection before use.
func NewBackend(cfg config.QdrantConfig, dims int) (*Backend, error) {
	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if dims <= 0 {
		return nil, fmt.Errorf("qdrant needs embedding.dimensions > 0")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &Backend{
		client:     client,
		collection: cfg.Collection,
		dims:       uint64(dims),
	}, nil
}

// EnsureCollection creates the collection and the agent_id keyword index if missing
func (b *Backend) EnsureCollection(ctx context.Context) error {
	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		if err := b.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: b.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     b.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("failed to create collection %q: %w", b.collection, err)
		}
		log.Info().Str("collection", b.collection).Uint64("dims", b.dims).Msg("Qdrant collection created")
	}

	keyword := qdrant.FieldType_FieldTypeKeyword
	if _, err := b.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: b.collection,
		FieldName:      fieldAgentID,
		FieldType:      &keyword,
	}); err != nil {
		return fmt.Errorf("failed to ensure index on %q: %w", fieldAgentID, err)
	}
	return nil
}

// Upsert writes points and waits for them to be applied
func (b *Backend) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		m := r.Chunk.Metadata
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(r.ID.String()),
			Vectors: qdrant.NewVectorsDense(r.Vector),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldAgentID:    m.AgentID,
				fieldFileType:   string(m.FileType),
				fieldFileName:   m.FileName,
				fieldTimestamp:  m.Timestamp,
				fieldChunkSize:  int64(m.ChunkSize),
				fieldChunkIndex: int64(m.ChunkIndex),
				fieldText:       r.Chunk.Text,
			}),
		}
	}

	if _, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert %d points: %w", len(points), err)
	}
	return nil
}

// Nearest queries with an agent_id payload filter
func (b *Backend) Nearest(ctx context.Context, vector []float32, agentID string, limit int) ([]domain.ScoredChunk, error) {
	fetch := uint64(limit)
	scored, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.collection,
		Query:          qdrant.NewQueryDense(vector),
		Filter: &qdrant.Filter{Must: []*qdrant.Condition{
			qdrant.NewMatch(fieldAgentID, agentID),
		}},
		Limit:       &fetch,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	out := make([]domain.ScoredChunk, 0, len(scored))
	for _, sp := range scored {
		p := sp.GetPayload()
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{
				Text: p[fieldText].GetStringValue(),
				Metadata: domain.ChunkMetadata{
					AgentID:    p[fieldAgentID].GetStringValue(),
					FileType:   domain.FileType(p[fieldFileType].GetStringValue()),
					FileName:   p[fieldFileName].GetStringValue(),
					Timestamp:  p[fieldTimestamp].GetIntegerValue(),
					ChunkSize:  int(p[fieldChunkSize].GetIntegerValue()),
					ChunkIndex: int(p[fieldChunkIndex].GetIntegerValue()),
				},
			},
			Score: sp.GetScore(),
		})
	}
	return out, nil
}

// DeleteByAgent removes points by payload filter. Qdrant does not report a count.
func (b *Backend) DeleteByAgent(ctx context.Context, agentID string) (int, error) {
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatch(fieldAgentID, agentID)},
				},
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant delete by agent %s: %w", agentID, err)
	}
	return 0, nil
}

// Ping checks Qdrant health. Results are cached briefly and concurrent
// callers share one in-flight check, which runs detached from any single
// caller's context.
func (b *Backend) Ping(ctx context.Context) error {
	if time.Since(time.Unix(0, b.healthAt.Load())) < healthTTL {
		if errp := b.healthErr.Load(); errp != nil {
			return *errp
		}
	}

	ch := b.healthGroup.DoChan("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_, err := b.client.HealthCheck(checkCtx)
		if err != nil {
			err = fmt.Errorf("qdrant unhealthy: %w", err)
		}
		b.healthErr.Store(&err)
		b.healthAt.Store(time.Now().UnixNano())
		return nil, err
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the gRPC connection
func (b *Backend) Close() error {
	return b.client.Close()
}
