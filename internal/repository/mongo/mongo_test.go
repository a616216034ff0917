package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/Rrens/rag-agent/internal/domain"
)

func TestAgentRepository_Get(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := &AgentRepository{coll: mt.Coll}
		id := uuid.New()
		created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "name", Value: "kb"},
			{Key: "token_hash", Value: "h"},
			{Key: "token_cipher", Value: "c"},
			{Key: "token_hint", Value: "abcd****wxyz"},
			{Key: "files", Value: bson.A{bson.D{
				{Key: "path", Value: "uploads/a.md"},
				{Key: "file_type", Value: "md"},
				{Key: "original_name", Value: "a.md"},
				{Key: "chunks", Value: 2},
			}}},
			{Key: "created_at", Value: created},
		}))

		a, err := repo.Get(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, id, a.ID)
		assert.Equal(mt, "kb", a.Name)
		require.Len(mt, a.Files, 1)
		assert.Equal(mt, domain.FileTypeMD, a.Files[0].FileType)
		assert.True(mt, created.Equal(a.CreatedAt))
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := &AgentRepository{coll: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.GetByTokenHash(context.Background(), "missing")
		assert.ErrorIs(mt, err, domain.ErrAgentNotFound)
	})
}

func TestSessionRepository_AppendMessage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing session", func(mt *mtest.T) {
		repo := &SessionRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.AppendMessage(context.Background(), uuid.New(), domain.Message{Role: domain.RoleUser, Content: "hi"}, time.Now())
		assert.ErrorIs(mt, err, domain.ErrSessionNotFound)
	})

	mt.Run("appended", func(mt *mtest.T) {
		repo := &SessionRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := repo.AppendMessage(context.Background(), uuid.New(), domain.Message{Role: domain.RoleUser, Content: "hi"}, time.Now())
		assert.NoError(mt, err)
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("delete by agent counts", func(mt *mtest.T) {
		repo := &SessionRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))

		n, err := repo.DeleteByAgent(context.Background(), uuid.New())
		require.NoError(mt, err)
		assert.Equal(mt, 3, n)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		repo := &SessionRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		deleted, err := repo.Delete(context.Background(), uuid.New())
		require.NoError(mt, err)
		assert.False(mt, deleted)
	})
}
