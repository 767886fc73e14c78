package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/websitelelo/websitelelo/internal/models"
	"github.com/websitelelo/websitelelo/internal/repository"
)

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestCollectionFind(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mt.Run("ascending and active filter", func(mt *mtest.T) {
		c := &Collection[models.Offer]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "1"}, {Key: "title", Value: "Diwali"}, {Key: "createdAt", Value: created}},
			bson.D{{Key: "_id", Value: "2"}, {Key: "title", Value: "Holi"}, {Key: "isActive", Value: true}, {Key: "createdAt", Value: created}},
		))

		docs, err := c.Find(context.Background(), repository.Query{ActiveOnly: true})
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		assert.Equal(mt, "Diwali", docs[0].Title)
		// no stored flag: decoded as nil, still active
		assert.Nil(mt, docs[0].IsActive)
		assert.True(mt, docs[0].Active())

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, int64(1), cmd.Lookup("sort", "createdAt").AsInt64())
		_, err = cmd.LookupErr("filter", "isActive", "$ne")
		assert.NoError(mt, err)
	})

	mt.Run("descending", func(mt *mtest.T) {
		c := &Collection[models.Lead]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		docs, err := c.Find(context.Background(), repository.Query{Descending: true})
		require.NoError(mt, err)
		assert.NotNil(mt, docs)
		assert.Empty(mt, docs)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, int64(-1), cmd.Lookup("sort", "createdAt").AsInt64())
	})

	mt.Run("server error", func(mt *mtest.T) {
		c := &Collection[models.Plan]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Message: "unauthorized"}))

		_, err := c.Find(context.Background(), repository.Query{})
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestCollectionFindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		c := &Collection[models.Plan]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "abc"}, {Key: "name", Value: "Basic"}},
		))

		p, err := c.FindByID(context.Background(), "abc")
		require.NoError(mt, err)
		assert.Equal(mt, "Basic", p.Name)
	})

	mt.Run("missing", func(mt *mtest.T) {
		c := &Collection[models.Plan]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := c.FindByID(context.Background(), "abc")
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestCollectionReplace(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	plan := &models.Plan{Name: "Basic", Price: "1", DeliveryTime: "1 Day", IsActive: models.Bool(true)}
	plan.ID = primitive.NewObjectID().Hex()

	mt.Run("drops _id from the replacement", func(mt *mtest.T) {
		c := &Collection[models.Plan]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, c.Replace(context.Background(), plan.ID, plan))

		cmd := mt.GetStartedEvent().Command
		update := cmd.Lookup("updates").Array().Index(0).Value().Document()
		replacement := update.Lookup("u").Document()
		_, err := replacement.LookupErr("_id")
		assert.Error(mt, err)
		assert.Equal(mt, "Basic", replacement.Lookup("name").StringValue())
		_, err = update.LookupErr("q", "_id", "$in")
		assert.NoError(mt, err)
	})

	mt.Run("no match is not found", func(mt *mtest.T) {
		c := &Collection[models.Plan]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := c.Replace(context.Background(), plan.ID, plan)
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestCollectionDelete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		c := &Collection[models.Lead]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		assert.NoError(mt, c.Delete(context.Background(), "1780000000000000000"))
	})

	mt.Run("nothing deleted is not found", func(mt *mtest.T) {
		c := &Collection[models.Lead]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		err := c.Delete(context.Background(), "1780000000000000000")
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestCollectionCount(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("count", func(mt *mtest.T) {
		c := &Collection[models.TeamMember]{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(3)}},
		))

		n, err := c.Count(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, 3, n)
	})
}
