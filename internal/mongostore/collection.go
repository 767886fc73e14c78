package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/websitelelo/websitelelo/internal/repository"
)

// Collection implements repository.Primary over one MongoDB collection.
type Collection[T any] struct {
	coll *mongo.Collection
}

func NewCollection[T any](c *Client, name string) *Collection[T] {
	return &Collection[T]{coll: c.db.Collection(name)}
}

// NewID returns a fresh ObjectID in hex form.
func (c *Collection[T]) NewID() string {
	return primitive.NewObjectID().Hex()
}

// idFilter matches both ids stored as strings and legacy ObjectID values.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func listFilter(q repository.Query) bson.M {
	if q.ActiveOnly {
		// documents written before isActive existed count as active
		return bson.M{"isActive": bson.M{"$ne": false}}
	}
	return bson.M{}
}

func (c *Collection[T]) Find(ctx context.Context, q repository.Query) ([]T, error) {
	order := 1
	if q.Descending {
		order = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: order}})

	cur, err := c.coll.Find(ctx, listFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	docs := []T{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return docs, nil
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	doc := new(T)
	err := c.coll.FindOne(ctx, idFilter(id)).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", c.coll.Name(), id, err)
	}
	return doc, nil
}

func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection[T]) Replace(ctx context.Context, id string, doc *T) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.coll.Name(), id, err)
	}
	var replacement bson.M
	if err := bson.Unmarshal(raw, &replacement); err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.coll.Name(), id, err)
	}
	// the stored _id may be an ObjectID; leaving it out keeps it as is
	delete(replacement, "_id")

	res, err := c.coll.ReplaceOne(ctx, idFilter(id), replacement)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.coll.Name(), id, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.coll.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.coll.Name(), err)
	}
	return int(n), nil
}
