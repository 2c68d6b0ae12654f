// Package mongo keeps the per-user collections in MongoDB and watches them
// through change streams.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finze/internal/core"
	"finze/internal/storage"
)

const categoriesCollection = "categories"

// Store wraps one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the server before returning.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to MongoDB", "database", dbName)
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	for _, name := range []core.Collection{
		core.CollectionTransactions,
		core.CollectionBudgets,
		core.CollectionGoals,
		core.CollectionRecurrences,
		core.CollectionSuggestions,
		core.CollectionCorrections,
	} {
		_, err := s.db.Collection(string(name)).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("create index on %s: %w", name, err)
		}
	}
	return nil
}

// Storage exposes the database through the backend-neutral collections.
func (s *Store) Storage() *storage.Store {
	return &storage.Store{
		Transactions: NewCollection[core.Transaction](s, core.CollectionTransactions),
		Budgets:      NewCollection[core.Budget](s, core.CollectionBudgets),
		Goals:        NewCollection[core.SavingsGoal](s, core.CollectionGoals),
		Recurrences:  NewCollection[core.Recurrence](s, core.CollectionRecurrences),
		Suggestions:  NewCollection[core.Suggestion](s, core.CollectionSuggestions),
		Corrections:  NewCollection[core.Correction](s, core.CollectionCorrections),
		Categories:   s,
	}
}

// ListCategories reads the categories collection, falling back to the
// defaults while it is empty.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := s.db.Collection(categoriesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer cursor.Close(ctx)

	var out []string
	for cursor.Next(ctx) {
		var c struct {
			Name string `bson:"name"`
		}
		if err := cursor.Decode(&c); err != nil {
			return nil, fmt.Errorf("decode category: %w", err)
		}
		out = append(out, c.Name)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	if len(out) == 0 {
		return append([]string(nil), storage.DefaultCategories...), nil
	}
	return out, nil
}

// Collection is one MongoDB collection of user documents, addressed by
// (user_id, id) rather than _id.
type Collection[T core.Document] struct {
	coll *mongo.Collection
	name core.Collection
}

func NewCollection[T core.Document](s *Store, name core.Collection) *Collection[T] {
	return &Collection[T]{coll: s.db.Collection(string(name)), name: name}
}

func (c *Collection[T]) List(ctx context.Context, userID string) ([]T, error) {
	return c.find(ctx, bson.M{"user_id": userID})
}

func (c *Collection[T]) ListAll(ctx context.Context) ([]T, error) {
	return c.find(ctx, bson.M{})
}

func (c *Collection[T]) find(ctx context.Context, filter bson.M) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	for cursor.Next(ctx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		out = append(out, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return out, nil
}

func (c *Collection[T]) Get(ctx context.Context, userID, id string) (T, error) {
	var doc T
	err := c.coll.FindOne(ctx, bson.M{"user_id": userID, "id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		var zero T
		return zero, fmt.Errorf("%s %s/%s: %w", c.name, userID, id, storage.ErrNotFound)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get %s: %w", c.name, err)
	}
	return doc, nil
}

func (c *Collection[T]) Put(ctx context.Context, doc T) error {
	if doc.GetUserID() == "" || doc.GetID() == "" {
		return fmt.Errorf("put %s: missing user or id", c.name)
	}
	filter := bson.M{"user_id": doc.GetUserID(), "id": doc.GetID()}
	_, err := c.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, userID, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"user_id": userID, "id": id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.name, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s/%s: %w", c.name, userID, id, storage.ErrNotFound)
	}
	return nil
}
