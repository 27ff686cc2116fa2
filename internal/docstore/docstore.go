// Package docstore provides the MongoDB implementation of store.Store.
//
// IDs are stored as canonical UUID strings in _id so documents stay readable
// in the mongo shell. Cascading deletes are done in application code, parent
// first, since a standalone server has no multi-document transactions.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jonathan/content-repurposer/internal/store"
)

// Collection names.
const (
	usersCollection     = "users"
	sourcesCollection   = "content_sources"
	ideasCollection     = "ideas"
	postsCollection     = "posts"
	schedulesCollection = "schedules"
)

// Store wraps the MongoDB client and the collections it uses.
type Store struct {
	client    *mongo.Client
	database  *mongo.Database
	users     *mongo.Collection
	sources   *mongo.Collection
	ideas     *mongo.Collection
	posts     *mongo.Collection
	schedules *mongo.Collection
	now       func() time.Time
}

var _ store.Store = (*Store)(nil)

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri, databaseName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	database := client.Database(databaseName)
	return &Store{
		client:    client,
		database:  database,
		users:     database.Collection(usersCollection),
		sources:   database.Collection(sourcesCollection),
		ideas:     database.Collection(ideasCollection),
		posts:     database.Collection(postsCollection),
		schedules: database.Collection(schedulesCollection),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Migrate ensures the indexes exist. CreateMany is a no-op for indexes that
// already exist with the same spec.
func (s *Store) Migrate(ctx context.Context) error {
	for coll, models := range indexModels() {
		if _, err := s.database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		usersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
			{
				Keys: bson.D{
					{Key: "oauth_accounts.provider", Value: 1},
					{Key: "oauth_accounts.subject", Value: 1},
				},
				Options: options.Index().
					SetUnique(true).
					SetName("oauth_identity_unique").
					SetPartialFilterExpression(bson.M{"oauth_accounts.subject": bson.M{"$exists": true}}),
			},
		},
		sourcesCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ideasCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "source_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "source_id", Value: 1}}},
			{Keys: bson.D{{Key: "idea_id", Value: 1}}},
		},
		schedulesCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "publish_at", Value: 1}}},
			{Keys: bson.D{{Key: "post_id", Value: 1}}},
		},
	}
}

// pageOptions sorts by sortField in order (1 or -1) and selects one page.
func pageOptions(page store.PageRequest, sortField string, order int) *options.FindOptions {
	page = page.Normalize()
	return options.Find().
		SetSort(bson.D{{Key: sortField, Value: order}, {Key: "_id", Value: order}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
}

// findPage counts filter matches and decodes one page of them into T.
func findPage[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", coll.Name(), err)
	}
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var docs []T
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", coll.Name(), err)
	}
	return docs, total, nil
}

// findOne decodes a single document. Returns nil, nil if nothing matches.
func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var doc T
	err := coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get from %s: %w", coll.Name(), err)
	}
	return &doc, nil
}

// deleteOwned deletes one document owned by userID.
func deleteOwned(ctx context.Context, coll *mongo.Collection, userID, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
