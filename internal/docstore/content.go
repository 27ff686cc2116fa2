package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jonathan/content-repurposer/internal/store"
)

// CreateSource stores a scraped source.
func (s *Store) CreateSource(ctx context.Context, src *store.ContentSource) error {
	src.Stamp(s.now())
	if _, err := s.sources.InsertOne(ctx, fromSource(src)); err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// GetSource retrieves a source owned by userID. Returns nil, nil if not found.
func (s *Store) GetSource(ctx context.Context, userID, id uuid.UUID) (*store.ContentSource, error) {
	doc, err := findOne[sourceDoc](ctx, s.sources, ownedFilter(userID, id))
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.toModel()
}

// ListSources returns one page of the user's sources, newest first.
func (s *Store) ListSources(ctx context.Context, userID uuid.UUID, page store.PageRequest) ([]store.ContentSource, int64, error) {
	docs, total, err := findPage[sourceDoc](ctx, s.sources,
		bson.M{"user_id": userID.String()}, pageOptions(page, "created_at", -1))
	if err != nil {
		return nil, 0, err
	}
	items, err := modelsOf(docs, (*sourceDoc).toModel)
	return items, total, err
}

// DeleteSource deletes a source with its ideas, posts and their schedules.
// Children go first so a failed cascade leaves the source in place to retry.
func (s *Store) DeleteSource(ctx context.Context, userID, id uuid.UUID) error {
	src, err := s.GetSource(ctx, userID, id)
	if err != nil {
		return err
	}
	if src == nil {
		return store.ErrNotFound
	}
	children := bson.M{"user_id": userID.String(), "source_id": id.String()}
	if err := s.deletePostsWhere(ctx, children); err != nil {
		return err
	}
	if _, err := s.ideas.DeleteMany(ctx, children); err != nil {
		return fmt.Errorf("failed to delete ideas of source: %w", err)
	}
	return deleteOwned(ctx, s.sources, userID.String(), id.String())
}

// CreateIdeas inserts a generated batch.
func (s *Store) CreateIdeas(ctx context.Context, ideas []store.Idea) error {
	if len(ideas) == 0 {
		return nil
	}
	now := s.now()
	docs := make([]any, 0, len(ideas))
	for i := range ideas {
		ideas[i].Stamp(now)
		docs = append(docs, fromIdea(&ideas[i]))
	}
	if _, err := s.ideas.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create ideas: %w", err)
	}
	return nil
}

// GetIdea retrieves an idea owned by userID. Returns nil, nil if not found.
func (s *Store) GetIdea(ctx context.Context, userID, id uuid.UUID) (*store.Idea, error) {
	doc, err := findOne[ideaDoc](ctx, s.ideas, ownedFilter(userID, id))
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.toModel()
}

// ListIdeas returns one page of the ideas generated from a source.
func (s *Store) ListIdeas(ctx context.Context, userID, sourceID uuid.UUID, page store.PageRequest) ([]store.Idea, int64, error) {
	filter := bson.M{"user_id": userID.String(), "source_id": sourceID.String()}
	docs, total, err := findPage[ideaDoc](ctx, s.ideas, filter, pageOptions(page, "created_at", -1))
	if err != nil {
		return nil, 0, err
	}
	items, err := modelsOf(docs, (*ideaDoc).toModel)
	return items, total, err
}

// UpdateIdea updates title and description.
func (s *Store) UpdateIdea(ctx context.Context, idea *store.Idea) error {
	return updateOwned(ctx, s.ideas, idea.UserID, idea.ID, bson.M{
		"title":       idea.Title,
		"description": idea.Description,
	})
}

// DeleteIdea deletes an idea with the posts generated from it.
func (s *Store) DeleteIdea(ctx context.Context, userID, id uuid.UUID) error {
	idea, err := s.GetIdea(ctx, userID, id)
	if err != nil {
		return err
	}
	if idea == nil {
		return store.ErrNotFound
	}
	if err := s.deletePostsWhere(ctx, bson.M{"user_id": userID.String(), "idea_id": id.String()}); err != nil {
		return err
	}
	return deleteOwned(ctx, s.ideas, userID.String(), id.String())
}

// deletePostsWhere removes matching posts and the schedules pointing at them.
func (s *Store) deletePostsWhere(ctx context.Context, filter bson.M) error {
	ids, err := s.posts.Distinct(ctx, "_id", filter)
	if err != nil {
		return fmt.Errorf("failed to find posts: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.schedules.DeleteMany(ctx, bson.M{"post_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete schedules: %w", err)
	}
	if _, err := s.posts.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete posts: %w", err)
	}
	return nil
}

func ownedFilter(userID, id uuid.UUID) bson.M {
	return bson.M{"_id": id.String(), "user_id": userID.String()}
}

func updateOwned(ctx context.Context, coll *mongo.Collection, userID, id uuid.UUID, set bson.M) error {
	res, err := coll.UpdateOne(ctx, ownedFilter(userID, id), bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
