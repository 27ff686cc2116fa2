package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonathan/content-repurposer/internal/store"
)

// CreatePosts inserts a generated batch.
func (s *Store) CreatePosts(ctx context.Context, posts []store.Post) error {
	if len(posts) == 0 {
		return nil
	}
	now := s.now()
	docs := make([]any, 0, len(posts))
	for i := range posts {
		posts[i].Stamp(now)
		docs = append(docs, fromPost(&posts[i]))
	}
	if _, err := s.posts.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	return nil
}

// GetPost retrieves a post owned by userID. Returns nil, nil if not found.
func (s *Store) GetPost(ctx context.Context, userID, id uuid.UUID) (*store.Post, error) {
	doc, err := findOne[postDoc](ctx, s.posts, ownedFilter(userID, id))
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.toModel()
}

// ListPosts returns one page of the user's posts matching filter, newest first.
func (s *Store) ListPosts(ctx context.Context, userID uuid.UUID, filter store.PostFilter, page store.PageRequest) ([]store.Post, int64, error) {
	docs, total, err := findPage[postDoc](ctx, s.posts, postFilter(userID, filter), pageOptions(page, "created_at", -1))
	if err != nil {
		return nil, 0, err
	}
	items, err := modelsOf(docs, (*postDoc).toModel)
	return items, total, err
}

func postFilter(userID uuid.UUID, filter store.PostFilter) bson.M {
	q := bson.M{"user_id": userID.String()}
	if filter.SourceID != uuid.Nil {
		q["source_id"] = filter.SourceID.String()
	}
	if filter.IdeaID != uuid.Nil {
		q["idea_id"] = filter.IdeaID.String()
	}
	if filter.Platform != "" {
		q["platform"] = filter.Platform
	}
	return q
}

// UpdatePost writes the editable fields of a post.
func (s *Store) UpdatePost(ctx context.Context, p *store.Post) error {
	p.UpdatedAt = s.now()
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return updateOwned(ctx, s.posts, p.UserID, p.ID, bson.M{
		"title":       p.Title,
		"description": p.Description,
		"tags":        tags,
		"platform":    p.Platform,
		"tone":        p.Tone,
		"length":      p.Length,
		"updated_at":  p.UpdatedAt,
	})
}

// DeletePost deletes a post and its schedules.
func (s *Store) DeletePost(ctx context.Context, userID, id uuid.UUID) error {
	post, err := s.GetPost(ctx, userID, id)
	if err != nil {
		return err
	}
	if post == nil {
		return store.ErrNotFound
	}
	if _, err := s.schedules.DeleteMany(ctx, bson.M{"user_id": userID.String(), "post_id": id.String()}); err != nil {
		return fmt.Errorf("failed to delete schedules of post: %w", err)
	}
	return deleteOwned(ctx, s.posts, userID.String(), id.String())
}
