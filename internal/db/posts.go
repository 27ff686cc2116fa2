package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-repurposer/internal/store"
)

const postColumns = `id, user_id, source_id, idea_id, title, description, tags, platform, tone, length, created_at, updated_at`

func scanPost(row pgx.Row) (*store.Post, error) {
	var p store.Post
	err := row.Scan(&p.ID, &p.UserID, &p.SourceID, &p.IdeaID, &p.Title, &p.Description,
		&p.Tags, &p.Platform, &p.Tone, &p.Length, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

// CreatePosts inserts a generated batch in one round trip.
func (db *DB) CreatePosts(ctx context.Context, posts []store.Post) error {
	if len(posts) == 0 {
		return nil
	}
	now := db.now()
	batch := &pgx.Batch{}
	for i := range posts {
		posts[i].Stamp(now)
		p := posts[i]
		batch.Queue(
			`INSERT INTO posts (`+postColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			p.ID, p.UserID, p.SourceID, p.IdeaID, p.Title, p.Description,
			p.Tags, p.Platform, p.Tone, p.Length, p.CreatedAt, p.UpdatedAt,
		)
	}
	if err := db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	return nil
}

// GetPost retrieves a post owned by userID. Returns nil, nil if not found.
func (db *DB) GetPost(ctx context.Context, userID, id uuid.UUID) (*store.Post, error) {
	p, err := scanPost(db.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

// ListPosts returns one page of the user's posts matching filter.
func (db *DB) ListPosts(ctx context.Context, userID uuid.UUID, filter store.PostFilter, page store.PageRequest) ([]store.Post, int64, error) {
	page = page.Normalize()

	w := &whereBuilder{args: []any{userID}}
	if filter.SourceID != uuid.Nil {
		w.add("source_id = $%d", filter.SourceID)
	}
	if filter.IdeaID != uuid.Nil {
		w.add("idea_id = $%d", filter.IdeaID)
	}
	if filter.Platform != "" {
		w.add("platform = $%d", filter.Platform)
	}
	where := ` WHERE user_id = $1` + w.clauses

	var total int64
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`+where, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	query := `SELECT ` + postColumns + ` FROM posts` + where +
		` ORDER BY created_at DESC LIMIT ` + w.next(page.Limit) + ` OFFSET ` + w.next(page.Offset())
	rows, err := db.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []store.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, total, rows.Err()
}

// UpdatePost writes the editable fields of a post.
func (db *DB) UpdatePost(ctx context.Context, p *store.Post) error {
	p.UpdatedAt = db.now()
	if p.Tags == nil {
		p.Tags = []string{}
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE posts SET title = $1, description = $2, tags = $3, platform = $4, tone = $5,
		 length = $6, updated_at = $7 WHERE id = $8 AND user_id = $9`,
		p.Title, p.Description, p.Tags, p.Platform, p.Tone, p.Length, p.UpdatedAt, p.ID, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeletePost deletes a post and its schedules.
func (db *DB) DeletePost(ctx context.Context, userID, id uuid.UUID) error {
	return db.deleteOwned(ctx, "posts", userID, id)
}
