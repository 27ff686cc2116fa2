package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-repurposer/internal/store"
)

const ideaColumns = `id, user_id, source_id, title, description, created_at`

func scanIdea(row pgx.Row) (*store.Idea, error) {
	var i store.Idea
	if err := row.Scan(&i.ID, &i.UserID, &i.SourceID, &i.Title, &i.Description, &i.CreatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

// CreateIdeas inserts a generated batch in one round trip.
func (db *DB) CreateIdeas(ctx context.Context, ideas []store.Idea) error {
	if len(ideas) == 0 {
		return nil
	}
	now := db.now()
	batch := &pgx.Batch{}
	for i := range ideas {
		ideas[i].Stamp(now)
		idea := ideas[i]
		batch.Queue(
			`INSERT INTO ideas (`+ideaColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			idea.ID, idea.UserID, idea.SourceID, idea.Title, idea.Description, idea.CreatedAt,
		)
	}
	if err := db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create ideas: %w", err)
	}
	return nil
}

// GetIdea retrieves an idea owned by userID. Returns nil, nil if not found.
func (db *DB) GetIdea(ctx context.Context, userID, id uuid.UUID) (*store.Idea, error) {
	i, err := scanIdea(db.pool.QueryRow(ctx,
		`SELECT `+ideaColumns+` FROM ideas WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idea: %w", err)
	}
	return i, nil
}

// ListIdeas returns one page of the ideas generated from a source.
func (db *DB) ListIdeas(ctx context.Context, userID, sourceID uuid.UUID, page store.PageRequest) ([]store.Idea, int64, error) {
	page = page.Normalize()

	var total int64
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ideas WHERE user_id = $1 AND source_id = $2`, userID, sourceID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ideas: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+ideaColumns+` FROM ideas WHERE user_id = $1 AND source_id = $2
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		userID, sourceID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ideas: %w", err)
	}
	defer rows.Close()

	var ideas []store.Idea
	for rows.Next() {
		i, err := scanIdea(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan idea: %w", err)
		}
		ideas = append(ideas, *i)
	}
	return ideas, total, rows.Err()
}

// UpdateIdea updates title and description.
func (db *DB) UpdateIdea(ctx context.Context, idea *store.Idea) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE ideas SET title = $1, description = $2 WHERE id = $3 AND user_id = $4`,
		idea.Title, idea.Description, idea.ID, idea.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update idea: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteIdea deletes an idea along with the posts generated from it.
func (db *DB) DeleteIdea(ctx context.Context, userID, id uuid.UUID) error {
	return db.deleteOwned(ctx, "ideas", userID, id)
}
