package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-repurposer/internal/store"
)

const sourceColumns = `id, user_id, kind, url, title, content, metadata, created_at`

func scanSource(row pgx.Row) (*store.ContentSource, error) {
	var s store.ContentSource
	if err := row.Scan(&s.ID, &s.UserID, &s.Kind, &s.URL, &s.Title, &s.Content, &s.Metadata, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSource stores a scraped source.
func (db *DB) CreateSource(ctx context.Context, s *store.ContentSource) error {
	s.Stamp(db.now())
	metadata := s.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO content_sources (`+sourceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.Kind, s.URL, s.Title, s.Content, metadata, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// GetSource retrieves a source owned by userID. Returns nil, nil if not found.
func (db *DB) GetSource(ctx context.Context, userID, id uuid.UUID) (*store.ContentSource, error) {
	s, err := scanSource(db.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM content_sources WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

// ListSources returns one page of the user's sources, newest first, and the
// total count.
func (db *DB) ListSources(ctx context.Context, userID uuid.UUID, page store.PageRequest) ([]store.ContentSource, int64, error) {
	page = page.Normalize()

	var total int64
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM content_sources WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sources: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+sourceColumns+` FROM content_sources WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []store.ContentSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, total, rows.Err()
}

// DeleteSource deletes a source; ideas, posts and schedules go with it via
// ON DELETE CASCADE.
func (db *DB) DeleteSource(ctx context.Context, userID, id uuid.UUID) error {
	return db.deleteOwned(ctx, "content_sources", userID, id)
}

func (db *DB) deleteOwned(ctx context.Context, table string, userID, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM `+table+` WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
