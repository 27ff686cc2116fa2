package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/content-repurposer/internal/store"
)

const scheduleColumns = `id, user_id, post_id, platform, publish_at, status, created_at, updated_at`

func scanSchedule(row pgx.Row) (*store.Schedule, error) {
	var s store.Schedule
	if err := row.Scan(&s.ID, &s.UserID, &s.PostID, &s.Platform, &s.PublishAt, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSchedule stores a publish date for a post.
func (db *DB) CreateSchedule(ctx context.Context, s *store.Schedule) error {
	s.Stamp(db.now())
	_, err := db.pool.Exec(ctx,
		`INSERT INTO schedules (`+scheduleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.PostID, s.Platform, s.PublishAt, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule owned by userID. Returns nil, nil if not found.
func (db *DB) GetSchedule(ctx context.Context, userID, id uuid.UUID) (*store.Schedule, error) {
	s, err := scanSchedule(db.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return s, nil
}

// ListSchedules returns one page of the user's schedules, newest first.
func (db *DB) ListSchedules(ctx context.Context, userID uuid.UUID, filter store.ScheduleFilter, page store.PageRequest) ([]store.Schedule, int64, error) {
	page = page.Normalize()

	w := &whereBuilder{args: []any{userID}}
	if filter.From != nil {
		w.add("publish_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("publish_at <= $%d", *filter.To)
	}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}
	where := ` WHERE user_id = $1` + w.clauses

	var total int64
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schedules`+where, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count schedules: %w", err)
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules` + where +
		` ORDER BY created_at DESC LIMIT ` + w.next(page.Limit) + ` OFFSET ` + w.next(page.Offset())
	rows, err := db.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []store.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}
	return schedules, total, rows.Err()
}

// UpdateSchedule writes platform, publish date and status.
func (db *DB) UpdateSchedule(ctx context.Context, s *store.Schedule) error {
	s.UpdatedAt = db.now()
	tag, err := db.pool.Exec(ctx,
		`UPDATE schedules SET platform = $1, publish_at = $2, status = $3, updated_at = $4
		 WHERE id = $5 AND user_id = $6`,
		s.Platform, s.PublishAt, s.Status, s.UpdatedAt, s.ID, s.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteSchedule deletes a schedule.
func (db *DB) DeleteSchedule(ctx context.Context, userID, id uuid.UUID) error {
	return db.deleteOwned(ctx, "schedules", userID, id)
}
