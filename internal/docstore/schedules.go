package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonathan/content-repurposer/internal/store"
)

// CreateSchedule stores a publish date for a post.
func (s *Store) CreateSchedule(ctx context.Context, sched *store.Schedule) error {
	sched.Stamp(s.now())
	if _, err := s.schedules.InsertOne(ctx, fromSchedule(sched)); err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule owned by userID. Returns nil, nil if not found.
func (s *Store) GetSchedule(ctx context.Context, userID, id uuid.UUID) (*store.Schedule, error) {
	doc, err := findOne[scheduleDoc](ctx, s.schedules, ownedFilter(userID, id))
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.toModel()
}

// ListSchedules returns one page of the user's schedules, newest first.
func (s *Store) ListSchedules(ctx context.Context, userID uuid.UUID, filter store.ScheduleFilter, page store.PageRequest) ([]store.Schedule, int64, error) {
	docs, total, err := findPage[scheduleDoc](ctx, s.schedules, scheduleFilter(userID, filter), pageOptions(page, "created_at", -1))
	if err != nil {
		return nil, 0, err
	}
	items, err := modelsOf(docs, (*scheduleDoc).toModel)
	return items, total, err
}

func scheduleFilter(userID uuid.UUID, filter store.ScheduleFilter) bson.M {
	q := bson.M{"user_id": userID.String()}
	if filter.From != nil || filter.To != nil {
		window := bson.M{}
		if filter.From != nil {
			window["$gte"] = *filter.From
		}
		if filter.To != nil {
			window["$lte"] = *filter.To
		}
		q["publish_at"] = window
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	return q
}

// UpdateSchedule writes platform, publish date and status.
func (s *Store) UpdateSchedule(ctx context.Context, sched *store.Schedule) error {
	sched.UpdatedAt = s.now()
	return updateOwned(ctx, s.schedules, sched.UserID, sched.ID, bson.M{
		"platform":   sched.Platform,
		"publish_at": sched.PublishAt,
		"status":     sched.Status,
		"updated_at": sched.UpdatedAt,
	})
}

// DeleteSchedule deletes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, userID, id uuid.UUID) error {
	return deleteOwned(ctx, s.schedules, userID.String(), id.String())
}
