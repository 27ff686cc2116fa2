package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/store"
	"github.com/jonathan/content-repurposer/internal/types"
)

// handleCreateSchedule records a future publish date for a post. Nothing
// publishes it; the record is for the user's calendar.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req types.CreateScheduleRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !req.PublishAt.After(s.now()) {
		s.fail(w, r, &ErrValidation{Field: "publish_at", Message: "must be in the future"})
		return
	}

	postID := uuid.MustParse(req.PostID) // validated as a UUID above
	post, err := s.loadPost(r.Context(), userID, postID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	platform := req.Platform
	if platform == "" {
		platform = post.Platform
	}

	sched := &store.Schedule{
		UserID:    userID,
		PostID:    post.ID,
		Platform:  platform,
		PublishAt: req.PublishAt.UTC(),
		Status:    store.ScheduleStatusScheduled,
	}
	if err := s.store.CreateSchedule(r.Context(), sched); err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"schedule_id": sched.ID,
		"post_id":     post.ID,
		"publish_at":  sched.PublishAt.Format(time.RFC3339),
	}).Info("schedule created")
	jsonResponse(w, http.StatusCreated, sched)
}

// handleListSchedules returns the caller's schedules ordered by publish date.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	filter, err := scheduleFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page := pageRequest(r)
	items, total, err := s.store.ListSchedules(r.Context(), userID, filter, page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, store.NewPage(items, page, total))
}

func scheduleFilter(r *http.Request) (store.ScheduleFilter, error) {
	q := r.URL.Query()
	var filter store.ScheduleFilter

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, &ErrValidation{Field: bound.name, Message: "must be an RFC 3339 timestamp"}
		}
		t = t.UTC()
		*bound.dst = &t
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, &ErrValidation{Field: "from", Message: "must not be after to"}
	}

	switch status := q.Get("status"); status {
	case "", store.ScheduleStatusScheduled, store.ScheduleStatusCancelled:
		filter.Status = status
	default:
		return filter, &ErrValidation{Field: "status", Message: "must be scheduled or cancelled"}
	}
	return filter, nil
}

// handleGetSchedule returns one schedule.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	sched, err := s.loadSchedule(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, sched)
}

// handleUpdateSchedule reschedules, retargets or cancels a schedule. A
// schedule that is (or becomes) active must point at a future date.
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.UpdateScheduleRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	sched, err := s.loadSchedule(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	reactivated := req.Status != nil && *req.Status == store.ScheduleStatusScheduled &&
		sched.Status != store.ScheduleStatusScheduled
	if req.PublishAt != nil {
		sched.PublishAt = req.PublishAt.UTC()
	}
	if req.Platform != nil {
		sched.Platform = *req.Platform
	}
	if req.Status != nil {
		sched.Status = *req.Status
	}

	if sched.Status == store.ScheduleStatusScheduled && (req.PublishAt != nil || reactivated) &&
		!sched.PublishAt.After(s.now()) {
		s.fail(w, r, &ErrValidation{Field: "publish_at", Message: "must be in the future"})
		return
	}

	if err := s.store.UpdateSchedule(r.Context(), sched); err != nil {
		s.fail(w, r, notFoundAs(err, "schedule", id))
		return
	}
	jsonResponse(w, http.StatusOK, sched)
}

// handleDeleteSchedule deletes a schedule.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteSchedule(r.Context(), userID, id); err != nil {
		s.fail(w, r, notFoundAs(err, "schedule", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadSchedule(ctx context.Context, userID, id uuid.UUID) (*store.Schedule, error) {
	sched, err := s.store.GetSchedule(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, &ErrNotFound{Resource: "schedule", ID: id}
	}
	return sched, nil
}
