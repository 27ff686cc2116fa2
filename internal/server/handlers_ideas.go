package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/store"
	"github.com/jonathan/content-repurposer/internal/types"
)

// handleGenerateIdeas generates ideas from a source and stores them.
func (s *Server) handleGenerateIdeas(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	sourceID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.GenerateIdeasRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	src, err := s.loadSource(r.Context(), userID, sourceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ideas, err := s.generator.GenerateIdeas(r.Context(), src, req.EffectiveCount())
	s.metrics.ObserveGeneration("ideas", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.store.CreateIdeas(r.Context(), ideas); err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"source_id": sourceID,
		"count":     len(ideas),
	}).Info("ideas generated")
	jsonResponse(w, http.StatusCreated, map[string]any{"items": nonNil(ideas)})
}

// handleListIdeas returns one page of a source's ideas.
func (s *Server) handleListIdeas(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	sourceID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if _, err := s.loadSource(r.Context(), userID, sourceID); err != nil {
		s.fail(w, r, err)
		return
	}

	page := pageRequest(r)
	items, total, err := s.store.ListIdeas(r.Context(), userID, sourceID, page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, store.NewPage(items, page, total))
}

// handleGetIdea returns one idea.
func (s *Server) handleGetIdea(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	idea, err := s.loadIdea(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, idea)
}

// handleUpdateIdea replaces an idea's title and description.
func (s *Server) handleUpdateIdea(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.UpdateIdeaRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	idea, err := s.loadIdea(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	idea.Title = strings.TrimSpace(req.Title)
	idea.Description = strings.TrimSpace(req.Description)
	if idea.Title == "" {
		s.fail(w, r, &ErrValidation{Field: "title", Message: "must not be blank"})
		return
	}
	if err := s.store.UpdateIdea(r.Context(), idea); err != nil {
		s.fail(w, r, notFoundAs(err, "idea", id))
		return
	}
	jsonResponse(w, http.StatusOK, idea)
}

// handleDeleteIdea deletes an idea with the posts generated from it.
func (s *Server) handleDeleteIdea(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteIdea(r.Context(), userID, id); err != nil {
		s.fail(w, r, notFoundAs(err, "idea", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadIdea(ctx context.Context, userID, id uuid.UUID) (*store.Idea, error) {
	idea, err := s.store.GetIdea(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if idea == nil {
		return nil, &ErrNotFound{Resource: "idea", ID: id}
	}
	return idea, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
