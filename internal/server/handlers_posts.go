package server

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/generation"
	"github.com/jonathan/content-repurposer/internal/store"
	"github.com/jonathan/content-repurposer/internal/types"
)

// handleGenerateSourcePosts drafts posts directly from a source.
func (s *Server) handleGenerateSourcePosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	sourceID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.GeneratePostsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	src, err := s.loadSource(r.Context(), userID, sourceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.generatePosts(w, r, &req, src, nil)
}

// handleGenerateIdeaPosts drafts posts focused on one idea of a source.
func (s *Server) handleGenerateIdeaPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	ideaID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.GeneratePostsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	idea, err := s.loadIdea(r.Context(), userID, ideaID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	src, err := s.loadSource(r.Context(), userID, idea.SourceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.generatePosts(w, r, &req, src, idea)
}

func (s *Server) generatePosts(w http.ResponseWriter, r *http.Request, req *types.GeneratePostsRequest, src *store.ContentSource, idea *store.Idea) {
	posts, err := s.generator.GeneratePosts(r.Context(), generation.PostInput{
		Source:    src,
		Idea:      idea,
		Platforms: req.Platforms,
		Tone:      req.Tone,
		Length:    req.Length,
		Count:     req.EffectiveCount(),
	})
	s.metrics.ObserveGeneration("posts", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.store.CreatePosts(r.Context(), posts); err != nil {
		s.fail(w, r, err)
		return
	}

	fields := logrus.Fields{
		"user_id":   src.UserID,
		"source_id": src.ID,
		"platforms": strings.Join(req.Platforms, ","),
		"count":     len(posts),
	}
	if idea != nil {
		fields["idea_id"] = idea.ID
	}
	s.logger.WithFields(fields).Info("posts generated")
	jsonResponse(w, http.StatusCreated, map[string]any{"items": nonNil(posts)})
}

// handleListPosts returns one page of the caller's posts, optionally
// filtered by source, idea and platform.
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var filter store.PostFilter
	var err error
	if filter.SourceID, err = queryID(r, "source_id"); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.IdeaID, err = queryID(r, "idea_id"); err != nil {
		s.fail(w, r, err)
		return
	}
	if platform := r.URL.Query().Get("platform"); platform != "" {
		if !slices.Contains(types.Platforms, platform) {
			s.fail(w, r, &ErrValidation{Field: "platform", Message: "unknown platform"})
			return
		}
		filter.Platform = platform
	}

	page := pageRequest(r)
	items, total, err := s.store.ListPosts(r.Context(), userID, filter, page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, store.NewPage(items, page, total))
}

// handleGetPost returns one post.
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	post, err := s.loadPost(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, post)
}

// handleUpdatePost applies a partial edit to a post.
func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.UpdatePostRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	post, err := s.loadPost(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if req.Title != nil {
		post.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		post.Description = strings.TrimSpace(*req.Description)
		if post.Description == "" {
			s.fail(w, r, &ErrValidation{Field: "description", Message: "must not be blank"})
			return
		}
	}
	if req.Tags != nil {
		post.Tags = generation.NormalizeTags(*req.Tags)
	}
	if req.Platform != nil {
		post.Platform = *req.Platform
	}
	if req.Tone != nil {
		post.Tone = *req.Tone
	}
	if req.Length != nil {
		post.Length = *req.Length
	}

	if err := s.store.UpdatePost(r.Context(), post); err != nil {
		s.fail(w, r, notFoundAs(err, "post", id))
		return
	}
	jsonResponse(w, http.StatusOK, post)
}

// handleDeletePost deletes a post and its schedules.
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeletePost(r.Context(), userID, id); err != nil {
		s.fail(w, r, notFoundAs(err, "post", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadPost(ctx context.Context, userID, id uuid.UUID) (*store.Post, error) {
	post, err := s.store.GetPost(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, &ErrNotFound{Resource: "post", ID: id}
	}
	return post, nil
}
