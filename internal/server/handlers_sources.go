package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/ingestion"
	"github.com/jonathan/content-repurposer/internal/server/middleware"
	"github.com/jonathan/content-repurposer/internal/store"
	"github.com/jonathan/content-repurposer/internal/types"
)

type ingestFunc func(ctx context.Context, rawURL string) (*ingestion.Content, error)

// handleCreateWebSource scrapes a web page into a new source.
func (s *Server) handleCreateWebSource(w http.ResponseWriter, r *http.Request) {
	s.createSource(w, r, s.ingester.FromWebPage)
}

// handleCreateYouTubeSource stores a video transcript as a new source.
func (s *Server) handleCreateYouTubeSource(w http.ResponseWriter, r *http.Request) {
	s.createSource(w, r, s.ingester.FromYouTube)
}

func (s *Server) createSource(w http.ResponseWriter, r *http.Request, ingest ingestFunc) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req types.CreateSourceRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	content, err := ingest(r.Context(), req.URL)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	src := content.ToSource(userID)
	if err := s.store.CreateSource(r.Context(), src); err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"source_id": src.ID,
		"kind":      src.Kind,
		"chars":     len(src.Content),
	}).Info("source created")
	jsonResponse(w, http.StatusCreated, src)
}

// handleListSources returns one page of the caller's sources.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	page := pageRequest(r)
	items, total, err := s.store.ListSources(r.Context(), userID, page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, store.NewPage(items, page, total))
}

// handleGetSource returns one source.
func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	src, err := s.loadSource(r.Context(), userID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, src)
}

// handleDeleteSource deletes a source with everything generated from it.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteSource(r.Context(), userID, id); err != nil {
		s.fail(w, r, notFoundAs(err, "source", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadSource(ctx context.Context, userID, id uuid.UUID) (*store.ContentSource, error) {
	src, err := s.store.GetSource(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, &ErrNotFound{Resource: "source", ID: id}
	}
	return src, nil
}

// requireUser returns the authenticated user ID.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses the {id} path value.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, &ErrValidation{Field: "id", Message: "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional UUID query parameter. An absent value is uuid.Nil.
func queryID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: name, Message: "must be a UUID"}
	}
	return id, nil
}

func pageRequest(r *http.Request) store.PageRequest {
	q := r.URL.Query()
	return store.NewPageRequest(q.Get("page"), q.Get("limit"))
}

// notFoundAs replaces store.ErrNotFound with a resource-specific error.
func notFoundAs(err error, resource string, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return &ErrNotFound{Resource: resource, ID: id}
	}
	return err
}
