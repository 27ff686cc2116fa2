package server

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/jonathan/content-repurposer/internal/fingerprint"
	"github.com/jonathan/content-repurposer/internal/generation"
	"github.com/jonathan/content-repurposer/internal/ingestion"
	"github.com/jonathan/content-repurposer/internal/logging"
	"github.com/jonathan/content-repurposer/internal/server/ratelimit"
	"github.com/jonathan/content-repurposer/internal/session"
	"github.com/jonathan/content-repurposer/internal/store"
)

// memStore is an in-memory store.Store with the same ownership and cascade
// rules as the database backends.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*store.User
	sources   map[uuid.UUID]*store.ContentSource
	ideas     map[uuid.UUID]*store.Idea
	posts     map[uuid.UUID]*store.Post
	schedules map[uuid.UUID]*store.Schedule
	pingErr   error
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uuid.UUID]*store.User{},
		sources:   map[uuid.UUID]*store.ContentSource{},
		ideas:     map[uuid.UUID]*store.Idea{},
		posts:     map[uuid.UUID]*store.Post{},
		schedules: map[uuid.UUID]*store.Schedule{},
	}
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

func paginate[T any](items []T, page store.PageRequest) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (m *memStore) CreateUser(_ context.Context, u *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.Stamp(time.Now())
	m.users[u.ID] = clone(u)
	return nil
}

func (m *memStore) GetUser(_ context.Context, id uuid.UUID) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return clone(u), nil
	}
	return nil, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByOAuth(_ context.Context, provider, subject string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		for _, a := range u.OAuthAccounts {
			if a.Provider == provider && a.Subject == subject {
				return clone(u), nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) UpdateUser(_ context.Context, u *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Name = u.Name
	existing.AvatarURL = u.AvatarURL
	existing.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordSet = true
	return nil
}

func (m *memStore) LinkOAuthAccount(_ context.Context, userID uuid.UUID, acct store.OAuthAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if acct.LinkedAt.IsZero() {
		acct.LinkedAt = time.Now()
	}
	u.OAuthAccounts = append(u.OAuthAccounts, acct)
	return nil
}

func (m *memStore) CreateSource(_ context.Context, s *store.ContentSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Stamp(time.Now())
	m.sources[s.ID] = clone(s)
	return nil
}

func (m *memStore) GetSource(_ context.Context, userID, id uuid.UUID) (*store.ContentSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sources[id]; ok && s.UserID == userID {
		return clone(s), nil
	}
	return nil, nil
}

func (m *memStore) ListSources(_ context.Context, userID uuid.UUID, page store.PageRequest) ([]store.ContentSource, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ContentSource
	for _, s := range m.sources {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) DeleteSource(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sources[id]; !ok || s.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.sources, id)
	for ideaID, idea := range m.ideas {
		if idea.SourceID == id {
			delete(m.ideas, ideaID)
		}
	}
	m.deletePostsLocked(func(p *store.Post) bool { return p.SourceID == id })
	return nil
}

func (m *memStore) deletePostsLocked(match func(*store.Post) bool) {
	for postID, p := range m.posts {
		if !match(p) {
			continue
		}
		delete(m.posts, postID)
		for schedID, sched := range m.schedules {
			if sched.PostID == postID {
				delete(m.schedules, schedID)
			}
		}
	}
}

func (m *memStore) CreateIdeas(_ context.Context, ideas []store.Idea) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range ideas {
		ideas[i].Stamp(time.Now())
		m.ideas[ideas[i].ID] = clone(&ideas[i])
	}
	return nil
}

func (m *memStore) GetIdea(_ context.Context, userID, id uuid.UUID) (*store.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idea, ok := m.ideas[id]; ok && idea.UserID == userID {
		return clone(idea), nil
	}
	return nil, nil
}

func (m *memStore) ListIdeas(_ context.Context, userID, sourceID uuid.UUID, page store.PageRequest) ([]store.Idea, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Idea
	for _, idea := range m.ideas {
		if idea.UserID == userID && idea.SourceID == sourceID {
			out = append(out, *idea)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdateIdea(_ context.Context, idea *store.Idea) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.ideas[idea.ID]
	if !ok || existing.UserID != idea.UserID {
		return store.ErrNotFound
	}
	existing.Title = idea.Title
	existing.Description = idea.Description
	return nil
}

func (m *memStore) DeleteIdea(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idea, ok := m.ideas[id]; !ok || idea.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.ideas, id)
	m.deletePostsLocked(func(p *store.Post) bool { return p.IdeaID != nil && *p.IdeaID == id })
	return nil
}

func (m *memStore) CreatePosts(_ context.Context, posts []store.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range posts {
		posts[i].Stamp(time.Now())
		m.posts[posts[i].ID] = clone(&posts[i])
	}
	return nil
}

func (m *memStore) GetPost(_ context.Context, userID, id uuid.UUID) (*store.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok && p.UserID == userID {
		return clone(p), nil
	}
	return nil, nil
}

func (m *memStore) ListPosts(_ context.Context, userID uuid.UUID, filter store.PostFilter, page store.PageRequest) ([]store.Post, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Post
	for _, p := range m.posts {
		switch {
		case p.UserID != userID:
		case filter.SourceID != uuid.Nil && p.SourceID != filter.SourceID:
		case filter.IdeaID != uuid.Nil && (p.IdeaID == nil || *p.IdeaID != filter.IdeaID):
		case filter.Platform != "" && p.Platform != filter.Platform:
		default:
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdatePost(_ context.Context, p *store.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.posts[p.ID]
	if !ok || existing.UserID != p.UserID {
		return store.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	m.posts[p.ID] = clone(p)
	return nil
}

func (m *memStore) DeletePost(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; !ok || p.UserID != userID {
		return store.ErrNotFound
	}
	m.deletePostsLocked(func(p *store.Post) bool { return p.ID == id })
	return nil
}

func (m *memStore) CreateSchedule(_ context.Context, s *store.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Stamp(time.Now())
	m.schedules[s.ID] = clone(s)
	return nil
}

func (m *memStore) GetSchedule(_ context.Context, userID, id uuid.UUID) (*store.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[id]; ok && s.UserID == userID {
		return clone(s), nil
	}
	return nil, nil
}

func (m *memStore) ListSchedules(_ context.Context, userID uuid.UUID, filter store.ScheduleFilter, page store.PageRequest) ([]store.Schedule, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Schedule
	for _, s := range m.schedules {
		switch {
		case s.UserID != userID:
		case filter.From != nil && s.PublishAt.Before(*filter.From):
		case filter.To != nil && s.PublishAt.After(*filter.To):
		case filter.Status != "" && s.Status != filter.Status:
		default:
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdateSchedule(_ context.Context, s *store.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.schedules[s.ID]
	if !ok || existing.UserID != s.UserID {
		return store.ErrNotFound
	}
	s.UpdatedAt = time.Now()
	m.schedules[s.ID] = clone(s)
	return nil
}

func (m *memStore) DeleteSchedule(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[id]; !ok || s.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Ping(context.Context) error    { return m.pingErr }
func (m *memStore) Close(context.Context) error   { return nil }

// fakeIngester returns canned content or an error.
type fakeIngester struct {
	content *ingestion.Content
	err     error
	calls   []string
}

func (f *fakeIngester) FromWebPage(_ context.Context, rawURL string) (*ingestion.Content, error) {
	f.calls = append(f.calls, "web:"+rawURL)
	if f.err != nil {
		return nil, f.err
	}
	c := *f.content
	c.Kind = store.SourceKindWeb
	c.URL = rawURL
	return &c, nil
}

func (f *fakeIngester) FromYouTube(_ context.Context, rawURL string) (*ingestion.Content, error) {
	f.calls = append(f.calls, "youtube:"+rawURL)
	if f.err != nil {
		return nil, f.err
	}
	c := *f.content
	c.Kind = store.SourceKindYouTube
	c.URL = rawURL
	return &c, nil
}

// fakeGenerator produces deterministic ideas and posts.
type fakeGenerator struct {
	err       error
	lastPosts generation.PostInput
}

func (f *fakeGenerator) GenerateIdeas(_ context.Context, src *store.ContentSource, count int) ([]store.Idea, error) {
	if f.err != nil {
		return nil, f.err
	}
	ideas := make([]store.Idea, count)
	for i := range ideas {
		ideas[i] = store.Idea{UserID: src.UserID, SourceID: src.ID, Title: "Idea", Description: "About " + src.Title}
	}
	return ideas, nil
}

func (f *fakeGenerator) GeneratePosts(_ context.Context, in generation.PostInput) ([]store.Post, error) {
	f.lastPosts = in
	if f.err != nil {
		return nil, f.err
	}
	var posts []store.Post
	for _, platform := range in.Platforms {
		for i := 0; i < in.Count; i++ {
			p := store.Post{
				UserID:      in.Source.UserID,
				SourceID:    in.Source.ID,
				Title:       "Draft",
				Description: "Post for " + platform,
				Tags:        []string{"go"},
				Platform:    platform,
				Tone:        in.Tone,
				Length:      in.Length,
			}
			if in.Idea != nil {
				id := in.Idea.ID
				p.IdeaID = &id
			}
			posts = append(posts, p)
		}
	}
	return posts, nil
}

const (
	testAccessSecret      = "test-access-secret-for-jwt-signing-32-bytes!!"
	testRefreshSecret     = "test-refresh-secret-for-jwt-signing-32-bytes!"
	testFingerprintSecret = "test-fingerprint-secret"
	testFrontendURL       = "http://localhost:5173"
	testFingerprint       = "device-fingerprint-1"
)

// testEnv is a fully wired server backed by fakes and miniredis.
type testEnv struct {
	server    *Server
	handler   http.Handler
	store     *memStore
	sessions  *session.Store
	redis     *miniredis.Miniredis
	ingester  *fakeIngester
	generator *fakeGenerator
	tokens    *JWTService
	hasher    *fingerprint.Hasher
}

type testOption func(*Deps)

func newTestEnv(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		store:     newMemStore(),
		sessions:  session.NewStore(client),
		redis:     mr,
		ingester:  &fakeIngester{content: &ingestion.Content{Title: "Article", Text: "Body text", Metadata: map[string]string{}}},
		generator: &fakeGenerator{},
		tokens: NewJWTService(&config.TokenConfig{
			AccessSecret:  testAccessSecret,
			RefreshSecret: testRefreshSecret,
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			Issuer:        "content-repurposer",
		}),
		hasher: fingerprint.NewHasher(testFingerprintSecret),
	}

	deps := Deps{
		Store:        env.store,
		Sessions:     env.sessions,
		Tokens:       env.tokens,
		Passwords:    &config.PasswordConfig{BcryptCost: 10},
		Fingerprints: env.hasher,
		OAuth:        &config.OAuthConfig{},
		Ingester:     env.ingester,
		Generator:    env.generator,
		Config: &config.ServerConfig{
			FrontendURL: testFrontendURL,
			Environment: "development",
		},
		RateLimit: &ratelimit.Config{Enabled: false},
		Logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(0, deps)
	require.NoError(t, err)
	t.Cleanup(srv.rateLimiter.Stop)

	env.server = srv
	env.handler = srv.Handler()
	return env
}
