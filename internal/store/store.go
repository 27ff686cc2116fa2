// Package store defines the persisted domain documents and the storage
// interface implemented by the MongoDB and PostgreSQL backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by update and delete operations when no document
	// owned by the caller matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key (email, linked account) is taken.
	ErrDuplicate = errors.New("duplicate key")
)

// Users persists accounts and their linked OAuth identities.
type Users interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByOAuth(ctx context.Context, provider, subject string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	LinkOAuthAccount(ctx context.Context, userID uuid.UUID, acct OAuthAccount) error
}

// Sources persists scraped pages and transcripts.
type Sources interface {
	CreateSource(ctx context.Context, s *ContentSource) error
	GetSource(ctx context.Context, userID, id uuid.UUID) (*ContentSource, error)
	ListSources(ctx context.Context, userID uuid.UUID, page PageRequest) ([]ContentSource, int64, error)
	DeleteSource(ctx context.Context, userID, id uuid.UUID) error
}

// Ideas persists generated topic ideas.
type Ideas interface {
	CreateIdeas(ctx context.Context, ideas []Idea) error
	GetIdea(ctx context.Context, userID, id uuid.UUID) (*Idea, error)
	ListIdeas(ctx context.Context, userID, sourceID uuid.UUID, page PageRequest) ([]Idea, int64, error)
	UpdateIdea(ctx context.Context, idea *Idea) error
	DeleteIdea(ctx context.Context, userID, id uuid.UUID) error
}

// Posts persists generated and edited post drafts.
type Posts interface {
	CreatePosts(ctx context.Context, posts []Post) error
	GetPost(ctx context.Context, userID, id uuid.UUID) (*Post, error)
	ListPosts(ctx context.Context, userID uuid.UUID, filter PostFilter, page PageRequest) ([]Post, int64, error)
	UpdatePost(ctx context.Context, p *Post) error
	DeletePost(ctx context.Context, userID, id uuid.UUID) error
}

// Schedules persists publish-date records for posts.
type Schedules interface {
	CreateSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, userID, id uuid.UUID) (*Schedule, error)
	ListSchedules(ctx context.Context, userID uuid.UUID, filter ScheduleFilter, page PageRequest) ([]Schedule, int64, error)
	UpdateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, userID, id uuid.UUID) error
}

// Store is the full persistence surface used by the HTTP server.
type Store interface {
	Users
	Sources
	Ideas
	Posts
	Schedules

	// Migrate creates tables or indexes. It is safe to run repeatedly.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// PostFilter narrows ListPosts. Zero values are ignored.
type PostFilter struct {
	SourceID uuid.UUID
	IdeaID   uuid.UUID
	Platform string
}

// ScheduleFilter narrows ListSchedules. Nil/empty values are ignored.
type ScheduleFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
}
