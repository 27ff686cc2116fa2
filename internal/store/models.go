package store

import (
	"time"

	"github.com/google/uuid"
)

// Source kinds.
const (
	SourceKindWeb     = "web"
	SourceKindYouTube = "youtube"
)

// Schedule statuses.
const (
	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusCancelled = "cancelled"
)

// OAuth providers.
const ProviderGoogle = "google"

// User is an account. PasswordHash is empty for OAuth-only accounts.
type User struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	PasswordHash  string         `json:"-"`
	PasswordSet   bool           `json:"password_set"`
	AvatarURL     string         `json:"avatar_url,omitempty"`
	OAuthAccounts []OAuthAccount `json:"oauth_accounts,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// OAuthAccount links an external identity to a user.
type OAuthAccount struct {
	Provider string    `json:"provider"`
	Subject  string    `json:"-"`
	Email    string    `json:"email,omitempty"`
	LinkedAt time.Time `json:"linked_at"`
}

// HasProvider reports whether the user already has an identity from provider.
func (u *User) HasProvider(provider string) bool {
	for _, a := range u.OAuthAccounts {
		if a.Provider == provider {
			return true
		}
	}
	return false
}

// ContentSource is a scraped web page or video transcript.
type ContentSource struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Kind      string            `json:"kind"`
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Idea is a generated topic derived from a source.
type Idea struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	SourceID    uuid.UUID `json:"source_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Post is a social-media draft. SourceID is always set; IdeaID is set when the
// post was generated from an idea rather than directly from the source.
type Post struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	SourceID    uuid.UUID  `json:"source_id"`
	IdeaID      *uuid.UUID `json:"idea_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Platform    string     `json:"platform"`
	Tone        string     `json:"tone"`
	Length      string     `json:"length"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Schedule pairs a post with a future publish date.
type Schedule struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	PostID    uuid.UUID `json:"post_id"`
	Platform  string    `json:"platform"`
	PublishAt time.Time `json:"publish_at"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stamp fills ID and timestamps on a new user.
func (u *User) Stamp(now time.Time) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

// Stamp fills ID and CreatedAt on a new source.
func (s *ContentSource) Stamp(now time.Time) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
}

// Stamp fills ID and CreatedAt on a new idea.
func (i *Idea) Stamp(now time.Time) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
}

// Stamp fills ID and timestamps on a new post.
func (p *Post) Stamp(now time.Time) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Tags == nil {
		p.Tags = []string{}
	}
}

// Stamp fills ID, status and timestamps on a new schedule.
func (s *Schedule) Stamp(now time.Time) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = ScheduleStatusScheduled
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}
