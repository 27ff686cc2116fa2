package docstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-repurposer/internal/store"
)

type userDoc struct {
	ID            string            `bson:"_id"`
	Name          string            `bson:"name"`
	Email         string            `bson:"email"`
	PasswordHash  string            `bson:"password_hash"`
	PasswordSet   bool              `bson:"password_set"`
	AvatarURL     string            `bson:"avatar_url,omitempty"`
	OAuthAccounts []oauthAccountDoc `bson:"oauth_accounts,omitempty"`
	CreatedAt     time.Time         `bson:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at"`
}

type oauthAccountDoc struct {
	Provider string    `bson:"provider"`
	Subject  string    `bson:"subject"`
	Email    string    `bson:"email,omitempty"`
	LinkedAt time.Time `bson:"linked_at"`
}

type sourceDoc struct {
	ID        string            `bson:"_id"`
	UserID    string            `bson:"user_id"`
	Kind      string            `bson:"kind"`
	URL       string            `bson:"url"`
	Title     string            `bson:"title"`
	Content   string            `bson:"content"`
	Metadata  map[string]string `bson:"metadata,omitempty"`
	CreatedAt time.Time         `bson:"created_at"`
}

type ideaDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	SourceID    string    `bson:"source_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
}

type postDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	SourceID    string    `bson:"source_id"`
	IdeaID      string    `bson:"idea_id,omitempty"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Tags        []string  `bson:"tags"`
	Platform    string    `bson:"platform"`
	Tone        string    `bson:"tone"`
	Length      string    `bson:"length"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type scheduleDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	PostID    string    `bson:"post_id"`
	Platform  string    `bson:"platform"`
	PublishAt time.Time `bson:"publish_at"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// idParser parses stored UUID strings and keeps the first failure.
type idParser struct {
	err error
}

func (p *idParser) parse(field, s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return id
}

func fromUser(u *store.User) userDoc {
	doc := userDoc{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		PasswordSet:  u.PasswordSet,
		AvatarURL:    u.AvatarURL,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	for _, a := range u.OAuthAccounts {
		doc.OAuthAccounts = append(doc.OAuthAccounts, fromOAuthAccount(a))
	}
	return doc
}

func fromOAuthAccount(a store.OAuthAccount) oauthAccountDoc {
	return oauthAccountDoc{Provider: a.Provider, Subject: a.Subject, Email: a.Email, LinkedAt: a.LinkedAt}
}

func (d *userDoc) toModel() (*store.User, error) {
	var p idParser
	u := &store.User{
		ID:           p.parse("user id", d.ID),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		PasswordSet:  d.PasswordSet,
		AvatarURL:    d.AvatarURL,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	for _, a := range d.OAuthAccounts {
		u.OAuthAccounts = append(u.OAuthAccounts, store.OAuthAccount{
			Provider: a.Provider, Subject: a.Subject, Email: a.Email, LinkedAt: a.LinkedAt,
		})
	}
	return u, p.err
}

func fromSource(s *store.ContentSource) sourceDoc {
	return sourceDoc{
		ID:        s.ID.String(),
		UserID:    s.UserID.String(),
		Kind:      s.Kind,
		URL:       s.URL,
		Title:     s.Title,
		Content:   s.Content,
		Metadata:  s.Metadata,
		CreatedAt: s.CreatedAt,
	}
}

func (d *sourceDoc) toModel() (*store.ContentSource, error) {
	var p idParser
	s := &store.ContentSource{
		ID:        p.parse("source id", d.ID),
		UserID:    p.parse("user id", d.UserID),
		Kind:      d.Kind,
		URL:       d.URL,
		Title:     d.Title,
		Content:   d.Content,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt,
	}
	return s, p.err
}

func fromIdea(i *store.Idea) ideaDoc {
	return ideaDoc{
		ID:          i.ID.String(),
		UserID:      i.UserID.String(),
		SourceID:    i.SourceID.String(),
		Title:       i.Title,
		Description: i.Description,
		CreatedAt:   i.CreatedAt,
	}
}

func (d *ideaDoc) toModel() (*store.Idea, error) {
	var p idParser
	i := &store.Idea{
		ID:          p.parse("idea id", d.ID),
		UserID:      p.parse("user id", d.UserID),
		SourceID:    p.parse("source id", d.SourceID),
		Title:       d.Title,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
	return i, p.err
}

func fromPost(post *store.Post) postDoc {
	doc := postDoc{
		ID:          post.ID.String(),
		UserID:      post.UserID.String(),
		SourceID:    post.SourceID.String(),
		Title:       post.Title,
		Description: post.Description,
		Tags:        post.Tags,
		Platform:    post.Platform,
		Tone:        post.Tone,
		Length:      post.Length,
		CreatedAt:   post.CreatedAt,
		UpdatedAt:   post.UpdatedAt,
	}
	if post.IdeaID != nil {
		doc.IdeaID = post.IdeaID.String()
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return doc
}

func (d *postDoc) toModel() (*store.Post, error) {
	var p idParser
	post := &store.Post{
		ID:          p.parse("post id", d.ID),
		UserID:      p.parse("user id", d.UserID),
		SourceID:    p.parse("source id", d.SourceID),
		Title:       d.Title,
		Description: d.Description,
		Tags:        d.Tags,
		Platform:    d.Platform,
		Tone:        d.Tone,
		Length:      d.Length,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.IdeaID != "" {
		ideaID := p.parse("idea id", d.IdeaID)
		post.IdeaID = &ideaID
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	return post, p.err
}

func fromSchedule(s *store.Schedule) scheduleDoc {
	return scheduleDoc{
		ID:        s.ID.String(),
		UserID:    s.UserID.String(),
		PostID:    s.PostID.String(),
		Platform:  s.Platform,
		PublishAt: s.PublishAt,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (d *scheduleDoc) toModel() (*store.Schedule, error) {
	var p idParser
	s := &store.Schedule{
		ID:        p.parse("schedule id", d.ID),
		UserID:    p.parse("user id", d.UserID),
		PostID:    p.parse("post id", d.PostID),
		Platform:  d.Platform,
		PublishAt: d.PublishAt,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	return s, p.err
}

// modelsOf converts a decoded page into models.
func modelsOf[D any, M any](docs []D, convert func(*D) (*M, error)) ([]M, error) {
	out := make([]M, 0, len(docs))
	for i := range docs {
		m, err := convert(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}
