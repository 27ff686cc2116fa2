package types

import "time"

// Generation choices. The validate tags below repeat these lists.
var (
	Platforms = []string{"linkedin", "x", "facebook", "instagram", "threads"}
	Tones     = []string{"professional", "casual", "friendly", "humorous", "inspirational", "educational"}
	Lengths   = []string{"short", "medium", "long"}
)

// Generation bounds.
const (
	DefaultIdeaCount = 5
	MaxIdeaCount     = 10
	DefaultPostCount = 1
	MaxPostCount     = 5
)

// CreateSourceRequest submits a web page or video URL.
type CreateSourceRequest struct {
	URL string `json:"url" validate:"required,http_url,max=2048"`
}

// GenerateIdeasRequest asks for count ideas from a source.
type GenerateIdeasRequest struct {
	Count int `json:"count,omitempty" validate:"omitempty,min=1,max=10"`
}

// EffectiveCount applies the default.
func (r *GenerateIdeasRequest) EffectiveCount() int {
	if r.Count == 0 {
		return DefaultIdeaCount
	}
	return r.Count
}

// GeneratePostsRequest asks for Count drafts per platform.
type GeneratePostsRequest struct {
	Platforms []string `json:"platforms" validate:"required,min=1,max=5,unique,dive,oneof=linkedin x facebook instagram threads"`
	Tone      string   `json:"tone" validate:"required,oneof=professional casual friendly humorous inspirational educational"`
	Length    string   `json:"length" validate:"required,oneof=short medium long"`
	Count     int      `json:"count,omitempty" validate:"omitempty,min=1,max=5"`
}

// EffectiveCount applies the default.
func (r *GeneratePostsRequest) EffectiveCount() int {
	if r.Count == 0 {
		return DefaultPostCount
	}
	return r.Count
}

// UpdateIdeaRequest replaces an idea's text.
type UpdateIdeaRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdatePostRequest is a partial update; nil fields are left unchanged.
type UpdatePostRequest struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,max=300"`
	Description *string   `json:"description,omitempty" validate:"omitempty,min=1,max=5000"`
	Tags        *[]string `json:"tags,omitempty" validate:"omitempty,max=30,dive,min=1,max=50"`
	Platform    *string   `json:"platform,omitempty" validate:"omitempty,oneof=linkedin x facebook instagram threads"`
	Tone        *string   `json:"tone,omitempty" validate:"omitempty,oneof=professional casual friendly humorous inspirational educational"`
	Length      *string   `json:"length,omitempty" validate:"omitempty,oneof=short medium long"`
}

// CreateScheduleRequest pairs a post with a future publish date. Platform
// defaults to the post's own.
type CreateScheduleRequest struct {
	PostID    string    `json:"post_id" validate:"required,uuid"`
	PublishAt time.Time `json:"publish_at" validate:"required"`
	Platform  string    `json:"platform,omitempty" validate:"omitempty,oneof=linkedin x facebook instagram threads"`
}

// UpdateScheduleRequest is a partial update; nil fields are left unchanged.
type UpdateScheduleRequest struct {
	PublishAt *time.Time `json:"publish_at,omitempty"`
	Platform  *string    `json:"platform,omitempty" validate:"omitempty,oneof=linkedin x facebook instagram threads"`
	Status    *string    `json:"status,omitempty" validate:"omitempty,oneof=scheduled cancelled"`
}
