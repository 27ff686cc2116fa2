// Package types provides the request and response bodies of the HTTP API.
package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/content-repurposer/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	return validate
}

// CreateUserRequest represents the request to create a new user with password authentication.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents the login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// AuthResponse is returned by register, login and refresh. The refresh token
// travels only in its HttpOnly cookie.
type AuthResponse struct {
	User        *store.User `json:"user"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// UpdateProfileRequest represents a profile update.
type UpdateProfileRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,http_url,max=2048"`
}

// UpdatePasswordRequest represents a password update request.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// SessionInfo describes one active refresh session.
type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

// Validate validates the CreateUserRequest using the validator.
func (r *CreateUserRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the UpdatePasswordRequest using the validator.
func (r *UpdatePasswordRequest) Validate() error {
	return validate.Struct(r)
}
