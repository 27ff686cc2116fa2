package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/jonathan/content-repurposer/internal/store"
	"github.com/jonathan/content-repurposer/internal/types"
)

// UserService provides business logic for user authentication operations
type UserService struct {
	users          store.Users
	passwordConfig *config.PasswordConfig

	// dummyHash is compared against when no password hash exists so that
	// unknown emails cost the same bcrypt work as wrong passwords.
	dummyOnce sync.Once
	dummyHash string
}

// NewUserService creates a new UserService with the given dependencies
func NewUserService(users store.Users, passwordConfig *config.PasswordConfig) *UserService {
	return &UserService{
		users:          users,
		passwordConfig: passwordConfig,
	}
}

func (s *UserService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.passwordConfig.HashPassword("no-such-user")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user with password authentication
func (s *UserService) Register(ctx context.Context, req *types.CreateUserRequest) (*store.User, error) {
	email := normalizeEmail(req.Email)

	if err := s.passwordConfig.CheckStrength(req.Password); err != nil {
		return nil, &ErrValidation{Field: "password", Message: err.Error()}
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if existing != nil {
		return nil, &ErrEmailAlreadyExists{Email: email}
	}

	passwordHash, err := s.passwordConfig.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &store.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: passwordHash,
		PasswordSet:  true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &ErrEmailAlreadyExists{Email: email}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user and returns user data
func (s *UserService) Login(ctx context.Context, req *types.LoginRequest) (*store.User, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	// Unknown email, OAuth-only account and wrong password look identical.
	if user == nil || !user.PasswordSet {
		s.passwordConfig.VerifyPassword(req.Password, s.timingHash())
		return nil, &ErrInvalidCredentials{}
	}
	if !s.passwordConfig.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}

	return user, nil
}

// GetUser returns the user or ErrUserNotFound.
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*store.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, &ErrUserNotFound{UserID: userID}
	}
	return user, nil
}

// UpdateProfile changes the user's display name and avatar.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *types.UpdateProfileRequest) (*store.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = strings.TrimSpace(req.Name)
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ErrUserNotFound{UserID: userID}
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// UpdatePassword updates a user's password
func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if !user.PasswordSet || !s.passwordConfig.VerifyPassword(currentPassword, user.PasswordHash) {
		return &ErrPasswordMismatch{}
	}
	if err := s.passwordConfig.CheckStrength(newPassword); err != nil {
		return &ErrValidation{Field: "new_password", Message: err.Error()}
	}

	newPasswordHash, err := s.passwordConfig.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newPasswordHash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ErrUserNotFound{UserID: userID}
		}
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// ExternalIdentity is the verified profile returned by an OAuth provider.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// ResolveOAuth finds or creates the user for an external identity. An
// existing link wins; otherwise a verified email attaches the identity to the
// matching account; otherwise a password-less account is created.
func (s *UserService) ResolveOAuth(ctx context.Context, id ExternalIdentity) (*store.User, error) {
	if id.Provider == "" || id.Subject == "" {
		return nil, fmt.Errorf("external identity is incomplete")
	}

	user, err := s.users.GetUserByOAuth(ctx, id.Provider, id.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to look up linked account: %w", err)
	}
	if user != nil {
		return user, nil
	}

	email := normalizeEmail(id.Email)
	account := store.OAuthAccount{Provider: id.Provider, Subject: id.Subject, Email: email}

	if id.EmailVerified && email != "" {
		user, err = s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to get user by email: %w", err)
		}
		if user != nil {
			if err := s.users.LinkOAuthAccount(ctx, user.ID, account); err != nil {
				return nil, fmt.Errorf("failed to link account: %w", err)
			}
			user.OAuthAccounts = append(user.OAuthAccounts, account)
			return user, nil
		}
	}

	if email == "" || !id.EmailVerified {
		return nil, &ErrValidation{Field: "email", Message: "a verified email is required"}
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user = &store.User{
		Name:          name,
		Email:         email,
		AvatarURL:     id.Picture,
		OAuthAccounts: []store.OAuthAccount{account},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &ErrEmailAlreadyExists{Email: email}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
