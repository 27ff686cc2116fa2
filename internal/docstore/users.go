package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jonathan/content-repurposer/internal/store"
)

// CreateUser inserts a user. Email is stored lowercased.
func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	now := s.now()
	u.Stamp(now)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for i := range u.OAuthAccounts {
		if u.OAuthAccounts[i].LinkedAt.IsZero() {
			u.OAuthAccounts[i].LinkedAt = now
		}
	}

	if _, err := s.users.InsertOne(ctx, fromUser(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID. Returns nil, nil if not found.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return s.findUser(ctx, bson.M{"_id": id.String()})
}

// GetUserByEmail retrieves a user by email. Returns nil, nil if not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	return s.findUser(ctx, bson.M{"email": email})
}

// GetUserByOAuth retrieves the user linked to an external identity.
func (s *Store) GetUserByOAuth(ctx context.Context, provider, subject string) (*store.User, error) {
	return s.findUser(ctx, bson.M{
		"oauth_accounts": bson.M{"$elemMatch": bson.M{"provider": provider, "subject": subject}},
	})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*store.User, error) {
	doc, err := findOne[userDoc](ctx, s.users, filter)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.toModel()
}

// UpdateUser updates profile fields (name, avatar).
func (s *Store) UpdateUser(ctx context.Context, u *store.User) error {
	u.UpdatedAt = s.now()
	return s.updateUser(ctx, u.ID, bson.M{
		"name":       u.Name,
		"avatar_url": u.AvatarURL,
		"updated_at": u.UpdatedAt,
	})
}

// UpdatePassword replaces the password hash and marks the password as set.
func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return s.updateUser(ctx, id, bson.M{
		"password_hash": passwordHash,
		"password_set":  true,
		"updated_at":    s.now(),
	})
}

func (s *Store) updateUser(ctx context.Context, id uuid.UUID, set bson.M) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// LinkOAuthAccount attaches an external identity to a user. The unique index
// rejects identities linked to another user; the filter rejects a repeat link
// on the same user, which a multikey unique index does not catch.
func (s *Store) LinkOAuthAccount(ctx context.Context, userID uuid.UUID, acct store.OAuthAccount) error {
	if acct.LinkedAt.IsZero() {
		acct.LinkedAt = s.now()
	}
	filter := bson.M{
		"_id": userID.String(),
		"oauth_accounts": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"provider": acct.Provider,
			"subject":  acct.Subject,
		}}},
	}
	update := bson.M{
		"$push": bson.M{"oauth_accounts": fromOAuthAccount(acct)},
		"$set":  bson.M{"updated_at": s.now()},
	}

	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to link oauth account: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.users.CountDocuments(ctx, bson.M{"_id": userID.String()})
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrDuplicate
}
