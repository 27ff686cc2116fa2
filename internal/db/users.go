package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jonathan/content-repurposer/internal/store"
)

const userColumns = `id, name, email, password_hash, password_set, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.PasswordSet, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user and any OAuth accounts it carries.
func (db *DB) CreateUser(ctx context.Context, u *store.User) error {
	u.Stamp(db.now())
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.PasswordSet, u.AvatarURL, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	for i := range u.OAuthAccounts {
		acct := &u.OAuthAccounts[i]
		if acct.LinkedAt.IsZero() {
			acct.LinkedAt = u.CreatedAt
		}
		if err := insertOAuthAccount(ctx, tx, u.ID, *acct); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID. Returns nil, nil if not found.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*store.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return db.finishUser(ctx, u, err)
}

// GetUserByEmail retrieves a user by email, case-insensitively. Returns nil, nil
// if not found.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, email))
	return db.finishUser(ctx, u, err)
}

// GetUserByOAuth retrieves the user linked to an external identity.
func (db *DB) GetUserByOAuth(ctx context.Context, provider, subject string) (*store.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.password_set, u.avatar_url, u.created_at, u.updated_at
		 FROM users u JOIN oauth_accounts o ON o.user_id = u.id
		 WHERE o.provider = $1 AND o.subject = $2`, provider, subject))
	return db.finishUser(ctx, u, err)
}

func (db *DB) finishUser(ctx context.Context, u *store.User, err error) (*store.User, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := db.loadOAuthAccounts(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (db *DB) loadOAuthAccounts(ctx context.Context, u *store.User) error {
	rows, err := db.pool.Query(ctx,
		`SELECT provider, subject, email, linked_at FROM oauth_accounts
		 WHERE user_id = $1 ORDER BY linked_at`, u.ID)
	if err != nil {
		return fmt.Errorf("failed to load oauth accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a store.OAuthAccount
		if err := rows.Scan(&a.Provider, &a.Subject, &a.Email, &a.LinkedAt); err != nil {
			return fmt.Errorf("failed to scan oauth account: %w", err)
		}
		u.OAuthAccounts = append(u.OAuthAccounts, a)
	}
	return rows.Err()
}

// UpdateUser updates profile fields (name, avatar).
func (db *DB) UpdateUser(ctx context.Context, u *store.User) error {
	u.UpdatedAt = db.now()
	tag, err := db.pool.Exec(ctx,
		`UPDATE users SET name = $1, avatar_url = $2, updated_at = $3 WHERE id = $4`,
		u.Name, u.AvatarURL, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash and marks the password as set.
func (db *DB) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, password_set = TRUE, updated_at = $2 WHERE id = $3`,
		passwordHash, db.now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// LinkOAuthAccount attaches an external identity to a user.
func (db *DB) LinkOAuthAccount(ctx context.Context, userID uuid.UUID, acct store.OAuthAccount) error {
	if acct.LinkedAt.IsZero() {
		acct.LinkedAt = db.now()
	}
	return insertOAuthAccount(ctx, db.pool, userID, acct)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertOAuthAccount(ctx context.Context, ex execer, userID uuid.UUID, acct store.OAuthAccount) error {
	_, err := ex.Exec(ctx,
		`INSERT INTO oauth_accounts (provider, subject, user_id, email, linked_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		acct.Provider, acct.Subject, userID, acct.Email, acct.LinkedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return store.ErrDuplicate
		case isForeignKeyViolation(err):
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to link oauth account: %w", err)
	}
	return nil
}
