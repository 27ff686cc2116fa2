// Package session stores refresh-token sessions in Redis.
//
// Each issued refresh token owns exactly one session keyed by its jti. A
// session is consumed atomically on refresh, so a second presentation of the
// same token finds nothing and is treated as reuse by the caller.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix   = "session:"
	userSessionsPrefix = "user_sessions:"

	defaultTimeout = 5 * time.Second
)

// ErrExpired is returned by Create for a session whose expiry is not in the future.
var ErrExpired = errors.New("session already expired")

// Session is one issued refresh token.
type Session struct {
	ID              string    `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	FingerprintHash string    `json:"fingerprint_hash"`
	UserAgent       string    `json:"user_agent,omitempty"`
	IP              string    `json:"ip,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Store keeps sessions in Redis.
type Store struct {
	client goredis.UniversalClient
	now    func() time.Time
}

// NewStore creates a store backed by client.
func NewStore(client goredis.UniversalClient) *Store {
	return &Store{client: client, now: time.Now}
}

// Connect creates a single-node client from a redis:// URL and pings it.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultTimeout
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userSessionsKey(userID uuid.UUID) string {
	return userSessionsPrefix + userID.String()
}

// Ping checks that Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Create stores sess until its ExpiresAt and adds it to the user's index.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	indexKey := userSessionsKey(sess.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.ID), data, ttl)
		pipe.SAdd(ctx, indexKey, sess.ID)
		// Every session shares the same refresh TTL, so the newest one
		// always outlives the rest.
		pipe.Expire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns the session with id. Returns nil, nil if it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decode(data)
}

// Consume atomically fetches and deletes the session with id. Returns nil,
// nil if it was already consumed, revoked or expired.
func (s *Store) Consume(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.GetDel(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume session: %w", err)
	}
	sess, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := s.client.SRem(ctx, userSessionsKey(sess.UserID), id).Err(); err != nil {
		return nil, fmt.Errorf("unindex session: %w", err)
	}
	return sess, nil
}

// Revoke deletes one of the user's sessions. Revoking a missing session is
// not an error.
func (s *Store) Revoke(ctx context.Context, userID uuid.UUID, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, userSessionsKey(userID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAll deletes every session of the user and returns how many were live.
func (s *Store) RevokeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	indexKey := userSessionsKey(userID)
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}

	var deleted *goredis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// List returns the user's live sessions, newest first. Index entries whose
// session has expired are pruned.
func (s *Store) List(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	indexKey := userSessionsKey(userID)
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		return []Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	sessions := make([]Session, 0, len(values))
	var stale []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		sess, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune sessions: %w", err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func decode(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}
