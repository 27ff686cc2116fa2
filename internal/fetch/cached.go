package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache defaults.
const (
	DefaultCacheTTL   = time.Hour
	DefaultFailureTTL = 10 * time.Minute
	pageKeyPrefix     = "page:"
	pageFailKeyPrefix = "page_fail:"
)

// Getter fetches a single URL.
type Getter interface {
	Get(ctx context.Context, url string) (*Result, error)
}

// CachedFetcher wraps a Getter with a Redis page cache. Successful fetches
// are cached for TTL; permanent failures (4xx other than 429) are
// remembered for FailureTTL so repeat submissions fail fast.
type CachedFetcher struct {
	getter     Getter
	client     goredis.UniversalClient
	ttl        time.Duration
	failureTTL time.Duration
}

// NewCachedFetcher creates a cached fetcher. Zero durations use defaults.
func NewCachedFetcher(getter Getter, client goredis.UniversalClient, ttl, failureTTL time.Duration) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if failureTTL <= 0 {
		failureTTL = DefaultFailureTTL
	}
	return &CachedFetcher{getter: getter, client: client, ttl: ttl, failureTTL: failureTTL}
}

type cachedFailure struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// Get returns a cached page when fresh, otherwise fetches and caches it.
// Redis errors degrade to an uncached fetch.
func (f *CachedFetcher) Get(ctx context.Context, urlStr string) (*Result, error) {
	key := cacheKey(urlStr)

	if raw, err := f.client.Get(ctx, pageFailKeyPrefix+key).Bytes(); err == nil {
		var failure cachedFailure
		if json.Unmarshal(raw, &failure) == nil {
			return nil, &Error{URL: urlStr, Message: failure.Message, StatusCode: failure.StatusCode}
		}
	}

	if raw, err := f.client.Get(ctx, pageKeyPrefix+key).Bytes(); err == nil {
		var cached Result
		if json.Unmarshal(raw, &cached) == nil {
			return &cached, nil
		}
	}

	result, err := f.getter.Get(ctx, urlStr)
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 && fe.StatusCode != http.StatusTooManyRequests {
			if data, merr := json.Marshal(cachedFailure{StatusCode: fe.StatusCode, Message: fe.Message}); merr == nil {
				_ = f.client.Set(ctx, pageFailKeyPrefix+key, data, f.failureTTL).Err()
			}
		}
		return nil, err
	}

	if data, merr := json.Marshal(result); merr == nil {
		_ = f.client.Set(ctx, pageKeyPrefix+key, data, f.ttl).Err()
	}
	return result, nil
}

func cacheKey(urlStr string) string {
	sum := sha256.Sum256([]byte(urlStr))
	return hex.EncodeToString(sum[:])
}
