package fetch

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGetter struct {
	calls  int
	result *Result
	err    error
}

func (s *stubGetter) Get(_ context.Context, url string) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	r.URL = url
	return &r, nil
}

func setupCache(t *testing.T, getter Getter) (*CachedFetcher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedFetcher(getter, client, 0, 0), mr
}

func TestCachedFetcher_CachesSuccess(t *testing.T) {
	getter := &stubGetter{result: &Result{HTML: "<p>hi</p>", StatusCode: 200}}
	cache, mr := setupCache(t, getter)
	ctx := context.Background()

	first, err := cache.Get(ctx, "https://example.com/a")
	require.NoError(t, err)
	second, err := cache.Get(ctx, "https://example.com/a")
	require.NoError(t, err)

	assert.Equal(t, 1, getter.calls)
	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, "https://example.com/a", second.URL)

	mr.FastForward(DefaultCacheTTL + 1)
	_, err = cache.Get(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, 2, getter.calls)
}

func TestCachedFetcher_RemembersPermanentFailures(t *testing.T) {
	getter := &stubGetter{err: &Error{URL: "u", Message: "HTTP status 404", StatusCode: http.StatusNotFound}}
	cache, mr := setupCache(t, getter)
	ctx := context.Background()

	_, err := cache.Get(ctx, "https://example.com/missing")
	require.Error(t, err)
	_, err = cache.Get(ctx, "https://example.com/missing")
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, 1, getter.calls)

	mr.FastForward(DefaultFailureTTL + 1)
	_, _ = cache.Get(ctx, "https://example.com/missing")
	assert.Equal(t, 2, getter.calls)
}

func TestCachedFetcher_DoesNotRememberTransientFailures(t *testing.T) {
	getter := &stubGetter{err: &Error{URL: "u", Message: "HTTP status 503", StatusCode: http.StatusServiceUnavailable}}
	cache, _ := setupCache(t, getter)
	ctx := context.Background()

	_, _ = cache.Get(ctx, "https://example.com/flaky")
	_, _ = cache.Get(ctx, "https://example.com/flaky")
	assert.Equal(t, 2, getter.calls)
}

func TestCachedFetcher_RedisDownFallsThrough(t *testing.T) {
	getter := &stubGetter{result: &Result{HTML: "x", StatusCode: 200}}
	cache, mr := setupCache(t, getter)
	mr.Close()

	result, err := cache.Get(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "x", result.HTML)
}
