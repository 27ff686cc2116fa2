package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryConfig bounds retries of transient provider failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig retries three times with backoff from 1s to 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// RetryingClient wraps a Client and retries transient failures with
// jittered exponential backoff.
type RetryingClient struct {
	inner    Client
	executor failsafe.Executor[string]
}

// NewRetryingClient wraps inner.
func NewRetryingClient(inner Client, cfg RetryConfig) *RetryingClient {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	policy := retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool { return IsTransient(err) }).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.2).
		Build()

	return &RetryingClient{inner: inner, executor: failsafe.With[string](policy)}
}

// GenerateContent calls the wrapped client with retries.
func (c *RetryingClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.run(ctx, func() (string, error) { return c.inner.GenerateContent(ctx, prompt, tier) })
}

// GenerateJSON calls the wrapped client with retries.
func (c *RetryingClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.run(ctx, func() (string, error) { return c.inner.GenerateJSON(ctx, prompt, tier) })
}

// Close closes the wrapped client.
func (c *RetryingClient) Close() error {
	return c.inner.Close()
}

func (c *RetryingClient) run(ctx context.Context, fn func() (string, error)) (string, error) {
	var lastErr error
	out, err := c.executor.WithContext(ctx).Get(func() (string, error) {
		text, err := fn()
		lastErr = err
		return text, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		// Report the provider's error rather than the retry wrapper.
		if lastErr != nil {
			return "", lastErr
		}
		return "", err
	}
	return out, nil
}

// IsTransient reports whether err is worth retrying: rate limiting,
// server-side failures, or an empty/unparseable reply.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrBlocked) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.Internal, codes.DeadlineExceeded, codes.Aborted:
			return true
		default:
			return false
		}
	}

	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse)
}
