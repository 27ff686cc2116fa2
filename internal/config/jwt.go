// Package config provides environment-driven configuration for the service.
package config

import (
	"fmt"
	"os"
	"time"
)

// MinSecretLength is the minimum byte length accepted for HMAC signing secrets.
const MinSecretLength = 32

// TokenConfig holds configuration for access and refresh token issuance.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// NewTokenConfig creates a token configuration from environment variables.
// JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required; JWT_ACCESS_TTL
// (default 15m), JWT_REFRESH_TTL (default 168h) and JWT_ISSUER are optional.
func NewTokenConfig() (*TokenConfig, error) {
	accessTTL, err := getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TTL: %w", err)
	}
	refreshTTL, err := getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_TTL: %w", err)
	}

	config := &TokenConfig{
		AccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		Issuer:        getEnvString("JWT_ISSUER", "content-repurposer"),
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *TokenConfig) normalize() error {
	if c.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required but not set")
	}
	if c.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required but not set")
	}
	if len(c.AccessSecret) < MinSecretLength {
		return fmt.Errorf("JWT_ACCESS_SECRET must be at least %d bytes", MinSecretLength)
	}
	if len(c.RefreshSecret) < MinSecretLength {
		return fmt.Errorf("JWT_REFRESH_SECRET must be at least %d bytes", MinSecretLength)
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTTL < time.Minute {
		return fmt.Errorf("JWT_ACCESS_TTL must be at least 1m, got: %s", c.AccessTTL)
	}
	if c.RefreshTTL <= c.AccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL (%s) must exceed JWT_ACCESS_TTL (%s)", c.RefreshTTL, c.AccessTTL)
	}
	return nil
}
