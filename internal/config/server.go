package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Store backends selected by the DATABASE_URL scheme.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// ServerConfig holds process-level settings for the HTTP API.
type ServerConfig struct {
	DatabaseURL  string
	DatabaseName string // MongoDB database name
	RedisURL     string
	GeminiAPIKey string
	FrontendURL  string
	CookieDomain string
	Environment  string
	UseBrowser   bool
	// AllowPrivateFetch lets web sources point at loopback and private
	// networks. Off unless FETCH_ALLOW_PRIVATE_NETWORKS is set.
	AllowPrivateFetch bool
}

// LoadServerConfig reads server settings from the environment. Only
// DATABASE_URL is required here; the serve command checks GEMINI_API_KEY.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseName: getEnvString("DATABASE_NAME", "repurposer"),
		RedisURL:     getEnvString("REDIS_URL", "redis://localhost:6379/0"),
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		FrontendURL:  strings.TrimRight(getEnvString("FRONTEND_URL", "http://localhost:5173"), "/"),
		CookieDomain: os.Getenv("COOKIE_DOMAIN"),
		Environment:  getEnvString("ENV", "production"),
		UseBrowser:   getEnvBool("USE_BROWSER", false),

		AllowPrivateFetch: getEnvBool("FETCH_ALLOW_PRIVATE_NETWORKS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and URL shapes.
func (c *ServerConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if _, err := c.Backend(); err != nil {
		return err
	}
	u, err := url.Parse(c.FrontendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("FRONTEND_URL must be an absolute URL, got %q", c.FrontendURL)
	}
	return nil
}

// Backend returns which store implementation DATABASE_URL points at.
func (c *ServerConfig) Backend() (string, error) {
	switch {
	case strings.HasPrefix(c.DatabaseURL, "mongodb://"), strings.HasPrefix(c.DatabaseURL, "mongodb+srv://"):
		return BackendMongo, nil
	case strings.HasPrefix(c.DatabaseURL, "postgres://"), strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		return BackendPostgres, nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL scheme (want mongodb:// or postgres://)")
	}
}

// IsDevelopment reports whether the process runs in development mode, which
// relaxes the Secure attribute on cookies.
func (c *ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
