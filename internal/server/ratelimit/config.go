package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Path pattern; "*" matches one segment, a trailing "/" matches any suffix
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	authLimit := getEnvInt("RATE_LIMIT_AUTH_LIMIT", 20)
	generationLimit := getEnvInt("RATE_LIMIT_GENERATION_LIMIT", 30)

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(getEnvString("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: DefaultEndpointConfigs(authLimit, generationLimit),
	}
}

// DefaultEndpointConfigs returns the endpoint-specific tiers. authLimit is per
// minute; generationLimit is per hour.
func DefaultEndpointConfigs(authLimit, generationLimit int) []EndpointConfig {
	auth := func(path string) EndpointConfig {
		return EndpointConfig{Path: path, Method: "POST", Limit: authLimit, Window: time.Minute, Burst: 5}
	}
	generation := func(path string) EndpointConfig {
		return EndpointConfig{Path: path, Method: "POST", Limit: generationLimit, Window: time.Hour, Burst: 5}
	}

	return []EndpointConfig{
		// Tier 1: credential checks (brute-force surface)
		auth("/auth/register"),
		auth("/auth/login"),
		auth("/auth/refresh"),
		{Path: "/auth/password", Method: "PUT", Limit: authLimit, Window: time.Minute, Burst: 5},

		// Tier 2: LLM calls and outbound scraping
		generation("/sources/*/ideas"),
		generation("/sources/*/posts"),
		generation("/ideas/*/posts"),
		generation("/sources/web"),
		generation("/sources/youtube"),

		// Tier 3: everything else uses the default limit
		// Tier 4: probes are unlimited, see MatchEndpoint
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
