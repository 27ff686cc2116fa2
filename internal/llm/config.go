// Package llm wraps the Gemini API behind a small client interface with
// model tiers and retries for transient failures.
package llm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short, cheap generations such as idea lists
	TierLite ModelTier = "lite"
	// TierStandard is the default for post drafting
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form drafts
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider.
const ProviderGemini Provider = "gemini"

// Config holds the model configuration for the application
type Config struct {
	Provider        Provider
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature:     0.8,
		MaxOutputTokens: 8192,
	}
}

// ConfigFromEnv applies GEMINI_MODEL (all tiers), GEMINI_TEMPERATURE and
// GEMINI_MAX_OUTPUT_TOKENS over the defaults.
func ConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if model := strings.TrimSpace(os.Getenv("GEMINI_MODEL")); model != "" {
		for tier := range cfg.Models {
			cfg.Models[tier] = model
		}
	}
	if raw := strings.TrimSpace(os.Getenv("GEMINI_TEMPERATURE")); raw != "" {
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil || v < 0 || v > 2 {
			return nil, fmt.Errorf("GEMINI_TEMPERATURE must be a number between 0 and 2, got %q", raw)
		}
		cfg.Temperature = float32(v)
	}
	if raw := strings.TrimSpace(os.Getenv("GEMINI_MAX_OUTPUT_TOKENS")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("GEMINI_MAX_OUTPUT_TOKENS must be a positive integer, got %q", raw)
		}
		cfg.MaxOutputTokens = int32(v)
	}
	return cfg, nil
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := *c
	newConfig.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return &newConfig
}
