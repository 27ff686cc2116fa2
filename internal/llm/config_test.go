package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
	assert.InDelta(t, 0.8, config.Temperature, 0.001)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite: "fallback-model",
		},
	}

	// Unknown tier should fallback to TierStandard, then TierLite
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
	assert.Equal(t, "", (&Config{Models: map[ModelTier]string{}}).GetModel(TierAdvanced))
}

func TestWithModel(t *testing.T) {
	config := DefaultConfig()
	newConfig := config.WithModel(TierAdvanced, "custom-model")

	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
	assert.Equal(t, "custom-model", newConfig.GetModel(TierAdvanced))
	assert.Equal(t, "gemini-2.5-flash-lite", newConfig.GetModel(TierLite))
	assert.Equal(t, config.Temperature, newConfig.Temperature)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "gemini-exp")
	t.Setenv("GEMINI_TEMPERATURE", "0.3")
	t.Setenv("GEMINI_MAX_OUTPUT_TOKENS", "1024")

	config, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "gemini-exp", config.GetModel(TierLite))
	assert.Equal(t, "gemini-exp", config.GetModel(TierAdvanced))
	assert.InDelta(t, 0.3, config.Temperature, 0.001)
	assert.Equal(t, int32(1024), config.MaxOutputTokens)
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	t.Setenv("GEMINI_TEMPERATURE", "hot")
	_, err := ConfigFromEnv()
	assert.Error(t, err)

	t.Setenv("GEMINI_TEMPERATURE", "")
	t.Setenv("GEMINI_MAX_OUTPUT_TOKENS", "-5")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}
