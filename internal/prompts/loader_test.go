package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get(GenerationFile, "ideas")
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.Count}}")
	assert.Contains(t, prompt, "{{.Content}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(GenerationFile, "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGenerationPrompts_CoverEveryOption(t *testing.T) {
	set, err := Load(GenerationFile)
	require.NoError(t, err)

	for _, platform := range []string{"linkedin", "x", "facebook", "instagram", "threads"} {
		assert.Contains(t, set.Keys(), "platform-"+platform)
	}
	for _, length := range []string{"short", "medium", "long"} {
		assert.Contains(t, set.Keys(), "length-"+length)
	}
}

func TestRender(t *testing.T) {
	set := Set{"greet": "Hello {{.Name}}, you have {{.Count}} ideas"}

	out, err := set.Render("greet", map[string]string{"Name": "Ada", "Count": "3"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, you have 3 ideas", out)

	_, err = set.Render("greet", map[string]string{"Name": "Ada"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{.Count}}")
}

func TestFormat_DoesNotExpandValues(t *testing.T) {
	out := Format("A {{.X}} B", map[string]string{"X": "{{.Y}}", "Y": "bad"})
	assert.Equal(t, "A {{.Y}} B", out)
}

func TestFormat_LeavesUnknownPlaceholders(t *testing.T) {
	assert.Equal(t, "{{.Z}}", Format("{{.Z}}", nil))
}

func TestRender_ValueMayContainPlaceholderText(t *testing.T) {
	set := Set{"p": "Source: {{.Content}}"}

	out, err := set.Render("p", map[string]string{"Content": "template {{.Name}} docs"})
	require.NoError(t, err)
	assert.Equal(t, "Source: template {{.Name}} docs", out)
}
