package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedSchemas(t *testing.T) {
	for _, name := range []string{Ideas, Posts} {
		schema, err := Load(name)
		require.NoError(t, err, name)
		assert.NotNil(t, schema)
	}
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("invoices")
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidate_Ideas(t *testing.T) {
	valid := `{"ideas": [{"title": "Ship small", "description": "Why small PRs review faster."}]}`
	assert.NoError(t, Validate(Ideas, valid))

	tests := map[string]string{
		"empty list":        `{"ideas": []}`,
		"missing title":     `{"ideas": [{"description": "x"}]}`,
		"empty description": `{"ideas": [{"title": "x", "description": ""}]}`,
		"wrong type":        `{"ideas": "none"}`,
		"missing key":       `{"topics": []}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			err := Validate(Ideas, doc)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.NotEmpty(t, validationErr.Errors)
			assert.Contains(t, err.Error(), "ideas output failed validation")
		})
	}
}

func TestValidate_Posts(t *testing.T) {
	assert.NoError(t, Validate(Posts, `{"posts": [{"title": "t", "description": "d", "tags": ["go"]}]}`))
	assert.NoError(t, Validate(Posts, `{"posts": [{"title": "t", "description": "d"}]}`))

	err := Validate(Posts, `{"posts": [{"title": "t", "description": "d", "tags": [""]}]}`)
	assert.Error(t, err)
}

func TestValidate_MalformedJSON(t *testing.T) {
	err := Validate(Ideas, `{"ideas": [`)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "(root)", validationErr.Errors[0].Field)
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "x"}`))

	err := ValidateJSONString(schema, `{"name": 3}`)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "name", validationErr.Errors[0].Field)
}
