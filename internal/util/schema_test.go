package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text  string `json:"text" description:"Text to echo"`
	Times int    `json:"times,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(echoArgs{})

	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]any)
	require.Contains(t, props, "text")
	assert.Equal(t, "string", props["text"].(map[string]any)["type"])
	assert.Equal(t, "Text to echo", props["text"].(map[string]any)["description"])
	assert.Equal(t, []string{"text"}, schema["required"])
}

func TestValidateParametersRequired(t *testing.T) {
	schema := CreateSchema(echoArgs{})

	err := ValidateParameters(map[string]any{"times": 2}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text", verr.Field)

	assert.NoError(t, ValidateParameters(map[string]any{"text": "hi"}, schema))
}

func TestValidateParametersRequiredAnySlice(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"location": map[string]any{"type": "string"}},
		"required":   []any{"location"},
	}

	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"location": "Berlin"}, schema))
}

func TestValidateParametersTypeMismatch(t *testing.T) {
	schema := CreateSchema(echoArgs{})

	err := ValidateParameters(map[string]any{"text": 42}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text", verr.Field)

	// JSON numbers arrive as float64; whole values satisfy integer fields.
	assert.NoError(t, ValidateParameters(map[string]any{"text": "hi", "times": float64(3)}, schema))
}
