package llm

import (
	"encoding/json"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectSchemaIsClosed(t *testing.T) {
	def := ObjectSchema(map[string]jsonschema.Definition{
		"b": StringSchema(""),
		"a": EnumSchema("", "x", ""),
	})

	data, err := json.Marshal(def)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []any{"a", "b"}, doc["required"])
}

func TestToolInputSchemaKeepsShape(t *testing.T) {
	def := ObjectSchema(map[string]jsonschema.Definition{
		"labels": StringArraySchema("labels"),
	})

	input, err := toolInputSchema(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"labels"}, input.Required)
	assert.Equal(t, false, input.ExtraFields["additionalProperties"])

	props, ok := input.Properties.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "labels")
}

func TestFieldReportsWrongType(t *testing.T) {
	obj, err := DecodeObject("q", json.RawMessage(`{"score": "high"}`))
	require.NoError(t, err)

	_, err = Field[float64]("q", obj, "score")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "score", ve.Key)
}

func TestIsReasoningModel(t *testing.T) {
	assert.True(t, isReasoningModel("o4-mini"))
	assert.True(t, isReasoningModel("o3"))
	assert.False(t, isReasoningModel("gpt-4.1"))
	assert.False(t, isReasoningModel("omni"))
}
