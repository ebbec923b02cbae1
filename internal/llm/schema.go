package llm

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Object returns a closed object definition: every property is required and no other key is
// accepted. Strict structured output on both backend families requires this shape.
func Object(props map[string]jsonschema.Definition) jsonschema.Definition {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	return jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           props,
		Required:             required,
		AdditionalProperties: false,
	}
}

// ObjectSchema returns a closed top-level response schema.
func ObjectSchema(props map[string]jsonschema.Definition) *jsonschema.Definition {
	def := Object(props)
	return &def
}

// EnumSchema constrains a value to one of values.
func EnumSchema(description string, values ...string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.String,
		Description: description,
		Enum:        values,
	}
}

// StringSchema is a free-text value.
func StringSchema(description string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: description}
}

// NumberSchema is a numeric value.
func NumberSchema(description string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Number, Description: description}
}

// ArraySchema is a list of items.
func ArraySchema(description string, items jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Array,
		Description: description,
		Items:       &items,
	}
}

// StringArraySchema is a list of free-text values.
func StringArraySchema(description string) jsonschema.Definition {
	return ArraySchema(description, jsonschema.Definition{Type: jsonschema.String})
}

// DecodeObject decodes a response into its top-level keys.
func DecodeObject(query string, raw json.RawMessage) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ValidationError{Query: query, Reason: fmt.Sprintf("response is not a JSON object: %v", err)}
	}
	if obj == nil {
		return nil, &ValidationError{Query: query, Reason: "response is null"}
	}
	return obj, nil
}

// RequireKeys fails with a ValidationError naming the first key absent from obj.
func RequireKeys(query string, obj map[string]json.RawMessage, keys ...string) error {
	for _, key := range keys {
		if _, ok := obj[key]; !ok {
			return &ValidationError{Query: query, Key: key, Reason: "missing required key"}
		}
	}
	return nil
}

// Field decodes obj[key] into a T. A missing key or a value of the wrong type is a
// ValidationError.
func Field[T any](query string, obj map[string]json.RawMessage, key string) (T, error) {
	var out T
	raw, ok := obj[key]
	if !ok {
		return out, &ValidationError{Query: query, Key: key, Reason: "missing required key"}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ValidationError{Query: query, Key: key, Reason: err.Error()}
	}
	return out, nil
}

// InlineJSON renders v as indented JSON for embedding in a prompt.
func InlineJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
