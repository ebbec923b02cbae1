package taxonomy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

func TestEventTypeGeneratorSchemaRestrictsConversationIDs(t *testing.T) {
	gen := NewEventTypeGenerator(testAssistant, []model.Conversation{conv("conv-a", "hi"), conv("conv-b", "yo")}, nil)

	item := gen.Schema().Properties["event_types"].Items
	require.NotNil(t, item)
	ids := item.Properties["conversation_ids"].Items
	require.NotNil(t, ids)
	assert.Equal(t, []string{"conv-a", "conv-b"}, ids.Enum)
	assert.Equal(t, []string{"conversation_ids", "definition", "name", "role"}, item.Required)
}

func TestEventTypeGeneratorParse(t *testing.T) {
	gen := NewEventTypeGenerator(testAssistant, []model.Conversation{conv("conv-a", "hi")}, nil)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"event_types":[{"name":"Greeting","definition":"d","role":"user","conversation_ids":["conv-a"]}]}`, false},
		{"missing key", `{}`, true},
		{"unknown role", `{"event_types":[{"name":"Greeting","definition":"d","role":"system","conversation_ids":[]}]}`, true},
		{"unknown conversation", `{"event_types":[{"name":"Greeting","definition":"d","role":"user","conversation_ids":["conv-z"]}]}`, true},
		{"blank name", `{"event_types":[{"name":" ","definition":"d","role":"user","conversation_ids":[]}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Parse(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.True(t, llm.IsValidation(err), "expected validation error, got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEventTypeGeneratorPromptIncludesPreviousTypes(t *testing.T) {
	previous := []*model.EventType{model.NewEventType("Support Request", "asks for help", model.RoleUser)}
	gen := NewEventTypeGenerator(testAssistant, []model.Conversation{conv("conv-a", "hi")}, previous)

	prompt := gen.Prompt()
	assert.Contains(t, prompt, "Support Request")
	assert.Contains(t, prompt, "Mental Health Companion")
	assert.Equal(t, prompt, gen.Prompt())
}

func TestEventPropertyGeneratorDropsBlankChoices(t *testing.T) {
	et := model.NewEventType("Support Request", "", model.RoleUser)
	gen := NewEventPropertyGenerator(testAssistant, et, nil)

	props, err := gen.Parse(json.RawMessage(`{"event_properties":[{"name":"Urgency","definition":"d","values":["High","","High","Low"]}]}`))
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, model.ChoiceSet{"High", "Low"}, props[0].Choices)
}

func TestAssistantNamerLimitsSample(t *testing.T) {
	var convs []model.Conversation
	for i := 0; i < 40; i++ {
		convs = append(convs, conv("conv-"+string(rune('A'+i)), "m0", "m1", "m2", "m3", "m4", "m5", "m6", "m7"))
	}
	prompt := NewAssistantNamer(convs).Prompt()
	assert.Contains(t, prompt, "conv-A")
	assert.NotContains(t, prompt, "conv-"+string(rune('A'+30)))
	assert.Contains(t, prompt, "m5")
	assert.NotContains(t, prompt, "m6")

	a, err := NewAssistantNamer(convs).Parse(json.RawMessage(`{"assistant_name":"Tax Advisor","assistant_description":"Helps."}`))
	require.NoError(t, err)
	assert.Equal(t, "Tax Advisor", a.Name)
}

func TestJudgeCriteriaGeneratorRequiresAllLists(t *testing.T) {
	gen := NewJudgeCriteriaGenerator(testAssistant)

	_, err := gen.Parse(json.RawMessage(`{"primary_goals":["a"],"secondary_goals":[],"tertiary_goals":[]}`))
	var ve *llm.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dealbreakers", ve.Key)

	got, err := gen.Parse(json.RawMessage(`{"primary_goals":["a"],"secondary_goals":["b"],"tertiary_goals":["c"],"dealbreakers":["d"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, got.Dealbreakers)
}

func TestMergePatterns(t *testing.T) {
	existing := []model.BehaviorPattern{{Name: "Deflects", Description: "first"}}
	merged := MergePatterns(existing, []model.BehaviorPattern{
		{Name: "Deflects", Description: "second"},
		{Name: "Over-explains", Description: "long answers"},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, "first", merged[0].Description)
	assert.Equal(t, "Over-explains", merged[1].Name)
}
