package taxonomy

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/llm/llmtest"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

var testAssistant = model.Assistant{Name: "Tax Advisor", Description: "Answers tax questions."}

func conv(id string, contents ...string) model.Conversation {
	c := model.Conversation{ID: id, UserID: "user-" + id}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, content := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		c.Messages = append(c.Messages, model.Message{
			ID:        string(rune('0' + i)),
			Role:      role,
			Content:   content,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	return c
}

func candidate(name string, role model.Role, ids ...string) map[string]any {
	return map[string]any{"name": name, "definition": name + " definition", "role": role, "conversation_ids": ids}
}

func property(name string, values ...string) map[string]any {
	return map[string]any{"name": name, "definition": name + " definition", "values": values}
}

func testBuilder(backend llm.Backend, batchSize, numBatches int) *Builder {
	ex := llm.NewExecutor(backend, "test-model", logger.NewNop(), llm.WithSleep(llmtest.NoSleep))
	return NewBuilder(ex, BuilderConfig{
		BatchSize:       batchSize,
		NumBatches:      numBatches,
		PropertyWorkers: 3,
		Policy:          llm.RetryPolicy{MaxRetries: 2},
	}, logger.NewNop())
}

func TestBuildDeduplicatesSameNameWithinBatch(t *testing.T) {
	convs := []model.Conversation{
		conv("conv-a", "I can't log in to my account", "Let me help"),
		conv("conv-b", "my password reset isn't working", "Try again"),
		conv("conv-c", "what is a W-2?", "A W-2 reports wages"),
	}
	backend := llmtest.New(llmtest.Router(map[string]llmtest.HandlerFunc{
		"event_type_generator": llmtest.JSON(map[string]any{"event_types": []any{
			candidate("Support Request", model.RoleUser, "conv-a"),
			candidate("Support Request", model.RoleUser, "conv-b"),
			candidate("Tax Concept Inquiry", model.RoleUser, "conv-c"),
		}}),
		"event_property_generator": llmtest.JSON(map[string]any{"event_properties": []any{}}),
	}))

	set, err := testBuilder(backend, 40, 1).Build(context.Background(), testAssistant, convs, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Support Request", "Tax Concept Inquiry"}, set.Names())

	var propertyCalls int
	for _, req := range backend.Requests() {
		if req.Query == "event_property_generator" {
			propertyCalls++
		}
	}
	assert.Equal(t, 2, propertyCalls)
}

func TestBuildAccumulatesPropertiesAcrossBatches(t *testing.T) {
	convs := []model.Conversation{
		conv("conv-a", "urgent: my refund is missing"),
		conv("conv-b", "no rush, when is my refund due?"),
	}
	var discovery int32
	backend := llmtest.New(llmtest.Router(map[string]llmtest.HandlerFunc{
		"event_type_generator": func(req *llm.Request) (json.RawMessage, error) {
			id := "conv-a"
			if atomic.AddInt32(&discovery, 1) == 2 {
				id = "conv-b"
			}
			return json.Marshal(map[string]any{"event_types": []any{
				candidate("Support Request", model.RoleUser, id),
			}})
		},
		"event_property_generator": func(req *llm.Request) (json.RawMessage, error) {
			if strings.Contains(req.Prompt, "conv-a") {
				return json.Marshal(map[string]any{"event_properties": []any{
					property("Urgency", "High"),
					property("Topic", "Refund"),
				}})
			}
			return json.Marshal(map[string]any{"event_properties": []any{
				property("Urgency", "Low", "High"),
			}})
		},
	}))

	set, err := testBuilder(backend, 1, 2).Build(context.Background(), testAssistant, convs, nil)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	et, ok := set.Get("Support Request")
	require.True(t, ok)
	assert.Equal(t, []string{"Urgency", "Topic"}, et.Properties.Names())

	urgency, ok := et.Properties.Get("Urgency")
	require.True(t, ok)
	assert.Equal(t, model.ChoiceSet{"High", "Low"}, urgency.Choices)
}

func TestBuildKeepsPropertiesWhenPropertyQueryFails(t *testing.T) {
	initial := model.NewEventTypeSet(model.NewEventType("Support Request", "asks for help", model.RoleUser))
	existing, _ := initial.Get("Support Request")
	existing.Properties.Merge(model.EventProperty{Name: "Urgency", Choices: model.ChoiceSet{"High"}})

	backend := llmtest.New(llmtest.Router(map[string]llmtest.HandlerFunc{
		"event_type_generator": llmtest.JSON(map[string]any{"event_types": []any{
			candidate("Support Request", model.RoleUser, "conv-a"),
			candidate("Greeting", model.RoleAssistant, "conv-a"),
		}}),
		"event_property_generator": func(req *llm.Request) (json.RawMessage, error) {
			if strings.Contains(req.Prompt, `"name": "Support Request"`) {
				return nil, llmtest.ErrServer
			}
			return json.Marshal(map[string]any{"event_properties": []any{property("Tone", "Warm")}})
		},
	}))

	set, err := testBuilder(backend, 10, 1).Build(context.Background(), testAssistant,
		[]model.Conversation{conv("conv-a", "help", "hello there")}, initial)
	require.NoError(t, err)

	support, _ := set.Get("Support Request")
	assert.Same(t, existing, support)
	assert.Equal(t, []string{"Urgency"}, support.Properties.Names())

	greeting, ok := set.Get("Greeting")
	require.True(t, ok)
	assert.Equal(t, []string{"Tone"}, greeting.Properties.Names())
}

func TestBuildSkipsFailedBatchAndCapsInput(t *testing.T) {
	convs := []model.Conversation{
		conv("conv-a", "one"), conv("conv-b", "two"), conv("conv-c", "three"),
		conv("conv-d", "four"), conv("conv-e", "five"),
	}
	var discovery int32
	backend := llmtest.New(llmtest.Router(map[string]llmtest.HandlerFunc{
		"event_type_generator": func(req *llm.Request) (json.RawMessage, error) {
			assert.NotContains(t, req.Prompt, "conv-e")
			if atomic.AddInt32(&discovery, 1) == 1 {
				return nil, llmtest.ErrServer
			}
			return json.Marshal(map[string]any{"event_types": []any{candidate("Small Talk", model.RoleUser)}})
		},
		"event_property_generator": llmtest.JSON(map[string]any{"event_properties": []any{}}),
	}))

	set, err := testBuilder(backend, 2, 2).Build(context.Background(), testAssistant, convs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Small Talk"}, set.Names())
	assert.Equal(t, int32(2), atomic.LoadInt32(&discovery))
}

func TestBuildFailsOnEmptyTaxonomy(t *testing.T) {
	backend := llmtest.New(llmtest.Router(map[string]llmtest.HandlerFunc{
		"event_type_generator": llmtest.JSON(map[string]any{"event_types": []any{}}),
	}))

	_, err := testBuilder(backend, 10, 1).Build(context.Background(), testAssistant,
		[]model.Conversation{conv("conv-a", "hi")}, nil)
	assert.ErrorIs(t, err, ErrEmptyTaxonomy)
}
