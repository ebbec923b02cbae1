package taxonomy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// EventPropertyGenerator proposes enumerated properties for one event type from the
// conversations it occurs in.
type EventPropertyGenerator struct {
	assistant     model.Assistant
	eventType     model.PromptEventType
	previous      []model.EventProperty
	conversations []model.Conversation
}

// NewEventPropertyGenerator creates a generator for et. The accumulated properties of et are
// copied so the query can run while the taxonomy is merged elsewhere.
func NewEventPropertyGenerator(assistant model.Assistant, et *model.EventType, conversations []model.Conversation) *EventPropertyGenerator {
	var prev []model.EventProperty
	for _, p := range et.Properties.List() {
		prev = append(prev, model.EventProperty{
			Name:       p.Name,
			Definition: p.Definition,
			Choices:    append(model.ChoiceSet(nil), p.Choices...),
		})
	}
	return &EventPropertyGenerator{
		assistant:     assistant,
		eventType:     et.PromptFormat(),
		previous:      prev,
		conversations: conversations,
	}
}

func (q *EventPropertyGenerator) Name() string { return "event_property_generator" }

func (q *EventPropertyGenerator) Prompt() string {
	convs := make([]model.PromptConversation, len(q.conversations))
	for i := range q.conversations {
		convs[i] = q.conversations[i].PromptFormat(0)
	}
	previous := q.previous
	if previous == nil {
		previous = []model.EventProperty{}
	}

	return fmt.Sprintf(`Determine the event properties that should be added to the event type below. A downstream pipeline will tag every message with an event type and its property values, and the events will be sent to a product analytics platform.

### Instructions
1. Review the assistant, the event type, the example properties, the previous properties and the conversations.
2. Identify the properties that should be added to the event type.
3. Make the values of each property tangible and mutually exclusive, at a granularity that yields useful insights.
4. The previous properties were identified in earlier conversations. When a property you identify is semantically equivalent to a previous one, return the EXACT same name and definition. Otherwise return a new name and definition.
5. Likewise for values: reuse an existing value when a new one means the same thing, and add a new value only when it is semantically different.
6. The examples show complete property lists generated for other assistants. Match their granularity.
7. Re-read the conversations until you are confident every notable property is covered.

### Assistant
%s

### Event Type
%s

### Examples of Effective Event Properties
%s

### Previous Event Properties
%s

### Conversations
%s
`, llm.InlineJSON(q.assistant), llm.InlineJSON(q.eventType), llm.InlineJSON(propertyExamples), llm.InlineJSON(previous), llm.InlineJSON(convs))
}

func (q *EventPropertyGenerator) Schema() *jsonschema.Definition {
	item := llm.Object(map[string]jsonschema.Definition{
		"name":       llm.StringSchema("A short (3-5 words) name that captures the main focus of the event property."),
		"definition": llm.StringSchema("A brief (1 sentence) definition of what the event property represents."),
		"values":     llm.StringArraySchema("The possible values of the event property."),
	})
	return llm.ObjectSchema(map[string]jsonschema.Definition{
		"event_properties": llm.ArraySchema("", item),
	})
}

// Parse returns the property candidates with blank choices removed.
func (q *EventPropertyGenerator) Parse(raw json.RawMessage) ([]model.EventProperty, error) {
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return nil, err
	}
	props, err := llm.Field[[]model.EventProperty](q.Name(), obj, "event_properties")
	if err != nil {
		return nil, err
	}
	out := make([]model.EventProperty, 0, len(props))
	for i, p := range props {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, &llm.ValidationError{Query: q.Name(), Key: "event_properties", Reason: fmt.Sprintf("property %d has no name", i)}
		}
		var choices []string
		for _, v := range p.Choices {
			if v = strings.TrimSpace(v); v != "" {
				choices = append(choices, v)
			}
		}
		p.Choices = model.NewChoiceSet(choices...)
		out = append(out, p)
	}
	return out, nil
}
