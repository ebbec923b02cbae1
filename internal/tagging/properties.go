package tagging

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// NotApplicable is the property value meaning the property does not apply to an event.
const NotApplicable = ""

// PropertyValueGenerator picks one property value for each event of a batch, all tagged with
// the same event type.
type PropertyValueGenerator struct {
	assistant model.Assistant
	eventType *model.EventType
	property  model.EventProperty
	events    []*model.Event
}

// NewPropertyValueGenerator creates a query assigning one property to a batch of events.
func NewPropertyValueGenerator(assistant model.Assistant, eventType *model.EventType, property *model.EventProperty, events []*model.Event) *PropertyValueGenerator {
	return &PropertyValueGenerator{
		assistant: assistant,
		eventType: eventType,
		property:  *property,
		events:    events,
	}
}

func (q *PropertyValueGenerator) Name() string { return "property_value_generator" }

func (q *PropertyValueGenerator) Prompt() string {
	return fmt.Sprintf(`Determine the value of the event property for each event, based on the message and the explanation of why it was tagged with the event type.

### Assistant
%s

### Event Type
%s

### Event Property
%s

### Events
%s
`, llm.InlineJSON(q.assistant), llm.InlineJSON(q.eventType.PromptFormat()), llm.InlineJSON(q.property), llm.InlineJSON(batchItems(q.events)))
}

func (q *PropertyValueGenerator) allowed() model.ChoiceSet {
	return q.property.Choices.Union(NotApplicable)
}

func (q *PropertyValueGenerator) Schema() *jsonschema.Definition {
	return batchSchema(q.events,
		fmt.Sprintf("The value of %q for this event. Use an empty string if none of the values apply.", q.property.Name),
		q.allowed())
}

// Validate fails for a property without choices.
func (q *PropertyValueGenerator) Validate() error {
	if len(q.events) == 0 {
		return &llm.ValidationError{Query: q.Name(), Reason: "no events"}
	}
	if len(q.property.Choices) == 0 {
		return &llm.ValidationError{Query: q.Name(), Key: q.property.Name, Reason: "property has no values"}
	}
	return nil
}

// Parse maps each positional answer back to its event. NotApplicable answers are kept;
// callers decide whether to write them.
func (q *PropertyValueGenerator) Parse(raw json.RawMessage) (map[model.EventKey]string, error) {
	return parseBatch(q.Name(), raw, q.events, q.allowed())
}
