package tagging

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

type assignment struct {
	Key       string `json:"key"`
	MessageID string `json:"message_id"`
	EventType string `json:"event_type"`
}

// ExplanationGenerator explains, per message, why it was assigned its event type. The
// result maps message IDs to explanations.
type ExplanationGenerator struct {
	assistant    model.Assistant
	eventTypes   *model.EventTypeSet
	conversation *model.Conversation
	events       []*model.Event
}

// NewExplanationGenerator creates an explanation query for the events of one conversation.
func NewExplanationGenerator(assistant model.Assistant, eventTypes *model.EventTypeSet, conversation *model.Conversation, events []*model.Event) *ExplanationGenerator {
	return &ExplanationGenerator{assistant: assistant, eventTypes: eventTypes, conversation: conversation, events: events}
}

func (q *ExplanationGenerator) Name() string { return "explanation_generator" }

func (q *ExplanationGenerator) Prompt() string {
	assigned := make([]assignment, len(q.events))
	for i, ev := range q.events {
		assigned[i] = assignment{Key: messageKey(i), MessageID: ev.Message.ID, EventType: ev.EventTypeName()}
	}
	return fmt.Sprintf(`You are analyzing a conversation whose messages have been assigned event types. Explain why each message was classified with its event type.

### Instructions
1. Review the assistant, the event type definitions, the conversation and the assigned event types.
2. For each assigned event, under its key, write a 1-2 sentence explanation of why it is an occurrence of its assigned event type.
3. Include specific details of the occurrence, especially ones that help cluster explanations into behavior patterns later.

### Assistant
%s

### Event Type Definitions
%s

### Conversation
%s

### Assigned Event Types
%s
`, llm.InlineJSON(q.assistant), llm.InlineJSON(promptEventTypes(q.eventTypes.List())), llm.InlineJSON(q.conversation.PromptFormat(0)), llm.InlineJSON(assigned))
}

func (q *ExplanationGenerator) Schema() *jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(q.events))
	for i, ev := range q.events {
		props[messageKey(i)] = llm.StringSchema(fmt.Sprintf("A 1-2 sentence explanation of why the message was assigned the event type %q.", ev.EventTypeName()))
	}
	return llm.ObjectSchema(props)
}

// Validate fails when the conversation has no events to explain.
func (q *ExplanationGenerator) Validate() error {
	if len(q.events) == 0 {
		return &llm.ValidationError{Query: q.Name(), Reason: fmt.Sprintf("conversation %s has no events", q.conversation.ID)}
	}
	return nil
}

// Parse returns the explanations keyed by message ID.
func (q *ExplanationGenerator) Parse(raw json.RawMessage) (map[string]string, error) {
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(q.events))
	for i, ev := range q.events {
		text, err := llm.Field[string](q.Name(), obj, messageKey(i))
		if err != nil {
			return nil, err
		}
		out[ev.Message.ID] = text
	}
	return out, nil
}
