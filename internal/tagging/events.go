// Package tagging annotates conversations against a fixed taxonomy: event assignment,
// explanations, property values, behavior patterns and judge scores.
package tagging

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// EventGenerator assigns exactly one event type to every message of a conversation. Each
// message may only receive an event type bound to its author's role.
type EventGenerator struct {
	assistant    model.Assistant
	eventTypes   *model.EventTypeSet
	conversation *model.Conversation
}

// NewEventGenerator creates an event assignment query for one conversation.
func NewEventGenerator(assistant model.Assistant, eventTypes *model.EventTypeSet, conversation *model.Conversation) *EventGenerator {
	return &EventGenerator{assistant: assistant, eventTypes: eventTypes, conversation: conversation}
}

// Name identifies the query in logs and metrics.
func (q *EventGenerator) Name() string { return "event_generator" }

func (q *EventGenerator) Prompt() string {
	return fmt.Sprintf(`Determine the events that occurred in a conversation between a user and an assistant.

### Instructions
1. Review the assistant, the event type definitions and the conversation.
2. Assign every message exactly one event type, answering under the message's key that best represents what happened in that message.
3. Consider the whole conversation and how each message relates to earlier ones.
4. Where event types have similar definitions, use their distinguishing characteristics to decide.
5. Prefer specific evidence in the message over general impressions.
6. The tags feed a product analytics platform. Pick the event type that is most useful there.

### Assistant
%s

### Event Types
%s

### Conversation
%s
`, llm.InlineJSON(q.assistant), llm.InlineJSON(promptEventTypes(q.eventTypes.List())), llm.InlineJSON(keyConversation(q.conversation)))
}

func (q *EventGenerator) Schema() *jsonschema.Definition {
	byRole := make(map[model.Role][]string)
	for _, et := range q.eventTypes.List() {
		byRole[et.Role] = append(byRole[et.Role], et.Name)
	}
	props := make(map[string]jsonschema.Definition, len(q.conversation.Messages))
	for i, m := range q.conversation.Messages {
		props[messageKey(i)] = llm.EnumSchema(fmt.Sprintf("The event type that occurred in message_id %s.", m.ID), byRole[m.Role]...)
	}
	return llm.ObjectSchema(props)
}

// Validate fails when a message's role has no event types, since its enum would be empty.
func (q *EventGenerator) Validate() error {
	if len(q.conversation.Messages) == 0 {
		return &llm.ValidationError{Query: q.Name(), Reason: fmt.Sprintf("conversation %s has no messages", q.conversation.ID)}
	}
	for i, m := range q.conversation.Messages {
		if len(q.eventTypes.ForRole(m.Role)) == 0 {
			return &llm.ValidationError{Query: q.Name(), Key: messageKey(i), Reason: fmt.Sprintf("no event types for role %q", m.Role)}
		}
	}
	return nil
}

// Parse maps the keyed answers back to one event per message.
func (q *EventGenerator) Parse(raw json.RawMessage) ([]*model.Event, error) {
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return nil, err
	}
	events := make([]*model.Event, 0, len(q.conversation.Messages))
	for i, m := range q.conversation.Messages {
		key := messageKey(i)
		name, err := llm.Field[string](q.Name(), obj, key)
		if err != nil {
			return nil, err
		}
		et, ok := q.eventTypes.Get(name)
		if !ok {
			return nil, &llm.ValidationError{Query: q.Name(), Key: key, Reason: fmt.Sprintf("unknown event type %q", name)}
		}
		if et.Role != m.Role {
			return nil, &llm.ValidationError{Query: q.Name(), Key: key, Reason: fmt.Sprintf("event type %q is for %s messages", name, et.Role)}
		}
		events = append(events, model.NewEvent(q.conversation, m, et))
	}
	return events, nil
}

func promptEventTypes(types []*model.EventType) []model.PromptEventType {
	out := make([]model.PromptEventType, len(types))
	for i, et := range types {
		out[i] = et.PromptFormat()
	}
	return out
}
