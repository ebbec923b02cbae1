package taxonomy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// EventTypeCandidate is an event type proposed for one batch, with the batch conversations
// it was observed in.
type EventTypeCandidate struct {
	Name            string     `json:"name"`
	Definition      string     `json:"definition"`
	Role            model.Role `json:"role"`
	ConversationIDs []string   `json:"conversation_ids"`
}

// EventTypeGenerator proposes event types for a batch, reusing the names of the taxonomy
// accumulated so far for equivalent concepts.
type EventTypeGenerator struct {
	assistant     model.Assistant
	conversations []model.Conversation
	previous      []model.PromptEventType
}

// NewEventTypeGenerator creates a generator for batch. previous is snapshotted.
func NewEventTypeGenerator(assistant model.Assistant, batch []model.Conversation, previous []*model.EventType) *EventTypeGenerator {
	prev := make([]model.PromptEventType, len(previous))
	for i, et := range previous {
		prev[i] = et.PromptFormat()
	}
	return &EventTypeGenerator{
		assistant:     assistant,
		conversations: batch,
		previous:      prev,
	}
}

func (q *EventTypeGenerator) Name() string { return "event_type_generator" }

func (q *EventTypeGenerator) Prompt() string {
	convs := make([]model.PromptConversation, len(q.conversations))
	for i := range q.conversations {
		convs[i] = q.conversations[i].PromptFormat(0)
	}

	return fmt.Sprintf(`Determine the event types that should be tracked to enable product analytics for a conversational assistant. A downstream pipeline will tag every message with one event type and its property values, and the events will be sent to a product analytics platform.

### Instructions
1. Review the example schemas, the assistant, the previous event types and the conversations.
2. Identify the events that recur across conversations and are worth tracking.
3. Make each event type tangible and mutually exclusive. Too specific and the analytics become overwhelming; too generic and they say nothing. Event properties are generated later to capture further detail.
4. The examples are complete, high-quality schemas generated for other assistants. Match their granularity.
5. The previous event types were identified in earlier conversations of this assistant. When an event type you identify is semantically equivalent to a previous one, return the EXACT same name and definition. Otherwise return a new name and definition.
6. For each event type, list the ids of the conversations in which it occurs.
7. Re-read the conversations until you are confident every notable event type is covered.

### Examples of Effective Event Schemas
%s

### Assistant
%s

### Previous Event Types
%s

### Conversations
%s
`, llm.InlineJSON(eventTypeExamples), llm.InlineJSON(q.assistant), llm.InlineJSON(q.previous), llm.InlineJSON(convs))
}

func (q *EventTypeGenerator) conversationIDs() []string {
	ids := make([]string, len(q.conversations))
	for i, c := range q.conversations {
		ids[i] = c.ID
	}
	return ids
}

func (q *EventTypeGenerator) Schema() *jsonschema.Definition {
	item := llm.Object(map[string]jsonschema.Definition{
		"name":       llm.StringSchema("A short (3-5 words) name that captures the main focus of the event type."),
		"definition": llm.StringSchema("A brief (1-2 sentences) definition of the event type."),
		"role":       llm.EnumSchema("Whether the event type describes assistant or user messages.", string(model.RoleAssistant), string(model.RoleUser)),
		"conversation_ids": llm.ArraySchema("The conversations in which the event type occurs.",
			llm.EnumSchema("", q.conversationIDs()...)),
	})
	return llm.ObjectSchema(map[string]jsonschema.Definition{
		"event_types": llm.ArraySchema("", item),
	})
}

// Validate rejects an empty batch, which would produce an empty conversation id enum.
func (q *EventTypeGenerator) Validate() error {
	if len(q.conversations) == 0 {
		return &llm.ValidationError{Query: q.Name(), Reason: "batch has no conversations"}
	}
	return nil
}

// Parse validates each candidate. Roles must parse and conversation ids must belong to the batch.
func (q *EventTypeGenerator) Parse(raw json.RawMessage) ([]EventTypeCandidate, error) {
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return nil, err
	}
	candidates, err := llm.Field[[]EventTypeCandidate](q.Name(), obj, "event_types")
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(q.conversations))
	for _, c := range q.conversations {
		known[c.ID] = true
	}
	for i := range candidates {
		c := &candidates[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, &llm.ValidationError{Query: q.Name(), Key: "event_types", Reason: fmt.Sprintf("event type %d has no name", i)}
		}
		role, err := model.ParseRole(string(c.Role))
		if err != nil {
			return nil, &llm.ValidationError{Query: q.Name(), Key: c.Name, Reason: err.Error()}
		}
		c.Role = role
		for _, id := range c.ConversationIDs {
			if !known[id] {
				return nil, &llm.ValidationError{Query: q.Name(), Key: c.Name, Reason: fmt.Sprintf("unknown conversation %q", id)}
			}
		}
	}
	return candidates, nil
}
