// Package taxonomy discovers the assistant identity, judge criteria and the event taxonomy
// from batches of conversations.
package taxonomy

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

const (
	namerMaxConversations = 30
	namerMaxMessages      = 6
)

// AssistantNamer infers the assistant's name and description from sample conversations.
type AssistantNamer struct {
	conversations []model.Conversation
}

// NewAssistantNamer creates a namer over conversations. Only the first conversations and
// messages are shown to the model.
func NewAssistantNamer(conversations []model.Conversation) *AssistantNamer {
	return &AssistantNamer{conversations: conversations}
}

func (q *AssistantNamer) Name() string { return "assistant_namer" }

func (q *AssistantNamer) Prompt() string {
	convs := q.conversations
	if len(convs) > namerMaxConversations {
		convs = convs[:namerMaxConversations]
	}
	sample := make([]model.PromptConversation, len(convs))
	for i := range convs {
		sample[i] = convs[i].PromptFormat(namerMaxMessages)
	}

	return fmt.Sprintf(`Generate a name and description for the AI assistant based on the conversations it had with its users.

### Conversations
%s

### Instructions
- The assistant may introduce itself in the conversations. If it does, use that to name and describe it.
- Otherwise infer the name and description from the conversations. The name should be short and professional ("Mental Health Companion", "Customer Support Agent", "Sales Coach"). The description should be 1-2 sentences covering the assistant's purpose and how it interacts with users.
`, llm.InlineJSON(sample))
}

func (q *AssistantNamer) Schema() *jsonschema.Definition {
	return llm.ObjectSchema(map[string]jsonschema.Definition{
		"assistant_name":        llm.StringSchema("A short (1-3 words) name that captures the main focus of the assistant."),
		"assistant_description": llm.StringSchema("A brief (1-2 sentences) description of the assistant's purpose and how it interacts with users."),
	})
}

// Parse returns the assistant name and description.
func (q *AssistantNamer) Parse(raw json.RawMessage) (model.Assistant, error) {
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return model.Assistant{}, err
	}
	name, err := llm.Field[string](q.Name(), obj, "assistant_name")
	if err != nil {
		return model.Assistant{}, err
	}
	desc, err := llm.Field[string](q.Name(), obj, "assistant_description")
	if err != nil {
		return model.Assistant{}, err
	}
	return model.Assistant{Name: name, Description: desc}, nil
}
