package tagging

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// Batched queries cover events from many conversations, where message IDs collide. Each
// event gets a positional key; results are mapped back to EventKeys.

type batchItem struct {
	Key            string `json:"key"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Content        string `json:"content"`
	Explanation    string `json:"explanation,omitempty"`
}

func itemKey(i int) string { return "event_" + strconv.Itoa(i) }

// Per-conversation queries key their responses by message position for the same reason:
// message IDs come from the data and tool schemas only accept [a-zA-Z0-9_.-]{1,64} keys.
func messageKey(i int) string { return "message_" + strconv.Itoa(i) }

type keyedMessage struct {
	Key       string     `json:"key"`
	MessageID string     `json:"message_id"`
	Role      model.Role `json:"role"`
	Content   string     `json:"content"`
}

type keyedConversation struct {
	ConversationID string         `json:"conversation_id"`
	Messages       []keyedMessage `json:"messages"`
}

func keyConversation(c *model.Conversation) keyedConversation {
	out := keyedConversation{ConversationID: c.ID, Messages: make([]keyedMessage, len(c.Messages))}
	for i, m := range c.Messages {
		out.Messages[i] = keyedMessage{Key: messageKey(i), MessageID: m.ID, Role: m.Role, Content: m.Content}
	}
	return out
}

func batchItems(events []*model.Event) []batchItem {
	out := make([]batchItem, len(events))
	for i, ev := range events {
		out[i] = batchItem{
			Key:            itemKey(i),
			ConversationID: ev.ConversationID,
			MessageID:      ev.Message.ID,
			Content:        ev.Message.Content,
			Explanation:    ev.Explanation,
		}
	}
	return out
}

func batchSchema(events []*model.Event, description string, values []string) *jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(events))
	for i := range events {
		props[itemKey(i)] = llm.EnumSchema(description, values...)
	}
	return llm.ObjectSchema(props)
}

// parseBatch requires a value for every event and checks it against allowed.
func parseBatch(query string, raw json.RawMessage, events []*model.Event, allowed model.ChoiceSet) (map[model.EventKey]string, error) {
	obj, err := llm.DecodeObject(query, raw)
	if err != nil {
		return nil, err
	}
	out := make(map[model.EventKey]string, len(events))
	for i, ev := range events {
		key := itemKey(i)
		v, err := llm.Field[string](query, obj, key)
		if err != nil {
			return nil, err
		}
		if !allowed.Contains(v) {
			return nil, &llm.ValidationError{Query: query, Key: key, Reason: fmt.Sprintf("value %q is not allowed", v)}
		}
		out[ev.Key()] = v
	}
	return out, nil
}
