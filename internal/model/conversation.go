// Package model defines data structures for conversations, event taxonomies and tagged events.
package model

import (
	"time"
)

// Conversation represents a conversation thread and its ordered messages.
type Conversation struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Messages []Message `json:"messages"`
}

// StartTime returns the earliest message timestamp. The second value is false for
// conversations without messages.
func (c *Conversation) StartTime() (time.Time, bool) {
	if len(c.Messages) == 0 {
		return time.Time{}, false
	}
	start := c.Messages[0].Timestamp
	for _, m := range c.Messages[1:] {
		if m.Timestamp.Before(start) {
			start = m.Timestamp
		}
	}
	return start, true
}

// EndTime returns the latest message timestamp. The second value is false for
// conversations without messages.
func (c *Conversation) EndTime() (time.Time, bool) {
	if len(c.Messages) == 0 {
		return time.Time{}, false
	}
	end := c.Messages[0].Timestamp
	for _, m := range c.Messages[1:] {
		if m.Timestamp.After(end) {
			end = m.Timestamp
		}
	}
	return end, true
}

// Message looks up a message by ID.
func (c *Conversation) Message(id string) (Message, bool) {
	for _, m := range c.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// PromptConversation is the representation of a conversation inlined into prompts.
type PromptConversation struct {
	ConversationID string          `json:"conversation_id"`
	Messages       []PromptMessage `json:"messages"`
}

// PromptFormat returns the prompt representation of the conversation. A positive limit
// truncates the message list.
func (c *Conversation) PromptFormat(limit int) PromptConversation {
	msgs := c.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]PromptMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.PromptFormat()
	}
	return PromptConversation{
		ConversationID: c.ID,
		Messages:       out,
	}
}
