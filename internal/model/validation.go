package model

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if len(id) == 0 {
		return errors.New("conversation ID cannot be empty")
	}
	if len(id) > 256 {
		return errors.New("conversation ID exceeds maximum length")
	}
	return nil
}

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversation checks a normalized conversation before it enters the pipeline.
func ValidateConversation(c *Conversation) error {
	if err := ValidateConversationID(c.ID); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Messages))
	for i, m := range c.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("conversation %s message %d: invalid role %q", c.ID, i, m.Role)
		}
		if m.ID == "" {
			return fmt.Errorf("conversation %s message %d: empty message ID", c.ID, i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("conversation %s: duplicate message ID %q", c.ID, m.ID)
		}
		seen[m.ID] = struct{}{}
		if err := ValidateMessageContent(m.Content); err != nil {
			return fmt.Errorf("conversation %s message %s: %w", c.ID, m.ID, err)
		}
	}
	return nil
}
