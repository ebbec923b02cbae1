package model

import (
	"fmt"
	"strings"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Roles lists the roles an event type may be bound to, in persisted order.
var Roles = []Role{RoleAssistant, RoleUser}

// ParseRole converts a raw role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Message represents a single conversation message. Messages are immutable once created.
type Message struct {
	ID        string    `json:"message_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PromptMessage is the representation of a message inlined into prompts.
type PromptMessage struct {
	MessageID string `json:"message_id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
}

// PromptFormat returns the prompt representation of the message.
func (m Message) PromptFormat() PromptMessage {
	return PromptMessage{
		MessageID: m.ID,
		Role:      m.Role,
		Content:   m.Content,
	}
}
