package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// JSONSource reads a local JSON document of the form
// {"<conversation_id>": {"user_id": "...", "messages": [{"role": ..., "content": ...}]}}.
type JSONSource struct {
	path string
	base time.Time
}

type jsonMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

type jsonConversation struct {
	UserID   string        `json:"user_id,omitempty"`
	Messages []jsonMessage `json:"messages"`
}

// NewJSONSource creates a JSON source for path.
func NewJSONSource(path string, base time.Time) *JSONSource {
	return &JSONSource{path: path, base: base}
}

// GetConversations reads and normalizes the file.
func (s *JSONSource) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc map[string]jsonConversation
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}

	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows []row
	for _, id := range ids {
		conv := doc[id]
		for _, m := range conv.Messages {
			rows = append(rows, row{
				ConversationID: id,
				UserID:         conv.UserID,
				Role:           m.Role,
				Content:        m.Content,
				Timestamp:      m.Timestamp,
				MessageID:      m.MessageID,
			})
		}
	}
	return normalize(rows, s.base)
}
