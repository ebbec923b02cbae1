// Package source loads conversations from local files or an S3 prefix.
package source

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// Source provides the conversations of a run.
type Source interface {
	GetConversations(ctx context.Context) ([]model.Conversation, error)
}

// Options configures source construction.
type Options struct {
	// AWSRegion overrides the region of the S3 client. Empty uses the AWS default chain.
	AWSRegion string
	// Base is the timestamp assigned to the first message of a conversation without
	// timestamps. Zero means the time New is called.
	Base time.Time
}

// New selects a source from uri: s3://bucket/prefix reads every CSV object under the
// prefix, a .csv path reads a local CSV file and anything else a local JSON file.
func New(ctx context.Context, uri string, opts Options) (Source, error) {
	if opts.Base.IsZero() {
		opts.Base = time.Now().UTC().Truncate(time.Second)
	}
	switch {
	case strings.HasPrefix(uri, "s3://"):
		return NewS3Source(ctx, uri, opts)
	case strings.HasSuffix(strings.ToLower(uri), ".csv"):
		return NewCSVSource(uri, opts.Base), nil
	case uri == "":
		return nil, fmt.Errorf("data path is required")
	default:
		return NewJSONSource(uri, opts.Base), nil
	}
}

// row is one message as read from a file, before grouping.
type row struct {
	ConversationID string
	UserID         string
	Role           string
	Content        string
	Timestamp      string
	MessageID      string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// normalize groups rows into conversations sorted by ID. Message order within a
// conversation follows row order. Missing message IDs become the positional index and
// missing timestamps are base plus one second per position.
func normalize(rows []row, base time.Time) ([]model.Conversation, error) {
	byID := make(map[string]*model.Conversation)
	var order []string

	for i, r := range rows {
		convID := r.ConversationID
		if convID == "" {
			convID = r.UserID
		}
		userID := r.UserID
		if userID == "" {
			userID = convID
		}
		if convID == "" {
			return nil, fmt.Errorf("row %d: missing conversation_id and user_id", i+1)
		}

		conv, ok := byID[convID]
		if !ok {
			conv = &model.Conversation{ID: convID, UserID: userID}
			byID[convID] = conv
			order = append(order, convID)
		}

		pos := len(conv.Messages)
		role, err := model.ParseRole(r.Role)
		if err != nil {
			return nil, fmt.Errorf("conversation %s message %d: %w", convID, pos, err)
		}
		msgID := r.MessageID
		if msgID == "" {
			msgID = strconv.Itoa(pos)
		}
		ts := base.Add(time.Duration(pos) * time.Second)
		if r.Timestamp != "" {
			if ts, err = parseTimestamp(r.Timestamp); err != nil {
				return nil, fmt.Errorf("conversation %s message %s: %w", convID, msgID, err)
			}
		}
		conv.Messages = append(conv.Messages, model.Message{
			ID:        msgID,
			Role:      role,
			Content:   r.Content,
			Timestamp: ts,
		})
	}

	sort.Strings(order)
	out := make([]model.Conversation, 0, len(order))
	for _, id := range order {
		conv := byID[id]
		if err := model.ValidateConversation(conv); err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, nil
}
