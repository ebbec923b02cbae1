package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the name of the tagged events stream.
	StreamName = "EVENTS"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "events"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the events stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Duplicates:  24 * time.Hour,
		Description: "Tagged conversation events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event of a conversation message. NATS subject
// tokens cannot contain dots or whitespace, so those are replaced.
func EventSubject(conversationID, role string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, subjectToken(conversationID), subjectToken(role))
}

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "\t", "_", "*", "_", ">", "_")

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}

// Publish publishes an event payload. msgID is sent as Nats-Msg-Id so a retried publish
// inside the duplicate window is stored once.
func (m *StreamManager) Publish(ctx context.Context, subject string, payload any, msgID string) (uint64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// Connected reports whether the underlying connection is up.
func (m *StreamManager) Connected() bool {
	return m.client.IsConnected()
}
