package destination

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
	natsclient "github.com/capitalize-ai/conversation-analytics/internal/nats"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

// NATSConfig is the connection configuration of the NATS sink.
type NATSConfig = natsclient.Config

type publisher interface {
	Publish(ctx context.Context, subject string, payload any, msgID string) (uint64, error)
	Connected() bool
}

// NATSSink publishes events to the EVENTS JetStream stream on
// events.<conversation_id>.<role>.
type NATSSink struct {
	streams publisher
	close   func() error
	log     *logger.Logger
}

// natsEvent is the JSON payload published for an event.
type natsEvent struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	UserID     string         `json:"user_id"`
	Timestamp  int64          `json:"time"`
	Properties map[string]any `json:"event_properties"`
}

// NewNATSSink connects to NATS and ensures the events stream exists.
func NewNATSSink(ctx context.Context, cfg NATSConfig, log *logger.Logger) (*NATSSink, error) {
	if log == nil {
		log = logger.NewNop()
	}
	client, err := natsclient.Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	streams := natsclient.NewStreamManager(client)
	if err := streams.EnsureStream(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", natsclient.StreamName, err)
	}
	return &NATSSink{streams: streams, close: client.Close, log: log}, nil
}

// SendEvent publishes the event and waits for the stream ack. The event ID is the
// message ID, so a retried publish is deduplicated by the stream.
func (s *NATSSink) SendEvent(ctx context.Context, ev *model.Event) error {
	subject := natsclient.EventSubject(ev.ConversationID, string(ev.Message.Role))
	seq, err := s.streams.Publish(ctx, subject, natsEvent{
		ID:         ev.ID,
		EventType:  ev.EventTypeName(),
		UserID:     ev.UserID,
		Timestamp:  ev.Message.Timestamp.UnixMilli(),
		Properties: Properties(ev),
	}, ev.ID)
	if err != nil {
		return err
	}
	s.log.Debug("event published",
		zap.String("subject", subject),
		zap.String("event_id", ev.ID),
		zap.Uint64("sequence", seq),
	)
	return nil
}

// Connected reports whether the NATS connection is up.
func (s *NATSSink) Connected() bool {
	return s.streams.Connected()
}

// Close drains and closes the connection.
func (s *NATSSink) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
