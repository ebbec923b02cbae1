package destination

import (
	"context"
	"errors"
	"fmt"

	"github.com/posthog/posthog-go"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// PosthogSink captures events in PostHog with the conversation's user as distinct id.
type PosthogSink struct {
	client posthog.Client
}

// NewPosthogSink creates a PostHog sink. An empty host uses PostHog cloud.
func NewPosthogSink(apiKey, host string) (*PosthogSink, error) {
	if apiKey == "" {
		return nil, errors.New("POSTHOG_API_KEY is required for the posthog destination")
	}
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: host})
	if err != nil {
		return nil, fmt.Errorf("create posthog client: %w", err)
	}
	return &PosthogSink{client: client}, nil
}

// SendEvent enqueues a capture for the event.
func (s *PosthogSink) SendEvent(_ context.Context, ev *model.Event) error {
	return s.client.Enqueue(posthogCapture(ev))
}

// Close flushes queued captures.
func (s *PosthogSink) Close() error {
	return s.client.Close()
}

func posthogCapture(ev *model.Event) posthog.Capture {
	return posthog.Capture{
		DistinctId: ev.UserID,
		Event:      ev.EventTypeName(),
		Timestamp:  ev.Message.Timestamp,
		Properties: posthog.Properties(Properties(ev)),
	}
}
