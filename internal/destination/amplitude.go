package destination

import (
	"context"
	"errors"

	"github.com/amplitude/analytics-go/amplitude"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

type amplitudeClient interface {
	Track(event amplitude.Event)
	Shutdown()
}

// AmplitudeSink tracks events in Amplitude. The client batches in the background;
// Close flushes what is pending.
type AmplitudeSink struct {
	client amplitudeClient
}

// NewAmplitudeSink creates an Amplitude sink.
func NewAmplitudeSink(apiKey string, log *logger.Logger) (*AmplitudeSink, error) {
	if apiKey == "" {
		return nil, errors.New("AMPLITUDE_API_KEY is required for the amplitude destination")
	}
	cfg := amplitude.NewConfig(apiKey)
	if log != nil {
		cfg.Logger = log.With(zap.String("destination", Amplitude)).Sugar()
	}
	return &AmplitudeSink{client: amplitude.NewClient(cfg)}, nil
}

// SendEvent queues the event for the next Amplitude batch.
func (s *AmplitudeSink) SendEvent(_ context.Context, ev *model.Event) error {
	s.client.Track(amplitudeEvent(ev))
	return nil
}

// Close flushes pending events and stops the client.
func (s *AmplitudeSink) Close() error {
	s.client.Shutdown()
	return nil
}

func amplitudeEvent(ev *model.Event) amplitude.Event {
	return amplitude.Event{
		EventType: ev.EventTypeName(),
		EventOptions: amplitude.EventOptions{
			UserID:   ev.UserID,
			Time:     ev.Message.Timestamp.UnixMilli(),
			InsertID: ev.ID,
		},
		EventProperties: Properties(ev),
	}
}
