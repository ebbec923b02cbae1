package destination

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

// LogSink writes each event as a structured log line. It is the default destination for
// dry runs.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a sink logging to log.
func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogSink{log: log.With(zap.String("destination", Log))}
}

// SendEvent writes the event as one structured log line.
func (s *LogSink) SendEvent(_ context.Context, ev *model.Event) error {
	s.log.Info("event",
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.EventTypeName()),
		zap.String("user_id", ev.UserID),
		zap.Time("timestamp", ev.Message.Timestamp),
		zap.Any("properties", Properties(ev)),
	)
	return nil
}

// Close flushes the logger.
func (s *LogSink) Close() error {
	_ = s.log.Sync()
	return nil
}
