// Package destination delivers tagged events to analytics backends.
package destination

import (
	"context"
	"fmt"
	"strings"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

// Sink receives tagged events. Implementations must be safe for concurrent use.
type Sink interface {
	SendEvent(ctx context.Context, ev *model.Event) error
	Close() error
}

// Destination names.
const (
	Amplitude = "amplitude"
	Posthog   = "posthog"
	NATS      = "nats"
	Log       = "log"
)

// Config holds the credentials of every sink. Only the selected sink's fields are read.
type Config struct {
	AmplitudeAPIKey string
	PosthogAPIKey   string
	PosthogHost     string
	NATS            NATSConfig
}

// New creates the sink named by name.
func New(ctx context.Context, name string, cfg Config, log *logger.Logger) (Sink, error) {
	switch strings.ToLower(name) {
	case Amplitude:
		return NewAmplitudeSink(cfg.AmplitudeAPIKey, log)
	case Posthog:
		return NewPosthogSink(cfg.PosthogAPIKey, cfg.PosthogHost)
	case NATS:
		return NewNATSSink(ctx, cfg.NATS, log)
	case Log, "":
		return NewLogSink(log), nil
	default:
		return nil, fmt.Errorf("unknown destination %q", name)
	}
}

// Properties returns the property map sent with an event. Tagged property values are
// merged last and win over built-in keys.
func Properties(ev *model.Event) map[string]any {
	props := map[string]any{
		"conversation_id": ev.ConversationID,
		"message_id":      ev.Message.ID,
		"content":         ev.Message.Content,
		"role":            string(ev.Message.Role),
		"explanation":     ev.Explanation,
	}
	if ev.BehaviorPattern != "" {
		props["behavior_pattern"] = ev.BehaviorPattern
	}
	if ev.JudgeScore != nil {
		props["judge_score"] = *ev.JudgeScore
	}
	for name, value := range ev.PropertyValues {
		props[name] = value
	}
	return props
}
