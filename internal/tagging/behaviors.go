package tagging

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// Miscellaneous is assigned to events matching none of the known behavior patterns.
const Miscellaneous = "Miscellaneous"

// BehaviorDetector classifies each event of a batch into one of the behavior patterns found
// for its event type.
type BehaviorDetector struct {
	assistant model.Assistant
	eventType *model.EventType
	patterns  []model.BehaviorPattern
	events    []*model.Event
}

// NewBehaviorDetector creates a detection query for a batch of events of one type.
func NewBehaviorDetector(assistant model.Assistant, eventType *model.EventType, patterns []model.BehaviorPattern, events []*model.Event) *BehaviorDetector {
	return &BehaviorDetector{assistant: assistant, eventType: eventType, patterns: patterns, events: events}
}

func (q *BehaviorDetector) Name() string { return "behavior_detector" }

func (q *BehaviorDetector) Prompt() string {
	return fmt.Sprintf(`Classify each event into the behavior pattern it exhibits.

### Assistant
%s

### Event Type
%s

### Behavior Patterns
%s

### Events
%s
`, llm.InlineJSON(q.assistant), llm.InlineJSON(q.eventType.PromptFormat()), llm.InlineJSON(q.patterns), llm.InlineJSON(batchItems(q.events)))
}

func (q *BehaviorDetector) allowed() model.ChoiceSet {
	names := make([]string, 0, len(q.patterns)+1)
	for _, p := range q.patterns {
		names = append(names, p.Name)
	}
	return model.NewChoiceSet(names...).Union(Miscellaneous)
}

func (q *BehaviorDetector) Schema() *jsonschema.Definition {
	return batchSchema(q.events,
		fmt.Sprintf("The behavior pattern this event exhibits, or %s if it exhibits none.", Miscellaneous),
		q.allowed())
}

// Validate fails for an empty batch.
func (q *BehaviorDetector) Validate() error {
	if len(q.events) == 0 {
		return &llm.ValidationError{Query: q.Name(), Reason: "no events"}
	}
	return nil
}

// Parse maps each positional answer back to its event.
func (q *BehaviorDetector) Parse(raw json.RawMessage) (map[model.EventKey]string, error) {
	return parseBatch(q.Name(), raw, q.events, q.allowed())
}
