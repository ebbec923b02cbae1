package taxonomy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

type observation struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Observation    string `json:"observation"`
}

// BehaviorPatternGenerator clusters the explained occurrences of one event type into named
// behavior patterns.
type BehaviorPatternGenerator struct {
	assistant    model.Assistant
	eventType    model.PromptEventType
	eventName    string
	observations []observation
	previous     []model.BehaviorPattern
}

// NewBehaviorPatternGenerator creates a generator over events tagged with et.
func NewBehaviorPatternGenerator(assistant model.Assistant, et *model.EventType, events []*model.Event, previous []model.BehaviorPattern) *BehaviorPatternGenerator {
	obs := make([]observation, 0, len(events))
	for _, ev := range events {
		text := ev.Explanation
		if text == "" {
			text = ev.Message.Content
		}
		obs = append(obs, observation{ConversationID: ev.ConversationID, MessageID: ev.Message.ID, Observation: text})
	}
	return &BehaviorPatternGenerator{
		assistant:    assistant,
		eventType:    et.PromptFormat(),
		eventName:    et.Name,
		observations: obs,
		previous:     append([]model.BehaviorPattern(nil), previous...),
	}
}

func (q *BehaviorPatternGenerator) Name() string { return "behavior_pattern_generator" }

func (q *BehaviorPatternGenerator) Prompt() string {
	previous := q.previous
	if previous == nil {
		previous = []model.BehaviorPattern{}
	}
	return fmt.Sprintf(`Cluster the event occurrences below into behavior patterns related to the event type.

### Instructions
1. Review the assistant, the event type, the previous behavior patterns and the event occurrences.
2. Identify the behavior patterns the occurrences exhibit.
3. Make each pattern tangible, specific and mutually exclusive. Each should give a product manager a concrete insight they can act on.
4. The previous patterns were identified in earlier occurrences. When a pattern you identify is semantically equivalent to a previous one, return the EXACT same name and description. Otherwise return a new name and description.
5. Re-read the occurrences until you are confident every notable pattern is covered.

### Assistant
%s

### Event Type
%s

### Previous Behavior Patterns
%s

### Event Occurrences
%s
`, llm.InlineJSON(q.assistant), llm.InlineJSON(q.eventType), llm.InlineJSON(previous), llm.InlineJSON(q.observations))
}

func (q *BehaviorPatternGenerator) Schema() *jsonschema.Definition {
	item := llm.Object(map[string]jsonschema.Definition{
		"name":        llm.StringSchema("A short (3-5 words) name that captures the main focus of the behavior pattern."),
		"description": llm.StringSchema("A brief (1-2 sentences) description of how the pattern shows up in the occurrences."),
	})
	return llm.ObjectSchema(map[string]jsonschema.Definition{
		"patterns": llm.ArraySchema("", item),
	})
}

// Parse returns the patterns for the generator's event type.
func (q *BehaviorPatternGenerator) Parse(raw json.RawMessage) ([]model.BehaviorPattern, error) {
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return nil, err
	}
	patterns, err := llm.Field[[]model.BehaviorPattern](q.Name(), obj, "patterns")
	if err != nil {
		return nil, err
	}
	for i := range patterns {
		patterns[i].Name = strings.TrimSpace(patterns[i].Name)
		if patterns[i].Name == "" {
			return nil, &llm.ValidationError{Query: q.Name(), Key: "patterns", Reason: fmt.Sprintf("pattern %d has no name", i)}
		}
		patterns[i].EventType = q.eventName
	}
	return patterns, nil
}

// MergePatterns appends the candidates whose names are not already in existing.
func MergePatterns(existing, candidates []model.BehaviorPattern) []model.BehaviorPattern {
	out := append([]model.BehaviorPattern(nil), existing...)
	seen := make(map[string]bool, len(out))
	for _, p := range out {
		seen[p.Name] = true
	}
	for _, p := range candidates {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out
}
