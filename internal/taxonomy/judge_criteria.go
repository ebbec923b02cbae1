package taxonomy

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// JudgeCriteriaGenerator derives the goals an LLM judge scores the assistant against.
type JudgeCriteriaGenerator struct {
	assistant model.Assistant
}

// NewJudgeCriteriaGenerator creates a judge criteria query for the assistant.
func NewJudgeCriteriaGenerator(assistant model.Assistant) *JudgeCriteriaGenerator {
	return &JudgeCriteriaGenerator{assistant: assistant}
}

func (q *JudgeCriteriaGenerator) Name() string { return "judge_criteria_generator" }

func (q *JudgeCriteriaGenerator) Prompt() string {
	return fmt.Sprintf(`Define the criteria an LLM judge should use to assess the assistant's performance in a conversation.

### Examples
%s

### Assistant
%s
`, llm.InlineJSON(judgeCriteriaExamples), llm.InlineJSON(q.assistant))
}

func (q *JudgeCriteriaGenerator) Schema() *jsonschema.Definition {
	return llm.ObjectSchema(map[string]jsonschema.Definition{
		"primary_goals":   llm.StringArraySchema("The most important goals of the assistant."),
		"secondary_goals": llm.StringArraySchema("Goals that matter once the primary goals are met."),
		"tertiary_goals":  llm.StringArraySchema("Goals that polish the experience."),
		"dealbreakers":    llm.StringArraySchema("Behaviors that fail the conversation outright."),
	})
}

// Parse requires every goal list to be non-empty.
func (q *JudgeCriteriaGenerator) Parse(raw json.RawMessage) (model.LLMJudgeCriteria, error) {
	var out model.LLMJudgeCriteria
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return out, err
	}
	if err := llm.RequireKeys(q.Name(), obj, "primary_goals", "secondary_goals", "tertiary_goals", "dealbreakers"); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &llm.ValidationError{Query: q.Name(), Reason: err.Error()}
	}
	return out, nil
}
