package tagging

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// Judge scores the assistant's performance in one conversation from 0 to 100.
type Judge struct {
	assistant    model.Assistant
	criteria     model.LLMJudgeCriteria
	conversation *model.Conversation
}

// NewJudge creates a judge query scoring one conversation against the criteria.
func NewJudge(assistant model.Assistant, criteria model.LLMJudgeCriteria, conversation *model.Conversation) *Judge {
	return &Judge{assistant: assistant, criteria: criteria, conversation: conversation}
}

func (q *Judge) Name() string { return "llm_judge" }

func (q *Judge) Prompt() string {
	return fmt.Sprintf(`Assess the assistant's performance in the conversation against the evaluation criteria.

### Assistant
%s

### Evaluation Criteria
%s

### Conversation
%s
`, llm.InlineJSON(q.assistant), llm.InlineJSON(q.criteria), llm.InlineJSON(q.conversation.PromptFormat(0)))
}

func (q *Judge) Schema() *jsonschema.Definition {
	return llm.ObjectSchema(map[string]jsonschema.Definition{
		"score": llm.NumberSchema("A score between 0 and 100 for the assistant's performance against the evaluation criteria."),
	})
}

// Parse returns the score, rejecting values outside [0, 100].
func (q *Judge) Parse(raw json.RawMessage) (float64, error) {
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return 0, err
	}
	score, err := llm.Field[float64](q.Name(), obj, "score")
	if err != nil {
		return 0, err
	}
	if score < 0 || score > 100 {
		return 0, &llm.ValidationError{Query: q.Name(), Key: "score", Reason: fmt.Sprintf("score %v outside [0, 100]", score)}
	}
	return score, nil
}
