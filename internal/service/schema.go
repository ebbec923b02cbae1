// Package service orchestrates taxonomy generation and tagging runs.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/internal/taxonomy"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
	"github.com/capitalize-ai/conversation-analytics/pkg/metrics"
)

// SchemaExecutors binds each taxonomy query family to its model.
type SchemaExecutors struct {
	AssistantNamer *llm.Executor
	JudgeCriteria  *llm.Executor
	EventSchema    *llm.Executor
}

// SchemaConfig configures a taxonomy run.
type SchemaConfig struct {
	Builder taxonomy.BuilderConfig
	Policy  llm.RetryPolicy
}

// SchemaService generates a DataSchema from conversations.
type SchemaService struct {
	ex       SchemaExecutors
	builder  *taxonomy.Builder
	policy   llm.RetryPolicy
	progress *Progress
	logger   *logger.Logger
}

// NewSchemaService creates a new schema service.
func NewSchemaService(ex SchemaExecutors, cfg SchemaConfig, progress *Progress, log *logger.Logger) *SchemaService {
	if log == nil {
		log = logger.NewNop()
	}
	if progress == nil {
		progress = NewProgress("generate-schema")
	}
	return &SchemaService{
		ex:       ex,
		builder:  taxonomy.NewBuilder(ex.EventSchema, cfg.Builder, log),
		policy:   cfg.Policy,
		progress: progress,
		logger:   log,
	}
}

// Generate names the assistant, writes judge criteria and builds the event taxonomy. Parts
// present in base are reused and its event types seed the taxonomy; base may be nil.
func (s *SchemaService) Generate(ctx context.Context, conversations []model.Conversation, base *model.DataSchema) (*model.DataSchema, error) {
	if len(conversations) == 0 {
		return nil, fmt.Errorf("no conversations to generate a schema from")
	}
	defer s.progress.MarkDone()

	var initial *model.EventTypeSet
	out := &model.DataSchema{}
	if base != nil {
		out.Assistant = base.Assistant
		out.LLMJudgeCriteria = base.LLMJudgeCriteria
		initial = base.EventTypes
	}

	if out.Assistant.Name == "" {
		s.progress.startStage("assistant_naming")
		assistant, err := llm.Execute[model.Assistant](ctx, s.ex.AssistantNamer, taxonomy.NewAssistantNamer(conversations), s.policy)
		if err != nil {
			return nil, fmt.Errorf("name assistant: %w", err)
		}
		out.Assistant = assistant
	}
	log := s.logger.With(zap.String("assistant", out.Assistant.Name))
	log.Info("assistant identified", zap.String("description", out.Assistant.Description))

	if criteriaEmpty(out.LLMJudgeCriteria) {
		s.progress.startStage("judge_criteria")
		criteria, err := llm.Execute[model.LLMJudgeCriteria](ctx, s.ex.JudgeCriteria, taxonomy.NewJudgeCriteriaGenerator(out.Assistant), s.policy)
		if err != nil {
			return nil, fmt.Errorf("generate judge criteria: %w", err)
		}
		out.LLMJudgeCriteria = criteria
	}

	s.progress.startStage("taxonomy")
	types, err := s.builder.Build(ctx, out.Assistant, conversations, initial)
	if err != nil {
		return nil, err
	}
	out.EventTypes = types
	metrics.SetTaxonomySize(types.Len())

	log.Info("schema generated",
		zap.Int("event_types", types.Len()),
		zap.Strings("names", types.Names()),
	)
	return out, nil
}

func criteriaEmpty(c model.LLMJudgeCriteria) bool {
	return len(c.PrimaryGoals) == 0 && len(c.SecondaryGoals) == 0 &&
		len(c.TertiaryGoals) == 0 && len(c.Dealbreakers) == 0
}
