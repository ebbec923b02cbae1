package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/destination"
	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/internal/pipeline"
	"github.com/capitalize-ai/conversation-analytics/internal/tagging"
	"github.com/capitalize-ai/conversation-analytics/internal/taxonomy"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
	"github.com/capitalize-ai/conversation-analytics/pkg/metrics"
)

// Stage names.
const (
	StageAssignment        = "event_assignment"
	StageExplanation       = "explanation"
	StagePropertyValues    = "property_values"
	StageBehaviorPatterns  = "behavior_patterns"
	StageBehaviorDetection = "behavior_detection"
	StageJudge             = "judge"
	StageUpload            = "upload"
)

// TaggingExecutors binds each tagging query family to its model.
type TaggingExecutors struct {
	Event       *llm.Executor
	Explanation *llm.Executor
	Property    *llm.Executor
	// EventSchema clusters behavior patterns. Only used when behavior detection is enabled.
	EventSchema *llm.Executor
}

// TaggingConfig sizes the stage pools and enables the optional stages.
type TaggingConfig struct {
	EventWorkers       int
	ExplanationWorkers int
	PropertyWorkers    int
	UploadWorkers      int
	PropertyBatchSize  int
	DetectBehaviors    bool
	Judge              bool
	Destination        string
	Policy             llm.RetryPolicy
}

// DefaultTaggingConfig returns the default pool sizes.
func DefaultTaggingConfig() TaggingConfig {
	return TaggingConfig{
		EventWorkers:       5,
		ExplanationWorkers: 5,
		PropertyWorkers:    5,
		UploadWorkers:      10,
		PropertyBatchSize:  50,
		Destination:        destination.Log,
		Policy:             llm.DefaultRetryPolicy(),
	}
}

// RunReport summarizes a tagging run.
type RunReport struct {
	Conversations int                    `json:"conversations"`
	Tagged        int                    `json:"tagged_conversations"`
	Events        int                    `json:"events"`
	EventsSent    int                    `json:"events_sent"`
	EventsFailed  int                    `json:"events_failed"`
	Stages        []pipeline.StageReport `json:"stages"`
	Duration      time.Duration          `json:"duration"`
}

// Stage returns the report of the named stage.
func (r *RunReport) Stage(name string) (pipeline.StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return pipeline.StageReport{}, false
}

// TaggingService tags conversations against a schema and uploads the resulting events.
// Stages run one after another; within a stage tasks run on a bounded pool and results are
// merged into the run's EventIndex by the orchestrating goroutine only.
type TaggingService struct {
	ex       TaggingExecutors
	sink     destination.Sink
	cfg      TaggingConfig
	progress *Progress
	logger   *logger.Logger
}

// NewTaggingService creates a new tagging service.
func NewTaggingService(ex TaggingExecutors, sink destination.Sink, cfg TaggingConfig, progress *Progress, log *logger.Logger) *TaggingService {
	if log == nil {
		log = logger.NewNop()
	}
	if progress == nil {
		progress = NewProgress("tag-events")
	}
	if cfg.PropertyBatchSize < 1 {
		cfg.PropertyBatchSize = 50
	}
	return &TaggingService{ex: ex, sink: sink, cfg: cfg, progress: progress, logger: log}
}

// run carries the state of one Run call.
type run struct {
	schema   *model.DataSchema
	convs    map[string]*model.Conversation
	order    []string
	index    *model.EventIndex
	report   *RunReport
	patterns map[string][]model.BehaviorPattern
}

// working returns the conversations still in the run, in input order.
func (r *run) working() []*model.Conversation {
	out := make([]*model.Conversation, 0, len(r.order))
	for _, id := range r.order {
		if c, ok := r.convs[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// keep narrows the working set to ids.
func (r *run) keep(ids map[string]bool) {
	for id := range r.convs {
		if !ids[id] {
			delete(r.convs, id)
		}
	}
}

// events returns the events of working conversations, optionally of one event type.
func (r *run) events(eventType string) []*model.Event {
	var out []*model.Event
	for _, ev := range r.index.Events() {
		if _, ok := r.convs[ev.ConversationID]; !ok {
			continue
		}
		if eventType != "" && ev.EventTypeName() != eventType {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Run executes assignment, explanation, property values, the optional behavior and judge
// stages, then upload. A task failure only removes its unit of work from later stages;
// Run returns an error only when the run could not start.
func (s *TaggingService) Run(ctx context.Context, schema *model.DataSchema, conversations []model.Conversation) (*RunReport, error) {
	if schema == nil || schema.EventTypes == nil || schema.EventTypes.Len() == 0 {
		return nil, fmt.Errorf("schema has no event types")
	}
	start := time.Now()
	defer s.progress.MarkDone()

	r := &run{
		schema:   schema,
		convs:    make(map[string]*model.Conversation, len(conversations)),
		index:    model.NewEventIndex(),
		report:   &RunReport{Conversations: len(conversations)},
		patterns: make(map[string][]model.BehaviorPattern),
	}
	for i := range conversations {
		c := &conversations[i]
		if _, dup := r.convs[c.ID]; dup {
			s.logger.Warn("duplicate conversation id, keeping first", zap.String("conversation_id", c.ID))
			continue
		}
		r.convs[c.ID] = c
		r.order = append(r.order, c.ID)
	}

	s.assignEvents(ctx, r)
	s.explainEvents(ctx, r)
	r.report.Tagged = len(r.convs)
	s.assignPropertyValues(ctx, r)
	if s.cfg.DetectBehaviors {
		s.generateBehaviorPatterns(ctx, r)
		s.detectBehaviors(ctx, r)
	}
	if s.cfg.Judge {
		s.judgeConversations(ctx, r)
	}
	r.report.Events = len(r.events(""))
	s.upload(ctx, r)

	r.report.Duration = time.Since(start)
	s.logger.Info("tagging run complete",
		zap.Int("conversations", r.report.Conversations),
		zap.Int("tagged_conversations", r.report.Tagged),
		zap.Int("events", r.report.Events),
		zap.Int("events_sent", r.report.EventsSent),
		zap.Int("events_failed", r.report.EventsFailed),
		zap.Duration("duration", r.report.Duration),
	)
	return r.report, nil
}

func runStage[T any](ctx context.Context, s *TaggingService, r *run, name string, workers int, tasks []pipeline.Task[T], merge func(T) error) pipeline.StageReport {
	s.progress.startStage(name)
	rep := pipeline.RunStage(ctx, pipeline.Stage{Name: name, Workers: workers, Log: s.logger}, tasks, merge)
	s.progress.finishStage(rep)
	r.report.Stages = append(r.report.Stages, rep)
	return rep
}

type assignmentResult struct {
	conversationID string
	events         []*model.Event
}

func (s *TaggingService) assignEvents(ctx context.Context, r *run) {
	assistant := r.schema.Assistant
	var tasks []pipeline.Task[assignmentResult]
	for _, conv := range r.working() {
		conv := conv
		q := tagging.NewEventGenerator(assistant, r.schema.EventTypes, conv)
		tasks = append(tasks, pipeline.Task[assignmentResult]{
			Fields: []zap.Field{zap.String("conversation_id", conv.ID)},
			Run: func(ctx context.Context) (assignmentResult, error) {
				events, err := llm.Execute[[]*model.Event](ctx, s.ex.Event, q, s.cfg.Policy)
				return assignmentResult{conversationID: conv.ID, events: events}, err
			},
		})
	}

	ok := make(map[string]bool)
	runStage(ctx, s, r, StageAssignment, s.cfg.EventWorkers, tasks, func(res assignmentResult) error {
		for _, ev := range res.events {
			r.index.Put(ev)
		}
		ok[res.conversationID] = true
		return nil
	})
	r.keep(ok)
}

type explanationResult struct {
	conversationID string
	explanations   map[string]string
}

func (s *TaggingService) explainEvents(ctx context.Context, r *run) {
	assistant := r.schema.Assistant
	var tasks []pipeline.Task[explanationResult]
	for _, conv := range r.working() {
		conv := conv
		q := tagging.NewExplanationGenerator(assistant, r.schema.EventTypes, conv, r.index.ByConversation(conv.ID))
		tasks = append(tasks, pipeline.Task[explanationResult]{
			Fields: []zap.Field{zap.String("conversation_id", conv.ID)},
			Run: func(ctx context.Context) (explanationResult, error) {
				expl, err := llm.Execute[map[string]string](ctx, s.ex.Explanation, q, s.cfg.Policy)
				return explanationResult{conversationID: conv.ID, explanations: expl}, err
			},
		})
	}

	ok := make(map[string]bool)
	runStage(ctx, s, r, StageExplanation, s.cfg.ExplanationWorkers, tasks, func(res explanationResult) error {
		for msgID, text := range res.explanations {
			key := model.EventKey{ConversationID: res.conversationID, MessageID: msgID}
			if err := r.index.SetExplanation(key, text); err != nil {
				return err
			}
		}
		ok[res.conversationID] = true
		return nil
	})
	r.keep(ok)
}

type propertyResult struct {
	property string
	values   map[model.EventKey]string
}

// assignPropertyValues runs one task per (event type, property, batch). Properties without
// choices have nothing to pick from and get no tasks.
func (s *TaggingService) assignPropertyValues(ctx context.Context, r *run) {
	assistant := r.schema.Assistant
	var tasks []pipeline.Task[propertyResult]
	for _, et := range r.schema.EventTypes.Sorted() {
		events := r.events(et.Name)
		if len(events) == 0 {
			continue
		}
		for _, prop := range et.Properties.List() {
			if len(prop.Choices) == 0 {
				continue
			}
			for i, batch := range pipeline.Chunk(events, s.cfg.PropertyBatchSize) {
				q := tagging.NewPropertyValueGenerator(assistant, et, prop, batch)
				name := prop.Name
				tasks = append(tasks, pipeline.Task[propertyResult]{
					Fields: []zap.Field{
						zap.String("event_type", et.Name),
						zap.String("property", name),
						zap.String("batch", strconv.Itoa(i+1)),
					},
					Run: func(ctx context.Context) (propertyResult, error) {
						values, err := llm.Execute[map[model.EventKey]string](ctx, s.ex.Property, q, s.cfg.Policy)
						return propertyResult{property: name, values: values}, err
					},
				})
			}
		}
	}

	runStage(ctx, s, r, StagePropertyValues, s.cfg.PropertyWorkers, tasks, func(res propertyResult) error {
		for key, value := range res.values {
			if value == tagging.NotApplicable {
				continue
			}
			if err := r.index.SetPropertyValue(key, res.property, value); err != nil {
				return err
			}
		}
		return nil
	})
}

type patternResult struct {
	eventType string
	patterns  []model.BehaviorPattern
}

func (s *TaggingService) generateBehaviorPatterns(ctx context.Context, r *run) {
	assistant := r.schema.Assistant
	var tasks []pipeline.Task[patternResult]
	for _, et := range r.schema.EventTypes.Sorted() {
		events := r.events(et.Name)
		if len(events) == 0 {
			continue
		}
		et := et
		q := taxonomy.NewBehaviorPatternGenerator(assistant, et, events, nil)
		tasks = append(tasks, pipeline.Task[patternResult]{
			Fields: []zap.Field{zap.String("event_type", et.Name)},
			Run: func(ctx context.Context) (patternResult, error) {
				patterns, err := llm.Execute[[]model.BehaviorPattern](ctx, s.ex.EventSchema, q, s.cfg.Policy)
				return patternResult{eventType: et.Name, patterns: patterns}, err
			},
		})
	}

	runStage(ctx, s, r, StageBehaviorPatterns, s.cfg.PropertyWorkers, tasks, func(res patternResult) error {
		r.patterns[res.eventType] = taxonomy.MergePatterns(r.patterns[res.eventType], res.patterns)
		return nil
	})
}

func (s *TaggingService) detectBehaviors(ctx context.Context, r *run) {
	assistant := r.schema.Assistant
	var tasks []pipeline.Task[map[model.EventKey]string]
	for _, et := range r.schema.EventTypes.Sorted() {
		patterns := r.patterns[et.Name]
		if len(patterns) == 0 {
			continue
		}
		for i, batch := range pipeline.Chunk(r.events(et.Name), s.cfg.PropertyBatchSize) {
			q := tagging.NewBehaviorDetector(assistant, et, patterns, batch)
			tasks = append(tasks, pipeline.Task[map[model.EventKey]string]{
				Fields: []zap.Field{
					zap.String("event_type", et.Name),
					zap.String("batch", strconv.Itoa(i+1)),
				},
				Run: func(ctx context.Context) (map[model.EventKey]string, error) {
					return llm.Execute[map[model.EventKey]string](ctx, s.ex.Property, q, s.cfg.Policy)
				},
			})
		}
	}

	runStage(ctx, s, r, StageBehaviorDetection, s.cfg.PropertyWorkers, tasks, func(res map[model.EventKey]string) error {
		for key, pattern := range res {
			if err := r.index.SetBehavior(key, pattern); err != nil {
				return err
			}
		}
		return nil
	})
}

type judgeResult struct {
	conversationID string
	score          float64
}

func (s *TaggingService) judgeConversations(ctx context.Context, r *run) {
	assistant := r.schema.Assistant
	var tasks []pipeline.Task[judgeResult]
	for _, conv := range r.working() {
		conv := conv
		q := tagging.NewJudge(assistant, r.schema.LLMJudgeCriteria, conv)
		tasks = append(tasks, pipeline.Task[judgeResult]{
			Fields: []zap.Field{zap.String("conversation_id", conv.ID)},
			Run: func(ctx context.Context) (judgeResult, error) {
				score, err := llm.Execute[float64](ctx, s.ex.Property, q, s.cfg.Policy)
				return judgeResult{conversationID: conv.ID, score: score}, err
			},
		})
	}

	runStage(ctx, s, r, StageJudge, s.cfg.PropertyWorkers, tasks, func(res judgeResult) error {
		r.index.SetJudgeScore(res.conversationID, res.score)
		return nil
	})
}

// upload sends every event of the working set, one task per event.
func (s *TaggingService) upload(ctx context.Context, r *run) {
	dest := s.cfg.Destination
	var tasks []pipeline.Task[struct{}]
	for _, ev := range r.events("") {
		ev := ev
		tasks = append(tasks, pipeline.Task[struct{}]{
			Fields: []zap.Field{
				zap.String("event_id", ev.ID),
				zap.String("conversation_id", ev.ConversationID),
				zap.String("event_type", ev.EventTypeName()),
			},
			Run: func(ctx context.Context) (struct{}, error) {
				if err := s.sink.SendEvent(ctx, ev); err != nil {
					metrics.RecordEventSent(dest, "failed")
					return struct{}{}, err
				}
				metrics.RecordEventSent(dest, "sent")
				return struct{}{}, nil
			},
		})
	}

	rep := runStage(ctx, s, r, StageUpload, s.cfg.UploadWorkers, tasks, nil)
	r.report.EventsSent = rep.Succeeded
	r.report.EventsFailed = rep.Failed
}
