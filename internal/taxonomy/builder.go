package taxonomy

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/internal/pipeline"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
	"github.com/capitalize-ai/conversation-analytics/pkg/metrics"
)

// ErrEmptyTaxonomy is returned when no batch produced an event type.
var ErrEmptyTaxonomy = errors.New("taxonomy generation produced no event types")

// BuilderConfig controls batching and concurrency of taxonomy generation.
type BuilderConfig struct {
	// BatchSize conversations are shown per discovery query.
	BatchSize int
	// NumBatches caps the run. Conversations beyond BatchSize*NumBatches are not used.
	NumBatches int
	// PropertyWorkers bounds concurrent property discovery within a batch.
	PropertyWorkers int
	Policy          llm.RetryPolicy
}

// Builder grows an event taxonomy batch by batch. Event types are reconciled by exact name:
// a recurring name keeps the existing entry and its properties.
type Builder struct {
	ex  *llm.Executor
	cfg BuilderConfig
	log *logger.Logger
}

// NewBuilder creates a taxonomy builder running discovery queries on ex.
func NewBuilder(ex *llm.Executor, cfg BuilderConfig, log *logger.Logger) *Builder {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 40
	}
	if cfg.NumBatches < 1 {
		cfg.NumBatches = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{ex: ex, cfg: cfg, log: log}
}

type propertyResult struct {
	eventType  *model.EventType
	properties []model.EventProperty
}

// Build runs event type discovery over each batch in order, then property discovery for the
// event types each batch touched. initial seeds the taxonomy and may be nil. A failed
// discovery query skips its batch; a failed property query leaves that event type as it was.
func (b *Builder) Build(ctx context.Context, assistant model.Assistant, conversations []model.Conversation, initial *model.EventTypeSet) (*model.EventTypeSet, error) {
	set := initial
	if set == nil {
		set = model.NewEventTypeSet()
	}

	limit := b.cfg.BatchSize * b.cfg.NumBatches
	if len(conversations) > limit {
		b.log.Info("capping taxonomy input",
			zap.Int("conversations", len(conversations)),
			zap.Int("used", limit),
		)
		conversations = conversations[:limit]
	}
	batches := pipeline.Chunk(conversations, b.cfg.BatchSize)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := b.log.With(zap.Int("batch", i+1), zap.Int("num_batches", len(batches)))

		candidates, err := llm.Execute[[]EventTypeCandidate](ctx, b.ex, NewEventTypeGenerator(assistant, batch, set.List()), b.cfg.Policy)
		if err != nil {
			log.Error("event type discovery failed, skipping batch", zap.Error(err))
			continue
		}

		touched := b.reconcile(set, candidates, log)
		metrics.SetTaxonomySize(set.Len())
		log.Info("event types discovered",
			zap.Int("candidates", len(candidates)),
			zap.Int("touched", len(touched)),
			zap.Int("total", set.Len()),
		)

		b.discoverProperties(ctx, assistant, batch, touched, i+1)
	}

	if set.Len() == 0 {
		return nil, ErrEmptyTaxonomy
	}
	return set, nil
}

type touchedType struct {
	eventType       *model.EventType
	conversationIDs []string
}

// reconcile merges candidates into set and returns the touched entries in candidate order.
func (b *Builder) reconcile(set *model.EventTypeSet, candidates []EventTypeCandidate, log *logger.Logger) []*touchedType {
	var out []*touchedType
	byName := make(map[string]*touchedType)
	for _, c := range candidates {
		et, added := set.Reconcile(model.NewEventType(c.Name, c.Definition, c.Role))
		if !added && et.Role != c.Role {
			log.Warn("event type returned with a different role, keeping existing",
				zap.String("event_type", et.Name),
				zap.String("role", string(et.Role)),
				zap.String("candidate_role", string(c.Role)),
			)
		}
		t, ok := byName[et.Name]
		if !ok {
			t = &touchedType{eventType: et}
			byName[et.Name] = t
			out = append(out, t)
		}
		t.conversationIDs = append(t.conversationIDs, c.ConversationIDs...)
	}
	return out
}

func (b *Builder) discoverProperties(ctx context.Context, assistant model.Assistant, batch []model.Conversation, touched []*touchedType, batchNum int) {
	tasks := make([]pipeline.Task[propertyResult], 0, len(touched))
	for _, t := range touched {
		et := t.eventType
		gen := NewEventPropertyGenerator(assistant, et, relevant(batch, t.conversationIDs))
		tasks = append(tasks, pipeline.Task[propertyResult]{
			Fields: []zap.Field{zap.String("event_type", et.Name), zap.String("batch", strconv.Itoa(batchNum))},
			Run: func(ctx context.Context) (propertyResult, error) {
				props, err := llm.Execute[[]model.EventProperty](ctx, b.ex, gen, b.cfg.Policy)
				return propertyResult{eventType: et, properties: props}, err
			},
		})
	}

	pipeline.RunStage(ctx, pipeline.Stage{Name: "property_discovery", Workers: b.cfg.PropertyWorkers, Log: b.log}, tasks,
		func(r propertyResult) error {
			for _, p := range r.properties {
				r.eventType.Properties.Merge(p)
			}
			return nil
		})
}

// relevant returns the conversations of batch named in ids, in batch order. With no ids the
// whole batch is relevant.
func relevant(batch []model.Conversation, ids []string) []model.Conversation {
	if len(ids) == 0 {
		return batch
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Conversation
	for _, c := range batch {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return batch
	}
	return out
}
