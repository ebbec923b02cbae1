// Package pipeline runs independent tasks on a bounded pool and merges their results on the
// calling goroutine.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
	"github.com/capitalize-ai/conversation-analytics/pkg/metrics"
	"github.com/capitalize-ai/conversation-analytics/pkg/tracing"
)

// Task is one unit of work. Fields identify it in failure logs.
type Task[T any] struct {
	Fields []zap.Field
	Run    func(ctx context.Context) (T, error)
}

// StageReport summarizes a finished stage.
type StageReport struct {
	Stage     string        `json:"stage"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Total returns the number of tasks the stage ran.
func (r StageReport) Total() int { return r.Succeeded + r.Failed }

// Stage names a pool and sizes it.
type Stage struct {
	Name    string
	Workers int
	Log     *logger.Logger
}

type result[T any] struct {
	value  T
	err    error
	fields []zap.Field
}

// RunStage runs tasks with at most stage.Workers in flight and returns once every task has
// finished. merge is called for each successful result on the calling goroutine, in
// completion order, so it may mutate shared state without locking. A task that fails, panics
// or whose merge fails is logged with its fields and counted; it never stops its siblings.
func RunStage[T any](ctx context.Context, stage Stage, tasks []Task[T], merge func(T) error) StageReport {
	log := stage.Log
	if log == nil {
		log = logger.NewNop()
	}
	workers := stage.Workers
	if workers < 1 {
		workers = 1
	}

	ctx, span := tracing.Tracer().Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("stage", stage.Name),
		attribute.Int("tasks", len(tasks)),
	))
	defer span.End()

	start := time.Now()
	results := make(chan result[T])

	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for _, t := range tasks {
			t := t
			g.Go(func() error {
				v, err := runTask(ctx, t)
				results <- result[T]{value: v, err: err, fields: t.Fields}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	report := StageReport{Stage: stage.Name}
	for r := range results {
		err := r.err
		if err == nil && merge != nil {
			err = merge(r.value)
		}
		if err != nil {
			report.Failed++
			metrics.RecordTask(stage.Name, "failed")
			fields := append([]zap.Field{zap.String("stage", stage.Name)}, r.fields...)
			log.Error("task failed", append(fields, zap.Error(err))...)
			continue
		}
		report.Succeeded++
		metrics.RecordTask(stage.Name, "succeeded")
	}

	report.Duration = time.Since(start)
	metrics.RecordStage(stage.Name, report.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("succeeded", report.Succeeded),
		attribute.Int("failed", report.Failed),
	)
	log.Info("stage complete",
		zap.String("stage", stage.Name),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report
}

func runTask[T any](ctx context.Context, t Task[T]) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return t.Run(ctx)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
