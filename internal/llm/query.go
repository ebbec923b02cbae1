package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
	"github.com/capitalize-ai/conversation-analytics/pkg/metrics"
	"github.com/capitalize-ai/conversation-analytics/pkg/tracing"
)

// Query is a structured query producing a T. Prompt and Schema must be deterministic: the
// same query yields the same request on every attempt.
type Query[T any] interface {
	// Name identifies the query in logs, metrics and errors.
	Name() string

	// Prompt builds the self-contained instruction text.
	Prompt() string

	// Schema declares the closed shape the answer must take.
	Schema() *jsonschema.Definition

	// Parse validates the answer and converts it. Failures should be *ValidationError.
	Parse(raw json.RawMessage) (T, error)
}

// Validator is implemented by queries that can detect, before any call is made, that no
// valid answer exists.
type Validator interface {
	Validate() error
}

// RetryPolicy controls how a query is retried on rate limiting.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	Increment  time.Duration
	Timeout    time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a 2s delay growing by 2s and a 60s timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Delay:      2 * time.Second,
		Increment:  2 * time.Second,
		Timeout:    60 * time.Second,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor binds a backend to the model used for one family of queries.
type Executor struct {
	backend     Backend
	model       string
	temperature float64
	log         *logger.Logger
	sleep       SleepFunc
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSleep replaces the backoff sleep.
func WithSleep(fn SleepFunc) ExecutorOption {
	return func(e *Executor) { e.sleep = fn }
}

// WithTemperature sets the sampling temperature for non-reasoning models.
func WithTemperature(t float64) ExecutorOption {
	return func(e *Executor) { e.temperature = t }
}

// NewExecutor creates an executor issuing requests for model through backend.
func NewExecutor(backend Backend, model string, log *logger.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		backend: backend,
		model:   model,
		log:     log,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.NewNop()
	}
	return e
}

// Model returns the model identifier.
func (e *Executor) Model() string { return e.model }

// Execute runs q with policy. Rate-limited attempts are retried with linear backoff; any
// other backend failure aborts at once. After MaxRetries rate-limited attempts the error
// wraps ErrQueryExhausted. Parse failures are returned without retrying.
func Execute[T any](ctx context.Context, ex *Executor, q Query[T], policy RetryPolicy) (T, error) {
	var zero T
	name := q.Name()
	backend := ex.backend.Name()

	if v, ok := q.(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, err
		}
	}

	ctx, span := tracing.Tracer().Start(ctx, "llm.query", trace.WithAttributes(
		attribute.String("query", name),
		attribute.String("backend", backend),
		attribute.String("model", ex.model),
	))
	defer span.End()

	start := time.Now()
	out, err := execute(ctx, ex, q, policy)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordQuery(name, backend, status, time.Since(start).Seconds())
	return out, err
}

func execute[T any](ctx context.Context, ex *Executor, q Query[T], policy RetryPolicy) (T, error) {
	var zero T
	name := q.Name()
	backend := ex.backend.Name()

	maxRetries := policy.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	delay := policy.Delay

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := ex.call(ctx, q, policy.Timeout)
		if err == nil {
			out, perr := q.Parse(resp.Content)
			if perr != nil {
				metrics.RecordAttempt(name, backend, "invalid")
				return zero, fmt.Errorf("%s: %w", name, perr)
			}
			metrics.RecordAttempt(name, backend, "success")
			return out, nil
		}

		if !errors.Is(err, ErrRateLimited) {
			metrics.RecordAttempt(name, backend, "failed")
			return zero, fmt.Errorf("%s: %w", name, err)
		}

		metrics.RecordAttempt(name, backend, "rate_limited")
		lastErr = err
		if attempt == maxRetries {
			break
		}

		ex.log.Warn("query rate limited, retrying",
			zap.String("query", name),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
		)
		if err := ex.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
		delay += policy.Increment
	}

	return zero, fmt.Errorf("%w: %s failed %d attempts: %v", ErrQueryExhausted, name, maxRetries, lastErr)
}

type request interface {
	Name() string
	Prompt() string
	Schema() *jsonschema.Definition
}

func (e *Executor) call(ctx context.Context, q request, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := e.backend.Complete(ctx, &Request{
		Query:       q.Name(),
		Model:       e.model,
		Prompt:      q.Prompt(),
		Schema:      q.Schema(),
		Seed:        Seed,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTokens(e.model, resp.TokensIn, resp.TokensOut)
	return resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
