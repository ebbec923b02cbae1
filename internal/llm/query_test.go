package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	"github.com/capitalize-ai/conversation-analytics/internal/llm/llmtest"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

type greetingQuery struct {
	invalid bool
}

func (q greetingQuery) Name() string   { return "greeting" }
func (q greetingQuery) Prompt() string { return "say hello" }

func (q greetingQuery) Schema() *jsonschema.Definition {
	return llm.ObjectSchema(map[string]jsonschema.Definition{
		"greeting": llm.StringSchema("a greeting"),
	})
}

func (q greetingQuery) Parse(raw json.RawMessage) (string, error) {
	obj, err := llm.DecodeObject(q.Name(), raw)
	if err != nil {
		return "", err
	}
	return llm.Field[string](q.Name(), obj, "greeting")
}

func (q greetingQuery) Validate() error {
	if q.invalid {
		return &llm.ValidationError{Query: q.Name(), Reason: "nothing to ask"}
	}
	return nil
}

func testPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{MaxRetries: 4, Delay: time.Second, Increment: time.Second, Timeout: time.Second}
}

// failing returns a handler that fails with err the first n calls and then answers.
func failing(n int, err error) llmtest.HandlerFunc {
	calls := 0
	return func(*llm.Request) (json.RawMessage, error) {
		calls++
		if calls <= n {
			return nil, err
		}
		return json.RawMessage(`{"greeting":"hello"}`), nil
	}
}

func TestExecuteRetriesRateLimitWithIncreasingBackoff(t *testing.T) {
	for k := 0; k < 4; k++ {
		backend := llmtest.New(failing(k, llmtest.ErrRateLimited))
		sleeper := &llmtest.Sleeper{}
		ex := llm.NewExecutor(backend, "test-model", logger.NewNop(), llm.WithSleep(sleeper.Sleep))

		got, err := llm.Execute[string](context.Background(), ex, greetingQuery{}, testPolicy())
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
		assert.Equal(t, k+1, backend.Calls())

		require.Len(t, sleeper.Delays, k)
		for i := 1; i < len(sleeper.Delays); i++ {
			assert.Greater(t, sleeper.Delays[i], sleeper.Delays[i-1])
		}
	}
}

func TestExecuteExhaustsAfterMaxRetries(t *testing.T) {
	backend := llmtest.New(failing(100, llmtest.ErrRateLimited))
	sleeper := &llmtest.Sleeper{}
	ex := llm.NewExecutor(backend, "test-model", logger.NewNop(), llm.WithSleep(sleeper.Sleep))

	_, err := llm.Execute[string](context.Background(), ex, greetingQuery{}, testPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrQueryExhausted)
	assert.Equal(t, 4, backend.Calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeper.Delays)
}

func TestExecuteAbortsOnNonTransientError(t *testing.T) {
	backend := llmtest.New(failing(1, llmtest.ErrServer))
	sleeper := &llmtest.Sleeper{}
	ex := llm.NewExecutor(backend, "test-model", logger.NewNop(), llm.WithSleep(sleeper.Sleep))

	_, err := llm.Execute[string](context.Background(), ex, greetingQuery{}, testPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, llmtest.ErrServer)
	assert.False(t, errors.Is(err, llm.ErrQueryExhausted))
	assert.Equal(t, 1, backend.Calls())
	assert.Empty(t, sleeper.Delays)
}

func TestExecuteDoesNotRetryValidationErrors(t *testing.T) {
	backend := llmtest.New(llmtest.JSON(map[string]string{"other": "x"}))
	ex := llm.NewExecutor(backend, "test-model", logger.NewNop(), llm.WithSleep(llmtest.NoSleep))

	_, err := llm.Execute[string](context.Background(), ex, greetingQuery{}, testPolicy())
	require.Error(t, err)

	var ve *llm.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "greeting", ve.Key)
	assert.Equal(t, 1, backend.Calls())
}

func TestExecuteValidatesBeforeSending(t *testing.T) {
	backend := llmtest.New(llmtest.JSON(map[string]string{"greeting": "hi"}))
	ex := llm.NewExecutor(backend, "test-model", logger.NewNop())

	_, err := llm.Execute[string](context.Background(), ex, greetingQuery{invalid: true}, testPolicy())
	require.Error(t, err)
	assert.True(t, llm.IsValidation(err))
	assert.Zero(t, backend.Calls())
}

func TestExecuteSendsSeedAndModel(t *testing.T) {
	backend := llmtest.New(llmtest.JSON(map[string]string{"greeting": "hi"}))
	ex := llm.NewExecutor(backend, "test-model", logger.NewNop())

	_, err := llm.Execute[string](context.Background(), ex, greetingQuery{}, testPolicy())
	require.NoError(t, err)

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, llm.Seed, reqs[0].Seed)
	assert.Equal(t, "test-model", reqs[0].Model)
	assert.Equal(t, "greeting", reqs[0].Query)
	assert.Equal(t, []string{"greeting"}, reqs[0].Schema.Required)
	assert.Equal(t, false, reqs[0].Schema.AdditionalProperties)
}

func TestExecuteStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	backend := llmtest.New(failing(100, llmtest.ErrRateLimited))
	ctx, cancel := context.WithCancel(context.Background())
	ex := llm.NewExecutor(backend, "test-model", logger.NewNop(), llm.WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := llm.Execute[string](ctx, ex, greetingQuery{}, testPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, backend.Calls())
}
