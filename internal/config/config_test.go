package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"LLM_PROVIDER", "QUERY_MAX_RETRIES", "SCHEMA_BATCH_SIZE", "UPLOAD_WORKERS", "DESTINATION", "SCHEMA_QUERY_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 40, cfg.SchemaBatchSize)
	assert.Equal(t, 1, cfg.SchemaNumBatches)
	assert.Equal(t, 10, cfg.UploadWorkers)
	assert.Equal(t, 50, cfg.PropertyBatchSize)
	assert.Equal(t, "log", cfg.Destination)
	assert.Equal(t, llm.DefaultRetryPolicy(), cfg.QueryPolicy())
	assert.Equal(t, 120*time.Second, cfg.SchemaPolicy().Timeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("QUERY_MAX_RETRIES", "5")
	t.Setenv("QUERY_RETRY_DELAY", "500ms")
	t.Setenv("EVENT_WORKERS", "not-a-number")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("OPS_CORS_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg := Load()
	assert.Equal(t, llm.ProviderAnthropic, cfg.Backend().Provider)
	assert.Equal(t, 5, cfg.QueryPolicy().MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.QueryPolicy().Delay)
	assert.Equal(t, 5, cfg.EventWorkers)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, "nats://nats:4222", cfg.Sink().NATS.URL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.OpsCORSOrigins)
}
