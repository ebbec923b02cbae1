// Package config provides environment configuration for eventgen runs.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/conversation-analytics/internal/destination"
	"github.com/capitalize-ai/conversation-analytics/internal/llm"
	natsclient "github.com/capitalize-ai/conversation-analytics/internal/nats"
)

// Config holds all configuration for the application. CLI flags override the per-run fields
// after Load.
type Config struct {
	// LLM settings
	Provider        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AWSRegion       string
	ReasoningEffort string

	// Models per query family
	AssistantNamerModel string
	JudgeCriteriaModel  string
	EventSchemaModel    string
	EventModel          string
	ExplanationModel    string
	PropertyModel       string

	// Structured query retries
	QueryMaxRetries     int
	QueryRetryDelay     time.Duration
	QueryRetryIncrement time.Duration
	QueryTimeout        time.Duration
	SchemaQueryTimeout  time.Duration

	// Taxonomy batching
	SchemaBatchSize       int
	SchemaNumBatches      int
	SchemaPropertyWorkers int

	// Tagging pools
	EventWorkers       int
	ExplanationWorkers int
	PropertyWorkers    int
	UploadWorkers      int
	PropertyBatchSize  int

	// Destination
	Destination     string
	AmplitudeAPIKey string
	PosthogAPIKey   string
	PosthogHost     string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Logging
	LogLevel string

	// Ops server
	OpsAddr            string
	OpsJWTSecret       string
	OpsCORSOrigins     []string
	OpsRateLimit       int
	OpsRateLimitWindow time.Duration

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// LLM
		Provider:        strings.ToLower(getEnv("LLM_PROVIDER", string(llm.ProviderOpenAI))),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", ""),
		ReasoningEffort: getEnv("REASONING_EFFORT", "low"),

		// Models
		AssistantNamerModel: getEnv("ASSISTANT_NAMER_MODEL", "gpt-4.1"),
		JudgeCriteriaModel:  getEnv("JUDGE_CRITERIA_MODEL", "o4-mini"),
		EventSchemaModel:    getEnv("EVENT_SCHEMA_MODEL", "o4-mini"),
		EventModel:          getEnv("EVENT_MODEL", "gpt-4.1"),
		ExplanationModel:    getEnv("EXPLANATION_MODEL", "gpt-4.1"),
		PropertyModel:       getEnv("PROPERTY_MODEL", "gpt-4.1"),

		// Retries
		QueryMaxRetries:     getIntEnv("QUERY_MAX_RETRIES", 3),
		QueryRetryDelay:     getDurationEnv("QUERY_RETRY_DELAY", 2*time.Second),
		QueryRetryIncrement: getDurationEnv("QUERY_RETRY_INCREMENT", 2*time.Second),
		QueryTimeout:        getDurationEnv("QUERY_TIMEOUT", 60*time.Second),
		SchemaQueryTimeout:  getDurationEnv("SCHEMA_QUERY_TIMEOUT", 120*time.Second),

		// Taxonomy
		SchemaBatchSize:       getIntEnv("SCHEMA_BATCH_SIZE", 40),
		SchemaNumBatches:      getIntEnv("SCHEMA_NUM_BATCHES", 1),
		SchemaPropertyWorkers: getIntEnv("SCHEMA_PROPERTY_WORKERS", 5),

		// Tagging
		EventWorkers:       getIntEnv("EVENT_WORKERS", 5),
		ExplanationWorkers: getIntEnv("EXPLANATION_WORKERS", 5),
		PropertyWorkers:    getIntEnv("PROPERTY_WORKERS", 5),
		UploadWorkers:      getIntEnv("UPLOAD_WORKERS", 10),
		PropertyBatchSize:  getIntEnv("PROPERTY_BATCH_SIZE", 50),

		// Destination
		Destination:     getEnv("DESTINATION", destination.Log),
		AmplitudeAPIKey: getEnv("AMPLITUDE_API_KEY", ""),
		PosthogAPIKey:   getEnv("POSTHOG_API_KEY", ""),
		PosthogHost:     getEnv("POSTHOG_HOST", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Ops
		OpsAddr:            getEnv("OPS_ADDR", ""),
		OpsJWTSecret:       getEnv("OPS_JWT_SECRET", ""),
		OpsCORSOrigins:     getListEnv("OPS_CORS_ORIGINS"),
		OpsRateLimit:       getIntEnv("OPS_RATE_LIMIT", 120),
		OpsRateLimitWindow: getDurationEnv("OPS_RATE_LIMIT_WINDOW", time.Minute),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Backend returns the LLM backend configuration.
func (c *Config) Backend() llm.BackendConfig {
	return llm.BackendConfig{
		Provider:        llm.Provider(c.Provider),
		OpenAIAPIKey:    c.OpenAIAPIKey,
		OpenAIBaseURL:   c.OpenAIBaseURL,
		ReasoningEffort: c.ReasoningEffort,
		AnthropicAPIKey: c.AnthropicAPIKey,
		AWSRegion:       c.AWSRegion,
	}
}

// QueryPolicy returns the retry policy of tagging queries.
func (c *Config) QueryPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxRetries: c.QueryMaxRetries,
		Delay:      c.QueryRetryDelay,
		Increment:  c.QueryRetryIncrement,
		Timeout:    c.QueryTimeout,
	}
}

// SchemaPolicy returns the retry policy of taxonomy queries, which see whole batches and
// get a longer timeout.
func (c *Config) SchemaPolicy() llm.RetryPolicy {
	p := c.QueryPolicy()
	p.Timeout = c.SchemaQueryTimeout
	return p
}

// Sink returns the destination configuration.
func (c *Config) Sink() destination.Config {
	return destination.Config{
		AmplitudeAPIKey: c.AmplitudeAPIKey,
		PosthogAPIKey:   c.PosthogAPIKey,
		PosthogHost:     c.PosthogHost,
		NATS: natsclient.Config{
			URL:      c.NATSURL,
			CAFile:   c.NATSCAFile,
			CertFile: c.NATSCertFile,
			KeyFile:  c.NATSKeyFile,
			Token:    c.NATSToken,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
