// Package llm issues schema-constrained queries against chat model backends and parses the
// results into domain values.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Seed is the sampling seed requested from every backend.
const Seed = 42

// Request is a single schema-constrained completion request.
type Request struct {
	Query       string
	Model       string
	Prompt      string
	Schema      *jsonschema.Definition
	Seed        int
	Temperature float64
}

// Response carries the JSON document produced by the model.
type Response struct {
	Content   json.RawMessage
	Model     string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

// Backend is one family of model API able to honor a response schema. Implementations wrap
// rate-limit failures with ErrRateLimited.
type Backend interface {
	// Name returns the backend name used in logs and metrics.
	Name() string

	// Complete issues the request and returns the raw JSON answer.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// BackendConfig holds what NewBackend needs for every provider.
type BackendConfig struct {
	Provider        Provider
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ReasoningEffort string
	AnthropicAPIKey string
	AWSRegion       string
}

// NewBackend creates the backend for the configured provider.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ReasoningEffort)
	case ProviderAnthropic:
		return NewAnthropicBackend(cfg.AnthropicAPIKey)
	case ProviderBedrock:
		return NewBedrockBackend(ctx, cfg.AWSRegion)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
