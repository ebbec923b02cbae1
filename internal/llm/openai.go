package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend sends queries as chat completions constrained by a strict JSON schema
// response format.
type OpenAIBackend struct {
	client          *openai.Client
	reasoningEffort string
}

// NewOpenAIBackend creates a new OpenAI backend. baseURL overrides the API endpoint when set.
func NewOpenAIBackend(apiKey, baseURL, reasoningEffort string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIBackend{
		client:          openai.NewClientWithConfig(config),
		reasoningEffort: reasoningEffort,
	}, nil
}

// Name returns the provider name.
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// Complete sends a schema-constrained completion request.
func (b *OpenAIBackend) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	seed := req.Seed
	creq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Seed: &seed,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "response",
				Schema: req.Schema,
				Strict: true,
			},
		},
	}
	// Reasoning models reject temperature and take an effort level instead.
	if isReasoningModel(req.Model) {
		creq.ReasoningEffort = b.reasoningEffort
	} else {
		creq.Temperature = float32(req.Temperature)
	}

	resp, err := b.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("openai: model refused: %s", msg.Refusal)
	}

	return &Response{
		Content:   []byte(msg.Content),
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func isReasoningModel(model string) bool {
	if strings.HasPrefix(model, "gpt-5") {
		return true
	}
	return len(model) > 1 && model[0] == 'o' && model[1] >= '0' && model[1] <= '9'
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return rateLimited(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return rateLimited(err)
	}
	return err
}
