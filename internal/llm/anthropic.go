package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	responseTool     = "response"
	anthropicMaxToks = 8192
)

// AnthropicBackend sends queries as a single forced tool call whose input schema is the
// query's response schema. The same client type serves the direct API and Bedrock.
type AnthropicBackend struct {
	client anthropic.Client
	name   string
}

// NewAnthropicBackend creates a backend for the Anthropic API.
func NewAnthropicBackend(apiKey string) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &AnthropicBackend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		name:   "anthropic",
	}, nil
}

// NewBedrockBackend creates a backend for Anthropic models hosted on Bedrock. Credentials come
// from the default AWS chain; region overrides the configured region when set.
func NewBedrockBackend(ctx context.Context, region string) (*AnthropicBackend, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AnthropicBackend{
		client: anthropic.NewClient(bedrock.WithConfig(awsCfg)),
		name:   "bedrock",
	}, nil
}

// Name returns the provider name.
func (b *AnthropicBackend) Name() string {
	return b.name
}

// Complete sends a forced tool-use request and returns the tool input.
func (b *AnthropicBackend) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	input, err := toolInputSchema(req.Schema)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   anthropicMaxToks,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Tools:      []anthropic.ToolUnionParam{anthropic.ToolUnionParamOfTool(input, responseTool)},
		ToolChoice: anthropic.ToolChoiceParamOfTool(responseTool),
	})
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == responseTool {
			return &Response{
				Content:   block.Input,
				Model:     string(resp.Model),
				TokensIn:  int(resp.Usage.InputTokens),
				TokensOut: int(resp.Usage.OutputTokens),
				LatencyMs: time.Since(start).Milliseconds(),
			}, nil
		}
	}
	return nil, fmt.Errorf("%s: response has no %q tool call (stop reason %s)", b.name, responseTool, resp.StopReason)
}

// toolInputSchema converts a closed object definition into a tool input schema.
func toolInputSchema(def *jsonschema.Definition) (anthropic.ToolInputSchemaParam, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return anthropic.ToolInputSchemaParam{}, fmt.Errorf("failed to encode schema: %w", err)
	}
	var doc struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return anthropic.ToolInputSchemaParam{}, fmt.Errorf("failed to decode schema: %w", err)
	}
	return anthropic.ToolInputSchemaParam{
		Properties:  doc.Properties,
		Required:    doc.Required,
		ExtraFields: map[string]any{"additionalProperties": false},
	}, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return rateLimited(err)
	}
	return err
}
