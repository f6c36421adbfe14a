package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"
	defaultMaxTokens      = 2048
)

// AnthropicClient wraps the Anthropic Messages API
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropic creates an Anthropic-backed provider. Retries are disabled.
func NewAnthropic(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for anthropic", ErrAPIKeyRequired)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}, nil
}

// Complete sends one message and concatenates the text blocks of the reply.
// The Messages API has no JSON mode, so req.JSON only tightens the instruction.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := c.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	system := req.System
	if req.JSON {
		system += "\n\nRespond with a single JSON object and nothing else."
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, ErrEmptyCompletion
	}

	return &Completion{
		Content:          text.String(),
		Model:            string(message.Model),
		FinishReason:     string(message.StopReason),
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	}, nil
}
