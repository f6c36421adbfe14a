package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

const DefaultOllamaModel = "llama3.2:3b"

// OllamaClient runs completions against a local Ollama server
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllama creates an Ollama provider. An empty BaseURL falls back to OLLAMA_HOST.
func NewOllama(cfg Config) (*OllamaClient, error) {
	var client *api.Client
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing ollama base url: %w", err)
		}
		client = api.NewClient(base, &http.Client{Timeout: cfg.Timeout})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaClient{client: client, model: model}, nil
}

// Complete sends a non-streaming chat request
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:  model,
		Stream: &stream,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, api.Message{Role: "system", Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, api.Message{Role: "user", Content: req.User})
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}
	if req.Temperature > 0 {
		chatReq.Options = map[string]any{"temperature": req.Temperature}
	}

	var out *Completion
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		out = &Completion{
			Content:          resp.Message.Content,
			Model:            resp.Model,
			FinishReason:     resp.DoneReason,
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if out == nil || out.Content == "" {
		return nil, ErrEmptyCompletion
	}
	return out, nil
}
