package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAPIKeyRequired is returned when a hosted provider is configured without a key.
	ErrAPIKeyRequired = errors.New("API key required")

	// ErrEmptyCompletion is returned when the provider answers with no content.
	ErrEmptyCompletion = errors.New("empty completion")
)

// APIError is a non-2xx answer from a completion endpoint
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Provider sends a single, non-streaming completion request.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompletionRequest is one system instruction plus one user message
type CompletionRequest struct {
	System      string
	User        string
	Model       string // overrides the provider default when set
	JSON        bool   // ask for a JSON object response
	Temperature float64
	MaxTokens   int
}

// Completion is the text the model returned plus usage accounting
type Completion struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Config configures a provider
type Config struct {
	Provider string // groq, openai, anthropic, ollama
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// DefaultTimeout applies when no request timeout is configured
const DefaultTimeout = 60 * time.Second

// NewProvider creates a provider from configuration
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Provider {
	case "groq":
		return asProvider(NewGroq(cfg))
	case "openai":
		return asProvider(NewOpenAI(cfg))
	case "anthropic":
		return asProvider(NewAnthropic(cfg))
	case "ollama":
		return asProvider(NewOllama(cfg))
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// asProvider keeps a failed constructor from leaking a typed nil
func asProvider[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
