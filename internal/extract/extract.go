// Package extract turns free text into entity and relationship tuples by
// asking a completion provider for a fixed JSON shape.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"go.uber.org/zap"

	"github.com/systemshift/polkg/internal/core"
	"github.com/systemshift/polkg/internal/llm"
)

var (
	// ErrCompletionFailed wraps any transport or provider failure.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrMalformedResponse is returned when the completion is not the expected JSON object.
	ErrMalformedResponse = errors.New("malformed extraction response")
)

// Result is the outcome of one extraction. Err is nil on success; on failure
// Entities and Relationships are empty.
type Result struct {
	Entities      []core.Entity
	Relationships []core.Relationship
	Raw           string
	Err           error
}

// OK reports whether the extraction succeeded
func (r Result) OK() bool { return r.Err == nil }

// Empty reports whether nothing was extracted
func (r Result) Empty() bool {
	return len(r.Entities) == 0 && len(r.Relationships) == 0
}

// Extractor sends text to a completion provider
type Extractor struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithModel overrides the provider's default model
func WithModel(model string) Option {
	return func(e *Extractor) { e.model = model }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor
func New(p llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{provider: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract never returns a Go error: failures are logged and reported in Result.Err.
func (e *Extractor) Extract(ctx context.Context, text string) Result {
	completion, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System: systemPrompt,
		User:   text,
		Model:  e.model,
		JSON:   true,
	})
	if err != nil {
		e.logger.Warn("completion call failed", zap.Error(err))
		return failed("", fmt.Errorf("%w: %w", ErrCompletionFailed, err))
	}

	e.logger.Debug("raw completion",
		zap.String("model", completion.Model),
		zap.Int("prompt_tokens", completion.PromptTokens),
		zap.Int("completion_tokens", completion.CompletionTokens),
		zap.String("content", completion.Content),
	)

	entities, relationships, err := Parse(completion.Content)
	if err != nil {
		e.logger.Warn("could not parse completion", zap.Error(err), zap.String("content", completion.Content))
		return failed(completion.Content, err)
	}

	return Result{
		Entities:      entities,
		Relationships: relationships,
		Raw:           completion.Content,
	}
}

func failed(raw string, err error) Result {
	return Result{
		Entities:      []core.Entity{},
		Relationships: []core.Relationship{},
		Raw:           raw,
		Err:           err,
	}
}

type payload struct {
	Entities []struct {
		Name *string `json:"name"`
		Type *string `json:"type"`
	} `json:"entities"`
	Relationships []struct {
		Type     *string `json:"type"`
		From     *string `json:"from"`
		To       *string `json:"to"`
		FromType string  `json:"from_type"`
		ToType   string  `json:"to_type"`
	} `json:"relationships"`
}

// Parse decodes a completion into tuples. A Markdown code fence or prose
// around the object is tolerated, and broken JSON is repaired before giving
// up. Type values are not checked against the allow-list; every listed
// entity must carry name and type, and every relationship type, from and to.
func Parse(raw string) ([]core.Entity, []core.Relationship, error) {
	body, ok := findObject(raw, true)
	if !ok && strings.Contains(raw, "{") {
		if repaired, err := jsonrepair.RepairJSON(raw); err == nil {
			body, ok = findObject(repaired, false)
		}
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: no extraction object in response", ErrMalformedResponse)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	entities := make([]core.Entity, 0, len(p.Entities))
	for i, ent := range p.Entities {
		if ent.Name == nil || ent.Type == nil {
			return nil, nil, fmt.Errorf("%w: entity %d missing name or type", ErrMalformedResponse, i)
		}
		entities = append(entities, core.Entity{Name: *ent.Name, Type: core.EntityType(*ent.Type)})
	}

	relationships := make([]core.Relationship, 0, len(p.Relationships))
	for i, rel := range p.Relationships {
		if rel.Type == nil || rel.From == nil || rel.To == nil {
			return nil, nil, fmt.Errorf("%w: relationship %d missing type, from or to", ErrMalformedResponse, i)
		}
		relationships = append(relationships, core.Relationship{
			Kind:     core.RelationKind(*rel.Type),
			From:     *rel.From,
			To:       *rel.To,
			FromType: core.EntityType(rel.FromType),
			ToType:   core.EntityType(rel.ToType),
		})
	}

	return entities, relationships, nil
}

// findObject scans each "{" in s and returns the first JSON object carrying
// an entities or relationships key. With allowBare, an object without either
// key is accepted when it starts at the first brace.
func findObject(s string, allowBare bool) (json.RawMessage, bool) {
	first := true
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		var obj map[string]json.RawMessage
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		if err := dec.Decode(&obj); err == nil {
			_, hasEntities := obj["entities"]
			_, hasRelationships := obj["relationships"]
			if hasEntities || hasRelationships || (allowBare && first) {
				return json.RawMessage(s[i : i+int(dec.InputOffset())]), true
			}
		}
		first = false
	}
	return nil, false
}
