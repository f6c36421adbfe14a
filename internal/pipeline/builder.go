// Package pipeline runs extraction and writes the result to the graph,
// strictly in sequence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/systemshift/polkg/internal/core"
	"github.com/systemshift/polkg/internal/extract"
	"github.com/systemshift/polkg/internal/observability"
)

var errUnresolved = errors.New("endpoint type unresolved")

// Extractor produces entities and relationships from text
type Extractor interface {
	Extract(ctx context.Context, text string) extract.Result
}

// Writer is the graph side of the pipeline
type Writer interface {
	UpsertEntity(ctx context.Context, entity core.Entity) error
	UpsertRelationship(ctx context.Context, rel core.Relationship) error
}

// Summary describes one run
type Summary struct {
	RunID                string `json:"run_id"`
	ExtractionError      string `json:"extraction_error,omitempty"`
	EntitiesWritten      int    `json:"entities_written"`
	RelationshipsWritten int    `json:"relationships_written"`
	EntitiesSkipped      int    `json:"entities_skipped"`
	RelationshipsSkipped int    `json:"relationships_skipped"`
	DurationMS           int64  `json:"duration_ms"`

	Duration time.Duration `json:"-"`

	// Extraction is the extractor's error, if any
	Extraction error `json:"-"`
}

// Builder wires an extractor to a graph writer
type Builder struct {
	extractor Extractor
	writer    Writer
	policy    TypePolicy
	metrics   *observability.Collector
	log       *zap.Logger
}

// Option configures a Builder
type Option func(*Builder)

func WithPolicy(p TypePolicy) Option {
	return func(b *Builder) { b.policy = p }
}

func WithMetrics(c *observability.Collector) Option {
	return func(b *Builder) { b.metrics = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// New creates a Builder using PolicyExtracted unless told otherwise
func New(ex Extractor, w Writer, opts ...Option) *Builder {
	b := &Builder{
		extractor: ex,
		writer:    w,
		policy:    PolicyExtracted,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run extracts from text and upserts the result. A failed extraction is not an
// error: it is recorded in the summary and nothing is written. Any graph
// write error ends the run.
func (b *Builder) Run(ctx context.Context, text string) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: uuid.NewString()}
	log := b.log.With(zap.String("run_id", sum.RunID))

	defer func() {
		sum.Duration = time.Since(start)
		sum.DurationMS = sum.Duration.Milliseconds()
		if b.metrics != nil {
			b.metrics.ObserveRun(sum.Duration)
		}
	}()

	res := b.extractor.Extract(ctx, text)
	b.recordExtraction(res)
	if !res.OK() {
		sum.Extraction = res.Err
		sum.ExtractionError = res.Err.Error()
		log.Warn("extraction failed, nothing written", zap.Error(res.Err))
		return sum, nil
	}
	log.Info("extracted",
		zap.Int("entities", len(res.Entities)),
		zap.Int("relationships", len(res.Relationships)),
	)

	for _, ent := range res.Entities {
		norm, err := normalizeEntity(ent)
		if err != nil {
			sum.EntitiesSkipped++
			b.recordSkipped("entity")
			log.Warn("skipping entity", zap.String("name", ent.Name), zap.Error(err))
			continue
		}
		if err := b.writer.UpsertEntity(ctx, norm); err != nil {
			return sum, fmt.Errorf("upserting entity: %w", err)
		}
		sum.EntitiesWritten++
		if b.metrics != nil {
			b.metrics.EntitiesUpserted.Inc()
		}
	}

	endpoints := newResolver(b.policy, normalizedEntities(res.Entities))
	for _, rel := range res.Relationships {
		resolved, err := prepareRelationship(endpoints, rel)
		if err != nil {
			sum.RelationshipsSkipped++
			b.recordSkipped("relationship")
			log.Warn("skipping relationship",
				zap.String("from", rel.From),
				zap.String("kind", string(rel.Kind)),
				zap.String("to", rel.To),
				zap.Error(err),
			)
			continue
		}
		if err := b.writer.UpsertRelationship(ctx, resolved); err != nil {
			return sum, fmt.Errorf("upserting relationship: %w", err)
		}
		sum.RelationshipsWritten++
		if b.metrics != nil {
			b.metrics.RelationshipsUpserted.Inc()
		}
	}

	log.Info("run complete",
		zap.Int("entities_written", sum.EntitiesWritten),
		zap.Int("relationships_written", sum.RelationshipsWritten),
		zap.Int("entities_skipped", sum.EntitiesSkipped),
		zap.Int("relationships_skipped", sum.RelationshipsSkipped),
	)
	return sum, nil
}

func normalizeEntity(e core.Entity) (core.Entity, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return e, errors.New("empty name")
	}
	t, err := core.ParseEntityType(string(e.Type))
	if err != nil {
		return e, err
	}
	e.Type = t
	return e, nil
}

// normalizedEntities keeps the entities that would be written
func normalizedEntities(in []core.Entity) []core.Entity {
	out := make([]core.Entity, 0, len(in))
	for _, e := range in {
		if norm, err := normalizeEntity(e); err == nil {
			out = append(out, norm)
		}
	}
	return out
}

func prepareRelationship(r resolver, rel core.Relationship) (core.Relationship, error) {
	rel.From = strings.TrimSpace(rel.From)
	rel.To = strings.TrimSpace(rel.To)
	if rel.From == "" || rel.To == "" {
		return rel, errors.New("empty endpoint name")
	}
	kind, err := core.ParseRelationKind(string(rel.Kind))
	if err != nil {
		return rel, err
	}
	rel.Kind = kind
	return r.resolve(rel)
}

func (b *Builder) recordExtraction(res extract.Result) {
	if b.metrics == nil {
		return
	}
	switch {
	case !res.OK():
		b.metrics.RecordExtraction("failed")
	case res.Empty():
		b.metrics.RecordExtraction("empty")
	default:
		b.metrics.RecordExtraction("ok")
	}
}

func (b *Builder) recordSkipped(kind string) {
	if b.metrics != nil {
		b.metrics.RecordSkipped(kind)
	}
}
