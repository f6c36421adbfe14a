package main

import (
	"context"
	"fmt"

	"github.com/systemshift/polkg/internal/config"
	"github.com/systemshift/polkg/internal/extract"
	"github.com/systemshift/polkg/internal/llm"
	"github.com/systemshift/polkg/internal/logger"
	"github.com/systemshift/polkg/internal/observability"
	"github.com/systemshift/polkg/internal/pipeline"
	"github.com/systemshift/polkg/internal/server/graph"
)

const metricsNamespace = "polkg"

// openStore connects to the configured backend and ensures its indexes
func openStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	store, err := graph.Open(ctx, graph.StoreConfig{
		Backend: cfg.Store.Backend,
		Neo4j: graph.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		},
		SQLitePath: cfg.SQLite.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	if err := store.EnsureIndexes(ctx); err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("ensuring indexes: %w", err)
	}
	return store, nil
}

// newBuilder wires provider, extractor and writer into a pipeline
func newBuilder(cfg *config.Config, store graph.Store, metrics *observability.Collector) (*pipeline.Builder, error) {
	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}

	policy, err := pipeline.ParseTypePolicy(cfg.Pipeline.TypePolicy)
	if err != nil {
		return nil, err
	}

	log := logger.L()
	ex := extract.New(provider,
		extract.WithModel(cfg.LLM.Model),
		extract.WithLogger(log),
	)

	return pipeline.New(ex, store,
		pipeline.WithPolicy(policy),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(log),
	), nil
}
