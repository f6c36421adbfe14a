package graph

import (
	"context"
	"fmt"
	"iter"

	"github.com/systemshift/polkg/internal/core"
)

// Store defines the interface for graph storage backends.
// Both Neo4j and SQLite implement this interface.
type Store interface {
	// Lifecycle
	Close(ctx context.Context) error
	EnsureIndexes(ctx context.Context) error

	// Idempotent writes, one transaction each
	UpsertEntity(ctx context.Context, entity core.Entity) error
	UpsertRelationship(ctx context.Context, rel core.Relationship) error

	// Lazy read-back; order is whatever the backend returns
	Nodes(ctx context.Context) iter.Seq2[core.Node, error]
	Edges(ctx context.Context) iter.Seq2[core.Edge, error]
}

// StoreConfig selects and configures a backend
type StoreConfig struct {
	Backend    string // neo4j or sqlite
	Neo4j      Config
	SQLitePath string
}

// Open connects to the configured backend
func Open(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "neo4j", "":
		s, err := New(ctx, cfg.Neo4j)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// ListNodes drains Nodes into a slice
func ListNodes(ctx context.Context, s Store) ([]core.Node, error) {
	return Collect(s.Nodes(ctx))
}

// ListEdges drains Edges into a slice
func ListEdges(ctx context.Context, s Store) ([]core.Edge, error) {
	return Collect(s.Edges(ctx))
}

// Collect drains a read-back sequence. The slice is non-nil even when empty.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func validateRelationship(rel core.Relationship) error {
	if err := checkType(rel.FromType); err != nil {
		return err
	}
	if err := checkType(rel.ToType); err != nil {
		return err
	}
	return checkKind(rel.Kind)
}
