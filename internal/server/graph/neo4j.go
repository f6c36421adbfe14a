package graph

import (
	"context"
	"fmt"
	"iter"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/systemshift/polkg/internal/core"
	"github.com/systemshift/polkg/internal/logger"
)

// Repository wraps Neo4j operations
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	log      *zap.Logger
}

// Config holds Neo4j connection configuration
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// New creates a new Neo4j repository
func New(ctx context.Context, cfg Config) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	// Verify connectivity
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	return &Repository{driver: driver, database: database, log: logger.L()}, nil
}

// Close closes the Neo4j connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database, AccessMode: mode})
}

// EnsureIndexes creates a uniqueness constraint on name for every label
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, t := range core.EntityTypes {
		query, err := uniqueNameConstraint(t)
		if err != nil {
			return err
		}
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("creating constraint for %s: %w", t, err)
		}
	}
	return nil
}

// UpsertEntity merges a node keyed by label and name
func (r *Repository) UpsertEntity(ctx context.Context, entity core.Entity) error {
	query, err := mergeNodeQuery(entity.Type)
	if err != nil {
		return err
	}

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"name": entity.Name})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("merging %s node %q: %w", entity.Type, entity.Name, err)
	}

	r.log.Debug("merged node", zap.String("label", string(entity.Type)), zap.String("name", entity.Name))
	return nil
}

// UpsertRelationship merges both endpoints and the edge between them
func (r *Repository) UpsertRelationship(ctx context.Context, rel core.Relationship) error {
	if err := validateRelationship(rel); err != nil {
		return err
	}
	query, err := mergeEdgeQuery(rel.FromType, rel.Kind, rel.ToType)
	if err != nil {
		return err
	}

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"from": rel.From, "to": rel.To})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("merging %s edge %q -> %q: %w", rel.Kind, rel.From, rel.To, err)
	}

	r.log.Debug("merged edge",
		zap.String("from", rel.From),
		zap.String("kind", string(rel.Kind)),
		zap.String("to", rel.To),
	)
	return nil
}

// Nodes streams every node in the database
func (r *Repository) Nodes(ctx context.Context) iter.Seq2[core.Node, error] {
	return func(yield func(core.Node, error) bool) {
		session := r.session(ctx, neo4j.AccessModeRead)
		defer session.Close(ctx)

		result, err := session.Run(ctx, queryAllNodes, nil)
		if err != nil {
			yield(core.Node{}, fmt.Errorf("listing nodes: %w", err))
			return
		}

		for result.Next(ctx) {
			value, _ := result.Record().Get("n")
			nodeData, ok := value.(neo4j.Node)
			if !ok {
				yield(core.Node{}, fmt.Errorf("unexpected node value %T", value))
				return
			}
			name, _ := nodeData.Props["name"].(string)
			node := core.Node{Labels: nodeData.Labels, Name: name, Props: nodeData.Props}
			if !yield(node, nil) {
				return
			}
		}
		if err := result.Err(); err != nil {
			yield(core.Node{}, fmt.Errorf("listing nodes: %w", err))
		}
	}
}

// Edges streams every relationship with its endpoint names
func (r *Repository) Edges(ctx context.Context) iter.Seq2[core.Edge, error] {
	return func(yield func(core.Edge, error) bool) {
		session := r.session(ctx, neo4j.AccessModeRead)
		defer session.Close(ctx)

		result, err := session.Run(ctx, queryAllEdges, nil)
		if err != nil {
			yield(core.Edge{}, fmt.Errorf("listing relationships: %w", err))
			return
		}

		for result.Next(ctx) {
			record := result.Record()
			from, _ := record.Get("from")
			kind, _ := record.Get("relationship")
			to, _ := record.Get("to")

			// Nodes written by other tools may have no name property.
			fromName, _ := from.(string)
			kindName, _ := kind.(string)
			toName, _ := to.(string)

			if !yield(core.Edge{From: fromName, Kind: core.RelationKind(kindName), To: toName}, nil) {
				return
			}
		}
		if err := result.Err(); err != nil {
			yield(core.Edge{}, fmt.Errorf("listing relationships: %w", err))
		}
	}
}
