package graph

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/systemshift/polkg/internal/core"
	"github.com/systemshift/polkg/internal/logger"
)

// SQLiteRepository implements Store on an embedded SQLite file.
// Nodes are unique on (label, name) and edges on (from, kind, to), so
// inserts that hit a constraint are the MERGE no-op case.
type SQLiteRepository struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLite creates a new SQLite repository
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	// Verify connectivity
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteRepository{db: db, log: logger.L()}, nil
}

// Close closes the SQLite connection
func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

// EnsureIndexes is a no-op; uniqueness is part of the schema
func (r *SQLiteRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

const insertNode = `INSERT INTO nodes (label, name) VALUES (?, ?) ON CONFLICT(label, name) DO NOTHING`

// UpsertEntity inserts the node unless (label, name) already exists
func (r *SQLiteRepository) UpsertEntity(ctx context.Context, entity core.Entity) error {
	if err := checkType(entity.Type); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, insertNode, string(entity.Type), entity.Name); err != nil {
		return fmt.Errorf("merging %s node %q: %w", entity.Type, entity.Name, err)
	}
	r.log.Debug("merged node", zap.String("label", string(entity.Type)), zap.String("name", entity.Name))
	return nil
}

// UpsertRelationship merges both endpoints and the edge in one transaction
func (r *SQLiteRepository) UpsertRelationship(ctx context.Context, rel core.Relationship) error {
	if err := validateRelationship(rel); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	fromID, err := mergeNodeTx(ctx, tx, rel.FromType, rel.From)
	if err != nil {
		return err
	}
	toID, err := mergeNodeTx(ctx, tx, rel.ToType, rel.To)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO edges (from_id, kind, to_id) VALUES (?, ?, ?) ON CONFLICT(from_id, kind, to_id) DO NOTHING`,
		fromID, string(rel.Kind), toID,
	)
	if err != nil {
		return fmt.Errorf("merging %s edge %q -> %q: %w", rel.Kind, rel.From, rel.To, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing edge: %w", err)
	}

	r.log.Debug("merged edge",
		zap.String("from", rel.From),
		zap.String("kind", string(rel.Kind)),
		zap.String("to", rel.To),
	)
	return nil
}

func mergeNodeTx(ctx context.Context, tx *sql.Tx, label core.EntityType, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, insertNode, string(label), name); err != nil {
		return 0, fmt.Errorf("merging %s node %q: %w", label, name, err)
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM nodes WHERE label = ? AND name = ?`, string(label), name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("looking up %s node %q: %w", label, name, err)
	}
	return id, nil
}

// Nodes streams every node
func (r *SQLiteRepository) Nodes(ctx context.Context) iter.Seq2[core.Node, error] {
	return func(yield func(core.Node, error) bool) {
		rows, err := r.db.QueryContext(ctx, `SELECT label, name FROM nodes ORDER BY id`)
		if err != nil {
			yield(core.Node{}, fmt.Errorf("listing nodes: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var label, name string
			if err := rows.Scan(&label, &name); err != nil {
				yield(core.Node{}, fmt.Errorf("scanning node: %w", err))
				return
			}
			node := core.Node{Labels: []string{label}, Name: name, Props: map[string]any{"name": name}}
			if !yield(node, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(core.Node{}, fmt.Errorf("listing nodes: %w", err))
		}
	}
}

// Edges streams every relationship with its endpoint names
func (r *SQLiteRepository) Edges(ctx context.Context) iter.Seq2[core.Edge, error] {
	return func(yield func(core.Edge, error) bool) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT a.name, e.kind, b.name
			FROM edges e
			JOIN nodes a ON a.id = e.from_id
			JOIN nodes b ON b.id = e.to_id
			ORDER BY e.id
		`)
		if err != nil {
			yield(core.Edge{}, fmt.Errorf("listing relationships: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var edge core.Edge
			var kind string
			if err := rows.Scan(&edge.From, &kind, &edge.To); err != nil {
				yield(core.Edge{}, fmt.Errorf("scanning relationship: %w", err))
				return
			}
			edge.Kind = core.RelationKind(kind)
			if !yield(edge, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(core.Edge{}, fmt.Errorf("listing relationships: %w", err))
		}
	}
}
