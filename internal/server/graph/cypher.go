package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systemshift/polkg/internal/core"
)

// ErrInvalidLabel is returned when a label or relationship type is not
// allow-listed. Labels can't be query parameters, so nothing else reaches
// query text.
var ErrInvalidLabel = errors.New("invalid label")

const (
	queryAllNodes = `MATCH (n) RETURN n`
	queryAllEdges = `MATCH (a)-[r]->(b) RETURN a.name AS from, type(r) AS relationship, b.name AS to`
)

func checkType(t core.EntityType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: node label %q", ErrInvalidLabel, string(t))
	}
	return nil
}

func checkKind(k core.RelationKind) error {
	if !k.Valid() {
		return fmt.Errorf("%w: relationship type %q", ErrInvalidLabel, string(k))
	}
	return nil
}

// mergeNodeQuery builds MERGE (n:Label {name: $name})
func mergeNodeQuery(t core.EntityType) (string, error) {
	if err := checkType(t); err != nil {
		return "", err
	}
	return fmt.Sprintf("MERGE (n:%s {name: $name})", t), nil
}

// mergeEdgeQuery merges both endpoints and the directed edge between them
func mergeEdgeQuery(from core.EntityType, kind core.RelationKind, to core.EntityType) (string, error) {
	if err := checkType(from); err != nil {
		return "", err
	}
	if err := checkType(to); err != nil {
		return "", err
	}
	if err := checkKind(kind); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MERGE (a:%s {name: $from}) MERGE (b:%s {name: $to}) MERGE (a)-[:%s]->(b)",
		from, to, kind,
	), nil
}

// uniqueNameConstraint builds the per-label uniqueness constraint on name
func uniqueNameConstraint(t core.EntityType) (string, error) {
	if err := checkType(t); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"CREATE CONSTRAINT %s_name_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.name IS UNIQUE",
		strings.ToLower(string(t)), t,
	), nil
}
