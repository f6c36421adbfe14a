package pipeline

import (
	"fmt"
	"strings"

	"github.com/systemshift/polkg/internal/core"
)

// TypePolicy decides the labels of a relationship's endpoints
type TypePolicy string

const (
	// PolicyExtracted trusts the type tags the extractor produced.
	PolicyExtracted TypePolicy = "extracted"

	// PolicyHeuristic assumes from is a Person and to is a Party when its
	// name contains "Party", else a Country. It mislabels anything outside
	// that pattern and is kept only to compare against older graphs.
	PolicyHeuristic TypePolicy = "heuristic"
)

// ParseTypePolicy parses a policy name; empty means PolicyExtracted
func ParseTypePolicy(s string) (TypePolicy, error) {
	switch p := TypePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyExtracted, nil
	case PolicyExtracted, PolicyHeuristic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown type policy: %s", s)
	}
}

// resolver fills in endpoint types for relationships
type resolver interface {
	resolve(rel core.Relationship) (core.Relationship, error)
}

func newResolver(policy TypePolicy, entities []core.Entity) resolver {
	if policy == PolicyHeuristic {
		return heuristicResolver{}
	}
	listed := make(map[string]map[core.EntityType]bool, len(entities))
	for _, e := range entities {
		if listed[e.Name] == nil {
			listed[e.Name] = make(map[core.EntityType]bool)
		}
		listed[e.Name][e.Type] = true
	}
	return extractedResolver{listed: listed}
}

type heuristicResolver struct{}

func (heuristicResolver) resolve(rel core.Relationship) (core.Relationship, error) {
	rel.FromType = core.Person
	if strings.Contains(rel.To, "Party") {
		rel.ToType = core.Party
	} else {
		rel.ToType = core.Country
	}
	return rel, nil
}

// extractedResolver uses tags on the relationship itself, then the entity
// list of the same extraction. A tag must agree with the entity list when
// the name is listed. It never guesses.
type extractedResolver struct {
	listed map[string]map[core.EntityType]bool
}

func (r extractedResolver) resolve(rel core.Relationship) (core.Relationship, error) {
	var err error
	if rel.FromType, err = r.endpoint(rel.From, rel.FromType); err != nil {
		return rel, fmt.Errorf("from %q: %w", rel.From, err)
	}
	if rel.ToType, err = r.endpoint(rel.To, rel.ToType); err != nil {
		return rel, fmt.Errorf("to %q: %w", rel.To, err)
	}
	return rel, nil
}

func (r extractedResolver) endpoint(name string, tagged core.EntityType) (core.EntityType, error) {
	types := r.listed[name]
	if tagged != "" {
		t, err := core.ParseEntityType(string(tagged))
		if err != nil {
			return "", err
		}
		if len(types) > 0 && !types[t] {
			return "", fmt.Errorf("%w: tagged %s but extracted as another type", errUnresolved, t)
		}
		return t, nil
	}
	switch len(types) {
	case 0:
		return "", fmt.Errorf("%w: not among extracted entities", errUnresolved)
	case 1:
		for t := range types {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: extracted with more than one type", errUnresolved)
}
