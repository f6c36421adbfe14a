package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownEntityType is returned when a type tag is not one of Person, Party or Country.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrUnknownRelationKind is returned when a relationship kind is not allow-listed.
	ErrUnknownRelationKind = errors.New("unknown relationship kind")
)

// EntityType is the label a node carries in the graph
type EntityType string

const (
	Person  EntityType = "Person"
	Party   EntityType = "Party"
	Country EntityType = "Country"
)

// EntityTypes lists every allowed node label
var EntityTypes = []EntityType{Person, Party, Country}

// Valid reports whether t is an allow-listed label
func (t EntityType) Valid() bool {
	switch t {
	case Person, Party, Country:
		return true
	}
	return false
}

// ParseEntityType maps free text onto an allowed label, ignoring case
func ParseEntityType(s string) (EntityType, error) {
	s = strings.TrimSpace(s)
	for _, t := range EntityTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
}

// RelationKind is the type of a directed edge
type RelationKind string

const (
	MemberOf       RelationKind = "MEMBER_OF"
	AssociatedWith RelationKind = "ASSOCIATED_WITH"
)

// RelationKinds lists every allowed relationship type
var RelationKinds = []RelationKind{MemberOf, AssociatedWith}

// Valid reports whether k is an allow-listed relationship type
func (k RelationKind) Valid() bool {
	return k == MemberOf || k == AssociatedWith
}

// ParseRelationKind normalizes "member of", "member-of" and "MEMBER_OF" alike
func ParseRelationKind(s string) (RelationKind, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	k := RelationKind(norm)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRelationKind, s)
	}
	return k, nil
}

// Entity is a named thing extracted from text.
// Type is carried as extracted and may be outside the allow-list until it
// reaches the graph writer.
type Entity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// Key returns the uniqueness key (type, name)
func (e Entity) Key() string {
	return string(e.Type) + "\x00" + e.Name
}

// Relationship is a directed, typed edge between two named entities.
// FromType and ToType are empty until resolved.
type Relationship struct {
	Kind     RelationKind `json:"type"`
	From     string       `json:"from"`
	To       string       `json:"to"`
	FromType EntityType   `json:"from_type,omitempty"`
	ToType   EntityType   `json:"to_type,omitempty"`
}

// Key returns the uniqueness key (fromType, from, kind, toType, to)
func (r Relationship) Key() string {
	return strings.Join([]string{string(r.FromType), r.From, string(r.Kind), string(r.ToType), r.To}, "\x00")
}

// Resolved reports whether both endpoint types are set and allowed
func (r Relationship) Resolved() bool {
	return r.FromType.Valid() && r.ToType.Valid()
}

// Node is a graph node as read back from storage
type Node struct {
	Labels []string       `json:"labels"`
	Name   string         `json:"name"`
	Props  map[string]any `json:"properties,omitempty"`
}

func (n Node) String() string {
	return fmt.Sprintf("(:%s {name: %q})", strings.Join(n.Labels, ":"), n.Name)
}

// Edge is a relationship as read back from storage
type Edge struct {
	From string       `json:"from"`
	Kind RelationKind `json:"relationship"`
	To   string       `json:"to"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -[:%s]-> %s", e.From, e.Kind, e.To)
}
