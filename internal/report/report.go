// Package report renders the graph's nodes and relationships as text or JSON.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/charmbracelet/lipgloss"

	"github.com/systemshift/polkg/internal/core"
	"github.com/systemshift/polkg/internal/server/graph"
)

// Source is the read side of a graph store
type Source interface {
	Nodes(ctx context.Context) iter.Seq2[core.Node, error]
	Edges(ctx context.Context) iter.Seq2[core.Edge, error]
}

// Format selects the output encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name; empty means text
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format: %s", s)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true)

// Reporter reads everything back from a Source
type Reporter struct {
	src    Source
	format Format
	styled bool
}

// New creates a Reporter. styled enables terminal styling of text headers.
func New(src Source, format Format, styled bool) *Reporter {
	return &Reporter{src: src, format: format, styled: styled}
}

func (r *Reporter) header(title string) string {
	if r.styled {
		return headerStyle.Render(title)
	}
	return title
}

// Nodes writes every node as it is read
func (r *Reporter) Nodes(ctx context.Context, w io.Writer) error {
	if r.format == FormatJSON {
		nodes, err := graph.Collect(r.src.Nodes(ctx))
		if err != nil {
			return err
		}
		return writeJSON(w, map[string]any{"nodes": nodes})
	}

	fmt.Fprintf(w, "\n%s\n", r.header("Nodes in the graph:"))
	for node, err := range r.src.Nodes(ctx) {
		if err != nil {
			return err
		}
		fmt.Fprintln(w, node)
	}
	return nil
}

// Relationships writes every relationship as from -[:KIND]-> to
func (r *Reporter) Relationships(ctx context.Context, w io.Writer) error {
	if r.format == FormatJSON {
		edges, err := graph.Collect(r.src.Edges(ctx))
		if err != nil {
			return err
		}
		return writeJSON(w, map[string]any{"relationships": edges})
	}

	fmt.Fprintf(w, "\n%s\n", r.header("Relationships in the graph:"))
	for edge, err := range r.src.Edges(ctx) {
		if err != nil {
			return err
		}
		fmt.Fprintln(w, edge)
	}
	return nil
}

// All writes nodes then relationships. JSON output is a single object.
func (r *Reporter) All(ctx context.Context, w io.Writer) error {
	if r.format == FormatJSON {
		nodes, err := graph.Collect(r.src.Nodes(ctx))
		if err != nil {
			return err
		}
		edges, err := graph.Collect(r.src.Edges(ctx))
		if err != nil {
			return err
		}
		return writeJSON(w, map[string]any{"nodes": nodes, "relationships": edges})
	}

	if err := r.Nodes(ctx, w); err != nil {
		return err
	}
	return r.Relationships(ctx, w)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
