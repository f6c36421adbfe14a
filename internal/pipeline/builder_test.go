package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/polkg/internal/core"
	"github.com/systemshift/polkg/internal/extract"
	"github.com/systemshift/polkg/internal/observability"
	"github.com/systemshift/polkg/internal/server/graph"
)

type stubExtractor struct {
	res   extract.Result
	calls int
}

func (s *stubExtractor) Extract(ctx context.Context, text string) extract.Result {
	s.calls++
	return s.res
}

func newStore(t *testing.T) *graph.SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	s, err := graph.NewSQLite(ctx, filepath.Join(t.TempDir(), "kg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(ctx) })
	return s
}

func bidenResult() extract.Result {
	return extract.Result{
		Entities: []core.Entity{
			{Name: "Joe Biden", Type: core.Person},
			{Name: "Democratic Party", Type: core.Party},
			{Name: "Donald Trump", Type: core.Person},
			{Name: "Republican Party", Type: core.Party},
			{Name: "United States", Type: core.Country},
		},
		Relationships: []core.Relationship{
			{Kind: core.MemberOf, From: "Joe Biden", To: "Democratic Party"},
			{Kind: core.MemberOf, From: "Donald Trump", To: "Republican Party"},
			{Kind: core.AssociatedWith, From: "Joe Biden", To: "United States"},
			{Kind: core.AssociatedWith, From: "Donald Trump", To: "United States"},
		},
	}
}

func TestRunBidenExample(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ex := &stubExtractor{res: extract.Result{
		Entities: []core.Entity{
			{Name: "Joe Biden", Type: core.Person},
			{Name: "Democratic Party", Type: core.Party},
		},
		Relationships: []core.Relationship{
			{Kind: core.MemberOf, From: "Joe Biden", To: "Democratic Party"},
		},
	}}

	sum, err := New(ex, store).Run(ctx, "Joe Biden is a member of the Democratic Party.")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.EntitiesWritten)
	assert.Equal(t, 1, sum.RelationshipsWritten)
	assert.NotEmpty(t, sum.RunID)

	nodes, err := graph.ListNodes(ctx, store)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, []string{"Person"}, nodes[0].Labels)
	assert.Equal(t, []string{"Party"}, nodes[1].Labels)

	edges, err := graph.ListEdges(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []core.Edge{{From: "Joe Biden", Kind: core.MemberOf, To: "Democratic Party"}}, edges)
}

func TestRepeatedRunsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	b := New(&stubExtractor{res: bidenResult()}, store)

	for i := 0; i < 3; i++ {
		_, err := b.Run(ctx, "same text")
		require.NoError(t, err)
	}

	nodes, err := graph.ListNodes(ctx, store)
	require.NoError(t, err)
	assert.Len(t, nodes, 5)

	edges, err := graph.ListEdges(ctx, store)
	require.NoError(t, err)
	assert.Len(t, edges, 4)
}

func TestHeuristicPolicyClassifiesCountry(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ex := &stubExtractor{res: extract.Result{
		Relationships: []core.Relationship{
			{Kind: core.AssociatedWith, From: "Joe Biden", To: "United States"},
			{Kind: core.MemberOf, From: "Joe Biden", To: "Democratic Party"},
		},
	}}

	sum, err := New(ex, store, WithPolicy(PolicyHeuristic)).Run(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.RelationshipsWritten)

	labels := map[string]string{}
	for n, err := range store.Nodes(ctx) {
		require.NoError(t, err)
		labels[n.Name] = n.Labels[0]
	}
	assert.Equal(t, map[string]string{
		"Joe Biden":        "Person",
		"United States":    "Country",
		"Democratic Party": "Party",
	}, labels)
}

func TestExtractedPolicyKeepsTags(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	// Party-to-Country: the heuristic would relabel the Party as a Person.
	ex := &stubExtractor{res: extract.Result{
		Entities: []core.Entity{
			{Name: "Democratic Party", Type: core.Party},
			{Name: "United States", Type: core.Country},
		},
		Relationships: []core.Relationship{
			{Kind: core.AssociatedWith, From: "Democratic Party", To: "United States"},
		},
	}}

	_, err := New(ex, store).Run(ctx, "text")
	require.NoError(t, err)

	nodes, err := graph.ListNodes(ctx, store)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	for _, n := range nodes {
		if n.Name == "Democratic Party" {
			assert.Equal(t, []string{"Party"}, n.Labels)
		}
	}
}

func TestExtractedPolicyRejectsContradictingTag(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ex := &stubExtractor{res: extract.Result{
		Entities: []core.Entity{
			{Name: "Joe Biden", Type: core.Person},
			{Name: "Democratic Party", Type: core.Party},
		},
		Relationships: []core.Relationship{
			{Kind: core.AssociatedWith, From: "Joe Biden", To: "Democratic Party", ToType: core.Country},
		},
	}}

	sum, err := New(ex, store).Run(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.RelationshipsSkipped)

	nodes, err := graph.ListNodes(ctx, store)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.NotEqual(t, []string{"Country"}, n.Labels, "no node should be created from the contradicting tag")
	}
}

func TestExtractedPolicySkipsUnknownEndpoint(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	metrics := observability.NewCollector("test")
	ex := &stubExtractor{res: extract.Result{
		Entities: []core.Entity{{Name: "Joe Biden", Type: core.Person}},
		Relationships: []core.Relationship{
			{Kind: core.MemberOf, From: "Joe Biden", To: "Democratic Party"},
		},
	}}

	sum, err := New(ex, store, WithMetrics(metrics)).Run(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.EntitiesWritten)
	assert.Equal(t, 0, sum.RelationshipsWritten)
	assert.Equal(t, 1, sum.RelationshipsSkipped)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Skipped.WithLabelValues("relationship")))

	edges, err := graph.ListEdges(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestRunSkipsUnlistedValues(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ex := &stubExtractor{res: extract.Result{
		Entities: []core.Entity{
			{Name: "Joe Biden", Type: "person"},
			{Name: "Delaware", Type: "State"},
			{Name: "  ", Type: core.Country},
		},
		Relationships: []core.Relationship{
			{Kind: "PRESIDENT_OF", From: "Joe Biden", To: "United States", FromType: core.Person, ToType: core.Country},
		},
	}}

	sum, err := New(ex, store).Run(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.EntitiesWritten)
	assert.Equal(t, 2, sum.EntitiesSkipped)
	assert.Equal(t, 1, sum.RelationshipsSkipped)

	nodes, err := graph.ListNodes(ctx, store)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, []string{"Person"}, nodes[0].Labels)
}

func TestRunExtractionFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	metrics := observability.NewCollector("test")
	ex := &stubExtractor{res: extract.Result{Err: extract.ErrMalformedResponse}}

	sum, err := New(ex, store, WithMetrics(metrics)).Run(ctx, "text")
	require.NoError(t, err)
	assert.ErrorIs(t, sum.Extraction, extract.ErrMalformedResponse)
	assert.NotEmpty(t, sum.ExtractionError)
	assert.Zero(t, sum.EntitiesWritten)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Extractions.WithLabelValues("failed")))

	nodes, err := graph.ListNodes(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

type failingWriter struct{ err error }

func (f failingWriter) UpsertEntity(ctx context.Context, e core.Entity) error { return f.err }
func (f failingWriter) UpsertRelationship(ctx context.Context, r core.Relationship) error {
	return f.err
}

func TestRunWriteErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := New(&stubExtractor{res: bidenResult()}, failingWriter{err: boom}).Run(context.Background(), "text")
	assert.ErrorIs(t, err, boom)
}

func TestParseTypePolicy(t *testing.T) {
	p, err := ParseTypePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyExtracted, p)

	p, err = ParseTypePolicy("Heuristic")
	require.NoError(t, err)
	assert.Equal(t, PolicyHeuristic, p)

	_, err = ParseTypePolicy("guess")
	assert.Error(t, err)
}
