package graph

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/polkg/internal/core"
)

// newTestNeo4j connects to the instance named by NEO4J_URI, or skips.
// Every name written by a test carries a unique suffix and is removed on
// cleanup, so an existing graph is left untouched.
func newTestNeo4j(t *testing.T) (*Repository, string) {
	t.Helper()
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set; these tests require a running Neo4j instance")
	}
	username := os.Getenv("NEO4J_USERNAME")
	if username == "" {
		username = os.Getenv("NEO4J_USER")
	}

	ctx := context.Background()
	repo, err := New(ctx, Config{
		URI:      uri,
		Username: username,
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: os.Getenv("NEO4J_DATABASE"),
	})
	require.NoError(t, err)

	suffix := " #" + uuid.NewString()
	t.Cleanup(func() {
		session := repo.session(ctx, neo4j.AccessModeWrite)
		defer session.Close(ctx)
		_, err := session.Run(ctx, `MATCH (n) WHERE n.name ENDS WITH $suffix DETACH DELETE n`, map[string]any{"suffix": suffix})
		assert.NoError(t, err)
		repo.Close(ctx)
	})
	return repo, suffix
}

func tagEntity(e core.Entity, suffix string) core.Entity {
	e.Name += suffix
	return e
}

func tagRelationship(r core.Relationship, suffix string) core.Relationship {
	r.From += suffix
	r.To += suffix
	return r
}

// ownNodes reads back only the nodes this test wrote
func ownNodes(t *testing.T, repo *Repository, suffix string) []core.Node {
	t.Helper()
	nodes, err := ListNodes(context.Background(), repo)
	require.NoError(t, err)

	var out []core.Node
	for _, n := range nodes {
		if strings.HasSuffix(n.Name, suffix) {
			n.Name = strings.TrimSuffix(n.Name, suffix)
			out = append(out, n)
		}
	}
	return out
}

func ownEdges(t *testing.T, repo *Repository, suffix string) []core.Edge {
	t.Helper()
	edges, err := ListEdges(context.Background(), repo)
	require.NoError(t, err)

	var out []core.Edge
	for _, e := range edges {
		if strings.HasSuffix(e.From, suffix) && strings.HasSuffix(e.To, suffix) {
			e.From = strings.TrimSuffix(e.From, suffix)
			e.To = strings.TrimSuffix(e.To, suffix)
			out = append(out, e)
		}
	}
	return out
}

func TestNeo4jEnsureIndexes(t *testing.T) {
	repo, _ := newTestNeo4j(t)
	ctx := context.Background()

	require.NoError(t, repo.EnsureIndexes(ctx))
	require.NoError(t, repo.EnsureIndexes(ctx))
}

func TestNeo4jUpsertEntityIdempotent(t *testing.T) {
	repo, suffix := newTestNeo4j(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		for _, e := range []core.Entity{biden, democrats, usa} {
			require.NoError(t, repo.UpsertEntity(ctx, tagEntity(e, suffix)))
		}
	}

	nodes := ownNodes(t, repo, suffix)
	assert.Len(t, nodes, 3)
}

func TestNeo4jUpsertRelationshipIdempotent(t *testing.T) {
	repo, suffix := newTestNeo4j(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.UpsertRelationship(ctx, tagRelationship(bidenMember, suffix)))
		require.NoError(t, repo.UpsertRelationship(ctx, tagRelationship(bidenUSA, suffix)))
	}

	assert.ElementsMatch(t, []core.Edge{
		{From: "Joe Biden", Kind: core.MemberOf, To: "Democratic Party"},
		{From: "Joe Biden", Kind: core.AssociatedWith, To: "United States"},
	}, ownEdges(t, repo, suffix))

	// Endpoints are merged, not duplicated.
	assert.Len(t, ownNodes(t, repo, suffix), 3)
}

func TestNeo4jBidenExample(t *testing.T) {
	repo, suffix := newTestNeo4j(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertEntity(ctx, tagEntity(biden, suffix)))
	require.NoError(t, repo.UpsertEntity(ctx, tagEntity(democrats, suffix)))
	require.NoError(t, repo.UpsertRelationship(ctx, tagRelationship(bidenMember, suffix)))

	nodes := ownNodes(t, repo, suffix)
	require.Len(t, nodes, 2)
	labels := map[string][]string{}
	for _, n := range nodes {
		labels[n.Name] = n.Labels
	}
	assert.Equal(t, []string{"Person"}, labels["Joe Biden"])
	assert.Equal(t, []string{"Party"}, labels["Democratic Party"])

	assert.Equal(t, []core.Edge{{From: "Joe Biden", Kind: core.MemberOf, To: "Democratic Party"}}, ownEdges(t, repo, suffix))
}

func TestNeo4jReadBackCounts(t *testing.T) {
	repo, suffix := newTestNeo4j(t)
	ctx := context.Background()

	trump := core.Entity{Name: "Donald Trump", Type: core.Person}
	republicans := core.Entity{Name: "Republican Party", Type: core.Party}
	trumpMember := core.Relationship{
		Kind: core.MemberOf, From: "Donald Trump", To: "Republican Party",
		FromType: core.Person, ToType: core.Party,
	}

	entities := []core.Entity{biden, democrats, usa, trump, republicans}
	relationships := []core.Relationship{bidenMember, bidenUSA, trumpMember}
	for run := 0; run < 3; run++ {
		for _, e := range entities {
			require.NoError(t, repo.UpsertEntity(ctx, tagEntity(e, suffix)))
		}
		for _, r := range relationships {
			require.NoError(t, repo.UpsertRelationship(ctx, tagRelationship(r, suffix)))
		}
	}

	assert.Len(t, ownNodes(t, repo, suffix), len(entities))
	assert.Len(t, ownEdges(t, repo, suffix), len(relationships))
}

func TestNeo4jRejectsUnlistedLabels(t *testing.T) {
	repo, suffix := newTestNeo4j(t)
	ctx := context.Background()

	err := repo.UpsertEntity(ctx, core.Entity{Name: "Texas" + suffix, Type: "State"})
	assert.ErrorIs(t, err, ErrInvalidLabel)
	assert.Empty(t, ownNodes(t, repo, suffix))
}
