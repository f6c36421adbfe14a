package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/polkg/internal/core"
	"github.com/systemshift/polkg/internal/llm"
)

// fakeProvider returns a canned completion or error
type fakeProvider struct {
	content string
	err     error
	got     llm.CompletionRequest
}

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Content: f.content, Model: "fake"}, nil
}

const bidenJSON = `{
  "entities": [
    {"name": "Joe Biden", "type": "Person"},
    {"name": "Democratic Party", "type": "Party"},
    {"name": "United States", "type": "Country"}
  ],
  "relationships": [
    {"type": "MEMBER_OF", "from": "Joe Biden", "to": "Democratic Party"},
    {"type": "ASSOCIATED_WITH", "from": "Joe Biden", "to": "United States", "from_type": "Person", "to_type": "Country"}
  ]
}`

func TestExtract(t *testing.T) {
	p := &fakeProvider{content: bidenJSON}
	res := New(p, WithModel("llama-3.1-8b-instant")).Extract(context.Background(), "Joe Biden is a member of the Democratic Party.")

	require.True(t, res.OK())
	assert.False(t, res.Empty())
	assert.Equal(t, []core.Entity{
		{Name: "Joe Biden", Type: core.Person},
		{Name: "Democratic Party", Type: core.Party},
		{Name: "United States", Type: core.Country},
	}, res.Entities)
	require.Len(t, res.Relationships, 2)
	assert.Equal(t, core.Relationship{Kind: core.MemberOf, From: "Joe Biden", To: "Democratic Party"}, res.Relationships[0])
	assert.Equal(t, core.Country, res.Relationships[1].ToType)

	assert.Equal(t, systemPrompt, p.got.System)
	assert.Equal(t, "llama-3.1-8b-instant", p.got.Model)
	assert.True(t, p.got.JSON)
}

func TestExtractMalformedJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "Sorry, I cannot help with that."},
		{"braces in prose only", "Entities: {none}. Relationships: {none}."},
		{"wrong shape", `{"entities": "Joe Biden"}`},
		{"missing name", `{"entities": [{"type": "Person"}]}`},
		{"missing to", `{"relationships": [{"type": "MEMBER_OF", "from": "Joe Biden"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(&fakeProvider{content: tt.content}).Extract(context.Background(), "text")

			assert.False(t, res.OK())
			assert.True(t, errors.Is(res.Err, ErrMalformedResponse))
			assert.Empty(t, res.Entities)
			assert.Empty(t, res.Relationships)
			assert.Equal(t, tt.content, res.Raw)
		})
	}
}

func TestExtractTransportFailure(t *testing.T) {
	res := New(&fakeProvider{err: &llm.APIError{StatusCode: 503, Body: "unavailable"}}).Extract(context.Background(), "text")

	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, ErrCompletionFailed)
	var apiErr *llm.APIError
	assert.ErrorAs(t, res.Err, &apiErr)
	assert.True(t, res.Empty())
}

func TestExtractNothingFound(t *testing.T) {
	res := New(&fakeProvider{content: `{"entities": [], "relationships": []}`}).Extract(context.Background(), "The weather is nice.")

	assert.True(t, res.OK())
	assert.True(t, res.Empty())
}

func TestParse(t *testing.T) {
	t.Run("code fence", func(t *testing.T) {
		ents, rels, err := Parse("```json\n" + bidenJSON + "\n```")
		require.NoError(t, err)
		assert.Len(t, ents, 3)
		assert.Len(t, rels, 2)
	})

	surrounded := []struct {
		name string
		raw  string
	}{
		{"prose with braces before", "Here is the {requested} output:\n" + bidenJSON},
		{"prose with braces after", bidenJSON + "\nNote: the schema was {entities, relationships}."},
		{"fence then stray object", "```json\n" + bidenJSON + "\n```\n{more}"},
		{"leading sentence", "Sure! " + bidenJSON + " Hope that helps."},
	}
	for _, tt := range surrounded {
		t.Run(tt.name, func(t *testing.T) {
			ents, rels, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Len(t, ents, 3)
			assert.Len(t, rels, 2)
			assert.Equal(t, "Joe Biden", ents[0].Name)
		})
	}

	t.Run("trailing comma is repaired", func(t *testing.T) {
		ents, rels, err := Parse(`{"entities": [{"name": "Joe Biden", "type": "Person"},], "relationships": []}`)
		require.NoError(t, err)
		require.Len(t, ents, 1)
		assert.Equal(t, core.Entity{Name: "Joe Biden", Type: core.Person}, ents[0])
		assert.Empty(t, rels)
	})

	t.Run("missing keys", func(t *testing.T) {
		ents, rels, err := Parse(`{}`)
		require.NoError(t, err)
		assert.Empty(t, ents)
		assert.Empty(t, rels)
	})

	t.Run("unknown type passes through", func(t *testing.T) {
		ents, _, err := Parse(`{"entities": [{"name": "Texas", "type": "State"}]}`)
		require.NoError(t, err)
		assert.Equal(t, core.EntityType("State"), ents[0].Type)
		assert.False(t, ents[0].Type.Valid())
	})
}
