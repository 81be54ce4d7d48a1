package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/testutil"
)

func TestModelRelationship_Local(t *testing.T) {
	f := newFixture(t)

	result, usage, err := f.lower("Article", f.selection("Article",
		f.field("Article", "author", "author", f.selection("Author",
			f.field("Author", "first_name", "first_name", nil, nil),
		), nil),
	))
	require.NoError(t, err)

	rel := requireField[ModelRelationshipLocal](t, result, "author")
	assert.Equal(t, "app__Article__author", rel.Name)
	assert.Equal(t, "authors", rel.Query.Collection)
	assert.Equal(t, []string{"first_name"}, rel.Query.Selection.Keys())
	assert.Equal(t, &RelationshipInfo{
		RelationshipName:    "author",
		SourceType:          testutil.Name("Article"),
		SourceDataConnector: testutil.Name("db"),
		TargetDataConnector: testutil.Name("db"),
		RelationshipType:    metadata.RelationshipObject,
		Mappings: []RelationshipMapping{{
			SourceField:  "author_id",
			SourceColumn: "author_id",
			TargetField:  "author_id",
			TargetColumn: "id",
		}},
	}, rel.Info)

	assert.Equal(t, []string{"app.Article.author"}, usage.Relationships().Keys())
	assert.Equal(t, []string{"app.Authors"}, usage.Models().Keys())
}

func TestModelRelationship_PaginationAndArguments(t *testing.T) {
	f := newFixture(t)

	result, _, err := f.lower("Author", f.selection("Author",
		f.field("Author", "articles", "articles", f.selection("Article",
			f.field("Article", "title", "title", nil, nil),
		), map[string]normalized.Value{
			"limit":     integer(10),
			"offset":    integer(20),
			"min_words": integer(500),
		}),
	))
	require.NoError(t, err)

	rel := requireField[ModelRelationshipLocal](t, result, "articles")
	require.NotNil(t, rel.Query.Limit)
	require.NotNil(t, rel.Query.Offset)
	assert.Equal(t, uint32(10), *rel.Query.Limit)
	assert.Equal(t, uint32(20), *rel.Query.Offset)
	assert.Nil(t, rel.Query.Filter)
	assert.Equal(t, []string{"minimum_words"}, rel.Query.Arguments.Keys())
	words, _ := rel.Query.Arguments.Get("minimum_words")
	assert.Equal(t, Literal{Value: int64(500)}, words)
	assert.Equal(t, metadata.RelationshipArray, rel.Info.RelationshipType)
}

func TestModelRelationship_NegativeLimit(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.lower("Author", f.selection("Author",
		f.field("Author", "articles", "articles", f.selection("Article",
			f.field("Article", "title", "title", nil, nil),
		), map[string]normalized.Value{"limit": integer(-1)}),
	))
	require.ErrorIs(t, err, ErrArgumentConversion)
	var irErr *Error
	require.True(t, errors.As(err, &irErr))
	assert.Equal(t, "limit", irErr.Argument)
}

func TestModelRelationship_UniqueJoinNames(t *testing.T) {
	f := newFixture(t)

	result, _, err := f.lower("Author", f.selection("Author",
		f.field("Author", "articles", "articles", f.selection("Article",
			f.field("Article", "author", "author", f.selection("Author",
				f.field("Author", "articles", "articles", f.selection("Article",
					f.field("Article", "title", "title", nil, nil),
				), nil),
			), nil),
		), nil),
		f.field("Author", "more", "articles", f.selection("Article",
			f.field("Article", "title", "title", nil, nil),
		), nil),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"app__Author__articles",
		"app__Article__author",
		"app__Author__articles2",
		"app__Author__articles3",
	}, joinNames(result))
}

func TestModelRelationship_JoinNamesPerCall(t *testing.T) {
	f := newFixture(t)
	build := func() *normalized.SelectionSet {
		return f.selection("Article",
			f.field("Article", "author", "author", f.selection("Author",
				f.field("Author", "first_name", "first_name", nil, nil),
			), nil),
		)
	}

	first, _, err := f.lower("Article", build())
	require.NoError(t, err)
	second, _, err := f.lower("Article", build())
	require.NoError(t, err)
	assert.Equal(t, joinNames(first), joinNames(second))
}

func TestModelRelationship_Remote(t *testing.T) {
	f := newFixture(t)

	result, _, err := f.lower("Article", f.selection("Article",
		f.field("Article", "hits", "search_hits", f.selection("SearchHit",
			f.field("SearchHit", "score", "score", nil, nil),
		), map[string]normalized.Value{"term": str("graphql")}),
	))
	require.NoError(t, err)

	rel := requireField[ModelRelationshipRemote](t, result, "hits")
	assert.Equal(t, "app__Article__search_hits", rel.Name)
	assert.Equal(t, "hits", rel.IR.Collection)
	assert.Equal(t, testutil.Name("search"), rel.IR.DataConnector.Name)
	assert.Equal(t, testutil.Name("db"), rel.Info.SourceDataConnector)
	assert.Equal(t, testutil.Name("search"), rel.Info.TargetDataConnector)
	assert.Equal(t, []RelationshipMapping{{
		SourceField:  "article_id",
		SourceColumn: "id",
		TargetField:  "article_id",
		TargetColumn: "doc_id",
	}}, rel.Info.Mappings)
	term, ok := rel.IR.Arguments.Get("term")
	require.True(t, ok)
	assert.Equal(t, Literal{Value: "graphql"}, term)
	assert.Equal(t, []string{"score"}, rel.IR.Selection.Keys())
}

func TestModelRelationship_RemoteMissingArgument(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.lower("Article", f.selection("Article",
		f.field("Article", "hits", "search_hits", f.selection("SearchHit",
			f.field("SearchHit", "score", "score", nil, nil),
		), nil),
	))
	require.ErrorIs(t, err, ErrMissingNonNullableArgument)
	var irErr *Error
	require.True(t, errors.As(err, &irErr))
	assert.Equal(t, "term", irErr.Argument)
}

func TestModelRelationship_RemoteTargetLowersFromItsOwnRoot(t *testing.T) {
	f := newFixture(t)

	result, _, err := f.lower("SearchHit", f.selection("SearchHit",
		f.field("SearchHit", "article", "article", f.selection("Article",
			f.field("Article", "author", "author", f.selection("Author",
				f.field("Author", "first_name", "first_name", nil, nil),
			), nil),
		), nil),
	))
	require.NoError(t, err)

	rel := requireField[ModelRelationshipRemote](t, result, "article")
	inner := requireField[ModelRelationshipLocal](t, rel.IR.Selection, "author")
	assert.Equal(t, "app__Article__author", inner.Name)
}

func TestModelRelationship_ObjectNestedLocal(t *testing.T) {
	f := newFixture(t)

	result, _, err := f.lower("Article", f.selection("Article",
		f.field("Article", "meta", "meta", f.selection("ArticleMeta",
			f.field("ArticleMeta", "editor", "editor", f.selection("Author",
				f.field("Author", "first_name", "first_name", nil, nil),
			), nil),
		), nil),
	))
	require.NoError(t, err)

	meta := requireField[Column](t, result, "meta")
	object, ok := meta.NestedSelection.(ObjectSelection)
	require.True(t, ok)
	editor := requireField[ModelRelationshipLocal](t, object.Fields, "editor")
	assert.Equal(t, "app__ArticleMeta__editor", editor.Name)
	assert.Equal(t, "editor", editor.Info.Mappings[0].SourceColumn)
}

func TestModelRelationship_ArrayNestedRemoteFails(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.lower("Article", f.selection("Article",
		f.field("Article", "revisions", "revisions", f.selection("ArticleMeta",
			f.field("ArticleMeta", "editor", "editor", f.selection("Author",
				f.field("Author", "first_name", "first_name", nil, nil),
			), nil),
		), nil),
	))
	require.ErrorIs(t, err, ErrNestedRemoteRelationship)
	assert.Contains(t, err.Error(), "array")
}

func TestModelRelationship_NestedRemoteAtObjectNesting(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.lowerAt("Article", f.selection("Article",
		f.field("Article", "hits", "search_hits", f.selection("SearchHit",
			f.field("SearchHit", "score", "score", nil, nil),
		), map[string]normalized.Value{"term": str("x")}),
	), metadata.ObjectNested)
	require.ErrorIs(t, err, ErrNestedRemoteRelationship)
}

func TestIsLocal(t *testing.T) {
	full := &metadata.DataConnectorLink{Name: testutil.Name("db"), Capabilities: metadata.Capabilities{
		Relationships: true, NestedRelationships: true, NestedArrayRelationships: true,
	}}
	flat := &metadata.DataConnectorLink{Name: testutil.Name("db"), Capabilities: metadata.Capabilities{Relationships: true}}
	other := &metadata.DataConnectorLink{Name: testutil.Name("other"), Capabilities: full.Capabilities}
	none := &metadata.DataConnectorLink{Name: testutil.Name("db")}

	tests := []struct {
		name       string
		source     *metadata.DataConnectorLink
		target     *metadata.DataConnectorLink
		nestedness metadata.FieldNestedness
		want       bool
	}{
		{"same connector at root", flat, flat, metadata.NotNested, true},
		{"same connector without relationships", none, none, metadata.NotNested, false},
		{"different connector", full, other, metadata.NotNested, false},
		{"object nested without support", flat, flat, metadata.ObjectNested, false},
		{"object nested with support", full, full, metadata.ObjectNested, true},
		{"array nested with support", full, full, metadata.ArrayNested, true},
		{"missing source", nil, full, metadata.NotNested, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocal(tt.source, tt.target, tt.nestedness))
		})
	}
}

func TestCommandRelationship_Local(t *testing.T) {
	f := newFixture(t)

	result, usage, err := f.lower("Author", f.selection("Author",
		f.field("Author", "bio", "bio", f.selection("Bio",
			f.field("Bio", "text", "text", nil, nil),
		), map[string]normalized.Value{"style": str("short")}),
	))
	require.NoError(t, err)

	rel := requireField[CommandRelationshipLocal](t, result, "bio")
	assert.Equal(t, "app__Author__bio", rel.Name)
	assert.Equal(t, "author_bio", rel.IR.FunctionName)
	assert.Equal(t, []string{"style"}, rel.IR.Arguments.Keys())
	assert.Equal(t, []RelationshipMapping{{
		SourceField:    "author_id",
		SourceColumn:   "id",
		TargetArgument: "id",
	}}, rel.Info.Mappings)
	assert.Equal(t, metadata.RelationshipObject, rel.Info.RelationshipType)

	object, ok := rel.IR.Selection.(ObjectSelection)
	require.True(t, ok)
	assert.Equal(t, "body", requireField[Column](t, object.Fields, "text").Column)

	assert.Equal(t, []string{"app.author_bio"}, usage.Commands().Keys())
	assert.Equal(t, []string{"app.Author.bio"}, usage.Relationships().Keys())
}

func TestCommandRelationship_Remote(t *testing.T) {
	f := newFixture(t)

	result, _, err := f.lower("Article", f.selection("Article",
		f.field("Article", "terms", "related_terms", nil, map[string]normalized.Value{"max_terms": integer(3)}),
	))
	require.NoError(t, err)

	rel := requireField[CommandRelationshipRemote](t, result, "terms")
	assert.Equal(t, "app__Article__related_terms", rel.Name)
	assert.Equal(t, []string{"max_terms", "article_id"}, rel.IR.Arguments.Keys())
	maxTerms, _ := rel.IR.Arguments.Get("max_terms")
	assert.Equal(t, Literal{Value: int64(3)}, maxTerms)
	articleID, _ := rel.IR.Arguments.Get("article_id")
	assert.Equal(t, Variable{Name: "id"}, articleID)
	assert.Nil(t, rel.IR.Selection, "scalar command output has no nested selection")
	assert.Equal(t, metadata.RelationshipArray, rel.Info.RelationshipType)
}

func TestCommandRelationship_MappedArgumentRejected(t *testing.T) {
	f := newFixture(t)
	field := f.field("Author", "bio", "bio", f.selection("Bio",
		f.field("Bio", "text", "text", nil, nil),
	), nil)
	// author_id is filled from the source row and is not an argument of the field.
	call := field.FieldCalls[0]
	call.Arguments["author_id"] = &normalized.InputField{Name: "author_id", Value: integer(1)}

	_, _, err := f.lower("Author", f.selection("Author", field))
	require.ErrorIs(t, err, ErrUnexpectedAnnotation)
}

func TestRelationship_JSON(t *testing.T) {
	f := newFixture(t)

	result, _, err := f.lower("Article", f.selection("Article",
		f.field("Article", "author", "author", f.selection("Author",
			f.field("Author", "first_name", "first_name", nil, nil),
		), nil),
	))
	require.NoError(t, err)

	out := mustJSON(t, result)
	assert.Contains(t, out, `"type":"model_relationship_local"`)
	assert.Contains(t, out, `"name":"app__Article__author"`)
}
