package schema_test

import (
	"strings"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/naming"
	"graphql-ir/internal/schema"
	"graphql-ir/internal/testutil"
)

func TestBuild_QueryRoot(t *testing.T) {
	s := testutil.LibrarySchema(t)

	var names []string
	for _, f := range s.Query.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"authors", "author", "authorsAggregate",
		"articles", "article", "articlesAggregate",
		"reviews", "review", "reviewsAggregate",
		"searchHits",
		"authorBio", "trendingArticles", "relatedTerms",
		"node",
	}, names)

	authors, ok := s.Query.Field("authors")
	require.True(t, ok)
	assert.Equal(t, "[Author!]!", authors.Type.String())
	assert.IsType(t, schema.ModelSelectMany{}, authors.Info)

	review, ok := s.Query.Field("review")
	require.True(t, ok)
	require.Len(t, review.Arguments, 2)
	assert.Equal(t, "article_id", review.Arguments[0].Name)
	assert.Equal(t, "Int!", review.Arguments[0].Type.String())
	assert.Equal(t, schema.UniqueIdentifierArgument{
		FieldName: "reviewer",
		Type:      metadata.Inbuilt(metadata.InbuiltString, false),
	}, review.Arguments[1].Info)

	articles, ok := s.Query.Field("articles")
	require.True(t, ok)
	minWords, ok := articles.Argument("min_words")
	require.True(t, ok)
	assert.Equal(t, "ModelArgument", minWords.Info.Kind())

	bio, ok := s.Query.Field("authorBio")
	require.True(t, ok)
	assert.Equal(t, "Bio", bio.Type.String())
	assert.Len(t, bio.Arguments, 2)
}

func TestBuild_ObjectFields(t *testing.T) {
	s := testutil.LibrarySchema(t)

	author, ok := s.Object("Author")
	require.True(t, ok)
	require.NotNil(t, author.DataType)
	assert.Equal(t, testutil.Name("Author"), *author.DataType)
	assert.True(t, author.Implements(schema.NodeTypeName))

	history, ok := author.Field("history")
	require.True(t, ok)
	assert.Equal(t, "[[Address]]", history.Type.String())
	info, ok := history.Info.(schema.OutputField)
	require.True(t, ok)
	assert.Equal(t, schema.TypeKindObject, info.BaseKind)

	tags, ok := author.Field("tags")
	require.True(t, ok)
	assert.Equal(t, schema.TypeKindScalar, tags.Info.(schema.OutputField).BaseKind)

	id, ok := author.Field("id")
	require.True(t, ok)
	assert.Equal(t, schema.GlobalIDField{Fields: []string{"author_id"}}, id.Info)

	articles, ok := author.Field("articles")
	require.True(t, ok)
	assert.Equal(t, "[Article!]!", articles.Type.String())
	assert.IsType(t, schema.RelationshipToModel{}, articles.Info)
	_, hasLimit := articles.Argument("limit")
	assert.True(t, hasLimit)

	agg, ok := author.Field("articlesAggregate")
	require.True(t, ok)
	assert.Equal(t, "ArticleAggregate!", agg.Type.String())

	bio, ok := author.Field("bio")
	require.True(t, ok)
	assert.IsType(t, schema.RelationshipToCommand{}, bio.Info)
	require.Len(t, bio.Arguments, 1, "mapped command arguments are not exposed")
	assert.Equal(t, "style", bio.Arguments[0].Name)
}

func TestBuild_AggregateTypes(t *testing.T) {
	s := testutil.LibrarySchema(t)

	agg, ok := s.Object("ArticleAggregate")
	require.True(t, ok)
	count, ok := agg.Field("_count")
	require.True(t, ok)
	assert.Equal(t, schema.AggregateCount{}, count.Info)

	_, ok = agg.Field("meta")
	assert.False(t, ok, "object fields are not aggregatable")

	words, ok := agg.Field("word_count")
	require.True(t, ok)
	assert.Equal(t, schema.AggregatableField{FieldName: "word_count"}, words.Info)

	operand, ok := s.Object(words.Type.NamedType())
	require.True(t, ok)
	sum, ok := operand.Field("_sum")
	require.True(t, ok)
	assert.Equal(t, schema.AggregationFunction{Function: "sum"}, sum.Info)

	titles, ok := s.Object("ArticleTitleAggregate")
	require.True(t, ok)
	_, ok = titles.Field("_sum")
	assert.False(t, ok, "only numeric columns can be summed")
}

func TestBuild_NodeInterface(t *testing.T) {
	s := testutil.LibrarySchema(t)

	node, ok := s.Object(schema.NodeTypeName)
	require.True(t, ok)
	assert.True(t, node.IsInterface)
	assert.Equal(t, []string{"Author", "Article", "Review"}, node.PossibleTypes)

	id, ok := node.Field("id")
	require.True(t, ok)
	info, ok := id.Info.(schema.RelayNodeInterfaceID)
	require.True(t, ok)
	assert.Equal(t, []string{"article_id", "reviewer"}, info.GlobalIDFields[testutil.Name("Review")])
}

func TestBuild_RejectsIDFieldWithGlobalID(t *testing.T) {
	md := &metadata.Metadata{
		Subgraph:    "app",
		ScalarTypes: map[metadata.QualifiedName]bool{},
		ObjectTypes: map[metadata.QualifiedName]*metadata.ObjectType{
			testutil.Name("Thing"): {
				Name:           testutil.Name("Thing"),
				Fields:         []metadata.ObjectField{{Name: "id", Type: metadata.Inbuilt(metadata.InbuiltInt, false)}},
				GlobalIDFields: []string{"id"},
			},
		},
		ObjectTypeOrder: []metadata.QualifiedName{testutil.Name("Thing")},
	}

	_, err := schema.Build(md, naming.Default())
	require.ErrorIs(t, err, schema.ErrInvalidSchema)
}

func TestSDL(t *testing.T) {
	sdl := testutil.LibrarySchema(t).SDL()

	assert.Contains(t, sdl, "type Query {\n  authors(limit: Int, offset: Int): [Author!]!\n")
	assert.Contains(t, sdl, "interface Node {\n  id: ID!\n}")
	assert.Contains(t, sdl, "type Author implements Node {")
	assert.Contains(t, sdl, "  display_name(format: String!, locale: String): String\n")
}

func parse(t *testing.T, query string) *ast.Document {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)
	return doc
}

func TestValidateDocument(t *testing.T) {
	s := testutil.LibrarySchema(t)

	valid := []string{
		`query ($id: Int!, $fmt: String = "short") { author(author_id: $id) { display_name(format: $fmt) } }`,
		`query ($id: ID!) { node(id: $id) { id ... on Review { rating } ... on Author { first_name } } }`,
		`{ authors { ...Names } } fragment Names on Author { first_name }`,
		`{ articles { published_at author { first_name @include(if: true) } } }`,
	}
	for _, query := range valid {
		assert.NoError(t, s.ValidateDocument(parse(t, query)), query)
	}

	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"undeclared variable", `query { authors(limit: $nope) { first_name } }`, `Variable "$nope" is not defined.`},
		{"variable in nested argument", `query ($id: Int!) { author(author_id: $id) { display_name(format: $f) } }`, `Variable "$f" is not defined.`},
		{"nullable variable in required position", `query ($id: Int) { author(author_id: $id) { first_name } }`, `expecting type "Int!"`},
		{"unknown variable type", `query ($when: Date) { authors { first_name } }`, `Unknown type "Date".`},
		{"output type variable", `query ($a: Author) { authors { first_name } }`, `cannot be non-input type "Author"`},
		{"unknown directive", `{ authors { first_name @cached } }`, `Unknown directive "cached".`},
		{"fragment on scalar", `{ authors { ... on String { x } } }`, `Fragment cannot condition on non composite type "String".`},
		{"impossible spread", `{ authors { ...Hit } } fragment Hit on SearchHit { score }`, `Fragment "Hit" cannot be spread here`},
		{"duplicate operation", `query A { authors { first_name } } query A { articles { title } }`, `There can only be one operation named "A".`},
		{"anonymous with others", `{ authors { first_name } } query B { articles { title } }`, `This anonymous operation must be the only defined operation.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateDocument(parse(t, tt.query))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestBuild_ObjectArgumentsBecomeInputObjects(t *testing.T) {
	doc, err := metadata.Load(strings.NewReader(`
subgraph: app
dataConnectors:
  - name: geo
    url: http://geo:8080
scalarTypes:
  - name: Point
objectTypes:
  - name: Address
    fields:
      - name: street
        type: String!
      - name: location
        type: Point
      - name: parts
        type: "[Address!]"
commands:
  - name: geocode
    outputType: Point
    arguments:
      - name: address
        type: Address!
    source:
      dataConnector: geo
      function: geocode
`))
	require.NoError(t, err)
	md, err := metadata.Resolve(doc)
	require.NoError(t, err)
	s, err := schema.Build(md, naming.Default())
	require.NoError(t, err)

	geocode, ok := s.Query.Field("geocode")
	require.True(t, ok)
	assert.Equal(t, "Address!", geocode.Arguments[0].Type.String())

	assert.NoError(t, s.ValidateDocument(parse(t, `query ($a: AddressInput!) { geocode(address: $a) }`)))

	err = s.ValidateDocument(parse(t, `query ($a: Address!) { geocode(address: $a) }`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot be non-input type "Address!"`)
}
