package metadata_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/testutil"
)

func TestResolve_Library(t *testing.T) {
	md := testutil.LibraryMetadata(t)

	assert.Equal(t, "app", md.Subgraph)
	db := md.DataConnectors["db"]
	require.NotNil(t, db)
	assert.Equal(t, testutil.Name("db"), db.Name)
	assert.True(t, db.Capabilities.NestedRelationships)
	assert.False(t, db.Capabilities.NestedArrayRelationships)

	author := md.ObjectTypes[testutil.Name("Author")]
	require.NotNil(t, author)
	assert.Equal(t, []string{"author_id"}, author.GlobalIDFields)
	history, ok := author.Field("history")
	require.True(t, ok)
	assert.Equal(t, "[[Address]]", history.Type.String())

	authors := md.Models[testutil.Name("Authors")]
	require.NotNil(t, authors.Source)
	mapping := authors.Source.TypeMappings[testutil.Name("Author")]
	assert.Equal(t, "authors", mapping.ObjectType)
	assert.Equal(t, "id", mapping.FieldMappings["author_id"].Column)
	assert.Equal(t, map[string]string{"format": "fmt"}, mapping.FieldMappings["display_name"].ArgumentMappings)

	address := authors.Source.TypeMappings[testutil.Name("Address")]
	assert.Equal(t, "Address", address.ObjectType, "object type defaults to the type name")

	model, ok := md.GlobalIDModel(testutil.Name("Review"))
	require.True(t, ok)
	assert.Equal(t, testutil.Name("Reviews"), model.Name)
	_, ok = md.GlobalIDModel(testutil.Name("SearchHit"))
	assert.False(t, ok)

	assert.True(t, md.IsObjectType(metadata.CustomTypeName{Name: testutil.Name("Address")}))
	assert.False(t, md.IsObjectType(metadata.CustomTypeName{Name: testutil.Name("Timestamp")}))
	assert.False(t, md.IsObjectType(metadata.InbuiltTypeName{Type: metadata.InbuiltInt}))
}

func TestResolve_Relationships(t *testing.T) {
	md := testutil.LibraryMetadata(t)

	article := md.ObjectTypes[testutil.Name("Article")]
	var names []string
	for _, rel := range article.Relationships {
		names = append(names, rel.Name)
	}
	assert.Equal(t, []string{"author", "reviews", "search_hits", "related_terms"}, names)

	author := article.Relationships[0]
	require.NotNil(t, author.ModelTarget)
	assert.Equal(t, metadata.RelationshipObject, author.ModelTarget.Type)
	assert.Equal(t, testutil.Name("Authors"), author.ModelTarget.Model.Name)

	terms := article.Relationships[3]
	require.NotNil(t, terms.CommandTarget)
	assert.Equal(t, []metadata.CommandMapping{{SourceField: "article_id", TargetArgument: "article_id"}}, terms.CommandTarget.Mappings)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "unknown connector in type mapping",
			doc: `
objectTypes:
  - name: T
    fields: [{name: a, type: Int}]
    dataConnectorTypeMapping:
      - dataConnector: nowhere
        fieldMapping: {a: {column: a}}
`,
			wantErr: `unknown data connector "nowhere"`,
		},
		{
			name: "unknown field type",
			doc: `
objectTypes:
  - name: T
    fields: [{name: a, type: Missing}]
`,
			wantErr: `unknown type "Missing"`,
		},
		{
			name: "global id field not declared",
			doc: `
objectTypes:
  - name: T
    globalIdFields: [b]
    fields: [{name: a, type: Int}]
`,
			wantErr: `global id field "b"`,
		},
		{
			name: "scalar shadows built-in",
			doc: `
scalarTypes:
  - name: Int
`,
			wantErr: "shadows a built-in scalar",
		},
		{
			name: "relationship with both targets",
			doc: `
dataConnectors: [{name: db}]
objectTypes:
  - name: T
    fields: [{name: a, type: Int}]
    dataConnectorTypeMapping: [{dataConnector: db, fieldMapping: {a: {column: a}}}]
models:
  - name: Ts
    objectType: T
    source: {dataConnector: db, collection: t}
commands:
  - name: c
    outputType: Int
relationships:
  - name: r
    sourceType: T
    target:
      model: {name: Ts}
      command: {name: c}
`,
			wantErr: "targets both a model and a command",
		},
		{
			name: "relationship shadows field",
			doc: `
objectTypes:
  - name: T
    fields: [{name: a, type: Int}]
commands:
  - name: c
    outputType: Int
relationships:
  - name: a
    sourceType: T
    target:
      command: {name: c}
`,
			wantErr: `relationship "a" conflicts with a field`,
		},
		{
			name: "model without collection",
			doc: `
dataConnectors: [{name: db}]
objectTypes:
  - name: T
    fields: [{name: a, type: Int}]
    dataConnectorTypeMapping: [{dataConnector: db, fieldMapping: {a: {column: a}}}]
models:
  - name: Ts
    objectType: T
    source: {dataConnector: db}
`,
			wantErr: "source has no collection",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := metadata.Load(strings.NewReader(tt.doc))
			require.NoError(t, err)
			_, err = metadata.Resolve(doc)
			require.ErrorIs(t, err, metadata.ErrInvalidMetadata)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := metadata.Load(strings.NewReader("subgraph: app\nunknown: true\n"))
	require.Error(t, err)
}

func TestResolve_DefaultSubgraph(t *testing.T) {
	doc, err := metadata.Load(strings.NewReader("scalarTypes: [{name: Date}]\n"))
	require.NoError(t, err)
	md, err := metadata.Resolve(doc)
	require.NoError(t, err)
	assert.True(t, md.ScalarTypes[metadata.NewQualifiedName(metadata.DefaultSubgraph, "Date")])
}
