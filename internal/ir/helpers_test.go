package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
	"graphql-ir/internal/testutil"
)

// fixture builds normalized trees against the library schema the way the
// normalizer would, without parsing query text.
type fixture struct {
	t  *testing.T
	md *metadata.Metadata
	s  *schema.Schema
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := testutil.LibrarySchema(t)
	return &fixture{t: t, md: s.Metadata, s: s}
}

// selection builds a selection set on the named GraphQL type.
func (f *fixture) selection(typeName string, fields ...*normalized.Field) *normalized.SelectionSet {
	f.t.Helper()
	obj, ok := f.s.Object(typeName)
	require.True(f.t, ok, "unknown type %s", typeName)
	for _, field := range fields {
		if field.SelectionSet == nil {
			field.SelectionSet = &normalized.SelectionSet{TypeName: obj.DataType}
		}
	}
	return &normalized.SelectionSet{TypeName: obj.DataType, Fields: fields}
}

// field selects parentType.name under alias with the given sub-selection and arguments.
func (f *fixture) field(parentType, alias, name string, sub *normalized.SelectionSet, args map[string]normalized.Value) *normalized.Field {
	f.t.Helper()
	obj, ok := f.s.Object(parentType)
	require.True(f.t, ok, "unknown type %s", parentType)
	def, ok := obj.Field(name)
	require.True(f.t, ok, "unknown field %s.%s", parentType, name)

	call := &normalized.FieldCall{Name: name, Info: def.Info, Arguments: map[string]*normalized.InputField{}}
	for argName, value := range args {
		input, ok := def.Argument(argName)
		require.True(f.t, ok, "unknown argument %s of %s.%s", argName, parentType, name)
		call.Arguments[argName] = &normalized.InputField{Name: argName, Value: value, Info: input.Info}
	}
	return &normalized.Field{Alias: alias, SelectionSet: sub, FieldCalls: []*normalized.FieldCall{call}}
}

// source is the connector context of a metadata object type. SearchHit lives
// on the search connector, everything else on db.
func (f *fixture) source(typeName string) Source {
	f.t.Helper()
	model := f.md.Models[testutil.Name("Authors")]
	if typeName == "SearchHit" {
		model = f.md.Models[testutil.Name("SearchHits")]
	}
	src, err := NewSource(model.Source.DataConnector, model.Source.TypeMappings, testutil.Name(typeName))
	require.NoError(f.t, err)
	return src
}

func (f *fixture) lower(typeName string, sel *normalized.SelectionSet) (*ResultSelectionSet, *UsageCounts, error) {
	return f.lowerAt(typeName, sel, metadata.NotNested)
}

func (f *fixture) lowerAt(typeName string, sel *normalized.SelectionSet, nestedness metadata.FieldNestedness) (*ResultSelectionSet, *UsageCounts, error) {
	usage := NewUsageCounts()
	result, err := GenerateSelectionSetIR(sel, nestedness, f.source(typeName), Request{}, usage)
	return result, usage, err
}

func str(s string) normalized.Value { return normalized.StringValue{Value: s} }

func integer(i int64) normalized.Value { return normalized.IntValue{Value: i} }

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func requireField[T FieldSelection](t *testing.T, set *ResultSelectionSet, alias string) T {
	t.Helper()
	selection, ok := set.Get(alias)
	require.True(t, ok, "missing field %q", alias)
	typed, ok := selection.(T)
	require.True(t, ok, "field %q is %T", alias, selection)
	return typed
}

// joinNames collects every relationship name in the tree, depth first.
func joinNames(set *ResultSelectionSet) []string {
	var names []string
	set.Each(func(_ string, selection FieldSelection) {
		switch s := selection.(type) {
		case Column:
			names = append(names, nestedJoinNames(s.NestedSelection)...)
		case ModelRelationshipLocal:
			names = append(names, s.Name)
			names = append(names, joinNames(s.Query.Selection)...)
		case ModelRelationshipRemote:
			names = append(names, s.Name)
			names = append(names, joinNames(s.IR.Selection)...)
		case CommandRelationshipLocal:
			names = append(names, s.Name)
			names = append(names, nestedJoinNames(s.IR.Selection)...)
		case CommandRelationshipRemote:
			names = append(names, s.Name)
			names = append(names, nestedJoinNames(s.IR.Selection)...)
		}
	})
	return names
}

func nestedJoinNames(n NestedSelection) []string {
	switch n := n.(type) {
	case ObjectSelection:
		return joinNames(n.Fields)
	case ArraySelection:
		return nestedJoinNames(n.Element)
	}
	return nil
}
