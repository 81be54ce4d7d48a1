package ir

import (
	"strings"

	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
)

// AggregateSelectionSet maps alias paths ("words._max") to aggregates in query order.
type AggregateSelectionSet = OrderedMap[AggregateSelection]

// AggregateSelection is one requested aggregate. The set of implementations is closed.
type AggregateSelection interface {
	aggregateSelection()
}

// AggregateCount counts rows.
type AggregateCount struct{}

// AggregateColumnCount counts non-null values of a column.
type AggregateColumnCount struct {
	Column   string `json:"column"`
	Distinct bool   `json:"distinct"`
}

// AggregateFunction applies a connector aggregation function to a column.
type AggregateFunction struct {
	Column   string `json:"column"`
	Function string `json:"function"`
}

func (AggregateCount) aggregateSelection()       {}
func (AggregateColumnCount) aggregateSelection() {}
func (AggregateFunction) aggregateSelection()    {}

func (a AggregateCount) MarshalJSON() ([]byte, error) {
	return tagged("count", struct{}{})
}

func (a AggregateColumnCount) MarshalJSON() ([]byte, error) {
	type count AggregateColumnCount
	return tagged("column_count", count(a))
}

func (a AggregateFunction) MarshalJSON() ([]byte, error) {
	type function AggregateFunction
	return tagged("function", function(a))
}

// AliasPath joins the aliases leading to an aggregate.
func AliasPath(aliases ...string) string {
	return strings.Join(aliases, ".")
}

func (g *generator) aggregateSelection(selectionSet *normalized.SelectionSet, source Source) (*AggregateSelectionSet, error) {
	result := NewOrderedMap[AggregateSelection]()
	if selectionSet == nil {
		return result, nil
	}
	for _, field := range selectionSet.Fields {
		call, err := field.FieldCall()
		if err != nil {
			return nil, internalf(field.Alias, "%v", err)
		}
		switch info := call.Info.(type) {
		case schema.AggregateCount:
			result.Set(AliasPath(field.Alias), AggregateCount{})
		case schema.AggregatableField:
			fieldMapping, ok := source.FieldMappings[info.FieldName]
			if !ok {
				return nil, missingFieldMapping(info.FieldName, source.TypeName)
			}
			if err := columnAggregates(result, field, fieldMapping.Column); err != nil {
				return nil, err
			}
		case schema.Introspection:
			continue
		default:
			return nil, unexpectedAnnotation(field.Alias, call.Info)
		}
	}
	return result, nil
}

func columnAggregates(result *AggregateSelectionSet, field *normalized.Field, column string) error {
	if field.SelectionSet == nil {
		return nil
	}
	for _, inner := range field.SelectionSet.Fields {
		call, err := inner.FieldCall()
		if err != nil {
			return internalf(inner.Alias, "%v", err)
		}
		path := AliasPath(field.Alias, inner.Alias)
		switch info := call.Info.(type) {
		case schema.AggregateColumnCount:
			result.Set(path, AggregateColumnCount{Column: column, Distinct: info.Distinct})
		case schema.AggregationFunction:
			result.Set(path, AggregateFunction{Column: column, Function: info.Function})
		case schema.Introspection:
			continue
		default:
			return unexpectedAnnotation(inner.Alias, call.Info)
		}
	}
	return nil
}
