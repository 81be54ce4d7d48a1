package ir

import (
	"fmt"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
)

// ModelSelection is a query against one connector collection.
type ModelSelection struct {
	DataConnector      *metadata.DataConnectorLink `json:"data_connector"`
	Collection         string                      `json:"collection"`
	Arguments          *Arguments                  `json:"arguments"`
	Filter             Expression                  `json:"filter,omitempty"`
	Limit              *uint32                     `json:"limit,omitempty"`
	Offset             *uint32                     `json:"offset,omitempty"`
	Selection          *ResultSelectionSet         `json:"selection,omitempty"`
	AggregateSelection *AggregateSelectionSet      `json:"aggregate_selection,omitempty"`
}

// Expression is a row filter. The set of implementations is closed.
type Expression interface {
	expression()
}

// And matches rows matching every expression.
type And struct {
	Expressions []Expression `json:"expressions"`
}

// Comparison compares a column with a literal.
type Comparison struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// OperatorEqual is the equality comparison operator.
const OperatorEqual = "_eq"

func (And) expression()        {}
func (Comparison) expression() {}

func (e And) MarshalJSON() ([]byte, error) {
	type and And
	return tagged("and", and(e))
}

func (e Comparison) MarshalJSON() ([]byte, error) {
	type comparison Comparison
	return tagged("comparison", comparison(e))
}

// conjunction returns the single expression or an And of all of them.
func conjunction(exprs []Expression) Expression {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	}
	return And{Expressions: exprs}
}

type modelSelectionKind int

const (
	selectMany modelSelectionKind = iota
	selectOne
	selectAggregate
)

// modelSelection lowers a selection of model. Arguments are classified by
// their annotation; unique identifier arguments are only accepted by select-one.
func (g *generator) modelSelection(model *metadata.Model, call *normalized.FieldCall, selectionSet *normalized.SelectionSet, kind modelSelectionKind) (*ModelSelection, error) {
	if model.Source == nil {
		return nil, internalf(call.Name, "model %s has no source", model.Name)
	}
	source, err := NewSource(model.Source.DataConnector, model.Source.TypeMappings, model.DataType)
	if err != nil {
		return nil, err
	}

	selection := &ModelSelection{
		DataConnector: model.Source.DataConnector,
		Collection:    model.Source.Collection,
	}
	modelArgs := map[string]*normalized.InputField{}
	var filters []Expression
	for _, name := range sortedArgumentNames(call.Arguments) {
		input := call.Arguments[name]
		switch info := input.Info.(type) {
		case schema.ModelLimitArgument:
			if selection.Limit, err = paginationValue(input.Value); err != nil {
				return nil, conversionFailed(name, call.Name, err)
			}
		case schema.ModelOffsetArgument:
			if selection.Offset, err = paginationValue(input.Value); err != nil {
				return nil, conversionFailed(name, call.Name, err)
			}
		case schema.ModelArgument:
			modelArgs[info.Argument.Name] = input
		case schema.UniqueIdentifierArgument:
			if kind != selectOne {
				return nil, unexpectedArgumentAnnotation(call.Name, name, input.Info)
			}
			fieldMapping, ok := source.FieldMappings[info.FieldName]
			if !ok {
				return nil, missingFieldMapping(info.FieldName, model.DataType)
			}
			value, err := convertValue(input.Value, info.Type, source.TypeMappings)
			if err != nil {
				return nil, conversionFailed(name, call.Name, err)
			}
			filters = append(filters, Comparison{Column: fieldMapping.Column, Operator: OperatorEqual, Value: value})
		default:
			return nil, unexpectedArgumentAnnotation(call.Name, name, input.Info)
		}
	}
	selection.Filter = conjunction(filters)

	if selection.Arguments, err = resolveArguments(model.Arguments, modelArgs, model.Source.ArgumentMappings, call.Name, source.TypeMappings); err != nil {
		return nil, err
	}

	if kind == selectAggregate {
		selection.AggregateSelection, err = g.aggregateSelection(selectionSet, source)
	} else {
		selection.Selection, err = g.generateSelectionSet(selectionSet, metadata.NotNested, source)
	}
	if err != nil {
		return nil, err
	}
	g.usage.RecordModel(model.Name)
	return selection, nil
}

func paginationValue(v normalized.Value) (*uint32, error) {
	switch v := v.(type) {
	case normalized.NullValue:
		return nil, nil
	case normalized.IntValue:
		if v.Value < 0 || v.Value > int64(^uint32(0)) {
			return nil, fmt.Errorf("value %d is out of range", v.Value)
		}
		n := uint32(v.Value)
		return &n, nil
	}
	return nil, fmt.Errorf("expected an integer, got %s", describeValue(v))
}
