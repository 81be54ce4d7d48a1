package ir

import (
	"fmt"

	"graphql-ir/internal/globalid"
	"graphql-ir/internal/metadata"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
)

// RootField is one lowered root field of a query. The set of implementations is closed.
type RootField interface {
	rootField()
}

// RootModelSelectMany lists rows of a model.
type RootModelSelectMany struct {
	Selection *ModelSelection `json:"selection"`
}

// RootModelSelectOne fetches the row of a model matching its unique identifier.
type RootModelSelectOne struct {
	Selection *ModelSelection `json:"selection"`
}

// RootModelAggregate aggregates rows of a model.
type RootModelAggregate struct {
	Selection *ModelSelection `json:"selection"`
}

// RootCommand invokes a command.
type RootCommand struct {
	Command *FunctionBasedCommand `json:"command"`
}

// RootNode fetches the row a global id identifies.
type RootNode struct {
	TypeName  metadata.QualifiedName `json:"typename"`
	Selection *ModelSelection        `json:"selection"`
}

func (RootModelSelectMany) rootField() {}
func (RootModelSelectOne) rootField()  {}
func (RootModelAggregate) rootField()  {}
func (RootCommand) rootField()         {}
func (RootNode) rootField()            {}

func (r RootModelSelectMany) MarshalJSON() ([]byte, error) {
	type root RootModelSelectMany
	return tagged("model_select_many", root(r))
}

func (r RootModelSelectOne) MarshalJSON() ([]byte, error) {
	type root RootModelSelectOne
	return tagged("model_select_one", root(r))
}

func (r RootModelAggregate) MarshalJSON() ([]byte, error) {
	type root RootModelAggregate
	return tagged("model_aggregate", root(r))
}

func (r RootCommand) MarshalJSON() ([]byte, error) {
	type root RootCommand
	return tagged("command", root(r))
}

func (r RootNode) MarshalJSON() ([]byte, error) {
	type root RootNode
	return tagged("node", root(r))
}

// QueryIR is the lowered form of a query operation.
type QueryIR struct {
	OperationName string                 `json:"operation_name,omitempty"`
	RootFields    *OrderedMap[RootField] `json:"root_fields"`
}

// GenerateQueryIR lowers every root field of a query operation in order.
// Root fields share one lowering call, so join names are unique across them.
func GenerateQueryIR(op *normalized.Operation, req Request) (*QueryIR, *UsageCounts, error) {
	if op == nil || op.Type != normalized.Query {
		return nil, nil, internalf("", "only query operations can be lowered")
	}
	usage := NewUsageCounts()
	g := newGenerator(req, usage)
	query := &QueryIR{OperationName: op.Name, RootFields: NewOrderedMap[RootField]()}
	if op.SelectionSet == nil {
		return query, usage, nil
	}

	for _, field := range op.SelectionSet.Fields {
		call, err := field.FieldCall()
		if err != nil {
			return nil, nil, internalf(field.Alias, "%v", err)
		}
		var root RootField
		switch info := call.Info.(type) {
		case schema.ModelSelectMany:
			selection, err := g.modelSelection(info.Model, call, field.SelectionSet, selectMany)
			if err != nil {
				return nil, nil, err
			}
			root = RootModelSelectMany{Selection: selection}
		case schema.ModelSelectOne:
			selection, err := g.modelSelection(info.Model, call, field.SelectionSet, selectOne)
			if err != nil {
				return nil, nil, err
			}
			root = RootModelSelectOne{Selection: selection}
		case schema.ModelSelectAggregate:
			selection, err := g.modelSelection(info.Model, call, field.SelectionSet, selectAggregate)
			if err != nil {
				return nil, nil, err
			}
			root = RootModelAggregate{Selection: selection}
		case schema.FunctionCommand:
			command, err := g.functionBasedCommand(info.Command, info.OutputKind, field, call, nil, false)
			if err != nil {
				return nil, nil, err
			}
			root = RootCommand{Command: command}
		case schema.NodeField:
			node, err := g.node(info, field, call)
			if err != nil {
				return nil, nil, err
			}
			root = node
		case schema.Introspection:
			continue
		default:
			return nil, nil, unexpectedAnnotation(field.Alias, call.Info)
		}
		query.RootFields.Set(field.Alias, root)
	}
	return query, usage, nil
}

// node resolves a global id to a single-row selection of the model backing its type.
func (g *generator) node(info schema.NodeField, field *normalized.Field, call *normalized.FieldCall) (RootNode, error) {
	var idValue normalized.Value
	for _, name := range sortedArgumentNames(call.Arguments) {
		input := call.Arguments[name]
		if _, ok := input.Info.(schema.NodeIDArgument); !ok {
			return RootNode{}, unexpectedArgumentAnnotation(call.Name, name, input.Info)
		}
		idValue = input.Value
	}
	id, ok := idValue.(normalized.StringValue)
	if !ok {
		return RootNode{}, missingArgument(schema.IDFieldName, call.Name)
	}
	decoded, err := globalid.Decode(id.Value)
	if err != nil {
		return RootNode{}, conversionFailed(schema.IDFieldName, call.Name, err)
	}

	if field.SelectionSet == nil || field.SelectionSet.TypeName == nil || field.SelectionSet.TypeName.Name != decoded.TypeName {
		return RootNode{}, &Error{Kind: ErrUnresolvedRelayTypeName, Field: field.Alias, Type: decoded.TypeName}
	}
	typeName := *field.SelectionSet.TypeName
	model, ok := info.Models[typeName]
	if !ok || model == nil || model.Source == nil {
		return RootNode{}, &Error{Kind: ErrUnresolvedRelayTypeName, Field: field.Alias, Type: typeName.String()}
	}
	idFields, ok := info.GlobalIDFields[typeName]
	if !ok {
		return RootNode{}, &Error{Kind: ErrUnresolvedGlobalIDField, Field: field.Alias, Type: typeName.String()}
	}
	source, err := NewSource(model.Source.DataConnector, model.Source.TypeMappings, model.DataType)
	if err != nil {
		return RootNode{}, err
	}

	filters := make([]Expression, 0, len(idFields))
	for _, name := range idFields {
		fieldMapping, ok := source.FieldMappings[name]
		if !ok {
			return RootNode{}, &Error{Kind: ErrUnresolvedGlobalIDField, Field: name, Type: typeName.String()}
		}
		raw, ok := decoded.Fields[name]
		if !ok {
			return RootNode{}, conversionFailed(schema.IDFieldName, call.Name, fmt.Errorf("id has no value for %q", name))
		}
		v, err := normalized.FromJSON(raw)
		if err != nil {
			return RootNode{}, conversionFailed(schema.IDFieldName, call.Name, err)
		}
		value, err := convertValue(v, fieldMapping.Type, source.TypeMappings)
		if err != nil {
			return RootNode{}, conversionFailed(schema.IDFieldName, call.Name, err)
		}
		filters = append(filters, Comparison{Column: fieldMapping.Column, Operator: OperatorEqual, Value: value})
	}

	selection, err := g.generateSelectionSet(field.SelectionSet, metadata.NotNested, source)
	if err != nil {
		return RootNode{}, err
	}
	limit := uint32(1)
	g.usage.RecordModel(model.Name)
	return RootNode{
		TypeName: typeName,
		Selection: &ModelSelection{
			DataConnector: model.Source.DataConnector,
			Collection:    model.Source.Collection,
			Arguments:     NewArguments(),
			Filter:        conjunction(filters),
			Limit:         &limit,
			Selection:     selection,
		},
	}, nil
}
