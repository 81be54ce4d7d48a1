package schema

import "graphql-ir/internal/metadata"

// TypeKind classifies the named type at the bottom of a field's type.
type TypeKind int

const (
	TypeKindScalar TypeKind = iota
	TypeKindObject
)

func (k TypeKind) String() string {
	if k == TypeKindObject {
		return "object"
	}
	return "scalar"
}

// Annotation is the semantic tag attached to an output field. The set of
// implementations is closed.
type Annotation interface {
	annotation()
	Kind() string
}

// Introspection tags __typename, __schema and __type.
type Introspection struct{}

// OutputField tags a declared field of an object type.
type OutputField struct {
	FieldName string
	BaseKind  TypeKind
	Arguments []metadata.Argument
}

// GlobalIDField tags the virtual id field of a type with global id fields.
type GlobalIDField struct {
	Fields []string
}

// RelayNodeInterfaceID tags the id field of the Node interface. The concrete
// type is only known once the node id has been decoded.
type RelayNodeInterfaceID struct {
	GlobalIDFields map[metadata.QualifiedName][]string
}

// RelationshipToModel tags a relationship field targeting a model.
type RelationshipToModel struct {
	Relationship *metadata.Relationship
}

// RelationshipToModelAggregate tags the aggregate field of an array relationship.
type RelationshipToModelAggregate struct {
	Relationship *metadata.Relationship
}

// RelationshipToCommand tags a relationship field targeting a command.
type RelationshipToCommand struct {
	Relationship *metadata.Relationship
	// OutputKind classifies the named type at the bottom of the command's output type.
	OutputKind TypeKind
}

// AggregateCount tags the row count of an aggregate type.
type AggregateCount struct{}

// AggregatableField tags a field of an aggregate type whose selections apply
// aggregation functions to one column.
type AggregatableField struct {
	FieldName string
}

// AggregateColumnCount tags a count of non-null (optionally distinct) values of a column.
type AggregateColumnCount struct {
	Distinct bool
}

// AggregationFunction tags a connector aggregation function applied to a column.
type AggregationFunction struct {
	Function string
}

// ModelSelectMany tags the root field listing a model.
type ModelSelectMany struct {
	Model *metadata.Model
}

// ModelSelectOne tags the root field fetching a model row by its unique identifier.
type ModelSelectOne struct {
	Model *metadata.Model
}

// ModelSelectAggregate tags the root field aggregating a model.
type ModelSelectAggregate struct {
	Model *metadata.Model
}

// FunctionCommand tags the root field invoking a command.
type FunctionCommand struct {
	Command    *metadata.Command
	OutputKind TypeKind
}

// NodeField tags the root node field. Models maps every type implementing
// Node to the model its global ids are resolved against.
type NodeField struct {
	Models         map[metadata.QualifiedName]*metadata.Model
	GlobalIDFields map[metadata.QualifiedName][]string
}

func (Introspection) annotation()                {}
func (OutputField) annotation()                  {}
func (GlobalIDField) annotation()                {}
func (RelayNodeInterfaceID) annotation()         {}
func (RelationshipToModel) annotation()          {}
func (RelationshipToModelAggregate) annotation() {}
func (RelationshipToCommand) annotation()        {}
func (AggregateCount) annotation()               {}
func (AggregatableField) annotation()            {}
func (AggregateColumnCount) annotation()         {}
func (AggregationFunction) annotation()          {}
func (ModelSelectMany) annotation()              {}
func (ModelSelectOne) annotation()               {}
func (ModelSelectAggregate) annotation()         {}
func (FunctionCommand) annotation()              {}
func (NodeField) annotation()                    {}

func (Introspection) Kind() string                { return "Introspection" }
func (OutputField) Kind() string                  { return "OutputField" }
func (GlobalIDField) Kind() string                { return "GlobalIDField" }
func (RelayNodeInterfaceID) Kind() string         { return "RelayNodeInterfaceID" }
func (RelationshipToModel) Kind() string          { return "RelationshipToModel" }
func (RelationshipToModelAggregate) Kind() string { return "RelationshipToModelAggregate" }
func (RelationshipToCommand) Kind() string        { return "RelationshipToCommand" }
func (AggregateCount) Kind() string               { return "AggregateCount" }
func (AggregatableField) Kind() string            { return "AggregatableField" }
func (AggregateColumnCount) Kind() string         { return "AggregateColumnCount" }
func (AggregationFunction) Kind() string          { return "AggregationFunction" }
func (ModelSelectMany) Kind() string              { return "ModelSelectMany" }
func (ModelSelectOne) Kind() string               { return "ModelSelectOne" }
func (ModelSelectAggregate) Kind() string         { return "ModelSelectAggregate" }
func (FunctionCommand) Kind() string              { return "FunctionCommand" }
func (NodeField) Kind() string                    { return "NodeField" }

// InputAnnotation is the semantic tag attached to an argument.
type InputAnnotation interface {
	inputAnnotation()
	Kind() string
}

// FieldArgument tags an argument of a declared object field.
type FieldArgument struct {
	Argument metadata.Argument
}

// ModelArgument tags a model argument.
type ModelArgument struct {
	Argument metadata.Argument
}

// CommandArgument tags a command argument.
type CommandArgument struct {
	Argument metadata.Argument
}

// ModelLimitArgument tags the limit argument of a model selection.
type ModelLimitArgument struct{}

// ModelOffsetArgument tags the offset argument of a model selection.
type ModelOffsetArgument struct{}

// UniqueIdentifierArgument tags an argument of a select-one field naming a key field.
type UniqueIdentifierArgument struct {
	FieldName string
	Type      metadata.TypeReference
}

// NodeIDArgument tags the id argument of the node field.
type NodeIDArgument struct{}

func (FieldArgument) inputAnnotation()            {}
func (ModelArgument) inputAnnotation()            {}
func (CommandArgument) inputAnnotation()          {}
func (ModelLimitArgument) inputAnnotation()       {}
func (ModelOffsetArgument) inputAnnotation()      {}
func (UniqueIdentifierArgument) inputAnnotation() {}
func (NodeIDArgument) inputAnnotation()           {}

func (FieldArgument) Kind() string            { return "FieldArgument" }
func (ModelArgument) Kind() string            { return "ModelArgument" }
func (CommandArgument) Kind() string          { return "CommandArgument" }
func (ModelLimitArgument) Kind() string       { return "ModelLimitArgument" }
func (ModelOffsetArgument) Kind() string      { return "ModelOffsetArgument" }
func (UniqueIdentifierArgument) Kind() string { return "UniqueIdentifierArgument" }
func (NodeIDArgument) Kind() string           { return "NodeIDArgument" }
