// Package ir lowers normalized GraphQL selection sets into a connector-agnostic
// intermediate representation: the columns, nested selections, relationships
// and arguments each data connector must serve.
package ir

import (
	"encoding/json"

	"graphql-ir/internal/metadata"
)

// ResultSelectionSet maps output aliases to field selections in query order.
type ResultSelectionSet = OrderedMap[FieldSelection]

// Arguments maps connector argument names to resolved arguments.
type Arguments = OrderedMap[Argument]

// NewResultSelectionSet returns an empty selection set.
func NewResultSelectionSet() *ResultSelectionSet {
	return NewOrderedMap[FieldSelection]()
}

// ContainsColumn returns the first alias under which set selects column.
// Relationship selections never match.
func ContainsColumn(set *ResultSelectionSet, column string) (string, bool) {
	var alias string
	found := false
	set.Each(func(key string, field FieldSelection) {
		if c, ok := field.(Column); ok && !found && c.Column == column {
			alias, found = key, true
		}
	})
	return alias, found
}

// NewArguments returns an empty argument map.
func NewArguments() *Arguments {
	return NewOrderedMap[Argument]()
}

// FieldSelection is one lowered field. The set of implementations is closed.
type FieldSelection interface {
	fieldSelection()
}

// Column selects a connector column. NestedSelection is set iff the column
// holds an object or a (nested) array of objects.
type Column struct {
	Column          string          `json:"column"`
	NestedSelection NestedSelection `json:"nested_selection,omitempty"`
	Arguments       *Arguments      `json:"arguments"`
}

// ModelRelationshipLocal is a model relationship served by the parent's connector.
type ModelRelationshipLocal struct {
	Query *ModelSelection   `json:"query"`
	Name  string            `json:"name"`
	Info  *RelationshipInfo `json:"relationship_info"`
}

// CommandRelationshipLocal is a command relationship served by the parent's connector.
type CommandRelationshipLocal struct {
	IR   *FunctionBasedCommand `json:"ir"`
	Name string                `json:"name"`
	Info *RelationshipInfo     `json:"relationship_info"`
}

// ModelRelationshipRemote is a model relationship executed as a separate
// request and joined by the caller.
type ModelRelationshipRemote struct {
	IR   *ModelSelection   `json:"ir"`
	Name string            `json:"name"`
	Info *RelationshipInfo `json:"relationship_info"`
}

// CommandRelationshipRemote is a command relationship executed as a separate
// request and joined by the caller.
type CommandRelationshipRemote struct {
	IR   *FunctionBasedCommand `json:"ir"`
	Name string                `json:"name"`
	Info *RelationshipInfo     `json:"relationship_info"`
}

func (Column) fieldSelection()                    {}
func (ModelRelationshipLocal) fieldSelection()    {}
func (CommandRelationshipLocal) fieldSelection()  {}
func (ModelRelationshipRemote) fieldSelection()   {}
func (CommandRelationshipRemote) fieldSelection() {}

func (c Column) MarshalJSON() ([]byte, error) {
	type column Column
	return tagged("column", column(c))
}

func (r ModelRelationshipLocal) MarshalJSON() ([]byte, error) {
	type rel ModelRelationshipLocal
	return tagged("model_relationship_local", rel(r))
}

func (r CommandRelationshipLocal) MarshalJSON() ([]byte, error) {
	type rel CommandRelationshipLocal
	return tagged("command_relationship_local", rel(r))
}

func (r ModelRelationshipRemote) MarshalJSON() ([]byte, error) {
	type rel ModelRelationshipRemote
	return tagged("model_relationship_remote", rel(r))
}

func (r CommandRelationshipRemote) MarshalJSON() ([]byte, error) {
	type rel CommandRelationshipRemote
	return tagged("command_relationship_remote", rel(r))
}

// NestedSelection is the type skeleton below a column: either an object
// selection or one level of array wrapping around another nested selection.
type NestedSelection interface {
	nestedSelection()
}

// ObjectSelection selects fields of a nested object.
type ObjectSelection struct {
	Fields *ResultSelectionSet `json:"fields"`
}

// ArraySelection unwraps one level of list.
type ArraySelection struct {
	Element NestedSelection `json:"element"`
}

func (ObjectSelection) nestedSelection() {}
func (ArraySelection) nestedSelection()  {}

func (s ObjectSelection) MarshalJSON() ([]byte, error) {
	type object ObjectSelection
	return tagged("object", object(s))
}

func (s ArraySelection) MarshalJSON() ([]byte, error) {
	type array ArraySelection
	return tagged("array", array(s))
}

// Argument is a resolved connector argument.
type Argument interface {
	argument()
}

// Literal is a value known at lowering time.
type Literal struct {
	Value any `json:"value"`
}

// Variable is supplied per source row by the join executor, from the named source column.
type Variable struct {
	Name string `json:"name"`
}

func (Literal) argument()  {}
func (Variable) argument() {}

func (a Literal) MarshalJSON() ([]byte, error) {
	type literal Literal
	return tagged("literal", literal(a))
}

func (a Variable) MarshalJSON() ([]byte, error) {
	type variable Variable
	return tagged("variable", variable(a))
}

// RelationshipMapping correlates one source field with a target field or argument.
type RelationshipMapping struct {
	SourceField    string `json:"source_field"`
	SourceColumn   string `json:"source_column"`
	TargetField    string `json:"target_field,omitempty"`
	TargetColumn   string `json:"target_column,omitempty"`
	TargetArgument string `json:"target_argument,omitempty"`
}

// RelationshipInfo describes how parent rows and target rows are matched.
type RelationshipInfo struct {
	RelationshipName    string                    `json:"relationship_name"`
	SourceType          metadata.QualifiedName    `json:"source_type"`
	SourceDataConnector metadata.QualifiedName    `json:"source_data_connector"`
	TargetDataConnector metadata.QualifiedName    `json:"target_data_connector"`
	RelationshipType    metadata.RelationshipType `json:"relationship_type"`
	Mappings            []RelationshipMapping     `json:"mappings"`
}

// tagged encodes v with an additional "type" discriminator. v must encode to a JSON object.
func tagged(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	discriminator, _ := json.Marshal(kind)
	out := make([]byte, 0, len(body)+len(discriminator)+10)
	out = append(out, `{"type":`...)
	out = append(out, discriminator...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}
