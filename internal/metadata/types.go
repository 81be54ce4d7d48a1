// Package metadata holds the resolved, immutable metadata the IR lowering pass reads:
// qualified type names, type references, connector links, type and field mappings,
// models, commands and relationships.
package metadata

import (
	"fmt"
	"strings"
)

// QualifiedName is a metadata object name scoped to the subgraph that defined it.
type QualifiedName struct {
	Subgraph string `json:"subgraph"`
	Name     string `json:"name"`
}

// NewQualifiedName returns a name qualified by subgraph.
func NewQualifiedName(subgraph, name string) QualifiedName {
	return QualifiedName{Subgraph: subgraph, Name: name}
}

func (q QualifiedName) String() string {
	if q.Subgraph == "" {
		return q.Name
	}
	return fmt.Sprintf("%s (in subgraph %s)", q.Name, q.Subgraph)
}

// MarshalText lets qualified names key JSON objects.
func (q QualifiedName) MarshalText() ([]byte, error) {
	if q.Subgraph == "" {
		return []byte(q.Name), nil
	}
	return []byte(q.Subgraph + "." + q.Name), nil
}

// InbuiltType enumerates the built-in GraphQL scalars.
type InbuiltType string

const (
	InbuiltID      InbuiltType = "ID"
	InbuiltInt     InbuiltType = "Int"
	InbuiltFloat   InbuiltType = "Float"
	InbuiltString  InbuiltType = "String"
	InbuiltBoolean InbuiltType = "Boolean"
)

// LookupInbuiltType reports whether name is a built-in scalar.
func LookupInbuiltType(name string) (InbuiltType, bool) {
	switch InbuiltType(name) {
	case InbuiltID, InbuiltInt, InbuiltFloat, InbuiltString, InbuiltBoolean:
		return InbuiltType(name), true
	}
	return "", false
}

// TypeName is either an InbuiltTypeName or a CustomTypeName.
type TypeName interface {
	typeName()
	String() string
}

// InbuiltTypeName names a built-in scalar.
type InbuiltTypeName struct {
	Type InbuiltType
}

func (InbuiltTypeName) typeName() {}

func (t InbuiltTypeName) String() string { return string(t.Type) }

// CustomTypeName names a metadata-defined scalar or object type.
type CustomTypeName struct {
	Name QualifiedName
}

func (CustomTypeName) typeName() {}

func (t CustomTypeName) String() string { return t.Name.Name }

// BaseType is the unwrapped shape of a type reference: a list or a named type.
type BaseType interface {
	baseType()
}

// ListType wraps an element type reference.
type ListType struct {
	Element TypeReference
}

func (ListType) baseType() {}

// NamedType terminates a type reference.
type NamedType struct {
	Name TypeName
}

func (NamedType) baseType() {}

// TypeReference is a possibly list-wrapped, possibly nullable type.
type TypeReference struct {
	Underlying BaseType
	Nullable   bool
}

// Named builds a reference to a named type.
func Named(name TypeName, nullable bool) TypeReference {
	return TypeReference{Underlying: NamedType{Name: name}, Nullable: nullable}
}

// List builds a reference to a list of element.
func List(element TypeReference, nullable bool) TypeReference {
	return TypeReference{Underlying: ListType{Element: element}, Nullable: nullable}
}

// Inbuilt builds a reference to a built-in scalar.
func Inbuilt(t InbuiltType, nullable bool) TypeReference {
	return Named(InbuiltTypeName{Type: t}, nullable)
}

// Custom builds a reference to a custom type.
func Custom(name QualifiedName, nullable bool) TypeReference {
	return Named(CustomTypeName{Name: name}, nullable)
}

// NamedTypeName returns the innermost named type of the reference.
func (t TypeReference) NamedTypeName() TypeName {
	switch base := t.Underlying.(type) {
	case ListType:
		return base.Element.NamedTypeName()
	case NamedType:
		return base.Name
	}
	return nil
}

// IsList reports whether the outermost layer is a list.
func (t TypeReference) IsList() bool {
	_, ok := t.Underlying.(ListType)
	return ok
}

// String renders the reference in GraphQL syntax, e.g. "[Int!]!".
func (t TypeReference) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t TypeReference) write(b *strings.Builder) {
	switch base := t.Underlying.(type) {
	case ListType:
		b.WriteByte('[')
		base.Element.write(b)
		b.WriteByte(']')
	case NamedType:
		if base.Name != nil {
			b.WriteString(base.Name.String())
		}
	}
	if !t.Nullable {
		b.WriteByte('!')
	}
}

// MarshalText renders the reference in GraphQL syntax.
func (t TypeReference) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FieldNestedness is a watermark of how deep a field sits below its selection root.
// The order NotNested < ObjectNested < ArrayNested is significant.
type FieldNestedness int

const (
	NotNested FieldNestedness = iota
	ObjectNested
	ArrayNested
)

// Max returns the deeper of the two watermarks.
func (n FieldNestedness) Max(other FieldNestedness) FieldNestedness {
	if other > n {
		return other
	}
	return n
}

func (n FieldNestedness) String() string {
	switch n {
	case NotNested:
		return "not_nested"
	case ObjectNested:
		return "object_nested"
	case ArrayNested:
		return "array_nested"
	}
	return fmt.Sprintf("nestedness(%d)", int(n))
}

// Capabilities are the statically declared relationship capabilities of a connector.
type Capabilities struct {
	Relationships            bool `json:"relationships"`
	NestedRelationships      bool `json:"nested_relationships"`
	NestedArrayRelationships bool `json:"nested_array_relationships"`
	Aggregates               bool `json:"aggregates"`
}

// DataConnectorLink identifies the backend a (sub)selection targets.
type DataConnectorLink struct {
	Name         QualifiedName `json:"name"`
	URL          string        `json:"url"`
	Capabilities Capabilities  `json:"capabilities"`
}

// FieldMapping maps a schema field to the connector column realising it.
type FieldMapping struct {
	Column string `json:"column"`
	// Type is the declared schema type of the field, used to convert input values.
	Type TypeReference `json:"type"`
	// ArgumentMappings maps schema argument names to connector argument names.
	ArgumentMappings map[string]string `json:"argument_mappings,omitempty"`
}

// TypeMapping is the connector representation of one object type.
type TypeMapping struct {
	ObjectType    string                  `json:"object_type"`
	FieldMappings map[string]FieldMapping `json:"field_mappings"`
}

// TypeMappings is keyed by the schema object type.
type TypeMappings map[QualifiedName]TypeMapping

// ModelSource binds a model to a connector collection.
type ModelSource struct {
	DataConnector    *DataConnectorLink `json:"data_connector"`
	Collection       string             `json:"collection"`
	TypeMappings     TypeMappings       `json:"-"`
	ArgumentMappings map[string]string  `json:"argument_mappings,omitempty"`
}

// CommandSource binds a command to a connector function.
type CommandSource struct {
	DataConnector    *DataConnectorLink `json:"data_connector"`
	Function         string             `json:"function"`
	TypeMappings     TypeMappings       `json:"-"`
	ArgumentMappings map[string]string  `json:"argument_mappings,omitempty"`
}

// Argument is a declared model, command or field argument.
type Argument struct {
	Name string
	Type TypeReference
}

// ObjectField is a declared output field of an object type.
type ObjectField struct {
	Name      string
	Type      TypeReference
	Arguments []Argument
}

// ObjectType is a resolved object type.
type ObjectType struct {
	Name           QualifiedName
	Fields         []ObjectField
	GlobalIDFields []string
	Relationships  []*Relationship
}

// Field returns the declared field with the given name.
func (o *ObjectType) Field(name string) (ObjectField, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ObjectField{}, false
}

// Model is a resolved collection-backed model.
type Model struct {
	Name             QualifiedName
	DataType         QualifiedName
	Arguments        []Argument
	UniqueIdentifier []string
	GlobalIDSource   bool
	Source           *ModelSource
}

// Command is a resolved function-backed command.
type Command struct {
	Name       QualifiedName
	OutputType TypeReference
	Arguments  []Argument
	Source     *CommandSource
}

// RelationshipType is the cardinality of a model relationship.
type RelationshipType string

const (
	RelationshipObject RelationshipType = "Object"
	RelationshipArray  RelationshipType = "Array"
)

// ModelMapping correlates a source field with a target model field.
type ModelMapping struct {
	SourceField string
	TargetField string
}

// CommandMapping feeds a source field into a target command argument.
type CommandMapping struct {
	SourceField    string
	TargetArgument string
}

// ModelTarget is the target of a model relationship.
type ModelTarget struct {
	Model    *Model
	Type     RelationshipType
	Mappings []ModelMapping
}

// CommandTarget is the target of a command relationship.
type CommandTarget struct {
	Command  *Command
	Mappings []CommandMapping
}

// Relationship is declared on a source object type and targets exactly one of a model or a command.
type Relationship struct {
	Name          string
	SourceType    QualifiedName
	ModelTarget   *ModelTarget
	CommandTarget *CommandTarget
}

// Metadata is the immutable result of Resolve.
type Metadata struct {
	Subgraph       string
	DataConnectors map[string]*DataConnectorLink
	ScalarTypes    map[QualifiedName]bool
	ObjectTypes    map[QualifiedName]*ObjectType
	Models         map[QualifiedName]*Model
	Commands       map[QualifiedName]*Command
	// ObjectTypeOrder, ModelOrder and CommandOrder preserve declaration order.
	ObjectTypeOrder []QualifiedName
	ModelOrder      []QualifiedName
	CommandOrder    []QualifiedName
}

// IsObjectType reports whether the named type is a declared object type.
func (m *Metadata) IsObjectType(name TypeName) bool {
	custom, ok := name.(CustomTypeName)
	if !ok {
		return false
	}
	_, ok = m.ObjectTypes[custom.Name]
	return ok
}

// GlobalIDModel returns the model acting as global-id source for an object type.
func (m *Metadata) GlobalIDModel(objectType QualifiedName) (*Model, bool) {
	for _, name := range m.ModelOrder {
		model := m.Models[name]
		if model.GlobalIDSource && model.DataType == objectType {
			return model, true
		}
	}
	return nil, false
}
