// Package schema builds the annotated GraphQL schema that queries are
// normalized against. Every field and argument carries the semantic tag the
// IR lowering pass dispatches on.
package schema

import (
	"fmt"
	"strings"

	"github.com/graphql-go/graphql"

	"graphql-ir/internal/metadata"
)

// Standard names of the schema.
const (
	QueryTypeName = "Query"
	NodeTypeName  = "Node"
	NodeFieldName = "node"
	IDFieldName   = "id"
	LimitArgName  = "limit"
	OffsetArgName = "offset"
)

// Type is a GraphQL type reference: a named type or a list, each optionally non-null.
type Type struct {
	Name    string
	OfType  *Type
	NonNull bool
}

// NamedType returns the innermost type name.
func (t *Type) NamedType() string {
	for t.OfType != nil {
		t = t.OfType
	}
	return t.Name
}

func (t *Type) String() string {
	var b strings.Builder
	if t.OfType != nil {
		b.WriteString("[" + t.OfType.String() + "]")
	} else {
		b.WriteString(t.Name)
	}
	if t.NonNull {
		b.WriteByte('!')
	}
	return b.String()
}

// InputValue is an argument of a field.
type InputValue struct {
	Name string
	Type *Type
	Info InputAnnotation
}

// Field is an output field of an object or interface.
type Field struct {
	Name      string
	Type      *Type
	Arguments []*InputValue
	Info      Annotation
}

// Argument returns the argument with the given name.
func (f *Field) Argument(name string) (*InputValue, bool) {
	for _, arg := range f.Arguments {
		if arg.Name == name {
			return arg, true
		}
	}
	return nil, false
}

// Object is an object or interface type.
type Object struct {
	Name string
	// DataType is the metadata object type behind the GraphQL type; nil for
	// the root, aggregate and interface types.
	DataType    *metadata.QualifiedName
	IsInterface bool
	Interfaces  []string
	// PossibleTypes lists the implementations of an interface.
	PossibleTypes []string
	Fields        []*Field
	fieldIndex    map[string]*Field
}

func newObject(name string) *Object {
	return &Object{Name: name, fieldIndex: map[string]*Field{}}
}

// Field returns the field with the given name.
func (o *Object) Field(name string) (*Field, bool) {
	f, ok := o.fieldIndex[name]
	return f, ok
}

// Implements reports whether the object implements the named interface.
func (o *Object) Implements(iface string) bool {
	for _, name := range o.Interfaces {
		if name == iface {
			return true
		}
	}
	return false
}

func (o *Object) addField(f *Field) {
	o.Fields = append(o.Fields, f)
	o.fieldIndex[f.Name] = f
}

// Schema is an immutable annotated schema. It is safe for concurrent use.
type Schema struct {
	Metadata  *metadata.Metadata
	Query     *Object
	objects   map[string]*Object
	scalars   map[string]bool
	typeNames map[metadata.QualifiedName]string
	// validation mirrors the schema for graphql-go document validation.
	validation *graphql.Schema
}

// Object returns the object or interface type with the given GraphQL name.
func (s *Schema) Object(name string) (*Object, bool) {
	obj, ok := s.objects[name]
	return obj, ok
}

// IsScalar reports whether name is a built-in or custom scalar.
func (s *Schema) IsScalar(name string) bool {
	return s.scalars[name]
}

// TypeName returns the GraphQL name of a metadata object type.
func (s *Schema) TypeName(name metadata.QualifiedName) (string, bool) {
	gql, ok := s.typeNames[name]
	return gql, ok
}

// ObjectNames lists the object and interface types reachable from the root.
func (s *Schema) ObjectNames() []string {
	return s.objectOrder()
}

func (s *Schema) objectOrder() []string {
	order := []string{s.Query.Name}
	seen := map[string]bool{s.Query.Name: true}
	var visit func(obj *Object)
	visit = func(obj *Object) {
		for _, f := range obj.Fields {
			name := f.Type.NamedType()
			if next, ok := s.objects[name]; ok && !seen[name] {
				seen[name] = true
				order = append(order, name)
				visit(next)
			}
		}
	}
	visit(s.Query)
	return order
}

// SDL renders the schema in GraphQL schema definition language.
func (s *Schema) SDL() string {
	var b strings.Builder
	for i, name := range s.objectOrder() {
		if i > 0 {
			b.WriteByte('\n')
		}
		obj := s.objects[name]
		keyword := "type"
		if obj.IsInterface {
			keyword = "interface"
		}
		b.WriteString(keyword + " " + obj.Name)
		if len(obj.Interfaces) > 0 {
			b.WriteString(" implements " + strings.Join(obj.Interfaces, " & "))
		}
		b.WriteString(" {\n")
		for _, f := range obj.Fields {
			b.WriteString("  " + f.Name)
			if len(f.Arguments) > 0 {
				args := make([]string, len(f.Arguments))
				for j, arg := range f.Arguments {
					args[j] = fmt.Sprintf("%s: %s", arg.Name, arg.Type)
				}
				b.WriteString("(" + strings.Join(args, ", ") + ")")
			}
			b.WriteString(": " + f.Type.String() + "\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}
