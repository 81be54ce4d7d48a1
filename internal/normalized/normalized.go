// Package normalized is the validated, fragment-free form of a GraphQL query
// that the IR lowering pass consumes. Every field carries the schema annotation
// it was resolved against and every argument value has its variables substituted.
package normalized

import (
	"encoding/json"
	"fmt"
	"sort"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/schema"
)

// OperationType is the kind of a GraphQL operation.
type OperationType string

const (
	Query OperationType = "query"
)

// Operation is a normalized executable operation.
type Operation struct {
	Name         string
	Type         OperationType
	SelectionSet *SelectionSet
}

// SelectionSet is an ordered list of fields with distinct aliases.
type SelectionSet struct {
	// TypeName is the metadata object type the selection set is evaluated
	// against, when it has one. Leaf fields carry the type of their parent.
	TypeName *metadata.QualifiedName
	Fields   []*Field
}

// Field returns the field with the given alias.
func (s *SelectionSet) Field(alias string) (*Field, bool) {
	if s == nil {
		return nil, false
	}
	for _, f := range s.Fields {
		if f.Alias == alias {
			return f, true
		}
	}
	return nil, false
}

// Field is a selected field. A field merged from several selections of
// differently typed fragments carries one call per selection.
type Field struct {
	Alias        string
	SelectionSet *SelectionSet
	FieldCalls   []*FieldCall
}

// FieldCall returns the single call of a field selected on a concrete type.
func (f *Field) FieldCall() (*FieldCall, error) {
	if len(f.FieldCalls) != 1 {
		return nil, fmt.Errorf("field %q has %d field calls, expected exactly one", f.Alias, len(f.FieldCalls))
	}
	return f.FieldCalls[0], nil
}

// FieldCall is the invocation of a schema field.
type FieldCall struct {
	Name      string
	Arguments map[string]*InputField
	Info      schema.Annotation
}

// InputField is a supplied argument.
type InputField struct {
	Name  string
	Value Value
	Info  schema.InputAnnotation
}

// Value is a normalized input value. The set of implementations is closed.
type Value interface {
	value()
}

// NullValue is an explicit null.
type NullValue struct{}

// IntValue is an integer literal or variable.
type IntValue struct{ Value int64 }

// FloatValue is a float literal or variable.
type FloatValue struct{ Value float64 }

// StringValue is a string literal or variable, including IDs.
type StringValue struct{ Value string }

// BooleanValue is a boolean literal or variable.
type BooleanValue struct{ Value bool }

// EnumValue is an enum literal.
type EnumValue struct{ Value string }

// ListValue is a list of values.
type ListValue struct{ Items []Value }

// ObjectField is one field of an object value.
type ObjectField struct {
	Name  string
	Value Value
}

// ObjectValue is an input object. Field order follows the query.
type ObjectValue struct{ Fields []ObjectField }

func (NullValue) value()    {}
func (IntValue) value()     {}
func (FloatValue) value()   {}
func (StringValue) value()  {}
func (BooleanValue) value() {}
func (EnumValue) value()    {}
func (ListValue) value()    {}
func (ObjectValue) value()  {}

// FromJSON converts a decoded JSON value into a Value. Numbers must have been
// decoded as json.Number.
func FromJSON(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return NullValue{}, nil
	case bool:
		return BooleanValue{Value: v}, nil
	case string:
		return StringValue{Value: v}, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return IntValue{Value: i}, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", v, err)
		}
		return FloatValue{Value: f}, nil
	case float64:
		return FloatValue{Value: v}, nil
	case int:
		return IntValue{Value: int64(v)}, nil
	case int64:
		return IntValue{Value: v}, nil
	case []any:
		items := make([]Value, 0, len(v))
		for _, item := range v {
			converted, err := FromJSON(item)
			if err != nil {
				return nil, err
			}
			items = append(items, converted)
		}
		return ListValue{Items: items}, nil
	case map[string]any:
		obj := ObjectValue{Fields: make([]ObjectField, 0, len(v))}
		for _, name := range sortedKeys(v) {
			converted, err := FromJSON(v[name])
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, ObjectField{Name: name, Value: converted})
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

// ToJSON converts a Value into plain JSON-compatible Go values.
func ToJSON(v Value) any {
	switch v := v.(type) {
	case IntValue:
		return v.Value
	case FloatValue:
		return v.Value
	case StringValue:
		return v.Value
	case BooleanValue:
		return v.Value
	case EnumValue:
		return v.Value
	case ListValue:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			items[i] = ToJSON(item)
		}
		return items
	case ObjectValue:
		obj := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			obj[f.Name] = ToJSON(f.Value)
		}
		return obj
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
