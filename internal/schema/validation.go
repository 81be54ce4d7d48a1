package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// documentRules are the GraphQL validation rules checked before a document is
// normalized. Selections, argument names and fragment cycles are checked by the
// normalizer, which reports them with their response path. Missing required
// arguments are reported by lowering.
var documentRules = []graphql.ValidationRuleFn{
	graphql.LoneAnonymousOperationRule,
	graphql.UniqueOperationNamesRule,
	graphql.UniqueFragmentNamesRule,
	graphql.KnownTypeNamesRule,
	graphql.KnownDirectivesRule,
	graphql.FragmentsOnCompositeTypesRule,
	graphql.PossibleFragmentSpreadsRule,
	graphql.UniqueVariableNamesRule,
	graphql.VariablesAreInputTypesRule,
	graphql.DefaultValuesOfCorrectTypeRule,
	graphql.NoUndefinedVariablesRule,
	graphql.VariablesInAllowedPositionRule,
}

// ValidateDocument checks every operation and fragment of doc. The error joins
// the message of each violation.
func (s *Schema) ValidateDocument(doc *ast.Document) error {
	if s.validation == nil || doc == nil {
		return nil
	}
	result := graphql.ValidateDocument(s.validation, doc, documentRules)
	if result.IsValid {
		return nil
	}
	messages := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		messages = append(messages, e.Message)
	}
	return errors.New(strings.Join(messages, "; "))
}

// validationBuilder mirrors the annotated schema as a graphql-go schema.
// Object types used as arguments become input objects named <Type>Input.
type validationBuilder struct {
	*builder
	named  map[string]graphql.Type
	inputs map[string]*graphql.InputObject
	err    error
}

func (b *builder) buildValidationSchema() error {
	if len(b.s.Query.Fields) == 0 {
		return nil
	}
	v := &validationBuilder{
		builder: b,
		named: map[string]graphql.Type{
			"ID":      graphql.ID,
			"Int":     graphql.Int,
			"Float":   graphql.Float,
			"String":  graphql.String,
			"Boolean": graphql.Boolean,
		},
		inputs: map[string]*graphql.InputObject{},
	}
	for name := range b.md.ScalarTypes {
		if _, builtin := v.named[name.Name]; !builtin {
			v.named[name.Name] = opaqueScalar(name.Name)
		}
	}

	var node *graphql.Interface
	if obj, ok := b.s.objects[NodeTypeName]; ok {
		node = graphql.NewInterface(graphql.InterfaceConfig{
			Name:   obj.Name,
			Fields: graphql.FieldsThunk(func() graphql.Fields { return v.fields(obj) }),
			ResolveType: func(graphql.ResolveTypeParams) *graphql.Object {
				return nil
			},
		})
		v.named[obj.Name] = node
	}

	names := make([]string, 0, len(b.s.objects))
	for name, obj := range b.s.objects {
		if !obj.IsInterface {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	types := make([]graphql.Type, 0, len(names)+1)
	for _, name := range names {
		obj := b.s.objects[name]
		var interfaces []*graphql.Interface
		if node != nil && obj.Implements(NodeTypeName) {
			interfaces = append(interfaces, node)
		}
		out := graphql.NewObject(graphql.ObjectConfig{
			Name:       obj.Name,
			Interfaces: interfaces,
			Fields:     graphql.FieldsThunk(func() graphql.Fields { return v.fields(obj) }),
		})
		v.named[obj.Name] = out
		types = append(types, out)
	}
	if node != nil {
		types = append(types, node)
	}

	query, _ := v.named[QueryTypeName].(*graphql.Object)
	validation, err := graphql.NewSchema(graphql.SchemaConfig{Query: query, Types: types})
	if v.err != nil {
		err = v.err
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	b.s.validation = &validation
	return nil
}

func (v *validationBuilder) fail(err error) {
	if v.err == nil {
		v.err = err
	}
}

func (v *validationBuilder) fields(obj *Object) graphql.Fields {
	fields := make(graphql.Fields, len(obj.Fields))
	for _, f := range obj.Fields {
		out, _ := v.typeRef(f.Type, false).(graphql.Output)
		args := make(graphql.FieldConfigArgument, len(f.Arguments))
		for _, arg := range f.Arguments {
			in, _ := v.typeRef(arg.Type, true).(graphql.Input)
			args[arg.Name] = &graphql.ArgumentConfig{Type: in}
		}
		fields[f.Name] = &graphql.Field{Type: out, Args: args}
	}
	return fields
}

func (v *validationBuilder) typeRef(t *Type, input bool) graphql.Type {
	var ref graphql.Type
	if t.OfType != nil {
		element := v.typeRef(t.OfType, input)
		if element == nil {
			return nil
		}
		ref = graphql.NewList(element)
	} else {
		ref = v.namedType(t.Name, input)
		if ref == nil {
			return nil
		}
	}
	if t.NonNull {
		ref = graphql.NewNonNull(ref)
	}
	return ref
}

func (v *validationBuilder) namedType(name string, input bool) graphql.Type {
	if obj, ok := v.s.objects[name]; ok && input {
		return v.inputObject(obj)
	}
	if t, ok := v.named[name]; ok {
		return t
	}
	v.fail(fmt.Errorf("type %q is not defined", name))
	return nil
}

func (v *validationBuilder) inputObject(obj *Object) graphql.Type {
	if in, ok := v.inputs[obj.Name]; ok {
		return in
	}
	if obj.DataType == nil {
		v.fail(fmt.Errorf("type %s cannot be used as an argument", obj.Name))
		return nil
	}
	name := obj.Name + "Input"
	if _, taken := v.s.objects[name]; taken || v.s.scalars[name] {
		v.fail(fmt.Errorf("input type %s collides with an existing type", name))
		return nil
	}
	metaObj := v.md.ObjectTypes[*obj.DataType]
	in := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := make(graphql.InputObjectConfigFieldMap, len(metaObj.Fields))
			for _, field := range metaObj.Fields {
				t, _ := v.typeRef(v.typeOf(field.Type), true).(graphql.Input)
				fields[field.Name] = &graphql.InputObjectFieldConfig{Type: t}
			}
			return fields
		}),
	})
	v.inputs[obj.Name] = in
	return in
}

// opaqueScalar accepts any literal or variable value for a custom scalar.
func opaqueScalar(name string) *graphql.Scalar {
	identity := func(value any) any { return value }
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:       name,
		Serialize:  identity,
		ParseValue: identity,
		ParseLiteral: func(valueAST ast.Value) any {
			return valueAST
		},
	})
}
