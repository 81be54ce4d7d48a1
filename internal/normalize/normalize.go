// Package normalize validates a parsed GraphQL query against the annotated
// schema and produces the fragment-free tree the IR lowering pass consumes.
//
// Fragment spreads and inline fragments are inlined, fields with the same
// response key are merged, variables are substituted and @skip/@include are
// applied. Only query operations are accepted.
package normalize

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/go-cmp/cmp"
	"github.com/graphql-go/graphql/language/ast"

	"graphql-ir/internal/globalid"
	"graphql-ir/internal/gqlrequest"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
)

var (
	// ErrInvalidQuery is wrapped by every validation failure.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnsupportedOperation is returned for mutations and subscriptions.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

const typenameField = "__typename"

// Normalize normalizes the operation selected by analysis. Variable values are
// decoded JSON with numbers as json.Number.
func Normalize(s *schema.Schema, analysis *gqlrequest.Analysis, variables map[string]any) (*normalized.Operation, error) {
	if err := analysis.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	op := analysis.Operation
	if op.Operation != ast.OperationTypeQuery {
		return nil, fmt.Errorf("%w: %s operations cannot be lowered", ErrUnsupportedOperation, op.Operation)
	}

	if err := s.ValidateDocument(analysis.Document); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	n := &normalizer{schema: s, fragments: analysis.Fragments}
	if err := n.bindVariables(op.VariableDefinitions, variables); err != nil {
		return nil, err
	}
	selection, err := n.selectionSet(s.Query, s.Query, []*ast.SelectionSet{op.SelectionSet}, "")
	if err != nil {
		return nil, err
	}

	name := ""
	if op.Name != nil {
		name = op.Name.Value
	}
	return &normalized.Operation{Name: name, Type: normalized.Query, SelectionSet: selection}, nil
}

// NormalizeQuery parses query and normalizes the named operation.
func NormalizeQuery(s *schema.Schema, query, operationName string, variables map[string]any) (*normalized.Operation, error) {
	analysis := gqlrequest.AnalyzeEnvelope(gqlrequest.Envelope{Query: query, OperationName: operationName})
	return Normalize(s, analysis, variables)
}

type normalizer struct {
	schema    *schema.Schema
	fragments map[string]*ast.FragmentDefinition
	variables map[string]normalized.Value
	declared  map[string]bool
}

func invalidf(path, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if path != "" {
		msg = path + ": " + msg
	}
	return fmt.Errorf("%w: %s", ErrInvalidQuery, msg)
}

func joinPath(path, alias string) string {
	if path == "" {
		return alias
	}
	return path + "." + alias
}

// bindVariables resolves every declared variable from the supplied values or
// its default. Variables without either are left unbound so arguments using
// them count as absent.
func (n *normalizer) bindVariables(defs []*ast.VariableDefinition, supplied map[string]any) error {
	n.variables = map[string]normalized.Value{}
	n.declared = map[string]bool{}
	for _, def := range defs {
		if def == nil || def.Variable == nil || def.Variable.Name == nil {
			continue
		}
		n.declared[def.Variable.Name.Value] = true
	}
	for _, def := range defs {
		if def == nil || def.Variable == nil || def.Variable.Name == nil {
			continue
		}
		name := def.Variable.Name.Value
		if raw, ok := supplied[name]; ok {
			value, err := normalized.FromJSON(raw)
			if err != nil {
				return invalidf("", "variable $%s: %v", name, err)
			}
			if _, isNull := value.(normalized.NullValue); isNull {
				if _, nonNull := def.Type.(*ast.NonNull); nonNull {
					return invalidf("", "variable $%s of non-null type must not be null", name)
				}
			}
			n.variables[name] = value
			continue
		}
		if def.DefaultValue != nil {
			value, ok, err := n.value(def.DefaultValue)
			if err != nil {
				return invalidf("", "default of variable $%s: %v", name, err)
			}
			if ok {
				n.variables[name] = value
			}
			continue
		}
		if _, nonNull := def.Type.(*ast.NonNull); nonNull {
			return invalidf("", "variable $%s of required type was not provided", name)
		}
	}
	return nil
}

// fieldGroup collects every selection of one response key.
type fieldGroup struct {
	alias   string
	entries []fieldEntry
}

// fieldEntry is one selection of a field together with the type whose field
// definition applies to it.
type fieldEntry struct {
	field *ast.Field
	owner *schema.Object
}

// selectionSet normalizes the merged selections of sets. Fields selected directly
// are resolved on owner; fragments on concrete resolve on concrete.
func (n *normalizer) selectionSet(owner, concrete *schema.Object, sets []*ast.SelectionSet, path string) (*normalized.SelectionSet, error) {
	var groups []*fieldGroup
	index := map[string]*fieldGroup{}
	for _, set := range sets {
		if err := n.collect(owner, concrete, set, &groups, index, map[string]bool{}, path); err != nil {
			return nil, err
		}
	}

	result := &normalized.SelectionSet{TypeName: concrete.DataType}
	for _, group := range groups {
		field, err := n.field(concrete, group, joinPath(path, group.alias))
		if err != nil {
			return nil, err
		}
		result.Fields = append(result.Fields, field)
	}
	return result, nil
}

func (n *normalizer) collect(owner, concrete *schema.Object, set *ast.SelectionSet, groups *[]*fieldGroup, index map[string]*fieldGroup, visiting map[string]bool, path string) error {
	if set == nil {
		return nil
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			skip, err := n.skipped(sel.Directives, path)
			if err != nil || skip {
				return err
			}
			alias := sel.Name.Value
			if sel.Alias != nil && sel.Alias.Value != "" {
				alias = sel.Alias.Value
			}
			group, ok := index[alias]
			if !ok {
				group = &fieldGroup{alias: alias}
				index[alias] = group
				*groups = append(*groups, group)
			}
			group.entries = append(group.entries, fieldEntry{field: sel, owner: owner})

		case *ast.InlineFragment:
			skip, err := n.skipped(sel.Directives, path)
			if err != nil || skip {
				return err
			}
			condition := ""
			if sel.TypeCondition != nil && sel.TypeCondition.Name != nil {
				condition = sel.TypeCondition.Name.Value
			}
			target, applies, err := n.fragmentTarget(condition, owner, concrete, path)
			if err != nil {
				return err
			}
			if applies {
				if err := n.collect(target, concrete, sel.SelectionSet, groups, index, visiting, path); err != nil {
					return err
				}
			}

		case *ast.FragmentSpread:
			skip, err := n.skipped(sel.Directives, path)
			if err != nil || skip {
				return err
			}
			name := sel.Name.Value
			fragment, ok := n.fragments[name]
			if !ok {
				return invalidf(path, "unknown fragment %q", name)
			}
			if visiting[name] {
				return invalidf(path, "fragment %q spreads itself", name)
			}
			target, applies, err := n.fragmentTarget(fragment.TypeCondition.Name.Value, owner, concrete, path)
			if err != nil {
				return err
			}
			if applies {
				visiting[name] = true
				err := n.collect(target, concrete, fragment.SelectionSet, groups, index, visiting, path)
				delete(visiting, name)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// fragmentTarget decides whether a fragment on condition applies to concrete and
// which type its fields resolve on.
func (n *normalizer) fragmentTarget(condition string, owner, concrete *schema.Object, path string) (*schema.Object, bool, error) {
	switch {
	case condition == "":
		return owner, true, nil
	case condition == concrete.Name:
		return concrete, true, nil
	case condition == owner.Name:
		return owner, true, nil
	}
	target, ok := n.schema.Object(condition)
	if !ok {
		return nil, false, invalidf(path, "unknown type %q in fragment", condition)
	}
	return target, concrete.Implements(condition), nil
}

// skipped applies @skip and @include.
func (n *normalizer) skipped(directives []*ast.Directive, path string) (bool, error) {
	for _, directive := range directives {
		if directive == nil || directive.Name == nil {
			continue
		}
		name := directive.Name.Value
		if name != "skip" && name != "include" {
			continue
		}
		var condition *bool
		for _, arg := range directive.Arguments {
			if arg.Name == nil || arg.Name.Value != "if" {
				continue
			}
			value, ok, err := n.value(arg.Value)
			if err != nil {
				return false, invalidf(path, "@%s: %v", name, err)
			}
			b, isBool := value.(normalized.BooleanValue)
			if !ok || !isBool {
				return false, invalidf(path, "@%s requires a boolean \"if\" argument", name)
			}
			condition = &b.Value
		}
		if condition == nil {
			return false, invalidf(path, "@%s requires an \"if\" argument", name)
		}
		if (name == "skip" && *condition) || (name == "include" && !*condition) {
			return true, nil
		}
	}
	return false, nil
}

// field normalizes one response key selected on concrete.
func (n *normalizer) field(concrete *schema.Object, group *fieldGroup, path string) (*normalized.Field, error) {
	first := group.entries[0]
	name := first.field.Name.Value
	arguments, err := n.arguments(first, path)
	if err != nil {
		return nil, err
	}
	for _, entry := range group.entries[1:] {
		if entry.field.Name.Value != name {
			return nil, invalidf(path, "fields %q and %q conflict because they have the same response name", name, entry.field.Name.Value)
		}
		other, err := n.arguments(entry, path)
		if err != nil {
			return nil, err
		}
		if !sameArguments(arguments, other) {
			return nil, invalidf(path, "field %q is selected with different arguments", name)
		}
	}

	if name == typenameField {
		return &normalized.Field{
			Alias:        group.alias,
			SelectionSet: &normalized.SelectionSet{TypeName: concrete.DataType},
			FieldCalls:   []*normalized.FieldCall{{Name: name, Arguments: arguments, Info: schema.Introspection{}}},
		}, nil
	}

	def, ok := first.owner.Field(name)
	if !ok {
		return nil, invalidf(path, "type %s has no field %q", first.owner.Name, name)
	}
	call := &normalized.FieldCall{Name: name, Arguments: arguments, Info: def.Info}
	for argName, input := range arguments {
		arg, ok := def.Argument(argName)
		if !ok {
			return nil, invalidf(path, "field %q has no argument %q", name, argName)
		}
		input.Info = arg.Info
	}

	var subsets []*ast.SelectionSet
	for _, entry := range group.entries {
		if entry.field.SelectionSet != nil {
			subsets = append(subsets, entry.field.SelectionSet)
		}
	}

	target, isObject := n.schema.Object(def.Type.NamedType())
	if !isObject {
		if len(subsets) > 0 {
			return nil, invalidf(path, "field %q of type %s must not have a selection", name, def.Type)
		}
		return &normalized.Field{
			Alias:        group.alias,
			SelectionSet: &normalized.SelectionSet{TypeName: concrete.DataType},
			FieldCalls:   []*normalized.FieldCall{call},
		}, nil
	}
	if len(subsets) == 0 {
		return nil, invalidf(path, "field %q of type %s must have a selection", name, def.Type)
	}

	concreteTarget := target
	if info, ok := def.Info.(schema.NodeField); ok {
		concreteTarget = n.nodeType(info, arguments, target)
	}
	selection, err := n.selectionSet(target, concreteTarget, subsets, path)
	if err != nil {
		return nil, err
	}
	return &normalized.Field{Alias: group.alias, SelectionSet: selection, FieldCalls: []*normalized.FieldCall{call}}, nil
}

// nodeType resolves the object type a node id refers to. Undecodable ids and
// unknown types fall back to the interface, leaving the error to lowering.
func (n *normalizer) nodeType(info schema.NodeField, arguments map[string]*normalized.InputField, iface *schema.Object) *schema.Object {
	input, ok := arguments[schema.IDFieldName]
	if !ok {
		return iface
	}
	id, ok := input.Value.(normalized.StringValue)
	if !ok {
		return iface
	}
	decoded, err := globalid.Decode(id.Value)
	if err != nil {
		return iface
	}
	for typeName := range info.Models {
		if typeName.Name != decoded.TypeName {
			continue
		}
		if gqlName, ok := n.schema.TypeName(typeName); ok {
			if obj, ok := n.schema.Object(gqlName); ok {
				return obj
			}
		}
	}
	return iface
}

func (n *normalizer) arguments(entry fieldEntry, path string) (map[string]*normalized.InputField, error) {
	arguments := make(map[string]*normalized.InputField, len(entry.field.Arguments))
	for _, arg := range entry.field.Arguments {
		name := arg.Name.Value
		if _, dup := arguments[name]; dup {
			return nil, invalidf(path, "argument %q is supplied more than once", name)
		}
		value, ok, err := n.value(arg.Value)
		if err != nil {
			return nil, invalidf(path, "argument %q: %v", name, err)
		}
		if !ok {
			continue
		}
		arguments[name] = &normalized.InputField{Name: name, Value: value}
	}
	return arguments, nil
}

func sameArguments(a, b map[string]*normalized.InputField) bool {
	if len(a) != len(b) {
		return false
	}
	for name, input := range a {
		other, ok := b[name]
		if !ok || !cmp.Equal(input.Value, other.Value) {
			return false
		}
	}
	return true
}

// value converts an AST value, substituting variables. ok is false when the
// value is a declared but unbound variable.
func (n *normalizer) value(v ast.Value) (value normalized.Value, ok bool, err error) {
	switch v := v.(type) {
	case *ast.Variable:
		name := v.Name.Value
		if !n.declared[name] {
			return nil, false, fmt.Errorf("variable $%s is not defined", name)
		}
		bound, ok := n.variables[name]
		return bound, ok, nil
	case *ast.IntValue:
		i, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("integer %s is out of range", v.Value)
		}
		return normalized.IntValue{Value: i}, true, nil
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, false, fmt.Errorf("invalid float %s", v.Value)
		}
		return normalized.FloatValue{Value: f}, true, nil
	case *ast.StringValue:
		return normalized.StringValue{Value: v.Value}, true, nil
	case *ast.BooleanValue:
		return normalized.BooleanValue{Value: v.Value}, true, nil
	case *ast.EnumValue:
		return normalized.EnumValue{Value: v.Value}, true, nil
	case *ast.ListValue:
		items := make([]normalized.Value, 0, len(v.Values))
		for _, item := range v.Values {
			converted, ok, err := n.value(item)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				converted = normalized.NullValue{}
			}
			items = append(items, converted)
		}
		return normalized.ListValue{Items: items}, true, nil
	case *ast.ObjectValue:
		obj := normalized.ObjectValue{}
		seen := map[string]bool{}
		for _, field := range v.Fields {
			name := field.Name.Value
			if seen[name] {
				return nil, false, fmt.Errorf("input field %q is supplied more than once", name)
			}
			seen[name] = true
			converted, ok, err := n.value(field.Value)
			if err != nil {
				return nil, false, err
			}
			if ok {
				obj.Fields = append(obj.Fields, normalized.ObjectField{Name: name, Value: converted})
			}
		}
		return obj, true, nil
	}
	return nil, false, fmt.Errorf("unsupported value %T", v)
}
