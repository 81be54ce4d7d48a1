package ir

import (
	"fmt"
	"sort"
	"strconv"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
)

// resolveArguments resolves every declared argument against the supplied ones.
// Declared arguments are visited by name so the first reported error is stable.
func resolveArguments(
	declared []metadata.Argument,
	supplied map[string]*normalized.InputField,
	argumentMappings map[string]string,
	fieldName string,
	typeMappings metadata.TypeMappings,
) (*Arguments, error) {
	sorted := append([]metadata.Argument(nil), declared...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	args := NewArguments()
	for _, arg := range sorted {
		input, ok := supplied[arg.Name]
		if !ok {
			if arg.Type.Nullable {
				continue
			}
			return nil, missingArgument(arg.Name, fieldName)
		}
		value, err := convertValue(input.Value, arg.Type, typeMappings)
		if err != nil {
			return nil, conversionFailed(arg.Name, fieldName, err)
		}
		args.Set(connectorArgumentName(arg.Name, argumentMappings), Literal{Value: value})
	}
	return args, nil
}

func connectorArgumentName(name string, argumentMappings map[string]string) string {
	if mapped, ok := argumentMappings[name]; ok && mapped != "" {
		return mapped
	}
	return name
}

// checkArgumentAnnotations fails if any supplied argument is not tagged T.
func checkArgumentAnnotations[T schema.InputAnnotation](call *normalized.FieldCall) error {
	for _, name := range sortedArgumentNames(call.Arguments) {
		input := call.Arguments[name]
		if _, ok := input.Info.(T); !ok {
			return unexpectedArgumentAnnotation(call.Name, name, input.Info)
		}
	}
	return nil
}

func sortedArgumentNames(arguments map[string]*normalized.InputField) []string {
	names := make([]string, 0, len(arguments))
	for name := range arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// convertValue converts a supplied value into a connector literal of type ref.
// Input objects of mapped object types are renamed to connector columns.
func convertValue(v normalized.Value, ref metadata.TypeReference, typeMappings metadata.TypeMappings) (any, error) {
	if _, isNull := v.(normalized.NullValue); isNull || v == nil {
		if !ref.Nullable {
			return nil, fmt.Errorf("null is not allowed for non-nullable type %s", ref)
		}
		return nil, nil
	}

	switch base := ref.Underlying.(type) {
	case metadata.ListType:
		list, ok := v.(normalized.ListValue)
		if !ok {
			return nil, fmt.Errorf("expected a list for type %s", ref)
		}
		items := make([]any, 0, len(list.Items))
		for i, item := range list.Items {
			converted, err := convertValue(item, base.Element, typeMappings)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, converted)
		}
		return items, nil
	case metadata.NamedType:
		switch name := base.Name.(type) {
		case metadata.InbuiltTypeName:
			return convertInbuilt(v, name.Type)
		case metadata.CustomTypeName:
			mapping, ok := typeMappings[name.Name]
			if !ok {
				// Custom scalars are opaque to lowering.
				return normalized.ToJSON(v), nil
			}
			return convertObject(v, name.Name, mapping, typeMappings)
		}
	}
	return nil, fmt.Errorf("unsupported type %s", ref)
}

func convertInbuilt(v normalized.Value, t metadata.InbuiltType) (any, error) {
	switch t {
	case metadata.InbuiltInt:
		if i, ok := v.(normalized.IntValue); ok {
			return i.Value, nil
		}
	case metadata.InbuiltFloat:
		switch f := v.(type) {
		case normalized.FloatValue:
			return f.Value, nil
		case normalized.IntValue:
			return float64(f.Value), nil
		}
	case metadata.InbuiltString:
		if s, ok := v.(normalized.StringValue); ok {
			return s.Value, nil
		}
	case metadata.InbuiltID:
		switch id := v.(type) {
		case normalized.StringValue:
			return id.Value, nil
		case normalized.IntValue:
			return strconv.FormatInt(id.Value, 10), nil
		}
	case metadata.InbuiltBoolean:
		if b, ok := v.(normalized.BooleanValue); ok {
			return b.Value, nil
		}
	}
	return nil, fmt.Errorf("expected a value of type %s, got %s", t, describeValue(v))
}

func convertObject(v normalized.Value, typeName metadata.QualifiedName, mapping metadata.TypeMapping, typeMappings metadata.TypeMappings) (any, error) {
	obj, ok := v.(normalized.ObjectValue)
	if !ok {
		return nil, fmt.Errorf("expected an object of type %s, got %s", typeName.Name, describeValue(v))
	}
	out := make(map[string]any, len(obj.Fields))
	supplied := make(map[string]bool, len(obj.Fields))
	for _, field := range obj.Fields {
		fm, ok := mapping.FieldMappings[field.Name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q of input type %s", field.Name, typeName.Name)
		}
		converted, err := convertValue(field.Value, fm.Type, typeMappings)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		out[fm.Column] = converted
		supplied[field.Name] = true
	}

	names := make([]string, 0, len(mapping.FieldMappings))
	for name := range mapping.FieldMappings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !supplied[name] && !mapping.FieldMappings[name].Type.Nullable {
			return nil, fmt.Errorf("missing non-nullable field %q of input type %s", name, typeName.Name)
		}
	}
	return out, nil
}

func describeValue(v normalized.Value) string {
	switch v.(type) {
	case normalized.IntValue:
		return "an integer"
	case normalized.FloatValue:
		return "a float"
	case normalized.StringValue:
		return "a string"
	case normalized.BooleanValue:
		return "a boolean"
	case normalized.EnumValue:
		return "an enum value"
	case normalized.ListValue:
		return "a list"
	case normalized.ObjectValue:
		return "an object"
	}
	return "null"
}
