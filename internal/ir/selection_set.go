package ir

import (
	"log/slog"
	"net/http"

	"graphql-ir/internal/globalid"
	"graphql-ir/internal/metadata"
	"graphql-ir/internal/naming"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
	"graphql-ir/internal/session"
)

// NestedSelectionPurpose distinguishes the root of a command's output from
// every other nested selection.
type NestedSelectionPurpose int

const (
	NestedSelectionPurposeNested NestedSelectionPurpose = iota
	// CommandRootSelection leaves the watermark unchanged at the first list unwrap.
	CommandRootSelection
)

// Request carries the per-request values forwarded untouched to relationship lowering.
type Request struct {
	Session session.Variables
	Headers http.Header
	// Logger receives debug output such as join name collisions. Defaults to slog.Default().
	Logger *slog.Logger
}

// Source is the connector context a selection set is lowered in.
type Source struct {
	DataConnector *metadata.DataConnectorLink
	TypeMappings  metadata.TypeMappings
	// TypeName is the object type the selection set is evaluated against.
	TypeName metadata.QualifiedName
	// FieldMappings is the field mapping table of TypeName for DataConnector.
	FieldMappings map[string]metadata.FieldMapping
}

// NewSource builds the source for typeName from the connector's type mappings.
func NewSource(connector *metadata.DataConnectorLink, typeMappings metadata.TypeMappings, typeName metadata.QualifiedName) (Source, error) {
	mapping, ok := typeMappings[typeName]
	if !ok {
		return Source{}, missingTypeMapping(typeName)
	}
	return Source{
		DataConnector: connector,
		TypeMappings:  typeMappings,
		TypeName:      typeName,
		FieldMappings: mapping.FieldMappings,
	}, nil
}

// generator holds the state of one top-level lowering call.
type generator struct {
	request Request
	usage   *UsageCounts
	joins   *naming.CollisionResolver
}

const joinScope = "relationships"

func newGenerator(req Request, usage *UsageCounts) *generator {
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &generator{
		request: req,
		usage:   usage,
		joins:   naming.NewCollisionResolverWithLevel(logger, slog.LevelDebug),
	}
}

// GenerateSelectionSetIR lowers a normalized selection set evaluated in source.
// Relationship join names are unique across everything lowered by this call and
// every relationship, model and command used is recorded in usage.
func GenerateSelectionSetIR(
	selectionSet *normalized.SelectionSet,
	nestedness metadata.FieldNestedness,
	source Source,
	req Request,
	usage *UsageCounts,
) (*ResultSelectionSet, error) {
	if usage == nil {
		usage = NewUsageCounts()
	}
	return newGenerator(req, usage).generateSelectionSet(selectionSet, nestedness, source)
}

func (g *generator) generateSelectionSet(selectionSet *normalized.SelectionSet, nestedness metadata.FieldNestedness, source Source) (*ResultSelectionSet, error) {
	result := NewResultSelectionSet()
	if selectionSet == nil {
		return result, nil
	}
	for _, field := range selectionSet.Fields {
		call, err := field.FieldCall()
		if err != nil {
			return nil, internalf(field.Alias, "%v", err)
		}

		switch info := call.Info.(type) {
		case schema.OutputField:
			fieldMapping, ok := source.FieldMappings[info.FieldName]
			if !ok {
				return nil, missingFieldMapping(info.FieldName, source.TypeName)
			}
			if err := checkArgumentAnnotations[schema.FieldArgument](call); err != nil {
				return nil, err
			}
			nested, err := g.generateNestedSelection(fieldMapping.Type, info.BaseKind, nestedness.Max(metadata.ObjectNested), NestedSelectionPurposeNested, field, source)
			if err != nil {
				return nil, err
			}
			args, err := resolveArguments(info.Arguments, call.Arguments, fieldMapping.ArgumentMappings, info.FieldName, source.TypeMappings)
			if err != nil {
				return nil, err
			}
			result.Set(field.Alias, Column{Column: fieldMapping.Column, NestedSelection: nested, Arguments: args})

		case schema.Introspection:
			continue

		case schema.GlobalIDField:
			if err := expandGlobalID(result, field.Alias, info.Fields, source); err != nil {
				return nil, err
			}

		case schema.RelayNodeInterfaceID:
			if field.SelectionSet == nil || field.SelectionSet.TypeName == nil {
				return nil, &Error{Kind: ErrUnresolvedRelayTypeName, Field: field.Alias}
			}
			typeName := *field.SelectionSet.TypeName
			fields, ok := info.GlobalIDFields[typeName]
			if !ok {
				return nil, &Error{Kind: ErrUnresolvedGlobalIDField, Field: field.Alias, Type: typeName.String()}
			}
			if err := expandGlobalID(result, field.Alias, fields, source); err != nil {
				return nil, err
			}

		case schema.RelationshipToModel:
			selection, err := g.modelRelationship(field, call, info.Relationship, false, nestedness, source)
			if err != nil {
				return nil, err
			}
			result.Set(field.Alias, selection)

		case schema.RelationshipToModelAggregate:
			selection, err := g.modelRelationship(field, call, info.Relationship, true, nestedness, source)
			if err != nil {
				return nil, err
			}
			result.Set(field.Alias, selection)

		case schema.RelationshipToCommand:
			selection, err := g.commandRelationship(field, call, info, nestedness, source)
			if err != nil {
				return nil, err
			}
			result.Set(field.Alias, selection)

		default:
			return nil, unexpectedAnnotation(field.Alias, call.Info)
		}
	}
	return result, nil
}

// generateNestedSelection unwraps ref one list at a time until it reaches a
// named type. Scalars yield no nested selection; objects are lowered with the
// field mappings of their type.
func (g *generator) generateNestedSelection(
	ref metadata.TypeReference,
	kind schema.TypeKind,
	nestedness metadata.FieldNestedness,
	purpose NestedSelectionPurpose,
	field *normalized.Field,
	source Source,
) (NestedSelection, error) {
	switch base := ref.Underlying.(type) {
	case metadata.ListType:
		next := nestedness
		if purpose != CommandRootSelection {
			next = nestedness.Max(metadata.ArrayNested)
		}
		element, err := g.generateNestedSelection(base.Element, kind, next, NestedSelectionPurposeNested, field, source)
		if err != nil || element == nil {
			return nil, err
		}
		return ArraySelection{Element: element}, nil

	case metadata.NamedType:
		custom, ok := base.Name.(metadata.CustomTypeName)
		if !ok || kind == schema.TypeKindScalar {
			return nil, nil
		}
		objectSource, err := NewSource(source.DataConnector, source.TypeMappings, custom.Name)
		if err != nil {
			return nil, err
		}
		fields, err := g.generateSelectionSet(field.SelectionSet, nestedness, objectSource)
		if err != nil {
			return nil, err
		}
		return ObjectSelection{Fields: fields}, nil
	}
	return nil, internalf(field.Alias, "unsupported type reference %s", ref)
}

// expandGlobalID inserts one synthetic column per component of a global id.
func expandGlobalID(result *ResultSelectionSet, alias string, fields []string, source Source) error {
	for _, name := range fields {
		fieldMapping, ok := source.FieldMappings[name]
		if !ok {
			return &Error{Kind: ErrUnresolvedGlobalIDField, Field: name, Type: source.TypeName.String()}
		}
		result.Set(globalid.ColumnAlias(alias, name), Column{Column: fieldMapping.Column, Arguments: NewArguments()})
	}
	return nil
}
