package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSubgraph qualifies names of documents that do not declare a subgraph.
const DefaultSubgraph = "default"

// ErrInvalidMetadata is wrapped by every resolution failure.
var ErrInvalidMetadata = errors.New("invalid metadata")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMetadata, fmt.Sprintf(format, args...))
}

// Resolve validates a metadata document and produces immutable, cross-linked metadata.
func Resolve(doc *Document) (*Metadata, error) {
	if doc == nil {
		return nil, invalidf("document is nil")
	}
	subgraph := strings.TrimSpace(doc.Subgraph)
	if subgraph == "" {
		subgraph = DefaultSubgraph
	}

	md := &Metadata{
		Subgraph:       subgraph,
		DataConnectors: map[string]*DataConnectorLink{},
		ScalarTypes:    map[QualifiedName]bool{},
		ObjectTypes:    map[QualifiedName]*ObjectType{},
		Models:         map[QualifiedName]*Model{},
		Commands:       map[QualifiedName]*Command{},
	}
	r := &resolver{md: md, doc: doc, connectorTypeMappings: map[string]TypeMappings{}}

	steps := []func() error{
		r.resolveDataConnectors,
		r.resolveScalarTypes,
		r.resolveObjectTypes,
		r.resolveTypeMappings,
		r.resolveModels,
		r.resolveCommands,
		r.resolveRelationships,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return md, nil
}

type resolver struct {
	md                    *Metadata
	doc                   *Document
	connectorTypeMappings map[string]TypeMappings
}

func (r *resolver) qualify(name string) QualifiedName {
	return NewQualifiedName(r.md.Subgraph, name)
}

func (r *resolver) resolveDataConnectors() error {
	for _, dc := range r.doc.DataConnectors {
		if dc.Name == "" {
			return invalidf("data connector without a name")
		}
		if _, exists := r.md.DataConnectors[dc.Name]; exists {
			return invalidf("duplicate data connector %q", dc.Name)
		}
		r.md.DataConnectors[dc.Name] = &DataConnectorLink{
			Name: r.qualify(dc.Name),
			URL:  dc.URL,
			Capabilities: Capabilities{
				Relationships:            dc.Capabilities.Relationships,
				NestedRelationships:      dc.Capabilities.NestedRelationships,
				NestedArrayRelationships: dc.Capabilities.NestedArrayRelationships,
				Aggregates:               dc.Capabilities.Aggregates,
			},
		}
		r.connectorTypeMappings[dc.Name] = TypeMappings{}
	}
	return nil
}

func (r *resolver) resolveScalarTypes() error {
	for _, scalar := range r.doc.ScalarTypes {
		if _, inbuilt := LookupInbuiltType(scalar.Name); inbuilt {
			return invalidf("scalar type %q shadows a built-in scalar", scalar.Name)
		}
		r.md.ScalarTypes[r.qualify(scalar.Name)] = true
	}
	return nil
}

func (r *resolver) resolveObjectTypes() error {
	// Register every name first so fields may reference types declared later.
	for _, obj := range r.doc.ObjectTypes {
		name := r.qualify(obj.Name)
		if _, exists := r.md.ObjectTypes[name]; exists {
			return invalidf("duplicate object type %q", obj.Name)
		}
		if r.md.ScalarTypes[name] {
			return invalidf("object type %q conflicts with a scalar type", obj.Name)
		}
		r.md.ObjectTypes[name] = &ObjectType{Name: name}
		r.md.ObjectTypeOrder = append(r.md.ObjectTypeOrder, name)
	}

	for _, obj := range r.doc.ObjectTypes {
		resolved := r.md.ObjectTypes[r.qualify(obj.Name)]
		seen := map[string]bool{}
		for _, field := range obj.Fields {
			if seen[field.Name] {
				return invalidf("duplicate field %q in object type %q", field.Name, obj.Name)
			}
			seen[field.Name] = true
			ref, err := r.typeReference(field.Type)
			if err != nil {
				return invalidf("field %q of object type %q: %v", field.Name, obj.Name, err)
			}
			args, err := r.arguments(field.Arguments)
			if err != nil {
				return invalidf("field %q of object type %q: %v", field.Name, obj.Name, err)
			}
			resolved.Fields = append(resolved.Fields, ObjectField{Name: field.Name, Type: ref, Arguments: args})
		}
		for _, idField := range obj.GlobalIDFields {
			if !seen[idField] {
				return invalidf("global id field %q is not a field of object type %q", idField, obj.Name)
			}
		}
		resolved.GlobalIDFields = append([]string(nil), obj.GlobalIDFields...)
	}
	return nil
}

func (r *resolver) resolveTypeMappings() error {
	for _, obj := range r.doc.ObjectTypes {
		resolved := r.md.ObjectTypes[r.qualify(obj.Name)]
		for _, mapping := range obj.DataConnectorTypeMapping {
			mappings, ok := r.connectorTypeMappings[mapping.DataConnector]
			if !ok {
				return invalidf("object type %q maps to unknown data connector %q", obj.Name, mapping.DataConnector)
			}
			if _, exists := mappings[resolved.Name]; exists {
				return invalidf("object type %q is mapped twice for data connector %q", obj.Name, mapping.DataConnector)
			}
			fieldMappings := make(map[string]FieldMapping, len(mapping.FieldMapping))
			for fieldName, fm := range mapping.FieldMapping {
				field, ok := resolved.Field(fieldName)
				if !ok {
					return invalidf("field mapping for unknown field %q of object type %q", fieldName, obj.Name)
				}
				column := fm.Column
				if column == "" {
					column = fieldName
				}
				for argName := range fm.ArgumentMapping {
					if !hasArgument(field.Arguments, argName) {
						return invalidf("argument mapping for unknown argument %q of field %q in object type %q", argName, fieldName, obj.Name)
					}
				}
				fieldMappings[fieldName] = FieldMapping{
					Column:           column,
					Type:             field.Type,
					ArgumentMappings: fm.ArgumentMapping,
				}
			}
			objectType := mapping.ObjectType
			if objectType == "" {
				objectType = obj.Name
			}
			mappings[resolved.Name] = TypeMapping{ObjectType: objectType, FieldMappings: fieldMappings}
		}
	}
	return nil
}

func (r *resolver) resolveModels() error {
	for _, doc := range r.doc.Models {
		name := r.qualify(doc.Name)
		if _, exists := r.md.Models[name]; exists {
			return invalidf("duplicate model %q", doc.Name)
		}
		object, ok := r.md.ObjectTypes[r.qualify(doc.ObjectType)]
		if !ok {
			return invalidf("model %q references unknown object type %q", doc.Name, doc.ObjectType)
		}
		args, err := r.arguments(doc.Arguments)
		if err != nil {
			return invalidf("model %q: %v", doc.Name, err)
		}
		for _, field := range doc.UniqueIdentifier {
			if _, ok := object.Field(field); !ok {
				return invalidf("unique identifier field %q is not a field of %q", field, doc.ObjectType)
			}
		}
		if doc.GlobalIDSource && len(object.GlobalIDFields) == 0 {
			return invalidf("model %q is a global id source but %q has no global id fields", doc.Name, doc.ObjectType)
		}

		model := &Model{
			Name:             name,
			DataType:         object.Name,
			Arguments:        args,
			UniqueIdentifier: append([]string(nil), doc.UniqueIdentifier...),
			GlobalIDSource:   doc.GlobalIDSource,
		}
		if doc.Source != nil {
			link, mappings, err := r.source(doc.Source)
			if err != nil {
				return invalidf("model %q: %v", doc.Name, err)
			}
			if _, ok := mappings[object.Name]; !ok {
				return invalidf("model %q: object type %q has no mapping for data connector %q", doc.Name, doc.ObjectType, doc.Source.DataConnector)
			}
			if doc.Source.Collection == "" {
				return invalidf("model %q: source has no collection", doc.Name)
			}
			for argName := range doc.Source.ArgumentMapping {
				if !hasArgument(args, argName) {
					return invalidf("model %q: argument mapping for unknown argument %q", doc.Name, argName)
				}
			}
			model.Source = &ModelSource{
				DataConnector:    link,
				Collection:       doc.Source.Collection,
				TypeMappings:     mappings,
				ArgumentMappings: doc.Source.ArgumentMapping,
			}
		}
		r.md.Models[name] = model
		r.md.ModelOrder = append(r.md.ModelOrder, name)
	}
	return nil
}

func (r *resolver) resolveCommands() error {
	for _, doc := range r.doc.Commands {
		name := r.qualify(doc.Name)
		if _, exists := r.md.Commands[name]; exists {
			return invalidf("duplicate command %q", doc.Name)
		}
		output, err := r.typeReference(doc.OutputType)
		if err != nil {
			return invalidf("command %q: %v", doc.Name, err)
		}
		args, err := r.arguments(doc.Arguments)
		if err != nil {
			return invalidf("command %q: %v", doc.Name, err)
		}
		command := &Command{Name: name, OutputType: output, Arguments: args}
		if doc.Source != nil {
			link, mappings, err := r.source(doc.Source)
			if err != nil {
				return invalidf("command %q: %v", doc.Name, err)
			}
			if doc.Source.Function == "" {
				return invalidf("command %q: source has no function", doc.Name)
			}
			for argName := range doc.Source.ArgumentMapping {
				if !hasArgument(args, argName) {
					return invalidf("command %q: argument mapping for unknown argument %q", doc.Name, argName)
				}
			}
			command.Source = &CommandSource{
				DataConnector:    link,
				Function:         doc.Source.Function,
				TypeMappings:     mappings,
				ArgumentMappings: doc.Source.ArgumentMapping,
			}
		}
		r.md.Commands[name] = command
		r.md.CommandOrder = append(r.md.CommandOrder, name)
	}
	return nil
}

func (r *resolver) resolveRelationships() error {
	for _, doc := range r.doc.Relationships {
		source, ok := r.md.ObjectTypes[r.qualify(doc.SourceType)]
		if !ok {
			return invalidf("relationship %q references unknown source type %q", doc.Name, doc.SourceType)
		}
		if _, clash := source.Field(doc.Name); clash {
			return invalidf("relationship %q conflicts with a field of %q", doc.Name, doc.SourceType)
		}
		for _, existing := range source.Relationships {
			if existing.Name == doc.Name {
				return invalidf("duplicate relationship %q on %q", doc.Name, doc.SourceType)
			}
		}

		rel := &Relationship{Name: doc.Name, SourceType: source.Name}
		switch {
		case doc.Target.Model != nil && doc.Target.Command != nil:
			return invalidf("relationship %q targets both a model and a command", doc.Name)
		case doc.Target.Model != nil:
			target, err := r.modelTarget(doc, source)
			if err != nil {
				return err
			}
			rel.ModelTarget = target
		case doc.Target.Command != nil:
			target, err := r.commandTarget(doc, source)
			if err != nil {
				return err
			}
			rel.CommandTarget = target
		default:
			return invalidf("relationship %q has no target", doc.Name)
		}
		source.Relationships = append(source.Relationships, rel)
	}
	return nil
}

func (r *resolver) modelTarget(doc RelationshipDocument, source *ObjectType) (*ModelTarget, error) {
	model, ok := r.md.Models[r.qualify(doc.Target.Model.Name)]
	if !ok {
		return nil, invalidf("relationship %q targets unknown model %q", doc.Name, doc.Target.Model.Name)
	}
	relType := RelationshipType(doc.Target.Model.RelationshipType)
	switch relType {
	case "":
		relType = RelationshipObject
	case RelationshipObject, RelationshipArray:
	default:
		return nil, invalidf("relationship %q has unknown relationship type %q", doc.Name, doc.Target.Model.RelationshipType)
	}
	targetType := r.md.ObjectTypes[model.DataType]

	mappings := make([]ModelMapping, 0, len(doc.Mapping))
	for _, m := range doc.Mapping {
		if _, ok := source.Field(m.Source.Field); !ok {
			return nil, invalidf("relationship %q maps unknown source field %q", doc.Name, m.Source.Field)
		}
		if m.Target.Argument != "" {
			return nil, invalidf("relationship %q: model targets must map to fields, not arguments", doc.Name)
		}
		if _, ok := targetType.Field(m.Target.Field); !ok {
			return nil, invalidf("relationship %q maps unknown target field %q", doc.Name, m.Target.Field)
		}
		mappings = append(mappings, ModelMapping{SourceField: m.Source.Field, TargetField: m.Target.Field})
	}
	return &ModelTarget{Model: model, Type: relType, Mappings: mappings}, nil
}

func (r *resolver) commandTarget(doc RelationshipDocument, source *ObjectType) (*CommandTarget, error) {
	command, ok := r.md.Commands[r.qualify(doc.Target.Command.Name)]
	if !ok {
		return nil, invalidf("relationship %q targets unknown command %q", doc.Name, doc.Target.Command.Name)
	}
	mappings := make([]CommandMapping, 0, len(doc.Mapping))
	for _, m := range doc.Mapping {
		if _, ok := source.Field(m.Source.Field); !ok {
			return nil, invalidf("relationship %q maps unknown source field %q", doc.Name, m.Source.Field)
		}
		if !hasArgument(command.Arguments, m.Target.Argument) {
			return nil, invalidf("relationship %q maps unknown command argument %q", doc.Name, m.Target.Argument)
		}
		mappings = append(mappings, CommandMapping{SourceField: m.Source.Field, TargetArgument: m.Target.Argument})
	}
	return &CommandTarget{Command: command, Mappings: mappings}, nil
}

func (r *resolver) source(doc *SourceDocument) (*DataConnectorLink, TypeMappings, error) {
	link, ok := r.md.DataConnectors[doc.DataConnector]
	if !ok {
		return nil, nil, fmt.Errorf("unknown data connector %q", doc.DataConnector)
	}
	return link, r.connectorTypeMappings[doc.DataConnector], nil
}

func (r *resolver) typeReference(s string) (TypeReference, error) {
	ref, err := ParseTypeReference(s, r.md.Subgraph)
	if err != nil {
		return TypeReference{}, err
	}
	if custom, ok := ref.NamedTypeName().(CustomTypeName); ok {
		_, isObject := r.md.ObjectTypes[custom.Name]
		if !isObject && !r.md.ScalarTypes[custom.Name] {
			return TypeReference{}, fmt.Errorf("unknown type %q", custom.Name.Name)
		}
	}
	return ref, nil
}

func (r *resolver) arguments(docs []ArgumentDocument) ([]Argument, error) {
	args := make([]Argument, 0, len(docs))
	for _, doc := range docs {
		if hasArgument(args, doc.Name) {
			return nil, fmt.Errorf("duplicate argument %q", doc.Name)
		}
		ref, err := r.typeReference(doc.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", doc.Name, err)
		}
		args = append(args, Argument{Name: doc.Name, Type: ref})
	}
	return args, nil
}

func hasArgument(args []Argument, name string) bool {
	for _, arg := range args {
		if arg.Name == name {
			return true
		}
	}
	return false
}
