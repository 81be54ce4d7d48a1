package ir

import (
	"fmt"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/naming"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
)

// isLocal reports whether a relationship from source to target can be served
// by the source connector at the given nestedness.
func isLocal(source, target *metadata.DataConnectorLink, nestedness metadata.FieldNestedness) bool {
	if source == nil || target == nil || source.Name != target.Name {
		return false
	}
	caps := source.Capabilities
	switch nestedness {
	case metadata.NotNested:
		return caps.Relationships
	case metadata.ObjectNested:
		return caps.Relationships && caps.NestedRelationships
	case metadata.ArrayNested:
		return caps.Relationships && caps.NestedRelationships && caps.NestedArrayRelationships
	}
	return false
}

// locality decides the variant of a relationship. Remote joins correlate rows of
// the selection root only, so a remote relationship below it cannot be lowered.
func locality(field string, rel *metadata.Relationship, source, target *metadata.DataConnectorLink, nestedness metadata.FieldNestedness) (bool, error) {
	if isLocal(source, target, nestedness) {
		return true, nil
	}
	if nestedness != metadata.NotNested {
		return false, &Error{
			Kind:  ErrNestedRemoteRelationship,
			Field: field,
			Type:  rel.SourceType.String(),
			Cause: fmt.Errorf("relationship %q at %s nesting", rel.Name, nestedness),
		}
	}
	return false, nil
}

// joinName returns a relationship name unique within this lowering call.
func (g *generator) joinName(rel *metadata.Relationship, alias string) string {
	base := naming.RelationshipJoinName(rel.SourceType.Subgraph, rel.SourceType.Name, rel.Name)
	return g.joins.Register(joinScope, base, "field:"+alias)
}

func (g *generator) modelRelationship(field *normalized.Field, call *normalized.FieldCall, rel *metadata.Relationship, aggregate bool, nestedness metadata.FieldNestedness, source Source) (FieldSelection, error) {
	target := rel.ModelTarget
	if target == nil || target.Model == nil {
		return nil, internalf(field.Alias, "relationship %q has no model target", rel.Name)
	}
	model := target.Model
	if model.Source == nil {
		return nil, internalf(field.Alias, "model %s has no source", model.Name)
	}

	local, err := locality(field.Alias, rel, source.DataConnector, model.Source.DataConnector, nestedness)
	if err != nil {
		return nil, err
	}
	info, err := modelRelationshipInfo(rel, source, model)
	if err != nil {
		return nil, err
	}

	kind := selectMany
	if aggregate {
		kind = selectAggregate
	}
	name := g.joinName(rel, field.Alias)
	selection, err := g.modelSelection(model, call, field.SelectionSet, kind)
	if err != nil {
		return nil, err
	}
	g.usage.RecordRelationship(rel.SourceType, rel.Name)

	if local {
		return ModelRelationshipLocal{Query: selection, Name: name, Info: info}, nil
	}
	return ModelRelationshipRemote{IR: selection, Name: name, Info: info}, nil
}

func (g *generator) commandRelationship(field *normalized.Field, call *normalized.FieldCall, info schema.RelationshipToCommand, nestedness metadata.FieldNestedness, source Source) (FieldSelection, error) {
	rel := info.Relationship
	target := rel.CommandTarget
	if target == nil || target.Command == nil {
		return nil, internalf(field.Alias, "relationship %q has no command target", rel.Name)
	}
	command := target.Command
	if command.Source == nil {
		return nil, internalf(field.Alias, "command %s has no source", command.Name)
	}

	local, err := locality(field.Alias, rel, source.DataConnector, command.Source.DataConnector, nestedness)
	if err != nil {
		return nil, err
	}
	relInfo, err := commandRelationshipInfo(rel, source, command)
	if err != nil {
		return nil, err
	}

	// Mapped arguments are filled from source rows: through the relationship
	// info when local, as variables when remote.
	mapped := make(map[string]string, len(target.Mappings))
	for _, m := range target.Mappings {
		mapped[m.TargetArgument] = source.FieldMappings[m.SourceField].Column
	}

	name := g.joinName(rel, field.Alias)
	cmd, err := g.functionBasedCommand(command, info.OutputKind, field, call, mapped, !local)
	if err != nil {
		return nil, err
	}
	g.usage.RecordRelationship(rel.SourceType, rel.Name)

	if local {
		return CommandRelationshipLocal{IR: cmd, Name: name, Info: relInfo}, nil
	}
	return CommandRelationshipRemote{IR: cmd, Name: name, Info: relInfo}, nil
}

func modelRelationshipInfo(rel *metadata.Relationship, source Source, model *metadata.Model) (*RelationshipInfo, error) {
	targetMapping, ok := model.Source.TypeMappings[model.DataType]
	if !ok {
		return nil, missingTypeMapping(model.DataType)
	}
	info := newRelationshipInfo(rel, source, model.Source.DataConnector, rel.ModelTarget.Type)
	for _, m := range rel.ModelTarget.Mappings {
		sourceMapping, ok := source.FieldMappings[m.SourceField]
		if !ok {
			return nil, missingFieldMapping(m.SourceField, source.TypeName)
		}
		targetField, ok := targetMapping.FieldMappings[m.TargetField]
		if !ok {
			return nil, missingFieldMapping(m.TargetField, model.DataType)
		}
		info.Mappings = append(info.Mappings, RelationshipMapping{
			SourceField:  m.SourceField,
			SourceColumn: sourceMapping.Column,
			TargetField:  m.TargetField,
			TargetColumn: targetField.Column,
		})
	}
	return info, nil
}

func commandRelationshipInfo(rel *metadata.Relationship, source Source, command *metadata.Command) (*RelationshipInfo, error) {
	relType := metadata.RelationshipObject
	if command.OutputType.IsList() {
		relType = metadata.RelationshipArray
	}
	info := newRelationshipInfo(rel, source, command.Source.DataConnector, relType)
	for _, m := range rel.CommandTarget.Mappings {
		sourceMapping, ok := source.FieldMappings[m.SourceField]
		if !ok {
			return nil, missingFieldMapping(m.SourceField, source.TypeName)
		}
		info.Mappings = append(info.Mappings, RelationshipMapping{
			SourceField:    m.SourceField,
			SourceColumn:   sourceMapping.Column,
			TargetArgument: connectorArgumentName(m.TargetArgument, command.Source.ArgumentMappings),
		})
	}
	return info, nil
}

func newRelationshipInfo(rel *metadata.Relationship, source Source, target *metadata.DataConnectorLink, relType metadata.RelationshipType) *RelationshipInfo {
	info := &RelationshipInfo{
		RelationshipName:    rel.Name,
		SourceType:          rel.SourceType,
		TargetDataConnector: target.Name,
		RelationshipType:    relType,
		Mappings:            []RelationshipMapping{},
	}
	if source.DataConnector != nil {
		info.SourceDataConnector = source.DataConnector.Name
	}
	return info
}
