package schema

import (
	"errors"
	"fmt"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/naming"
)

// ErrInvalidSchema is wrapped by every Build failure.
var ErrInvalidSchema = errors.New("invalid schema")

// Build derives the annotated schema from resolved metadata.
func Build(md *metadata.Metadata, namer *naming.Namer) (*Schema, error) {
	if namer == nil {
		namer = naming.Default()
	}
	b := &builder{
		md:    md,
		namer: namer,
		s: &Schema{
			Metadata:  md,
			Query:     newObject(QueryTypeName),
			objects:   map[string]*Object{},
			scalars:   map[string]bool{},
			typeNames: map[metadata.QualifiedName]string{},
		},
		aggregateTypes: map[metadata.QualifiedName]string{},
	}
	b.s.objects[QueryTypeName] = b.s.Query

	steps := []func() error{
		b.buildScalars,
		b.buildObjectTypes,
		b.buildNodeInterface,
		b.buildRelationships,
		b.buildQuery,
		b.buildValidationSchema,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.s, nil
}

type builder struct {
	md             *metadata.Metadata
	namer          *naming.Namer
	s              *Schema
	aggregateTypes map[metadata.QualifiedName]string
}

func (b *builder) buildScalars() error {
	for _, t := range []metadata.InbuiltType{metadata.InbuiltID, metadata.InbuiltInt, metadata.InbuiltFloat, metadata.InbuiltString, metadata.InbuiltBoolean} {
		b.s.scalars[string(t)] = true
	}
	for name := range b.md.ScalarTypes {
		b.s.scalars[name.Name] = true
	}
	return nil
}

func (b *builder) buildObjectTypes() error {
	for _, name := range b.md.ObjectTypeOrder {
		gqlName := b.namer.RegisterType(name.Name, "object:"+name.Name)
		if b.s.scalars[gqlName] {
			return fmt.Errorf("%w: object type %s collides with a scalar", ErrInvalidSchema, name)
		}
		obj := newObject(gqlName)
		dataType := name
		obj.DataType = &dataType
		b.s.objects[gqlName] = obj
		b.s.typeNames[name] = gqlName
	}

	for _, name := range b.md.ObjectTypeOrder {
		metaObj := b.md.ObjectTypes[name]
		obj := b.s.objects[b.s.typeNames[name]]
		for _, field := range metaObj.Fields {
			if len(metaObj.GlobalIDFields) > 0 && field.Name == IDFieldName {
				return fmt.Errorf("%w: object type %s has global id fields and a field named %q", ErrInvalidSchema, name, IDFieldName)
			}
			kind := b.kindOf(field.Type)
			args := make([]*InputValue, 0, len(field.Arguments))
			for _, arg := range field.Arguments {
				args = append(args, &InputValue{Name: arg.Name, Type: b.typeOf(arg.Type), Info: FieldArgument{Argument: arg}})
			}
			obj.addField(&Field{
				Name:      b.namer.RegisterField(obj.Name, field.Name, "field:"+field.Name),
				Type:      b.typeOf(field.Type),
				Arguments: args,
				Info:      OutputField{FieldName: field.Name, BaseKind: kind, Arguments: field.Arguments},
			})
		}
		if len(metaObj.GlobalIDFields) > 0 {
			obj.addField(&Field{
				Name: b.namer.RegisterField(obj.Name, IDFieldName, "global_id"),
				Type: nonNull(named(string(metadata.InbuiltID))),
				Info: GlobalIDField{Fields: metaObj.GlobalIDFields},
			})
		}
	}
	return nil
}

func (b *builder) buildNodeInterface() error {
	idFields := map[metadata.QualifiedName][]string{}
	node := newObject(NodeTypeName)
	node.IsInterface = true
	for _, name := range b.md.ObjectTypeOrder {
		if _, ok := b.md.GlobalIDModel(name); !ok {
			continue
		}
		idFields[name] = b.md.ObjectTypes[name].GlobalIDFields
		obj := b.s.objects[b.s.typeNames[name]]
		obj.Interfaces = append(obj.Interfaces, NodeTypeName)
		node.PossibleTypes = append(node.PossibleTypes, obj.Name)
	}
	if len(node.PossibleTypes) == 0 {
		return nil
	}
	node.addField(&Field{
		Name: IDFieldName,
		Type: nonNull(named(string(metadata.InbuiltID))),
		Info: RelayNodeInterfaceID{GlobalIDFields: idFields},
	})
	b.s.objects[NodeTypeName] = node
	return nil
}

func (b *builder) buildRelationships() error {
	for _, name := range b.md.ObjectTypeOrder {
		obj := b.s.objects[b.s.typeNames[name]]
		for _, rel := range b.md.ObjectTypes[name].Relationships {
			source := "relationship:" + rel.Name
			switch {
			case rel.ModelTarget != nil:
				target := rel.ModelTarget.Model
				if target.Source == nil {
					continue
				}
				targetName := b.s.typeNames[target.DataType]
				field := &Field{
					Name: b.namer.RegisterField(obj.Name, rel.Name, source),
					Info: RelationshipToModel{Relationship: rel},
				}
				if rel.ModelTarget.Type == metadata.RelationshipArray {
					field.Type = nonNull(list(nonNull(named(targetName))))
					field.Arguments = append(b.paginationArguments(), b.modelArguments(target)...)
				} else {
					field.Type = named(targetName)
					field.Arguments = b.modelArguments(target)
				}
				obj.addField(field)

				if rel.ModelTarget.Type == metadata.RelationshipArray && target.Source.DataConnector.Capabilities.Aggregates {
					obj.addField(&Field{
						Name:      b.namer.RegisterField(obj.Name, b.namer.AggregateFieldName(rel.Name), source+":aggregate"),
						Type:      nonNull(named(b.aggregateType(target.DataType))),
						Arguments: b.modelArguments(target),
						Info:      RelationshipToModelAggregate{Relationship: rel},
					})
				}
			case rel.CommandTarget != nil:
				command := rel.CommandTarget.Command
				if command.Source == nil {
					continue
				}
				mapped := map[string]bool{}
				for _, m := range rel.CommandTarget.Mappings {
					mapped[m.TargetArgument] = true
				}
				var args []*InputValue
				for _, arg := range command.Arguments {
					if !mapped[arg.Name] {
						args = append(args, &InputValue{Name: arg.Name, Type: b.typeOf(arg.Type), Info: CommandArgument{Argument: arg}})
					}
				}
				obj.addField(&Field{
					Name:      b.namer.RegisterField(obj.Name, rel.Name, source),
					Type:      b.typeOf(command.OutputType),
					Arguments: args,
					Info:      RelationshipToCommand{Relationship: rel, OutputKind: b.kindOf(command.OutputType)},
				})
			}
		}
	}
	return nil
}

func (b *builder) buildQuery() error {
	query := b.s.Query
	for _, name := range b.md.ModelOrder {
		model := b.md.Models[name]
		if model.Source == nil {
			continue
		}
		typeName := b.s.typeNames[model.DataType]
		source := "model:" + name.Name

		query.addField(&Field{
			Name:      b.namer.RegisterQueryField(b.namer.SelectManyFieldName(name.Name), source),
			Type:      nonNull(list(nonNull(named(typeName)))),
			Arguments: append(b.paginationArguments(), b.modelArguments(model)...),
			Info:      ModelSelectMany{Model: model},
		})

		if len(model.UniqueIdentifier) > 0 {
			metaObj := b.md.ObjectTypes[model.DataType]
			var args []*InputValue
			for _, fieldName := range model.UniqueIdentifier {
				field, _ := metaObj.Field(fieldName)
				keyType := field.Type
				keyType.Nullable = false
				args = append(args, &InputValue{
					Name: fieldName,
					Type: b.typeOf(keyType),
					Info: UniqueIdentifierArgument{FieldName: fieldName, Type: keyType},
				})
			}
			query.addField(&Field{
				Name:      b.namer.RegisterQueryField(b.namer.SelectOneFieldName(name.Name), source),
				Type:      named(typeName),
				Arguments: append(args, b.modelArguments(model)...),
				Info:      ModelSelectOne{Model: model},
			})
		}

		if model.Source.DataConnector.Capabilities.Aggregates {
			query.addField(&Field{
				Name:      b.namer.RegisterQueryField(b.namer.AggregateFieldName(b.namer.SelectManyFieldName(name.Name)), source+":aggregate"),
				Type:      nonNull(named(b.aggregateType(model.DataType))),
				Arguments: b.modelArguments(model),
				Info:      ModelSelectAggregate{Model: model},
			})
		}
	}

	for _, name := range b.md.CommandOrder {
		command := b.md.Commands[name]
		if command.Source == nil {
			continue
		}
		args := make([]*InputValue, 0, len(command.Arguments))
		for _, arg := range command.Arguments {
			args = append(args, &InputValue{Name: arg.Name, Type: b.typeOf(arg.Type), Info: CommandArgument{Argument: arg}})
		}
		query.addField(&Field{
			Name:      b.namer.RegisterQueryField(b.namer.FieldName(name.Name), "command:"+name.Name),
			Type:      b.typeOf(command.OutputType),
			Arguments: args,
			Info:      FunctionCommand{Command: command, OutputKind: b.kindOf(command.OutputType)},
		})
	}

	if node, ok := b.s.objects[NodeTypeName]; ok {
		models := make(map[metadata.QualifiedName]*metadata.Model, len(node.PossibleTypes))
		idFields := make(map[metadata.QualifiedName][]string, len(node.PossibleTypes))
		for _, typeName := range node.PossibleTypes {
			dataType := *b.s.objects[typeName].DataType
			models[dataType], _ = b.md.GlobalIDModel(dataType)
			idFields[dataType] = b.md.ObjectTypes[dataType].GlobalIDFields
		}
		query.addField(&Field{
			Name: b.namer.RegisterQueryField(NodeFieldName, "node"),
			Type: named(NodeTypeName),
			Arguments: []*InputValue{{
				Name: IDFieldName,
				Type: nonNull(named(string(metadata.InbuiltID))),
				Info: NodeIDArgument{},
			}},
			Info: NodeField{Models: models, GlobalIDFields: idFields},
		})
	}
	return nil
}

// aggregateType returns the aggregate type of an object type, creating it on first use.
func (b *builder) aggregateType(name metadata.QualifiedName) string {
	if gqlName, ok := b.aggregateTypes[name]; ok {
		return gqlName
	}
	typeName := b.s.typeNames[name]
	aggName := b.namer.RegisterType(b.namer.AggregateTypeName(typeName), "aggregate:"+name.Name)
	b.aggregateTypes[name] = aggName

	agg := newObject(aggName)
	agg.addField(&Field{Name: "_count", Type: nonNull(named(string(metadata.InbuiltInt))), Info: AggregateCount{}})
	for _, field := range b.md.ObjectTypes[name].Fields {
		if field.Type.IsList() || b.md.IsObjectType(field.Type.NamedTypeName()) {
			continue
		}
		operandName := b.namer.RegisterType(b.namer.AggregateOperandTypeName(typeName, field.Name), "aggregate:"+name.Name+"."+field.Name)
		operand := newObject(operandName)
		operand.addField(&Field{Name: "_count", Type: nonNull(named(string(metadata.InbuiltInt))), Info: AggregateColumnCount{}})
		operand.addField(&Field{Name: "_count_distinct", Type: nonNull(named(string(metadata.InbuiltInt))), Info: AggregateColumnCount{Distinct: true}})
		valueType := named(field.Type.NamedTypeName().String())
		operand.addField(&Field{Name: "_min", Type: valueType, Info: AggregationFunction{Function: "min"}})
		operand.addField(&Field{Name: "_max", Type: valueType, Info: AggregationFunction{Function: "max"}})
		if isNumeric(field.Type) {
			operand.addField(&Field{Name: "_sum", Type: valueType, Info: AggregationFunction{Function: "sum"}})
			operand.addField(&Field{Name: "_avg", Type: named(string(metadata.InbuiltFloat)), Info: AggregationFunction{Function: "avg"}})
		}
		b.s.objects[operandName] = operand
		agg.addField(&Field{
			Name: b.namer.RegisterField(aggName, field.Name, "aggregate:"+field.Name),
			Type: nonNull(named(operandName)),
			Info: AggregatableField{FieldName: field.Name},
		})
	}
	b.s.objects[aggName] = agg
	return aggName
}

func (b *builder) paginationArguments() []*InputValue {
	return []*InputValue{
		{Name: LimitArgName, Type: named(string(metadata.InbuiltInt)), Info: ModelLimitArgument{}},
		{Name: OffsetArgName, Type: named(string(metadata.InbuiltInt)), Info: ModelOffsetArgument{}},
	}
}

func (b *builder) modelArguments(model *metadata.Model) []*InputValue {
	args := make([]*InputValue, 0, len(model.Arguments))
	for _, arg := range model.Arguments {
		args = append(args, &InputValue{Name: arg.Name, Type: b.typeOf(arg.Type), Info: ModelArgument{Argument: arg}})
	}
	return args
}

func (b *builder) typeOf(ref metadata.TypeReference) *Type {
	var t *Type
	switch base := ref.Underlying.(type) {
	case metadata.ListType:
		t = list(b.typeOf(base.Element))
	case metadata.NamedType:
		switch name := base.Name.(type) {
		case metadata.InbuiltTypeName:
			t = named(string(name.Type))
		case metadata.CustomTypeName:
			if gqlName, ok := b.s.typeNames[name.Name]; ok {
				t = named(gqlName)
			} else {
				t = named(name.Name.Name)
			}
		}
	}
	t.NonNull = !ref.Nullable
	return t
}

func (b *builder) kindOf(ref metadata.TypeReference) TypeKind {
	if b.md.IsObjectType(ref.NamedTypeName()) {
		return TypeKindObject
	}
	return TypeKindScalar
}

func isNumeric(ref metadata.TypeReference) bool {
	inbuilt, ok := ref.NamedTypeName().(metadata.InbuiltTypeName)
	return ok && (inbuilt.Type == metadata.InbuiltInt || inbuilt.Type == metadata.InbuiltFloat)
}

func named(name string) *Type { return &Type{Name: name} }

func list(element *Type) *Type { return &Type{OfType: element} }

func nonNull(t *Type) *Type {
	t.NonNull = true
	return t
}
