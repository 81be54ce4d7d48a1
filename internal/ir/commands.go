package ir

import (
	"graphql-ir/internal/metadata"
	"graphql-ir/internal/normalized"
	"graphql-ir/internal/schema"
)

// CommandInfo is the connector-independent part of a command invocation.
type CommandInfo struct {
	CommandName   metadata.QualifiedName      `json:"command_name"`
	FieldName     string                      `json:"field_name"`
	DataConnector *metadata.DataConnectorLink `json:"data_connector"`
	Arguments     *Arguments                  `json:"arguments"`
	Selection     NestedSelection             `json:"selection,omitempty"`
	ResultType    metadata.TypeReference      `json:"result_type"`
}

// FunctionBasedCommand invokes a connector function.
type FunctionBasedCommand struct {
	CommandInfo
	FunctionName string `json:"function_name"`
}

// functionBasedCommand lowers an invocation of command. Arguments in mapped are
// not resolved from the call; with asVariables they become Variable arguments
// naming the source column that supplies them.
func (g *generator) functionBasedCommand(
	command *metadata.Command,
	outputKind schema.TypeKind,
	field *normalized.Field,
	call *normalized.FieldCall,
	mapped map[string]string,
	asVariables bool,
) (*FunctionBasedCommand, error) {
	if command.Source == nil {
		return nil, internalf(field.Alias, "command %s has no source", command.Name)
	}
	if err := checkArgumentAnnotations[schema.CommandArgument](call); err != nil {
		return nil, err
	}

	declared := make([]metadata.Argument, 0, len(command.Arguments))
	for _, arg := range command.Arguments {
		if _, ok := mapped[arg.Name]; !ok {
			declared = append(declared, arg)
		}
	}
	args, err := resolveArguments(declared, call.Arguments, command.Source.ArgumentMappings, call.Name, command.Source.TypeMappings)
	if err != nil {
		return nil, err
	}
	if asVariables {
		for _, arg := range command.Arguments {
			if column, ok := mapped[arg.Name]; ok {
				args.Set(connectorArgumentName(arg.Name, command.Source.ArgumentMappings), Variable{Name: column})
			}
		}
	}

	source := Source{DataConnector: command.Source.DataConnector, TypeMappings: command.Source.TypeMappings}
	selection, err := g.generateNestedSelection(command.OutputType, outputKind, metadata.NotNested, CommandRootSelection, field, source)
	if err != nil {
		return nil, err
	}
	g.usage.RecordCommand(command.Name)

	return &FunctionBasedCommand{
		CommandInfo: CommandInfo{
			CommandName:   command.Name,
			FieldName:     call.Name,
			DataConnector: command.Source.DataConnector,
			Arguments:     args,
			Selection:     selection,
			ResultType:    command.OutputType,
		},
		FunctionName: command.Source.Function,
	}, nil
}
