package metadata

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk metadata format before resolution.
type Document struct {
	Subgraph       string                  `yaml:"subgraph"`
	DataConnectors []DataConnectorDocument `yaml:"dataConnectors"`
	ScalarTypes    []ScalarTypeDocument    `yaml:"scalarTypes"`
	ObjectTypes    []ObjectTypeDocument    `yaml:"objectTypes"`
	Models         []ModelDocument         `yaml:"models"`
	Commands       []CommandDocument       `yaml:"commands"`
	Relationships  []RelationshipDocument  `yaml:"relationships"`
}

// DataConnectorDocument declares a connector and its capabilities.
type DataConnectorDocument struct {
	Name         string               `yaml:"name"`
	URL          string               `yaml:"url"`
	Capabilities CapabilitiesDocument `yaml:"capabilities"`
}

// CapabilitiesDocument lists the relationship capabilities of a connector.
type CapabilitiesDocument struct {
	Relationships            bool `yaml:"relationships"`
	NestedRelationships      bool `yaml:"nestedRelationships"`
	NestedArrayRelationships bool `yaml:"nestedArrayRelationships"`
	Aggregates               bool `yaml:"aggregates"`
}

// ScalarTypeDocument declares a custom scalar.
type ScalarTypeDocument struct {
	Name string `yaml:"name"`
}

// ArgumentDocument declares an argument with a GraphQL type string.
type ArgumentDocument struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// FieldDocument declares an object field.
type FieldDocument struct {
	Name      string             `yaml:"name"`
	Type      string             `yaml:"type"`
	Arguments []ArgumentDocument `yaml:"arguments"`
}

// FieldMappingDocument maps a field onto a connector column.
type FieldMappingDocument struct {
	Column          string            `yaml:"column"`
	ArgumentMapping map[string]string `yaml:"argumentMapping"`
}

// TypeMappingDocument maps an object type onto a connector object type.
type TypeMappingDocument struct {
	DataConnector string                          `yaml:"dataConnector"`
	ObjectType    string                          `yaml:"objectType"`
	FieldMapping  map[string]FieldMappingDocument `yaml:"fieldMapping"`
}

// ObjectTypeDocument declares an object type.
type ObjectTypeDocument struct {
	Name                     string                `yaml:"name"`
	Fields                   []FieldDocument       `yaml:"fields"`
	GlobalIDFields           []string              `yaml:"globalIdFields"`
	DataConnectorTypeMapping []TypeMappingDocument `yaml:"dataConnectorTypeMapping"`
}

// SourceDocument binds a model or command to a connector.
type SourceDocument struct {
	DataConnector   string            `yaml:"dataConnector"`
	Collection      string            `yaml:"collection"`
	Function        string            `yaml:"function"`
	ArgumentMapping map[string]string `yaml:"argumentMapping"`
}

// ModelDocument declares a model.
type ModelDocument struct {
	Name             string             `yaml:"name"`
	ObjectType       string             `yaml:"objectType"`
	Arguments        []ArgumentDocument `yaml:"arguments"`
	UniqueIdentifier []string           `yaml:"uniqueIdentifier"`
	GlobalIDSource   bool               `yaml:"globalIdSource"`
	Source           *SourceDocument    `yaml:"source"`
}

// CommandDocument declares a command.
type CommandDocument struct {
	Name       string             `yaml:"name"`
	OutputType string             `yaml:"outputType"`
	Arguments  []ArgumentDocument `yaml:"arguments"`
	Source     *SourceDocument    `yaml:"source"`
}

// RelationshipDocument declares a relationship from a source type.
type RelationshipDocument struct {
	Name       string                        `yaml:"name"`
	SourceType string                        `yaml:"sourceType"`
	Target     RelationshipTargetDocument    `yaml:"target"`
	Mapping    []RelationshipMappingDocument `yaml:"mapping"`
}

// RelationshipTargetDocument names exactly one of a model or a command.
type RelationshipTargetDocument struct {
	Model   *ModelTargetDocument   `yaml:"model"`
	Command *CommandTargetDocument `yaml:"command"`
}

// ModelTargetDocument targets a model.
type ModelTargetDocument struct {
	Name             string `yaml:"name"`
	RelationshipType string `yaml:"relationshipType"`
}

// CommandTargetDocument targets a command.
type CommandTargetDocument struct {
	Name string `yaml:"name"`
}

// RelationshipMappingDocument maps a source field to a target field or argument.
type RelationshipMappingDocument struct {
	Source struct {
		Field string `yaml:"field"`
	} `yaml:"source"`
	Target struct {
		Field    string `yaml:"field"`
		Argument string `yaml:"argument"`
	} `yaml:"target"`
}

// Load decodes a metadata document. Unknown keys are rejected.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &doc, nil
}

// LoadFile reads, decodes and resolves the metadata file at path.
func LoadFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	doc, err := Load(f)
	if err != nil {
		return nil, err
	}
	return Resolve(doc)
}
