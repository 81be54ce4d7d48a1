package naming

import (
	"log/slog"
	"strings"
)

// Namer derives GraphQL schema names from metadata names. It handles
// pluralization, reserved words and collisions.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg.withDefaults(),
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for a new schema build.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// TypeName converts a metadata name to a GraphQL type name (PascalCase).
// Example: "author_stats" -> "AuthorStats"
func (n *Namer) TypeName(name string) string {
	return n.validateTypeAndSuffix(toPascalCase(name))
}

// FieldName converts a metadata name to a GraphQL field name (camelCase).
// Example: "AuthorStats" -> "authorStats", "author_stats" -> "authorStats"
func (n *Namer) FieldName(name string) string {
	return lowerFirst(toCamelCase(name))
}

// SelectManyFieldName is the root field listing a model, e.g. "Author" -> "authors".
func (n *Namer) SelectManyFieldName(modelName string) string {
	return n.Pluralize(n.FieldName(modelName))
}

// SelectOneFieldName is the root field fetching one model row by key, e.g. "Authors" -> "author".
// When singular and plural forms coincide the name is suffixed with "ByKey".
func (n *Namer) SelectOneFieldName(modelName string) string {
	single := n.Singularize(n.FieldName(modelName))
	if single == n.SelectManyFieldName(modelName) {
		return single + "ByKey"
	}
	return single
}

// AggregateFieldName is the field exposing aggregates over an array relationship.
func (n *Namer) AggregateFieldName(relationshipName string) string {
	return n.FieldName(relationshipName) + "Aggregate"
}

// AggregateTypeName is the object type holding aggregates of typeName.
func (n *Namer) AggregateTypeName(typeName string) string {
	return n.TypeName(typeName) + "Aggregate"
}

// AggregateOperandTypeName is the object type holding per-column aggregation functions.
func (n *Namer) AggregateOperandTypeName(typeName, fieldName string) string {
	return n.TypeName(typeName) + toPascalCase(fieldName) + "Aggregate"
}

// RelationshipJoinName is the base join name for a relationship, before collision suffixes.
// Example: ("app", "Article", "author") -> "app__Article__author"
func RelationshipJoinName(subgraph, sourceType, relationship string) string {
	parts := make([]string, 0, 3)
	if subgraph != "" {
		parts = append(parts, subgraph)
	}
	parts = append(parts, sourceType, relationship)
	return strings.Join(parts, "__")
}

// RegisterType registers a type name and returns the resolved GraphQL type name.
// If a collision occurs, returns a suffixed name and logs a warning.
func (n *Namer) RegisterType(name, source string) string {
	return n.resolver.RegisterType(n.TypeName(name), source)
}

// RegisterField registers a field of typeName and returns the resolved field name.
// Declared fields are registered first, so relationship and synthetic fields yield to them.
func (n *Namer) RegisterField(typeName, fieldName, source string) string {
	fieldName = n.validateFieldAndSuffix(fieldName)
	if n.resolver.FieldExists(typeName, fieldName) && strings.HasPrefix(source, "relationship:") {
		fieldName += "Rel"
	}
	return n.resolver.RegisterField(typeName, fieldName, source)
}

// RegisterQueryField registers a root query field and returns the resolved name.
func (n *Namer) RegisterQueryField(fieldName, source string) string {
	return n.resolver.RegisterQuery(n.validateFieldAndSuffix(fieldName), source)
}

func (n *Namer) validateTypeAndSuffix(name string) string {
	if isReservedTypeName(name) {
		safeName := name + "_"
		n.logger.Warn("GraphQL name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}

func (n *Namer) validateFieldAndSuffix(name string) string {
	if isReservedFieldName(name) {
		safeName := name + "_"
		n.logger.Warn("GraphQL name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}

// toPascalCase converts snake_case to PascalCase
func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// toCamelCase converts snake_case to camelCase
func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
