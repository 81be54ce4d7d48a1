package naming

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	scopeTypes   = "types"
	scopeQueries = "queries"
)

// CollisionResolver tracks registered names per scope and resolves collisions
// by applying numeric suffixes when duplicates are detected.
type CollisionResolver struct {
	seen   map[string]map[string]string // scope → name → source
	logger *slog.Logger
	level  slog.Level
}

// NewCollisionResolver creates a resolver that reports collisions at warn level.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	return NewCollisionResolverWithLevel(logger, slog.LevelWarn)
}

// NewCollisionResolverWithLevel creates a resolver that reports collisions at level.
// Join names collide routinely, so their resolvers log at debug.
func NewCollisionResolverWithLevel(logger *slog.Logger, level slog.Level) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seen:   make(map[string]map[string]string),
		logger: logger,
		level:  level,
	}
}

// RegisterType registers a GraphQL type name and returns the resolved name.
func (c *CollisionResolver) RegisterType(graphqlName, source string) string {
	return c.Register(scopeTypes, graphqlName, source)
}

// RegisterField registers a field name within a type and returns the resolved name.
func (c *CollisionResolver) RegisterField(typeName, fieldName, source string) string {
	return c.Register("fields:"+typeName, fieldName, source)
}

// FieldExists checks if a field name already exists for a type.
func (c *CollisionResolver) FieldExists(typeName, fieldName string) bool {
	return c.Exists("fields:"+typeName, fieldName)
}

// RegisterQuery registers a query field name and returns the resolved name.
func (c *CollisionResolver) RegisterQuery(fieldName, source string) string {
	return c.Register(scopeQueries, fieldName, source)
}

// Exists reports whether name is registered in scope.
func (c *CollisionResolver) Exists(scope, name string) bool {
	_, ok := c.seen[scope][name]
	return ok
}

// Register registers name within scope and returns the resolved name.
// If the name already exists, finds the next available numeric suffix.
func (c *CollisionResolver) Register(scope, name, source string) string {
	seen := c.seen[scope]
	if seen == nil {
		seen = make(map[string]string)
		c.seen[scope] = seen
	}
	existingSource, exists := seen[name]
	if !exists {
		seen[name] = source
		return name
	}

	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", name, i)
		if _, exists := seen[suffixed]; !exists {
			seen[suffixed] = source
			c.logger.Log(context.Background(), c.level, "naming collision detected, applying suffix",
				slog.String("scope", scope),
				slog.String("name", name),
				slog.String("renamed", suffixed),
				slog.String("existing_source", existingSource),
				slog.String("new_source", source),
			)
			return suffixed
		}
	}
}
