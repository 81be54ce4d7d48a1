package naming

import "strings"

// schemaTypeNames are type names the generated schema defines itself or that
// GraphQL reserves. Metadata types converted to one of these get a "_" suffix.
var schemaTypeNames = map[string]struct{}{
	"Query":        {},
	"Mutation":     {},
	"Subscription": {},
	"Node":         {},

	"Int":     {},
	"Float":   {},
	"String":  {},
	"Boolean": {},
	"ID":      {},
}

func isReservedTypeName(name string) bool {
	if strings.HasPrefix(name, "__") {
		return true
	}
	_, ok := schemaTypeNames[name]
	return ok
}

// isReservedFieldName reports introspection-style names.
func isReservedFieldName(name string) bool {
	return strings.HasPrefix(name, "__")
}
