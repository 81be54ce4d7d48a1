// Package session carries the caller's session variables. Their contents are
// opaque to lowering and only forwarded to connectors.
package session

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the session variable naming the caller's role.
const Role = "x-hasura-role"

// Variables maps session variable names to their raw values.
type Variables map[string]string

// Parse builds Variables from "name=value" pairs. Names are lower-cased.
func Parse(pairs []string) (Variables, error) {
	vars := make(Variables, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid session variable %q: expected name=value", pair)
		}
		vars[name] = value
	}
	return vars, nil
}

// Names returns the variable names in sorted order.
func (v Variables) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the value of a variable.
func (v Variables) Get(name string) (string, bool) {
	value, ok := v[strings.ToLower(name)]
	return value, ok
}
