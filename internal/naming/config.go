// Package naming derives GraphQL names from metadata names: root query fields,
// aggregate types, relationship join names, pluralization and collision handling.
package naming

// Config customizes pluralization of metadata names. Keys match either the
// exact word or its lowercase form, e.g. {"person": "people"} also covers
// "Person".
type Config struct {
	PluralOverrides   map[string]string `mapstructure:"plural_overrides"`
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// DefaultConfig returns a Config with no overrides.
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
	}
}

// withDefaults fills nil override maps so lookups never need a nil check.
func (c Config) withDefaults() Config {
	if c.PluralOverrides == nil {
		c.PluralOverrides = make(map[string]string)
	}
	if c.SingularOverrides == nil {
		c.SingularOverrides = make(map[string]string)
	}
	return c
}
