package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize returns the plural of word. Overrides win over inflection rules.
func (n *Namer) Pluralize(word string) string {
	if override, ok := lookupOverride(n.config.PluralOverrides, word); ok {
		return override
	}
	return inflection.Plural(word)
}

// Singularize returns the singular of word. Overrides win over inflection rules.
func (n *Namer) Singularize(word string) string {
	if override, ok := lookupOverride(n.config.SingularOverrides, word); ok {
		return override
	}
	return inflection.Singular(word)
}

// lookupOverride matches word exactly, then by lowercase. A lowercase match
// keeps the case of the word's first letter.
func lookupOverride(overrides map[string]string, word string) (string, bool) {
	if override, ok := overrides[word]; ok {
		return override, true
	}
	override, ok := overrides[strings.ToLower(word)]
	if !ok || override == "" {
		return "", false
	}
	if word != "" && word[:1] != strings.ToLower(word[:1]) {
		override = strings.ToUpper(override[:1]) + override[1:]
	}
	return override, true
}
