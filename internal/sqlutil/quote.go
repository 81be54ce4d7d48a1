// Package sqlutil quotes identifiers for the SQL previews rendered from IR.
package sqlutil

import "strings"

// QuoteIdentifier backtick-quotes a collection, column or alias name,
// doubling embedded backticks.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteQualified quotes each part of a dotted reference such as a
// collection-qualified column.
func QuoteQualified(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = QuoteIdentifier(part)
	}
	return strings.Join(quoted, ".")
}

