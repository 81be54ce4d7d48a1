package metadata

import (
	"fmt"
	"strings"
)

// ParseTypeReference parses a GraphQL type string such as "[[Int!]!]" into a
// TypeReference. Custom names are qualified by subgraph; resolve decides whether
// they name a scalar or an object type.
func ParseTypeReference(s, subgraph string) (TypeReference, error) {
	p := typeParser{input: strings.TrimSpace(s), subgraph: subgraph}
	ref, err := p.parse()
	if err != nil {
		return TypeReference{}, fmt.Errorf("invalid type %q: %w", s, err)
	}
	if p.pos != len(p.input) {
		return TypeReference{}, fmt.Errorf("invalid type %q: unexpected %q", s, p.input[p.pos:])
	}
	return ref, nil
}

type typeParser struct {
	input    string
	pos      int
	subgraph string
}

func (p *typeParser) parse() (TypeReference, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return TypeReference{}, fmt.Errorf("unexpected end of type")
	}

	var ref TypeReference
	if p.input[p.pos] == '[' {
		p.pos++
		element, err := p.parse()
		if err != nil {
			return TypeReference{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ']' {
			return TypeReference{}, fmt.Errorf("missing closing bracket")
		}
		p.pos++
		ref = TypeReference{Underlying: ListType{Element: element}}
	} else {
		start := p.pos
		for p.pos < len(p.input) && isNameChar(p.input[p.pos], p.pos == start) {
			p.pos++
		}
		if start == p.pos {
			return TypeReference{}, fmt.Errorf("expected type name at offset %d", start)
		}
		name := p.input[start:p.pos]
		if inbuilt, ok := LookupInbuiltType(name); ok {
			ref = TypeReference{Underlying: NamedType{Name: InbuiltTypeName{Type: inbuilt}}}
		} else {
			ref = TypeReference{Underlying: NamedType{Name: CustomTypeName{Name: NewQualifiedName(p.subgraph, name)}}}
		}
	}

	p.skipSpace()
	ref.Nullable = true
	if p.pos < len(p.input) && p.input[p.pos] == '!' {
		p.pos++
		ref.Nullable = false
	}
	return ref, nil
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func isNameChar(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
