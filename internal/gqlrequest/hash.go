package gqlrequest

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalOperationAndHash prints the operation followed by the fragments it
// reaches, in name order. Formatting and unused definitions do not change the
// printed form or the hash.
func canonicalOperationAndHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, string, error) {
	if op == nil {
		return "", "", fmt.Errorf("operation is nil")
	}

	used, err := usedFragments(op.SelectionSet, fragments)
	if err != nil {
		return "", "", err
	}
	definitions := []ast.Node{op}
	for _, name := range slices.Sorted(maps.Keys(used)) {
		definitions = append(definitions, used[name])
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", "", fmt.Errorf("printer returned a non-string document")
	}
	return printed, framedHash(printed, effectiveOperationName(op)), nil
}

// usedFragments walks root with an explicit stack and returns every fragment
// it reaches through spreads, including spreads inside other fragments.
func usedFragments(root *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) (map[string]*ast.FragmentDefinition, error) {
	used := map[string]*ast.FragmentDefinition{}
	stack := []*ast.SelectionSet{root}
	for len(stack) > 0 {
		set := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if set == nil {
			continue
		}
		for _, selection := range set.Selections {
			switch sel := selection.(type) {
			case *ast.Field:
				stack = append(stack, sel.SelectionSet)
			case *ast.InlineFragment:
				stack = append(stack, sel.SelectionSet)
			case *ast.FragmentSpread:
				if sel.Name == nil || sel.Name.Value == "" {
					continue
				}
				name := sel.Name.Value
				if _, seen := used[name]; seen {
					continue
				}
				fragment := fragments[name]
				if fragment == nil {
					return nil, fmt.Errorf("fragment %q not found", name)
				}
				used[name] = fragment
				stack = append(stack, fragment.SelectionSet)
			}
		}
	}
	return used, nil
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedHash hashes length-prefixed parts so ("ab","c") and ("a","bc") differ.
func framedHash(parts ...string) string {
	digest := xxhash.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(digest, "%d:%s|", len(part), part)
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}
