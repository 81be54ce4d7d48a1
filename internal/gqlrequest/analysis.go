// Package gqlrequest parses lowering requests once and derives the metadata
// shared by logging, metrics and the normalizer.
package gqlrequest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// ErrNoOperation is returned when a request carries no query document.
var ErrNoOperation = errors.New("request does not include an operation")

// Analysis stores the parsed request and derived metadata.
type Analysis struct {
	Envelope               Envelope
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string

	RootFieldCount int
	FieldCount     int
	SelectionDepth int
	VariableCount  int

	CanonicalOperation string
	OperationHash      string

	DecodeError     error
	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

// AnalyzeRequest decodes and analyzes a lowering request.
func AnalyzeRequest(r *http.Request) *Analysis {
	envelope, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(envelope)
	if err != nil {
		analysis.DecodeError = err
	}
	return analysis
}

// AnalyzeEnvelope parses the query document and selects the operation to lower.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:               env,
		RequestedOperationName: env.OperationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}

	if strings.TrimSpace(env.Query) == "" {
		analysis.SelectionError = ErrNoOperation
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(env.Query),
			Name: "graphql",
		}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}

	analysis.Document = doc
	operations, fragments := indexDocument(doc)
	analysis.Fragments = fragments

	op, err := selectOperation(operations, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}

	analysis.Operation = op
	analysis.OperationName = effectiveOperationName(op)
	analysis.OperationType = op.Operation
	analysis.VariableCount = len(op.VariableDefinitions)
	if op.SelectionSet != nil {
		analysis.RootFieldCount = len(op.SelectionSet.Selections)
	}
	shape := newShapeWalker(fragments).walk(op.SelectionSet)
	analysis.FieldCount = shape.fields
	analysis.SelectionDepth = shape.depth

	if analysis.CanonicalOperation, analysis.OperationHash, err = canonicalOperationAndHash(op, fragments); err != nil {
		analysis.CanonicalizeErr = err
	}
	return analysis
}

// Err returns the first failure recorded while decoding, parsing or selecting
// the operation. Canonicalization failures only cost the hash and are not reported.
func (a *Analysis) Err() error {
	switch {
	case a == nil:
		return ErrNoOperation
	case a.DecodeError != nil:
		return fmt.Errorf("invalid request body: %w", a.DecodeError)
	case a.ParseError != nil:
		return fmt.Errorf("invalid query document: %w", a.ParseError)
	case a.SelectionError != nil:
		return a.SelectionError
	}
	return nil
}

// indexDocument splits the top-level definitions into operations, in document
// order, and named fragments.
func indexDocument(doc *ast.Document) ([]*ast.OperationDefinition, map[string]*ast.FragmentDefinition) {
	var operations []*ast.OperationDefinition
	fragments := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			if d != nil {
				operations = append(operations, d)
			}
		case *ast.FragmentDefinition:
			if d != nil && d.Name != nil && d.Name.Value != "" {
				fragments[d.Name.Value] = d
			}
		}
	}
	return operations, fragments
}

func selectOperation(operations []*ast.OperationDefinition, operationName string) (*ast.OperationDefinition, error) {
	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", operationName)
	}

	switch len(operations) {
	case 0:
		return nil, ErrNoOperation
	case 1:
		return operations[0], nil
	}
	return nil, fmt.Errorf("operationName is required when request has multiple operations")
}

// selectionShape is the field count and nesting depth of a selection set.
// Depth counts selection-set levels, so a flat list of scalars has depth 1.
type selectionShape struct {
	fields int
	depth  int
}

// shapeWalker measures selection sets, expanding fragment spreads in place.
// Every spread counts the fragment's fields again, matching what the
// normalizer produces. A spread that re-enters a fragment being measured
// contributes nothing.
type shapeWalker struct {
	fragments map[string]*ast.FragmentDefinition
	measured  map[string]selectionShape
	active    map[string]bool
}

func newShapeWalker(fragments map[string]*ast.FragmentDefinition) *shapeWalker {
	return &shapeWalker{
		fragments: fragments,
		measured:  map[string]selectionShape{},
		active:    map[string]bool{},
	}
}

func (w *shapeWalker) walk(set *ast.SelectionSet) selectionShape {
	var shape selectionShape
	if set == nil {
		return shape
	}
	shape.depth = 1
	for _, selection := range set.Selections {
		var inner selectionShape
		switch sel := selection.(type) {
		case *ast.Field:
			shape.fields++
			nested := w.walk(sel.SelectionSet)
			inner = selectionShape{fields: nested.fields, depth: nested.depth + 1}
			if sel.SelectionSet == nil {
				inner.depth = 1
			}
		case *ast.InlineFragment:
			inner = w.walk(sel.SelectionSet)
		case *ast.FragmentSpread:
			if sel.Name != nil {
				inner = w.fragment(sel.Name.Value)
			}
		}
		shape.fields += inner.fields
		shape.depth = max(shape.depth, inner.depth)
	}
	return shape
}

func (w *shapeWalker) fragment(name string) selectionShape {
	if shape, ok := w.measured[name]; ok {
		return shape
	}
	fragment, ok := w.fragments[name]
	if !ok || w.active[name] {
		return selectionShape{}
	}
	w.active[name] = true
	shape := w.walk(fragment.SelectionSet)
	delete(w.active, name)
	w.measured[name] = shape
	return shape
}
