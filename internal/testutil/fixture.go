// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"graphql-ir/internal/metadata"
	"graphql-ir/internal/naming"
	"graphql-ir/internal/schema"
)

// LibraryYAML is a metadata document with two connectors: "db" supports local and
// object-nested relationships and aggregates, "search" supports no relationships.
//
//go:embed testdata/library.yaml
var LibraryYAML []byte

// Subgraph is the subgraph the library metadata is declared in.
const Subgraph = "app"

// Name qualifies a metadata name with the fixture subgraph.
func Name(name string) metadata.QualifiedName {
	return metadata.NewQualifiedName(Subgraph, name)
}

// LibraryMetadata resolves the library metadata document.
func LibraryMetadata(t testing.TB) *metadata.Metadata {
	t.Helper()
	doc, err := metadata.Load(bytes.NewReader(LibraryYAML))
	require.NoError(t, err)
	md, err := metadata.Resolve(doc)
	require.NoError(t, err)
	return md
}

// LibrarySchema builds the annotated schema of the library metadata.
func LibrarySchema(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := schema.Build(LibraryMetadata(t), naming.Default())
	require.NoError(t, err)
	return s
}
