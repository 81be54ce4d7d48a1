package gqlrequest

import (
	"context"
	"errors"
	"testing"
)

func TestAnalyzeEnvelope_Metadata(t *testing.T) {
	tests := []struct {
		name              string
		query             string
		operationName     string
		wantType          string
		wantRootFields    int
		wantFields        int
		wantDepth         int
		wantVars          int
		wantParseErr      bool
		wantSelectionErr  bool
		wantResolvedName  string
		wantOperationHash bool
	}{
		{
			name: "simple query",
			query: `query {
				authors {
					first_name
					last_name
				}
			}`,
			wantType:          "query",
			wantRootFields:    1,
			wantFields:        3,
			wantDepth:         2,
			wantResolvedName:  "<anonymous>",
			wantOperationHash: true,
		},
		{
			name: "named operation with variables",
			query: `query GetAuthor($id: Int!, $fmt: String) {
				author(author_id: $id) {
					first_name
					display_name(format: $fmt)
				}
				articles { title }
			}`,
			operationName:     "GetAuthor",
			wantType:          "query",
			wantRootFields:    2,
			wantFields:        5,
			wantDepth:         2,
			wantVars:          2,
			wantResolvedName:  "GetAuthor",
			wantOperationHash: true,
		},
		{
			name: "mutation is analyzed but not lowered",
			query: `mutation CreateAuthor($name: String!) {
				createAuthor(name: $name) { author_id }
			}`,
			operationName:     "CreateAuthor",
			wantType:          "mutation",
			wantRootFields:    1,
			wantFields:        2,
			wantDepth:         2,
			wantVars:          1,
			wantResolvedName:  "CreateAuthor",
			wantOperationHash: true,
		},
		{
			name: "multiple operations without name is unresolved",
			query: `
				query A { authors { first_name } }
				query B { articles { title } }
			`,
			wantSelectionErr: true,
		},
		{
			name:         "malformed query",
			query:        `query { authors { `,
			wantParseErr: true,
		},
		{
			name:             "empty query",
			query:            "",
			wantSelectionErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := AnalyzeEnvelope(Envelope{
				Query:         tt.query,
				OperationName: tt.operationName,
			})
			if (analysis.ParseError != nil) != tt.wantParseErr {
				t.Fatalf("ParseError presence = %v, want %v (err=%v)", analysis.ParseError != nil, tt.wantParseErr, analysis.ParseError)
			}
			if (analysis.SelectionError != nil) != tt.wantSelectionErr {
				t.Fatalf("SelectionError presence = %v, want %v (err=%v)", analysis.SelectionError != nil, tt.wantSelectionErr, analysis.SelectionError)
			}
			if tt.wantParseErr || tt.wantSelectionErr {
				if analysis.Err() == nil {
					t.Fatalf("Err() = nil, want an error")
				}
				return
			}
			if analysis.Err() != nil {
				t.Fatalf("Err() = %v", analysis.Err())
			}
			if analysis.OperationType != tt.wantType {
				t.Fatalf("OperationType = %q, want %q", analysis.OperationType, tt.wantType)
			}
			if analysis.RootFieldCount != tt.wantRootFields {
				t.Fatalf("RootFieldCount = %d, want %d", analysis.RootFieldCount, tt.wantRootFields)
			}
			if analysis.FieldCount != tt.wantFields {
				t.Fatalf("FieldCount = %d, want %d", analysis.FieldCount, tt.wantFields)
			}
			if analysis.SelectionDepth != tt.wantDepth {
				t.Fatalf("SelectionDepth = %d, want %d", analysis.SelectionDepth, tt.wantDepth)
			}
			if analysis.VariableCount != tt.wantVars {
				t.Fatalf("VariableCount = %d, want %d", analysis.VariableCount, tt.wantVars)
			}
			if analysis.OperationName != tt.wantResolvedName {
				t.Fatalf("OperationName = %q, want %q", analysis.OperationName, tt.wantResolvedName)
			}
			if (analysis.OperationHash != "") != tt.wantOperationHash {
				t.Fatalf("OperationHash presence = %v, want %v", analysis.OperationHash != "", tt.wantOperationHash)
			}
		})
	}
}

func TestAnalyzeEnvelope_EmptyQueryHasNoOperation(t *testing.T) {
	analysis := AnalyzeEnvelope(Envelope{})
	if !errors.Is(analysis.Err(), ErrNoOperation) {
		t.Fatalf("Err() = %v, want ErrNoOperation", analysis.Err())
	}
}

func TestAnalyzeEnvelope_FragmentCycleSafe(t *testing.T) {
	query := `
		fragment A on Author {
			first_name
			...B
		}
		fragment B on Author {
			last_name
			...A
		}
		query {
			authors {
				...A
			}
		}
	`
	analysis := AnalyzeEnvelope(Envelope{Query: query})
	if analysis.ParseError != nil || analysis.SelectionError != nil {
		t.Fatalf("unexpected parse/selection errors: parse=%v selection=%v", analysis.ParseError, analysis.SelectionError)
	}
	if analysis.FieldCount != 3 {
		t.Fatalf("FieldCount = %d, want %d", analysis.FieldCount, 3)
	}
}

func TestOperationHash_WhitespaceAndCommentsInsensitive(t *testing.T) {
	query1 := `
		query GetAuthors {
			authors { first_name last_name }
		}
	`
	query2 := `
		# comment
		query GetAuthors { authors { first_name last_name } }
	`

	a := AnalyzeEnvelope(Envelope{Query: query1, OperationName: "GetAuthors"})
	b := AnalyzeEnvelope(Envelope{Query: query2, OperationName: "GetAuthors"})
	if a.OperationHash == "" || b.OperationHash == "" {
		t.Fatalf("expected non-empty operation hashes")
	}
	if a.OperationHash != b.OperationHash {
		t.Fatalf("hash mismatch for equivalent queries: %q vs %q", a.OperationHash, b.OperationHash)
	}
	if len(a.OperationHash) != 16 {
		t.Fatalf("OperationHash = %q, want 16 hex digits", a.OperationHash)
	}
}

func TestOperationHash_MultiOperationSelection(t *testing.T) {
	query := `
		query A { authors { first_name } }
		query B { articles { title } }
	`
	a := AnalyzeEnvelope(Envelope{Query: query, OperationName: "A"})
	b := AnalyzeEnvelope(Envelope{Query: query, OperationName: "B"})
	if a.OperationHash == "" || b.OperationHash == "" {
		t.Fatalf("expected non-empty hashes for selected operations")
	}
	if a.OperationHash == b.OperationHash {
		t.Fatalf("expected different hashes for different selected operations")
	}
}

func TestFramedHashDisambiguatesTuples(t *testing.T) {
	if framedHash("ab", "c") == framedHash("a", "bc") {
		t.Fatalf("expected framed hash to disambiguate tuple boundaries")
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected no analysis in empty context")
	}
	if _, ok := FromContext(NewContext(context.Background(), nil)); ok {
		t.Fatalf("expected nil analysis to be reported as absent")
	}

	analysis := AnalyzeEnvelope(Envelope{Query: "{ authors { id } }"})
	got, ok := FromContext(NewContext(context.Background(), analysis))
	if !ok || got != analysis {
		t.Fatalf("expected stored analysis, got %v (ok=%v)", got, ok)
	}
}

func TestOperationHash_IgnoresUnusedFragments(t *testing.T) {
	base := AnalyzeEnvelope(Envelope{Query: `query Q { authors { ...A } } fragment A on Author { id }`})
	extra := AnalyzeEnvelope(Envelope{Query: `query Q { authors { ...A } } fragment Unused on Author { name } fragment A on Author { id }`})
	if base.OperationHash == "" || base.OperationHash != extra.OperationHash {
		t.Fatalf("unused fragment changed the hash: %q vs %q", base.OperationHash, extra.OperationHash)
	}
}

func TestOperationHash_MissingFragment(t *testing.T) {
	analysis := AnalyzeEnvelope(Envelope{Query: `query Q { authors { ...Missing } }`})
	if analysis.CanonicalizeErr == nil {
		t.Fatalf("expected canonicalization error for undefined fragment")
	}
	if analysis.OperationHash != "" {
		t.Fatalf("expected no hash, got %q", analysis.OperationHash)
	}
	if analysis.Err() != nil {
		t.Fatalf("canonicalization failures must not fail the analysis: %v", analysis.Err())
	}
}

func TestAnalyzeEnvelope_RepeatedSpreadCountsEachUse(t *testing.T) {
	query := `
		fragment Names on Author { first_name last_name }
		query {
			authors { ...Names }
			author(author_id: 1) { ...Names articles { ... on Article { title } } }
		}
	`
	analysis := AnalyzeEnvelope(Envelope{Query: query})
	if err := analysis.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if analysis.FieldCount != 8 {
		t.Fatalf("FieldCount = %d, want 8", analysis.FieldCount)
	}
	if analysis.SelectionDepth != 3 {
		t.Fatalf("SelectionDepth = %d, want 3", analysis.SelectionDepth)
	}
}
