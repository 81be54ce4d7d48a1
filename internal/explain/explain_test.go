package explain

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphql-ir/internal/ir"
	"graphql-ir/internal/normalize"
	"graphql-ir/internal/testutil"
)

func buildPlan(t *testing.T, query string) *Plan {
	t.Helper()
	s := testutil.LibrarySchema(t)
	op, err := normalize.NormalizeQuery(s, query, "", nil)
	require.NoError(t, err)
	lowered, _, err := ir.GenerateQueryIR(op, ir.Request{})
	require.NoError(t, err)
	plan, err := Build(lowered)
	require.NoError(t, err)
	return plan
}

func TestPlanFormat_Golden(t *testing.T) {
	plan := buildPlan(t, `query Library {
		authors(limit: 2) {
			first_name
			articles(min_words: 100) {
				title
				search_hits(term: "go") { score }
			}
		}
		authorBio(author_id: 7) { text }
	}`)

	g := goldie.New(t)
	g.Assert(t, "library_plan", []byte(plan.Format()))
}

func TestBuild_StepOrder(t *testing.T) {
	plan := buildPlan(t, `{
		authors {
			articles { search_hits(term: "a") { score } }
		}
		articles { search_hits(term: "b") { score } }
	}`)

	paths := make([]string, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		paths = append(paths, step.Path)
	}
	assert.Equal(t, []string{"authors", "authors.articles.search_hits", "articles", "articles.search_hits"}, paths)
	assert.Equal(t, "authors.articles", plan.Steps[1].DependsOn)
	assert.Equal(t, "articles", plan.Steps[3].DependsOn)
	require.Len(t, plan.Steps[0].Children, 1)
	assert.Equal(t, KindLocalModel, plan.Steps[0].Children[0].Kind)
}

func TestBuild_SelectOneFilter(t *testing.T) {
	plan := buildPlan(t, `{ author(author_id: 7) { first_name } }`)

	require.Len(t, plan.Steps, 1)
	step := plan.Steps[0]
	assert.Equal(t, KindSelectOne, step.Kind)
	assert.Equal(t, "SELECT `authors`.`first_name` AS `first_name` FROM `authors` WHERE `id` = ?", step.SQL)
	assert.Equal(t, []any{int64(7)}, step.Args)
}

func TestBuild_Aggregate(t *testing.T) {
	plan := buildPlan(t, `{ articlesAggregate { total: _count word_count { _max _count_distinct } } }`)

	step := plan.Steps[0]
	assert.Equal(t, KindAggregate, step.Kind)
	assert.Equal(t,
		"SELECT COUNT(*) AS `total`, MAX(`words`) AS `word_count._max`, COUNT(DISTINCT `words`) AS `word_count._count_distinct` FROM `articles`",
		step.SQL)
}

func TestBuild_RemoteCommand(t *testing.T) {
	plan := buildPlan(t, `{ articles(offset: 5) { related_terms(max_terms: 3) } }`)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "SELECT 1 FROM `articles` OFFSET 5", plan.Steps[0].SQL)

	remote := plan.Steps[1]
	assert.Equal(t, KindRemoteCommand, remote.Kind)
	assert.Equal(t, "app.search", remote.DataConnector)
	assert.Equal(t, "SELECT (`related_terms`(max_terms => ?, article_id => ?)) AS `__value`", remote.SQL)
	assert.Equal(t, []any{int64(3), RowValue{Column: "id"}}, remote.Args)
	require.Len(t, remote.Join, 1)
	assert.Equal(t, "article_id", remote.Join[0].TargetArgument)
}

func TestBuild_LocalCommandAndNested(t *testing.T) {
	plan := buildPlan(t, `{ authors { bio { text } address { city } } }`)

	step := plan.Steps[0]
	assert.Equal(t, "SELECT `authors`.`address` AS `address` FROM `authors`", step.SQL)
	require.Len(t, step.Children, 1)
	bio := step.Children[0]
	assert.Equal(t, KindLocalCommand, bio.Kind)
	assert.Equal(t, "SELECT (`author_bio`(id => `authors`.`id`)) AS `__value`", bio.SQL)
	assert.Empty(t, bio.Args)
}

func TestBuild_NestedLocalRelationship(t *testing.T) {
	plan := buildPlan(t, `{ articles { meta { editor { first_name } } } }`)

	step := plan.Steps[0]
	require.Len(t, step.Children, 1)
	editor := step.Children[0]
	assert.Equal(t, "articles.meta.editor", editor.Path)
	assert.Contains(t, editor.SQL, "WHERE (`authors`.`id` = `articles`.`editor`)")
}

func TestBuild_NilQuery(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
}

func TestFormat_Anonymous(t *testing.T) {
	plan := &Plan{}
	assert.Equal(t, "query <anonymous>\n", plan.Format())
}
