package naming

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeName(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"author", "Author"},
		{"author_stats", "AuthorStats"},
		{"Article", "Article"},
		{"api_v2_endpoints", "ApiV2Endpoints"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.TypeName(tt.input))
		})
	}
}

func TestTypeName_Reserved(t *testing.T) {
	var buf bytes.Buffer
	namer := New(DefaultConfig(), slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Equal(t, "Query_", namer.TypeName("query"))
	assert.Equal(t, "Node_", namer.TypeName("Node"))
	assert.Equal(t, "ID_", namer.TypeName("ID"))
	assert.Equal(t, "Id", namer.TypeName("id"))
	assert.Equal(t, "Type", namer.TypeName("type"))
	assert.Equal(t, "Scalar", namer.TypeName("scalar"))
	assert.Contains(t, buf.String(), "reserved word")
}

func TestFieldName(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"AuthorStats", "authorStats"},
		{"author_stats", "authorStats"},
		{"id", "id"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.FieldName(tt.input))
		})
	}
}

func TestRootFieldNames(t *testing.T) {
	namer := Default()

	tests := []struct {
		model      string
		selectMany string
		selectOne  string
	}{
		{"Author", "authors", "author"},
		{"Articles", "articles", "article"},
		{"Person", "people", "person"},
		{"OrderItem", "orderItems", "orderItem"},
		{"Sheep", "sheep", "sheepByKey"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.selectMany, namer.SelectManyFieldName(tt.model))
			assert.Equal(t, tt.selectOne, namer.SelectOneFieldName(tt.model))
		})
	}
}

func TestPluralOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PluralOverrides["datum"] = "dataPoints"
	cfg.SingularOverrides["dataPoints"] = "datum"
	namer := New(cfg, nil)

	assert.Equal(t, "dataPoints", namer.Pluralize("datum"))
	assert.Equal(t, "datum", namer.Singularize("dataPoints"))
	assert.Equal(t, "users", namer.Pluralize("user"))
}

func TestPluralOverrides_CaseInsensitive(t *testing.T) {
	namer := New(Config{PluralOverrides: map[string]string{"person": "folks"}}, nil)

	assert.Equal(t, "folks", namer.Pluralize("person"))
	assert.Equal(t, "Folks", namer.Pluralize("Person"))
	assert.Equal(t, "folks", namer.SelectManyFieldName("Person"))
	assert.Equal(t, "person", namer.Singularize("people"))
}

func TestAggregateNames(t *testing.T) {
	namer := Default()

	assert.Equal(t, "articlesAggregate", namer.AggregateFieldName("articles"))
	assert.Equal(t, "ArticleAggregate", namer.AggregateTypeName("Article"))
	assert.Equal(t, "ArticleWordCountAggregate", namer.AggregateOperandTypeName("Article", "word_count"))
}

func TestRelationshipJoinName(t *testing.T) {
	assert.Equal(t, "app__Article__author", RelationshipJoinName("app", "Article", "author"))
	assert.Equal(t, "Article__author", RelationshipJoinName("", "Article", "author"))
}

func TestRegisterField_RelationshipYieldsToColumn(t *testing.T) {
	namer := Default()

	assert.Equal(t, "author", namer.RegisterField("Article", "author", "field:author"))
	assert.Equal(t, "authorRel", namer.RegisterField("Article", "author", "relationship:author"))
	assert.Equal(t, "title", namer.RegisterField("Article", "title", "field:title"))
	assert.Equal(t, "title", namer.RegisterField("Author", "title", "field:title"))
}

func TestRegisterQueryField_Collision(t *testing.T) {
	var buf bytes.Buffer
	namer := New(DefaultConfig(), slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Equal(t, "authors", namer.RegisterQueryField("authors", "model:Authors"))
	assert.Equal(t, "authors2", namer.RegisterQueryField("authors", "model:Author"))
	assert.Contains(t, buf.String(), "naming collision detected")

	namer.Reset()
	assert.Equal(t, "authors", namer.RegisterQueryField("authors", "model:Author"))
}

func TestCollisionResolver_Register(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	resolver := NewCollisionResolverWithLevel(logger, slog.LevelDebug)

	assert.Equal(t, "app__Article__author", resolver.Register("joins", "app__Article__author", "a"))
	assert.Equal(t, "app__Article__author2", resolver.Register("joins", "app__Article__author", "b"))
	assert.Equal(t, "app__Article__author3", resolver.Register("joins", "app__Article__author", "c"))
	assert.Equal(t, "app__Article__author", resolver.Register("other", "app__Article__author", "d"))
	assert.True(t, resolver.Exists("joins", "app__Article__author2"))
	assert.False(t, resolver.Exists("joins", "app__Article__author4"))
	assert.Empty(t, buf.String(), "debug collisions should not reach an info handler")
}

func TestCollisionResolver_SkipsTakenSuffix(t *testing.T) {
	resolver := NewCollisionResolver(nil)

	assert.Equal(t, "name2", resolver.Register("s", "name2", "explicit"))
	assert.Equal(t, "name", resolver.Register("s", "name", "a"))
	assert.Equal(t, "name3", resolver.Register("s", "name", "b"))
}
