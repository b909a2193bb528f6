package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/paperdb/internal/models"
)

func TestTokenize(t *testing.T) {
	p := NewQueryParser()

	tests := []struct {
		name  string
		query string
		want  []Token
	}{
		{
			name:  "plain terms",
			query: "cat dog",
			want: []Token{
				{Value: "cat", Type: TokenTerm},
				{Value: "dog", Type: TokenTerm},
			},
		},
		{
			name:  "quoted phrase",
			query: `"cat on mat" dog`,
			want: []Token{
				{Value: "cat on mat", Type: TokenPhrase},
				{Value: "dog", Type: TokenTerm},
			},
		},
		{
			name:  "negation",
			query: "cat -dog",
			want: []Token{
				{Value: "cat", Type: TokenTerm},
				{Value: "dog", Type: TokenTerm, Negated: true},
			},
		},
		{
			name:  "operators",
			query: "cat OR dog AND bird",
			want: []Token{
				{Value: "cat", Type: TokenTerm},
				{Value: "OR", Type: TokenOperator},
				{Value: "dog", Type: TokenTerm},
				{Value: "AND", Type: TokenOperator},
				{Value: "bird", Type: TokenTerm},
			},
		},
		{
			name:  "qualifiers",
			query: "author:smith year:2020..2024 deep",
			want: []Token{
				{Value: "author:smith", Type: TokenQualifier},
				{Value: "year:2020..2024", Type: TokenQualifier},
				{Value: "deep", Type: TokenTerm},
			},
		},
		{
			name:  "cjk punctuation splits",
			query: "深度学习，注意力",
			want: []Token{
				{Value: "深度学习", Type: TokenTerm},
				{Value: "注意力", Type: TokenTerm},
			},
		},
		{
			name:  "unknown field stays a term",
			query: "foo:bar",
			want: []Token{
				{Value: "foo:bar", Type: TokenTerm},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Tokenize(tt.query))
		})
	}
}

func TestParseCJKRewrite(t *testing.T) {
	p := NewQueryParser()

	tests := []struct {
		query string
		match string
	}{
		// CJK-only: quoted phrase of spaced characters.
		{"深度学习", `"深 度 学 习"`},
		// Mixed script: split at the boundary, per-segment rules.
		{"深度学习 transformer", `"深 度 学 习" transformer`},
		{"bert中文", `bert "中 文"`},
		// Quoted CJK phrase keeps the quotes, gains spacing.
		{`"深度学习"`, `"深 度 学 习"`},
		// Latin untouched.
		{"transformer attention", "transformer attention"},
		// Explicit OR.
		{"cat OR dog", "cat OR dog"},
		// Negation renders as NOT.
		{"cat -dog", "cat NOT dog"},
	}

	for _, tt := range tests {
		parsed, err := p.Parse(tt.query)
		require.NoError(t, err, "query %q", tt.query)
		assert.Equal(t, tt.match, parsed.Match, "query %q", tt.query)
	}
}

func TestParseQualifiers(t *testing.T) {
	p := NewQueryParser()

	parsed, err := p.Parse("author:Smith venue:NeurIPS year:2020..2024 month:4 tag:nlp attention")
	require.NoError(t, err)

	assert.Equal(t, []string{"smith"}, parsed.Filters.Authors)
	assert.Equal(t, []string{"neurips"}, parsed.Filters.Venues)
	assert.Equal(t, []string{"nlp"}, parsed.Filters.Tags)
	assert.Equal(t, "2020", parsed.Filters.YearFrom)
	assert.Equal(t, "2024", parsed.Filters.YearTo)
	assert.Equal(t, "04", parsed.Filters.Month)
	assert.Equal(t, "attention", parsed.Match)
}

func TestParseTitleQualifier(t *testing.T) {
	p := NewQueryParser()

	parsed, err := p.Parse("title:attention")
	require.NoError(t, err)
	assert.Equal(t, "title:attention", parsed.Match)
	assert.True(t, parsed.Filters.Empty())
}

func TestParseTitleQualifierCJK(t *testing.T) {
	p := NewQueryParser()

	// A CJK value stays one quoted phrase under the column filter; the
	// prefix must not repeat per character.
	parsed, err := p.Parse("title:深度学习")
	require.NoError(t, err)
	assert.Equal(t, `title:"深 度 学 习"`, parsed.Match)

	// Mixed-script values group their units.
	parsed, err = p.Parse("title:deep深度")
	require.NoError(t, err)
	assert.Equal(t, `title:(deep "深 度")`, parsed.Match)
}

func TestParseErrors(t *testing.T) {
	p := NewQueryParser()

	_, err := p.Parse("-only-negative")
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = p.Parse("year:20x4")
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = p.Parse("month:13")
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}

func TestParseEmptyQueryListsWithFilters(t *testing.T) {
	p := NewQueryParser()

	parsed, err := p.Parse("year:2023")
	require.NoError(t, err)
	assert.Empty(t, parsed.Match)
	assert.Equal(t, "2023", parsed.Filters.YearFrom)
	assert.Equal(t, "2023", parsed.Filters.YearTo)
}
