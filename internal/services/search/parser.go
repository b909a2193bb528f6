package search

import (
	"strings"
	"unicode"

	"github.com/ternarybob/paperdb/internal/textutil"
)

// TokenType classifies a parsed query token.
type TokenType int

const (
	// TokenTerm is a plain search term.
	TokenTerm TokenType = iota
	// TokenPhrase is a double-quoted phrase.
	TokenPhrase
	// TokenQualifier is a field:value pair.
	TokenQualifier
	// TokenOperator is an explicit boolean operator (AND, OR).
	TokenOperator
)

// Token is one unit of a tokenized query.
type Token struct {
	Value   string
	Type    TokenType
	Negated bool // prefixed with -
}

// queryFields are the supported field qualifiers.
var queryFields = map[string]bool{
	"title": true, "author": true, "tag": true,
	"venue": true, "year": true, "month": true,
}

// QueryParser turns user queries into tokens. Stateless and reusable.
type QueryParser struct{}

// NewQueryParser creates a parser instance.
func NewQueryParser() *QueryParser {
	return &QueryParser{}
}

// Tokenize splits a query on whitespace, treating CJK punctuation as
// whitespace. Handles double-quoted phrases, unary - negation, field
// qualifiers, and the AND/OR operators. Rune-safe.
func (p *QueryParser) Tokenize(query string) []Token {
	var tokens []Token
	var current strings.Builder
	var inQuote bool
	var negated bool

	flush := func() {
		if current.Len() == 0 {
			negated = false
			return
		}
		value := current.String()
		current.Reset()

		switch {
		case value == "AND" || value == "OR":
			tokens = append(tokens, Token{Value: value, Type: TokenOperator})
		case p.isQualifier(value):
			tokens = append(tokens, Token{Value: value, Type: TokenQualifier, Negated: negated})
		default:
			tokens = append(tokens, Token{Value: value, Type: TokenTerm, Negated: negated})
		}
		negated = false
	}

	for _, ch := range strings.TrimSpace(query) {
		if ch == '"' {
			if inQuote {
				if current.Len() > 0 {
					tokens = append(tokens, Token{
						Value:   current.String(),
						Type:    TokenPhrase,
						Negated: negated,
					})
					current.Reset()
				}
				inQuote = false
				negated = false
			} else {
				flush()
				inQuote = true
			}
			continue
		}
		if inQuote {
			current.WriteRune(ch)
			continue
		}

		if ch == '-' && current.Len() == 0 {
			negated = true
			continue
		}
		if unicode.IsSpace(ch) || textutil.IsCJKPunct(ch) {
			flush()
			continue
		}
		current.WriteRune(ch)
	}

	if inQuote && current.Len() > 0 {
		// Unclosed quote: keep the remainder as a phrase.
		tokens = append(tokens, Token{Value: current.String(), Type: TokenPhrase, Negated: negated})
	} else {
		flush()
	}
	return tokens
}

// isQualifier reports whether a token is field:value with a known field.
func (p *QueryParser) isQualifier(token string) bool {
	idx := strings.Index(token, ":")
	if idx <= 0 || idx == len(token)-1 {
		return false
	}
	return queryFields[strings.ToLower(token[:idx])]
}

// splitQualifier returns the (field, value) of a qualifier token.
func (p *QueryParser) splitQualifier(token string) (string, string) {
	parts := strings.SplitN(token, ":", 2)
	return strings.ToLower(parts[0]), parts[1]
}

// escapeFTS escapes embedded double quotes for FTS5 string literals.
func escapeFTS(term string) string {
	return strings.ReplaceAll(term, `"`, `""`)
}

// needsQuoting reports whether a bare term must be quoted to read as a
// literal in FTS5 (reserved words or special characters).
func needsQuoting(term string) bool {
	switch strings.ToUpper(term) {
	case "AND", "OR", "NOT", "NEAR":
		return true
	}
	return strings.ContainsAny(term, ` -:()*^+.,/`)
}

// rewriteTerm applies the CJK rewrite rules to a single term:
// CJK-only runs become quoted spaced phrases, mixed-script terms split at
// script boundaries, Latin/digit runs pass through verbatim.
func rewriteTerm(term string) string {
	segs := textutil.SplitScripts(term)
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg.CJK {
			parts = append(parts, `"`+textutil.SpaceCJK(escapeFTS(seg.Text))+`"`)
			continue
		}
		escaped := escapeFTS(seg.Text)
		if needsQuoting(seg.Text) {
			escaped = `"` + escaped + `"`
		}
		parts = append(parts, escaped)
	}
	return strings.Join(parts, " ")
}

// rewritePhrase keeps a quoted phrase quoted, spacing any CJK inside so it
// matches the per-character indexed corpus.
func rewritePhrase(phrase string) string {
	return `"` + textutil.SpaceCJK(escapeFTS(phrase)) + `"`
}
