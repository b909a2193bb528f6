package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeValue produces the match key for facet values and identity
// metadata: NFKC, lowercase, whitespace collapsed.
func NormalizeValue(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return CollapseWhitespace(s)
}

// NormalizeTitle additionally strips punctuation and symbols so near-identical
// titles produce the same key.
func NormalizeTitle(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return CollapseWhitespace(b.String())
}

// CollapseWhitespace trims and folds runs of whitespace into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstYear returns the first 4-digit run in s, or "unknown".
func FirstYear(s string) string {
	run := 0
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if run == 0 {
				start = i
			}
			run++
			if run == 4 {
				// Reject longer digit runs (e.g. arXiv ids like 23010).
				rest := s[start+4:]
				if len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
					run = 0
					continue
				}
				return s[start : start+4]
			}
		} else {
			run = 0
		}
	}
	return "unknown"
}
