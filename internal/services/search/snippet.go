package search

import (
	"strings"

	"github.com/ternarybob/paperdb/internal/textutil"
)

// CleanSnippet post-processes an FTS snippet for emission: adjacent
// highlight markers merge into one span and the per-character CJK spacing
// inserted at index time is removed, including across marker boundaries.
func CleanSnippet(s string) string {
	s = strings.ReplaceAll(s, "]]] [[[", " ")

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == ' ' {
			prev := neighborLetter(runes, i-1, -1)
			next := neighborLetter(runes, i+1, +1)
			if textutil.IsCJKLetter(prev) && textutil.IsCJKLetter(next) {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// neighborLetter finds the nearest non-marker rune in the given direction.
func neighborLetter(runes []rune, i, step int) rune {
	for ; i >= 0 && i < len(runes); i += step {
		if runes[i] != '[' && runes[i] != ']' {
			return runes[i]
		}
	}
	return 0
}
