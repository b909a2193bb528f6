package textutil

import (
	"strings"
	"unicode"
)

// IsCJK reports whether r belongs to a CJK script. Covers Han, Hiragana,
// Katakana, Hangul and the CJK punctuation/compatibility blocks used in
// extracted paper text.
func IsCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK symbols and punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // half/fullwidth forms
}

// IsCJKLetter is IsCJK minus punctuation blocks; used when deciding whether a
// character should become its own token.
func IsCJKLetter(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// IsCJKPunct reports CJK punctuation, treated as whitespace by the tokenizer.
func IsCJKPunct(r rune) bool {
	return IsCJK(r) && !IsCJKLetter(r)
}

// SpaceCJK inserts a space between consecutive CJK letters so a word
// tokenizer yields per-character tokens. Latin runs pass through untouched.
func SpaceCJK(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	prevCJK := false
	for _, r := range s {
		if IsCJKLetter(r) {
			if prevCJK {
				b.WriteRune(' ')
			}
			prevCJK = true
		} else {
			prevCJK = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnspaceCJK removes the single spaces SpaceCJK inserted between CJK letters
// so emitted snippets read naturally. Only spaces with CJK letters on both
// sides are removed.
func UnspaceCJK(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == ' ' && i > 0 && i < len(runes)-1 && IsCJKLetter(runes[i-1]) && IsCJKLetter(runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ScriptSegment is a run of text in a single script class.
type ScriptSegment struct {
	Text string
	CJK  bool
}

// SplitScripts splits s at CJK/non-CJK boundaries.
func SplitScripts(s string) []ScriptSegment {
	var segs []ScriptSegment
	var current strings.Builder
	currentCJK := false
	started := false

	flush := func() {
		if current.Len() > 0 {
			segs = append(segs, ScriptSegment{Text: current.String(), CJK: currentCJK})
			current.Reset()
		}
	}

	for _, r := range s {
		isCJK := IsCJKLetter(r)
		if started && isCJK != currentCJK {
			flush()
		}
		currentCJK = isCJK
		started = true
		current.WriteRune(r)
	}
	flush()
	return segs
}
