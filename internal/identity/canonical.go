package identity

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ternarybob/paperdb/internal/textutil"
)

var (
	arxivVersionRe = regexp.MustCompile(`v\d+$`)
	arxivNewRe     = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivOldRe     = regexp.MustCompile(`^[a-z-]+(\.[a-z]{2})?/\d{7}(v\d+)?$`)
)

// CanonicalizeDOI normalizes a DOI: strips doi:/URL prefixes, URL-decodes,
// lowercases, trims whitespace and trailing punctuation. Returns "" when the
// input does not look like a DOI.
func CanonicalizeDOI(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			lower = lower[len(prefix):]
		}
	}
	if decoded, err := url.QueryUnescape(s); err == nil {
		s = decoded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".,;)")
	if !strings.HasPrefix(s, "10.") || !strings.Contains(s, "/") {
		return ""
	}
	return s
}

// CanonicalizeArxiv normalizes an arXiv id: strips arxiv:/URL prefixes,
// lowercases, drops the version suffix. Returns "" when the input is not an
// arXiv id.
func CanonicalizeArxiv(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	for _, prefix := range []string{"https://arxiv.org/abs/", "http://arxiv.org/abs/", "arxiv:"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSpace(s)
	if arxivNewRe.MatchString(s) || arxivOldRe.MatchString(s) {
		return arxivVersionRe.ReplaceAllString(s, "")
	}
	return ""
}

// NormalizeAuthor produces the normalized form of one author name.
func NormalizeAuthor(name string) string {
	return textutil.NormalizeValue(name)
}
