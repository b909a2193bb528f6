package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
	"github.com/ternarybob/paperdb/internal/textutil"
)

// ParsedQuery is the executable form of a user query: an FTS5 match
// expression (empty for pure listings) plus relational filters.
type ParsedQuery struct {
	Match   string
	Filters sqlite.Filters
}

// Parse tokenizes and rewrites a query. Field qualifiers become filters,
// terms and phrases become the FTS match expression with the CJK rewrite
// applied, and negations render as FTS NOT clauses.
func (p *QueryParser) Parse(query string) (*ParsedQuery, error) {
	tokens := p.Tokenize(query)

	parsed := &ParsedQuery{}
	var parts []string
	var negatives []string
	var titleParts []string
	pendingOr := false

	for _, tok := range tokens {
		switch tok.Type {
		case TokenOperator:
			if tok.Value == "OR" {
				pendingOr = true
			}
			continue

		case TokenQualifier:
			field, value := p.splitQualifier(tok.Value)
			if err := applyQualifier(parsed, &titleParts, field, value); err != nil {
				return nil, err
			}
			continue

		case TokenTerm, TokenPhrase:
			var rendered string
			if tok.Type == TokenPhrase {
				rendered = rewritePhrase(tok.Value)
			} else {
				rendered = rewriteTerm(tok.Value)
			}
			if rendered == "" {
				continue
			}
			if tok.Negated {
				negatives = append(negatives, rendered)
				continue
			}
			if pendingOr && len(parts) > 0 {
				parts[len(parts)-1] += " OR " + rendered
			} else {
				parts = append(parts, rendered)
			}
			pendingOr = false
		}
	}

	parts = append(parts, titleParts...)
	match := strings.Join(parts, " ")
	if match == "" && len(negatives) > 0 {
		return nil, fmt.Errorf("%w: negation requires at least one positive term", models.ErrInvalidQuery)
	}
	for _, neg := range negatives {
		match += " NOT " + neg
	}
	parsed.Match = match
	return parsed, nil
}

func applyQualifier(parsed *ParsedQuery, titleParts *[]string, field, value string) error {
	switch field {
	case "title":
		// FTS column filter. The rewrite yields one renderable unit (a CJK
		// run becomes a single quoted spaced phrase); mixed-script values
		// produce several units and need grouping parens.
		rendered := rewriteTerm(value)
		if rendered == "" {
			break
		}
		if len(textutil.SplitScripts(value)) > 1 {
			rendered = "(" + rendered + ")"
		}
		*titleParts = append(*titleParts, "title:"+rendered)
	case "author":
		parsed.Filters.Authors = append(parsed.Filters.Authors, textutil.NormalizeValue(value))
	case "tag":
		parsed.Filters.Tags = append(parsed.Filters.Tags, textutil.NormalizeValue(value))
	case "venue":
		parsed.Filters.Venues = append(parsed.Filters.Venues, textutil.NormalizeValue(value))
	case "year":
		from, to, err := parseYearRange(value)
		if err != nil {
			return err
		}
		parsed.Filters.YearFrom = from
		parsed.Filters.YearTo = to
	case "month":
		month, err := parseMonth(value)
		if err != nil {
			return err
		}
		parsed.Filters.Month = month
	}
	return nil
}

// parseYearRange accepts "2023" or "2020..2024".
func parseYearRange(value string) (string, string, error) {
	from, to := value, value
	if idx := strings.Index(value, ".."); idx >= 0 {
		from, to = value[:idx], value[idx+2:]
	}
	if !validYear(from) || !validYear(to) {
		return "", "", fmt.Errorf("%w: year filter %q", models.ErrInvalidQuery, value)
	}
	return from, to, nil
}

func validYear(y string) bool {
	if len(y) != 4 {
		return false
	}
	_, err := strconv.Atoi(y)
	return err == nil
}

// parseMonth normalizes a month filter to the stored two-digit form.
func parseMonth(value string) (string, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 12 {
		return "", fmt.Errorf("%w: month filter %q", models.ErrInvalidQuery, value)
	}
	return fmt.Sprintf("%02d", n), nil
}
