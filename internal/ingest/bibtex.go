package ingest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/nickng/bibtex"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/identity"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/textutil"
)

var bibtexMonths = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"may": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "oct": "10", "nov": "11", "dec": "12",
	"january": "01", "february": "02", "march": "03", "april": "04",
	"june": "06", "july": "07", "august": "08",
	"september": "09", "october": "10", "november": "11", "december": "12",
}

// BibtexIndex holds parsed BibTeX entries keyed for record matching.
type BibtexIndex struct {
	byDOI   map[string]*models.BibtexRef
	byTitle map[string]*models.BibtexRef
}

// LoadBibtex parses a .bib file into a matchable index.
func LoadBibtex(logger arbor.ILogger, path string) (*BibtexIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bibtex %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := bibtex.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing bibtex %s: %w", path, err)
	}

	idx := &BibtexIndex{
		byDOI:   make(map[string]*models.BibtexRef),
		byTitle: make(map[string]*models.BibtexRef),
	}

	for _, entry := range parsed.Entries {
		ref := &models.BibtexRef{
			Key:       entry.CiteName,
			EntryType: entry.Type,
			Fields:    make(map[string]string, len(entry.Fields)),
		}
		for name, value := range entry.Fields {
			ref.Fields[strings.ToLower(name)] = value.String()
		}

		if doi := identity.CanonicalizeDOI(ref.Fields["doi"]); doi != "" {
			idx.byDOI[doi] = ref
		}
		if title := textutil.NormalizeTitle(ref.Fields["title"]); title != "" {
			idx.byTitle[title] = ref
		}
	}

	logger.Info().Str("path", path).Int("entries", len(parsed.Entries)).Msg("BibTeX file loaded")
	return idx, nil
}

// Match finds the BibTeX entry for a record by DOI first, then title.
func (idx *BibtexIndex) Match(rec *models.InputRecord) *models.BibtexRef {
	if idx == nil {
		return nil
	}
	if doi := identity.CanonicalizeDOI(rec.DOI); doi != "" {
		if ref, ok := idx.byDOI[doi]; ok {
			return ref
		}
	}
	if ref, ok := idx.byTitle[textutil.NormalizeTitle(rec.EffectiveTitle())]; ok {
		return ref
	}
	return nil
}

// Enrich applies per-field BibTeX enrichment: BibTeX values override
// extracted values for year, month, venue and doi when present; extracted
// values fill the rest.
func Enrich(rec *models.InputRecord, ref *models.BibtexRef) {
	if ref == nil {
		return
	}
	if rec.Bibtex == nil {
		rec.Bibtex = ref
	}

	if year := ref.Fields["year"]; year != "" {
		rec.PublicationDate = overrideYear(rec.PublicationDate, year, ref.Fields["month"])
	}
	if venue := bibtexVenue(ref); venue != "" {
		rec.PublicationVenue = venue
	}
	if doi := identity.CanonicalizeDOI(ref.Fields["doi"]); doi != "" {
		rec.DOI = doi
	}
}

// NormalizeBibtexMonth maps "jan"/"January"/"1" forms onto "01".."12".
// Returns "" for unrecognized values.
func NormalizeBibtexMonth(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if m, ok := bibtexMonths[s]; ok {
		return m
	}
	if len(s) <= 2 {
		n := 0
		for _, r := range s {
			if r < '0' || r > '9' {
				return ""
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 12 {
			return fmt.Sprintf("%02d", n)
		}
	}
	return ""
}

// SerializeEntry renders a BibTeX entry deterministically (fields sorted by
// name). Not byte-identical to the source, but stable across rebuilds.
func SerializeEntry(ref *models.BibtexRef) string {
	if ref == nil {
		return ""
	}
	names := make([]string, 0, len(ref.Fields))
	for name := range ref.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", ref.EntryType, ref.Key)
	for _, name := range names {
		fmt.Fprintf(&b, "  %s = {%s},\n", name, ref.Fields[name])
	}
	b.WriteString("}\n")
	return b.String()
}

// overrideYear replaces the year (and month when known) in a publication
// date while keeping the original when BibTeX adds nothing.
func overrideYear(current, year, month string) string {
	if m := NormalizeBibtexMonth(month); m != "" {
		return fmt.Sprintf("%s-%s", year, m)
	}
	if current != "" && strings.HasPrefix(current, year) {
		return current
	}
	return year
}

// bibtexVenue picks the venue field by entry kind.
func bibtexVenue(ref *models.BibtexRef) string {
	for _, field := range []string{"booktitle", "journal", "venue"} {
		if v := ref.Fields[field]; v != "" {
			return v
		}
	}
	return ""
}
