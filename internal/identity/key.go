package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/textutil"
)

// paperIDVersion salts the hash so a future derivation change can rotate ids.
const paperIDVersion = "v1|"

// PaperID derives the 32-hex-char stable identifier from a paper key.
func PaperID(paperKey string) string {
	sum := sha256.Sum256([]byte(paperIDVersion + paperKey))
	return hex.EncodeToString(sum[:])[:32]
}

// CandidateKey is one identity key available for a record.
type CandidateKey struct {
	Key  string
	Type models.PaperKeyType
}

// CandidateKeys computes every identity key available for a record, strongest
// first. The meta key is always present as the last candidate.
func CandidateKeys(rec *models.InputRecord) []CandidateKey {
	var keys []CandidateKey

	if doi := CanonicalizeDOI(rec.DOI); doi != "" {
		keys = append(keys, CandidateKey{Key: "doi:" + doi, Type: models.KeyTypeDOI})
	} else if rec.Bibtex != nil {
		if doi := CanonicalizeDOI(rec.Bibtex.Fields["doi"]); doi != "" {
			keys = append(keys, CandidateKey{Key: "doi:" + doi, Type: models.KeyTypeDOI})
		}
	}

	if arxiv := CanonicalizeArxiv(rec.ArxivID); arxiv != "" {
		keys = append(keys, CandidateKey{Key: "arxiv:" + arxiv, Type: models.KeyTypeArxiv})
	} else if arxiv := CanonicalizeArxiv(rec.DOI); arxiv != "" {
		// Extractors sometimes put arXiv ids in the doi field.
		keys = append(keys, CandidateKey{Key: "arxiv:" + arxiv, Type: models.KeyTypeArxiv})
	}

	if rec.Bibtex != nil && rec.Bibtex.Key != "" {
		keys = append(keys, CandidateKey{Key: "bib:" + rec.Bibtex.Key, Type: models.KeyTypeBib})
	}

	fp := Fingerprint(rec)
	keys = append(keys, CandidateKey{Key: MetaKey(fp), Type: models.KeyTypeMeta})

	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].Type.Strength() < keys[j].Type.Strength()
	})
	return keys
}

// Fingerprint computes the structured meta fingerprint for a record.
func Fingerprint(rec *models.InputRecord) *models.MetaFingerprint {
	authors := rec.EffectiveAuthors()
	normAuthors := make([]string, 0, len(authors))
	for _, a := range authors {
		if n := NormalizeAuthor(a); n != "" {
			normAuthors = append(normAuthors, n)
		}
	}
	sort.Strings(normAuthors)

	return &models.MetaFingerprint{
		TitleNorm:   textutil.NormalizeTitle(rec.EffectiveTitle()),
		AuthorsNorm: normAuthors,
		Year:        textutil.FirstYear(rec.PublicationDate),
		VenueNorm:   textutil.NormalizeValue(rec.PublicationVenue),
	}
}

// MetaKey derives the weak metadata fallback key from a fingerprint.
func MetaKey(fp *models.MetaFingerprint) string {
	parts := []string{
		fp.TitleNorm,
		strings.Join(fp.AuthorsNorm, "|"),
		fp.Year,
		fp.VenueNorm,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "meta:" + hex.EncodeToString(sum[:])[:32]
}
