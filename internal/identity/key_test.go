package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/paperdb/internal/models"
)

func TestPaperIDDerivation(t *testing.T) {
	key := "doi:10.1145/xyz"
	sum := sha256.Sum256([]byte("v1|" + key))
	expected := hex.EncodeToString(sum[:])[:32]

	got := PaperID(key)
	assert.Equal(t, expected, got)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), got)
}

func TestCandidateKeysOrder(t *testing.T) {
	rec := &models.InputRecord{
		PaperTitle:   "A Paper",
		PaperAuthors: []string{"Alice", "Bob"},
		DOI:          "10.1145/XYZ",
		ArxivID:      "2301.00001v2",
		Bibtex:       &models.BibtexRef{Key: "alice2023paper"},
	}

	keys := CandidateKeys(rec)
	require.Len(t, keys, 4)
	assert.Equal(t, "doi:10.1145/xyz", keys[0].Key)
	assert.Equal(t, models.KeyTypeDOI, keys[0].Type)
	assert.Equal(t, "arxiv:2301.00001", keys[1].Key)
	assert.Equal(t, "bib:alice2023paper", keys[2].Key)
	assert.Equal(t, models.KeyTypeMeta, keys[3].Type)

	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1].Type.Strength(), keys[i].Type.Strength())
	}
}

func TestCandidateKeysMetaOnly(t *testing.T) {
	rec := &models.InputRecord{
		PaperTitle:   "Untitled Work",
		PaperAuthors: []string{"Carol"},
	}

	keys := CandidateKeys(rec)
	require.Len(t, keys, 1)
	assert.Equal(t, models.KeyTypeMeta, keys[0].Type)
}

func TestMetaKeyStableUnderAuthorOrder(t *testing.T) {
	a := Fingerprint(&models.InputRecord{PaperTitle: "T", PaperAuthors: []string{"Alice", "Bob"}})
	b := Fingerprint(&models.InputRecord{PaperTitle: "T", PaperAuthors: []string{"Bob", "Alice"}})
	assert.Equal(t, MetaKey(a), MetaKey(b))
}

func TestFingerprintNormalization(t *testing.T) {
	fp := Fingerprint(&models.InputRecord{
		PaperTitle:       "Deep Learning: A Survey!",
		PaperAuthors:     []string{"  Alice  Smith ", "BOB Jones"},
		PublicationDate:  "2023-01-15",
		PublicationVenue: "NeurIPS  2023",
	})

	assert.Equal(t, "deep learning a survey", fp.TitleNorm)
	assert.Equal(t, []string{"alice smith", "bob jones"}, fp.AuthorsNorm)
	assert.Equal(t, "2023", fp.Year)
	assert.Equal(t, "neurips 2023", fp.VenueNorm)
}
