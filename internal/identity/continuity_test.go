package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/paperdb/internal/models"
)

type fakeLookup struct {
	aliases      map[string]string
	fingerprints map[string]*models.MetaFingerprint
}

func (f *fakeLookup) LookupAlias(key string) (string, bool, error) {
	id, ok := f.aliases[key]
	return id, ok, nil
}

func (f *fakeLookup) FingerprintFor(paperID string) (*models.MetaFingerprint, error) {
	return f.fingerprints[paperID], nil
}

func TestResolveWithoutPrevious(t *testing.T) {
	r := NewResolver(nil)
	rec := &models.InputRecord{PaperTitle: "T", PaperAuthors: []string{"A"}, DOI: "10.1/x"}

	res, err := r.Resolve(rec)
	require.NoError(t, err)
	assert.Equal(t, "doi:10.1/x", res.PaperKey)
	assert.Equal(t, PaperID("doi:10.1/x"), res.PaperID)
	assert.Empty(t, res.Issues)
}

func TestResolveContinuityNewDOI(t *testing.T) {
	// Build B1 had only metadata; B2 adds a DOI. The meta key still matches,
	// so the historical paper_id carries over while doi becomes paper_key.
	oldRec := &models.InputRecord{PaperTitle: "Stable Title", PaperAuthors: []string{"Alice"}}
	oldFP := Fingerprint(oldRec)
	metaKey := MetaKey(oldFP)
	oldID := PaperID(metaKey)

	prev := &fakeLookup{
		aliases:      map[string]string{metaKey: oldID},
		fingerprints: map[string]*models.MetaFingerprint{oldID: oldFP},
	}

	newRec := &models.InputRecord{
		PaperTitle:   "Stable Title",
		PaperAuthors: []string{"Alice"},
		DOI:          "10.1145/XYZ",
	}

	res, err := NewResolver(prev).Resolve(newRec)
	require.NoError(t, err)
	assert.Equal(t, oldID, res.PaperID)
	assert.Equal(t, "doi:10.1145/xyz", res.PaperKey)
	assert.Equal(t, models.KeyTypeDOI, res.KeyType)
	assert.Empty(t, res.Issues)

	// Both keys must reach the alias table.
	keys := make([]string, 0, len(res.AliasKeys))
	for _, k := range res.AliasKeys {
		keys = append(keys, k.Key)
	}
	assert.Contains(t, keys, "doi:10.1145/xyz")
	assert.Contains(t, keys, metaKey)
}

func TestResolveWeakKeyGuardDiverges(t *testing.T) {
	// Same meta key, but the historical fingerprint belongs to a very
	// different paper: continuity must not apply. The historical id is
	// derived exactly as the earlier build would have derived it, so the
	// guard cannot hand back the same id under a different name.
	oldFP := &models.MetaFingerprint{
		TitleNorm:   "completely different subject matter entirely",
		AuthorsNorm: []string{"xavier", "yvonne"},
		Year:        "1999",
	}
	rec := &models.InputRecord{PaperTitle: "Graph Neural Networks", PaperAuthors: []string{"Alice"}}
	metaKey := MetaKey(Fingerprint(rec))
	oldID := PaperID(metaKey)

	prev := &fakeLookup{
		aliases:      map[string]string{metaKey: oldID},
		fingerprints: map[string]*models.MetaFingerprint{oldID: oldFP},
	}

	res, err := NewResolver(prev).Resolve(rec)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, res.PaperID, "diverged paper must get a fresh id")
	assert.Len(t, res.PaperID, 32)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, models.IssueMetaFingerprintDivergence, res.Issues[0].Kind)

	// Deterministic across rebuilds from the same inputs.
	again, err := NewResolver(prev).Resolve(rec)
	require.NoError(t, err)
	assert.Equal(t, res.PaperID, again.PaperID)
}

func TestResolveWeakKeyGuardDivergesWithStrongerKey(t *testing.T) {
	// A new DOI outranks the stale meta alias; the fresh id comes from the
	// doi key and needs no discriminator.
	oldFP := &models.MetaFingerprint{
		TitleNorm:   "completely different subject matter entirely",
		AuthorsNorm: []string{"xavier", "yvonne"},
		Year:        "1999",
	}
	rec := &models.InputRecord{
		PaperTitle:   "Graph Neural Networks",
		PaperAuthors: []string{"Alice"},
		DOI:          "10.1/gnn",
	}
	metaKey := MetaKey(Fingerprint(rec))
	oldID := PaperID(metaKey)

	prev := &fakeLookup{
		aliases:      map[string]string{metaKey: oldID},
		fingerprints: map[string]*models.MetaFingerprint{oldID: oldFP},
	}

	res, err := NewResolver(prev).Resolve(rec)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, res.PaperID)
	assert.Equal(t, PaperID("doi:10.1/gnn"), res.PaperID)
}

func TestResolveIdentityConflict(t *testing.T) {
	rec := &models.InputRecord{
		PaperTitle:   "T",
		PaperAuthors: []string{"A"},
		DOI:          "10.1/x",
		Bibtex:       &models.BibtexRef{Key: "a2020t"},
	}

	prev := &fakeLookup{
		aliases: map[string]string{
			"doi:10.1/x": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			"bib:a2020t": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		},
		fingerprints: map[string]*models.MetaFingerprint{},
	}

	res, err := NewResolver(prev).Resolve(rec)
	require.NoError(t, err)
	// Strongest matching key wins.
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", res.PaperID)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, models.IssueIdentityConflict, res.Issues[0].Kind)
}

func TestAuthorOverlap(t *testing.T) {
	assert.Equal(t, 1.0, authorOverlap(nil, nil))
	assert.Equal(t, 0.0, authorOverlap([]string{"a"}, nil))
	assert.InDelta(t, 0.333, authorOverlap([]string{"a", "b"}, []string{"b", "c"}), 0.001)
}
