package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/models"
)

const sampleBib = `@inproceedings{vaswani2017attention,
  title = {Attention Is All You Need},
  author = {Vaswani, Ashish},
  booktitle = {NeurIPS},
  year = {2017},
  month = {dec},
  doi = {10.5555/3295222},
}
`

func TestLoadBibtexAndMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refs.bib")
	require.NoError(t, os.WriteFile(path, []byte(sampleBib), 0644))

	idx, err := LoadBibtex(common.GetLogger(), path)
	require.NoError(t, err)

	byDOI := idx.Match(&models.InputRecord{DOI: "10.5555/3295222", PaperTitle: "x"})
	require.NotNil(t, byDOI)
	assert.Equal(t, "vaswani2017attention", byDOI.Key)

	byTitle := idx.Match(&models.InputRecord{PaperTitle: "Attention is all you need"})
	require.NotNil(t, byTitle)
	assert.Equal(t, "inproceedings", byTitle.EntryType)

	assert.Nil(t, idx.Match(&models.InputRecord{PaperTitle: "Unrelated"}))
}

func TestEnrichOverridesFields(t *testing.T) {
	rec := &models.InputRecord{
		PaperTitle:       "Attention Is All You Need",
		PublicationDate:  "2018",
		PublicationVenue: "arXiv",
	}
	Enrich(rec, &models.BibtexRef{
		Key:       "k",
		EntryType: "inproceedings",
		Fields: map[string]string{
			"year":      "2017",
			"month":     "dec",
			"booktitle": "NeurIPS",
			"doi":       "10.5555/3295222",
		},
	})

	assert.Equal(t, "2017-12", rec.PublicationDate)
	assert.Equal(t, "NeurIPS", rec.PublicationVenue)
	assert.Equal(t, "10.5555/3295222", rec.DOI)
}

func TestNormalizeBibtexMonth(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"jan", "01"}, {"December", "12"}, {"7", "07"}, {"12", "12"},
		{"13", ""}, {"0", ""}, {"", ""}, {"smarch", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeBibtexMonth(tt.input), "input %q", tt.input)
	}
}

func TestSerializeEntryDeterministic(t *testing.T) {
	ref := &models.BibtexRef{
		Key:       "k",
		EntryType: "article",
		Fields:    map[string]string{"year": "2020", "author": "A", "title": "T"},
	}
	first := SerializeEntry(ref)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, SerializeEntry(ref))
	}
	assert.Contains(t, first, "@article{k,")
}
