package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/models"
)

func TestExportPaperHashesAndDedupes(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	mdPath := filepath.Join(inDir, "paper.md")
	imgPath := filepath.Join(inDir, "fig1.png")
	require.NoError(t, os.WriteFile(mdPath, []byte("# Title\n\n![fig](fig1.png)\n"), 0644))
	require.NoError(t, os.WriteFile(imgPath, []byte("pngbytes"), 0644))

	// The translation references the same image: one asset must result.
	trPath := filepath.Join(inDir, "paper.zh.md")
	require.NoError(t, os.WriteFile(trPath, []byte("# 标题\n\n![fig](fig1.png)\n"), 0644))

	e := NewExporter(common.GetLogger(), outDir, nil, []string{inDir}, []string{inDir})
	rec := &models.InputRecord{SourcePath: "paper.md"}

	result, err := e.ExportPaper(rec, map[string]string{"zh": "paper.zh.md"}, []string{"fig1.png"})
	require.NoError(t, err)

	require.Len(t, result.ImageAssets, 1)
	imgAsset := result.ImageAssets[0]
	assert.Equal(t, models.AssetAvailable, imgAsset.Status)

	// Source markdown was rewritten to the hashed relative path.
	assert.Contains(t, result.SourceMarkdown, "images/"+imgAsset.SHA256+".png")
	assert.Contains(t, result.TranslationText["zh"], "images/"+imgAsset.SHA256+".png")

	// All hashed files exist in the static tree.
	for _, rel := range []string{
		filepath.Join(SourceDir, result.SourceHash+".md"),
		filepath.Join(TranslationDir, "zh", result.TranslationHashes["zh"]+".md"),
		filepath.Join(ImageDir, imgAsset.SHA256+".png"),
	} {
		_, err := os.Stat(filepath.Join(outDir, rel))
		assert.NoError(t, err, "expected %s in static tree", rel)
	}

	// Exporting again writes nothing new and yields identical hashes.
	again, err := e.ExportPaper(rec, map[string]string{"zh": "paper.zh.md"}, []string{"fig1.png"})
	require.NoError(t, err)
	assert.Equal(t, result.SourceHash, again.SourceHash)
	assert.Equal(t, result.TranslationHashes, again.TranslationHashes)
}

func TestExportPaperMissingAssets(t *testing.T) {
	e := NewExporter(common.GetLogger(), t.TempDir(), nil, nil, nil)
	rec := &models.InputRecord{SourcePath: "nope.md", PDFPath: "nope.pdf"}

	result, err := e.ExportPaper(rec, nil, []string{"missing.png"})
	require.NoError(t, err)
	assert.Len(t, result.Issues, 3)
	require.Len(t, result.ImageAssets, 1)
	assert.Equal(t, models.AssetMissing, result.ImageAssets[0].Status)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`a/b\c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{"  spaced   out  ", "spaced out"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
	}
}

func TestFolderNameFallbackChain(t *testing.T) {
	paper := &models.Paper{
		PaperID: "0123456789abcdef0123456789abcdef",
		Title:   "Short Title",
		Authors: []string{"Alice Smith"},
		Year:    "2023",
	}
	full := FolderName(paper)
	assert.Equal(t, "Alice Smith_2023_Short Title__"+paper.PaperID, full)

	paper.Title = strings.Repeat("Very Long Title ", 20)
	assert.Equal(t, "Alice Smith_2023__"+paper.PaperID, FolderName(paper))

	paper.Authors = nil
	assert.Equal(t, paper.PaperID, FolderName(paper))
}

func TestWriteSummariesSingularAlias(t *testing.T) {
	outDir := t.TempDir()
	e := NewExporter(common.GetLogger(), outDir, nil, nil, nil)
	paper := &models.Paper{PaperID: "aaaa", Title: "T"}

	require.NoError(t, e.WriteSummaries(paper, map[string]string{"deep_read": "body"}, nil))

	_, err := os.Stat(filepath.Join(outDir, SummaryDir, "aaaa", "deep_read.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, SummaryDir, "aaaa.json"))
	assert.NoError(t, err, "singular alias expected when only one template")
}
