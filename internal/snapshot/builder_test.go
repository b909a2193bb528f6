package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/paperdb/internal/assets"
	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/identity"
	"github.com/ternarybob/paperdb/internal/ingest"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeInput(t *testing.T, path, templateTag string, records []*models.InputRecord) {
	t.Helper()
	data, err := json.Marshal(models.InputCollection{TemplateTag: templateTag, Papers: records})
	require.NoError(t, err)
	writeFile(t, path, string(data))
}

func runBuild(t *testing.T, opts Options) (*Result, *sqlite.Reader) {
	t.Helper()
	result, err := NewBuilder(common.GetLogger(), opts).Run(context.Background())
	require.NoError(t, err)

	db, err := sqlite.OpenReadOnly(common.GetLogger(), opts.OutputDB)
	require.NoError(t, err)
	reader, err := sqlite.NewReader(common.GetLogger(), db)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })
	return result, reader
}

func attentionRecord() *models.InputRecord {
	return &models.InputRecord{
		PaperTitle:       "Attention Is All You Need",
		PaperAuthors:     []string{"Ashish Vaswani", "Noam Shazeer"},
		PublicationDate:  "2017-06",
		PublicationVenue: "NeurIPS",
		DOI:              "10.48550/arXiv.1706.03762",
		Keywords:         []string{"transformers"},
		Tags:             []string{"nlp"},
		Summary:          "## Overview\n\nSelf-attention replaces recurrence.",
		SourcePath:       "attention.md",
		Translations:     map[string]string{"zh": "zh/attention.md"},
	}
}

func TestBuildEndToEnd(t *testing.T) {
	dir := t.TempDir()
	mdRoot := filepath.Join(dir, "md")
	translateRoot := filepath.Join(dir, "md_translate")
	staticDir := filepath.Join(dir, "static")
	outputDB := filepath.Join(dir, "snapshot.db")

	writeFile(t, filepath.Join(mdRoot, "attention.md"), "# Attention\n\nScaled dot-product attention.")
	writeFile(t, filepath.Join(translateRoot, "zh", "attention.md"), "# 注意力\n\n缩放点积注意力。")
	writeFile(t, filepath.Join(dir, "refs.bib"),
		"@inproceedings{vaswani2017,\n  title = {Attention Is All You Need},\n  booktitle = {Advances in Neural Information Processing Systems},\n  year = {2017},\n  month = {dec},\n  doi = {10.48550/arXiv.1706.03762},\n}\n")

	graph := &models.InputRecord{
		PaperTitle:      "Graph Networks in Practice",
		PaperAuthors:    []string{"Alice Smith"},
		PublicationDate: "2022",
		Summary:         "Message passing summary.",
	}
	writeInput(t, filepath.Join(dir, "deep_read.json"), "deep_read",
		[]*models.InputRecord{attentionRecord(), graph})

	result, reader := runBuild(t, Options{
		Inputs:           []string{filepath.Join(dir, "deep_read.json")},
		BibtexPath:       filepath.Join(dir, "refs.bib"),
		MDRoots:          []string{mdRoot},
		MDTranslateRoots: []string{translateRoot},
		OutputDB:         outputDB,
		StaticExportDir:  staticDir,
	})

	assert.Equal(t, 2, result.Papers)
	assert.NotEmpty(t, result.BuildID)
	assert.Equal(t, result.BuildID, reader.BuildID())

	_, err := os.Stat(outputDB + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp db must be renamed away")

	ctx := context.Background()
	paperID := identity.PaperID("doi:10.48550/arxiv.1706.03762")
	p, err := reader.GetPaper(ctx, paperID)
	require.NoError(t, err)
	assert.Equal(t, models.KeyTypeDOI, p.PaperKeyType)
	assert.Equal(t, "Attention Is All You Need", p.Title)
	assert.Equal(t, "2017", p.Year)
	assert.Equal(t, "12", p.Month, "bibtex month overrides the extracted date")
	assert.Equal(t, "Advances in Neural Information Processing Systems", p.Venue)
	assert.Equal(t, "deep_read", p.PreferredSummaryTemplate)
	assert.NotEmpty(t, p.SourceContentHash)
	assert.NotEmpty(t, p.TranslationHashes["zh"])
	assert.True(t, p.HasBibtex)

	e, err := reader.GetBibtex(ctx, paperID)
	require.NoError(t, err)
	assert.Equal(t, "vaswani2017", e.BibtexKey)

	// Static tree: hashed source, per-template summary, manifest.
	for _, rel := range []string{
		filepath.Join(assets.SourceDir, p.SourceContentHash+".md"),
		filepath.Join(assets.TranslationDir, "zh", p.TranslationHashes["zh"]+".md"),
		filepath.Join(assets.SummaryDir, paperID, "deep_read.json"),
		filepath.Join(assets.ManifestDir, paperID+".json"),
	} {
		_, err := os.Stat(filepath.Join(staticDir, rel))
		assert.NoError(t, err, rel)
	}

	// The meta-only record stays addressable too.
	graphID := identity.PaperID(identity.MetaKey(identity.Fingerprint(graph)))
	g, err := reader.GetPaper(ctx, graphID)
	require.NoError(t, err)
	assert.Equal(t, models.KeyTypeMeta, g.PaperKeyType)
	assert.Equal(t, "2022", g.Year)
	assert.Equal(t, "Unknown", g.Month)
}

func TestBuildContinuityKeepsIDWhenDOIUnchanged(t *testing.T) {
	dir := t.TempDir()

	first := attentionRecord()
	first.SourcePath, first.Translations = "", nil
	writeInput(t, filepath.Join(dir, "in1.json"), "deep_read", []*models.InputRecord{first})
	r1, reader1 := runBuild(t, Options{
		Inputs:          []string{filepath.Join(dir, "in1.json")},
		OutputDB:        filepath.Join(dir, "snap1.db"),
		StaticExportDir: filepath.Join(dir, "static1"),
	})
	require.Equal(t, 1, r1.Papers)
	reader1.Close()

	// Same DOI, retitled and re-dated: identity must carry over.
	second := attentionRecord()
	second.SourcePath, second.Translations = "", nil
	second.PaperTitle = "Attention Is All You Need (v2)"
	second.PublicationDate = "2023-08"
	writeInput(t, filepath.Join(dir, "in2.json"), "deep_read", []*models.InputRecord{second})
	_, reader2 := runBuild(t, Options{
		Inputs:             []string{filepath.Join(dir, "in2.json")},
		PreviousSnapshotDB: filepath.Join(dir, "snap1.db"),
		OutputDB:           filepath.Join(dir, "snap2.db"),
		StaticExportDir:    filepath.Join(dir, "static2"),
	})

	paperID := identity.PaperID("doi:10.48550/arxiv.1706.03762")
	p, err := reader2.GetPaper(context.Background(), paperID)
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need (v2)", p.Title)
	assert.Equal(t, "2023", p.Year)
}

func TestBuildInheritsDOIAndBibtexFromPrevious(t *testing.T) {
	dir := t.TempDir()

	first := attentionRecord()
	first.SourcePath, first.Translations = "", nil
	first.Bibtex = &models.BibtexRef{
		Key: "vaswani2017", EntryType: "inproceedings",
		Fields: map[string]string{"title": "Attention Is All You Need", "year": "2017"},
	}
	writeInput(t, filepath.Join(dir, "in1.json"), "deep_read", []*models.InputRecord{first})
	_, reader1 := runBuild(t, Options{
		Inputs:          []string{filepath.Join(dir, "in1.json")},
		OutputDB:        filepath.Join(dir, "snap1.db"),
		StaticExportDir: filepath.Join(dir, "static1"),
	})
	firstID := identity.PaperID("doi:10.48550/arxiv.1706.03762")
	p1, err := reader1.GetPaper(context.Background(), firstID)
	require.NoError(t, err)
	reader1.Close()

	// Second extraction lost the DOI and BibTeX; the meta alias still
	// matches, so both fields inherit.
	second := attentionRecord()
	second.SourcePath, second.Translations = "", nil
	second.DOI = ""
	writeInput(t, filepath.Join(dir, "in2.json"), "deep_read", []*models.InputRecord{second})
	result, reader2 := runBuild(t, Options{
		Inputs:             []string{filepath.Join(dir, "in2.json")},
		PreviousSnapshotDB: filepath.Join(dir, "snap1.db"),
		OutputDB:           filepath.Join(dir, "snap2.db"),
		StaticExportDir:    filepath.Join(dir, "static2"),
	})

	p2, err := reader2.GetPaper(context.Background(), firstID)
	require.NoError(t, err)
	assert.Equal(t, p1.DOI, p2.DOI, "missing doi inherits from the previous snapshot")
	assert.True(t, p2.HasBibtex)

	e, err := reader2.GetBibtex(context.Background(), firstID)
	require.NoError(t, err)
	assert.Equal(t, "vaswani2017", e.BibtexKey)

	for _, issue := range result.Issues {
		assert.NotEqual(t, models.IssueInheritMismatch, issue.Kind)
	}

	// The inherited doi key resolves to the same paper next build.
	id, ok, err := reader2.LookupAlias("doi:" + p1.DOI)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, firstID, id)
}

func TestBuildReportsDOIMismatch(t *testing.T) {
	dir := t.TempDir()

	first := attentionRecord()
	first.SourcePath, first.Translations = "", nil
	writeInput(t, filepath.Join(dir, "in1.json"), "deep_read", []*models.InputRecord{first})
	_, reader1 := runBuild(t, Options{
		Inputs:          []string{filepath.Join(dir, "in1.json")},
		OutputDB:        filepath.Join(dir, "snap1.db"),
		StaticExportDir: filepath.Join(dir, "static1"),
	})
	firstID := identity.PaperID("doi:10.48550/arxiv.1706.03762")
	reader1.Close()

	second := attentionRecord()
	second.SourcePath, second.Translations = "", nil
	second.DOI = "10.1000/different"
	writeInput(t, filepath.Join(dir, "in2.json"), "deep_read", []*models.InputRecord{second})
	result, reader2 := runBuild(t, Options{
		Inputs:             []string{filepath.Join(dir, "in2.json")},
		PreviousSnapshotDB: filepath.Join(dir, "snap1.db"),
		OutputDB:           filepath.Join(dir, "snap2.db"),
		StaticExportDir:    filepath.Join(dir, "static2"),
	})

	// Meta alias matched the historical paper; current doi wins, mismatch
	// reported.
	p, err := reader2.GetPaper(context.Background(), firstID)
	require.NoError(t, err)
	assert.Equal(t, "10.1000/different", p.DOI)

	found := false
	for _, issue := range result.Issues {
		if issue.Kind == models.IssueInheritMismatch {
			found = true
			assert.Equal(t, firstID, issue.PaperID)
		}
	}
	assert.True(t, found, "expected a previous_snapshot_mismatch issue")
}

func TestBuildMissingAssetsAreIssuesNotErrors(t *testing.T) {
	dir := t.TempDir()

	rec := attentionRecord()
	rec.PDFPath = "nowhere.pdf"
	rec.SourcePath = "nowhere.md"
	rec.Translations = nil
	writeInput(t, filepath.Join(dir, "in.json"), "deep_read", []*models.InputRecord{rec})

	result, reader := runBuild(t, Options{
		Inputs:          []string{filepath.Join(dir, "in.json")},
		OutputDB:        filepath.Join(dir, "snap.db"),
		StaticExportDir: filepath.Join(dir, "static"),
	})
	assert.Equal(t, 1, result.Papers)

	kinds := make(map[models.BuildIssueKind]int)
	for _, issue := range result.Issues {
		kinds[issue.Kind]++
	}
	assert.Equal(t, 2, kinds[models.IssueAssetMissing])

	p, err := reader.GetPaper(context.Background(), identity.PaperID("doi:10.48550/arxiv.1706.03762"))
	require.NoError(t, err)
	assert.Empty(t, p.PDFContentHash)
	assert.Empty(t, p.SourceContentHash)
}

func TestCorpusIncludesAbstract(t *testing.T) {
	rec := &ingest.MergedRecord{
		Primary: &models.InputRecord{
			PaperTitle: "Residual Learning",
			Abstract:   "Deeper networks train via shortcut connections.",
		},
		Summaries:    map[string]string{"deep_read": "## Summary\n\nResiduals help."},
		TemplateTags: []string{"deep_read"},
	}
	paper := &models.Paper{
		Title:                     "Residual Learning",
		AvailableSummaryTemplates: []string{"deep_read"},
	}

	corpus := buildCorpus(paper, rec, &assets.PaperAssets{})
	assert.Contains(t, corpus.Summary, "shortcut connections")
	assert.Contains(t, corpus.Summary, "Residuals help")
}

func TestBuildDeterministicFacetIDs(t *testing.T) {
	dir := t.TempDir()

	records := []*models.InputRecord{attentionRecord(), {
		PaperTitle:       "Graph Networks in Practice",
		PaperAuthors:     []string{"Alice Smith"},
		PublicationDate:  "2022-01",
		PublicationVenue: "ICML",
		Keywords:         []string{"graphs", "message passing"},
		Summary:          "Summary.",
	}}
	for _, rec := range records {
		rec.SourcePath, rec.Translations = "", nil
	}
	writeInput(t, filepath.Join(dir, "in.json"), "deep_read", records)

	opts := func(n string) Options {
		return Options{
			Inputs:          []string{filepath.Join(dir, "in.json")},
			OutputDB:        filepath.Join(dir, "snap"+n+".db"),
			StaticExportDir: filepath.Join(dir, "static"+n),
		}
	}
	_, readerA := runBuild(t, opts("a"))
	_, readerB := runBuild(t, opts("b"))

	ctx := context.Background()
	for _, kind := range models.AllFacetKinds {
		va, _, err := readerA.ListFacet(ctx, kind, 100, 0)
		require.NoError(t, err)
		vb, _, err := readerB.ListFacet(ctx, kind, 100, 0)
		require.NoError(t, err)
		assert.Equal(t, va, vb, "facet %s must rebuild identically", kind)
	}
}
