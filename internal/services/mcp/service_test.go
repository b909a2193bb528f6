package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/paperdb/internal/assets"
	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/services/assetproxy"
	"github.com/ternarybob/paperdb/internal/services/facets"
	"github.com/ternarybob/paperdb/internal/services/search"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
)

const (
	paperA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	paperB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testPaperService(t *testing.T) *PaperService {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/summary/" + paperA + "/deep_read.json":
			json.NewEncoder(w).Encode(models.SummaryDoc{
				PaperID: paperA, PaperTitle: "Attention Is All You Need",
				Template: "deep_read", Summary: "# Deep Read\n\nTransformers replace recurrence with attention.",
			})
		case "/summary/" + paperA + "/quick.json":
			json.NewEncoder(w).Encode(models.SummaryDoc{
				PaperID: paperA, Template: "quick", Summary: "Quick take.",
			})
		case "/md/srchash.md":
			w.Write([]byte("# Source\n\n" + strings.Repeat("body text ", 50)))
		case "/md_translate/zh/zhhash.md":
			w.Write([]byte("# 翻译\n\n正文"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "snapshot.db")
	db, err := sqlite.OpenWritable(common.GetLogger(), path)
	require.NoError(t, err)

	papers := []*sqlite.PaperSnapshot{
		{
			Paper: &models.Paper{
				PaperID: paperA, PaperKey: "doi:10.1000/a", PaperKeyType: models.KeyTypeDOI,
				Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani"},
				Year: "2017", Month: "06", Venue: "NeurIPS", DOI: "10.1000/a",
				Tags: []string{"nlp"}, Keywords: []string{"transformers"},
				PreferredSummaryTemplate:  "deep_read",
				AvailableSummaryTemplates: []string{"deep_read", "quick"},
				SourceContentHash:         "srchash",
				TranslationHashes:         map[string]string{"zh": "zhhash"},
				HasBibtex:                 true,
			},
			Bibtex: &models.BibtexEntry{
				PaperID: paperA, BibtexKey: "vaswani2017", EntryType: "inproceedings",
				Raw: "@inproceedings{vaswani2017, title={Attention Is All You Need}}",
			},
			Corpus: sqlite.Corpus{Title: "Attention Is All You Need", Body: "attention transformers"},
		},
		{
			Paper: &models.Paper{
				PaperID: paperB, PaperKey: "meta:b", PaperKeyType: models.KeyTypeMeta,
				Title: "Second Paper", Authors: []string{"Bob Jones"},
				Year: "2020", Month: "01", Venue: "ICML",
				AvailableSummaryTemplates: []string{},
			},
			Corpus: sqlite.Corpus{Title: "Second Paper", Body: "optimization methods"},
		},
	}

	writer := sqlite.NewWriter(common.GetLogger(), db)
	buildID, err := writer.WriteSnapshot(context.Background(), papers)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ro, err := sqlite.OpenReadOnly(common.GetLogger(), path)
	require.NoError(t, err)
	reader, err := sqlite.NewReader(common.GetLogger(), ro)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	fetcher, err := assetproxy.NewFetcher(common.GetLogger(), common.ProxyConfig{})
	require.NoError(t, err)

	logger := common.GetLogger()
	return NewPaperService(
		logger,
		reader,
		search.NewService(logger, reader),
		facets.NewService(logger, reader),
		fetcher,
		assets.NewURLResolver(srv.URL, buildID),
	)
}

func callOK(t *testing.T, s *PaperService, tool string, args map[string]interface{}) string {
	t.Helper()
	res, err := s.CallTool(context.Background(), tool, args)
	require.NoError(t, err)
	require.False(t, res.IsError, "tool error: %s", resultText(res))
	return resultText(res)
}

func callErr(t *testing.T, s *PaperService, tool string, args map[string]interface{}) ToolError {
	t.Helper()
	res, err := s.CallTool(context.Background(), tool, args)
	require.NoError(t, err)
	require.True(t, res.IsError)
	var payload ToolError
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &payload))
	return payload
}

func resultText(res *ToolResult) string {
	if len(res.Content) == 0 {
		return ""
	}
	return res.Content[0].Text
}

func TestInitializeAndListTools(t *testing.T) {
	s := testPaperService(t)

	init := s.Initialize()
	assert.Equal(t, ProtocolVersion, init.ProtocolVersion)
	assert.Equal(t, "paperdb", init.ServerInfo.Name)

	tools := s.ListTools()
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"], tool.Name)
	}
	assert.Equal(t, []string{
		"search_papers", "search_papers_by_keyword", "list_top_facets",
		"get_paper_metadata", "get_paper_summary", "get_paper_source", "get_paper_bibtex",
	}, names)
}

func TestSearchPapersTool(t *testing.T) {
	s := testPaperService(t)

	text := callOK(t, s, "search_papers", map[string]interface{}{"query": "attention"})
	var resp struct {
		Total   int `json:"total"`
		Results []struct {
			PaperID string `json:"paper_id"`
			Title   string `json:"title"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, paperA, resp.Results[0].PaperID)

	payload := callErr(t, s, "search_papers", map[string]interface{}{})
	assert.Equal(t, "invalid_query", payload.Error)
}

func TestSearchByKeywordFallsBackToKeywordFacet(t *testing.T) {
	s := testPaperService(t)

	// "transformers" exists only as a keyword, not a tag.
	text := callOK(t, s, "search_papers_by_keyword", map[string]interface{}{"keyword": "transformers"})
	assert.Contains(t, text, paperA)

	text = callOK(t, s, "search_papers_by_keyword", map[string]interface{}{"keyword": "nlp"})
	assert.Contains(t, text, paperA)

	text = callOK(t, s, "search_papers_by_keyword", map[string]interface{}{"keyword": "absent"})
	assert.Contains(t, text, `"total": 0`)
}

func TestListTopFacetsTool(t *testing.T) {
	s := testPaperService(t)

	text := callOK(t, s, "list_top_facets", map[string]interface{}{"category": "venue", "limit": float64(5)})
	assert.Contains(t, text, "neurips")
	assert.Contains(t, text, "icml")

	payload := callErr(t, s, "list_top_facets", map[string]interface{}{"category": "nonsense"})
	assert.Equal(t, "unknown_facet", payload.Error)
}

func TestGetMetadataTool(t *testing.T) {
	s := testPaperService(t)

	text := callOK(t, s, "get_paper_metadata", map[string]interface{}{"paper_id": paperA})
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &meta))
	assert.Equal(t, "10.1000/a", meta["doi"])
	assert.Equal(t, "deep_read", meta["preferred_summary_template"])
	assert.Equal(t, true, meta["has_bibtex"])
	assert.Equal(t, true, meta["has_source"])

	// DOI serializes as null, not "", when absent.
	text = callOK(t, s, "get_paper_metadata", map[string]interface{}{"paper_id": paperB})
	assert.Contains(t, text, `"doi": null`)

	payload := callErr(t, s, "get_paper_metadata", map[string]interface{}{"paper_id": "cccccccccccccccccccccccccccccccc"})
	assert.Equal(t, "paper_not_found", payload.Error)
	assert.Equal(t, "cccccccccccccccccccccccccccccccc", payload.PaperID)
}

func TestGetSummaryTool(t *testing.T) {
	s := testPaperService(t)

	// Default template is the preferred one.
	text := callOK(t, s, "get_paper_summary", map[string]interface{}{"paper_id": paperA})
	assert.Contains(t, text, "Transformers replace recurrence")
	assert.NotContains(t, text, "http", "tools return content, never URLs")

	text = callOK(t, s, "get_paper_summary", map[string]interface{}{"paper_id": paperA, "template": "quick"})
	assert.Equal(t, "Quick take.", text)

	payload := callErr(t, s, "get_paper_summary", map[string]interface{}{"paper_id": paperA, "template": "missing"})
	assert.Equal(t, "template_not_available", payload.Error)
	assert.Equal(t, "missing", payload.Template)
	assert.Equal(t, []string{"deep_read", "quick"}, payload.AvailableSummaryTemplates)

	payload = callErr(t, s, "get_paper_summary", map[string]interface{}{"paper_id": paperB})
	assert.Equal(t, "asset_missing", payload.Error)
}

func TestGetSourceToolTruncates(t *testing.T) {
	s := testPaperService(t)

	text := callOK(t, s, "get_paper_source", map[string]interface{}{"paper_id": paperA})
	assert.True(t, strings.HasPrefix(text, "# Source"))
	assert.NotContains(t, text, assetproxy.TruncationMarker)

	text = callOK(t, s, "get_paper_source", map[string]interface{}{"paper_id": paperA, "max_chars": float64(20)})
	assert.True(t, strings.HasSuffix(text, assetproxy.TruncationMarker))
	assert.Equal(t, "# Source", strings.SplitN(text, "\n", 2)[0])

	payload := callErr(t, s, "get_paper_source", map[string]interface{}{"paper_id": paperB})
	assert.Equal(t, "asset_missing", payload.Error)
}

func TestGetBibtexTool(t *testing.T) {
	s := testPaperService(t)

	text := callOK(t, s, "get_paper_bibtex", map[string]interface{}{"paper_id": paperA})
	assert.Contains(t, text, "@inproceedings{vaswani2017")

	payload := callErr(t, s, "get_paper_bibtex", map[string]interface{}{"paper_id": paperB})
	assert.Equal(t, "bibtex_not_found", payload.Error)
	assert.Equal(t, paperB, payload.PaperID)
}

func TestUnknownTool(t *testing.T) {
	s := testPaperService(t)
	_, err := s.CallTool(context.Background(), "drop_tables", nil)
	assert.Error(t, err)
}

func TestReadResource(t *testing.T) {
	s := testPaperService(t)
	ctx := context.Background()

	res, err := s.ReadResource(ctx, "paper://"+paperA+"/metadata")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "application/json", res.Contents[0].MimeType)
	assert.Contains(t, res.Contents[0].Text, "Attention Is All You Need")

	res, err = s.ReadResource(ctx, "paper://"+paperA+"/summary")
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "Transformers replace recurrence")

	res, err = s.ReadResource(ctx, "paper://"+paperA+"/summary/quick")
	require.NoError(t, err)
	assert.Equal(t, "Quick take.", res.Contents[0].Text)

	res, err = s.ReadResource(ctx, "paper://"+paperA+"/source")
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", res.Contents[0].MimeType)

	res, err = s.ReadResource(ctx, "paper://"+paperA+"/translation/zh")
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "翻译")

	_, err = s.ReadResource(ctx, "paper://"+paperA+"/translation/fr")
	assert.ErrorIs(t, err, models.ErrAssetMissing)

	_, err = s.ReadResource(ctx, "paper://"+paperA+"/nonsense")
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = s.ReadResource(ctx, "file:///etc/passwd")
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}

func TestListResources(t *testing.T) {
	s := testPaperService(t)
	list := s.ListResources()
	require.NotEmpty(t, list.Resources)
	for _, r := range list.Resources {
		assert.True(t, strings.HasPrefix(r.URI, "paper://"), r.URI)
	}
}
