package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/assets"
	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/services/assetproxy"
	"github.com/ternarybob/paperdb/internal/services/facets"
	"github.com/ternarybob/paperdb/internal/services/search"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
)

const (
	defaultToolLimit = 10
	maxToolLimit     = 50

	// defaultResourceMaxChars bounds resources/read payloads. Tools only
	// truncate when the caller passes max_chars.
	defaultResourceMaxChars = 20000
)

// PaperService implements the MCP tool and resource surface over one
// snapshot. Summary and source content is fetched from the static asset
// layer and returned as text; URLs never leave this service.
type PaperService struct {
	logger   arbor.ILogger
	reader   *sqlite.Reader
	searchSv *search.Service
	facetSv  *facets.Service
	fetcher  *assetproxy.Fetcher
	urls     *assets.URLResolver
}

// NewPaperService creates the MCP service.
func NewPaperService(logger arbor.ILogger, reader *sqlite.Reader, searchSv *search.Service, facetSv *facets.Service, fetcher *assetproxy.Fetcher, urls *assets.URLResolver) *PaperService {
	return &PaperService{
		logger:   logger,
		reader:   reader,
		searchSv: searchSv,
		facetSv:  facetSv,
		fetcher:  fetcher,
		urls:     urls,
	}
}

// Initialize answers the MCP handshake.
func (s *PaperService) Initialize() *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
		ServerInfo: ServerInfo{
			Name:    "paperdb",
			Version: common.GetVersion(),
		},
	}
}

// ListTools returns the tool catalog.
func (s *PaperService) ListTools() *ToolList {
	return &ToolList{Tools: []Tool{
		{
			Name:        "search_papers",
			Title:       "Search papers",
			Description: "Full-text search over titles, metadata, summaries, and source text. Supports quoted phrases, -negation, OR, and field qualifiers (title:, author:, tag:, venue:, year:, month:).",
			InputSchema: objectSchema(map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "Search query"},
				"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 10, max 50)"},
			}, "query"),
		},
		{
			Name:        "search_papers_by_keyword",
			Title:       "Search papers by keyword",
			Description: "List papers carrying a tag or keyword facet value. Matches tags first, then keywords.",
			InputSchema: objectSchema(map[string]interface{}{
				"keyword": map[string]interface{}{"type": "string", "description": "Tag or keyword value"},
				"limit":   map[string]interface{}{"type": "integer", "description": "Max results (default 10, max 50)"},
			}, "keyword"),
		},
		{
			Name:        "list_top_facets",
			Title:       "List top facet values",
			Description: "Top values with paper counts for one facet category: author, institution, venue, keyword, tag, year, month, summary_template, output_language, provider, model, prompt_template, or translation_lang.",
			InputSchema: objectSchema(map[string]interface{}{
				"category": map[string]interface{}{"type": "string", "description": "Facet category"},
				"limit":    map[string]interface{}{"type": "integer", "description": "Max values (default 10, max 50)"},
			}, "category"),
		},
		{
			Name:        "get_paper_metadata",
			Title:       "Get paper metadata",
			Description: "Full metadata for one paper: authors, year, venue, doi (null when unknown), tags, summary templates, translations, and asset availability flags.",
			InputSchema: objectSchema(map[string]interface{}{
				"paper_id": map[string]interface{}{"type": "string", "description": "32-char paper id"},
			}, "paper_id"),
		},
		{
			Name:        "get_paper_summary",
			Title:       "Get paper summary",
			Description: "Summary markdown for one paper. Defaults to the paper's preferred template; pass template to pick another, max_chars to bound the response.",
			InputSchema: objectSchema(map[string]interface{}{
				"paper_id":  map[string]interface{}{"type": "string", "description": "32-char paper id"},
				"template":  map[string]interface{}{"type": "string", "description": "Summary template name"},
				"max_chars": map[string]interface{}{"type": "integer", "description": "Truncate to this many characters"},
			}, "paper_id"),
		},
		{
			Name:        "get_paper_source",
			Title:       "Get paper source text",
			Description: "Full extracted source markdown for one paper. Source documents can be very large; pass max_chars to bound the response.",
			InputSchema: objectSchema(map[string]interface{}{
				"paper_id":  map[string]interface{}{"type": "string", "description": "32-char paper id"},
				"max_chars": map[string]interface{}{"type": "integer", "description": "Truncate to this many characters"},
			}, "paper_id"),
		},
		{
			Name:        "get_paper_bibtex",
			Title:       "Get paper BibTeX",
			Description: "The persisted BibTeX entry for one paper.",
			InputSchema: objectSchema(map[string]interface{}{
				"paper_id": map[string]interface{}{"type": "string", "description": "32-char paper id"},
			}, "paper_id"),
		},
	}}
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// CallTool dispatches one tools/call. Domain failures come back as error
// results with a structured payload, not protocol errors.
func (s *PaperService) CallTool(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	switch name {
	case "search_papers":
		return s.searchPapers(ctx, args)
	case "search_papers_by_keyword":
		return s.searchByKeyword(ctx, args)
	case "list_top_facets":
		return s.listTopFacets(ctx, args)
	case "get_paper_metadata":
		return s.getMetadata(ctx, args)
	case "get_paper_summary":
		return s.getSummary(ctx, args)
	case "get_paper_source":
		return s.getSource(ctx, args)
	case "get_paper_bibtex":
		return s.getBibtex(ctx, args)
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

func (s *PaperService) searchPapers(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	query := stringArg(args, "query")
	if query == "" {
		return toolError(models.ErrInvalidQuery, "query is required", "", "", nil), nil
	}
	resp, err := s.searchSv.Search(ctx, models.SearchRequest{
		Query:    query,
		Page:     1,
		PageSize: limitArg(args),
	})
	if err != nil {
		return toolError(err, err.Error(), "", "", nil), nil
	}
	return textResult(formatSearchResults(resp)), nil
}

func (s *PaperService) searchByKeyword(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	keyword := stringArg(args, "keyword")
	if keyword == "" {
		return toolError(models.ErrInvalidQuery, "keyword is required", "", "", nil), nil
	}
	limit := limitArg(args)

	resp, err := s.facetSv.FacetPapersByValue(ctx, string(models.FacetTag), keyword, 1, limit, models.SortYearDesc)
	if errors.Is(err, models.ErrUnknownFacet) {
		resp, err = s.facetSv.FacetPapersByValue(ctx, string(models.FacetKeyword), keyword, 1, limit, models.SortYearDesc)
	}
	if errors.Is(err, models.ErrUnknownFacet) {
		resp = &models.SearchResponse{Page: 1, PageSize: limit, Items: []models.SearchItem{}}
		err = nil
	}
	if err != nil {
		return toolError(err, err.Error(), "", "", nil), nil
	}
	return textResult(formatSearchResults(resp)), nil
}

func (s *PaperService) listTopFacets(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	category := stringArg(args, "category")
	values, _, err := s.facetSv.ListFacet(ctx, category, 1, limitArg(args))
	if err != nil {
		return toolError(err, err.Error(), "", "", nil), nil
	}
	return textResult(formatFacetValues(category, values)), nil
}

func (s *PaperService) getMetadata(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	paperID := stringArg(args, "paper_id")
	paper, err := s.reader.GetPaper(ctx, paperID)
	if err != nil {
		return toolError(err, err.Error(), paperID, "", nil), nil
	}
	return textResult(formatMetadata(paper)), nil
}

func (s *PaperService) getSummary(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	paperID := stringArg(args, "paper_id")
	template := stringArg(args, "template")
	text, _, available, err := s.summaryText(ctx, paperID, template)
	if err != nil {
		return toolError(err, err.Error(), paperID, template, available), nil
	}
	return textResult(assetproxy.Truncate(text, intArg(args, "max_chars"))), nil
}

func (s *PaperService) getSource(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	paperID := stringArg(args, "paper_id")
	text, err := s.sourceText(ctx, paperID)
	if err != nil {
		return toolError(err, err.Error(), paperID, "", nil), nil
	}
	return textResult(assetproxy.Truncate(text, intArg(args, "max_chars"))), nil
}

func (s *PaperService) getBibtex(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	paperID := stringArg(args, "paper_id")
	entry, err := s.reader.GetBibtex(ctx, paperID)
	if err != nil {
		return toolError(err, err.Error(), paperID, "", nil), nil
	}
	return textResult(entry.Raw), nil
}

// summaryText resolves the template, fetches the summary JSON from the
// static tree, and returns its markdown body.
func (s *PaperService) summaryText(ctx context.Context, paperID, template string) (string, string, []string, error) {
	paper, err := s.reader.GetPaper(ctx, paperID)
	if err != nil {
		return "", template, nil, err
	}
	available := paper.AvailableSummaryTemplates
	if len(available) == 0 {
		return "", template, nil, fmt.Errorf("%w: paper %s has no summaries", models.ErrAssetMissing, paperID)
	}
	if template == "" {
		template = paper.PreferredSummaryTemplate
		if template == "" {
			template = available[0]
		}
	}
	if !containsString(available, template) {
		return "", template, available, fmt.Errorf("%w: %s", models.ErrTemplateNotAvailable, template)
	}

	var doc models.SummaryDoc
	if err := s.fetcher.FetchJSON(ctx, s.urls.SummaryURL(paperID, template), &doc); err != nil {
		return "", template, available, err
	}
	return doc.Summary, template, available, nil
}

func (s *PaperService) sourceText(ctx context.Context, paperID string) (string, error) {
	paper, err := s.reader.GetPaper(ctx, paperID)
	if err != nil {
		return "", err
	}
	if paper.SourceContentHash == "" {
		return "", fmt.Errorf("%w: paper %s has no source document", models.ErrAssetMissing, paperID)
	}
	return s.fetcher.FetchText(ctx, s.urls.SourceURL(paper.SourceContentHash))
}

func (s *PaperService) translationText(ctx context.Context, paperID, lang string) (string, error) {
	paper, err := s.reader.GetPaper(ctx, paperID)
	if err != nil {
		return "", err
	}
	hash, ok := paper.TranslationHashes[lang]
	if !ok {
		return "", fmt.Errorf("%w: paper %s has no %s translation", models.ErrAssetMissing, paperID, lang)
	}
	return s.fetcher.FetchText(ctx, s.urls.TranslationURL(lang, hash))
}

// ListResources advertises the addressable resource shapes. Per-paper URIs
// follow the paper://{paper_id}/... pattern; clients substitute ids from
// search results.
func (s *PaperService) ListResources() *ResourceList {
	return &ResourceList{Resources: []Resource{
		{URI: "paper://{paper_id}/metadata", Name: "Paper metadata", Description: "Full metadata record for one paper", MimeType: "application/json"},
		{URI: "paper://{paper_id}/summary", Name: "Paper summary", Description: "Summary markdown in the paper's preferred template", MimeType: "text/markdown"},
		{URI: "paper://{paper_id}/summary/{template}", Name: "Paper summary by template", Description: "Summary markdown in a specific template", MimeType: "text/markdown"},
		{URI: "paper://{paper_id}/source", Name: "Paper source", Description: "Extracted source markdown", MimeType: "text/markdown"},
		{URI: "paper://{paper_id}/translation/{lang}", Name: "Paper translation", Description: "Translated source markdown for one language", MimeType: "text/markdown"},
	}}
}

// ReadResource serves one paper:// URI. Content is truncated at the
// resource default bound.
func (s *PaperService) ReadResource(ctx context.Context, uri string) (*ResourceReadResult, error) {
	rest, ok := strings.CutPrefix(uri, "paper://")
	if !ok {
		return nil, fmt.Errorf("%w: unsupported URI scheme in %q", models.ErrInvalidQuery, uri)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("%w: malformed resource URI %q", models.ErrInvalidQuery, uri)
	}
	paperID, resource := parts[0], parts[1]

	var (
		text     string
		mimeType string
		err      error
	)
	switch {
	case resource == "metadata":
		var paper *models.Paper
		paper, err = s.reader.GetPaper(ctx, paperID)
		if err == nil {
			text, mimeType = formatMetadata(paper), "application/json"
		}
	case resource == "summary":
		text, _, _, err = s.summaryText(ctx, paperID, "")
		mimeType = "text/markdown"
	case strings.HasPrefix(resource, "summary/"):
		text, _, _, err = s.summaryText(ctx, paperID, strings.TrimPrefix(resource, "summary/"))
		mimeType = "text/markdown"
	case resource == "source":
		text, err = s.sourceText(ctx, paperID)
		mimeType = "text/markdown"
	case strings.HasPrefix(resource, "translation/"):
		text, err = s.translationText(ctx, paperID, strings.TrimPrefix(resource, "translation/"))
		mimeType = "text/markdown"
	default:
		return nil, fmt.Errorf("%w: unknown resource %q", models.ErrInvalidQuery, resource)
	}
	if err != nil {
		return nil, err
	}

	return &ResourceReadResult{Contents: []ResourceContent{{
		URI:      uri,
		MimeType: mimeType,
		Text:     assetproxy.Truncate(text, defaultResourceMaxChars),
	}}}, nil
}

func textResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func toolError(err error, message, paperID, template string, available []string) *ToolResult {
	payload := ToolError{
		Error:   errorCode(err),
		Message: message,
		PaperID: paperID,
	}
	if errors.Is(err, models.ErrTemplateNotAvailable) {
		payload.Template = template
		payload.AvailableSummaryTemplates = available
	}
	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: marshalIndent(payload)}},
		IsError: true,
	}
}

// errorCode maps sentinel errors onto the stable codes agents match on.
func errorCode(err error) string {
	for _, sentinel := range []error{
		models.ErrPaperNotFound,
		models.ErrBibtexNotFound,
		models.ErrTemplateNotAvailable,
		models.ErrAssetMissing,
		models.ErrAssetFetchTimeout,
		models.ErrAssetFetchFailed,
		models.ErrQueryTooLong,
		models.ErrPageSizeTooLarge,
		models.ErrOffsetTooLarge,
		models.ErrUnknownFacet,
		models.ErrInvalidQuery,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal_error"
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intArg reads an integer argument. JSON numbers decode as float64.
func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func limitArg(args map[string]interface{}) int {
	limit := intArg(args, "limit")
	if limit <= 0 {
		return defaultToolLimit
	}
	if limit > maxToolLimit {
		return maxToolLimit
	}
	return limit
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
