package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/assets"
	"github.com/ternarybob/paperdb/internal/interfaces"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
)

var _ interfaces.SearchService = (*Service)(nil)

// Service executes validated search requests over a snapshot.
type Service struct {
	logger arbor.ILogger
	reader *sqlite.Reader
	parser *QueryParser
	urls   *assets.URLResolver
}

// NewService creates the search service.
func NewService(logger arbor.ILogger, reader *sqlite.Reader) *Service {
	return &Service{logger: logger, reader: reader, parser: NewQueryParser()}
}

// WithURLs attaches a resolver so response items carry asset URLs.
func (s *Service) WithURLs(urls *assets.URLResolver) *Service {
	s.urls = urls
	return s
}

// Validate enforces the request limits. Offset violations are caught here,
// before any query parsing or DB work.
func Validate(req *models.SearchRequest) error {
	if len(req.Query) > models.MaxQueryLength {
		return models.ErrQueryTooLong
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = models.DefaultPageSize
	}
	if req.PageSize > models.MaxPageSize {
		return models.ErrPageSizeTooLarge
	}
	if req.Page*req.PageSize > models.MaxOffset {
		return models.ErrOffsetTooLarge
	}
	if req.Sort == "" {
		req.Sort = models.SortRelevance
	}
	if !models.ValidSort(string(req.Sort)) {
		return fmt.Errorf("%w: unknown sort %q", models.ErrInvalidQuery, req.Sort)
	}
	return nil
}

// Search parses, rewrites, and executes a query. Empty queries list papers
// under the requested sort; zero-hit unfiltered queries retry against the
// trigram index for typo tolerance.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	if err := Validate(&req); err != nil {
		return nil, err
	}

	parsed, err := s.parser.Parse(req.Query)
	if err != nil {
		return nil, err
	}

	if parsed.Match == "" {
		return s.list(ctx, req, parsed.Filters)
	}

	hits, total, err := s.reader.Search(ctx, parsed.Match, parsed.Filters, req.Sort, req.PageSize, req.Offset())
	if err != nil {
		return nil, err
	}

	if total == 0 && parsed.Filters.Empty() {
		if fallback, fbTotal, fbErr := s.trigramFallback(ctx, req); fbErr == nil && fbTotal > 0 {
			hits, total = fallback, fbTotal
		}
	}

	items := make([]models.SearchItem, 0, len(hits))
	for _, hit := range hits {
		items = append(items, ItemFromPaper(&hit.Paper, CleanSnippet(hit.Snippet), s.urls))
	}
	return response(req, total, items), nil
}

func (s *Service) list(ctx context.Context, req models.SearchRequest, filters sqlite.Filters) (*models.SearchResponse, error) {
	papers, total, err := s.reader.List(ctx, filters, req.Sort, req.PageSize, req.Offset())
	if err != nil {
		return nil, err
	}
	items := make([]models.SearchItem, 0, len(papers))
	for i := range papers {
		items = append(items, ItemFromPaper(&papers[i], "", s.urls))
	}
	return response(req, total, items), nil
}

// trigramFallback re-runs a zero-hit query against the title+venue trigram
// index so near-miss spellings still find papers.
func (s *Service) trigramFallback(ctx context.Context, req models.SearchRequest) ([]sqlite.SearchHit, int, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return nil, 0, nil
	}
	match := `"` + escapeFTS(q) + `"`
	return s.reader.SearchTitleVenue(ctx, match, req.Sort, req.PageSize, req.Offset())
}

// ItemFromPaper maps a paper row onto a search response item. Facet-scoped
// listings reuse it so both surfaces emit the same shape. A nil resolver
// leaves the URL fields empty.
func ItemFromPaper(p *models.Paper, snippet string, urls *assets.URLResolver) models.SearchItem {
	langs := p.TranslationLangs()
	sort.Strings(langs)
	item := models.SearchItem{
		PaperID:          p.PaperID,
		Title:            p.Title,
		Authors:          p.Authors,
		Year:             p.Year,
		Venue:            p.Venue,
		SnippetMarkdown:  snippet,
		HasPDF:           p.PDFContentHash != "",
		HasSource:        p.SourceContentHash != "",
		HasBibtex:        p.HasBibtex,
		TranslationLangs: langs,
	}
	if urls == nil {
		return item
	}
	if p.PDFContentHash != "" {
		item.PDFURL = urls.PDFURL(p.PDFContentHash)
	}
	if p.SourceContentHash != "" {
		item.SourceURL = urls.SourceURL(p.SourceContentHash)
	}
	if len(p.AvailableSummaryTemplates) > 0 {
		item.SummaryURLs = make(map[string]string, len(p.AvailableSummaryTemplates))
		for _, tpl := range p.AvailableSummaryTemplates {
			item.SummaryURLs[tpl] = urls.SummaryURL(p.PaperID, tpl)
		}
	}
	item.ManifestURL = urls.ManifestURL(p.PaperID)
	return item
}

func response(req models.SearchRequest, total int, items []models.SearchItem) *models.SearchResponse {
	return &models.SearchResponse{
		Page:     req.Page,
		PageSize: req.PageSize,
		Total:    total,
		HasMore:  req.Offset()+len(items) < total,
		Items:    items,
	}
}
