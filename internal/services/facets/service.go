package facets

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/assets"
	"github.com/ternarybob/paperdb/internal/interfaces"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/services/search"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
	"github.com/ternarybob/paperdb/internal/textutil"
)

var _ interfaces.FacetService = (*Service)(nil)

// relatedPerKind caps how many related values facet_stats returns per kind.
const relatedPerKind = 20

// topValuesN is the bucket size for global stats.
const topValuesN = 10

// Service answers facet listings and stats from the precomputed tables.
type Service struct {
	logger arbor.ILogger
	reader *sqlite.Reader
	urls   *assets.URLResolver
}

// NewService creates the facet service.
func NewService(logger arbor.ILogger, reader *sqlite.Reader) *Service {
	return &Service{logger: logger, reader: reader}
}

// WithURLs attaches a resolver so response items carry asset URLs.
func (s *Service) WithURLs(urls *assets.URLResolver) *Service {
	s.urls = urls
	return s
}

func validateKind(kind string) (models.FacetKind, error) {
	if !models.ValidFacetKind(kind) {
		return "", fmt.Errorf("%w: %s", models.ErrUnknownFacet, kind)
	}
	return models.FacetKind(kind), nil
}

func clampPage(page, pageSize int) (int, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = models.DefaultPageSize
	}
	if pageSize > models.MaxPageSize {
		return 0, 0, models.ErrPageSizeTooLarge
	}
	if page*pageSize > models.MaxOffset {
		return 0, 0, models.ErrOffsetTooLarge
	}
	return page, pageSize, nil
}

// ListFacet returns values for one kind, count desc then value asc.
func (s *Service) ListFacet(ctx context.Context, kind string, page, pageSize int) ([]models.FacetValue, int, error) {
	k, err := validateKind(kind)
	if err != nil {
		return nil, 0, err
	}
	page, pageSize, err = clampPage(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return s.reader.ListFacet(ctx, k, pageSize, (page-1)*pageSize)
}

// FacetPapers returns papers scoped to a facet value by numeric id.
func (s *Service) FacetPapers(ctx context.Context, kind string, facetID int64, page, pageSize int, sort models.SortOrder) (*models.SearchResponse, error) {
	k, err := validateKind(kind)
	if err != nil {
		return nil, err
	}
	page, pageSize, err = clampPage(page, pageSize)
	if err != nil {
		return nil, err
	}
	if _, err := s.reader.FacetByID(ctx, k, facetID); err != nil {
		return nil, err
	}

	if sort == "" || sort == models.SortRelevance {
		sort = models.SortYearDesc
	}
	papers, total, err := s.reader.FacetPapers(ctx, k, facetID, sort, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return s.facetResponse(page, pageSize, total, papers), nil
}

// FacetPapersByValue resolves the normalized value first, then lists.
func (s *Service) FacetPapersByValue(ctx context.Context, kind, value string, page, pageSize int, sort models.SortOrder) (*models.SearchResponse, error) {
	k, err := validateKind(kind)
	if err != nil {
		return nil, err
	}
	v, err := s.reader.FacetByValue(ctx, k, textutil.NormalizeValue(value))
	if err != nil {
		return nil, err
	}
	return s.FacetPapers(ctx, kind, v.ID, page, pageSize, sort)
}

// FacetStats returns one value's totals plus cross-facet relationship
// counts from the precomputed cache. Same-kind buckets never contain the
// value itself.
func (s *Service) FacetStats(ctx context.Context, kind, value string) (*models.FacetStats, error) {
	k, err := validateKind(kind)
	if err != nil {
		return nil, err
	}
	v, err := s.reader.FacetByValue(ctx, k, textutil.NormalizeValue(value))
	if err != nil {
		return nil, err
	}
	related, err := s.reader.FacetRelated(ctx, k, v.ID, relatedPerKind)
	if err != nil {
		return nil, err
	}
	return &models.FacetStats{
		FacetType: kind,
		Value:     v.Value,
		Total:     v.PaperCount,
		Related:   related,
	}, nil
}

// GlobalStats summarizes the snapshot: totals, per-kind cardinality, and
// top value buckets.
func (s *Service) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	total, err := s.reader.TotalPapers(ctx)
	if err != nil {
		return nil, err
	}
	cardinality, err := s.reader.FacetCardinality(ctx)
	if err != nil {
		return nil, err
	}

	top := make(map[string][]models.FacetValue, len(models.AllFacetKinds))
	for _, kind := range models.AllFacetKinds {
		values, _, err := s.reader.ListFacet(ctx, kind, topValuesN, 0)
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			top[string(kind)] = values
		}
	}

	return &models.GlobalStats{
		TotalPapers:     total,
		SnapshotBuildID: s.reader.BuildID(),
		SchemaVersion:   s.reader.SchemaVersion(),
		Facets:          cardinality,
		TopValues:       top,
	}, nil
}

func (s *Service) facetResponse(page, pageSize, total int, papers []models.Paper) *models.SearchResponse {
	items := make([]models.SearchItem, 0, len(papers))
	for i := range papers {
		items = append(items, search.ItemFromPaper(&papers[i], "", s.urls))
	}
	return &models.SearchResponse{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		HasMore:  (page-1)*pageSize+len(items) < total,
		Items:    items,
	}
}
