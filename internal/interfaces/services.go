package interfaces

import (
	"context"

	"github.com/ternarybob/paperdb/internal/models"
)

// SearchService - full-text search over the snapshot corpus
type SearchService interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

// FacetService - facet listings, facet-scoped papers, and stats
type FacetService interface {
	ListFacet(ctx context.Context, kind string, page, pageSize int) ([]models.FacetValue, int, error)
	FacetPapers(ctx context.Context, kind string, facetID int64, page, pageSize int, sort models.SortOrder) (*models.SearchResponse, error)
	FacetPapersByValue(ctx context.Context, kind, value string, page, pageSize int, sort models.SortOrder) (*models.SearchResponse, error)
	FacetStats(ctx context.Context, kind, value string) (*models.FacetStats, error)
	GlobalStats(ctx context.Context) (*models.GlobalStats, error)
}

// PaperStore - the read-side snapshot queries the services depend on
type PaperStore interface {
	GetPaper(ctx context.Context, paperID string) (*models.Paper, error)
	GetBibtex(ctx context.Context, paperID string) (*models.BibtexEntry, error)
	BuildID() string
	SchemaVersion() int
}

// AssetFetcher - bounded outbound fetches of static summary/source content
type AssetFetcher interface {
	FetchJSON(ctx context.Context, url string, out interface{}) error
	FetchText(ctx context.Context, url string) (string, error)
}
