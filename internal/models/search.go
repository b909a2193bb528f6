package models

// Search limits enforced by the query engine and read API.
const (
	MaxQueryLength = 500
	MaxPageSize    = 100
	MaxOffset      = 10000
	DefaultPageSize = 20
)

// SortOrder names a supported result ordering.
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortYearDesc  SortOrder = "year_desc"
	SortYearAsc   SortOrder = "year_asc"
	SortTitleAsc  SortOrder = "title_asc"
	SortTitleDesc SortOrder = "title_desc"
	SortVenueAsc  SortOrder = "venue_asc"
	SortVenueDesc SortOrder = "venue_desc"
)

// ValidSort reports whether s names a supported sort order.
func ValidSort(s string) bool {
	switch SortOrder(s) {
	case SortRelevance, SortYearDesc, SortYearAsc, SortTitleAsc, SortTitleDesc, SortVenueAsc, SortVenueDesc:
		return true
	}
	return false
}

// SearchRequest carries a parsed and validated search invocation.
type SearchRequest struct {
	Query    string
	Page     int // 1-based
	PageSize int
	Sort     SortOrder
}

// Offset returns the row offset for the request.
func (r SearchRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// SearchItem is one hit in a search response.
type SearchItem struct {
	PaperID         string            `json:"paper_id"`
	Title           string            `json:"title"`
	Authors         []string          `json:"authors"`
	Year            string            `json:"year"`
	Venue           string            `json:"venue,omitempty"`
	SnippetMarkdown string            `json:"snippet_markdown,omitempty"`
	HasPDF          bool              `json:"has_pdf"`
	HasSource       bool              `json:"has_source"`
	HasBibtex       bool              `json:"has_bibtex"`
	TranslationLangs []string         `json:"translation_langs,omitempty"`
	PDFURL          string            `json:"pdf_url,omitempty"`
	SourceURL       string            `json:"source_url,omitempty"`
	SummaryURLs     map[string]string `json:"summary_urls,omitempty"` // template -> URL
	ManifestURL     string            `json:"manifest_url,omitempty"`
}

// SearchResponse is the paged envelope returned by /search and facet-scoped
// paper listings.
type SearchResponse struct {
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int          `json:"total"`
	HasMore  bool         `json:"has_more"`
	Items    []SearchItem `json:"items"`
}

// PaperDetail is the full paper view returned by GET /papers/{paper_id}.
// DOI shadows the embedded field so legacy snapshots serialize it as null.
type PaperDetail struct {
	Paper
	DOI                  *string           `json:"doi"`
	TranslationLangsList []string          `json:"translation_langs"`
	PDFURL               string            `json:"pdf_url,omitempty"`
	SourceURL            string            `json:"source_url,omitempty"`
	TranslationURLs      map[string]string `json:"translation_urls,omitempty"`
	SummaryURLs          map[string]string `json:"summary_urls,omitempty"`
	ManifestURL          string            `json:"manifest_url,omitempty"`
}
