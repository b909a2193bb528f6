package models

// FacetKind names a metadata dimension with normalized values and counts.
type FacetKind string

const (
	FacetAuthor          FacetKind = "author"
	FacetInstitution     FacetKind = "institution"
	FacetVenue           FacetKind = "venue"
	FacetKeyword         FacetKind = "keyword"
	FacetTag             FacetKind = "tag"
	FacetYear            FacetKind = "year"
	FacetMonth           FacetKind = "month"
	FacetSummaryTemplate FacetKind = "summary_template"
	FacetOutputLanguage  FacetKind = "output_language"
	FacetProvider        FacetKind = "provider"
	FacetModel           FacetKind = "model"
	FacetPromptTemplate  FacetKind = "prompt_template"
	FacetTranslationLang FacetKind = "translation_lang"
)

// AllFacetKinds lists every facet kind in stable order.
var AllFacetKinds = []FacetKind{
	FacetAuthor,
	FacetInstitution,
	FacetVenue,
	FacetKeyword,
	FacetTag,
	FacetYear,
	FacetMonth,
	FacetSummaryTemplate,
	FacetOutputLanguage,
	FacetProvider,
	FacetModel,
	FacetPromptTemplate,
	FacetTranslationLang,
}

// ValidFacetKind reports whether kind names a known facet.
func ValidFacetKind(kind string) bool {
	for _, k := range AllFacetKinds {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// FacetValue is one value row within a facet kind.
type FacetValue struct {
	ID         int64  `json:"id"`
	Value      string `json:"value"`
	PaperCount int    `json:"paper_count"`
}

// FacetStats carries per-value stats with cross-facet relationship counts.
type FacetStats struct {
	FacetType string                  `json:"facet_type"`
	Value     string                  `json:"value"`
	Total     int                     `json:"total"`
	Related   map[string][]FacetValue `json:"related"`
}

// GlobalStats summarizes the whole snapshot.
type GlobalStats struct {
	TotalPapers     int                     `json:"total_papers"`
	SnapshotBuildID string                  `json:"snapshot_build_id"`
	SchemaVersion   int                     `json:"schema_version"`
	Facets          map[string]int          `json:"facets"` // kind -> distinct value count
	TopValues       map[string][]FacetValue `json:"top_values"`
}
