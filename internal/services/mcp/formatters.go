package mcp

import (
	"encoding/json"
	"sort"

	"github.com/ternarybob/paperdb/internal/models"
)

// metadataView is the agent-facing paper metadata shape. DOI is a pointer
// so legacy snapshots render it as null rather than "".
type metadataView struct {
	PaperID                   string            `json:"paper_id"`
	Title                     string            `json:"title"`
	Authors                   []string          `json:"authors"`
	Year                      string            `json:"year"`
	Month                     string            `json:"month"`
	Venue                     string            `json:"venue,omitempty"`
	DOI                       *string           `json:"doi"`
	Keywords                  []string          `json:"keywords,omitempty"`
	Institutions              []string          `json:"institutions,omitempty"`
	Tags                      []string          `json:"tags,omitempty"`
	PreferredSummaryTemplate  string            `json:"preferred_summary_template,omitempty"`
	AvailableSummaryTemplates []string          `json:"available_summary_templates"`
	TranslationLangs          []string          `json:"translation_langs"`
	HasBibtex                 bool              `json:"has_bibtex"`
	HasPDF                    bool              `json:"has_pdf"`
	HasSource                 bool              `json:"has_source"`
}

func formatMetadata(p *models.Paper) string {
	var doi *string
	if p.DOI != "" {
		doi = &p.DOI
	}
	langs := p.TranslationLangs()
	sort.Strings(langs)
	if langs == nil {
		langs = []string{}
	}
	templates := p.AvailableSummaryTemplates
	if templates == nil {
		templates = []string{}
	}

	return marshalIndent(metadataView{
		PaperID:                   p.PaperID,
		Title:                     p.Title,
		Authors:                   p.Authors,
		Year:                      p.Year,
		Month:                     p.Month,
		Venue:                     p.Venue,
		DOI:                       doi,
		Keywords:                  p.Keywords,
		Institutions:              p.Institutions,
		Tags:                      p.Tags,
		PreferredSummaryTemplate:  p.PreferredSummaryTemplate,
		AvailableSummaryTemplates: templates,
		TranslationLangs:          langs,
		HasBibtex:                 p.HasBibtex,
		HasPDF:                    p.PDFContentHash != "",
		HasSource:                 p.SourceContentHash != "",
	})
}

// searchResultView trims a hit down to what agents need to follow up.
type searchResultView struct {
	PaperID         string `json:"paper_id"`
	Title           string `json:"title"`
	Year            string `json:"year"`
	Venue           string `json:"venue,omitempty"`
	SnippetMarkdown string `json:"snippet_markdown,omitempty"`
}

func formatSearchResults(resp *models.SearchResponse) string {
	results := make([]searchResultView, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, searchResultView{
			PaperID:         item.PaperID,
			Title:           item.Title,
			Year:            item.Year,
			Venue:           item.Venue,
			SnippetMarkdown: item.SnippetMarkdown,
		})
	}
	return marshalIndent(map[string]interface{}{
		"total":   resp.Total,
		"results": results,
	})
}

func formatFacetValues(kind string, values []models.FacetValue) string {
	return marshalIndent(map[string]interface{}{
		"facet":  kind,
		"values": values,
	})
}

func marshalIndent(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
