package models

// InputCollection is one input file: either a bare array of records or an
// envelope carrying a template tag.
type InputCollection struct {
	TemplateTag string         `json:"template_tag"`
	Papers      []*InputRecord `json:"papers"`
}

// InputRecord is a single extracted paper record as produced by the
// extraction pipeline. Fields the core does not model are ignored.
type InputRecord struct {
	PaperTitle  string   `json:"paper_title" validate:"required_without=Title"`
	Title       string   `json:"title"`
	PaperAuthors []string `json:"paper_authors"`
	Authors      []string `json:"authors"`

	PublicationDate  string   `json:"publication_date,omitempty"`
	PublicationVenue string   `json:"publication_venue,omitempty"`
	DOI              string   `json:"doi,omitempty"`
	ArxivID          string   `json:"arxiv_id,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	Institutions     []string `json:"institutions,omitempty"`
	Tags             []string `json:"tags,omitempty"`

	Summary  string `json:"summary,omitempty"`
	Abstract string `json:"abstract,omitempty"`

	OutputLanguage string `json:"output_language,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty"`
	SummaryTemplate string `json:"summary_template,omitempty"`

	SourcePath   string            `json:"source_path,omitempty"`
	PDFPath      string            `json:"pdf_path,omitempty"`
	Translations map[string]string `json:"translations,omitempty"` // lang -> path
	Images       []string          `json:"images,omitempty"`

	Bibtex *BibtexRef `json:"bibtex,omitempty"`
}

// BibtexRef carries BibTeX-derived fields attached to an input record.
type BibtexRef struct {
	Key       string            `json:"key,omitempty"`
	EntryType string            `json:"entry_type,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// EffectiveTitle prefers bibtex.fields.title, then paper_title, then title.
func (r *InputRecord) EffectiveTitle() string {
	if r.Bibtex != nil {
		if t, ok := r.Bibtex.Fields["title"]; ok && t != "" {
			return t
		}
	}
	if r.PaperTitle != "" {
		return r.PaperTitle
	}
	return r.Title
}

// EffectiveAuthors prefers paper_authors over authors.
func (r *InputRecord) EffectiveAuthors() []string {
	if len(r.PaperAuthors) > 0 {
		return r.PaperAuthors
	}
	return r.Authors
}
