package models

// PaperKeyType classifies the identifier a paper_key was derived from.
type PaperKeyType string

const (
	KeyTypeDOI   PaperKeyType = "doi"
	KeyTypeArxiv PaperKeyType = "arxiv"
	KeyTypeBib   PaperKeyType = "bib"
	KeyTypeMeta  PaperKeyType = "meta"
)

// Strength orders key types strongest-first for continuity resolution.
// Lower is stronger.
func (t PaperKeyType) Strength() int {
	switch t {
	case KeyTypeDOI:
		return 0
	case KeyTypeArxiv:
		return 1
	case KeyTypeBib:
		return 2
	case KeyTypeMeta:
		return 3
	}
	return 4
}

// Paper is the normalized per-paper record stored in the snapshot.
type Paper struct {
	PaperID      string       `json:"paper_id"` // 32 lowercase hex chars
	PaperKey     string       `json:"paper_key"`
	PaperKeyType PaperKeyType `json:"paper_key_type"`

	Title        string   `json:"title"`
	Authors      []string `json:"authors"`
	Year         string   `json:"year"`  // 4-digit string or "unknown"
	Month        string   `json:"month"` // "01".."12" or "Unknown"
	Venue        string   `json:"venue,omitempty"`
	DOI          string   `json:"doi,omitempty"` // canonical form
	Keywords     []string `json:"keywords,omitempty"`
	Institutions []string `json:"institutions,omitempty"`
	Tags         []string `json:"tags,omitempty"`

	OutputLanguage string `json:"output_language,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty"`

	PreferredSummaryTemplate   string   `json:"preferred_summary_template,omitempty"`
	AvailableSummaryTemplates  []string `json:"available_summary_templates"`
	SourceContentHash          string   `json:"source_content_hash,omitempty"`
	PDFContentHash             string   `json:"pdf_content_hash,omitempty"`
	TranslationHashes          map[string]string `json:"translations,omitempty"` // lang -> content hash

	// MetaFingerprint preserves the normalized fields used for the weak
	// meta key so rebuilds can detect collisions (structured, not a hash).
	MetaFingerprint *MetaFingerprint `json:"meta_fingerprint,omitempty"`

	HasBibtex bool `json:"has_bibtex"`
}

// MetaFingerprint holds the normalized metadata behind a meta: key.
type MetaFingerprint struct {
	TitleNorm   string   `json:"title_norm"`
	AuthorsNorm []string `json:"authors_norm"`
	Year        string   `json:"year"`
	VenueNorm   string   `json:"venue_norm"`
}

// TranslationLangs returns the sorted-at-write translation languages.
func (p *Paper) TranslationLangs() []string {
	langs := make([]string, 0, len(p.TranslationHashes))
	for lang := range p.TranslationHashes {
		langs = append(langs, lang)
	}
	return langs
}

// BibtexEntry is the persisted BibTeX payload for a paper.
type BibtexEntry struct {
	PaperID   string `json:"paper_id"`
	BibtexKey string `json:"bibtex_key"`
	EntryType string `json:"entry_type"`
	Raw       string `json:"bibtex_raw"`
	DOI       string `json:"doi,omitempty"`
}
