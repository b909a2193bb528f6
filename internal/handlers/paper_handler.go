package handlers

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/assets"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/services/assetproxy"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
)

// PaperHandler serves the /api/v1/papers/{paper_id} routes.
type PaperHandler struct {
	logger  arbor.ILogger
	reader  *sqlite.Reader
	fetcher *assetproxy.Fetcher
	urls    *assets.URLResolver
}

// NewPaperHandler creates the paper handler.
func NewPaperHandler(logger arbor.ILogger, reader *sqlite.Reader, fetcher *assetproxy.Fetcher, urls *assets.URLResolver) *PaperHandler {
	return &PaperHandler{logger: logger, reader: reader, fetcher: fetcher, urls: urls}
}

// DetailHandler returns the full paper record with resolved asset URLs.
func (h *PaperHandler) DetailHandler(w http.ResponseWriter, r *http.Request, paperID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	paper, err := h.reader.GetPaper(r.Context(), paperID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.detail(paper))
}

// BibtexHandler returns the persisted BibTeX payload. The doi comes from
// the paper row, not reparsed from the entry.
func (h *PaperHandler) BibtexHandler(w http.ResponseWriter, r *http.Request, paperID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	entry, err := h.reader.GetBibtex(r.Context(), paperID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}

// SummaryHandler proxies the summary JSON from the static tree. An omitted
// template falls back to the paper's preferred one.
func (h *PaperHandler) SummaryHandler(w http.ResponseWriter, r *http.Request, paperID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	paper, err := h.reader.GetPaper(r.Context(), paperID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	template := r.URL.Query().Get("template")
	if template == "" {
		template = paper.PreferredSummaryTemplate
		if template == "" && len(paper.AvailableSummaryTemplates) > 0 {
			template = paper.AvailableSummaryTemplates[0]
		}
	}
	if !templateAvailable(paper.AvailableSummaryTemplates, template) {
		WriteDomainError(w, fmt.Errorf("%w: %s", models.ErrTemplateNotAvailable, template))
		return
	}

	var doc models.SummaryDoc
	if err := h.fetcher.FetchJSON(r.Context(), h.urls.SummaryURL(paperID, template), &doc); err != nil {
		h.logger.Warn().Err(err).Str("paper_id", paperID).Str("template", template).Msg("summary proxy failed")
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (h *PaperHandler) detail(p *models.Paper) *models.PaperDetail {
	langs := p.TranslationLangs()
	sort.Strings(langs)
	if langs == nil {
		langs = []string{}
	}

	d := &models.PaperDetail{Paper: *p, TranslationLangsList: langs}
	if p.DOI != "" {
		d.DOI = &d.Paper.DOI
	}
	if h.urls == nil {
		return d
	}

	if p.PDFContentHash != "" {
		d.PDFURL = h.urls.PDFURL(p.PDFContentHash)
	}
	if p.SourceContentHash != "" {
		d.SourceURL = h.urls.SourceURL(p.SourceContentHash)
	}
	if len(p.TranslationHashes) > 0 {
		d.TranslationURLs = make(map[string]string, len(p.TranslationHashes))
		for lang, hash := range p.TranslationHashes {
			d.TranslationURLs[lang] = h.urls.TranslationURL(lang, hash)
		}
	}
	if len(p.AvailableSummaryTemplates) > 0 {
		d.SummaryURLs = make(map[string]string, len(p.AvailableSummaryTemplates))
		for _, tpl := range p.AvailableSummaryTemplates {
			d.SummaryURLs[tpl] = h.urls.SummaryURL(p.PaperID, tpl)
		}
	}
	d.ManifestURL = h.urls.ManifestURL(p.PaperID)
	return d
}

func templateAvailable(available []string, template string) bool {
	if template == "" {
		return false
	}
	for _, tpl := range available {
		if tpl == template {
			return true
		}
	}
	return false
}
