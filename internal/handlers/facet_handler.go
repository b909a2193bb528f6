package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/services/facets"
)

// FacetHandler serves the /api/v1/facets/{kind} routes.
type FacetHandler struct {
	logger arbor.ILogger
	facets *facets.Service
}

// NewFacetHandler creates the facet handler.
func NewFacetHandler(logger arbor.ILogger, facetSv *facets.Service) *FacetHandler {
	return &FacetHandler{logger: logger, facets: facetSv}
}

// ListHandler lists values for one facet kind, count desc then value asc.
func (h *FacetHandler) ListHandler(w http.ResponseWriter, r *http.Request, kind string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	page, pageSize := QueryInt(r, "page"), QueryInt(r, "page_size")
	values, total, err := h.facets.ListFacet(r.Context(), kind, page, pageSize)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if page < 1 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = models.DefaultPageSize
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"facet":     kind,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
		"values":    values,
	})
}

// PapersByIDHandler lists papers for a facet value addressed by numeric id.
func (h *FacetHandler) PapersByIDHandler(w http.ResponseWriter, r *http.Request, kind, idStr string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	facetID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "facet id must be an integer")
		return
	}
	resp, err := h.facets.FacetPapers(r.Context(), kind, facetID,
		QueryInt(r, "page"), QueryInt(r, "page_size"), models.SortOrder(r.URL.Query().Get("sort")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// PapersByValueHandler lists papers for a facet value addressed by its
// normalized value.
func (h *FacetHandler) PapersByValueHandler(w http.ResponseWriter, r *http.Request, kind, value string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	resp, err := h.facets.FacetPapersByValue(r.Context(), kind, value,
		QueryInt(r, "page"), QueryInt(r, "page_size"), models.SortOrder(r.URL.Query().Get("sort")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// StatsHandler returns one value's totals plus cross-facet relationship
// counts.
func (h *FacetHandler) StatsHandler(w http.ResponseWriter, r *http.Request, kind, value string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := h.facets.FacetStats(r.Context(), kind, value)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
