package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/services/search"
)

// SearchHandler serves GET /api/v1/search.
type SearchHandler struct {
	logger arbor.ILogger
	search *search.Service
}

// NewSearchHandler creates the search handler.
func NewSearchHandler(logger arbor.ILogger, searchSv *search.Service) *SearchHandler {
	return &SearchHandler{logger: logger, search: searchSv}
}

// SearchPapersHandler runs a full-text search. Limit violations come back
// as 400 validation_error before any query work happens.
func (h *SearchHandler) SearchPapersHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	req := models.SearchRequest{
		Query:    r.URL.Query().Get("q"),
		Page:     QueryInt(r, "page"),
		PageSize: QueryInt(r, "page_size"),
		Sort:     models.SortOrder(r.URL.Query().Get("sort")),
	}

	resp, err := h.search.Search(r.Context(), req)
	if err != nil {
		h.logger.Debug().Err(err).Str("q", req.Query).Msg("search rejected")
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}
