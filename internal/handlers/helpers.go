package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/paperdb/internal/models"
)

// ErrorBody is the API error envelope.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) error {
	return WriteJSON(w, statusCode, ErrorBody{Error: code, Message: message})
}

// WriteDomainError maps a sentinel error onto an HTTP status and stable code.
func WriteDomainError(w http.ResponseWriter, err error) error {
	status, code := statusFor(err)
	return WriteError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrQueryTooLong):
		return http.StatusBadRequest, "query_too_long"
	case errors.Is(err, models.ErrPageSizeTooLarge):
		return http.StatusBadRequest, "page_size_too_large"
	case errors.Is(err, models.ErrOffsetTooLarge):
		return http.StatusBadRequest, "offset_too_large"
	case errors.Is(err, models.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_query"
	case errors.Is(err, models.ErrPaperNotFound):
		return http.StatusNotFound, "paper_not_found"
	case errors.Is(err, models.ErrBibtexNotFound):
		return http.StatusNotFound, "bibtex_not_found"
	case errors.Is(err, models.ErrTemplateNotAvailable):
		return http.StatusNotFound, "template_not_available"
	case errors.Is(err, models.ErrUnknownFacet):
		return http.StatusNotFound, "unknown_facet"
	case errors.Is(err, models.ErrAssetMissing):
		return http.StatusNotFound, "asset_missing"
	case errors.Is(err, models.ErrAssetFetchTimeout):
		return http.StatusGatewayTimeout, "asset_fetch_timeout"
	case errors.Is(err, models.ErrAssetFetchFailed):
		return http.StatusBadGateway, "asset_fetch_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// RequireMethod validates the HTTP method, writing a JSON 405 on mismatch.
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return false
	}
	return true
}

// QueryInt reads an integer query parameter, 0 when absent or malformed.
func QueryInt(r *http.Request, key string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
