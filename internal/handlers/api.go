package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/services/facets"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
)

// APIHandler serves health, version, config, and global stats.
type APIHandler struct {
	logger arbor.ILogger
	config *common.Config
	reader *sqlite.Reader
	facets *facets.Service
}

// NewAPIHandler creates the system handler.
func NewAPIHandler(logger arbor.ILogger, config *common.Config, reader *sqlite.Reader, facetSv *facets.Service) *APIHandler {
	return &APIHandler{logger: logger, config: config, reader: reader, facets: facetSv}
}

// HealthHandler reports liveness and the served snapshot.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"snapshot_build_id": h.reader.BuildID(),
		"schema_version":    h.reader.SchemaVersion(),
	})
}

// VersionHandler reports build metadata.
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// ConfigHandler exposes the front-end-safe config subset.
func (h *APIHandler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"static_base_url":   h.config.Static.BaseURL,
		"static_mode":       h.config.Static.Mode,
		"snapshot_build_id": h.reader.BuildID(),
		"version":           common.GetVersion(),
	})
}

// StatsHandler returns global snapshot stats.
func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := h.facets.GlobalStats(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
