package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/paperdb/internal/handlers"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Search
	mux.HandleFunc("/api/v1/search", s.searchHandler.SearchPapersHandler)

	// API routes - Papers (detail, bibtex, summary proxy)
	mux.HandleFunc("/api/v1/papers/", s.handlePaperRoutes)

	// API routes - Facets (values, scoped papers, stats)
	mux.HandleFunc("/api/v1/facets/", s.handleFacetRoutes)

	// API routes - System
	mux.HandleFunc("/api/v1/stats", s.apiHandler.StatsHandler)
	mux.HandleFunc("/api/v1/config", s.apiHandler.ConfigHandler)
	mux.HandleFunc("/api/v1/health", s.apiHandler.HealthHandler)
	mux.HandleFunc("/api/v1/version", s.apiHandler.VersionHandler)

	// MCP (Model Context Protocol) endpoint
	mux.HandleFunc("/mcp", s.mcpHandler.HandleRPC)

	return mux
}

// handlePaperRoutes dispatches /api/v1/papers/{paper_id}[/bibtex|/summary].
func (s *Server) handlePaperRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/papers/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.paperHandler.DetailHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "bibtex":
		s.paperHandler.BibtexHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "summary":
		s.paperHandler.SummaryHandler(w, r, parts[0])
	default:
		handlers.WriteError(w, http.StatusNotFound, "not_found", "unknown papers route")
	}
}

// handleFacetRoutes dispatches:
//
//	/api/v1/facets/{kind}
//	/api/v1/facets/{kind}/{id}/papers
//	/api/v1/facets/{kind}/by-value/{value}/papers
//	/api/v1/facets/{kind}/by-value/{value}/stats
func (s *Server) handleFacetRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/facets/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.facetHandler.ListHandler(w, r, parts[0])
	case len(parts) == 3 && parts[1] != "by-value" && parts[2] == "papers":
		s.facetHandler.PapersByIDHandler(w, r, parts[0], parts[1])
	case len(parts) == 4 && parts[1] == "by-value" && parts[3] == "papers":
		s.facetHandler.PapersByValueHandler(w, r, parts[0], unescape(parts[2]))
	case len(parts) == 4 && parts[1] == "by-value" && parts[3] == "stats":
		s.facetHandler.StatsHandler(w, r, parts[0], unescape(parts[2]))
	default:
		handlers.WriteError(w, http.StatusNotFound, "not_found", "unknown facets route")
	}
}

func unescape(segment string) string {
	if v, err := url.PathUnescape(segment); err == nil {
		return v
	}
	return segment
}
