package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/assets"
	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/handlers"
	"github.com/ternarybob/paperdb/internal/services/assetproxy"
	"github.com/ternarybob/paperdb/internal/services/facets"
	"github.com/ternarybob/paperdb/internal/services/mcp"
	"github.com/ternarybob/paperdb/internal/services/search"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
)

// Server wires the snapshot reader, services, and HTTP routes.
type Server struct {
	config *common.Config
	logger arbor.ILogger
	reader *sqlite.Reader
	server *http.Server

	searchHandler *handlers.SearchHandler
	paperHandler  *handlers.PaperHandler
	facetHandler  *handlers.FacetHandler
	apiHandler    *handlers.APIHandler
	mcpHandler    *handlers.MCPHandler
}

// New opens the snapshot read-only and builds the full service stack.
func New(logger arbor.ILogger, config *common.Config) (*Server, error) {
	db, err := sqlite.OpenReadOnly(logger, config.Server.SnapshotDB)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	reader, err := sqlite.NewReader(logger, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading snapshot metadata: %w", err)
	}

	fetcher, err := assetproxy.NewFetcher(logger, config.Proxy)
	if err != nil {
		reader.Close()
		return nil, err
	}
	urls := assets.NewURLResolver(config.Static.BaseURL, reader.BuildID())

	searchSv := search.NewService(logger, reader).WithURLs(urls)
	facetSv := facets.NewService(logger, reader).WithURLs(urls)
	mcpSv := mcp.NewPaperService(logger, reader, searchSv, facetSv, fetcher, urls)

	s := &Server{
		config:        config,
		logger:        logger,
		reader:        reader,
		searchHandler: handlers.NewSearchHandler(logger, searchSv),
		paperHandler:  handlers.NewPaperHandler(logger, reader, fetcher, urls),
		facetHandler:  handlers.NewFacetHandler(logger, facetSv),
		apiHandler:    handlers.NewAPIHandler(logger, config, reader, facetSv),
		mcpHandler:    handlers.NewMCPHandler(mcpSv, logger, config.Server.AllowedOrigins),
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(s.setupRoutes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Str("snapshot", s.config.Server.SnapshotDB).
		Str("build_id", s.reader.BuildID()).
		Int("schema_version", s.reader.SchemaVersion()).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and releases the snapshot.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := s.reader.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
