package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/server"
)

var serveFlags struct {
	snapshotDB     string
	host           string
	port           int
	staticBaseURL  string
	allowedOrigins []string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only API and MCP endpoint from a snapshot",
	Long: `Opens a snapshot database read-only and serves /api/v1 and /mcp.
The process never writes to the snapshot; swap snapshots by restarting
against a new file.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.snapshotDB, "snapshot-db", "", "Snapshot database to serve (overrides config)")
	f.StringVar(&serveFlags.host, "host", "", "Listen host (overrides config)")
	f.IntVarP(&serveFlags.port, "port", "p", 0, "Listen port (overrides config)")
	f.StringVar(&serveFlags.staticBaseURL, "static-base-url", "", "Base URL for asset links (overrides config)")
	f.StringArrayVar(&serveFlags.allowedOrigins, "allowed-origin", nil, "CORS/MCP origin allowlist entry (repeatable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveFlags.snapshotDB != "" {
		config.Server.SnapshotDB = serveFlags.snapshotDB
	}
	if serveFlags.host != "" {
		config.Server.Host = serveFlags.host
	}
	if serveFlags.port != 0 {
		config.Server.Port = serveFlags.port
	}
	if serveFlags.staticBaseURL != "" {
		config.Static.BaseURL = serveFlags.staticBaseURL
	}
	if len(serveFlags.allowedOrigins) > 0 {
		config.Server.AllowedOrigins = serveFlags.allowedOrigins
	}
	if config.Server.SnapshotDB == "" {
		return fmt.Errorf("no snapshot: set --snapshot-db or server.snapshot_db")
	}

	common.PrintBanner(common.GetVersion())

	srv, err := server.New(logger, config)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
