package main

import "github.com/spf13/cobra"

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Snapshot database operations",
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Build and inspect snapshots",
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve a snapshot over HTTP",
}

func init() {
	dbCmd.AddCommand(snapshotCmd)
	dbCmd.AddCommand(apiCmd)
	snapshotCmd.AddCommand(buildCmd)
	apiCmd.AddCommand(serveCmd)
}
