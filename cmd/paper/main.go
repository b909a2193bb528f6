package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/common"
)

var (
	configFiles []string

	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "paper",
	Short: "Paper snapshot search and retrieval",
	Long: `Builds read-only SQLite paper snapshots from extraction inputs and
serves them over an HTTP API and an MCP endpoint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Precedence: defaults -> config files -> env -> CLI flags.
		if len(configFiles) == 0 {
			if _, err := os.Stat("paperdb.toml"); err == nil {
				configFiles = append(configFiles, "paperdb.toml")
			}
		}

		var err error
		config, err = common.LoadFromFiles(configFiles...)
		if err != nil {
			return err
		}
		logger = common.InitLogger(config)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil,
		"Configuration file (repeatable, later files override earlier ones)")

	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
