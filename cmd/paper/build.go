package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/paperdb/internal/snapshot"
)

var buildFlags struct {
	inputs           []string
	bibtex           string
	pdfRoots         []string
	mdRoots          []string
	mdTranslateRoots []string
	previousDB       string
	outputDB         string
	staticExportDir  string
	staticBaseURL    string
	staticMode       string
	workers          int
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a snapshot database from extraction inputs",
	Long: `Reads extraction input files, resolves paper identity (optionally
carrying paper_ids over from a previous snapshot), exports content-hashed
static assets, and writes a new snapshot database. A failed build leaves no
partial output.`,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringArrayVar(&buildFlags.inputs, "input", nil, "Input JSON file (repeatable, order matters for merging)")
	f.StringVar(&buildFlags.bibtex, "bibtex", "", "BibTeX file for metadata enrichment")
	f.StringArrayVar(&buildFlags.pdfRoots, "pdf-root", nil, "Directory searched for referenced PDFs (repeatable)")
	f.StringArrayVar(&buildFlags.mdRoots, "md-root", nil, "Directory searched for source markdown (repeatable)")
	f.StringArrayVar(&buildFlags.mdTranslateRoots, "md-translated-root", nil, "Directory searched for translated markdown (repeatable)")
	f.StringVar(&buildFlags.previousDB, "previous-snapshot-db", "", "Previous snapshot for paper_id continuity and field inheritance")
	f.StringVar(&buildFlags.outputDB, "output-db", "", "Output snapshot path (overrides config)")
	f.StringVar(&buildFlags.staticExportDir, "static-export-dir", "", "Static asset tree root (overrides config)")
	f.StringVar(&buildFlags.staticBaseURL, "static-base-url", "", "Base URL for asset links (overrides config)")
	f.StringVar(&buildFlags.staticMode, "static-mode", "", `"dev" or "prod"; prod rejects inputs without a template_tag`)
	f.IntVar(&buildFlags.workers, "workers", 0, "Asset export concurrency (overrides config)")
	buildCmd.MarkFlagRequired("input")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildFlags.staticBaseURL != "" {
		config.Static.BaseURL = buildFlags.staticBaseURL
	}
	if buildFlags.staticMode != "" {
		config.Static.Mode = buildFlags.staticMode
	}

	outputDB := buildFlags.outputDB
	if outputDB == "" {
		outputDB = config.Build.OutputDB
	}
	if outputDB == "" {
		return fmt.Errorf("no output path: set --output-db or build.output_db")
	}
	exportDir := buildFlags.staticExportDir
	if exportDir == "" {
		exportDir = config.Static.ExportDir
	}
	if exportDir == "" {
		return fmt.Errorf("no static export dir: set --static-export-dir or static.export_dir")
	}
	workers := buildFlags.workers
	if workers == 0 {
		workers = config.Build.Workers
	}

	builder := snapshot.NewBuilder(logger, snapshot.Options{
		Inputs:             buildFlags.inputs,
		BibtexPath:         buildFlags.bibtex,
		PDFRoots:           buildFlags.pdfRoots,
		MDRoots:            buildFlags.mdRoots,
		MDTranslateRoots:   buildFlags.mdTranslateRoots,
		PreviousSnapshotDB: buildFlags.previousDB,
		OutputDB:           outputDB,
		StaticExportDir:    exportDir,
		Workers:            workers,
		BatchSize:          config.Build.BatchSize,
		RejectMissingTag:   config.Static.Mode == "prod",
	})

	result, err := builder.Run(cmd.Context())
	if err != nil {
		return err
	}
	snapshot.WriteReport(os.Stdout, result)
	return nil
}
