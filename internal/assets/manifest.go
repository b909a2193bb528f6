package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/textutil"
)

const maxFolderNameLen = 120

var folderNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_",
	"?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFilename makes a string safe as a folder or file name.
func SanitizeFilename(s string) string {
	s = folderNameReplacer.Replace(s)
	return textutil.CollapseWhitespace(s)
}

// FolderName builds the downloadable folder name with the fallback chain
// {first_author}_{year}_{title}__{paper_id} -> {first_author}_{year}__{paper_id}
// -> {paper_id}, each step bounded by the max length.
func FolderName(paper *models.Paper) string {
	firstAuthor := ""
	if len(paper.Authors) > 0 {
		firstAuthor = SanitizeFilename(paper.Authors[0])
	}
	year := paper.Year

	full := fmt.Sprintf("%s_%s_%s__%s", firstAuthor, year, SanitizeFilename(paper.Title), paper.PaperID)
	if firstAuthor != "" && len(full) <= maxFolderNameLen {
		return full
	}
	short := FolderNameShort(paper)
	if short != paper.PaperID {
		return short
	}
	return paper.PaperID
}

// FolderNameShort is the ZIP-friendly shorter form.
func FolderNameShort(paper *models.Paper) string {
	firstAuthor := ""
	if len(paper.Authors) > 0 {
		firstAuthor = SanitizeFilename(paper.Authors[0])
	}
	if firstAuthor == "" {
		return paper.PaperID
	}
	short := fmt.Sprintf("%s_%s__%s", firstAuthor, paper.Year, paper.PaperID)
	if len(short) > maxFolderNameLen {
		return paper.PaperID
	}
	return short
}

// BuildManifest assembles the per-paper manifest from export results.
func BuildManifest(paper *models.Paper, exported *PaperAssets) *models.Manifest {
	m := &models.Manifest{
		PaperID:          paper.PaperID,
		SummaryTemplates: paper.AvailableSummaryTemplates,
		Images:           exported.ImageAssets,
		FolderName:       FolderName(paper),
		FolderNameShort:  FolderNameShort(paper),
	}

	if exported.PDFHash != "" {
		m.PDF = &models.ManifestAsset{
			StaticPath: "/" + PDFDir + "/" + exported.PDFHash + ".pdf",
			SHA256:     exported.PDFHash,
			Status:     models.AssetAvailable,
			Ext:        "pdf",
		}
	}
	if exported.SourceHash != "" {
		m.SourceMD = &models.ManifestAsset{
			StaticPath: "/" + SourceDir + "/" + exported.SourceHash + ".md",
			SHA256:     exported.SourceHash,
			Status:     models.AssetAvailable,
			Ext:        "md",
		}
	}
	for lang, hash := range exported.TranslationHashes {
		m.TranslatedMD = append(m.TranslatedMD, models.ManifestAsset{
			StaticPath: "/" + TranslationDir + "/" + lang + "/" + hash + ".md",
			SHA256:     hash,
			Status:     models.AssetAvailable,
			Ext:        "md",
			Lang:       lang,
		})
	}
	return m
}

// WriteSummaries emits one summary JSON per template; when exactly one
// template exists the singular /summary/<paper_id>.json alias is written too.
func (e *Exporter) WriteSummaries(paper *models.Paper, summaries map[string]string, metadata map[string]string) error {
	for template, markdown := range summaries {
		doc := &models.SummaryDoc{
			PaperID:    paper.PaperID,
			PaperTitle: paper.Title,
			Template:   template,
			Summary:    markdown,
			Metadata:   metadata,
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling summary %s/%s: %w", paper.PaperID, template, err)
		}
		if err := e.writeAlways(filepath.Join(SummaryDir, paper.PaperID, template+".json"), data); err != nil {
			return err
		}
		if len(summaries) == 1 {
			if err := e.writeAlways(filepath.Join(SummaryDir, paper.PaperID+".json"), data); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteManifest emits /manifest/<paper_id>.json.
func (e *Exporter) WriteManifest(manifest *models.Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest %s: %w", manifest.PaperID, err)
	}
	return e.writeAlways(filepath.Join(ManifestDir, manifest.PaperID+".json"), data)
}

// writeAlways overwrites paper_id-addressed objects; they are build-dependent
// and cache-busted by URL, not by content hash.
func (e *Exporter) writeAlways(relPath string, data []byte) error {
	path := filepath.Join(e.rootDir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
