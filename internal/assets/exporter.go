package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/models"
)

// Static tree layout. Hashed paths are immutable; summary/manifest paths are
// keyed by paper_id and cache-busted with the snapshot build id.
const (
	PDFDir         = "pdf"
	SourceDir      = "md"
	TranslationDir = "md_translate"
	ImageDir       = "images"
	SummaryDir     = "summary"
	ManifestDir    = "manifest"
)

// Exporter writes content-hashed assets into the static tree.
type Exporter struct {
	logger  arbor.ILogger
	rootDir string

	pdfRoots        []string
	mdRoots         []string
	mdTranslateRoots []string
}

// NewExporter creates an exporter rooted at the static export directory.
// Root lists resolve relative input paths.
func NewExporter(logger arbor.ILogger, rootDir string, pdfRoots, mdRoots, mdTranslateRoots []string) *Exporter {
	return &Exporter{
		logger:           logger,
		rootDir:          rootDir,
		pdfRoots:         pdfRoots,
		mdRoots:          mdRoots,
		mdTranslateRoots: mdTranslateRoots,
	}
}

// PaperAssets is the per-paper export result consumed by the snapshot writer.
type PaperAssets struct {
	PDFHash           string
	SourceHash        string
	SourceMarkdown    string // image refs rewritten
	TranslationHashes map[string]string
	TranslationText   map[string]string
	ImageAssets       []models.ManifestAsset
	Issues            []models.BuildIssue
}

// HashFile computes the streamed SHA-256 of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes computes the SHA-256 of in-memory content.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeIfAbsent writes data to path unless a file already exists there.
// Content-hash addressing guarantees an existing file is byte-identical.
func (e *Exporter) writeIfAbsent(relPath string, data []byte) error {
	path := filepath.Join(e.rootDir, relPath)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// copyIfAbsent streams src to the static tree unless present.
func (e *Exporter) copyIfAbsent(relPath, src string) error {
	path := filepath.Join(e.rootDir, relPath)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// resolvePath finds a referenced file under the given roots, or as-is.
func resolvePath(ref string, roots []string) (string, bool) {
	if filepath.IsAbs(ref) {
		if _, err := os.Stat(ref); err == nil {
			return ref, true
		}
	}
	for _, root := range roots {
		candidate := filepath.Join(root, ref)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	if _, err := os.Stat(ref); err == nil {
		return ref, true
	}
	return "", false
}

// ExportPaper hashes and writes every asset a merged record references.
func (e *Exporter) ExportPaper(rec *models.InputRecord, translations map[string]string, images []string) (*PaperAssets, error) {
	result := &PaperAssets{
		TranslationHashes: make(map[string]string),
		TranslationText:   make(map[string]string),
	}

	if rec.PDFPath != "" {
		if src, ok := resolvePath(rec.PDFPath, e.pdfRoots); ok {
			hash, err := HashFile(src)
			if err != nil {
				return nil, err
			}
			if err := e.copyIfAbsent(filepath.Join(PDFDir, hash+".pdf"), src); err != nil {
				return nil, err
			}
			result.PDFHash = hash
		} else {
			result.Issues = append(result.Issues, models.BuildIssue{
				Kind:   models.IssueAssetMissing,
				Detail: fmt.Sprintf("pdf %s not found", rec.PDFPath),
			})
		}
	}

	// Hash referenced images first so markdown can be rewritten to the
	// content-addressed paths. An image shared by source and translation
	// markdown yields one asset.
	imageRefs := make(map[string]models.ManifestAsset) // original ref -> asset
	for _, img := range images {
		if src, ok := resolvePath(img, append(e.mdRoots, e.mdTranslateRoots...)); ok {
			hash, err := HashFile(src)
			if err != nil {
				return nil, err
			}
			ext := strings.TrimPrefix(filepath.Ext(src), ".")
			if ext == "" {
				ext = "png"
			}
			relPath := filepath.Join(ImageDir, hash+"."+ext)
			if err := e.copyIfAbsent(relPath, src); err != nil {
				return nil, err
			}
			asset := models.ManifestAsset{
				StaticPath: "/" + filepath.ToSlash(relPath),
				SHA256:     hash,
				Status:     models.AssetAvailable,
				Ext:        ext,
			}
			imageRefs[img] = asset
			result.ImageAssets = append(result.ImageAssets, asset)
		} else {
			result.ImageAssets = append(result.ImageAssets, models.ManifestAsset{
				StaticPath: img,
				Status:     models.AssetMissing,
			})
			result.Issues = append(result.Issues, models.BuildIssue{
				Kind:   models.IssueAssetMissing,
				Detail: fmt.Sprintf("image %s not found", img),
			})
		}
	}

	if rec.SourcePath != "" {
		if src, ok := resolvePath(rec.SourcePath, e.mdRoots); ok {
			raw, err := os.ReadFile(src)
			if err != nil {
				return nil, err
			}
			rewritten := RewriteImageRefs(string(raw), imageRefs)
			hash := HashBytes([]byte(rewritten))
			if err := e.writeIfAbsent(filepath.Join(SourceDir, hash+".md"), []byte(rewritten)); err != nil {
				return nil, err
			}
			result.SourceHash = hash
			result.SourceMarkdown = rewritten
		} else {
			result.Issues = append(result.Issues, models.BuildIssue{
				Kind:   models.IssueAssetMissing,
				Detail: fmt.Sprintf("source markdown %s not found", rec.SourcePath),
			})
		}
	}

	for lang, ref := range translations {
		src, ok := resolvePath(ref, e.mdTranslateRoots)
		if !ok {
			result.Issues = append(result.Issues, models.BuildIssue{
				Kind:   models.IssueAssetMissing,
				Detail: fmt.Sprintf("translation %s (%s) not found", ref, lang),
			})
			continue
		}
		raw, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		rewritten := RewriteImageRefs(string(raw), imageRefs)
		hash := HashBytes([]byte(rewritten))
		if err := e.writeIfAbsent(filepath.Join(TranslationDir, lang, hash+".md"), []byte(rewritten)); err != nil {
			return nil, err
		}
		result.TranslationHashes[lang] = hash
		result.TranslationText[lang] = rewritten
	}

	return result, nil
}
