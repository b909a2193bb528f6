package assets

import "strings"

// URLResolver turns canonical static-tree paths into absolute URLs.
// Content-hashed paths are immutable and carry no cache buster;
// paper_id-addressed objects (summary, manifest) get ?v=<build id>.
type URLResolver struct {
	baseURL string
	buildID string
}

// NewURLResolver creates a resolver for one snapshot.
func NewURLResolver(baseURL, buildID string) *URLResolver {
	return &URLResolver{baseURL: strings.TrimRight(baseURL, "/"), buildID: buildID}
}

func (r *URLResolver) join(path string) string {
	return r.baseURL + path
}

func (r *URLResolver) busted(path string) string {
	if r.buildID == "" {
		return r.join(path)
	}
	return r.join(path) + "?v=" + r.buildID
}

// PDFURL returns the immutable PDF URL for a content hash.
func (r *URLResolver) PDFURL(hash string) string {
	return r.join("/" + PDFDir + "/" + hash + ".pdf")
}

// SourceURL returns the immutable source markdown URL.
func (r *URLResolver) SourceURL(hash string) string {
	return r.join("/" + SourceDir + "/" + hash + ".md")
}

// TranslationURL returns the immutable translated markdown URL.
func (r *URLResolver) TranslationURL(lang, hash string) string {
	return r.join("/" + TranslationDir + "/" + lang + "/" + hash + ".md")
}

// ImageURL returns the immutable image URL.
func (r *URLResolver) ImageURL(hash, ext string) string {
	return r.join("/" + ImageDir + "/" + hash + "." + ext)
}

// SummaryURL returns the build-dependent summary JSON URL for a template.
// An empty template addresses the singular /summary/<paper_id>.json alias.
func (r *URLResolver) SummaryURL(paperID, template string) string {
	if template == "" {
		return r.busted("/" + SummaryDir + "/" + paperID + ".json")
	}
	return r.busted("/" + SummaryDir + "/" + paperID + "/" + template + ".json")
}

// ManifestURL returns the build-dependent manifest URL.
func (r *URLResolver) ManifestURL(paperID string) string {
	return r.busted("/" + ManifestDir + "/" + paperID + ".json")
}
