package models

// AssetStatus marks whether a manifest asset exists in the static tree.
type AssetStatus string

const (
	AssetAvailable AssetStatus = "available"
	AssetMissing   AssetStatus = "missing"
)

// ManifestAsset names one asset a paper uses.
type ManifestAsset struct {
	StaticPath string      `json:"static_path"`
	SHA256     string      `json:"sha256,omitempty"`
	Status     AssetStatus `json:"status"`
	Ext        string      `json:"ext,omitempty"`
	Lang       string      `json:"lang,omitempty"` // translations only
}

// Manifest is the per-paper asset inventory written to
// /manifest/<paper_id>.json.
type Manifest struct {
	PaperID          string          `json:"paper_id"`
	PDF              *ManifestAsset  `json:"pdf,omitempty"`
	SourceMD         *ManifestAsset  `json:"source_md,omitempty"`
	TranslatedMD     []ManifestAsset `json:"translated_md,omitempty"`
	SummaryTemplates []string        `json:"summary_templates"`
	Images           []ManifestAsset `json:"images,omitempty"`
	FolderName       string          `json:"folder_name"`
	FolderNameShort  string          `json:"folder_name_short"`
}

// SummaryDoc is the per-template summary JSON written to the static tree.
type SummaryDoc struct {
	PaperID    string            `json:"paper_id"`
	PaperTitle string            `json:"paper_title"`
	Template   string            `json:"template,omitempty"`
	Summary    string            `json:"summary"` // markdown
	Metadata   map[string]string `json:"metadata,omitempty"`
}
