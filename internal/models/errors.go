package models

import "errors"

// Sentinel errors for the read path. Handlers map these onto stable API
// error codes; the MCP surface attaches contextual identifiers.
var (
	ErrPaperNotFound        = errors.New("paper_not_found")
	ErrBibtexNotFound       = errors.New("bibtex_not_found")
	ErrTemplateNotAvailable = errors.New("template_not_available")
	ErrAssetMissing         = errors.New("asset_missing")
	ErrAssetFetchFailed     = errors.New("asset_fetch_failed")
	ErrAssetFetchTimeout    = errors.New("asset_fetch_timeout")

	ErrInvalidQuery     = errors.New("invalid_query")
	ErrQueryTooLong     = errors.New("query_too_long")
	ErrPageSizeTooLarge = errors.New("page_size_too_large")
	ErrOffsetTooLarge   = errors.New("offset_too_large")
	ErrUnknownFacet     = errors.New("unknown_facet")
)

// BuildIssueKind classifies non-fatal diagnostics collected during a build.
type BuildIssueKind string

const (
	IssueIdentityConflict         BuildIssueKind = "identity_conflict"
	IssueMetaFingerprintDivergence BuildIssueKind = "meta_fingerprint_divergence"
	IssueTemplateTagMissing       BuildIssueKind = "template_tag_missing"
	IssueTitleCollision           BuildIssueKind = "title_collision_below_threshold"
	IssueAssetMissing             BuildIssueKind = "asset_missing"
	IssueInheritMismatch          BuildIssueKind = "previous_snapshot_mismatch"
)

// BuildIssue is one aggregated diagnostic entry.
type BuildIssue struct {
	Kind    BuildIssueKind `json:"kind"`
	PaperID string         `json:"paper_id,omitempty"`
	Detail  string         `json:"detail"`
}
