package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/textutil"
)

// Corpus is the per-paper search text, already plain (markdown stripped,
// tables removed) and CJK-spaced.
type Corpus struct {
	Title      string
	Meta       string
	Summary    string
	Body       string
	Translated string
}

// PaperSnapshot is one paper as handed to the writer: the normalized row,
// its search corpus, optional BibTeX, and every identity key it answers to.
type PaperSnapshot struct {
	Paper   *models.Paper
	Bibtex  *models.BibtexEntry
	Corpus  Corpus
	Aliases []string
}

// defaultFTSBatch is the FTS rows-per-insert default when the config does
// not set build.batch_size.
const defaultFTSBatch = 200

// Writer populates a snapshot database in a single transaction.
type Writer struct {
	db        *SnapshotDB
	logger    arbor.ILogger
	batchSize int
}

// NewWriter wraps a writable snapshot connection.
func NewWriter(logger arbor.ILogger, db *SnapshotDB) *Writer {
	return &Writer{db: db, logger: logger, batchSize: defaultFTSBatch}
}

// WithBatchSize sets the FTS rows-per-insert batch size.
func (w *Writer) WithBatchSize(n int) *Writer {
	if n > 0 {
		w.batchSize = n
	}
	return w
}

// facetKey is one (kind, id) assignment used while building the
// relationship cache.
type facetKey struct {
	kind models.FacetKind
	id   int64
}

// WriteSnapshot inserts every paper, facet, alias, FTS row, and the
// relationship cache, then records build metadata. Returns the new
// snapshot_build_id.
func (w *Writer) WriteSnapshot(ctx context.Context, papers []*PaperSnapshot) (string, error) {
	buildID := uuid.NewString()

	tx, err := w.db.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if err := w.insertPapers(ctx, tx, papers); err != nil {
		return "", err
	}
	paperFacets, err := w.insertFacets(ctx, tx, papers)
	if err != nil {
		return "", err
	}
	if err := w.insertRelationshipCounts(ctx, tx, paperFacets); err != nil {
		return "", err
	}
	if err := w.insertFTS(ctx, tx, papers); err != nil {
		return "", err
	}
	if err := w.insertBuildMeta(ctx, tx, buildID); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}

	w.logger.Info().
		Str("build_id", buildID).
		Int("papers", len(papers)).
		Msg("Snapshot written")
	return buildID, nil
}

func (w *Writer) insertPapers(ctx context.Context, tx *sql.Tx, papers []*PaperSnapshot) error {
	paperStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO papers (
			paper_id, paper_key, paper_key_type, title, authors, year, month,
			venue, doi, keywords, institutions, tags, output_language, provider,
			model, prompt_template, preferred_summary_template,
			available_summary_templates, source_content_hash, pdf_content_hash,
			translations, meta_fingerprint, has_bibtex
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer paperStmt.Close()

	aliasStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO paper_key_aliases (paper_key, paper_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer aliasStmt.Close()

	bibtexStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bibtex_entries (paper_id, bibtex_key, entry_type, doi, bibtex_raw)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer bibtexStmt.Close()

	for _, ps := range papers {
		p := ps.Paper
		var fingerprint sql.NullString
		if p.MetaFingerprint != nil {
			data, err := json.Marshal(p.MetaFingerprint)
			if err != nil {
				return fmt.Errorf("marshaling fingerprint for %s: %w", p.PaperID, err)
			}
			fingerprint = sql.NullString{String: string(data), Valid: true}
		}
		_, err := paperStmt.ExecContext(ctx,
			p.PaperID, p.PaperKey, string(p.PaperKeyType), p.Title,
			marshalJSON(p.Authors), p.Year, p.Month,
			p.Venue, nullable(p.DOI),
			marshalJSON(p.Keywords), marshalJSON(p.Institutions), marshalJSON(p.Tags),
			p.OutputLanguage, p.Provider, p.Model, p.PromptTemplate,
			p.PreferredSummaryTemplate, marshalJSON(p.AvailableSummaryTemplates),
			p.SourceContentHash, p.PDFContentHash,
			marshalJSON(p.TranslationHashes), fingerprint,
			boolInt(p.HasBibtex))
		if err != nil {
			return fmt.Errorf("inserting paper %s: %w", p.PaperID, err)
		}

		for _, key := range ps.Aliases {
			if _, err := aliasStmt.ExecContext(ctx, key, p.PaperID); err != nil {
				return fmt.Errorf("inserting alias %s: %w", key, err)
			}
		}
		if _, err := aliasStmt.ExecContext(ctx, p.PaperKey, p.PaperID); err != nil {
			return fmt.Errorf("inserting primary alias %s: %w", p.PaperKey, err)
		}

		if ps.Bibtex != nil {
			_, err := bibtexStmt.ExecContext(ctx, p.PaperID,
				ps.Bibtex.BibtexKey, ps.Bibtex.EntryType,
				nullable(ps.Bibtex.DOI), ps.Bibtex.Raw)
			if err != nil {
				return fmt.Errorf("inserting bibtex for %s: %w", p.PaperID, err)
			}
		}
	}
	return nil
}

// insertFacets deduplicates facet values per kind, assigns numeric ids by
// normalized-value sort order, and writes the value and join rows. Returns
// each paper's facet assignments for the relationship cache pass.
func (w *Writer) insertFacets(ctx context.Context, tx *sql.Tx, papers []*PaperSnapshot) (map[string][]facetKey, error) {
	type valuePapers struct {
		papers map[string]struct{}
	}
	byKind := make(map[models.FacetKind]map[string]*valuePapers)
	for _, kind := range models.AllFacetKinds {
		byKind[kind] = make(map[string]*valuePapers)
	}

	for _, ps := range papers {
		for _, kind := range models.AllFacetKinds {
			for _, raw := range paperFacetValues(ps.Paper, kind) {
				value := textutil.NormalizeValue(raw)
				if value == "" {
					continue
				}
				vp := byKind[kind][value]
				if vp == nil {
					vp = &valuePapers{papers: make(map[string]struct{})}
					byKind[kind][value] = vp
				}
				vp.papers[ps.Paper.PaperID] = struct{}{}
			}
		}
	}

	valueStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facet_values (kind, id, value, paper_count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer valueStmt.Close()

	joinStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO paper_facets (paper_id, kind, facet_id) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer joinStmt.Close()

	paperFacets := make(map[string][]facetKey)
	for _, kind := range models.AllFacetKinds {
		values := make([]string, 0, len(byKind[kind]))
		for v := range byKind[kind] {
			values = append(values, v)
		}
		sort.Strings(values)

		for i, value := range values {
			id := int64(i + 1)
			vp := byKind[kind][value]
			if _, err := valueStmt.ExecContext(ctx, string(kind), id, value, len(vp.papers)); err != nil {
				return nil, fmt.Errorf("inserting facet %s=%q: %w", kind, value, err)
			}
			for paperID := range vp.papers {
				if _, err := joinStmt.ExecContext(ctx, paperID, string(kind), id); err != nil {
					return nil, fmt.Errorf("joining facet %s=%q to %s: %w", kind, value, paperID, err)
				}
				paperFacets[paperID] = append(paperFacets[paperID], facetKey{kind: kind, id: id})
			}
		}
	}
	return paperFacets, nil
}

// insertRelationshipCounts computes cross-facet co-occurrence in one pass
// over the finalized assignments. Self-links are skipped; same-kind pairs
// between distinct values are kept.
func (w *Writer) insertRelationshipCounts(ctx context.Context, tx *sql.Tx, paperFacets map[string][]facetKey) error {
	counts := make(map[[2]facetKey]int)
	for _, facets := range paperFacets {
		for _, a := range facets {
			for _, b := range facets {
				if a == b {
					continue
				}
				counts[[2]facetKey{a, b}]++
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO relationship_counts (a_kind, a_id, b_kind, b_id, paper_count)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for pair, count := range counts {
		a, b := pair[0], pair[1]
		if _, err := stmt.ExecContext(ctx, string(a.kind), a.id, string(b.kind), b.id, count); err != nil {
			return fmt.Errorf("inserting relationship count: %w", err)
		}
	}
	return nil
}

// insertFTS indexes papers in multi-row batches of batchSize.
func (w *Writer) insertFTS(ctx context.Context, tx *sql.Tx, papers []*PaperSnapshot) error {
	for start := 0; start < len(papers); start += w.batchSize {
		end := min(start+w.batchSize, len(papers))
		if err := w.insertFTSBatch(ctx, tx, papers[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) insertFTSBatch(ctx context.Context, tx *sql.Tx, papers []*PaperSnapshot) error {
	fullRows := make([]string, 0, len(papers))
	fullArgs := make([]interface{}, 0, len(papers)*6)
	smallRows := make([]string, 0, len(papers))
	smallArgs := make([]interface{}, 0, len(papers)*3)

	for _, ps := range papers {
		c := ps.Corpus
		fullRows = append(fullRows, "(?, ?, ?, ?, ?, ?)")
		fullArgs = append(fullArgs, ps.Paper.PaperID, c.Title, c.Meta, c.Summary, c.Body, c.Translated)
		smallRows = append(smallRows, "(?, ?, ?)")
		smallArgs = append(smallArgs, ps.Paper.PaperID, ps.Paper.Title, ps.Paper.Venue)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO papers_fts (paper_id, title, meta, summary, body, translated)
		VALUES `+strings.Join(fullRows, ", "), fullArgs...)
	if err != nil {
		return fmt.Errorf("indexing papers %s..%s: %w",
			papers[0].Paper.PaperID, papers[len(papers)-1].Paper.PaperID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers_fts_small (paper_id, title, venue) VALUES `+strings.Join(smallRows, ", "),
		smallArgs...)
	if err != nil {
		return fmt.Errorf("trigram-indexing papers %s..%s: %w",
			papers[0].Paper.PaperID, papers[len(papers)-1].Paper.PaperID, err)
	}
	return nil
}

func (w *Writer) insertBuildMeta(ctx context.Context, tx *sql.Tx, buildID string) error {
	meta := map[string]string{
		"snapshot_build_id": buildID,
		"created_at":        time.Now().UTC().Format(time.RFC3339),
		"schema_version":    strconv.Itoa(SchemaVersion),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO build_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("writing build meta %s: %w", key, err)
		}
	}
	return nil
}

// paperFacetValues extracts the raw values a paper contributes to a facet.
func paperFacetValues(p *models.Paper, kind models.FacetKind) []string {
	switch kind {
	case models.FacetAuthor:
		return p.Authors
	case models.FacetInstitution:
		return p.Institutions
	case models.FacetVenue:
		return single(p.Venue)
	case models.FacetKeyword:
		return p.Keywords
	case models.FacetTag:
		return p.Tags
	case models.FacetYear:
		return single(p.Year)
	case models.FacetMonth:
		return single(p.Month)
	case models.FacetSummaryTemplate:
		return p.AvailableSummaryTemplates
	case models.FacetOutputLanguage:
		return single(p.OutputLanguage)
	case models.FacetProvider:
		return single(p.Provider)
	case models.FacetModel:
		return single(p.Model)
	case models.FacetPromptTemplate:
		return single(p.PromptTemplate)
	case models.FacetTranslationLang:
		return p.TranslationLangs()
	}
	return nil
}

func single(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
