package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/interfaces"
	"github.com/ternarybob/paperdb/internal/models"
)

var _ interfaces.PaperStore = (*Reader)(nil)

// Column weights for bm25: title, meta, summary, body, translated. Title
// and summary matches outrank body and translated text.
const rankExpr = "bm25(papers_fts, 0.0, 5.0, 2.0, 3.0, 1.0, 1.0)"

// SearchHit is one ranked row from the full-text index.
type SearchHit struct {
	Paper   models.Paper
	Snippet string
}

// Reader answers all serve-time queries over an immutable snapshot.
type Reader struct {
	db     *SnapshotDB
	logger arbor.ILogger

	schemaVersion int
	buildID       string
	hasDOICol     bool
	hasBibtexTbl  bool
}

// NewReader wraps a read-only snapshot connection and detects legacy
// schemas so older snapshots still serve (nullable doi, has_bibtex=false).
func NewReader(logger arbor.ILogger, db *SnapshotDB) (*Reader, error) {
	ctx := context.Background()

	version, err := detectSchemaVersion(ctx, db.DB())
	if err != nil {
		return nil, fmt.Errorf("detecting schema version: %w", err)
	}
	buildID, err := metaValue(ctx, db.DB(), "snapshot_build_id")
	if err != nil {
		return nil, fmt.Errorf("reading build id: %w", err)
	}
	hasDOI, err := hasColumn(ctx, db.DB(), "papers", "doi")
	if err != nil {
		return nil, err
	}
	hasBibtex, err := hasColumn(ctx, db.DB(), "papers", "has_bibtex")
	if err != nil {
		return nil, err
	}

	r := &Reader{
		db:            db,
		logger:        logger,
		schemaVersion: version,
		buildID:       buildID,
		hasDOICol:     hasDOI,
		hasBibtexTbl:  hasBibtex,
	}
	if version < SchemaVersion {
		logger.Warn().
			Int("schema_version", version).
			Msg("Serving legacy snapshot; doi and bibtex fields degrade to null")
	}
	return r, nil
}

// BuildID returns the snapshot_build_id recorded at build time.
func (r *Reader) BuildID() string {
	return r.buildID
}

// SchemaVersion returns the stored schema version (1 for legacy snapshots).
func (r *Reader) SchemaVersion() int {
	return r.schemaVersion
}

// Close releases the underlying connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

func (r *Reader) paperColumns() string {
	doi := "p.doi"
	if !r.hasDOICol {
		doi = "NULL"
	}
	hasBibtex := "p.has_bibtex"
	if !r.hasBibtexTbl {
		hasBibtex = "0"
	}
	return `p.paper_id, p.paper_key, p.paper_key_type, p.title, p.authors,
		p.year, p.month, p.venue, ` + doi + `, p.keywords, p.institutions,
		p.tags, p.output_language, p.provider, p.model, p.prompt_template,
		p.preferred_summary_template, p.available_summary_templates,
		p.source_content_hash, p.pdf_content_hash, p.translations, ` + hasBibtex
}

func scanPaper(scan func(...interface{}) error) (*models.Paper, error) {
	var p models.Paper
	var keyType string
	var authors, keywords, institutions, tags, templates, translations sql.NullString
	var venue, doi, outputLang, provider, model, promptTemplate, preferred sql.NullString
	var sourceHash, pdfHash sql.NullString
	var hasBibtex int

	err := scan(
		&p.PaperID, &p.PaperKey, &keyType, &p.Title, &authors,
		&p.Year, &p.Month, &venue, &doi, &keywords, &institutions,
		&tags, &outputLang, &provider, &model, &promptTemplate,
		&preferred, &templates, &sourceHash, &pdfHash, &translations, &hasBibtex)
	if err != nil {
		return nil, err
	}

	p.PaperKeyType = models.PaperKeyType(keyType)
	p.Venue = venue.String
	p.DOI = doi.String
	p.OutputLanguage = outputLang.String
	p.Provider = provider.String
	p.Model = model.String
	p.PromptTemplate = promptTemplate.String
	p.PreferredSummaryTemplate = preferred.String
	p.SourceContentHash = sourceHash.String
	p.PDFContentHash = pdfHash.String
	p.HasBibtex = hasBibtex != 0

	unmarshalList(authors, &p.Authors)
	unmarshalList(keywords, &p.Keywords)
	unmarshalList(institutions, &p.Institutions)
	unmarshalList(tags, &p.Tags)
	unmarshalList(templates, &p.AvailableSummaryTemplates)
	if translations.Valid {
		_ = json.Unmarshal([]byte(translations.String), &p.TranslationHashes)
	}
	return &p, nil
}

func unmarshalList(src sql.NullString, dst *[]string) {
	if src.Valid {
		_ = json.Unmarshal([]byte(src.String), dst)
	}
}

// GetPaper returns a single paper row by id.
func (r *Reader) GetPaper(ctx context.Context, paperID string) (*models.Paper, error) {
	row := r.db.DB().QueryRowContext(ctx,
		`SELECT `+r.paperColumns()+` FROM papers p WHERE p.paper_id = ?`, paperID)
	p, err := scanPaper(row.Scan)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaperNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading paper %s: %w", paperID, err)
	}
	return p, nil
}

// GetBibtex returns the persisted BibTeX payload for a paper. The doi field
// carries the paper row's canonical doi, not a reparse of the entry.
func (r *Reader) GetBibtex(ctx context.Context, paperID string) (*models.BibtexEntry, error) {
	if r.schemaVersion < 2 {
		if _, err := r.GetPaper(ctx, paperID); err != nil {
			return nil, err
		}
		return nil, models.ErrBibtexNotFound
	}

	doiCol := "p.doi"
	if !r.hasDOICol {
		doiCol = "NULL"
	}
	var e models.BibtexEntry
	var doi sql.NullString
	err := r.db.DB().QueryRowContext(ctx, `
		SELECT b.paper_id, b.bibtex_key, b.entry_type, b.bibtex_raw, `+doiCol+`
		FROM bibtex_entries b
		JOIN papers p ON p.paper_id = b.paper_id
		WHERE b.paper_id = ?`, paperID).
		Scan(&e.PaperID, &e.BibtexKey, &e.EntryType, &e.Raw, &doi)
	if err == sql.ErrNoRows {
		if _, perr := r.GetPaper(ctx, paperID); perr != nil {
			return nil, perr
		}
		return nil, models.ErrBibtexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading bibtex for %s: %w", paperID, err)
	}
	e.DOI = doi.String
	return &e, nil
}

// Filters narrows a search or listing by field qualifiers. Facet values are
// matched against their normalized form; year bounds are inclusive.
type Filters struct {
	Authors  []string
	Tags     []string
	Venues   []string
	YearFrom string
	YearTo   string
	Month    string
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return len(f.Authors) == 0 && len(f.Tags) == 0 && len(f.Venues) == 0 &&
		f.YearFrom == "" && f.YearTo == "" && f.Month == ""
}

// filterSQL renders the filter conditions against the aliased papers table.
func (f Filters) filterSQL() (string, []interface{}) {
	var conds []string
	var args []interface{}

	// Substring match on the normalized value, so author:smith finds
	// "alice smith".
	facetCond := func(kind models.FacetKind, values []string) {
		for _, v := range values {
			conds = append(conds, `EXISTS (
				SELECT 1 FROM paper_facets pf
				JOIN facet_values fv ON fv.kind = pf.kind AND fv.id = pf.facet_id
				WHERE pf.paper_id = p.paper_id AND pf.kind = ? AND fv.value LIKE '%' || ? || '%')`)
			args = append(args, string(kind), v)
		}
	}
	facetCond(models.FacetAuthor, f.Authors)
	facetCond(models.FacetTag, f.Tags)
	facetCond(models.FacetVenue, f.Venues)

	if f.YearFrom != "" {
		conds = append(conds, "p.year >= ?")
		args = append(args, f.YearFrom)
	}
	if f.YearTo != "" {
		conds = append(conds, "p.year <= ?")
		args = append(args, f.YearTo)
	}
	if f.Month != "" {
		conds = append(conds, "p.month = ?")
		args = append(args, f.Month)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(conds, " AND "), args
}

func orderClause(sort models.SortOrder, hasRank bool) string {
	switch sort {
	case models.SortYearDesc:
		return "p.year DESC, p.title ASC"
	case models.SortYearAsc:
		return "p.year ASC, p.title ASC"
	case models.SortTitleAsc:
		return "p.title ASC"
	case models.SortTitleDesc:
		return "p.title DESC"
	case models.SortVenueAsc:
		return "p.venue ASC, p.title ASC"
	case models.SortVenueDesc:
		return "p.venue DESC, p.title ASC"
	}
	if hasRank {
		return rankExpr + ", p.title ASC"
	}
	return "p.title ASC"
}

// Search runs an FTS MATCH over the full corpus with ranked ordering and
// marker-delimited snippets. The match string is already rewritten
// (CJK-spaced phrases, field filters resolved) by the query engine.
func (r *Reader) Search(ctx context.Context, match string, filters Filters, sort models.SortOrder, limit, offset int) ([]SearchHit, int, error) {
	cond, condArgs := filters.filterSQL()

	var total int
	countArgs := append([]interface{}{match}, condArgs...)
	err := r.db.DB().QueryRowContext(ctx, `
		SELECT count(*) FROM papers_fts
		JOIN papers p ON p.paper_id = papers_fts.paper_id
		WHERE papers_fts MATCH ?`+cond, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", models.ErrInvalidQuery, err)
	}

	query := `
		SELECT ` + r.paperColumns() + `,
			snippet(papers_fts, -1, '[[[', ']]]', '...', 40)
		FROM papers_fts
		JOIN papers p ON p.paper_id = papers_fts.paper_id
		WHERE papers_fts MATCH ?` + cond + `
		ORDER BY ` + orderClause(sort, true) + `
		LIMIT ? OFFSET ?`
	args := append(append([]interface{}{match}, condArgs...), limit, offset)
	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		var snippet sql.NullString
		p, err := scanPaperWithExtra(rows, &snippet)
		if err != nil {
			return nil, 0, err
		}
		hit.Paper = *p
		hit.Snippet = snippet.String
		hits = append(hits, hit)
	}
	return hits, total, rows.Err()
}

// scanPaperWithExtra scans the paper columns plus trailing extras.
func scanPaperWithExtra(rows *sql.Rows, extra ...interface{}) (*models.Paper, error) {
	return scanPaper(func(dest ...interface{}) error {
		return rows.Scan(append(dest, extra...)...)
	})
}

// SearchTitleVenue queries the trigram index; the query engine falls back
// to it when the corpus search finds nothing, for typo tolerance on the
// short fields.
func (r *Reader) SearchTitleVenue(ctx context.Context, match string, sort models.SortOrder, limit, offset int) ([]SearchHit, int, error) {
	var total int
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM papers_fts_small WHERE papers_fts_small MATCH ?`, match).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", models.ErrInvalidQuery, err)
	}

	order := orderClause(sort, false)
	if sort == models.SortRelevance || sort == "" {
		order = "bm25(papers_fts_small, 0.0, 2.0, 1.0), p.title ASC"
	}
	query := `
		SELECT ` + r.paperColumns() + `
		FROM papers_fts_small
		JOIN papers p ON p.paper_id = papers_fts_small.paper_id
		WHERE papers_fts_small MATCH ?
		ORDER BY ` + order + `
		LIMIT ? OFFSET ?`
	rows, err := r.db.DB().QueryContext(ctx, query, match, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("trigram search query: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		p, err := scanPaperWithExtra(rows)
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, SearchHit{Paper: *p})
	}
	return hits, total, rows.Err()
}

// List returns papers without a text query, under the requested sort.
func (r *Reader) List(ctx context.Context, filters Filters, sort models.SortOrder, limit, offset int) ([]models.Paper, int, error) {
	cond, condArgs := filters.filterSQL()

	var total int
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM papers p WHERE 1=1`+cond, condArgs...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + r.paperColumns() + `
		FROM papers p
		WHERE 1=1` + cond + `
		ORDER BY ` + orderClause(sort, false) + `
		LIMIT ? OFFSET ?`
	args := append(append([]interface{}{}, condArgs...), limit, offset)
	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		p, err := scanPaperWithExtra(rows)
		if err != nil {
			return nil, 0, err
		}
		papers = append(papers, *p)
	}
	return papers, total, rows.Err()
}

// ListFacet returns facet values ordered by count desc then value asc.
func (r *Reader) ListFacet(ctx context.Context, kind models.FacetKind, limit, offset int) ([]models.FacetValue, int, error) {
	var total int
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM facet_values WHERE kind = ?`, string(kind)).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT id, value, paper_count FROM facet_values
		WHERE kind = ?
		ORDER BY paper_count DESC, value ASC
		LIMIT ? OFFSET ?`, string(kind), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var values []models.FacetValue
	for rows.Next() {
		var v models.FacetValue
		if err := rows.Scan(&v.ID, &v.Value, &v.PaperCount); err != nil {
			return nil, 0, err
		}
		values = append(values, v)
	}
	return values, total, rows.Err()
}

// FacetByID resolves one facet value row.
func (r *Reader) FacetByID(ctx context.Context, kind models.FacetKind, id int64) (*models.FacetValue, error) {
	var v models.FacetValue
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT id, value, paper_count FROM facet_values WHERE kind = ? AND id = ?`,
		string(kind), id).Scan(&v.ID, &v.Value, &v.PaperCount)
	if err == sql.ErrNoRows {
		return nil, models.ErrUnknownFacet
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FacetByValue resolves a facet value row by its normalized value.
func (r *Reader) FacetByValue(ctx context.Context, kind models.FacetKind, value string) (*models.FacetValue, error) {
	var v models.FacetValue
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT id, value, paper_count FROM facet_values WHERE kind = ? AND value = ?`,
		string(kind), value).Scan(&v.ID, &v.Value, &v.PaperCount)
	if err == sql.ErrNoRows {
		return nil, models.ErrUnknownFacet
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FacetPapers lists the papers joined to one facet value.
func (r *Reader) FacetPapers(ctx context.Context, kind models.FacetKind, facetID int64, sort models.SortOrder, limit, offset int) ([]models.Paper, int, error) {
	var total int
	err := r.db.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM paper_facets WHERE kind = ? AND facet_id = ?`,
		string(kind), facetID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + r.paperColumns() + `
		FROM paper_facets pf
		JOIN papers p ON p.paper_id = pf.paper_id
		WHERE pf.kind = ? AND pf.facet_id = ?
		ORDER BY ` + orderClause(sort, false) + `
		LIMIT ? OFFSET ?`
	rows, err := r.db.DB().QueryContext(ctx, query, string(kind), facetID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		p, err := scanPaperWithExtra(rows)
		if err != nil {
			return nil, 0, err
		}
		papers = append(papers, *p)
	}
	return papers, total, rows.Err()
}

// FacetRelated returns cross-facet co-occurrence counts for one value from
// the precomputed relationship cache, grouped by the related kind.
func (r *Reader) FacetRelated(ctx context.Context, kind models.FacetKind, facetID int64, perKind int) (map[string][]models.FacetValue, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT rc.b_kind, fv.id, fv.value, rc.paper_count
		FROM relationship_counts rc
		JOIN facet_values fv ON fv.kind = rc.b_kind AND fv.id = rc.b_id
		WHERE rc.a_kind = ? AND rc.a_id = ?
		ORDER BY rc.b_kind ASC, rc.paper_count DESC, fv.value ASC`,
		string(kind), facetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	related := make(map[string][]models.FacetValue)
	for rows.Next() {
		var bKind string
		var v models.FacetValue
		if err := rows.Scan(&bKind, &v.ID, &v.Value, &v.PaperCount); err != nil {
			return nil, err
		}
		if perKind > 0 && len(related[bKind]) >= perKind {
			continue
		}
		related[bKind] = append(related[bKind], v)
	}
	return related, rows.Err()
}

// TotalPapers returns the snapshot paper count.
func (r *Reader) TotalPapers(ctx context.Context) (int, error) {
	var total int
	err := r.db.DB().QueryRowContext(ctx, `SELECT count(*) FROM papers`).Scan(&total)
	return total, err
}

// FacetCardinality returns the distinct value count per facet kind.
func (r *Reader) FacetCardinality(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT kind, count(*) FROM facet_values GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// LookupAlias resolves a historical identity key to its paper_id. Satisfies
// the continuity resolver's view of a previous snapshot.
func (r *Reader) LookupAlias(paperKey string) (string, bool, error) {
	var paperID string
	err := r.db.DB().QueryRow(
		`SELECT paper_id FROM paper_key_aliases WHERE paper_key = ?`, paperKey).Scan(&paperID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return paperID, true, nil
}

// FingerprintFor returns the stored meta fingerprint for a paper, nil when
// none was recorded.
func (r *Reader) FingerprintFor(paperID string) (*models.MetaFingerprint, error) {
	var raw sql.NullString
	err := r.db.DB().QueryRow(
		`SELECT meta_fingerprint FROM papers WHERE paper_id = ?`, paperID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var fp models.MetaFingerprint
	if err := json.Unmarshal([]byte(raw.String), &fp); err != nil {
		return nil, fmt.Errorf("decoding fingerprint for %s: %w", paperID, err)
	}
	return &fp, nil
}
