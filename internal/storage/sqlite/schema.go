package sqlite

import (
	"context"
	"database/sql"
	"strconv"
)

// SchemaVersion is the current snapshot schema. Version 1 snapshots predate
// the doi column and the bibtex_entries table; readers detect them and
// degrade (nullable doi, has_bibtex=false).
const SchemaVersion = 2

const schemaSQL = `
-- One row per paper. Multi-valued fields are stored as JSON arrays; the
-- relational view of them lives in the facet tables.
CREATE TABLE IF NOT EXISTS papers (
	paper_id TEXT PRIMARY KEY,
	paper_key TEXT NOT NULL,
	paper_key_type TEXT NOT NULL,
	title TEXT NOT NULL,
	authors TEXT NOT NULL,
	year TEXT NOT NULL,
	month TEXT NOT NULL,
	venue TEXT,
	doi TEXT,
	keywords TEXT,
	institutions TEXT,
	tags TEXT,
	output_language TEXT,
	provider TEXT,
	model TEXT,
	prompt_template TEXT,
	preferred_summary_template TEXT,
	available_summary_templates TEXT NOT NULL,
	source_content_hash TEXT,
	pdf_content_hash TEXT,
	translations TEXT,
	meta_fingerprint TEXT,
	has_bibtex INTEGER NOT NULL DEFAULT 0
);

-- Every identity key ever known for a paper. Continuity across rebuilds
-- resolves candidate keys against this table in the previous snapshot.
CREATE TABLE IF NOT EXISTS paper_key_aliases (
	paper_key TEXT PRIMARY KEY,
	paper_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_aliases_paper ON paper_key_aliases(paper_id);

-- Facet values across all kinds. Numeric ids are facet-scoped and assigned
-- by normalized-value sort order so rebuilds are stable.
CREATE TABLE IF NOT EXISTS facet_values (
	kind TEXT NOT NULL,
	id INTEGER NOT NULL,
	value TEXT NOT NULL,
	paper_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (kind, id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_facet_value ON facet_values(kind, value);
CREATE INDEX IF NOT EXISTS idx_facet_count ON facet_values(kind, paper_count DESC, value ASC);

CREATE TABLE IF NOT EXISTS paper_facets (
	paper_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	facet_id INTEGER NOT NULL,
	PRIMARY KEY (paper_id, kind, facet_id)
);

CREATE INDEX IF NOT EXISTS idx_paper_facets_lookup ON paper_facets(kind, facet_id, paper_id);

-- Precomputed cross-facet paper counts. Same-kind self-links are excluded.
CREATE TABLE IF NOT EXISTS relationship_counts (
	a_kind TEXT NOT NULL,
	a_id INTEGER NOT NULL,
	b_kind TEXT NOT NULL,
	b_id INTEGER NOT NULL,
	paper_count INTEGER NOT NULL,
	PRIMARY KEY (a_kind, a_id, b_kind, b_id)
);

CREATE TABLE IF NOT EXISTS bibtex_entries (
	paper_id TEXT PRIMARY KEY,
	bibtex_key TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	doi TEXT,
	bibtex_raw TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS build_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

-- Full corpus index. Column weighting at query time favors title and
-- summary over body and translated text.
CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts5(
	paper_id UNINDEXED,
	title,
	meta,
	summary,
	body,
	translated,
	tokenize = 'unicode61'
);

-- Trigram index over the short fields for typo tolerance.
CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts_small USING fts5(
	paper_id UNINDEXED,
	title,
	venue,
	tokenize = 'trigram'
);
`

// InitSchema creates the snapshot schema.
func (s *SnapshotDB) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return err
	}
	s.logger.Debug().Msg("Snapshot schema initialized")
	return nil
}

// metaValue reads one build_meta row; missing keys return "".
func metaValue(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM build_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// detectSchemaVersion reads the stored schema version. Snapshots without a
// version row are treated as version 1.
func detectSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	raw, err := metaValue(ctx, db, "schema_version")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 1, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 1, nil
	}
	return v, nil
}

// hasColumn reports whether a table carries a column. Legacy snapshots miss
// newer columns; readers select around them.
func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(`+table+`)`)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, dfltValue, pk interface{}
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
