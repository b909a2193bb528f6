package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"
)

// SnapshotDB manages a SQLite snapshot connection. Build-time connections
// are writable with WAL; serve-time connections are opened read-only.
type SnapshotDB struct {
	db       *sql.DB
	logger   arbor.ILogger
	path     string
	readOnly bool
}

// OpenWritable creates (or truncates into) a snapshot database for a build.
func OpenWritable(logger arbor.ILogger, path string) (*SnapshotDB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// modernc.org/sqlite uses "sqlite" driver name (not "sqlite3")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SnapshotDB{db: db, logger: logger, path: path}
	if err := s.configure(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if err := s.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("Snapshot database opened for build")
	return s, nil
}

// OpenReadOnly opens an existing snapshot for serving. The snapshot is
// immutable, so a single shared connection pool is safe.
func OpenReadOnly(logger arbor.ILogger, path string) (*SnapshotDB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SnapshotDB{db: db, logger: logger, path: path, readOnly: true}
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enforce read-only mode: %w", err)
	}

	logger.Info().Str("path", path).Msg("Snapshot database opened read-only")
	return s, nil
}

// configure sets build-time pragmas. The snapshot is written by a single
// goroutine, so WAL with NORMAL sync is enough.
func (s *SnapshotDB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = OFF",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// DB returns the underlying database connection.
func (s *SnapshotDB) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *SnapshotDB) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SnapshotDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginTx starts a new transaction.
func (s *SnapshotDB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Ping verifies the database connection.
func (s *SnapshotDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
