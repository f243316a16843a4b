package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the manifest database written into the output directory.
const FileName = "xref.db"

// Store is the SQLite build manifest: which projects a finalize run saw,
// which artifacts it produced and the settings readers must agree on.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the manifest tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
  id              INTEGER PRIMARY KEY,
  assembly        TEXT NOT NULL UNIQUE,
  assembly_number INTEGER NOT NULL,
  project_file    TEXT,
  symbols         INTEGER NOT NULL DEFAULT 0,
  references_     INTEGER NOT NULL DEFAULT 0,
  referencing     INTEGER NOT NULL DEFAULT 0,
  patched         INTEGER NOT NULL DEFAULT 0,
  excluded        BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS referencing_assemblies (
  project_id      INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  assembly        TEXT NOT NULL,
  PRIMARY KEY (project_id, assembly)
);

CREATE TABLE IF NOT EXISTS artifacts (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  kind            TEXT NOT NULL,
  project_id      INTEGER REFERENCES projects(id) ON DELETE CASCADE,
  size            INTEGER NOT NULL,
  hash            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind);
CREATE INDEX IF NOT EXISTS idx_artifacts_project ON artifacts(project_id);
`

// Reset removes every row so a new run can be recorded.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := clearTx(tx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return tx.Commit()
}

// clearTx deletes in reverse-dependency order.
func clearTx(tx *sql.Tx) error {
	for _, q := range []string{
		"DELETE FROM artifacts",
		"DELETE FROM referencing_assemblies",
		"DELETE FROM projects",
		"DELETE FROM metadata",
	} {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
