package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite persistence layer for a metadata database: source
// files, interned names, primitives, inheritance edges, source locations
// and run metadata.
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

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT NOT NULL DEFAULT '',
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS names (
  text            TEXT PRIMARY KEY,
  hash            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS primitives (
  id              INTEGER PRIMARY KEY,
  kind            TEXT NOT NULL,
  name            TEXT NOT NULL,
  name_hash       INTEGER NOT NULL,
  scope           INTEGER NOT NULL DEFAULT 0,
  parent          TEXT NOT NULL DEFAULT '',
  size            INTEGER NOT NULL DEFAULT 0,
  is_class        BOOLEAN NOT NULL DEFAULT FALSE,
  scoped          TEXT NOT NULL DEFAULT '',
  value           INTEGER NOT NULL DEFAULT 0,
  type_name       TEXT NOT NULL DEFAULT '',
  op              TEXT NOT NULL DEFAULT '',
  is_const        BOOLEAN NOT NULL DEFAULT FALSE,
  field_offset    INTEGER NOT NULL DEFAULT 0,
  unique_id       INTEGER NOT NULL DEFAULT 0,
  parent_unique_id INTEGER NOT NULL DEFAULT 0,
  params          TEXT NOT NULL DEFAULT '[]',
  flags           INTEGER NOT NULL DEFAULT 0,
  elem_count      INTEGER NOT NULL DEFAULT 0,
  float_value     REAL NOT NULL DEFAULT 0,
  text_value      TEXT NOT NULL DEFAULT '',
  ref             TEXT NOT NULL DEFAULT '',
  provenance      TEXT NOT NULL DEFAULT '',
  UNIQUE (kind, name_hash, scope)
);

CREATE TABLE IF NOT EXISTS inheritance (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL,
  derived         TEXT NOT NULL,
  base            TEXT NOT NULL,
  base_order      INTEGER,
  UNIQUE (derived, base)
);

CREATE TABLE IF NOT EXISTS locations (
  file_id         INTEGER NOT NULL REFERENCES files(id),
  primitive_id    INTEGER NOT NULL REFERENCES primitives(id),
  seq             INTEGER NOT NULL,
  PRIMARY KEY (file_id, primitive_id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_primitives_kind ON primitives(kind);
CREATE INDEX IF NOT EXISTS idx_primitives_name ON primitives(name);
CREATE INDEX IF NOT EXISTS idx_primitives_parent ON primitives(parent);
CREATE INDEX IF NOT EXISTS idx_inheritance_derived ON inheritance(derived);
CREATE INDEX IF NOT EXISTS idx_inheritance_base ON inheritance(base);
CREATE INDEX IF NOT EXISTS idx_locations_primitive ON locations(primitive_id);
`

// Clear transactionally removes every saved database row. Metadata is
// kept. Deletes in reverse-dependency order to respect FK constraints.
func (s *Store) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearTx(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func clearTx(tx *sql.Tx) error {
	for _, table := range []string{"locations", "inheritance", "primitives", "names", "files"} {
		if _, err := sq.Delete(table).RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// SetMetadata upserts a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	return setMetadata(s.db, key, value)
}

// GetMetadata returns a metadata value, or "" when the key is unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := sq.Select("value").
		From("metadata").
		Where(sq.Eq{"key": key}).
		RunWith(s.db).
		QueryRow().
		Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}
