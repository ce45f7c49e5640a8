package reflectdb

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/jward/reflectdb/internal/store"
)

// QueryBuilder answers questions about a reflection database. It runs over
// any store.Reader: a saved SQLite store or an in-memory database.
type QueryBuilder struct {
	reader store.Reader
}

// NewQuery returns a QueryBuilder over r.
func NewQuery(r store.Reader) *QueryBuilder {
	return &QueryBuilder{reader: r}
}

// Query returns a QueryBuilder over an in-memory database.
func (e *Engine) Query(db *Database) *QueryBuilder {
	return NewQuery(newMemReader(db))
}

// OpenQuery opens the database at path for querying. SQLite databases are
// queried in place; binary and text databases are loaded into memory. The
// returned closer must be closed when done.
func (e *Engine) OpenQuery(path string) (*QueryBuilder, io.Closer, error) {
	isSQLite, err := IsSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reflectdb: open query: %w", err)
	}
	if isSQLite {
		s, err := store.NewStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reflectdb: open query: %w", err)
		}
		return NewQuery(s), s, nil
	}
	db, err := e.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return e.Query(db), closerFunc(func() error { return nil }), nil
}

// Reader returns the underlying reader for direct access.
func (q *QueryBuilder) Reader() store.Reader {
	return q.reader
}

// Find returns every primitive called name, of any kind.
func (q *QueryBuilder) Find(name string) ([]*Row, error) {
	rows, err := q.reader.PrimitivesByName(name)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return nonNil(rows), nil
}

// TypesInFile returns the classes, enums and template instances declared in
// path, in declaration order. A relative path resolves against the cwd,
// matching how Scan records locations.
func (q *QueryBuilder) TypesInFile(path string) ([]*Row, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	rows, err := q.reader.TypesInFile(path)
	if err != nil {
		return nil, fmt.Errorf("types in file: %w", err)
	}
	return nonNil(rows), nil
}

// Files returns every source file recorded in the database.
func (q *QueryBuilder) Files() ([]*File, error) {
	files, err := q.reader.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	if files == nil {
		files = []*File{}
	}
	return files, nil
}

// Metadata returns a saved metadata value, empty when unset or when the
// database is not a SQLite store.
func (q *QueryBuilder) Metadata(key string) (string, error) {
	return q.reader.GetMetadata(key)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func nonNil(rows []*Row) []*Row {
	if rows == nil {
		return []*Row{}
	}
	return rows
}
