package store

import "github.com/jward/reflectdb/internal/database"

// Reader is the read-only query surface over a saved database. Generators
// and the CLI query through it without loading the whole database.
type Reader interface {
	PrimitivesByKind(kind database.Kind) ([]*Row, error)
	PrimitivesByName(name string) ([]*Row, error)
	PrimitiveByName(kind database.Kind, name string) (*Row, error)
	Children(parent string) ([]*Row, error)
	AttributesOf(parent string) ([]*Row, error)
	TypesInFile(path string) ([]*Row, error)
	DerivedTypes(base string) ([]string, error)
	BasesOf(derived string) ([]string, error)
	Files() ([]*File, error)
	GetMetadata(key string) (string, error)
}

// Compile-time check: *Store satisfies Reader.
var _ Reader = (*Store)(nil)
