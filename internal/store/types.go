package store

import (
	"time"

	"github.com/jward/reflectdb/internal/codec"
)

// File is one scanned source file.
type File struct {
	ID          int64
	Path        string
	Hash        string
	LastIndexed time.Time
}

// Row is a saved primitive: the flattened record plus its store key scope
// and the unit that introduced it.
type Row struct {
	ID int64
	codec.Record
	Scope      uint32
	Provenance string
}

// Edge is a saved inheritance relation. Order is -1 when the base-list
// position was never recorded.
type Edge struct {
	Name    string
	Derived string
	Base    string
	Order   int
}

// Run describes one SaveDatabase call.
type Run struct {
	ID         string
	SavedAt    time.Time
	Primitives int
	Files      int
}
