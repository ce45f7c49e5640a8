package reflectdb

import (
	"github.com/jward/reflectdb/internal/database"
	"github.com/jward/reflectdb/internal/extract"
	"github.com/jward/reflectdb/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder APIs. These are Go type aliases (=), identical to the
// internal types at compile time.

type Database = database.Database
type Primitive = database.Primitive
type Diagnostic = extract.Diagnostic
type Row = store.Row
type File = store.File
type Edge = store.Edge
type Run = store.Run
