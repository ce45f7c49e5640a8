package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/jward/reflectdb/internal/codec"
	"github.com/jward/reflectdb/internal/database"
)

// Metadata keys written by SaveDatabase.
const (
	MetaRunID      = "run_id"
	MetaSavedAt    = "saved_at"
	MetaPrimitives = "primitive_count"
	MetaFiles      = "file_count"
)

// SaveDatabase replaces the saved database with db inside a single
// transaction. files carries content hashes for scanned sources; source
// locations in files not listed get a row without a hash.
//
// Insert order respects FK dependencies:
//  1. Names
//  2. Files
//  3. Primitives (keys remapped to row IDs)
//  4. Inheritance
//  5. Locations (depend on file and primitive IDs)
//  6. Metadata
func (s *Store) SaveDatabase(db *database.Database, files []*File) (*Run, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("save database: begin: %w", err)
	}
	defer tx.Rollback()

	if err := clearTx(tx); err != nil {
		return nil, fmt.Errorf("save database: %w", err)
	}

	// 1. Names
	for _, text := range db.Names().Texts() {
		_, err := sq.Insert("names").
			Columns("text", "hash").
			Values(text, database.HashName(text)).
			RunWith(tx).
			Exec()
		if err != nil {
			return nil, fmt.Errorf("save database: name %q: %w", text, err)
		}
	}

	// 2. Files
	now := time.Now().UTC()
	fileIDs := make(map[string]int64)
	for _, f := range files {
		p := database.CanonicalPath(f.Path)
		if _, ok := fileIDs[p]; ok {
			continue
		}
		indexed := f.LastIndexed
		if indexed.IsZero() {
			indexed = now
		}
		id, err := insertFileTx(tx, p, f.Hash, indexed)
		if err != nil {
			return nil, fmt.Errorf("save database: file %q: %w", p, err)
		}
		f.ID = id
		fileIDs[p] = id
	}
	for _, p := range db.SourceFiles() {
		if _, ok := fileIDs[p]; ok {
			continue
		}
		id, err := insertFileTx(tx, p, "", now)
		if err != nil {
			return nil, fmt.Errorf("save database: file %q: %w", p, err)
		}
		fileIDs[p] = id
	}

	// 3. Primitives
	keyToID := make(map[database.Key]int64)
	for _, kind := range database.AllKinds {
		for _, k := range db.Keys(kind) {
			p, _ := db.Get(k)
			unit, _ := db.Provenance(k)
			id, err := insertPrimitiveTx(tx, k, codec.ToRecord(p), unit)
			if err != nil {
				return nil, fmt.Errorf("save database: %s %q: %w", kind, p.Identity().Name.Text, err)
			}
			keyToID[k] = id
		}
	}

	// 4. Inheritance
	for _, ti := range db.TypeInheritances() {
		var order any
		if o, ok := db.InheritanceOrder(ti.Name); ok {
			order = o
		}
		_, err := sq.Insert("inheritance").
			Columns("name", "derived", "base", "base_order").
			Values(ti.Name.Text, ti.Derived.Text, ti.Base.Text, order).
			RunWith(tx).
			Exec()
		if err != nil {
			return nil, fmt.Errorf("save database: inheritance %q: %w", ti.Name.Text, err)
		}
	}

	// 5. Locations
	for _, p := range db.SourceFiles() {
		for seq, k := range db.KeysInFile(p) {
			primID, ok := keyToID[k]
			if !ok {
				continue
			}
			_, err := sq.Insert("locations").
				Columns("file_id", "primitive_id", "seq").
				Values(fileIDs[p], primID, seq).
				RunWith(tx).
				Exec()
			if err != nil {
				return nil, fmt.Errorf("save database: location in %q: %w", p, err)
			}
		}
	}

	// 6. Metadata
	run := &Run{
		ID:         uuid.NewString(),
		SavedAt:    now,
		Primitives: db.Len(),
		Files:      len(fileIDs),
	}
	for key, value := range map[string]string{
		MetaRunID:      run.ID,
		MetaSavedAt:    run.SavedAt.Format(time.RFC3339),
		MetaPrimitives: strconv.Itoa(run.Primitives),
		MetaFiles:      strconv.Itoa(run.Files),
	} {
		if err := setMetadata(tx, key, value); err != nil {
			return nil, fmt.Errorf("save database: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("save database: commit: %w", err)
	}
	return run, nil
}

// LoadDatabase rebuilds the saved database in memory.
func (s *Store) LoadDatabase(opts ...database.Option) (*database.Database, error) {
	db := database.New(opts...)

	texts, err := s.queryStrings(sq.Select("text").From("names").OrderBy("rowid"))
	if err != nil {
		return nil, fmt.Errorf("load database: names: %w", err)
	}
	for _, text := range texts {
		db.GetName(text)
	}

	rows, err := s.queryRows(sq.Select(primitiveCols...).From("primitives").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("load database: primitives: %w", err)
	}
	idToKey := make(map[int64]database.Key, len(rows))
	for _, r := range rows {
		p, err := codec.FromRecord(db, r.Record)
		if err != nil {
			return nil, fmt.Errorf("load database: primitive %d: %w", r.ID, err)
		}
		k := db.AddPrimitive(p)
		db.SetProvenance(k, r.Provenance)
		idToKey[r.ID] = k
	}

	edges, err := s.queryEdges(sq.Select(edgeCols...).From("inheritance").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("load database: inheritance: %w", err)
	}
	for _, e := range edges {
		rel := db.AddTypeInheritance(db.GetName(e.Derived), db.GetName(e.Base))
		if e.Order >= 0 {
			db.SetInheritanceOrder(rel, e.Order)
		}
	}

	locRows, err := sq.Select("f.path", "l.primitive_id").
		From("locations l").
		Join("files f ON f.id = l.file_id").
		OrderBy("f.path", "l.seq").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("load database: locations: %w", err)
	}
	defer locRows.Close()
	for locRows.Next() {
		var (
			path string
			id   int64
		)
		if err := locRows.Scan(&path, &id); err != nil {
			return nil, fmt.Errorf("load database: scan location: %w", err)
		}
		if k, ok := idToKey[id]; ok {
			db.AddSourceLocation(path, k)
		}
	}
	if err := locRows.Err(); err != nil {
		return nil, fmt.Errorf("load database: locations: %w", err)
	}
	return db, nil
}

// --- Transaction-scoped insert helpers ---

func insertFileTx(tx *sql.Tx, path, hash string, indexed time.Time) (int64, error) {
	res, err := sq.Insert("files").
		Columns("path", "hash", "last_indexed").
		Values(path, hash, indexed).
		RunWith(tx).
		Exec()
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertPrimitiveTx(tx *sql.Tx, k database.Key, r codec.Record, unit string) (int64, error) {
	res, err := sq.Insert("primitives").
		Columns(primitiveCols[1:]...).
		Values(
			r.Kind, r.Name, k.Hash, k.Scope, r.Parent,
			r.Size, r.IsClass, r.Scoped, r.Value,
			r.Type, r.Op, r.Const, r.Offset, r.UniqueID, r.ParentUniqueID,
			marshalParams(r.Params), r.Flags, r.Count, r.Float, r.Text, r.Ref,
			unit,
		).
		RunWith(tx).
		Exec()
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func setMetadata(runner sq.BaseRunner, key, value string) error {
	_, err := sq.Insert("metadata").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		RunWith(runner).
		Exec()
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
