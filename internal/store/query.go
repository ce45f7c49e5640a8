package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jward/reflectdb/internal/database"
)

// primitiveCols is the column list for primitive queries. The first column
// is the row ID, which inserts omit.
var primitiveCols = []string{
	"id", "kind", "name", "name_hash", "scope", "parent",
	"size", "is_class", "scoped", "value",
	"type_name", "op", "is_const", "field_offset", "unique_id", "parent_unique_id",
	"params", "flags", "elem_count", "float_value", "text_value", "ref",
	"provenance",
}

var edgeCols = []string{"name", "derived", "base", "base_order"}

// typeKinds are the kinds that describe a type a generator can emit code for.
var typeKinds = []string{
	database.KindClass.String(),
	database.KindEnum.String(),
	database.KindTemplateType.String(),
}

func scanRow(scanner interface{ Scan(...any) error }) (*Row, error) {
	r := &Row{}
	var (
		nameHash uint32
		params   string
	)
	err := scanner.Scan(
		&r.ID, &r.Kind, &r.Name, &nameHash, &r.Scope, &r.Parent,
		&r.Size, &r.IsClass, &r.Scoped, &r.Value,
		&r.Type, &r.Op, &r.Const, &r.Offset, &r.UniqueID, &r.ParentUniqueID,
		&params, &r.Flags, &r.Count, &r.Float, &r.Text, &r.Ref,
		&r.Provenance,
	)
	if err != nil {
		return nil, err
	}
	r.Params = unmarshalParams(params)
	return r, nil
}

func (s *Store) queryRows(q sq.SelectBuilder) ([]*Row, error) {
	rows, err := q.RunWith(s.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan primitive: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) queryEdges(q sq.SelectBuilder) ([]*Edge, error) {
	rows, err := q.RunWith(s.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Edge
	for rows.Next() {
		e := &Edge{}
		var order sql.NullInt64
		if err := rows.Scan(&e.Name, &e.Derived, &e.Base, &order); err != nil {
			return nil, fmt.Errorf("scan inheritance: %w", err)
		}
		e.Order = -1
		if order.Valid {
			e.Order = int(order.Int64)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) queryStrings(q sq.SelectBuilder) ([]string, error) {
	rows, err := q.RunWith(s.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PrimitivesByKind returns every saved primitive of kind in insertion order.
func (s *Store) PrimitivesByKind(kind database.Kind) ([]*Row, error) {
	rows, err := s.queryRows(sq.Select(primitiveCols...).
		From("primitives").
		Where(sq.Eq{"kind": kind.String()}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("primitives by kind: %w", err)
	}
	return rows, nil
}

// PrimitivesByName returns every saved primitive called name, of any kind.
func (s *Store) PrimitivesByName(name string) ([]*Row, error) {
	rows, err := s.queryRows(sq.Select(primitiveCols...).
		From("primitives").
		Where(sq.Eq{"name": name}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("primitives by name: %w", err)
	}
	return rows, nil
}

// PrimitiveByName returns the first saved primitive of kind called name,
// or nil.
func (s *Store) PrimitiveByName(kind database.Kind, name string) (*Row, error) {
	rows, err := s.queryRows(sq.Select(primitiveCols...).
		From("primitives").
		Where(sq.Eq{"kind": kind.String(), "name": name}).
		OrderBy("id").
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("primitive by name: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Children returns the primitives whose parent is name: members of a
// class or namespace, fields of a function, attributes of a declaration.
func (s *Store) Children(parent string) ([]*Row, error) {
	rows, err := s.queryRows(sq.Select(primitiveCols...).
		From("primitives").
		Where(sq.Eq{"parent": parent}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("children: %w", err)
	}
	return rows, nil
}

// AttributesOf returns the attributes attached to the declaration parent.
func (s *Store) AttributesOf(parent string) ([]*Row, error) {
	var kinds []string
	for _, k := range database.AllKinds {
		if k.IsAttribute() {
			kinds = append(kinds, k.String())
		}
	}
	rows, err := s.queryRows(sq.Select(primitiveCols...).
		From("primitives").
		Where(sq.Eq{"parent": parent, "kind": kinds}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("attributes of: %w", err)
	}
	return rows, nil
}

// TypesInFile returns the classes, enums and template instantiations
// declared in path.
func (s *Store) TypesInFile(path string) ([]*Row, error) {
	cols := make([]string, len(primitiveCols))
	for i, c := range primitiveCols {
		cols[i] = "p." + c
	}
	rows, err := s.queryRows(sq.Select(cols...).
		From("primitives p").
		Join("locations l ON l.primitive_id = p.id").
		Join("files f ON f.id = l.file_id").
		Where(sq.Eq{"f.path": database.CanonicalPath(path), "p.kind": typeKinds}).
		OrderBy("l.seq"))
	if err != nil {
		return nil, fmt.Errorf("types in file: %w", err)
	}
	return rows, nil
}

// DerivedTypes returns the direct derived types of base.
func (s *Store) DerivedTypes(base string) ([]string, error) {
	out, err := s.queryStrings(sq.Select("derived").
		From("inheritance").
		Where(sq.Eq{"base": base}).
		OrderBy("derived"))
	if err != nil {
		return nil, fmt.Errorf("derived types: %w", err)
	}
	return out, nil
}

// BasesOf returns the direct bases of derived in base-list order.
func (s *Store) BasesOf(derived string) ([]string, error) {
	out, err := s.queryStrings(sq.Select("base").
		From("inheritance").
		Where(sq.Eq{"derived": derived}).
		OrderBy("COALESCE(base_order, id)", "id"))
	if err != nil {
		return nil, fmt.Errorf("bases of: %w", err)
	}
	return out, nil
}

// Inheritance returns every saved inheritance edge.
func (s *Store) Inheritance() ([]*Edge, error) {
	out, err := s.queryEdges(sq.Select(edgeCols...).From("inheritance").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("inheritance: %w", err)
	}
	return out, nil
}

// Files returns every saved source file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := sq.Select("id", "path", "hash", "last_indexed").
		From("files").
		OrderBy("path").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		var indexed sql.NullTime
		if err := rows.Scan(&f.ID, &f.Path, &f.Hash, &indexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.LastIndexed = indexed.Time
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileHash returns the saved content hash of path, or "" when the file is
// unknown.
func (s *Store) FileHash(path string) (string, error) {
	var hash string
	err := sq.Select("hash").
		From("files").
		Where(sq.Eq{"path": database.CanonicalPath(path)}).
		RunWith(s.db).
		QueryRow().
		Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("file hash: %w", err)
	}
	return hash, nil
}
