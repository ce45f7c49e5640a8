package reflectdb

import (
	"sort"

	"github.com/jward/reflectdb/internal/codec"
	"github.com/jward/reflectdb/internal/database"
	"github.com/jward/reflectdb/internal/store"
)

// memReader serves store.Reader from an in-memory database. Row IDs follow
// the order a SQLite save would assign: kinds in AllKinds order, each in
// insertion order.
type memReader struct {
	db   *database.Database
	keys []database.Key
	ids  map[database.Key]int64
}

var _ store.Reader = (*memReader)(nil)

func newMemReader(db *database.Database) *memReader {
	r := &memReader{db: db, ids: make(map[database.Key]int64)}
	for _, kind := range database.AllKinds {
		for _, k := range db.Keys(kind) {
			r.keys = append(r.keys, k)
			r.ids[k] = int64(len(r.keys))
		}
	}
	return r
}

func (r *memReader) row(k database.Key) *Row {
	p, ok := r.db.Get(k)
	if !ok {
		return nil
	}
	prov, _ := r.db.Provenance(k)
	return &Row{
		ID:         r.ids[k],
		Record:     codec.ToRecord(p),
		Scope:      k.Scope,
		Provenance: prov,
	}
}

// filter returns the rows, in ID order, whose primitive satisfies keep.
func (r *memReader) filter(keep func(database.Key, database.Primitive) bool) []*Row {
	var out []*Row
	for _, k := range r.keys {
		p, _ := r.db.Get(k)
		if keep(k, p) {
			out = append(out, r.row(k))
		}
	}
	return out
}

func (r *memReader) PrimitivesByKind(kind database.Kind) ([]*Row, error) {
	var out []*Row
	for _, k := range r.db.Keys(kind) {
		out = append(out, r.row(k))
	}
	return out, nil
}

func (r *memReader) PrimitivesByName(name string) ([]*Row, error) {
	return r.filter(func(_ database.Key, p database.Primitive) bool {
		return p.Identity().Name.Text == name
	}), nil
}

func (r *memReader) PrimitiveByName(kind database.Kind, name string) (*Row, error) {
	for _, k := range r.db.Keys(kind) {
		p, _ := r.db.Get(k)
		if p.Identity().Name.Text == name {
			return r.row(k), nil
		}
	}
	return nil, nil
}

func (r *memReader) Children(parent string) ([]*Row, error) {
	return r.filter(func(_ database.Key, p database.Primitive) bool {
		return p.Identity().Parent.Text == parent
	}), nil
}

func (r *memReader) AttributesOf(parent string) ([]*Row, error) {
	return r.filter(func(k database.Key, p database.Primitive) bool {
		return k.Kind.IsAttribute() && p.Identity().Parent.Text == parent
	}), nil
}

func (r *memReader) TypesInFile(path string) ([]*Row, error) {
	var out []*Row
	for _, k := range r.db.KeysInFile(path) {
		switch k.Kind {
		case database.KindClass, database.KindEnum, database.KindTemplateType:
			if row := r.row(k); row != nil {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (r *memReader) DerivedTypes(base string) ([]string, error) {
	var out []string
	for _, ti := range r.db.TypeInheritances() {
		if ti.Base.Text == base {
			out = append(out, ti.Derived.Text)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memReader) BasesOf(derived string) ([]string, error) {
	var out []string
	for _, b := range r.db.BasesOf(database.NewName(derived)) {
		out = append(out, b.Text)
	}
	return out, nil
}

func (r *memReader) Files() ([]*File, error) {
	var out []*File
	for _, p := range r.db.SourceFiles() {
		out = append(out, &File{Path: p})
	}
	return out, nil
}

// GetMetadata always returns "": in-memory databases carry no run
// metadata.
func (r *memReader) GetMetadata(string) (string, error) {
	return "", nil
}
