package database

import (
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger used for collision and conflict warnings.
func WithLogger(l *zap.Logger) Option {
	return func(d *Database) {
		if l != nil {
			d.logger = l
		}
	}
}

// Conflict records a primitive that replaced an unequal primitive with the
// same key.
type Conflict struct {
	Key Key
	Old Primitive
	New Primitive
}

type pairKey struct {
	derived uint32
	base    uint32
}

type locKey struct {
	path string
	key  Key
}

// Database is the primitive store. It is not safe for concurrent mutation;
// parallel extraction builds one Database per unit and merges them.
type Database struct {
	names  *NameTable
	logger *zap.Logger

	prims  map[Key]Primitive
	order  map[Kind][]Key
	byName map[Kind]map[uint32][]Key

	inherits     []TypeInheritance
	inheritIndex map[pairKey]int
	inheritOrder map[uint32]int

	locations map[string][]Key
	locSeen   map[locKey]struct{}

	provenance map[Key]string
	conflicts  []Conflict
}

// New creates an empty Database.
func New(opts ...Option) *Database {
	d := &Database{
		logger:       zap.NewNop(),
		prims:        make(map[Key]Primitive),
		order:        make(map[Kind][]Key),
		byName:       make(map[Kind]map[uint32][]Key),
		inheritIndex: make(map[pairKey]int),
		inheritOrder: make(map[uint32]int),
		locations:    make(map[string][]Key),
		locSeen:      make(map[locKey]struct{}),
		provenance:   make(map[Key]string),
	}
	for _, o := range opts {
		o(d)
	}
	d.names = newNameTable(d.logger)
	return d
}

// GetName interns text and returns its canonical Name.
func (d *Database) GetName(text string) Name {
	return d.names.Get(text)
}

// Names exposes the name table.
func (d *Database) Names() *NameTable { return d.names }

// AddPrimitive stores p and returns its key. Re-adding an equal primitive
// is a no-op. An unequal primitive with the same key replaces the stored
// one and is recorded as a conflict.
func (d *Database) AddPrimitive(p Primitive) Key {
	for _, n := range names(p) {
		d.names.register(n)
	}
	k := KeyOf(p)
	existing, ok := d.prims[k]
	if ok {
		if existing == p {
			return k
		}
		d.conflicts = append(d.conflicts, Conflict{Key: k, Old: existing, New: p})
		d.logger.Warn("primitive replaced",
			zap.Stringer("kind", k.Kind),
			zap.String("name", p.Identity().Name.Text),
			zap.String("existing_name", existing.Identity().Name.Text),
		)
		d.prims[k] = p
		return k
	}
	d.prims[k] = p
	d.order[k.Kind] = append(d.order[k.Kind], k)
	idx := d.byName[k.Kind]
	if idx == nil {
		idx = make(map[uint32][]Key)
		d.byName[k.Kind] = idx
	}
	idx[k.Hash] = append(idx[k.Hash], k)
	return k
}

// Get returns the primitive stored under k.
func (d *Database) Get(k Key) (Primitive, bool) {
	p, ok := d.prims[k]
	return p, ok
}

// GetFirst returns the first inserted primitive of kind with the given name.
func (d *Database) GetFirst(kind Kind, name Name) (Primitive, bool) {
	keys := d.byName[kind][name.Hash]
	if len(keys) == 0 {
		return nil, false
	}
	return d.prims[keys[0]], true
}

// GetAll returns every primitive of kind with the given name, in insertion
// order. Overloaded functions share a name.
func (d *Database) GetAll(kind Kind, name Name) []Primitive {
	keys := d.byName[kind][name.Hash]
	out := make([]Primitive, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.prims[k])
	}
	return out
}

// First is the typed form of GetFirst.
func First[T Primitive](d *Database, name Name) (T, bool) {
	var zero T
	p, ok := d.GetFirst(zero.Kind(), name)
	if !ok {
		return zero, false
	}
	t, ok := p.(T)
	return t, ok
}

// SetClassSize back-fills the size of a class once its definition is seen.
func (d *Database) SetClassSize(name Name, size uint32) bool {
	keys := d.byName[KindClass][name.Hash]
	if len(keys) == 0 {
		return false
	}
	c := d.prims[keys[0]].(Class)
	c.Size = size
	d.prims[keys[0]] = c
	return true
}

// Primitives returns every primitive of kind in insertion order.
func (d *Database) Primitives(kind Kind) []Primitive {
	keys := d.order[kind]
	out := make([]Primitive, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.prims[k])
	}
	return out
}

// Keys returns every key of kind in insertion order.
func (d *Database) Keys(kind Kind) []Key {
	out := make([]Key, len(d.order[kind]))
	copy(out, d.order[kind])
	return out
}

// Len returns the total number of primitives.
func (d *Database) Len() int { return len(d.prims) }

// Count returns the number of primitives of kind.
func (d *Database) Count(kind Kind) int { return len(d.order[kind]) }

// Conflicts returns every replacement recorded by AddPrimitive.
func (d *Database) Conflicts() []Conflict {
	out := make([]Conflict, len(d.conflicts))
	copy(out, d.conflicts)
	return out
}

// AddTypeInheritance records derived→base unless the pair already exists
// and returns the relation's name.
func (d *Database) AddTypeInheritance(derived, base Name) Name {
	d.names.register(derived)
	d.names.register(base)
	pk := pairKey{derived.Hash, base.Hash}
	if i, ok := d.inheritIndex[pk]; ok {
		return d.inherits[i].Name
	}
	rel := d.names.Get(derived.Text + "=>" + base.Text)
	d.inheritIndex[pk] = len(d.inherits)
	d.inherits = append(d.inherits, TypeInheritance{Name: rel, Derived: derived, Base: base})
	return rel
}

// SetInheritanceOrder stores the position of a base in its derived class's
// base list.
func (d *Database) SetInheritanceOrder(rel Name, index int) {
	d.inheritOrder[rel.Hash] = index
}

// InheritanceOrder returns the stored base-list position of rel.
func (d *Database) InheritanceOrder(rel Name) (int, bool) {
	i, ok := d.inheritOrder[rel.Hash]
	return i, ok
}

// TypeInheritances returns every inheritance edge in insertion order.
func (d *Database) TypeInheritances() []TypeInheritance {
	out := make([]TypeInheritance, len(d.inherits))
	copy(out, d.inherits)
	return out
}

// BasesOf returns the direct bases of derived ordered by declaration order.
func (d *Database) BasesOf(derived Name) []Name {
	type entry struct {
		base  Name
		order int
		seq   int
	}
	var entries []entry
	for i, ti := range d.inherits {
		if ti.Derived.Hash != derived.Hash {
			continue
		}
		o, ok := d.inheritOrder[ti.Name.Hash]
		if !ok {
			o = i
		}
		entries = append(entries, entry{ti.Base, o, i})
	}
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].order != entries[b].order {
			return entries[a].order < entries[b].order
		}
		return entries[a].seq < entries[b].seq
	})
	out := make([]Name, len(entries))
	for i, e := range entries {
		out[i] = e.base
	}
	return out
}

// CanonicalPath normalises a source path for the location index: forward
// slashes, doubled separators collapsed, dot segments resolved.
func CanonicalPath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Clean(p)
}

// AddSourceLocation records that the primitive at k is declared in file p.
func (d *Database) AddSourceLocation(p string, k Key) {
	p = CanonicalPath(p)
	if p == "" {
		return
	}
	lk := locKey{p, k}
	if _, ok := d.locSeen[lk]; ok {
		return
	}
	d.locSeen[lk] = struct{}{}
	d.locations[p] = append(d.locations[p], k)
}

// SourceFiles returns every indexed file path, sorted.
func (d *Database) SourceFiles() []string {
	out := make([]string, 0, len(d.locations))
	for p := range d.locations {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// KeysInFile returns the keys declared in file p, in insertion order.
func (d *Database) KeysInFile(p string) []Key {
	keys := d.locations[CanonicalPath(p)]
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

// PrimitivesInFile returns the primitives declared in file p.
func (d *Database) PrimitivesInFile(p string) []Primitive {
	keys := d.locations[CanonicalPath(p)]
	out := make([]Primitive, 0, len(keys))
	for _, k := range keys {
		if prim, ok := d.prims[k]; ok {
			out = append(out, prim)
		}
	}
	return out
}

// SetProvenance records the unit that introduced k. The first writer wins.
func (d *Database) SetProvenance(k Key, unit string) {
	if _, ok := d.provenance[k]; ok || unit == "" {
		return
	}
	d.provenance[k] = unit
}

// Provenance returns the unit that introduced k.
func (d *Database) Provenance(k Key) (string, bool) {
	u, ok := d.provenance[k]
	return u, ok
}
