package database

import "sort"

// Merge unions src into dst. Equal primitives collapse, a defined class
// wins over a forward declaration of the same class, and any other unequal
// primitive sharing a key is recorded as a conflict. Primitives new to dst
// are attributed to unit.
func Merge(dst, src *Database, unit string) {
	for _, kind := range AllKinds {
		for _, k := range src.order[kind] {
			p := src.prims[k]
			if c, ok := p.(Class); ok {
				if existing, found := dst.prims[k]; found {
					if existing.(Class).Size != 0 && c.Size == 0 {
						continue
					}
					if existing.(Class).Size == 0 && c.Size != 0 {
						dst.names.register(c.Name)
						dst.prims[k] = c
						continue
					}
				}
			}
			_, existed := dst.prims[k]
			dst.AddPrimitive(p)
			if !existed {
				if u, ok := src.provenance[k]; ok {
					dst.SetProvenance(k, u)
				} else {
					dst.SetProvenance(k, unit)
				}
			}
		}
	}

	for _, ti := range src.inherits {
		rel := dst.AddTypeInheritance(ti.Derived, ti.Base)
		if o, ok := src.inheritOrder[ti.Name.Hash]; ok {
			if _, set := dst.inheritOrder[rel.Hash]; !set {
				dst.SetInheritanceOrder(rel, o)
			}
		}
	}

	for _, p := range src.SourceFiles() {
		for _, k := range src.locations[p] {
			dst.AddSourceLocation(p, k)
		}
	}
}

// Equal reports whether a and b hold the same primitives, inheritance
// edges, inheritance orders and source locations. Insertion order and
// provenance are ignored.
func Equal(a, b *Database) bool {
	if len(a.prims) != len(b.prims) {
		return false
	}
	for k, p := range a.prims {
		q, ok := b.prims[k]
		if !ok || p != q {
			return false
		}
	}

	if len(a.inherits) != len(b.inherits) {
		return false
	}
	for pk, i := range a.inheritIndex {
		j, ok := b.inheritIndex[pk]
		if !ok || a.inherits[i] != b.inherits[j] {
			return false
		}
		oa, okA := a.inheritOrder[a.inherits[i].Name.Hash]
		ob, okB := b.inheritOrder[b.inherits[j].Name.Hash]
		if okA != okB || oa != ob {
			return false
		}
	}

	if len(a.locations) != len(b.locations) {
		return false
	}
	for p, keys := range a.locations {
		other := b.locations[p]
		if len(keys) != len(other) {
			return false
		}
		if !sameKeys(keys, other) {
			return false
		}
	}
	return true
}

func sameKeys(a, b []Key) bool {
	x := sortedKeys(a)
	y := sortedKeys(b)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func sortedKeys(keys []Key) []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	SortKeys(out)
	return out
}

// SortKeys orders keys by kind, hash, then scope.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})
}

// Less orders keys by kind, hash, then scope.
func (k Key) Less(o Key) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	if k.Hash != o.Hash {
		return k.Hash < o.Hash
	}
	return k.Scope < o.Scope
}
