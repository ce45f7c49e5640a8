// Package basechain resolves root-first inheritance chains for code
// generators that assume single-inheritance, first-slot object layout.
package basechain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/maypok86/otter"

	"github.com/jward/reflectdb/internal/database"
)

var (
	// ErrNotFound means the root is not an ancestor of the target.
	ErrNotFound = errors.New("basechain: root is not a base of target")
	// ErrNonPrimaryBase means the chain passes through a base that does not
	// share its derived class's address.
	ErrNonPrimaryBase = errors.New("basechain: chain passes through a non-primary base")
)

const defaultCacheSize = 4096

// Resolver answers base-chain queries over one database. It owns its
// base-types cache; create one Resolver per generation run.
type Resolver struct {
	db    *database.Database
	g     graph.Graph[string, string]
	adj   map[string]map[string]graph.Edge[string]
	cache otter.Cache[string, []string]
}

// New builds the inheritance graph of db. Edge weights are base-list
// positions.
func New(db *database.Database) (*Resolver, error) {
	g := graph.New(graph.StringHash, graph.Directed())
	for _, ti := range db.TypeInheritances() {
		for _, v := range []string{ti.Derived.Text, ti.Base.Text} {
			if err := g.AddVertex(v); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("basechain: add vertex %s: %w", v, err)
			}
		}
		order, ok := db.InheritanceOrder(ti.Name)
		if !ok {
			order = 0
		}
		err := g.AddEdge(ti.Derived.Text, ti.Base.Text, graph.EdgeWeight(order))
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil, fmt.Errorf("basechain: add edge %s: %w", ti.Name.Text, err)
		}
	}

	adj, err := g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("basechain: adjacency: %w", err)
	}

	cache, err := otter.MustBuilder[string, []string](defaultCacheSize).Build()
	if err != nil {
		return nil, fmt.Errorf("basechain: create cache: %w", err)
	}

	return &Resolver{db: db, g: g, adj: adj, cache: cache}, nil
}

// Close releases the cache.
func (r *Resolver) Close() {
	r.cache.Close()
}

// Bases returns the direct bases of name in declaration order.
func (r *Resolver) Bases(name string) []string {
	if bases, ok := r.cache.Get(name); ok {
		return bases
	}
	edges := r.adj[name]
	list := make([]graph.Edge[string], 0, len(edges))
	for _, e := range edges {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Properties.Weight != list[j].Properties.Weight {
			return list[i].Properties.Weight < list[j].Properties.Weight
		}
		return list[i].Target < list[j].Target
	})
	bases := make([]string, len(list))
	for i, e := range list {
		bases[i] = e.Target
	}
	r.cache.Set(name, bases)
	return bases
}

// Chain returns the inheritance path from root down to target, root first.
// Every link must be the derived class's primary base: either its first
// declared base, or a base preceded only by empty classes.
func (r *Resolver) Chain(target, root string) ([]string, error) {
	path := r.find(target, root, map[string]bool{})
	if path == nil {
		return nil, fmt.Errorf("%w: %s does not derive from %s", ErrNotFound, target, root)
	}

	for i := 0; i+1 < len(path); i++ {
		derived, base := path[i], path[i+1]
		for _, b := range r.Bases(derived) {
			if b == base {
				break
			}
			if !r.isEmpty(b) {
				return nil, fmt.Errorf("%w: %s is not the first base of %s (preceded by %s)",
					ErrNonPrimaryBase, base, derived, b)
			}
		}
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Root follows name's primary bases up to the topmost class. The primary
// base is the first non-empty base, or the first base when all are empty.
func (r *Resolver) Root(name string) string {
	seen := map[string]bool{name: true}
	cur := name
	for {
		bases := r.Bases(cur)
		if len(bases) == 0 {
			return cur
		}
		next := bases[0]
		for _, b := range bases {
			if !r.isEmpty(b) {
				next = b
				break
			}
		}
		if seen[next] {
			return cur
		}
		seen[next] = true
		cur = next
	}
}

// find returns the path target → … → root, depth-first in base order.
func (r *Resolver) find(cur, root string, visiting map[string]bool) []string {
	if cur == root {
		return []string{cur}
	}
	if visiting[cur] {
		return nil
	}
	visiting[cur] = true
	defer delete(visiting, cur)

	for _, b := range r.Bases(cur) {
		if rest := r.find(b, root, visiting); rest != nil {
			return append([]string{cur}, rest...)
		}
	}
	return nil
}

// isEmpty reports whether name is a known class with no data, which the
// compiler places at offset zero alongside the next base. Only size 1 is
// empty; size 0 means the definition was never seen.
func (r *Resolver) isEmpty(name string) bool {
	n := database.NewName(name)
	if c, ok := database.First[database.Class](r.db, n); ok {
		return c.Size == 1 && len(r.Bases(name)) == 0
	}
	if tt, ok := database.First[database.TemplateType](r.db, n); ok {
		return tt.Size == 1 && len(r.Bases(name)) == 0
	}
	return false
}

// Ancestors returns every transitive base of name, nearest first.
func (r *Resolver) Ancestors(name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, b := range r.Bases(cur) {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
				queue = append(queue, b)
			}
		}
	}
	return out
}
