package reflectdb

import (
	"fmt"
	"sort"
)

// HierarchyNode is one type reached while walking inheritance.
type HierarchyNode struct {
	Name  string
	Depth int // edges from the root type
}

// HierarchyEdge is one direct inheritance relation.
type HierarchyEdge struct {
	Derived string
	Base    string
}

// TypeHierarchy is the inheritance neighbourhood of one type.
type TypeHierarchy struct {
	Root        string
	Ancestors   []HierarchyNode // every base reachable upwards
	Descendants []HierarchyNode // every type deriving from Root
	Edges       []HierarchyEdge // relations between visited types
}

// maxHierarchyDepth caps TypeHierarchy walks.
const maxHierarchyDepth = 100

// TypeHierarchy walks bases and derived types of name breadth first up to
// maxDepth edges in each direction. maxDepth of 0 returns only the root.
// Negative returns an error. Returns nil, nil if name is not a known type.
func (q *QueryBuilder) TypeHierarchy(name string, maxDepth int) (*TypeHierarchy, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("type hierarchy: maxDepth must be non-negative, got %d", maxDepth)
	}
	if maxDepth > maxHierarchyDepth {
		maxDepth = maxHierarchyDepth
	}

	detail, err := q.TypeDetail(name)
	if err != nil {
		return nil, fmt.Errorf("type hierarchy: %w", err)
	}
	if detail == nil {
		return nil, nil
	}

	result := &TypeHierarchy{
		Root:        name,
		Ancestors:   []HierarchyNode{},
		Descendants: []HierarchyNode{},
		Edges:       []HierarchyEdge{},
	}
	if maxDepth == 0 {
		return result, nil
	}

	edgeSeen := make(map[HierarchyEdge]bool)
	addEdge := func(e HierarchyEdge) {
		if !edgeSeen[e] {
			edgeSeen[e] = true
			result.Edges = append(result.Edges, e)
		}
	}

	up, err := q.walk(name, maxDepth, q.reader.BasesOf, func(from, to string) {
		addEdge(HierarchyEdge{Derived: from, Base: to})
	})
	if err != nil {
		return nil, fmt.Errorf("type hierarchy: bases: %w", err)
	}
	down, err := q.walk(name, maxDepth, q.reader.DerivedTypes, func(from, to string) {
		addEdge(HierarchyEdge{Derived: to, Base: from})
	})
	if err != nil {
		return nil, fmt.Errorf("type hierarchy: derived: %w", err)
	}
	result.Ancestors = up
	result.Descendants = down
	return result, nil
}

// walk runs a BFS from root over next, reporting each traversed edge.
// Nodes come back ordered by depth, then name.
func (q *QueryBuilder) walk(root string, maxDepth int, next func(string) ([]string, error), edge func(from, to string)) ([]HierarchyNode, error) {
	visited := map[string]int{root: 0}
	type bfsEntry struct {
		name  string
		depth int
	}
	queue := []bfsEntry{{name: root, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}
		neighbours, err := next(current.name)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbours {
			edge(current.name, n)
			if _, seen := visited[n]; !seen {
				visited[n] = current.depth + 1
				queue = append(queue, bfsEntry{name: n, depth: current.depth + 1})
			}
		}
	}

	nodes := make([]HierarchyNode, 0, len(visited)-1)
	for n, d := range visited {
		if n != root {
			nodes = append(nodes, HierarchyNode{Name: n, Depth: d})
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].Name < nodes[j].Name
	})
	return nodes, nil
}
