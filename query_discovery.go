package reflectdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/reflectdb/internal/database"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// PrimitiveFilter specifies which primitives to include. Zero fields match
// everything.
type PrimitiveFilter struct {
	Kinds      []string // match any of these kinds
	Parent     *string  // exact parent name
	NamePrefix string   // name starts with this
	Contains   string   // name contains this, case-insensitively
}

func (f PrimitiveFilter) kinds() ([]database.Kind, error) {
	if len(f.Kinds) == 0 {
		return database.AllKinds, nil
	}
	out := make([]database.Kind, 0, len(f.Kinds))
	for _, s := range f.Kinds {
		k, err := database.ParseKind(s)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func (f PrimitiveFilter) match(r *Row) bool {
	if f.Parent != nil && r.Parent != *f.Parent {
		return false
	}
	if f.NamePrefix != "" && !strings.HasPrefix(r.Name, f.NamePrefix) {
		return false
	}
	if f.Contains != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(f.Contains)) {
		return false
	}
	return true
}

// Primitives lists the primitives matching filter, kinds in the order the
// filter names them and each kind in insertion order.
func (q *QueryBuilder) Primitives(filter PrimitiveFilter, page Pagination) (*PagedResult[*Row], error) {
	page = page.normalize()
	kinds, err := filter.kinds()
	if err != nil {
		return nil, fmt.Errorf("primitives: %w", err)
	}

	var matched []*Row
	for _, kind := range kinds {
		rows, err := q.reader.PrimitivesByKind(kind)
		if err != nil {
			return nil, fmt.Errorf("primitives: %w", err)
		}
		for _, r := range rows {
			if filter.match(r) {
				matched = append(matched, r)
			}
		}
	}

	result := &PagedResult[*Row]{Items: []*Row{}, TotalCount: len(matched)}
	if page.Offset < len(matched) {
		end := min(page.Offset+page.Limit, len(matched))
		result.Items = matched[page.Offset:end]
	}
	return result, nil
}

// --- Digest Endpoints ---

// TypeStats summarises one type for Summary.
type TypeStats struct {
	Name       string
	Kind       string
	Members    int
	Attributes int
}

// Summary is a high-level overview of a reflection database.
type Summary struct {
	FileCount  int
	KindCounts map[string]int
	// TopTypes are the types with the most members, largest first.
	TopTypes []TypeStats
	RunID    string // empty unless the database is a SQLite store
}

// Summary returns a high-level overview of the database with its topN
// largest types.
func (q *QueryBuilder) Summary(topN int) (*Summary, error) {
	files, err := q.reader.Files()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	summary := &Summary{
		FileCount:  len(files),
		KindCounts: make(map[string]int),
		TopTypes:   []TypeStats{},
	}

	var types []TypeStats
	for _, kind := range database.AllKinds {
		rows, err := q.reader.PrimitivesByKind(kind)
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		if len(rows) > 0 {
			summary.KindCounts[kind.String()] = len(rows)
		}
		if topN <= 0 {
			continue
		}
		switch kind {
		case database.KindClass, database.KindTemplateType, database.KindEnum:
		default:
			continue
		}
		for _, r := range rows {
			children, err := q.reader.Children(r.Name)
			if err != nil {
				return nil, fmt.Errorf("summary: children of %s: %w", r.Name, err)
			}
			ts := TypeStats{Name: r.Name, Kind: r.Kind}
			for _, c := range children {
				if k, err := database.ParseKind(c.Kind); err == nil && k.IsAttribute() {
					ts.Attributes++
				} else {
					ts.Members++
				}
			}
			types = append(types, ts)
		}
	}

	if topN > 0 {
		sort.SliceStable(types, func(i, j int) bool {
			if types[i].Members != types[j].Members {
				return types[i].Members > types[j].Members
			}
			return types[i].Name < types[j].Name
		})
		if len(types) > topN {
			types = types[:topN]
		}
		summary.TopTypes = append(summary.TopTypes, types...)
	}

	if summary.RunID, err = q.reader.GetMetadata("run_id"); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return summary, nil
}
