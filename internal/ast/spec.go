package ast

import (
	"sort"
	"sync"
)

// Spec is a reflection directive for a qualified name.
type Spec int

const (
	SpecNone Spec = iota
	SpecPartial
	SpecFull
)

func (s Spec) String() string {
	switch s {
	case SpecFull:
		return "full"
	case SpecPartial:
		return "partial"
	default:
		return "none"
	}
}

// SpecTable maps qualified names to reflection directives. It is read by
// the engine and may be filled concurrently by frontend passes.
type SpecTable struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewSpecTable creates an empty table.
func NewSpecTable() *SpecTable {
	return &SpecTable{specs: make(map[string]Spec)}
}

// Set records a directive. A full directive is never weakened to partial.
func (t *SpecTable) Set(name string, s Spec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.specs == nil {
		t.specs = make(map[string]Spec)
	}
	if cur, ok := t.specs[name]; ok && cur > s {
		return
	}
	t.specs[name] = s
}

// Get returns the directive for name, SpecNone if there is none.
func (t *SpecTable) Get(name string) Spec {
	if t == nil {
		return SpecNone
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.specs[name]
}

// Len returns the number of directives.
func (t *SpecTable) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.specs)
}

// Names returns every name with a directive, sorted.
func (t *SpecTable) Names() []string {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.specs))
	for n := range t.specs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Overlay returns a new table holding the directives of t and then other.
func (t *SpecTable) Overlay(other *SpecTable) *SpecTable {
	out := NewSpecTable()
	for _, src := range []*SpecTable{t, other} {
		for _, n := range src.Names() {
			out.Set(n, src.Get(n))
		}
	}
	return out
}
