package reflectdb

import (
	"fmt"

	"github.com/jward/reflectdb/internal/database"
)

// typeDetailKinds are tried in order when looking a type up by name.
var typeDetailKinds = []database.Kind{
	database.KindClass,
	database.KindTemplateType,
	database.KindEnum,
	database.KindType,
}

// TypeDetail bundles a type with everything declared inside it. One call
// replaces four separate reader lookups.
type TypeDetail struct {
	Type       *Row
	Members    []*Row   // fields, methods, enum constants and nested types
	Attributes []*Row   // attributes attached to the type itself
	Bases      []string // direct bases in base-list order
	Derived    []string // direct derived types, sorted
}

// TypeDetail returns the type called name with its members, attributes
// and direct inheritance. Returns nil with no error if no type has that
// name.
func (q *QueryBuilder) TypeDetail(name string) (*TypeDetail, error) {
	var row *Row
	for _, kind := range typeDetailKinds {
		r, err := q.reader.PrimitiveByName(kind, name)
		if err != nil {
			return nil, fmt.Errorf("type detail: %w", err)
		}
		if r != nil {
			row = r
			break
		}
	}
	if row == nil {
		return nil, nil
	}

	children, err := q.reader.Children(name)
	if err != nil {
		return nil, fmt.Errorf("type detail: children: %w", err)
	}
	attrs, err := q.reader.AttributesOf(name)
	if err != nil {
		return nil, fmt.Errorf("type detail: attributes: %w", err)
	}
	bases, err := q.reader.BasesOf(name)
	if err != nil {
		return nil, fmt.Errorf("type detail: bases: %w", err)
	}
	derived, err := q.reader.DerivedTypes(name)
	if err != nil {
		return nil, fmt.Errorf("type detail: derived: %w", err)
	}

	members := []*Row{}
	for _, c := range children {
		kind, err := database.ParseKind(c.Kind)
		if err == nil && kind.IsAttribute() {
			continue
		}
		members = append(members, c)
	}
	if bases == nil {
		bases = []string{}
	}
	if derived == nil {
		derived = []string{}
	}

	return &TypeDetail{
		Type:       row,
		Members:    members,
		Attributes: nonNil(attrs),
		Bases:      bases,
		Derived:    derived,
	}, nil
}
