package extract

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/ast"
	"github.com/jward/reflectdb/internal/database"
)

// visibility is the reflection directive resolved for one declaration.
type visibility int

const (
	visNormal visibility = iota
	visReflect
	visReflectPartial
	visNoReflect
)

func (v visibility) String() string {
	switch v {
	case visReflect:
		return "reflect"
	case visReflectPartial:
		return "reflect_part"
	case visNoReflect:
		return "noreflect"
	default:
		return "normal"
	}
}

var (
	hashReflect     = database.HashName("reflect")
	hashReflectPart = database.HashName("reflect_part")
	hashNoReflect   = database.HashName("noreflect")
)

func keywordVisibility(hash uint32) (visibility, bool) {
	switch hash {
	case hashReflect:
		return visReflect, true
	case hashReflectPart:
		return visReflectPartial, true
	case hashNoReflect:
		return visNoReflect, true
	}
	return visNormal, false
}

type locatedAttr struct {
	attr database.Attribute
	loc  ast.Location
}

// classify resolves the visibility of d and, when d will be reflected,
// stores its attributes parented to name. allow is the ambient reflect flag
// inherited from enclosing declarations.
func (w *walker) classify(d *ast.Decl, name string, allow bool) visibility {
	result := visNormal
	switch w.specs.Get(name) {
	case ast.SpecFull:
		result = visReflect
	case ast.SpecPartial:
		result = visReflectPartial
	}

	var parsed []locatedAttr
	for _, ann := range d.Annotations {
		text := strings.TrimPrefix(ann.Text, "attr:")
		list, warn := w.attrs.Parse(w.db, text, ann.Loc.File, ann.Loc.Line)
		if warn != nil {
			w.diags = append(w.diags, Diagnostic{
				Kind:   AttributeSyntax,
				File:   warn.File,
				Line:   warn.Line,
				Reason: warn.Message,
			})
			continue
		}
		for _, a := range list {
			parsed = append(parsed, locatedAttr{attr: a, loc: ann.Loc})
		}
	}

	start := 0
	if len(parsed) > 0 {
		if v, ok := keywordVisibility(parsed[0].attr.Identity().Name.Hash); ok {
			result = v
			start = 1
		}
	}

	if d.IsForwardDeclaration() {
		result = visReflectPartial
	}

	reflected := result != visNoReflect && (allow || result == visReflect || result == visReflectPartial)
	if !reflected {
		return result
	}

	parent := w.db.GetName(name)
	for _, la := range parsed[start:] {
		id := la.attr.Identity()
		if _, ok := keywordVisibility(id.Name.Hash); ok {
			w.report(la.loc, Unsupported, "'"+id.Name.Text+"' attribute unexpected and ignored")
			continue
		}
		w.db.AddPrimitive(la.attr.WithParent(parent))
		w.trace("attribute", zap.String("name", id.Name.Text), zap.String("parent", name))
	}
	return result
}
