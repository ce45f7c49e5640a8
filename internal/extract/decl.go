package extract

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/ast"
	"github.com/jward/reflectdb/internal/database"
)

// addDecl reflects d and its members. allow is the ambient reflect flag:
// it is passed down by value so a Reflect directive covers exactly the
// subtree of the declaration that carries it.
func (w *walker) addDecl(d *ast.Decl, sc scope, allow bool) {
	if d.Invalid {
		return
	}
	name := d.QualifiedName
	if name == "" && d.Name != "" {
		name = qualify(sc.parent, d.Name)
	}
	vis := w.classify(d, name, allow)
	switch vis {
	case visNoReflect:
		return
	case visReflect:
		allow = true
	}
	if !allow && vis != visReflectPartial {
		return
	}

	switch d.Kind {
	case ast.DeclNamespace:
		w.addNamespace(d, name, sc.parent, allow)
	case ast.DeclRecord:
		w.addClass(d, name, sc, allow)
	case ast.DeclEnum:
		w.addEnum(d, name, sc.parent)
	case ast.DeclFunction:
		w.addFunction(d, name, sc.parent)
	case ast.DeclMethod:
		w.addMethod(d, name, sc.parent)
	case ast.DeclField:
		w.addField(d, sc)
	case ast.DeclClassTemplate:
		w.addClassTemplate(d, name, sc.parent)
	}
}

func qualify(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "::" + name
}

func (w *walker) addContained(d *ast.Decl, sc scope, allow bool) {
	for _, m := range d.Members {
		w.addDecl(m, sc, allow)
	}
}

func (w *walker) addNamespace(d *ast.Decl, name, parent string, allow bool) {
	n := w.db.GetName(name)
	if _, ok := database.First[database.Namespace](w.db, n); !ok {
		k := w.db.AddPrimitive(database.Namespace{Ident: database.Ident{Name: n, Parent: w.db.GetName(parent)}})
		w.addLocation(d.Loc, k)
		w.trace("namespace", zap.String("name", name))
	}
	w.addContained(d, scope{parent: name}, allow)
}

func (w *walker) addClass(d *ast.Decl, name string, sc scope, allow bool) {
	forward := false
	if !d.Defined {
		// A body-less record that is not free-standing is the implicit
		// declaration introduced by an elaborated type specifier.
		if !d.FreeStanding {
			return
		}
		forward = true
	}

	if d.Tag == ast.TagUnion && !d.Anonymous {
		w.fail(d.Loc, nil, "Union '%s' is not supported", name)
		return
	}

	if !forward {
		for _, b := range d.Bases {
			if b.Virtual {
				w.fail(d.Loc, nil, "Class '%s' has an unsupported virtual base class", name)
				return
			}
		}
	}

	typeName := w.db.GetName(name)
	if !forward {
		for i, b := range d.Bases {
			if _, err := w.parseBaseClass(typeName, b, i, nil); err != nil {
				w.fail(d.Loc, err, "Failed to reflect class '%s'", name)
				return
			}
		}
	}

	if d.Anonymous {
		// Members of an anonymous struct or union belong to the enclosing
		// record, offset by the anonymous member's placement.
		inner := scope{parent: sc.parent, layout: d.Layout, offset: sc.offset}
		if sc.layout != nil {
			inner.offset += sc.layout.Offsets[d]
		}
		w.addContained(d, inner, allow)
		return
	}

	k, ok := w.classKey(typeName)
	if !ok {
		k = w.db.AddPrimitive(database.Class{
			Ident:   database.Ident{Name: typeName, Parent: w.db.GetName(sc.parent)},
			IsClass: d.Tag == ast.TagClass,
		})
	}
	if forward {
		w.trace("forward declaration", zap.String("name", name))
		return
	}

	if d.Layout != nil {
		w.db.SetClassSize(typeName, uint32(d.Layout.Size))
	}
	w.trace("class", zap.String("name", name), zap.Int("bases", len(d.Bases)))
	w.addContained(d, scope{parent: name, layout: d.Layout}, allow)
	w.addLocation(d.Loc, k)
}

func (w *walker) classKey(n database.Name) (database.Key, bool) {
	c, ok := database.First[database.Class](w.db, n)
	if !ok {
		return database.Key{}, false
	}
	return database.KeyOf(c), true
}

func (w *walker) addEnum(d *ast.Decl, name, parent string) {
	scoped := database.EnumUnscoped
	switch d.Scope {
	case ast.EnumScopedClass:
		scoped = database.EnumClass
	case ast.EnumScopedStruct:
		scoped = database.EnumStruct
	}

	enumName := w.db.GetName(name)
	k := w.db.AddPrimitive(database.Enum{
		Ident:  database.Ident{Name: enumName, Parent: w.db.GetName(parent)},
		Scoped: scoped,
	})
	w.addLocation(d.Loc, k)
	w.trace("enum", zap.String("name", name), zap.Stringer("scoped", scoped))

	for _, c := range d.Enumerators {
		// Constants are qualified by the enum's full name so that they stay
		// unique across enums.
		constName := name + "::" + c.Name
		value := int32(uint32(uint64(c.Value)))
		ck := w.db.AddPrimitive(database.EnumConstant{
			Ident: database.Ident{Name: w.db.GetName(constName), Parent: enumName},
			Value: value,
		})
		loc := c.Loc
		if loc.File == "" {
			loc = d.Loc
		}
		w.addLocation(loc, ck)
	}
}

func (w *walker) addFunction(d *ast.Decl, name, parent string) {
	if d.Operator {
		w.fail(d.Loc, nil, "Overloaded operator '%s' is not supported", name)
		return
	}
	w.makeFunction(d, name, parent, nil)
}

func (w *walker) addMethod(d *ast.Decl, name, parent string) {
	if d.Operator {
		w.fail(d.Loc, nil, "Overloaded operator '%s' is not supported", name)
		return
	}

	var params []pendingField
	if !d.Static {
		self := ast.Record(parent)
		self.Const = d.ConstMethod
		this, err := w.makeField(ast.PointerTo(self), "this", name, 0)
		if err != nil {
			w.fail(d.Loc, err, "Failed to reflect method '%s' due to invalid 'this' type", name)
			return
		}
		params = append(params, this)
	}
	w.makeFunction(d, name, parent, params)
}

func (w *walker) makeFunction(d *ast.Decl, name, parent string, params []pendingField) {
	if d.Redeclaration {
		return
	}
	if d.Pure {
		w.fail(d.Loc, nil, "Pure virtual function '%s' can't be reflected", name)
		return
	}

	result := d.Result
	if result == nil {
		result = ast.Builtin("void")
	}
	ret, err := w.makeField(result, "return", name, -1)
	if err != nil {
		w.fail(d.Loc, err, "Failed to reflect function '%s' due to invalid return type", name)
		return
	}

	index := len(params)
	for _, p := range d.Params {
		pname := p.Name
		if pname == "" {
			pname = "unnamed" + strconv.Itoa(index)
		}
		f, err := w.makeField(p.Type, pname, name, int32(index))
		if err != nil {
			w.fail(d.Loc, err, "Failed to reflect function '%s'", name)
			return
		}
		params = append(params, f)
		index++
	}

	fields := make([]database.Field, len(params))
	for i, p := range params {
		fields[i] = p.field
	}
	uid := database.CalculateFunctionUniqueID(fields)

	fk := w.db.AddPrimitive(database.Function{
		Ident:    database.Ident{Name: w.db.GetName(name), Parent: w.db.GetName(parent)},
		UniqueID: uid,
	})
	w.addLocation(d.Loc, fk)
	w.trace("function", zap.String("name", name), zap.Uint32("unique_id", uid))

	if ret.field.Type.Text != "void" {
		w.addParam(d.Loc, ret, uid)
	}
	for _, p := range params {
		w.addParam(d.Loc, p, uid)
	}
}

func (w *walker) addParam(loc ast.Location, p pendingField, uid uint32) {
	p.field.ParentUniqueID = uid
	k := w.db.AddPrimitive(p.field)
	w.addLocation(loc, k)
	if p.container != nil {
		w.db.AddPrimitive(*p.container)
	}
}

func (w *walker) addField(d *ast.Decl, sc scope) {
	// Implicit fields for anonymous records have no name.
	if d.Name == "" {
		return
	}
	offset := sc.offset
	if sc.layout != nil {
		offset += sc.layout.Offsets[d]
	}
	f, err := w.makeField(d.Type, d.Name, sc.parent, int32(offset))
	if err != nil {
		w.fail(d.Loc, err, "Failed to reflect field in '%s'", sc.parent)
		return
	}
	w.db.AddPrimitive(f.field)
	if f.container != nil {
		w.db.AddPrimitive(*f.container)
	}
	w.trace("field", zap.String("name", d.Name), zap.String("type", database.FormatType(f.field)))
}

func (w *walker) addClassTemplate(d *ast.Decl, name, parent string) {
	n := w.db.GetName(name)
	if _, ok := database.First[database.Template](w.db, n); ok {
		return
	}
	if len(d.TemplateParams) > database.MaxTemplateArgs {
		w.fail(d.Loc, nil, "Too many template arguments for '%s'", name)
		return
	}
	k := w.db.AddPrimitive(database.Template{Ident: database.Ident{Name: n, Parent: w.db.GetName(parent)}})
	if d.Defined {
		w.addLocation(d.Loc, k)
	}
	w.trace("template", zap.String("name", name))
}
