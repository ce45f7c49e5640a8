package extract

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/ast"
	"github.com/jward/reflectdb/internal/database"
)

// guard is the set of template instantiations currently being
// materialized along one decomposition call tree. It has value semantics:
// with returns an extended copy, so sibling branches never see each other's
// entries.
type guard map[string]struct{}

func (g guard) has(name string) bool {
	_, ok := g[name]
	return ok
}

func (g guard) with(name string) guard {
	out := make(guard, len(g)+1)
	for k := range g {
		out[k] = struct{}{}
	}
	out[name] = struct{}{}
	return out
}

// paramInfo is a decomposed type: its name, qualifier and array extent.
type paramInfo struct {
	typeName   string
	qualifier  database.Qualifier
	arrayCount uint32
}

// pendingField is a field built but not yet stored, together with the
// container description of an array field.
type pendingField struct {
	field     database.Field
	container *database.ContainerInfo
}

// canonical strips typedef and elaborated sugar, carrying qualifiers down to
// the underlying type.
func canonical(t *ast.Type) *ast.Type {
	if t == nil {
		return nil
	}
	constQ, volatileQ := false, false
	for (t.Class == ast.TypeTypedef || t.Class == ast.TypeElaborated) && t.Elem != nil {
		constQ = constQ || t.Const
		volatileQ = volatileQ || t.Volatile
		t = t.Elem
	}
	if !constQ && !volatileQ {
		return t
	}
	c := *t
	c.Const = c.Const || constQ
	c.Volatile = c.Volatile || volatileQ
	return &c
}

var tagKeywords = []string{"enum ", "struct ", "class "}

func stripTags(s string) string {
	for _, kw := range tagKeywords {
		s = strings.ReplaceAll(s, kw, "")
	}
	return s
}

// getParameterInfo decomposes t: one level of fixed-size array, typedef
// sugar, one level of pointer or lvalue reference, typedef sugar again.
// What remains must be a builtin, enum, record or template specialization.
// Template instantiations met on the way are materialized.
func (w *walker) getParameterInfo(t *ast.Type, g guard) (paramInfo, error) {
	var info paramInfo
	if t == nil {
		return info, warnf("Type is missing")
	}

	ct := t
	if ct.Class == ast.TypeConstantArray {
		if ct.ArrayLen > math.MaxUint32 {
			return info, warnf("Array size too big (%d)", ct.ArrayLen)
		}
		info.arrayCount = uint32(ct.ArrayLen)
		ct = ct.Elem
	}

	ct = canonical(ct)

	switch ct.Class {
	case ast.TypePointer:
		info.qualifier.Op = database.OpPointer
		ct = ct.Elem
	case ast.TypeLValueReference:
		info.qualifier.Op = database.OpReference
		ct = ct.Elem
	}

	ct = canonical(ct)
	if ct == nil {
		return info, warnf("Type is missing")
	}

	info.qualifier.IsConst = ct.Const
	info.typeName = ct.Name

	switch ct.Class {
	case ast.TypeTemplateSpecialization, ast.TypeBuiltin, ast.TypeEnum, ast.TypeElaborated, ast.TypeRecord:
	default:
		return info, warnf("Type class is unknown")
	}

	if !g.has(info.typeName) {
		name, err := w.parseTemplateSpecialisation(ct, g)
		if err != nil {
			return info, err
		}
		if name != "" {
			info.typeName = name
		}
	}

	info.typeName = stripTags(info.typeName)
	info.typeName = strings.ReplaceAll(info.typeName, " *", "*")
	info.typeName = strings.ReplaceAll(info.typeName, " &", "&")
	return info, nil
}

// makeField decomposes t into a field of parent. index is the byte offset
// of a data member or the position of a parameter.
func (w *walker) makeField(t *ast.Type, name, parent string, index int32) (pendingField, error) {
	info, err := w.getParameterInfo(t, nil)
	if err != nil {
		return pendingField{}, joinWarn(err, "Failure to make field '%s'", name)
	}
	pf := pendingField{field: database.Field{
		Ident:     database.Ident{Name: w.db.GetName(name), Parent: w.db.GetName(parent)},
		Type:      w.db.GetName(info.typeName),
		Qualifier: info.qualifier,
		Offset:    index,
	}}
	if info.arrayCount > 0 {
		pf.container = &database.ContainerInfo{
			Ident: database.Ident{Name: w.db.GetName(parent + "::" + name)},
			Flags: database.ContainerIsCArray,
			Count: info.arrayCount,
		}
	}
	return pf, nil
}

// parseBaseClass records derived → base with the base's position in the
// base list, materializing the base if it is a template instantiation.
func (w *walker) parseBaseClass(derived database.Name, b ast.Base, order int, g guard) (database.Name, error) {
	bt := canonical(b.Type)
	if bt == nil {
		return database.Name{}, warnf("Base class of '%s' has no type", derived.Text)
	}
	typeName := strings.ReplaceAll(bt.Name, "struct ", "")
	typeName = strings.ReplaceAll(typeName, "class ", "")

	if b.Virtual {
		return database.Name{}, warnf("Class '%s' is an unsupported virtual base class", typeName)
	}

	name, err := w.parseTemplateSpecialisation(bt, g)
	if err != nil {
		return database.Name{}, err
	}
	if name != "" {
		typeName = name
	}

	base := w.db.GetName(typeName)
	rel := w.db.AddTypeInheritance(derived, base)
	w.db.SetInheritanceOrder(rel, order)
	return base, nil
}

// parseTemplateSpecialisation materializes t if it is a class template
// instantiation and returns its instantiation name. Other types yield "".
func (w *walker) parseTemplateSpecialisation(t *ast.Type, g guard) (string, error) {
	if t.Spec == nil {
		return "", nil
	}
	if !t.Spec.Declared {
		// The instantiation may be complete in another unit; merging fills
		// it in.
		if t.Class == ast.TypeTemplateSpecialization {
			return "", errSilent
		}
		return "", nil
	}
	name, err := w.materialize(t.Spec, g)
	if err != nil {
		return name, joinWarn(err, "Couldn't parse template specialisation parameter '%s'", name)
	}
	return name, nil
}

// materialize creates the TemplateType for s once per instantiation name.
func (w *walker) materialize(s *ast.Specialization, g guard) (string, error) {
	var b strings.Builder
	b.WriteString(s.Template)
	b.WriteByte('<')

	if len(s.Args) > database.MaxTemplateArgs {
		return s.Template, warnf("Only %d template arguments are supported; template has %d",
			database.MaxTemplateArgs, len(s.Args))
	}

	var args [database.MaxTemplateArgs]paramInfo
	for i, a := range s.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		switch a.Kind {
		case ast.ArgIntegral:
			b.WriteString(strconv.FormatInt(a.Value, 10))
		case ast.ArgType:
			info, err := w.getParameterInfo(a.Type, g)
			if err != nil {
				return s.Template, joinWarn(err, "Unsupported template parameter type %d", i+1)
			}
			if info.qualifier.Op == database.OpReference {
				return s.Template, warnf("Unsupported reference type as template parameter %d", i+1)
			}
			if info.arrayCount > 0 {
				return s.Template, warnf("Unsupported array template parameter %d", i+1)
			}
			b.WriteString(info.typeName)
			if info.qualifier.Op == database.OpPointer {
				b.WriteByte('*')
			}
			args[i] = info
		default:
			return s.Template, warnf("Unsupported non-type template parameter %d", i+1)
		}
	}
	b.WriteByte('>')
	name := b.String()

	if g.has(name) {
		return name, nil
	}
	typeName := w.db.GetName(name)
	if _, ok := database.First[database.TemplateType](w.db, typeName); ok {
		return name, nil
	}

	if len(s.Bases) > 0 {
		g = g.with(name)
	}
	var bases []string
	for i, base := range s.Bases {
		bn, err := w.parseBaseClass(typeName, base, i, g)
		if err != nil {
			return name, joinWarn(err, "Failure to create template type due to invalid base class")
		}
		bases = append(bases, bn.Text)
	}

	tt := database.TemplateType{
		Ident: database.Ident{Name: typeName, Parent: w.db.GetName(s.Template)},
		Size:  uint32(s.Size),
	}
	for i := range s.Args {
		tt.ParameterTypes[i] = w.db.GetName(args[i].typeName)
		tt.ParameterPtrs[i] = args[i].qualifier.Op == database.OpPointer
	}
	k := w.db.AddPrimitive(tt)
	w.addLocation(s.Loc, k)
	w.trace("template type", zap.String("name", name), zap.Strings("bases", bases))
	return name, nil
}
