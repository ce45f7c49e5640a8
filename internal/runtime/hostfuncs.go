package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/basechain"
	"github.com/jward/reflectdb/internal/codec"
	"github.com/jward/reflectdb/internal/database"
)

// primitiveObject converts a primitive to a Risor map. Every key is always
// present so scripts can index without guarding.
func primitiveObject(p database.Primitive) object.Object {
	rec := codec.ToRecord(p)
	params := make([]object.Object, 0, len(rec.Params))
	for _, prm := range rec.Params {
		params = append(params, object.NewMap(map[string]object.Object{
			"type": object.NewString(prm.Type),
			"ptr":  object.NewBool(prm.Ptr),
		}))
	}
	return object.NewMap(map[string]object.Object{
		"kind":             object.NewString(rec.Kind),
		"name":             object.NewString(rec.Name),
		"hash":             object.NewInt(int64(p.Identity().Name.Hash)),
		"parent":           object.NewString(rec.Parent),
		"size":             object.NewInt(int64(rec.Size)),
		"is_class":         object.NewBool(rec.IsClass),
		"scoped":           object.NewString(rec.Scoped),
		"value":            object.NewInt(int64(rec.Value)),
		"type":             object.NewString(rec.Type),
		"op":               object.NewString(rec.Op),
		"const":            object.NewBool(rec.Const),
		"offset":           object.NewInt(int64(rec.Offset)),
		"unique_id":        object.NewInt(int64(rec.UniqueID)),
		"parent_unique_id": object.NewInt(int64(rec.ParentUniqueID)),
		"params":           object.NewList(params),
		"flags":            object.NewInt(int64(rec.Flags)),
		"count":            object.NewInt(int64(rec.Count)),
		"float":            object.NewFloat(float64(rec.Float)),
		"text":             object.NewString(rec.Text),
		"ref":              object.NewString(rec.Ref),
	})
}

func primitiveList(prims []database.Primitive) object.Object {
	results := make([]object.Object, 0, len(prims))
	for _, p := range prims {
		results = append(results, primitiveObject(p))
	}
	return object.NewList(results)
}

func stringList(items []string) object.Object {
	results := make([]object.Object, 0, len(items))
	for _, s := range items {
		results = append(results, object.NewString(s))
	}
	return object.NewList(results)
}

// makePrimitivesFn creates the "primitives" host function.
//
// primitives(kind) → []map
func makePrimitivesFn(db *database.Database) *object.Builtin {
	return object.NewBuiltin("primitives", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("primitives", 1, len(args))
		}
		kind, err := toKind(args[0])
		if err != nil {
			return object.Errorf("primitives: %v", err)
		}
		return primitiveList(db.Primitives(kind))
	})
}

// makePrimitiveFn creates the "primitive" host function.
//
// primitive(kind, name) → map or nil
func makePrimitiveFn(db *database.Database) *object.Builtin {
	return object.NewBuiltin("primitive", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("primitive", 2, len(args))
		}
		kind, err := toKind(args[0])
		if err != nil {
			return object.Errorf("primitive: %v", err)
		}
		name, err := toString(args[1])
		if err != nil {
			return object.Errorf("primitive: %v", err)
		}
		p, ok := db.GetFirst(kind, database.NewName(name))
		if !ok {
			return object.Nil
		}
		return primitiveObject(p)
	})
}

// children(parent) → []map of every non-attribute primitive whose parent
// is the given name.
func makeChildrenFn(db *database.Database) *object.Builtin {
	return object.NewBuiltin("children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("children", 1, len(args))
		}
		parent, err := toString(args[0])
		if err != nil {
			return object.Errorf("children: %v", err)
		}
		return primitiveList(byParent(db, parent, false))
	})
}

// attributes(parent) → []map
func makeAttributesFn(db *database.Database) *object.Builtin {
	return object.NewBuiltin("attributes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("attributes", 1, len(args))
		}
		parent, err := toString(args[0])
		if err != nil {
			return object.Errorf("attributes: %v", err)
		}
		return primitiveList(byParent(db, parent, true))
	})
}

func byParent(db *database.Database, parent string, attributes bool) []database.Primitive {
	hash := database.HashName(parent)
	var out []database.Primitive
	for _, kind := range database.AllKinds {
		if kind.IsAttribute() != attributes {
			continue
		}
		for _, p := range db.Primitives(kind) {
			if p.Identity().Parent.Hash == hash {
				out = append(out, p)
			}
		}
	}
	return out
}

// types_in_file(path) → []map of the classes, enums and template
// instances declared in path.
func makeTypesInFileFn(db *database.Database) *object.Builtin {
	return object.NewBuiltin("types_in_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("types_in_file", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("types_in_file: %v", err)
		}
		var types []database.Primitive
		for _, p := range db.PrimitivesInFile(path) {
			switch p.Kind() {
			case database.KindClass, database.KindEnum, database.KindTemplateType:
				types = append(types, p)
			}
		}
		return primitiveList(types)
	})
}

// source_files() → []string
func makeSourceFilesFn(db *database.Database) *object.Builtin {
	return object.NewBuiltin("source_files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("source_files", 0, len(args))
		}
		return stringList(db.SourceFiles())
	})
}

// bases(name) → []string in declaration order.
func makeBasesFn(db *database.Database) *object.Builtin {
	return object.NewBuiltin("bases", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("bases", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("bases: %v", err)
		}
		var out []string
		for _, b := range db.BasesOf(database.NewName(name)) {
			out = append(out, b.Text)
		}
		return stringList(out)
	})
}

// derived(name) → []string of the classes that list name as a direct base.
func makeDerivedFn(db *database.Database) *object.Builtin {
	return object.NewBuiltin("derived", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("derived", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("derived: %v", err)
		}
		hash := database.HashName(name)
		var out []string
		for _, ti := range db.TypeInheritances() {
			if ti.Base.Hash == hash {
				out = append(out, ti.Derived.Text)
			}
		}
		return stringList(out)
	})
}

// makeBaseChainFn creates the "base_chain" host function.
//
// base_chain(name) → []string, root first, following primary bases
// base_chain(name, root) → []string, or nil when name does not derive from root
func makeBaseChainFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("base_chain", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 && len(args) != 2 {
			return object.NewArgsRangeError("base_chain", 1, 2, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("base_chain: %v", err)
		}
		res, err := r.baseResolver()
		if err != nil {
			return object.Errorf("base_chain: %v", err)
		}
		root := res.Root(name)
		if len(args) == 2 {
			if root, err = toString(args[1]); err != nil {
				return object.Errorf("base_chain: %v", err)
			}
		}
		chain, err := res.Chain(name, root)
		if errors.Is(err, basechain.ErrNotFound) {
			return object.Nil
		}
		if err != nil {
			return object.Errorf("base_chain: %v", err)
		}
		return stringList(chain)
	})
}

// name_hash(text) → int. Named apart from Risor's builtin hash, which
// returns a byte digest and always wins over a host global of that name.
func makeNameHashFn() *object.Builtin {
	return object.NewBuiltin("name_hash", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("name_hash", 1, len(args))
		}
		text, err := toString(args[0])
		if err != nil {
			return object.Errorf("name_hash: %v", err)
		}
		return object.NewInt(int64(database.HashName(text)))
	})
}

// format_hash(int) → string such as "0x1f2e3d4c"
func makeFormatHashFn() *object.Builtin {
	return object.NewBuiltin("format_hash", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("format_hash", 1, len(args))
		}
		h, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("format_hash: %v", err)
		}
		return object.NewString(database.FormatHash(uint32(h)))
	})
}

// makeEmitFn creates the "emit" host function. The path is relative to
// the output directory and may not leave it.
//
// emit(path, content) → string (the written path)
func makeEmitFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("emit", 2, len(args))
		}
		rel, err := toString(args[0])
		if err != nil {
			return object.Errorf("emit: %v", err)
		}
		content, err := toString(args[1])
		if err != nil {
			return object.Errorf("emit: %v", err)
		}
		if !filepath.IsLocal(rel) {
			return object.Errorf("emit: path %q escapes the output directory", rel)
		}

		full := filepath.Join(r.outDir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return object.Errorf("emit: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return object.Errorf("emit: %v", err)
		}

		r.mu.Lock()
		r.written = append(r.written, full)
		r.mu.Unlock()
		r.logger.Debug("script emitted file", zap.String("path", full), zap.Int("bytes", len(content)))
		return object.NewString(full)
	})
}

func toKind(obj object.Object) (database.Kind, error) {
	s, err := toString(obj)
	if err != nil {
		return database.KindNone, err
	}
	return database.ParseKind(s)
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
