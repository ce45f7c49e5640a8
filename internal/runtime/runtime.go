package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/basechain"
	"github.com/jward/reflectdb/internal/database"
	"github.com/jward/reflectdb/internal/store"
)

// Runtime embeds a Risor VM and exposes a reflection database to generator
// scripts. Scripts read primitives through host functions and write their
// output with emit.
type Runtime struct {
	db         *database.Database
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	outDir     string
	logger     *zap.Logger

	resolverOnce sync.Once
	resolver     *basechain.Resolver
	resolverErr  error

	mu      sync.Mutex
	written []string
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithStore exposes a SQLite store to scripts through db_query.
func WithStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithOutputDir sets the directory emit writes into. Defaults to the
// current directory.
func WithOutputDir(dir string) RuntimeOption {
	return func(r *Runtime) {
		r.outDir = dir
	}
}

// WithLogger sets the logger behind the scripts' log global.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime over db and a scripts directory. db may be
// nil, in which case only log, hash helpers and emit are available.
func NewRuntime(db *database.Database, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		db:         db,
		scriptsDir: scriptsDir,
		outDir:     ".",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases the base-chain resolver if one was built.
func (r *Runtime) Close() {
	if r.resolver != nil {
		r.resolver.Close()
	}
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// Written returns the files emitted so far, sorted.
func (r *Runtime) Written() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.written))
	copy(out, r.written)
	sort.Strings(out)
	return out
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]risor.Option, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, risor.WithGlobal(name, globals[name]))
	}
	// Imported modules compile against every global the VM will hold,
	// Risor's builtins included.
	if imp := r.buildImporter(risor.NewConfig(opts...).GlobalNames()); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter lets scripts import sibling .risor modules from the
// embedded FS or the scripts directory. Nil when neither is set.
func (r *Runtime) buildImporter(globalNames []string) importer.Importer {
	exts := []string{".risor"}
	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  exts,
		})
	case r.scriptsDir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  exts,
		})
	}
	return nil
}

// LoadScript returns the source of a script. Paths are relative to the
// embedded FS when one is set, otherwise to the scripts directory unless
// absolute.
func (r *Runtime) LoadScript(path string) (string, error) {
	var (
		data []byte
		err  error
		from = path
	)
	if r.fsys != nil {
		from = strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err = fs.ReadFile(r.fsys, from)
	} else {
		if !filepath.IsAbs(path) {
			from = filepath.Join(r.scriptsDir, path)
		}
		data, err = os.ReadFile(from)
	}
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", from, err)
	}
	return string(data), nil
}

// GeneratorScriptPath returns the path of a named generator script.
func GeneratorScriptPath(name string) string {
	if strings.HasSuffix(name, ".risor") {
		return name
	}
	return filepath.Join("gen", name+".risor")
}

// baseResolver builds the base-chain resolver on first use.
func (r *Runtime) baseResolver() (*basechain.Resolver, error) {
	r.resolverOnce.Do(func() {
		r.resolver, r.resolverErr = basechain.New(r.db)
	})
	return r.resolver, r.resolverErr
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log":         mustProxy(&logObject{logger: r.logger.Named("script")}),
		"name_hash":   makeNameHashFn(),
		"format_hash": makeFormatHashFn(),
		"emit":        makeEmitFn(r),
	}

	if r.db != nil {
		globals["primitives"] = makePrimitivesFn(r.db)
		globals["primitive"] = makePrimitiveFn(r.db)
		globals["children"] = makeChildrenFn(r.db)
		globals["attributes"] = makeAttributesFn(r.db)
		globals["types_in_file"] = makeTypesInFileFn(r.db)
		globals["source_files"] = makeSourceFilesFn(r.db)
		globals["bases"] = makeBasesFn(r.db)
		globals["derived"] = makeDerivedFn(r.db)
		globals["base_chain"] = makeBaseChainFn(r)
	}

	if r.store != nil {
		globals["metadata"] = makeMetadataFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
