package reflectdb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/codegen"
	"github.com/jward/reflectdb/internal/runtime"
	"github.com/jward/reflectdb/internal/store"
)

// HeaderOptions controls utility header generation.
type HeaderOptions struct {
	// Sources limits generation to these files. Empty means every source
	// file in the database.
	Sources []string
	// Root, when set, is the class every base chain must end at.
	Root string
	// Prefix replaces the default macro prefix.
	Prefix string
	// Dir receives the headers. Empty writes each header next to its source.
	Dir string
}

// GenerateHeaders writes a utility header for each source file that
// declares at least one reflected type and returns the written paths.
//
// A file whose base chains break the primary-base rule is not written; its
// error is collected and generation continues with the next file.
func (e *Engine) GenerateHeaders(db *Database, opts HeaderOptions) ([]string, error) {
	g, err := codegen.New(db,
		codegen.WithLogger(e.logger),
		codegen.WithRoot(opts.Root),
		codegen.WithPrefix(opts.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("reflectdb: %w", err)
	}
	defer g.Close()

	sources := opts.Sources
	if len(sources) == 0 {
		sources = db.SourceFiles()
	}

	var (
		written []string
		errs    []error
	)
	for _, src := range sources {
		h, err := g.Build(src)
		if err != nil {
			errs = append(errs, err)
			e.logger.Warn("header generation aborted", zap.String("source", src), zap.Error(err))
			continue
		}
		if len(h.Types) == 0 {
			e.logger.Debug("no reflected types", zap.String("source", src))
			continue
		}
		out := codegen.OutputPath(src, opts.Dir)
		if err := g.WriteHeader(h, out); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, out)
	}

	if len(errs) > 0 {
		return written, fmt.Errorf("header generation had %d error(s): %w", len(errs), errs[0])
	}
	return written, nil
}

// GeneratorOptions controls script generators.
type GeneratorOptions struct {
	// Scripts names the generators to run, either as names under gen/ or as
	// paths ending in .risor.
	Scripts []string
	// OutDir is where scripts emit their files.
	OutDir string
	// StorePath, when it names a SQLite database, is exposed to scripts
	// through db_query and metadata.
	StorePath string
}

// RunGenerators runs each generator script against db and returns the
// files they emitted. Scripts run one after another in the given order.
func (e *Engine) RunGenerators(ctx context.Context, db *Database, opts GeneratorOptions) ([]string, error) {
	rtOpts := []runtime.RuntimeOption{
		runtime.WithLogger(e.logger),
		runtime.WithOutputDir(opts.OutDir),
	}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	if opts.StorePath != "" {
		ok, err := IsSQLite(opts.StorePath)
		if err != nil {
			return nil, fmt.Errorf("reflectdb: %w", err)
		}
		if ok {
			s, err := store.NewStore(opts.StorePath)
			if err != nil {
				return nil, fmt.Errorf("reflectdb: %w", err)
			}
			defer s.Close()
			rtOpts = append(rtOpts, runtime.WithStore(s))
		}
	}

	rt := runtime.NewRuntime(db, e.scriptsDir, rtOpts...)
	defer rt.Close()

	for _, name := range opts.Scripts {
		path := runtime.GeneratorScriptPath(name)
		if err := rt.RunScript(ctx, path, nil); err != nil {
			return rt.Written(), fmt.Errorf("generator %s: %w", name, err)
		}
		e.logger.Debug("generator finished", zap.String("script", path))
	}
	return rt.Written(), nil
}
