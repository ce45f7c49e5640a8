package reflectdb

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/ast"
	"github.com/jward/reflectdb/internal/config"
	"github.com/jward/reflectdb/internal/cppfront"
	"github.com/jward/reflectdb/internal/database"
	"github.com/jward/reflectdb/internal/extract"
	"github.com/jward/reflectdb/internal/store"
)

// Engine orchestrates a reflection scan: file discovery, parsing through a
// serialized frontend, per-unit extraction and the final merge.
type Engine struct {
	frontend ast.Frontend
	// feMu serializes frontend calls; ast.Frontend need not be reentrant.
	feMu sync.Mutex

	specs     *ast.SpecTable
	discovery *discovery
	logger    *zap.Logger
	workers   int
	progress  func(path string)

	scriptsDir string
	scriptsFS  fs.FS

	// useParallel enables the worker pool for extraction.
	useParallel bool

	// optErr holds the first option error; New returns it.
	optErr error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger passed to every component.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFrontend replaces the tree-sitter C++ frontend.
func WithFrontend(f ast.Frontend) Option {
	return func(e *Engine) {
		e.frontend = f
	}
}

// WithSpecs adds reflection specs on top of those declared in the scanned
// sources. Full wins over partial for a name listed in both.
func WithSpecs(full, partial []string) Option {
	return func(e *Engine) {
		for _, n := range partial {
			e.specs.Set(strings.TrimSpace(n), ast.SpecPartial)
		}
		for _, n := range full {
			e.specs.Set(strings.TrimSpace(n), ast.SpecFull)
		}
	}
}

// WithPatterns restricts discovery to files matching one of include and
// none of exclude. Patterns are slash-separated globs relative to the
// scanned root.
func WithPatterns(include, exclude []string) Option {
	return func(e *Engine) {
		d, err := newDiscovery(include, exclude)
		if err != nil {
			if e.optErr == nil {
				e.optErr = err
			}
			return
		}
		e.discovery = d
	}
}

// WithWorkers sets the number of extraction workers. Values below one
// select runtime.NumCPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithParallel controls parallel extraction. When true (default), Scan
// extracts units on a worker pool and merges the results in input order.
// Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithProgress registers fn to be called once per scanned file, in input
// order, after the file has been merged.
func WithProgress(fn func(path string)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithScriptsDir sets the directory generator scripts load from.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS configures the Engine to load generator scripts from the
// given filesystem instead of from disk. This enables embedding scripts via
// go:embed. When set, the scripts directory is ignored.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// ConfigOptions translates a loaded configuration into Engine options.
func ConfigOptions(cfg *config.Config) []Option {
	return []Option{
		WithWorkers(cfg.Scan.Workers),
		WithPatterns(cfg.Scan.Include, cfg.Scan.Exclude),
		WithSpecs(cfg.Specs.Full, cfg.Specs.Partial),
	}
}

// New creates an Engine. Without WithFrontend, sources are parsed by the
// tree-sitter C++ frontend.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		specs:       ast.NewSpecTable(),
		logger:      zap.NewNop(),
		useParallel: true, // default to parallel extraction
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.optErr != nil {
		return nil, fmt.Errorf("reflectdb: %w", e.optErr)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	if e.discovery == nil {
		def := config.Default()
		d, err := newDiscovery(def.Scan.Include, def.Scan.Exclude)
		if err != nil {
			return nil, fmt.Errorf("reflectdb: default patterns: %w", err)
		}
		e.discovery = d
	}
	if e.frontend == nil {
		e.frontend = cppfront.New(cppfront.WithLogger(e.logger))
	}
	return e, nil
}

// Close releases the Engine's resources.
func (e *Engine) Close() error {
	return nil
}

// Logger returns the Engine's logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// UnitResult is the outcome of scanning one file.
type UnitResult struct {
	Path string
	// Hash is the content hash of the file, empty when it could not be read.
	Hash        string
	Primitives  int
	Diagnostics []Diagnostic
	// Err is set when the file could not be read or parsed. Such a file
	// contributes nothing to the database.
	Err error
}

// ScanResult is the merged outcome of a scan.
type ScanResult struct {
	Database *Database
	// Units holds one entry per input path, in input order.
	Units []UnitResult
}

// Diagnostics returns every diagnostic of the scan in input order.
func (r *ScanResult) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, u := range r.Units {
		out = append(out, u.Diagnostics...)
	}
	return out
}

// Files returns the store records of every file that was scanned
// successfully.
func (r *ScanResult) Files() []*File {
	var out []*File
	for _, u := range r.Units {
		if u.Err != nil {
			continue
		}
		out = append(out, &File{Path: database.CanonicalPath(u.Path), Hash: u.Hash})
	}
	return out
}

// unitWork carries one file through the scan phases.
type unitWork struct {
	path string
	hash string
	unit *ast.Unit
	db   *database.Database
	res  extract.Result
	err  error
}

// Scan extracts the given files into a new database.
//
// Every file is read and parsed first, one at a time, and the reflection
// specs declared in all of them are gathered into one table. Each parsed
// unit is then extracted into a private database, and the private
// databases are merged in input order. The merged database starts with
// the builtin types.
//
// A file that cannot be read or parsed is skipped and reported in the
// returned error; the result still holds everything else.
func (e *Engine) Scan(ctx context.Context, paths []string) (*ScanResult, error) {
	items, err := e.parseAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	specs := e.gatherSpecs(items)

	if e.useParallel && len(items) > 1 {
		e.extractParallel(ctx, items, specs)
	} else {
		for _, item := range items {
			e.extractUnit(item, specs)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.mergeAll(items)
}

// ScanDirectory discovers the source files under root and scans them.
func (e *Engine) ScanDirectory(ctx context.Context, root string) (*ScanResult, error) {
	paths, err := e.Discover(root)
	if err != nil {
		return nil, err
	}
	return e.Scan(ctx, paths)
}

// parseAll reads and parses each path in order under feMu. Paths are made
// absolute first so locations recorded for a unit do not depend on the cwd.
func (e *Engine) parseAll(ctx context.Context, paths []string) ([]*unitWork, error) {
	items := make([]*unitWork, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		item := &unitWork{path: path}
		items[i] = item

		content, err := os.ReadFile(path)
		if err != nil {
			item.err = fmt.Errorf("read file: %w", err)
			continue
		}
		item.hash = store.ContentHash(content)

		e.feMu.Lock()
		unit, err := e.frontend.Parse(ctx, path, content)
		e.feMu.Unlock()
		if err != nil {
			item.err = fmt.Errorf("parse: %w", err)
			continue
		}
		item.unit = unit
		e.logger.Debug("parsed unit", zap.String("file", path), zap.Int("decls", len(unit.Decls)))
	}
	return items, nil
}

// gatherSpecs overlays the specs declared by every unit on the Engine's
// configured specs.
func (e *Engine) gatherSpecs(items []*unitWork) *ast.SpecTable {
	specs := e.specs
	for _, item := range items {
		if item.unit != nil && item.unit.Specs.Len() > 0 {
			specs = specs.Overlay(item.unit.Specs)
		}
	}
	e.logger.Debug("gathered reflection specs", zap.Int("count", specs.Len()))
	return specs
}

// extractUnit walks one parsed unit into its own database.
func (e *Engine) extractUnit(item *unitWork, specs *ast.SpecTable) {
	if item.unit == nil {
		return
	}
	item.db = database.New(database.WithLogger(e.logger))
	item.res = extract.New(item.db, specs, extract.WithLogger(e.logger)).Walk(item.unit)
}

// mergeAll merges the per-unit databases in input order and collects the
// per-file errors.
func (e *Engine) mergeAll(items []*unitWork) (*ScanResult, error) {
	merged := database.New(database.WithLogger(e.logger))
	merged.AddBaseTypePrimitives()

	result := &ScanResult{
		Database: merged,
		Units:    make([]UnitResult, 0, len(items)),
	}
	var errs []error
	for _, item := range items {
		ur := UnitResult{Path: item.path, Hash: item.hash, Err: item.err}
		if item.err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", item.path, item.err))
			e.logger.Warn("skipping file", zap.String("file", item.path), zap.Error(item.err))
		} else if item.db != nil {
			conflicts := len(merged.Conflicts())
			collisions := len(merged.Names().Collisions())
			database.Merge(merged, item.db, item.path)

			ur.Primitives = item.res.Primitives
			ur.Diagnostics = append(ur.Diagnostics, item.res.Diagnostics...)
			ur.Diagnostics = append(ur.Diagnostics, mergeDiagnostics(merged, item.path, conflicts, collisions)...)
		}
		result.Units = append(result.Units, ur)
		if e.progress != nil {
			e.progress(item.path)
		}
		// Drop the unit's tree and database once merged.
		item.unit, item.db = nil, nil
	}

	e.logger.Info("scan complete",
		zap.Int("files", len(items)),
		zap.Int("primitives", merged.Len()),
		zap.Int("errors", len(errs)),
	)
	if len(errs) > 0 {
		return result, fmt.Errorf("scanning had %d error(s): %w", len(errs), errs[0])
	}
	return result, nil
}

// mergeDiagnostics reports the conflicts and name collisions a merge added
// after the given counts.
func mergeDiagnostics(db *database.Database, unit string, conflicts, collisions int) []Diagnostic {
	var out []Diagnostic
	for _, c := range db.Conflicts()[conflicts:] {
		out = append(out, Diagnostic{
			Kind:   extract.Collision,
			File:   unit,
			Reason: fmt.Sprintf("%s '%s' redefined with different contents", c.Key.Kind, c.New.Identity().Name.Text),
		})
	}
	for _, c := range db.Names().Collisions()[collisions:] {
		out = append(out, Diagnostic{
			Kind:   extract.Collision,
			File:   unit,
			Reason: fmt.Sprintf("names '%s' and '%s' share hash %s", c.Existing, c.New, database.FormatHash(c.Hash)),
		})
	}
	return out
}

// skipDirs are directories never descended into by the walk fallback.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"build":        true,
}

// Discover returns the C and C++ sources under root that pass the
// Engine's patterns, sorted. If root is inside a git repository it uses git
// ls-files to respect .gitignore, otherwise it walks the filesystem
// skipping hidden directories.
func (e *Engine) Discover(root string) ([]string, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		// Not a git repo or git not available: fall back to walk.
		e.logger.Debug("git ls-files unavailable, walking", zap.String("root", root), zap.Error(err))
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}

	var out []string
	for _, p := range paths {
		if !cppfront.IsSource(p) {
			continue
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}
		if e.discovery.accept(filepath.ToSlash(rel)) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root.
func gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, filepath.Join(root, line))
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a
// fallback when git is not available.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}
