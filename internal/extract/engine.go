// Package extract walks a syntax tree and populates a reflection database
// under the reflect/reflect_part/noreflect visibility policy.
package extract

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/ast"
	"github.com/jward/reflectdb/internal/attrs"
	"github.com/jward/reflectdb/internal/database"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for warnings (Warn) and tree tracing (Debug).
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine extracts primitives from units into one database. An Engine is
// single-threaded; parallel extraction uses one Engine per database.
type Engine struct {
	db     *database.Database
	specs  *ast.SpecTable
	logger *zap.Logger
	attrs  *attrs.Parser
}

// Result summarises one Walk.
type Result struct {
	Unit        string
	Diagnostics []Diagnostic
	// Primitives is the number of primitives the walk added.
	Primitives int
}

// New creates an Engine writing into db. specs may be nil.
func New(db *database.Database, specs *ast.SpecTable, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		specs:  specs,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	e.attrs = attrs.NewParser(attrs.WithLogger(e.logger))
	return e
}

// Database returns the database the engine writes into.
func (e *Engine) Database() *database.Database { return e.db }

// Walk extracts every reflected declaration of unit.
func (e *Engine) Walk(unit *ast.Unit) Result {
	specs := e.specs
	if unit.Specs != nil && unit.Specs.Len() > 0 {
		specs = e.specs.Overlay(unit.Specs)
	}
	w := &walker{
		Engine: e,
		specs:  specs,
		unit:   unit.Path,
	}

	before := e.db.Len()
	conflicts := len(e.db.Conflicts())
	collisions := len(e.db.Names().Collisions())

	for _, d := range unit.Decls {
		switch d.Kind {
		case ast.DeclNamespace, ast.DeclRecord, ast.DeclFunction, ast.DeclEnum, ast.DeclClassTemplate:
			w.addDecl(d, scope{}, false)
		}
	}

	for _, c := range e.db.Conflicts()[conflicts:] {
		w.report(ast.Location{File: unit.Path}, Collision, fmt.Sprintf("%s '%s' redefined with different contents",
			c.Key.Kind, c.New.Identity().Name.Text))
	}
	for _, c := range e.db.Names().Collisions()[collisions:] {
		w.report(ast.Location{File: unit.Path}, Collision, fmt.Sprintf("names '%s' and '%s' share hash %s",
			c.Existing, c.New, database.FormatHash(c.Hash)))
	}

	return Result{
		Unit:        unit.Path,
		Diagnostics: w.diags,
		Primitives:  e.db.Len() - before,
	}
}

// walker holds the state of one Walk.
type walker struct {
	*Engine
	specs *ast.SpecTable
	unit  string
	diags []Diagnostic
}

// scope is where contained declarations land: the qualified parent name
// and, inside records, the layout that supplies field offsets.
type scope struct {
	parent string
	layout *ast.RecordLayout
	offset uint64
}

func (w *walker) report(loc ast.Location, kind DiagnosticKind, reason string) {
	if loc.File == "" {
		loc.File = w.unit
	}
	w.diags = append(w.diags, Diagnostic{Kind: kind, File: loc.File, Line: loc.Line, Reason: reason})
	w.logger.Warn(reason,
		zap.String("file", loc.File),
		zap.Int("line", loc.Line),
		zap.Stringer("kind", kind),
	)
}

// fail reports err against loc unless it is a silent failure.
func (w *walker) fail(loc ast.Location, err error, format string, args ...any) {
	if errors.Is(err, errSilent) {
		return
	}
	reason := fmt.Sprintf(format, args...)
	if err != nil {
		reason += "; " + err.Error()
	}
	w.report(loc, Unsupported, reason)
}

func (w *walker) trace(msg string, fields ...zap.Field) {
	w.logger.Debug(msg, fields...)
}

func (w *walker) addLocation(loc ast.Location, k database.Key) {
	file := loc.File
	if file == "" {
		file = w.unit
	}
	w.db.AddSourceLocation(file, k)
}
