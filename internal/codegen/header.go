// Package codegen writes utility headers for reflected source files. A
// header carries the name hash of every type declared in its source file
// and, for classes, the root-first chain of base hashes that lets the
// runtime test inheritance without walking the database.
package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/basechain"
	"github.com/jward/reflectdb/internal/database"
)

// DefaultPrefix prefixes every generated macro.
const DefaultPrefix = "REFLECTDB"

// HeaderSuffix is appended to a source file's stem to name its header.
const HeaderSuffix = ".reflect.h"

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithRoot makes every chain end at root. Classes that do not derive from
// root get a hash define but no chain.
func WithRoot(root string) Option {
	return func(g *Generator) { g.root = root }
}

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// Entry is one type in a header.
type Entry struct {
	Name  database.Name
	Kind  database.Kind
	Ident string
	// Chain lists the type's primary bases root first, ending with the
	// type itself. Empty for enums and for classes outside the root.
	Chain []database.Name
}

// Header is the generated content for one source file.
type Header struct {
	Source string
	Types  []Entry
	// Body is the class named after the source file, if any. It gets a
	// GENERATED_BODY macro.
	Body *Entry
}

// Generator builds utility headers from a database.
type Generator struct {
	db       *database.Database
	resolver *basechain.Resolver
	logger   *zap.Logger
	root     string
	prefix   string

	buf    *bytes.Buffer
	indent int
}

// New creates a Generator over db. Call Close when done.
func New(db *database.Database, opts ...Option) (*Generator, error) {
	r, err := basechain.New(db)
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}
	g := &Generator{
		db:       db,
		resolver: r,
		logger:   zap.NewNop(),
		prefix:   DefaultPrefix,
		buf:      &bytes.Buffer{},
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Close releases the base-chain resolver.
func (g *Generator) Close() {
	g.resolver.Close()
}

// Build collects the types declared in source. A chain that passes through
// a non-primary base aborts the whole file with basechain.ErrNonPrimaryBase.
func (g *Generator) Build(source string) (*Header, error) {
	h := &Header{Source: database.CanonicalPath(source)}
	stem := Stem(source)
	idents := make(map[string]bool)
	body := -1

	for _, prim := range g.db.PrimitivesInFile(source) {
		kind := prim.Kind()
		switch kind {
		case database.KindClass, database.KindTemplateType, database.KindEnum:
		default:
			continue
		}
		name := prim.Identity().Name
		e := Entry{Name: name, Kind: kind, Ident: identifier(name.Text)}
		if idents[e.Ident] {
			e.Ident += "_" + strings.TrimPrefix(database.FormatHash(name.Hash), "0x")
		}
		idents[e.Ident] = true

		if kind != database.KindEnum {
			chain, err := g.chain(name.Text)
			if err != nil {
				return nil, fmt.Errorf("codegen: %s: %w", h.Source, err)
			}
			e.Chain = chain
		}
		h.Types = append(h.Types, e)

		if kind == database.KindClass && leafName(name.Text) == stem {
			if body >= 0 {
				g.logger.Warn("several classes match the file name",
					zap.String("file", h.Source),
					zap.String("kept", h.Types[body].Name.Text),
					zap.String("ignored", name.Text))
				continue
			}
			body = len(h.Types) - 1
		}
	}
	if body >= 0 {
		h.Body = &h.Types[body]
	}
	return h, nil
}

func (g *Generator) chain(name string) ([]database.Name, error) {
	root := g.root
	if root == "" {
		root = g.resolver.Root(name)
	}
	path, err := g.resolver.Chain(name, root)
	if errors.Is(err, basechain.ErrNotFound) {
		g.logger.Debug("class outside chain root", zap.String("class", name), zap.String("root", root))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]database.Name, len(path))
	for i, p := range path {
		out[i] = g.db.GetName(p)
	}
	return out, nil
}

// Generate builds and renders the header for source.
func (g *Generator) Generate(source string) ([]byte, error) {
	h, err := g.Build(source)
	if err != nil {
		return nil, err
	}
	return g.Render(h), nil
}

// WriteFile generates the header for source and writes it to out.
func (g *Generator) WriteFile(source, out string) error {
	h, err := g.Build(source)
	if err != nil {
		return err
	}
	return g.WriteHeader(h, out)
}

// WriteHeader renders a built header to out.
func (g *Generator) WriteHeader(h *Header, out string) error {
	data := g.Render(h)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("codegen: create output dir: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("codegen: write %s: %w", out, err)
	}
	g.logger.Info("wrote utility header", zap.String("source", h.Source), zap.String("header", out), zap.Int("types", len(h.Types)))
	return nil
}

// OutputPath returns the header path for source inside dir. An empty dir
// places the header next to its source.
func OutputPath(source, dir string) string {
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, Stem(source)+HeaderSuffix)
}

// Stem returns the file name of p without directory or extension.
func Stem(p string) string {
	base := filepath.Base(database.CanonicalPath(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func leafName(q string) string {
	depth := 0
	for i := len(q) - 1; i > 0; i-- {
		switch q[i] {
		case '>':
			depth++
		case '<':
			depth--
		case ':':
			if depth == 0 && q[i-1] == ':' {
				return q[i+1:]
			}
		}
	}
	return q
}

// identifier turns a qualified type name into a macro-safe suffix.
func identifier(q string) string {
	var b strings.Builder
	underscore := false
	for _, r := range q {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
				underscore = true
			}
			continue
		}
		b.WriteRune(r)
		underscore = r == '_'
	}
	return strings.TrimRight(b.String(), "_")
}
