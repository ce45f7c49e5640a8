// Package codec persists and restores a metadata database as a compact
// binary file or a human-readable YAML text file.
//
// Both encodings carry the same document: every primitive in per-kind
// insertion order, the inheritance relation with base-list positions, the
// source-location index and provenance.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/database"
)

// Format selects an encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatBinary
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// ParseFormat accepts "binary", "text" or "auto" (FormatUnknown).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "binary", "bin":
		return FormatBinary, nil
	case "text", "yaml", "csv":
		return FormatText, nil
	case "", "auto":
		return FormatUnknown, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

var (
	ErrUnknownFormat = errors.New("codec: unknown database format")
	ErrBadMagic      = errors.New("codec: bad binary magic")
)

const version = 1

var textExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".yaml": true,
	".yml":  true,
}

// FormatForPath picks the encoding implied by a file extension. Text
// extensions select text; everything else is binary.
func FormatForPath(path string) Format {
	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		return FormatText
	}
	return FormatBinary
}

// Sniff identifies the encoding of data from its content.
func Sniff(data []byte) Format {
	if bytes.HasPrefix(data, magic[:]) {
		return FormatBinary
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("version:")) || bytes.HasPrefix(trimmed, []byte("---")) ||
		bytes.HasPrefix(trimmed, []byte("#")) {
		return FormatText
	}
	return FormatUnknown
}

// Option configures decoding.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger passed to decoded databases.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Encode serializes db in format f.
func Encode(db *database.Database, f Format) ([]byte, error) {
	doc := snapshot(db)
	switch f {
	case FormatBinary:
		return encodeBinary(doc)
	case FormatText:
		return encodeText(doc)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// Decode parses data. With FormatUnknown the binary decoder is tried first,
// then the text decoder.
func Decode(data []byte, f Format, opts ...Option) (*database.Database, error) {
	o := buildOptions(opts)
	var (
		doc *document
		err error
	)
	switch f {
	case FormatBinary:
		doc, err = decodeBinary(data)
	case FormatText:
		doc, err = decodeText(data)
	case FormatUnknown:
		doc, err = decodeBinary(data)
		if err != nil {
			var textErr error
			doc, textErr = decodeText(data)
			if textErr != nil {
				return nil, fmt.Errorf("%w: binary: %v; text: %v", ErrUnknownFormat, err, textErr)
			}
			err = nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, err
	}
	return restore(doc, o.logger)
}

// Write stores db at path. FormatUnknown picks the format from the file
// extension.
func Write(path string, db *database.Database, f Format) error {
	if f == FormatUnknown {
		f = FormatForPath(path)
	}
	data, err := Encode(db, f)
	if err != nil {
		return fmt.Errorf("codec: encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("codec: create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("codec: write %s: %w", path, err)
	}
	return nil
}

// Read loads the database at path, reading it as binary and falling back
// to text.
func Read(path string, opts ...Option) (*database.Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codec: read %s: %w", path, err)
	}
	db, err := Decode(data, FormatUnknown, opts...)
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", path, err)
	}
	return db, nil
}

// document is the encoding-neutral form of a database.
type document struct {
	Version     int        `yaml:"version"`
	Primitives  []Record   `yaml:"primitives"`
	Inheritance []edge     `yaml:"inheritance,omitempty"`
	Locations   []location `yaml:"locations,omitempty"`
	Provenance  []origin   `yaml:"provenance,omitempty"`
}

type edge struct {
	Derived string `yaml:"derived"`
	Base    string `yaml:"base"`
	Order   *int   `yaml:"order,omitempty"`
}

type keyRef struct {
	Kind  string `yaml:"kind"`
	Name  string `yaml:"name"`
	Scope uint32 `yaml:"scope,omitempty"`
}

type location struct {
	File string   `yaml:"file"`
	Keys []keyRef `yaml:"keys"`
}

type origin struct {
	keyRef `yaml:",inline"`
	Unit   string `yaml:"unit"`
}

func snapshot(db *database.Database) *document {
	doc := &document{Version: version}
	for _, kind := range database.AllKinds {
		for _, p := range db.Primitives(kind) {
			doc.Primitives = append(doc.Primitives, ToRecord(p))
		}
	}

	for _, ti := range db.TypeInheritances() {
		e := edge{Derived: ti.Derived.Text, Base: ti.Base.Text}
		if o, ok := db.InheritanceOrder(ti.Name); ok {
			e.Order = &o
		}
		doc.Inheritance = append(doc.Inheritance, e)
	}

	for _, file := range db.SourceFiles() {
		loc := location{File: file}
		for _, k := range db.KeysInFile(file) {
			loc.Keys = append(loc.Keys, refOf(db, k))
		}
		doc.Locations = append(doc.Locations, loc)
	}

	for _, kind := range database.AllKinds {
		for _, k := range db.Keys(kind) {
			if unit, ok := db.Provenance(k); ok {
				doc.Provenance = append(doc.Provenance, origin{keyRef: refOf(db, k), Unit: unit})
			}
		}
	}
	return doc
}

func refOf(db *database.Database, k database.Key) keyRef {
	return keyRef{Kind: k.Kind.String(), Name: keyName(db, k), Scope: k.Scope}
}

func (r keyRef) key(db *database.Database) (database.Key, error) {
	kind, err := database.ParseKind(r.Kind)
	if err != nil {
		return database.Key{}, err
	}
	return database.Key{Kind: kind, Hash: db.GetName(r.Name).Hash, Scope: r.Scope}, nil
}

func restore(doc *document, logger *zap.Logger) (*database.Database, error) {
	if doc.Version != version {
		return nil, fmt.Errorf("codec: unsupported version %d", doc.Version)
	}
	db := database.New(database.WithLogger(logger))

	for i, r := range doc.Primitives {
		p, err := FromRecord(db, r)
		if err != nil {
			return nil, fmt.Errorf("codec: primitive %d: %w", i, err)
		}
		db.AddPrimitive(p)
	}

	for _, e := range doc.Inheritance {
		rel := db.AddTypeInheritance(db.GetName(e.Derived), db.GetName(e.Base))
		if e.Order != nil {
			db.SetInheritanceOrder(rel, *e.Order)
		}
	}

	for _, loc := range doc.Locations {
		for _, ref := range loc.Keys {
			k, err := ref.key(db)
			if err != nil {
				return nil, fmt.Errorf("codec: location in %s: %w", loc.File, err)
			}
			db.AddSourceLocation(loc.File, k)
		}
	}

	for _, o := range doc.Provenance {
		k, err := o.key(db)
		if err != nil {
			return nil, fmt.Errorf("codec: provenance: %w", err)
		}
		db.SetProvenance(k, o.Unit)
	}
	return db, nil
}
