package reflectdb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/codec"
	"github.com/jward/reflectdb/internal/config"
	"github.com/jward/reflectdb/internal/database"
	"github.com/jward/reflectdb/internal/store"
)

// sqliteExtensions select the SQLite store when the format is auto.
var sqliteExtensions = map[string]bool{
	".db":      true,
	".sqlite":  true,
	".sqlite3": true,
}

// sqliteMagic opens every SQLite 3 database file.
var sqliteMagic = []byte("SQLite format 3\x00")

// ResolveFormat returns the concrete format for writing path: binary, text
// or sqlite. An empty or "auto" format is chosen from the extension.
func ResolveFormat(path, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", config.FormatAuto:
		if sqliteExtensions[strings.ToLower(filepath.Ext(path))] {
			return config.FormatSQLite, nil
		}
		return codec.FormatForPath(path).String(), nil
	case config.FormatSQLite:
		return config.FormatSQLite, nil
	}
	f, err := codec.ParseFormat(format)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

// Save writes db to path. files records the content hash of each scanned
// source and is only used by the SQLite store. It returns the run id of a
// SQLite save, empty otherwise.
func (e *Engine) Save(path, format string, db *Database, files []*File) (string, error) {
	f, err := ResolveFormat(path, format)
	if err != nil {
		return "", fmt.Errorf("reflectdb: save %s: %w", path, err)
	}

	if f != config.FormatSQLite {
		cf, _ := codec.ParseFormat(f)
		if err := codec.Write(path, db, cf); err != nil {
			return "", fmt.Errorf("reflectdb: save: %w", err)
		}
		e.logger.Info("database written", zap.String("path", path), zap.String("format", f), zap.Int("primitives", db.Len()))
		return "", nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("reflectdb: save: create dir: %w", err)
		}
	}
	s, err := openStore(path)
	if err != nil {
		return "", fmt.Errorf("reflectdb: save: %w", err)
	}
	defer s.Close()

	run, err := s.SaveDatabase(db, files)
	if err != nil {
		return "", fmt.Errorf("reflectdb: %w", err)
	}
	e.logger.Info("database saved",
		zap.String("path", path),
		zap.String("run_id", run.ID),
		zap.Int("primitives", run.Primitives),
		zap.Int("files", run.Files),
	)
	return run.ID, nil
}

// Load reads a database written by Save in any format. SQLite files are
// recognized by their header, everything else is read as binary with a
// text fallback.
func (e *Engine) Load(path string) (*Database, error) {
	isSQLite, err := IsSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("reflectdb: load: %w", err)
	}
	if !isSQLite {
		db, err := codec.Read(path, codec.WithLogger(e.logger))
		if err != nil {
			return nil, fmt.Errorf("reflectdb: load: %w", err)
		}
		return db, nil
	}

	s, err := openStore(path)
	if err != nil {
		return nil, fmt.Errorf("reflectdb: load: %w", err)
	}
	defer s.Close()
	db, err := s.LoadDatabase(database.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("reflectdb: %w", err)
	}
	return db, nil
}

// Merge loads every input and unions them in order. Primitives keep the
// unit recorded by their input; primitives without one are attributed to
// the input path.
func (e *Engine) Merge(paths []string) (*Database, []Diagnostic, error) {
	out := database.New(database.WithLogger(e.logger))
	var diags []Diagnostic
	for _, p := range paths {
		db, err := e.Load(p)
		if err != nil {
			return nil, nil, err
		}
		conflicts := len(out.Conflicts())
		collisions := len(out.Names().Collisions())
		database.Merge(out, db, p)
		diags = append(diags, mergeDiagnostics(out, p, conflicts, collisions)...)
		e.logger.Debug("merged input", zap.String("path", p), zap.Int("primitives", db.Len()))
	}
	return out, diags, nil
}

// IsSQLite reports whether the file at path is a SQLite database.
func IsSQLite(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, sqliteMagic), nil
}

func openStore(path string) (*store.Store, error) {
	s, err := store.NewStore(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
