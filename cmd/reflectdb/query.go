package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/reflectdb"
	"github.com/jward/reflectdb/internal/database"
)

var (
	flagLimit  int
	flagOffset int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a reflection database",
	Long:  "Run queries against a scanned reflection database in any format. Names are fully qualified, e.g. game::Actor.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	queryCmd.AddCommand(findCmd)
	queryCmd.AddCommand(typesCmd)
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(typeDetailCmd)
	queryCmd.AddCommand(listCmd)
	queryCmd.AddCommand(summaryCmd)
	queryCmd.AddCommand(hierarchyCmd)
}

// --- Helpers ---

// openQuery opens the database from the --db flag path (or default).
func openQuery() (*reflectdb.QueryBuilder, io.Closer, error) {
	dbPath, err := currentDBPath()
	if err != nil {
		return nil, nil, err
	}
	engine, err := reflectdb.New(reflectdb.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return engine.OpenQuery(dbPath)
}

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		printError(os.Stderr, err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() reflectdb.Pagination {
	return reflectdb.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// rowToCLI converts a saved primitive to a CLIPrimitive.
func rowToCLI(r *reflectdb.Row) CLIPrimitive {
	p := CLIPrimitive{
		ID:         r.ID,
		Kind:       r.Kind,
		Name:       r.Name,
		Hash:       database.FormatHash(database.HashName(r.Name)),
		Parent:     r.Parent,
		Size:       r.Size,
		Type:       r.Type,
		Float:      r.Float,
		Text:       r.Text,
		Provenance: r.Provenance,
	}
	switch r.Kind {
	case database.KindField.String():
		offset := r.Offset
		p.Offset = &offset
		p.Qualifier = qualifierText(r)
	case database.KindEnumConstant.String(), database.KindIntAttribute.String():
		value := r.Value
		p.Value = &value
	}
	return p
}

func rowsToCLI(rows []*reflectdb.Row) []CLIPrimitive {
	out := make([]CLIPrimitive, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToCLI(r))
	}
	return out
}

// qualifierText renders a field's qualifier as it would read in C++.
func qualifierText(r *reflectdb.Row) string {
	q := r.Op
	if q == "value" {
		q = ""
	}
	if r.Const {
		if q == "" {
			return "const"
		}
		return "const " + q
	}
	return q
}

// --- Lookup Commands ---

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find every primitive with a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closer, err := openQuery()
		if err != nil {
			return outputError("find", err)
		}
		defer closer.Close()

		rows, err := q.Find(args[0])
		if err != nil {
			return outputError("find", err)
		}
		return outputResult(CLIResult{Command: "find", Results: rowsToCLI(rows)})
	},
}

var typesCmd = &cobra.Command{
	Use:   "types <file>",
	Short: "List the reflected types declared in a source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("types", err)
		}
		q, closer, err := openQuery()
		if err != nil {
			return outputError("types", err)
		}
		defer closer.Close()

		rows, err := q.TypesInFile(file)
		if err != nil {
			return outputError("types", err)
		}
		return outputResult(CLIResult{Command: "types", Results: rowsToCLI(rows)})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the source files recorded in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closer, err := openQuery()
		if err != nil {
			return outputError("files", err)
		}
		defer closer.Close()

		files, err := q.Files()
		if err != nil {
			return outputError("files", err)
		}
		out := make([]CLIFile, 0, len(files))
		for _, f := range files {
			out = append(out, CLIFile{Path: f.Path, Hash: f.Hash})
		}
		return outputResult(CLIResult{Command: "files", Results: out})
	},
}
