package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/reflectdb"
	"github.com/jward/reflectdb/internal/codec"
)

var (
	flagMergeFormat string
	flagDumpOut     string
	flagDumpFormat  string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <output> <input>...",
	Short: "Merge several reflection databases into one",
	Long:  "Loads each input (binary, text or SQLite), unions them in order and writes the result. Conflicting definitions are reported and the later one wins.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMerge,
}

var dumpCmd = &cobra.Command{
	Use:   "dump [database]",
	Short: "Print a reflection database as YAML",
	Long:  "Loads a database in any format and prints its text form to stdout. Use --out to convert it to another file and format instead.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDump,
}

func init() {
	mergeCmd.Flags().StringVar(&flagMergeFormat, "output-format", "auto", "database format: auto|binary|text|sqlite")

	dumpCmd.Flags().StringVarP(&flagDumpOut, "out", "o", "", "write to this file instead of stdout")
	dumpCmd.Flags().StringVar(&flagDumpFormat, "output-format", "auto", "database format for --out: auto|binary|text|sqlite")
}

func runMerge(cmd *cobra.Command, args []string) error {
	out, inputs := args[0], args[1:]
	engine, err := reflectdb.New(reflectdb.WithLogger(logger))
	if err != nil {
		return err
	}
	defer engine.Close()

	db, diags, err := engine.Merge(inputs)
	if err != nil {
		return err
	}
	printDiagnostics(os.Stderr, diags)

	if _, err := engine.Save(out, flagMergeFormat, db, nil); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Merged %d database(s) into %s (%d primitives)\n", len(inputs), out, db.Len())
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		p, err := currentDBPath()
		if err != nil {
			return err
		}
		path = p
	}

	engine, err := reflectdb.New(reflectdb.WithLogger(logger))
	if err != nil {
		return err
	}
	defer engine.Close()

	db, err := engine.Load(path)
	if err != nil {
		return err
	}
	if flagDumpOut != "" {
		_, err := engine.Save(flagDumpOut, flagDumpFormat, db, nil)
		return err
	}

	data, err := codec.Encode(db, codec.FormatText)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
