package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/reflectdb"
	"github.com/jward/reflectdb/scripts"
)

var (
	flagRoot       string
	flagPrefix     string
	flagHeaderDir  string
	flagGenOut     string
	flagScriptsDir string
)

var headerCmd = &cobra.Command{
	Use:   "header [source]...",
	Short: "Write utility headers with type hashes and base chains",
	Long: "For every source file (default: all files in the database) that declares reflected types, writes <stem>.reflect.h holding each type's name hash and its root-first base chain.\n" +
		"A class named after its file also gets a GENERATED_BODY() macro.",
	RunE: runHeader,
}

var genCmd = &cobra.Command{
	Use:   "gen <script>...",
	Short: "Run generator scripts against the database",
	Long: "Runs Risor generator scripts. A bare name runs a bundled generator (" + fmt.Sprint(scripts.Generators) + "); a path ending in .risor runs that file.\n" +
		"Scripts read the database through host functions and write files with emit().",
	Args: cobra.MinimumNArgs(1),
	RunE: runGen,
}

func init() {
	headerCmd.Flags().StringVar(&flagRoot, "root", "", "class every base chain must end at (default: codegen.root)")
	headerCmd.Flags().StringVar(&flagPrefix, "prefix", "", "macro prefix (default: codegen.prefix)")
	headerCmd.Flags().StringVar(&flagHeaderDir, "dir", "", "output directory (default: codegen.dir, else next to each source)")

	genCmd.Flags().StringVar(&flagGenOut, "out-dir", ".", "directory scripts emit into")
	genCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from disk path instead of embedded")
}

// headerOptions merges the header flags over the codegen config.
func headerOptions(sources []string) reflectdb.HeaderOptions {
	opts := reflectdb.HeaderOptions{Sources: sources}
	if cfg != nil {
		opts.Root = cfg.Codegen.Root
		opts.Prefix = cfg.Codegen.Prefix
		opts.Dir = cfg.Codegen.Dir
	}
	if flagRoot != "" {
		opts.Root = flagRoot
	}
	if flagPrefix != "" {
		opts.Prefix = flagPrefix
	}
	if flagHeaderDir != "" {
		opts.Dir = flagHeaderDir
	}
	return opts
}

func runHeader(cmd *cobra.Command, args []string) error {
	dbPath, err := currentDBPath()
	if err != nil {
		return err
	}
	engine, err := reflectdb.New(reflectdb.WithLogger(logger))
	if err != nil {
		return err
	}
	defer engine.Close()

	db, err := engine.Load(dbPath)
	if err != nil {
		return err
	}

	sources := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return fmt.Errorf("resolving source %q: %w", a, err)
		}
		sources = append(sources, abs)
	}

	written, err := engine.GenerateHeaders(db, headerOptions(sources))
	for _, w := range written {
		fmt.Fprintln(os.Stdout, w)
	}
	return err
}

func runGen(cmd *cobra.Command, args []string) error {
	dbPath, err := currentDBPath()
	if err != nil {
		return err
	}

	opts := []reflectdb.Option{reflectdb.WithLogger(logger)}
	if flagScriptsDir != "" {
		opts = append(opts, reflectdb.WithScriptsDir(flagScriptsDir))
	} else {
		opts = append(opts, reflectdb.WithScriptsFS(scripts.FS))
	}
	engine, err := reflectdb.New(opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	db, err := engine.Load(dbPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	written, err := engine.RunGenerators(ctx, db, reflectdb.GeneratorOptions{
		Scripts:   args,
		OutDir:    flagGenOut,
		StorePath: dbPath,
	})
	for _, w := range written {
		fmt.Fprintln(os.Stdout, w)
	}
	return err
}
