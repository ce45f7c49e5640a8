package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jward/reflectdb/internal/config"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose bool
	flagNoColor bool
)

// cfg and logger are set by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger = zap.NewNop()
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		if !errorHandled {
			printError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "reflectdb",
	Short:         "C++ reflection database builder",
	Long:          "reflectdb scans C++ sources with tree-sitter, extracts the types, fields, functions, templates and attributes selected by clcpp_reflect specs, and writes a reflection database.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		setNoColor(flagNoColor)

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting cwd: %w", err)
		}
		var loaderOpts []config.LoaderOption
		if flagConfig != "" {
			loaderOpts = append(loaderOpts, config.WithConfigFile(flagConfig))
		}
		cfg, err = config.NewLoader(findRepoRoot(cwd), loaderOpts...).Load()
		if err != nil {
			return err
		}

		logger, err = newLogger(flagVerbose || cfg.Log.Verbose)
		return err
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: output.path from config, relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "query output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .reflectdb/config.yaml in the repo root)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable coloured diagnostics")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(headerCmd)
	rootCmd.AddCommand(genCmd)
}

// newLogger builds a development logger when verbose, otherwise a
// production logger that only reports warnings and errors.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resolveTargetDir returns the absolute path of the directory to scan.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the
// configured output path. Relative paths are taken from repoRoot.
func resolveDBPath(repoRoot string) string {
	p := flagDB
	if p == "" && cfg != nil {
		p = cfg.Output.Path
	}
	if p == "" {
		p = config.Default().Output.Path
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// currentDBPath resolves the database path against the repo root of the
// working directory.
func currentDBPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return "", fmt.Errorf("database not found: %s (run 'reflectdb scan' first)", dbPath)
	}
	return dbPath, nil
}
