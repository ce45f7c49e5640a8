package main

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jward/reflectdb"
)

var (
	flagOut         string
	flagOutFormat   string
	flagSpecs       []string
	flagPartial     []string
	flagWorkers     int
	flagSerial      bool
	flagWatch       bool
	flagQuiet       bool
	flagDebounce    time.Duration
	flagHeadersToo  bool
	flagFailOnDiags bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan C++ sources into a reflection database",
	Long: "Discovers C and C++ sources under path, parses them with tree-sitter, extracts everything the clcpp_reflect specs select and writes the database.\n" +
		"The output format follows the file extension unless --output-format is given: .db/.sqlite select SQLite, .yaml/.txt select text, anything else binary.",
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&flagOut, "out", "o", "", "output database (default: --db or output.path)")
	scanCmd.Flags().StringVar(&flagOutFormat, "output-format", "", "database format: auto|binary|text|sqlite (default: output.format)")
	scanCmd.Flags().StringSliceVar(&flagSpecs, "reflect", nil, "extra fully reflected names, like clcpp_reflect")
	scanCmd.Flags().StringSliceVar(&flagPartial, "reflect-part", nil, "extra partially reflected names, like clcpp_reflect_part")
	scanCmd.Flags().IntVar(&flagWorkers, "workers", 0, "extraction workers (default: scan.workers)")
	scanCmd.Flags().BoolVar(&flagSerial, "serial", false, "extract one file at a time")
	scanCmd.Flags().BoolVar(&flagWatch, "watch", false, "rescan whenever a source file changes")
	scanCmd.Flags().DurationVar(&flagDebounce, "debounce", 500*time.Millisecond, "quiet period before a watch rescan")
	scanCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "no progress bar or summary")
	scanCmd.Flags().BoolVar(&flagHeadersToo, "headers", false, "also write utility headers after each scan")
	scanCmd.Flags().BoolVar(&flagFailOnDiags, "strict", false, "exit non-zero when the scan reports diagnostics")
}

func runScan(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)

	out := flagOut
	if out == "" {
		out = resolveDBPath(repoRoot)
	}
	format := flagOutFormat
	if format == "" {
		format = cfg.Output.Format
	}
	if _, err := reflectdb.ResolveFormat(out, format); err != nil {
		return err
	}

	opts := reflectdb.ConfigOptions(cfg)
	opts = append(opts,
		reflectdb.WithLogger(logger),
		reflectdb.WithSpecs(flagSpecs, flagPartial),
		reflectdb.WithParallel(!flagSerial),
	)
	if flagWorkers > 0 {
		opts = append(opts, reflectdb.WithWorkers(flagWorkers))
	}

	var bar *progressbar.ProgressBar
	if !flagQuiet && !flagWatch {
		opts = append(opts, reflectdb.WithProgress(func(string) {
			if bar != nil {
				_ = bar.Add(1)
			}
		}))
	}

	engine, err := reflectdb.New(opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if flagWatch {
		fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", targetDir)
		return engine.Watch(ctx, targetDir, func(res *reflectdb.ScanResult, scanErr error) {
			if err := finishScan(engine, res, scanErr, out, format, time.Now()); err != nil {
				printError(os.Stderr, err)
			}
		}, reflectdb.WithDebounce(flagDebounce))
	}

	start := time.Now()
	paths, err := engine.Discover(targetDir)
	if err != nil {
		return fmt.Errorf("discovering sources: %w", err)
	}
	if !flagQuiet {
		bar = newProgressBar(len(paths))
	}
	res, scanErr := engine.Scan(ctx, paths)
	if bar != nil {
		_ = bar.Finish()
	}
	if err := finishScan(engine, res, scanErr, out, format, start); err != nil {
		return err
	}
	if flagFailOnDiags && len(res.Diagnostics()) > 0 {
		return fmt.Errorf("scan reported %d diagnostic(s)", len(res.Diagnostics()))
	}
	return nil
}

// finishScan reports a scan's diagnostics and saves whatever it produced.
// A scan error is returned after the partial result has been saved.
func finishScan(engine *reflectdb.Engine, res *reflectdb.ScanResult, scanErr error, out, format string, start time.Time) error {
	if res == nil {
		return fmt.Errorf("scanning: %w", scanErr)
	}
	printDiagnostics(os.Stderr, res.Diagnostics())

	runID, err := engine.Save(out, format, res.Database, res.Files())
	if err != nil {
		return fmt.Errorf("saving: %w", err)
	}
	if flagHeadersToo {
		if _, err := engine.GenerateHeaders(res.Database, headerOptions(nil)); err != nil {
			printError(os.Stderr, err)
		}
	}

	if !flagQuiet {
		printScanSummary(os.Stderr, scanSummary{
			Files:       len(res.Units),
			Primitives:  res.Database.Len(),
			Diagnostics: len(res.Diagnostics()),
			Output:      out,
			RunID:       runID,
			Elapsed:     time.Since(start),
		})
	}
	if scanErr != nil {
		return fmt.Errorf("scanning: %w", scanErr)
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Scanning sources"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
