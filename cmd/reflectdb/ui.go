package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/jward/reflectdb"
	"github.com/jward/reflectdb/internal/extract"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	locColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen)
)

// setNoColor disables colour output globally.
func setNoColor(off bool) {
	if off {
		color.NoColor = true
	}
}

// printError writes err as a single red line.
func printError(w io.Writer, err error) {
	errorColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}

// printDiagnostics writes one line per diagnostic:
//
//	file:line: warning[kind]: reason
func printDiagnostics(w io.Writer, diags []reflectdb.Diagnostic) {
	for _, d := range diags {
		switch {
		case d.File != "" && d.Line > 0:
			locColor.Fprintf(w, "%s:%d: ", d.File, d.Line)
		case d.File != "":
			locColor.Fprintf(w, "%s: ", d.File)
		}
		c := warnColor
		if d.Kind == extract.Structural {
			c = errorColor
		}
		c.Fprintf(w, "warning[%s]: ", d.Kind)
		fmt.Fprintln(w, d.Reason)
	}
}

type scanSummary struct {
	Files       int
	Primitives  int
	Diagnostics int
	Output      string
	RunID       string
	Elapsed     time.Duration
}

// printScanSummary writes the closing lines of a scan.
func printScanSummary(w io.Writer, s scanSummary) {
	successColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, "Scanned %d file(s) in %s: %d primitives", s.Files, s.Elapsed.Round(time.Millisecond), s.Primitives)
	if s.Diagnostics > 0 {
		warnColor.Fprintf(w, ", %d diagnostic(s)", s.Diagnostics)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Database: %s\n", s.Output)
	if s.RunID != "" {
		fmt.Fprintf(w, "  Run: %s\n", s.RunID)
	}
}
