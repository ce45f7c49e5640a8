package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatPrimitivesText formats CLIPrimitive results as aligned columns.
func formatPrimitivesText(w io.Writer, prims []CLIPrimitive) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tNAME\tPARENT\tDETAIL")
	for _, p := range prims {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Kind, p.Name, p.Parent, primitiveDetail(p))
	}
	tw.Flush()
}

// primitiveDetail is the kind-specific part of a primitive's text line.
func primitiveDetail(p CLIPrimitive) string {
	var parts []string
	if p.Type != "" {
		t := p.Type
		if p.Qualifier != "" {
			t = p.Qualifier + " " + t
		}
		parts = append(parts, "type="+t)
	}
	if p.Offset != nil {
		parts = append(parts, fmt.Sprintf("offset=%d", *p.Offset))
	}
	if p.Size != 0 {
		parts = append(parts, fmt.Sprintf("size=%d", p.Size))
	}
	if p.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%d", *p.Value))
	}
	if p.Float != 0 {
		parts = append(parts, fmt.Sprintf("value=%g", p.Float))
	}
	if p.Text != "" {
		parts = append(parts, fmt.Sprintf("value=%q", p.Text))
	}
	return strings.Join(parts, " ")
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tHASH")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\n", f.Path, f.Hash)
	}
	tw.Flush()
}

// formatTypeDetailText formats a CLITypeDetail as readable text.
func formatTypeDetailText(w io.Writer, d CLITypeDetail) {
	fmt.Fprintf(w, "%s %s (%s", d.Type.Kind, d.Type.Name, d.Type.Hash)
	if d.Type.Size != 0 {
		fmt.Fprintf(w, ", %d bytes", d.Type.Size)
	}
	fmt.Fprintln(w, ")")

	if len(d.Bases) > 0 {
		fmt.Fprintf(w, "Bases: %s\n", strings.Join(d.Bases, ", "))
	}
	if len(d.Derived) > 0 {
		fmt.Fprintf(w, "Derived: %s\n", strings.Join(d.Derived, ", "))
	}
	if len(d.Attributes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Attributes:")
		for _, a := range d.Attributes {
			fmt.Fprintf(w, "  %s %s\n", a.Name, primitiveDetail(a))
		}
	}
	if len(d.Members) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Members:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, m := range d.Members {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.Kind, m.Name, primitiveDetail(m))
		}
		tw.Flush()
	}
}

// formatHierarchyText formats a CLITypeHierarchy as an indented tree per
// direction.
func formatHierarchyText(w io.Writer, h CLITypeHierarchy) {
	fmt.Fprintln(w, h.Root)
	if len(h.Ancestors) > 0 {
		fmt.Fprintln(w, "Ancestors:")
		for _, n := range h.Ancestors {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", n.Depth), n.Name)
		}
	}
	if len(h.Descendants) > 0 {
		fmt.Fprintln(w, "Descendants:")
		for _, n := range h.Descendants {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", n.Depth), n.Name)
		}
	}
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, summary CLISummary) {
	fmt.Fprintln(w, "Database Summary")
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Files: %d\n", summary.FileCount)
	if summary.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", summary.RunID)
	}
	fmt.Fprintln(w)

	if len(summary.KindCounts) > 0 {
		fmt.Fprintln(w, "Primitive Kinds:")
		kinds := make([]string, 0, len(summary.KindCounts))
		for kind := range summary.KindCounts {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", kind, summary.KindCounts[kind])
		}
		fmt.Fprintln(w)
	}

	if len(summary.TopTypes) > 0 {
		fmt.Fprintln(w, "Largest Types:")
		for _, t := range summary.TopTypes {
			fmt.Fprintf(w, "  %s (%s) - %d members, %d attributes\n",
				t.Name, t.Kind, t.Members, t.Attributes)
		}
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIPrimitive:
		formatPrimitivesText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLITypeDetail:
		formatTypeDetailText(w, v)
	case CLITypeHierarchy:
		formatHierarchyText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIPrimitive:
		return len(r)
	case []CLIFile:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
