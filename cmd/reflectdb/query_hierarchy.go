package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/reflectdb"
)

var flagDepth int

// --- Hierarchy Commands ---

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy <name>",
	Short: "Walk the bases and derived types of a type",
	Long:  "Returns every base reachable from the type and every type deriving from it, up to --depth inheritance edges in each direction.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHierarchy,
}

func init() {
	hierarchyCmd.Flags().IntVar(&flagDepth, "depth", 10, "maximum inheritance edges to follow (max 100)")
}

func runHierarchy(cmd *cobra.Command, args []string) error {
	q, closer, err := openQuery()
	if err != nil {
		return outputError("hierarchy", err)
	}
	defer closer.Close()

	h, err := q.TypeHierarchy(args[0], flagDepth)
	if err != nil {
		return outputError("hierarchy", err)
	}
	if h == nil {
		return outputError("hierarchy", fmt.Errorf("no type named %q", args[0]))
	}
	return outputResult(CLIResult{Command: "hierarchy", Results: hierarchyToCLI(h)})
}

func hierarchyToCLI(h *reflectdb.TypeHierarchy) CLITypeHierarchy {
	out := CLITypeHierarchy{
		Root:        h.Root,
		Ancestors:   make([]CLIHierarchyNode, 0, len(h.Ancestors)),
		Descendants: make([]CLIHierarchyNode, 0, len(h.Descendants)),
		Edges:       make([]CLIHierarchyEdge, 0, len(h.Edges)),
	}
	for _, n := range h.Ancestors {
		out.Ancestors = append(out.Ancestors, CLIHierarchyNode{Name: n.Name, Depth: n.Depth})
	}
	for _, n := range h.Descendants {
		out.Descendants = append(out.Descendants, CLIHierarchyNode{Name: n.Name, Depth: n.Depth})
	}
	for _, e := range h.Edges {
		out.Edges = append(out.Edges, CLIHierarchyEdge{Derived: e.Derived, Base: e.Base})
	}
	return out
}
