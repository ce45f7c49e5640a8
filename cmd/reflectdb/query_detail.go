package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/reflectdb"
)

// --- Detail Commands ---

var typeDetailCmd = &cobra.Command{
	Use:   "type <name>",
	Short: "Get a type with its members, attributes and direct inheritance",
	Long:  "Looks up a class, template instance, enum or builtin type by qualified name and returns it with everything declared inside it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypeDetail,
}

func runTypeDetail(cmd *cobra.Command, args []string) error {
	q, closer, err := openQuery()
	if err != nil {
		return outputError("type", err)
	}
	defer closer.Close()

	detail, err := q.TypeDetail(args[0])
	if err != nil {
		return outputError("type", err)
	}
	if detail == nil {
		return outputError("type", fmt.Errorf("no type named %q", args[0]))
	}
	return outputResult(CLIResult{Command: "type", Results: typeDetailToCLI(detail)})
}

func typeDetailToCLI(d *reflectdb.TypeDetail) CLITypeDetail {
	return CLITypeDetail{
		Type:       rowToCLI(d.Type),
		Members:    rowsToCLI(d.Members),
		Attributes: rowsToCLI(d.Attributes),
		Bases:      d.Bases,
		Derived:    d.Derived,
	}
}
