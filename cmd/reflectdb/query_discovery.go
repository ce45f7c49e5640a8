package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/reflectdb"
)

var (
	flagKinds      []string
	flagParent     string
	flagNamePrefix string
	flagContains   string
	flagTop        int
)

// --- Discovery Commands ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List primitives with optional filters",
	Long:  "Lists primitives by kind (namespace, type, class, enum, enum_constant, function, field, template, template_type, container_info or one of the attribute kinds), parent and name.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarise the database",
	Long:  "Returns the file count, primitive counts per kind and the types with the most members.",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	listCmd.Flags().StringSliceVar(&flagKinds, "kind", nil, "filter by kind (repeatable)")
	listCmd.Flags().StringVar(&flagParent, "parent", "", "filter by exact parent name")
	listCmd.Flags().StringVar(&flagNamePrefix, "prefix", "", "filter by name prefix")
	listCmd.Flags().StringVar(&flagContains, "contains", "", "filter by case-insensitive name substring")

	summaryCmd.Flags().IntVar(&flagTop, "top", 10, "number of largest types to include")
}

func runList(cmd *cobra.Command, args []string) error {
	q, closer, err := openQuery()
	if err != nil {
		return outputError("list", err)
	}
	defer closer.Close()

	filter := reflectdb.PrimitiveFilter{
		Kinds:      flagKinds,
		NamePrefix: flagNamePrefix,
		Contains:   flagContains,
	}
	if cmd.Flags().Changed("parent") {
		parent := flagParent
		filter.Parent = &parent
	}

	page, err := q.Primitives(filter, buildPagination())
	if err != nil {
		return outputError("list", err)
	}
	total := page.TotalCount
	return outputResult(CLIResult{Command: "list", Results: rowsToCLI(page.Items), TotalCount: &total})
}

func runSummary(cmd *cobra.Command, args []string) error {
	q, closer, err := openQuery()
	if err != nil {
		return outputError("summary", err)
	}
	defer closer.Close()

	s, err := q.Summary(flagTop)
	if err != nil {
		return outputError("summary", err)
	}
	out := CLISummary{
		FileCount:  s.FileCount,
		KindCounts: s.KindCounts,
		TopTypes:   make([]CLITypeStats, 0, len(s.TopTypes)),
		RunID:      s.RunID,
	}
	for _, t := range s.TopTypes {
		out.TopTypes = append(out.TopTypes, CLITypeStats{Name: t.Name, Kind: t.Kind, Members: t.Members, Attributes: t.Attributes})
	}
	return outputResult(CLIResult{Command: "summary", Results: out})
}
