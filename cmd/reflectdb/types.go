package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIPrimitive is a JSON-friendly primitive. Only the fields relevant to
// Kind are set.
type CLIPrimitive struct {
	ID         int64   `json:"id"`
	Kind       string  `json:"kind"`
	Name       string  `json:"name"`
	Hash       string  `json:"hash"`
	Parent     string  `json:"parent,omitempty"`
	Size       uint32  `json:"size,omitempty"`
	Type       string  `json:"type,omitempty"`
	Qualifier  string  `json:"qualifier,omitempty"`
	Offset     *int32  `json:"offset,omitempty"`
	Value      *int32  `json:"value,omitempty"`
	Float      float32 `json:"float,omitempty"`
	Text       string  `json:"text,omitempty"`
	Provenance string  `json:"provenance,omitempty"`
}

// CLIFile is a JSON-friendly source file.
type CLIFile struct {
	Path string `json:"path"`
	Hash string `json:"hash,omitempty"`
}

// CLITypeDetail is a JSON-friendly TypeDetail.
type CLITypeDetail struct {
	Type       CLIPrimitive   `json:"type"`
	Members    []CLIPrimitive `json:"members"`
	Attributes []CLIPrimitive `json:"attributes"`
	Bases      []string       `json:"bases"`
	Derived    []string       `json:"derived"`
}

// CLIHierarchyNode is one type reached in a hierarchy walk.
type CLIHierarchyNode struct {
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// CLIHierarchyEdge is one inheritance relation.
type CLIHierarchyEdge struct {
	Derived string `json:"derived"`
	Base    string `json:"base"`
}

// CLITypeHierarchy is a JSON-friendly TypeHierarchy.
type CLITypeHierarchy struct {
	Root        string             `json:"root"`
	Ancestors   []CLIHierarchyNode `json:"ancestors"`
	Descendants []CLIHierarchyNode `json:"descendants"`
	Edges       []CLIHierarchyEdge `json:"edges"`
}

// CLITypeStats is one entry of the summary's largest types.
type CLITypeStats struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Members    int    `json:"members"`
	Attributes int    `json:"attributes"`
}

// CLISummary is a JSON-friendly database summary.
type CLISummary struct {
	FileCount  int            `json:"file_count"`
	KindCounts map[string]int `json:"kind_counts"`
	TopTypes   []CLITypeStats `json:"top_types"`
	RunID      string         `json:"run_id,omitempty"`
}
