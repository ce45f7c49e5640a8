package reflectdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// benchSource renders a header with n reflected classes, each deriving
// from the previous one and carrying a few fields and an attribute.
func benchSource(ns string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#pragma once\n\nclcpp_reflect(%s)\n\nnamespace %s\n{\n", ns, ns)
	fmt.Fprintf(&b, "    enum class State\n    {\n        Idle,\n        Running = 4,\n        Done\n    };\n\n")
	for i := 0; i < n; i++ {
		base := ""
		if i > 0 {
			base = fmt.Sprintf(" : public Node%d", i-1)
		}
		fmt.Fprintf(&b, "    struct clcpp_attr(category = \"bench\", weight = %d) Node%d%s\n    {\n", i, i, base)
		fmt.Fprintf(&b, "        int id%d;\n        float value%d;\n        State state%d;\n        char tag%d;\n    };\n\n", i, i, i, i)
	}
	b.WriteString("}\n")
	return b.String()
}

// setupBenchFiles writes files headers of classes classes each.
func setupBenchFiles(b *testing.B, files, classes int) []string {
	b.Helper()
	dir := b.TempDir()
	paths := make([]string, files)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("bench%d.h", i))
		src := benchSource(fmt.Sprintf("bench%d", i), classes)
		if err := os.WriteFile(paths[i], []byte(src), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	return paths
}

func benchmarkScan(b *testing.B, parallel bool) {
	paths := setupBenchFiles(b, 16, 20)
	e, err := New(WithParallel(parallel))
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := e.Scan(ctx, paths); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkScan_Parallel(b *testing.B) { benchmarkScan(b, true) }

func BenchmarkScan_Serial(b *testing.B) { benchmarkScan(b, false) }

func BenchmarkSaveSQLite(b *testing.B) {
	paths := setupBenchFiles(b, 4, 20)
	e, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	res, err := e.Scan(context.Background(), paths)
	if err != nil {
		b.Fatal(err)
	}
	out := filepath.Join(b.TempDir(), "bench.db")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Save(out, "sqlite", res.Database, res.Files()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkQueryTypeHierarchy(b *testing.B) {
	paths := setupBenchFiles(b, 1, 50)
	e, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	res, err := e.Scan(context.Background(), paths)
	if err != nil {
		b.Fatal(err)
	}
	q := e.Query(res.Database)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, err := q.TypeHierarchy("bench0::Node25", maxHierarchyDepth)
		if err != nil {
			b.Fatal(err)
		}
		if h == nil {
			b.Fatal("expected hierarchy for bench0::Node25")
		}
	}
}
