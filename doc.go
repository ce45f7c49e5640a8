// Package reflectdb extracts C++ reflection metadata: namespaces, types,
// classes, enums, fields, functions, templates and attributes, each keyed by
// a 32-bit hash of its fully qualified name.
//
// # Pipeline
//
// A scan runs in three phases:
//
//  1. Parse: each source file is read and parsed by the frontend, one file
//     at a time. The reflection specs declared by all files
//     (clcpp_reflect, clcpp_reflect_part) are gathered into one table.
//
//  2. Extract: every parsed unit is walked into a private database under
//     the reflect/reflect_part/noreflect visibility policy. Units run on a
//     worker pool unless [WithParallel] is false.
//
//  3. Merge: the private databases are merged in input order into a
//     database seeded with the builtin types.
//
// # Usage
//
//	e, err := reflectdb.New(reflectdb.WithSpecs([]string{"game"}, nil))
//	if err != nil { ... }
//	defer e.Close()
//
//	res, err := e.ScanDirectory(ctx, "path/to/project")
//	_, err = e.Save("reflect.cppbin", "auto", res.Database, res.Files())
//
//	q := e.Query(res.Database)
//	detail, err := q.TypeDetail("game::Actor")
//
// # Persistence
//
// [Engine.Save] writes a compact binary file, a YAML text file or a SQLite
// store, chosen by format or extension (.db, .sqlite and .sqlite3 select
// SQLite; .yaml, .yml, .txt and .csv select text). [Engine.Load] reads any
// of them back. [Engine.Merge] unions several saved databases.
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] or [Engine.OpenQuery] runs
// over either an in-memory database or a SQLite store:
//
//   - [QueryBuilder.Find]: every primitive with a given name.
//   - [QueryBuilder.TypesInFile]: reflected types declared in a file.
//   - [QueryBuilder.TypeDetail]: a type with its members, attributes,
//     bases and derived types.
//   - [QueryBuilder.TypeHierarchy]: transitive bases and derived types.
//   - [QueryBuilder.Primitives]: filtered, paged listing.
//   - [QueryBuilder.Summary]: per-kind counts and the largest types.
//
// # Generators
//
// [Engine.GenerateHeaders] writes a utility header per source file holding
// type hashes and root-first base chains. [Engine.RunGenerators] runs Risor
// scripts that read the database through host functions and emit files.
package reflectdb
