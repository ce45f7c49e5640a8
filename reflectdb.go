// Package reflectdb extracts reflection metadata from C++ sources into a
// queryable database of named primitives.
package reflectdb
