package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/reflectdb/internal/store"
)

// metadata(key) → string, empty when unset. Keys include run_id,
// saved_at, primitive_count and file_count.
func makeMetadataFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("metadata", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("metadata", 1, len(args))
		}
		key, err := toString(args[0])
		if err != nil {
			return object.Errorf("metadata: %v", err)
		}
		v, err := s.GetMetadata(key)
		if err != nil {
			return object.Errorf("metadata: %v", err)
		}
		return object.NewString(v)
	})
}

// db_query(sql, args...) → list of maps keyed by column name. Only SELECT
// and WITH statements run.
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) == 0 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got 0")
		}
		query, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		if err := checkReadOnly(query); err != nil {
			return object.Errorf("db_query: %v", err)
		}

		rows, err := s.DB().QueryContext(ctx, query, bindArgs(args[1:])...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		defer rows.Close()

		items, err := rowsToObjects(rows)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		return object.NewList(items)
	})
}

var errWriteQuery = errors.New("only SELECT queries are allowed")

func checkReadOnly(query string) error {
	head := strings.ToUpper(strings.TrimSpace(query))
	for _, kw := range []string{"SELECT", "WITH"} {
		if strings.HasPrefix(head, kw) {
			return nil
		}
	}
	return errWriteQuery
}

// bindArgs converts script values to SQL parameters.
func bindArgs(args []object.Object) []any {
	out := make([]any, 0, len(args))
	for _, a := range args {
		switch v := a.(type) {
		case *object.NilType:
			out = append(out, nil)
		case *object.Int:
			out = append(out, v.Value())
		case *object.Float:
			out = append(out, v.Value())
		case *object.Bool:
			out = append(out, v.Value())
		case *object.String:
			out = append(out, v.Value())
		default:
			out = append(out, a.Inspect())
		}
	}
	return out
}

// rowsToObjects drains rows into one map per row.
func rowsToObjects(rows *sql.Rows) ([]object.Object, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	items := []object.Object{}
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for rows.Next() {
		for i := range values {
			values[i] = nil
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		m := make(map[string]object.Object, len(cols))
		for i, c := range cols {
			m[c] = toObject(values[i])
		}
		items = append(items, object.NewMap(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

// toObject converts a value scanned from SQLite.
func toObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case bool:
		return object.NewBool(val)
	case string:
		return object.NewString(val)
	case []byte:
		return object.NewString(string(val))
	}
	return object.NewString(fmt.Sprint(v))
}

func toInt64(obj object.Object) (int64, error) {
	switch v := obj.(type) {
	case *object.Int:
		return v.Value(), nil
	case *object.Float:
		return int64(v.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
