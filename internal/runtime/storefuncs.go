package runtime

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/topdeps/internal/store"
)

// Store-backed host functions. Risor cannot work with Go struct pointers
// directly, so rows are returned as lists of maps with primitive values.

// files() → [{id, path, language, hash, unit_count}]
func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := s.Files()
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		results := make([]object.Object, 0, len(files))
		for _, f := range files {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(f.ID),
				"path":       object.NewString(f.Path),
				"language":   object.NewString(f.Language),
				"hash":       object.NewString(f.Hash),
				"unit_count": object.NewInt(int64(f.UnitCount)),
			}))
		}
		return object.NewList(results)
	})
}

// units(path) → [{id, ordinal, kind, text, start_line, end_line}]
func makeUnitsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("units", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("units", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("units: %v", err)
		}
		f, err := s.FileByPath(path)
		if err != nil {
			return object.Errorf("units: %v", err)
		}
		if f == nil {
			return object.NewList([]object.Object{})
		}
		units, err := s.UnitsByFile(f.ID)
		if err != nil {
			return object.Errorf("units: %v", err)
		}
		return unitsToList(units)
	})
}

// dependents(path, ordinal) → [ordinal]
func makeDependentsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("dependents", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("dependents", 2, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("dependents: %v", err)
		}
		ordinal, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("dependents: %v", err)
		}
		f, err := s.FileByPath(path)
		if err != nil {
			return object.Errorf("dependents: %v", err)
		}
		if f == nil {
			return object.Errorf("dependents: %s is not indexed", path)
		}
		u, err := s.UnitAt(f.ID, int(ordinal))
		if err != nil {
			return object.Errorf("dependents: %v", err)
		}
		if u == nil {
			return object.Errorf("dependents: %s has no unit %d", path, ordinal)
		}
		dependents, err := s.DependentsOf(u.ID)
		if err != nil {
			return object.Errorf("dependents: %v", err)
		}
		ordinals := make([]int, len(dependents))
		for i, d := range dependents {
			ordinals[i] = d.Ordinal
		}
		return intsToList(ordinals)
	})
}

// makeDBQueryFn creates a db_query bridge that executes arbitrary read-only SQL.
// Returns a list of maps (column name → value).
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		results, err := queryReadOnly(ctx, s.DB(), sqlStr, queryArgs)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		return object.NewList(results)
	})
}

// queryReadOnly runs query on a dedicated connection with PRAGMA query_only
// set, so every statement in a multi-statement string and every data-modifying
// CTE fails instead of writing. The pragma is cleared before the connection
// goes back to the pool; a connection that cannot be cleared is discarded.
func queryReadOnly(ctx context.Context, db *sql.DB, query string, args []any) ([]object.Object, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("enable query_only: %w", err)
	}
	defer func() {
		if _, resetErr := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF"); resetErr != nil {
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	results := []object.Object{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]object.Object, len(cols))
		for i, col := range cols {
			row[col] = sqlValueToObject(values[i])
		}
		results = append(results, object.NewMap(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return results, nil
}

// --- Conversion helpers ---

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func toBool(obj object.Object) (bool, error) {
	if b, ok := obj.(*object.Bool); ok {
		return b.Value(), nil
	}
	return false, fmt.Errorf("expected bool, got %s", obj.Type())
}

func stringsToList(items []string) object.Object {
	out := make([]object.Object, len(items))
	for i, s := range items {
		out[i] = object.NewString(s)
	}
	return object.NewList(out)
}

func intsToList(items []int) object.Object {
	out := make([]object.Object, len(items))
	for i, n := range items {
		out[i] = object.NewInt(int64(n))
	}
	return object.NewList(out)
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// unitsToList converts stored units to a Risor list of maps.
func unitsToList(units []*store.Unit) object.Object {
	results := make([]object.Object, 0, len(units))
	for _, u := range units {
		results = append(results, object.NewMap(map[string]object.Object{
			"id":         object.NewInt(u.ID),
			"ordinal":    object.NewInt(int64(u.Ordinal)),
			"kind":       object.NewString(u.Kind),
			"text":       object.NewString(u.Text),
			"start_line": object.NewInt(int64(u.StartLine)),
			"end_line":   object.NewInt(int64(u.EndLine)),
		}))
	}
	return object.NewList(results)
}
