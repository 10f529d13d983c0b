package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/rubyscope/internal/store"
)

// makeScopesNamedFn creates "scopes_named", a cross-file definition
// lookup by last path segment.
//
// scopes_named(name) → []map
func makeScopesNamedFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("scopes_named", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("scopes_named", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("scopes_named: %v", err)
		}
		scopes, queryErr := s.ScopesByName(name)
		if queryErr != nil {
			return object.Errorf("scopes_named: %v", queryErr)
		}
		return scopesToList(s, scopes)
	})
}

// makeScopeChainFn creates "scope_chain".
//
// scope_chain(scope_id) → []map, innermost first
func makeScopeChainFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("scope_chain", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("scope_chain", 1, len(args))
		}
		scopeID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("scope_chain: %v", err)
		}

		chain, queryErr := s.ScopeChain(scopeID)
		if queryErr != nil {
			return object.Errorf("scope_chain: %v", queryErr)
		}
		return scopesToList(s, chain)
	})
}

// makeDBQueryFn creates "db_query" for read-only SQL over the store.
//
// db_query(sql, args...) → []map
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
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

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		var results []object.Object
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// scopesToList converts store scopes to a Risor list of maps. The file
// path is resolved once per file.
func scopesToList(s *store.Store, scopes []*store.Scope) object.Object {
	paths := make(map[int64]string)
	results := make([]object.Object, 0, len(scopes))
	for _, sc := range scopes {
		file, ok := paths[sc.FileID]
		if !ok {
			if f, err := s.FileByID(sc.FileID); err == nil && f != nil {
				file = f.Path
			}
			paths[sc.FileID] = file
		}
		m := map[string]object.Object{
			"id":         object.NewInt(sc.ID),
			"file":       object.NewString(file),
			"kind":       object.NewString(sc.Kind),
			"name":       object.NewString(sc.Name),
			"path":       object.NewString(sc.Path),
			"depth":      object.NewInt(int64(sc.Depth)),
			"start_line": object.NewInt(int64(sc.StartLine)),
			"start_col":  object.NewInt(int64(sc.StartCol)),
			"end_line":   object.NewInt(int64(sc.EndLine)),
			"end_col":    object.NewInt(int64(sc.EndCol)),
			"parent_id":  object.Nil,
		}
		if sc.ParentScopeID != nil {
			m["parent_id"] = object.NewInt(*sc.ParentScopeID)
		}
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
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
