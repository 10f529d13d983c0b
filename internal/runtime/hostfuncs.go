package runtime

import (
	"context"
	"os"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/rubyscope/internal/analysis"
	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/syntax"
)

// Risor scripts cannot hold Go analysis values usefully, so every builtin
// returns plain maps and lists and refers to files by identity.

// makeAnalyzeFn creates the "analyze" host function.
//
// analyze(path) → map summary
func makeAnalyzeFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("analyze", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("analyze", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("analyze: path %v", err)
		}
		src, readErr := os.ReadFile(path)
		if readErr != nil {
			return object.Errorf("analyze: reading %s: %v", path, readErr)
		}
		return analyzeSource(ctx, r, path, src)
	})
}

// makeAnalyzeSourceFn creates "analyze_source", which takes the content
// directly.
//
// analyze_source(identity, source) → map summary
func makeAnalyzeSourceFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("analyze_source", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("analyze_source", 2, len(args))
		}
		identity, err := toString(args[0])
		if err != nil {
			return object.Errorf("analyze_source: identity %v", err)
		}
		src, err := toString(args[1])
		if err != nil {
			return object.Errorf("analyze_source: source %v", err)
		}
		return analyzeSource(ctx, r, identity, []byte(src))
	})
}

func analyzeSource(ctx context.Context, r *Runtime, identity string, src []byte) object.Object {
	fa, err := r.analyzer.Analyze(ctx, identity, src)
	if err != nil {
		return object.Errorf("analyze: %v", err)
	}
	r.remember(fa)
	return summaryToMap(fa)
}

// makeLookupFn creates "lookup", which returns the summary of an earlier
// analysis or nil.
//
// lookup(identity) → map summary | nil
func makeLookupFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("lookup", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("lookup", 1, len(args))
		}
		identity, err := toString(args[0])
		if err != nil {
			return object.Errorf("lookup: %v", err)
		}
		fa, ok := r.lookup(identity)
		if !ok {
			return object.Nil
		}
		return summaryToMap(fa)
	})
}

// makeScopeAtFn creates "scope_at".
//
// scope_at(identity, offset) → breadcrumb string | nil
//
// nil means the file produced no nodes at all; the root scope is "".
func makeScopeAtFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("scope_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("scope_at", 2, len(args))
		}
		fa, errObj := analysisArg(r, "scope_at", args[0])
		if errObj != nil {
			return errObj
		}
		offset, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("scope_at: offset %v", err)
		}
		p, ok := fa.FindScopeGate(int(offset))
		if !ok {
			return object.Nil
		}
		return object.NewString(p.String())
	})
}

// makeMembersFn creates "members". The scope is named by its breadcrumb;
// a class and a module rendering the same breadcrumb are merged.
//
// members(identity, breadcrumb) → []map
func makeMembersFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("members", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("members", 2, len(args))
		}
		fa, errObj := analysisArg(r, "members", args[0])
		if errObj != nil {
			return errObj
		}
		crumb, err := toString(args[1])
		if err != nil {
			return object.Errorf("members: breadcrumb %v", err)
		}

		var results []object.Object
		for p, nodes := range fa.Index.All() {
			if p.String() != crumb {
				continue
			}
			for _, n := range nodes {
				results = append(results, nodeToMap(n))
			}
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// makeDiagnosticsFn creates "diagnostics".
//
// diagnostics(identity) → []map
func makeDiagnosticsFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("diagnostics", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("diagnostics", 1, len(args))
		}
		fa, errObj := analysisArg(r, "diagnostics", args[0])
		if errObj != nil {
			return errObj
		}
		results := make([]object.Object, 0, len(fa.Diagnostics))
		for _, d := range fa.Diagnostics {
			results = append(results, diagnosticToMap(d))
		}
		return object.NewList(results)
	})
}

// makeOutlineFn creates "outline".
//
// outline(identity) → []map
func makeOutlineFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("outline", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("outline", 1, len(args))
		}
		fa, errObj := analysisArg(r, "outline", args[0])
		if errObj != nil {
			return errObj
		}
		outline := fa.Outline()
		results := make([]object.Object, 0, len(outline))
		for _, sym := range outline {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(int64(sym.ID)),
				"kind":       object.NewString(sym.Frame.Kind.String()),
				"name":       object.NewString(sym.Frame.Name),
				"path":       object.NewString(sym.Path.String()),
				"depth":      object.NewInt(int64(sym.Path.Depth())),
				"start_line": object.NewInt(int64(sym.Start.Row)),
				"start_col":  object.NewInt(int64(sym.Start.Column)),
				"end_line":   object.NewInt(int64(sym.End.Row)),
				"end_col":    object.NewInt(int64(sym.End.Column)),
			}))
		}
		return object.NewList(results)
	})
}

// makeQueryFn creates the "query" host function. It reparses the
// analyzed source and runs a tree-sitter query over it.
//
// query(identity, pattern) → []map[string]map
//
// Each map has capture names as keys and {type, text, begin, end} values.
func makeQueryFn(r *Runtime) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		fa, errObj := analysisArg(r, "query", args[0])
		if errObj != nil {
			return errObj
		}
		pattern, err := toString(args[1])
		if err != nil {
			return object.Errorf("query: pattern %v", err)
		}

		src := []byte(fa.Source)
		tree, err := syntax.NewParser().Parse(nil, src)
		if err != nil {
			return object.Errorf("query: %v", err)
		}
		defer tree.Close()

		q, err := sitter.NewQuery([]byte(pattern), syntax.Language())
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, tree.RootNode())

		var results []object.Object
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, src)

			matchMap := make(map[string]object.Object)
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				n := capture.Node
				matchMap[name] = object.NewMap(map[string]object.Object{
					"type":  object.NewString(n.Type()),
					"text":  object.NewString(n.Content(src)),
					"begin": object.NewInt(int64(n.StartByte())),
					"end":   object.NewInt(int64(n.EndByte())),
				})
			}
			results = append(results, object.NewMap(matchMap))
		}

		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

func analysisArg(r *Runtime, fn string, arg object.Object) (*analysis.FileAnalysis, object.Object) {
	identity, err := toString(arg)
	if err != nil {
		return nil, object.Errorf("%s: identity %v", fn, err)
	}
	fa, ok := r.lookup(identity)
	if !ok {
		return nil, object.Errorf("%s: %q has not been analyzed", fn, identity)
	}
	return fa, nil
}

func summaryToMap(fa *analysis.FileAnalysis) object.Object {
	return object.NewMap(map[string]object.Object{
		"identity":    object.NewString(fa.Identity),
		"generation":  object.NewInt(int64(fa.Generation)),
		"failed":      object.NewBool(fa.Failed),
		"nodes":       object.NewInt(int64(len(fa.Nodes))),
		"scopes":      object.NewInt(int64(fa.Index.Scopes())),
		"diagnostics": object.NewInt(int64(len(fa.Diagnostics))),
	})
}

func nodeToMap(n ast.Node) object.Object {
	return object.NewMap(map[string]object.Object{
		"id":    object.NewInt(int64(n.ID)),
		"kind":  object.NewString(string(n.Kind())),
		"scope": object.NewString(n.Scope.String()),
		"begin": object.NewInt(int64(n.Span.Begin)),
		"end":   object.NewInt(int64(n.Span.End)),
		"opens": opensToObject(n),
	})
}

// opensToObject returns the breadcrumb a scope-introducing node opens, or nil.
func opensToObject(n ast.Node) object.Object {
	if _, ok := n.Frame(); !ok {
		return object.Nil
	}
	return object.NewString(n.EffectivePath().String())
}

func diagnosticToMap(d syntax.Diagnostic) object.Object {
	return object.NewMap(map[string]object.Object{
		"kind":       object.NewString(d.Kind.String()),
		"construct":  object.NewString(d.ConstructKind),
		"message":    object.NewString(d.Message()),
		"begin":      object.NewInt(int64(d.Span.Begin)),
		"end":        object.NewInt(int64(d.Span.End)),
		"start_line": object.NewInt(int64(d.Start.Row)),
		"start_col":  object.NewInt(int64(d.Start.Column)),
		"end_line":   object.NewInt(int64(d.End.Row)),
		"end_col":    object.NewInt(int64(d.End.Column)),
		"snippet":    object.NewString(d.Snippet),
	})
}
