package index

import (
	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/scope"
)

// FindScope returns the innermost scope path enclosing offset.
//
// Every node whose span contains offset (inclusive on both ends) is a
// candidate. A candidate's depth is its home scope, plus one frame when the
// node itself opens a scope. The deepest candidate wins. Among candidates
// of equal depth the one that starts later wins, then the narrower one,
// then the one with the higher id.
//
// When no node contains offset the root path is returned. The boolean is
// false only for an empty collection.
func FindScope(nodes []ast.Node, offset int) (scope.Path, bool) {
	if len(nodes) == 0 {
		return nil, false
	}
	var (
		best  *ast.Node
		depth int
	)
	for i := range nodes {
		best, depth = better(&nodes[i], offset, best, depth)
	}
	return result(best)
}

func better(n *ast.Node, offset int, best *ast.Node, depth int) (*ast.Node, int) {
	if !n.Span.Contains(offset) {
		return best, depth
	}
	d := len(n.Scope)
	if _, ok := n.Frame(); ok {
		d++
	}
	if best == nil || d > depth {
		return n, d
	}
	if d < depth {
		return best, depth
	}
	switch {
	case n.Span.Begin != best.Span.Begin:
		if n.Span.Begin > best.Span.Begin {
			return n, d
		}
	case n.Span.End != best.Span.End:
		if n.Span.End < best.Span.End {
			return n, d
		}
	case n.ID > best.ID:
		return n, d
	}
	return best, depth
}

func result(best *ast.Node) (scope.Path, bool) {
	if best == nil {
		return scope.Root(), true
	}
	return best.EffectivePath().Clone(), true
}
