// Package analysis defines FileAnalysis, the immutable result of parsing
// and flattening one version of one file.
package analysis

import (
	"cmp"
	"slices"

	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/flatten"
	"github.com/jward/rubyscope/internal/index"
	"github.com/jward/rubyscope/internal/scope"
	"github.com/jward/rubyscope/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// FileAnalysis is one generation of output for a file. Nodes, Index and
// Diagnostics always come from the same parse; a newer generation replaces
// all of them at once. Values are shared read-only between goroutines.
type FileAnalysis struct {
	Identity    string
	Fingerprint string
	Generation  uint64
	Source      string
	Nodes       []ast.Node
	Index       *index.ScopedIndex
	Diagnostics []syntax.Diagnostic
	// Failed is set when no usable tree was produced; Nodes is then empty.
	Failed      bool

	lines *syntax.LineIndex
	byID  map[ast.NodeID]int
}

// Input is everything Build needs.
type Input struct {
	Identity    string
	Fingerprint string
	Generation  uint64
	Source      []byte
	// Tree is nil when the parser produced nothing.
	Tree        *sitter.Tree
	Diagnostics []syntax.Diagnostic
	// Strict treats a tree containing error or missing markers as a
	// failed parse.
	Strict      bool
}

// Build flattens in.Tree. The tree is only read during the call.
func Build(in Input) *FileAnalysis {
	fa := &FileAnalysis{
		Identity:    in.Identity,
		Fingerprint: in.Fingerprint,
		Generation:  in.Generation,
		Source:      string(in.Source),
		Diagnostics: in.Diagnostics,
	}
	if in.Tree == nil || (in.Strict && len(in.Diagnostics) > 0) {
		fa.Failed = true
		fa.Index = index.Empty()
	} else {
		r := flatten.Flatten(in.Tree, in.Source)
		fa.Nodes, fa.Index = r.Nodes, r.Index
	}
	fa.lines = syntax.NewLineIndex(fa.Source)
	fa.byID = make(map[ast.NodeID]int, len(fa.Nodes))
	for i, n := range fa.Nodes {
		fa.byID[n.ID] = i
	}
	return fa
}

// FindScopeGate returns the innermost scope enclosing offset. The boolean
// is false only when the file produced no nodes.
func (fa *FileAnalysis) FindScopeGate(offset int) (scope.Path, bool) {
	return index.FindScope(fa.Nodes, offset)
}

// Node looks up a node by id.
func (fa *FileAnalysis) Node(id ast.NodeID) (ast.Node, bool) {
	i, ok := fa.byID[id]
	if !ok {
		return ast.Node{}, false
	}
	return fa.Nodes[i], true
}

// Members returns the nodes declared directly in p.
func (fa *FileAnalysis) Members(p scope.Path) []ast.Node {
	return fa.Index.Members(p)
}

// Lines converts between offsets and positions in Source.
func (fa *FileAnalysis) Lines() *syntax.LineIndex { return fa.lines }

// Counts tallies nodes by kind.
func (fa *FileAnalysis) Counts() map[ast.Kind]int {
	out := make(map[ast.Kind]int)
	for _, n := range fa.Nodes {
		out[n.Kind()]++
	}
	return out
}

// Symbol is one scope-introducing construct in a file.
type Symbol struct {
	Frame scope.Frame
	// Path is the scope the construct opens.
	Path  scope.Path
	ID    ast.NodeID
	Span  ast.Span
	Start syntax.Point
	End   syntax.Point
}

// Outline lists every class, module and method definition in source order.
func (fa *FileAnalysis) Outline() []Symbol {
	var out []Symbol
	for _, n := range fa.Nodes {
		f, ok := n.Frame()
		if !ok {
			continue
		}
		out = append(out, Symbol{
			Frame: f,
			Path:  n.EffectivePath(),
			ID:    n.ID,
			Span:  n.Span,
			Start: fa.lines.Point(n.Span.Begin),
			End:   fa.lines.Point(n.Span.End),
		})
	}
	slices.SortFunc(out, func(a, b Symbol) int {
		if c := cmp.Compare(a.Span.Begin, b.Span.Begin); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
