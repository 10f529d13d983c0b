package flatten

import (
	"github.com/jward/rubyscope/internal/ast"
	sitter "github.com/smacker/go-tree-sitter"
)

// skip drops comments and zero-width recovery tokens; the latter are
// reported as diagnostics instead.
func skip(n *sitter.Node) bool {
	return n == nil || n.IsMissing() || n.Type() == "comment"
}

func span(n *sitter.Node) ast.Span {
	return ast.Span{Begin: int(n.StartByte()), End: int(n.EndByte())}
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *walker) fieldText(n *sitter.Node, field string) string {
	return w.text(n.ChildByFieldName(field))
}

// named returns the named children of n that are not skipped and are not
// one of exclude.
func (w *walker) named(n *sitter.Node, exclude ...*sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if skip(c) || isOneOf(c, exclude) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// body returns the statements of a construct: the contents of its
// body_statement or block_body child, or its remaining named children.
func (w *walker) body(n *sitter.Node, header ...*sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range w.named(n, header...) {
		switch c.Type() {
		case "body_statement", "block_body":
			out = append(out, w.named(c)...)
		default:
			out = append(out, c)
		}
	}
	return out
}

// arguments returns the arguments of a jump such as "return a, b".
func (w *walker) arguments(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range w.named(n) {
		if c.Type() == "argument_list" {
			out = append(out, w.named(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func isOneOf(n *sitter.Node, set []*sitter.Node) bool {
	for _, s := range set {
		if s != nil && sameNode(n, s) {
			return true
		}
	}
	return false
}

// sameNode compares by position and type; siblings never share both.
func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() &&
		a.EndByte() == b.EndByte() &&
		a.Type() == b.Type()
}
