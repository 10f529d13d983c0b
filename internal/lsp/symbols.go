package lsp

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/rubyscope"
	"github.com/jward/rubyscope/internal/scope"
)

// textDocumentDocumentSymbol returns the class, module and method outline
// of a document, nested by span.
func (s *Server) textDocumentDocumentSymbol(_ *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	fa, ok := s.engine.Analysis(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return outlineSymbols(fa), nil
}

func outlineSymbols(fa *rubyscope.FileAnalysis) []protocol.DocumentSymbol {
	type tnode struct {
		sym      protocol.DocumentSymbol
		end      int
		children []*tnode
	}

	li := fa.Lines()
	var top, stack []*tnode
	for _, sym := range fa.Outline() {
		for len(stack) > 0 && sym.Span.Begin >= stack[len(stack)-1].end {
			stack = stack[:len(stack)-1]
		}
		detail := sym.Path.String()
		r := toRange(li, sym.Span)
		n := &tnode{
			sym: protocol.DocumentSymbol{
				Name:           sym.Frame.Name,
				Detail:         &detail,
				Kind:           symbolKind(sym.Frame.Kind),
				Range:          r,
				SelectionRange: r,
			},
			end: sym.Span.End,
		}
		if len(stack) == 0 {
			top = append(top, n)
		} else {
			p := stack[len(stack)-1]
			p.children = append(p.children, n)
		}
		stack = append(stack, n)
	}

	var build func(n *tnode) protocol.DocumentSymbol
	build = func(n *tnode) protocol.DocumentSymbol {
		out := n.sym
		for _, c := range n.children {
			out.Children = append(out.Children, build(c))
		}
		return out
	}
	roots := make([]protocol.DocumentSymbol, 0, len(top))
	for _, n := range top {
		roots = append(roots, build(n))
	}
	return roots
}

func symbolKind(k scope.FrameKind) protocol.SymbolKind {
	switch k {
	case scope.Class:
		return protocol.SymbolKindClass
	case scope.Module:
		return protocol.SymbolKindModule
	default:
		return protocol.SymbolKindMethod
	}
}
