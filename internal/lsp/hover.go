package lsp

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textDocumentHover shows the breadcrumb of the innermost scope at the
// cursor. Top-level positions get no hover.
func (s *Server) textDocumentHover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	fa, ok := s.engine.Analysis(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	offset := fa.Lines().OffsetUTF16(toPoint(params.Position))
	path, ok := fa.FindScopeGate(offset)
	if !ok || path.IsRoot() {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("```ruby\n%s\n```", path),
		},
	}, nil
}
