package lsp

import (
	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/rubyscope"
	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/syntax"
)

// LSP positions count UTF-16 code units; everything behind the engine
// counts bytes.

func toPoint(p protocol.Position) syntax.Point {
	return syntax.Point{Row: int(p.Line), Column: int(p.Character)}
}

func toPosition(li *syntax.LineIndex, offset int) protocol.Position {
	p := li.UTF16Point(offset)
	return protocol.Position{Line: safeUint(p.Row), Character: safeUint(p.Column)}
}

func toRange(li *syntax.LineIndex, span ast.Span) protocol.Range {
	return protocol.Range{Start: toPosition(li, span.Begin), End: toPosition(li, span.End)}
}

// safeUint clamps values that do not fit a protocol.UInteger to zero.
func safeUint(n int) protocol.UInteger {
	v, err := safecast.Conv[protocol.UInteger](n)
	if err != nil {
		return 0
	}
	return v
}

// changesToEdits converts didChange content changes to byte-range edits.
// Each range is resolved against the text produced by the changes before
// it, so text is updated locally as the changes are walked.
func changesToEdits(text string, changes []any) []rubyscope.TextEdit {
	edits := make([]rubyscope.TextEdit, 0, len(changes))
	for _, change := range changes {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			edits = append(edits, rubyscope.TextEdit{Text: c.Text})
			text = c.Text
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				edits = append(edits, rubyscope.TextEdit{Text: c.Text})
				text = c.Text
				continue
			}
			li := syntax.NewLineIndex(text)
			start := li.OffsetUTF16(toPoint(c.Range.Start))
			end := li.OffsetUTF16(toPoint(c.Range.End))
			if end < start {
				start, end = end, start
			}
			edits = append(edits, rubyscope.TextEdit{
				Range: &rubyscope.Range{Start: start, End: end},
				Text:  c.Text,
			})
			text = text[:start] + c.Text + text[end:]
		default:
			log.Warningf("ignoring content change of type %T", change)
		}
	}
	return edits
}
