package rubyscope

import (
	"fmt"

	"github.com/jward/rubyscope/internal/analysis"
	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/scope"
	"github.com/jward/rubyscope/internal/store"
	"github.com/jward/rubyscope/internal/syntax"
)

// Public type aliases for the internal types that appear in the Engine API.
// These are Go type aliases (=), identical to the internal types at compile
// time.

type FileAnalysis = analysis.FileAnalysis
type Symbol = analysis.Symbol
type Node = ast.Node
type NodeID = ast.NodeID
type Span = ast.Span
type Path = scope.Path
type Frame = scope.Frame
type FrameKind = scope.FrameKind
type Diagnostic = syntax.Diagnostic
type Point = syntax.Point
type Store = store.Store

// Range is a half-open byte range [Start, End) in the text an edit applies to.
type Range struct {
	Start int
	End   int
}

// TextEdit replaces Range with Text. A nil Range replaces the whole document.
type TextEdit struct {
	Range *Range
	Text  string
}

// applyEdits applies edits in order; each range refers to the text produced
// by the edits before it.
func applyEdits(text []byte, edits []TextEdit) ([]byte, error) {
	out := text
	for i, ed := range edits {
		if ed.Range == nil {
			out = []byte(ed.Text)
			continue
		}
		r := *ed.Range
		if r.Start < 0 || r.End < r.Start || r.End > len(out) {
			return nil, fmt.Errorf("%w: edit %d replaces %d..%d of %d bytes", ErrEditRange, i, r.Start, r.End, len(out))
		}
		next := make([]byte, 0, len(out)-(r.End-r.Start)+len(ed.Text))
		next = append(next, out[:r.Start]...)
		next = append(next, ed.Text...)
		next = append(next, out[r.End:]...)
		out = next
	}
	return out, nil
}

// endsInReplacement reports whether the last edit replaces the whole
// document, which makes the result independent of the starting text.
func endsInReplacement(edits []TextEdit) bool {
	return len(edits) > 0 && edits[len(edits)-1].Range == nil
}
