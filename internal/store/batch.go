package store

import (
	"time"

	"github.com/jward/rubyscope/internal/analysis"
)

// Batch buffers the rows for one file generation in memory using fake
// (negative) IDs. CommitBatch remaps them to real IDs in a single
// transaction, so a reader never sees half of a generation.
type Batch struct {
	File        File
	Scopes      []Scope
	Nodes       []Node
	Diagnostics []Diagnostic

	nextFakeID int64 // starts at -1, decrements
}

func (b *Batch) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

// NewBatch converts an analysis into rows. Every file gets a root scope;
// each class, module and method definition adds one scope row whose parent
// is the scope it was written in.
func NewBatch(fa *analysis.FileAnalysis) *Batch {
	b := &Batch{nextFakeID: -1}
	b.File = File{
		ID:          b.allocFakeID(),
		Path:        fa.Identity,
		Hash:        fa.Fingerprint,
		Generation:  fa.Generation,
		Failed:      fa.Failed,
		NodeCount:   len(fa.Nodes),
		LastIndexed: time.Now(),
	}

	lines := fa.Lines()
	end := len(fa.Source)
	endPt := lines.Point(end)
	root := Scope{
		ID:        b.allocFakeID(),
		FileID:    b.File.ID,
		Kind:      "root",
		StartByte: 0,
		EndByte:   end,
		EndLine:   endPt.Row,
		EndCol:    endPt.Column,
	}
	b.Scopes = append(b.Scopes, root)

	// Reopened classes share a path; the first definition owns it.
	byKey := map[string]int64{"": root.ID}
	for _, sym := range fa.Outline() {
		parentID, ok := byKey[sym.Path.Parent().Key()]
		if !ok {
			parentID = root.ID
		}
		nodeID := int64(sym.ID)
		sc := Scope{
			ID:            b.allocFakeID(),
			FileID:        b.File.ID,
			ParentScopeID: &parentID,
			Kind:          sym.Frame.Kind.String(),
			Name:          sym.Frame.Name,
			Path:          sym.Path.String(),
			Depth:         sym.Path.Depth(),
			NodeID:        &nodeID,
			StartByte:     sym.Span.Begin,
			EndByte:       sym.Span.End,
			StartLine:     sym.Start.Row,
			StartCol:      sym.Start.Column,
			EndLine:       sym.End.Row,
			EndCol:        sym.End.Column,
		}
		if _, dup := byKey[sym.Path.Key()]; !dup {
			byKey[sym.Path.Key()] = sc.ID
		}
		b.Scopes = append(b.Scopes, sc)
	}

	for _, n := range fa.Nodes {
		var scopeID *int64
		if id, ok := byKey[n.Scope.Key()]; ok {
			scopeID = &id
		}
		b.Nodes = append(b.Nodes, Node{
			ID:        b.allocFakeID(),
			FileID:    b.File.ID,
			ScopeID:   scopeID,
			NodeID:    int64(n.ID),
			Kind:      string(n.Kind()),
			StartByte: n.Span.Begin,
			EndByte:   n.Span.End,
		})
	}

	for _, d := range fa.Diagnostics {
		b.Diagnostics = append(b.Diagnostics, Diagnostic{
			ID:            b.allocFakeID(),
			FileID:        b.File.ID,
			Kind:          d.Kind.String(),
			ConstructKind: d.ConstructKind,
			StartByte:     d.Span.Begin,
			EndByte:       d.Span.End,
			StartLine:     d.Start.Row,
			StartCol:      d.Start.Column,
			EndLine:       d.End.Row,
			EndCol:        d.End.Column,
			Snippet:       d.Snippet,
		})
	}
	return b
}
