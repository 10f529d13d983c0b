// Package ast holds the flattened node model: an arena of nodes that refer
// to each other by id, each stamped with the lexical scope it lives in.
package ast

import (
	"encoding/json"

	"github.com/jward/rubyscope/internal/scope"
)

// NodeID is a per-file id, assigned in pre-order starting at 1.
// The zero value means "no node".
type NodeID int

// Span is a byte range into the source. Containment is inclusive on both
// ends, so an offset equal to End is inside the span.
type Span struct {
	Begin int `json:"begin" msgpack:"begin"`
	End   int `json:"end" msgpack:"end"`
}

func (s Span) Contains(offset int) bool {
	return s.Begin <= offset && offset <= s.End
}

func (s Span) Len() int { return s.End - s.Begin }

// Node is one flattened construct. Scope is the home scope: for a class,
// module or method definition it is the enclosing scope, not the one the
// construct opens.
type Node struct {
	ID      NodeID
	Scope   scope.Path
	Span    Span
	Payload Payload
}

func (n Node) Kind() Kind {
	if n.Payload == nil {
		return KindOther
	}
	return n.Payload.Kind()
}

// Children returns the ids referenced by the payload in source order.
func (n Node) Children() []NodeID {
	if n.Payload == nil {
		return nil
	}
	return n.Payload.Children()
}

// Frame reports the frame this node opens, if it is a class, module or
// method definition.
func (n Node) Frame() (scope.Frame, bool) {
	if si, ok := n.Payload.(ScopeIntroducer); ok {
		return si.Frame(), true
	}
	return scope.Frame{}, false
}

// EffectivePath is the home scope, extended by the node's own frame when
// the node opens a scope.
func (n Node) EffectivePath() scope.Path {
	if f, ok := n.Frame(); ok {
		return n.Scope.Join(f)
	}
	return n.Scope
}

type nodeJSON struct {
	ID      NodeID     `json:"id"`
	Kind    Kind       `json:"kind"`
	Scope   scope.Path `json:"scope"`
	Span    Span       `json:"span"`
	Payload Payload    `json:"payload,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeJSON{
		ID:      n.ID,
		Kind:    n.Kind(),
		Scope:   n.Scope.Clone(),
		Span:    n.Span,
		Payload: n.Payload,
	})
}
