// Package scope models lexical nesting paths and the stack used to build
// them during a tree walk.
package scope

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// FrameKind identifies the construct that introduced a frame.
type FrameKind uint8

const (
	Class FrameKind = iota + 1
	Module
	Def
	Defs
)

func (k FrameKind) String() string {
	switch k {
	case Class:
		return "class"
	case Module:
		return "module"
	case Def:
		return "def"
	case Defs:
		return "defs"
	default:
		return "unknown"
	}
}

// ParseFrameKind is the inverse of FrameKind.String.
func ParseFrameKind(s string) (FrameKind, bool) {
	switch s {
	case "class":
		return Class, true
	case "module":
		return Module, true
	case "def":
		return Def, true
	case "defs":
		return Defs, true
	}
	return 0, false
}

func (k FrameKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FrameKind) UnmarshalText(b []byte) error {
	v, ok := ParseFrameKind(string(b))
	if !ok {
		return fmt.Errorf("scope: unknown frame kind %q", b)
	}
	*k = v
	return nil
}

// Frame is one element of a Path.
type Frame struct {
	Kind FrameKind `json:"kind" msgpack:"kind"`
	Name string    `json:"name" msgpack:"name"`
}

// Compare orders frames by kind, then name.
func (f Frame) Compare(o Frame) int {
	if c := cmp.Compare(f.Kind, o.Kind); c != 0 {
		return c
	}
	return strings.Compare(f.Name, o.Name)
}

func (f Frame) String() string {
	return f.Kind.String() + " " + f.Name
}

// Path is an ordered sequence of frames. The empty path is the top-level
// scope. Paths are treated as values: methods never mutate the receiver.
type Path []Frame

// Root returns the top-level path. It is non-nil so callers can tell a
// found root apart from "no answer".
func Root() Path { return Path{} }

// Join returns a new path with f appended.
func (p Path) Join(f Frame) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, f)
}

// Frames returns a copy of the frames.
func (p Path) Frames() []Frame { return slices.Clone([]Frame(p)) }

func (p Path) Depth() int { return len(p) }

func (p Path) IsRoot() bool { return len(p) == 0 }

// Leaf returns the innermost frame.
func (p Path) Leaf() (Frame, bool) {
	if len(p) == 0 {
		return Frame{}, false
	}
	return p[len(p)-1], true
}

// Parent drops the innermost frame. The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Root()
	}
	return slices.Clone(p[:len(p)-1])
}

// HasPrefix reports whether q is an ancestor of p or equal to it.
func (p Path) HasPrefix(q Path) bool {
	return len(q) <= len(p) && Path(p[:len(q)]).Equal(q)
}

// Compare orders paths frame by frame; a proper prefix sorts first.
func (p Path) Compare(q Path) int {
	return slices.CompareFunc(p, q, Frame.Compare)
}

func (p Path) Equal(q Path) bool {
	return slices.Equal(p, q)
}

// Clone returns an independent copy. The clone of a nil path is the root.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Namespace keeps only the class and module frames.
func (p Path) Namespace() Path {
	out := make(Path, 0, len(p))
	for _, f := range p {
		if f.Kind == Class || f.Kind == Module {
			out = append(out, f)
		}
	}
	return out
}

// Key encodes the path as a string usable as a map key. Distinct paths
// always produce distinct keys.
func (p Path) Key() string {
	var b strings.Builder
	for _, f := range p {
		b.WriteByte(byte('0' + f.Kind))
		b.WriteString(f.Name)
		b.WriteByte(0)
	}
	return b.String()
}

// String renders a breadcrumb: "Foo::Bar#baz" for an instance method,
// "Foo.bar" for a singleton method. The root renders as "".
func (p Path) String() string {
	var b strings.Builder
	for i, f := range p {
		switch f.Kind {
		case Def:
			b.WriteByte('#')
		case Defs:
			b.WriteByte('.')
		default:
			if i > 0 {
				b.WriteString("::")
			}
		}
		b.WriteString(f.Name)
	}
	return b.String()
}
