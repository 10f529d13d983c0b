// Package index groups flattened nodes by home scope and answers
// offset-to-scope queries.
package index

import (
	"encoding/json"
	"iter"
	"slices"

	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/scope"
)

type entry struct {
	path  scope.Path
	nodes []ast.Node
}

// ScopedIndex maps each scope path to the nodes whose home scope is
// exactly that path, in insertion order. Entries are kept sorted by path
// so lookups are a binary search. The root path is always present.
// A built index is immutable and safe for concurrent readers.
type ScopedIndex struct {
	entries []entry
	count   int
}

// Builder accumulates nodes as a walk emits them.
type Builder struct {
	byKey   map[string]int
	entries []entry
	count   int
}

func NewBuilder() *Builder {
	b := &Builder{byKey: make(map[string]int)}
	b.entries = append(b.entries, entry{path: scope.Root()})
	b.byKey[""] = 0
	return b
}

// Add appends n to the list of its home scope.
func (b *Builder) Add(n ast.Node) {
	key := n.Scope.Key()
	i, ok := b.byKey[key]
	if !ok {
		i = len(b.entries)
		b.entries = append(b.entries, entry{path: n.Scope.Clone()})
		b.byKey[key] = i
	}
	b.entries[i].nodes = append(b.entries[i].nodes, n)
	b.count++
}

// Build sorts the entries and returns the finished index. The builder
// must not be used afterwards.
func (b *Builder) Build() *ScopedIndex {
	entries := b.entries
	b.entries, b.byKey = nil, nil
	slices.SortFunc(entries, func(x, y entry) int { return x.path.Compare(y.path) })
	return &ScopedIndex{entries: entries, count: b.count}
}

// New indexes a complete node collection.
func New(nodes []ast.Node) *ScopedIndex {
	b := NewBuilder()
	for _, n := range nodes {
		b.Add(n)
	}
	return b.Build()
}

// Empty returns an index holding only the root path.
func Empty() *ScopedIndex { return NewBuilder().Build() }

func (ix *ScopedIndex) find(p scope.Path) (int, bool) {
	return slices.BinarySearchFunc(ix.entries, p, func(e entry, target scope.Path) int {
		return e.path.Compare(target)
	})
}

// Members returns the nodes declared directly in p. The returned slice is
// shared with the index and must not be modified.
func (ix *ScopedIndex) Members(p scope.Path) []ast.Node {
	i, ok := ix.find(p)
	if !ok {
		return nil
	}
	nodes := ix.entries[i].nodes
	return nodes[:len(nodes):len(nodes)]
}

func (ix *ScopedIndex) Has(p scope.Path) bool {
	_, ok := ix.find(p)
	return ok
}

// Paths returns every scope path in sorted order.
func (ix *ScopedIndex) Paths() []scope.Path {
	out := make([]scope.Path, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.path.Clone()
	}
	return out
}

// All iterates the entries in path order.
func (ix *ScopedIndex) All() iter.Seq2[scope.Path, []ast.Node] {
	return func(yield func(scope.Path, []ast.Node) bool) {
		for _, e := range ix.entries {
			if !yield(e.path.Clone(), e.nodes[:len(e.nodes):len(e.nodes)]) {
				return
			}
		}
	}
}

// Len is the number of indexed nodes.
func (ix *ScopedIndex) Len() int { return ix.count }

// Scopes is the number of distinct paths, root included.
func (ix *ScopedIndex) Scopes() int { return len(ix.entries) }

// FindScope runs the offset query over every indexed node.
func (ix *ScopedIndex) FindScope(offset int) (scope.Path, bool) {
	if ix.count == 0 {
		return nil, false
	}
	var (
		best  *ast.Node
		depth int
	)
	for _, e := range ix.entries {
		for i := range e.nodes {
			best, depth = better(&e.nodes[i], offset, best, depth)
		}
	}
	return result(best)
}

type entryJSON struct {
	Scope      scope.Path   `json:"scope"`
	Breadcrumb string       `json:"breadcrumb"`
	Nodes      []ast.NodeID `json:"nodes"`
}

func (ix *ScopedIndex) MarshalJSON() ([]byte, error) {
	out := make([]entryJSON, len(ix.entries))
	for i, e := range ix.entries {
		ids := make([]ast.NodeID, len(e.nodes))
		for j, n := range e.nodes {
			ids[j] = n.ID
		}
		out[i] = entryJSON{Scope: e.path.Clone(), Breadcrumb: e.path.String(), Nodes: ids}
	}
	return json.Marshal(out)
}
