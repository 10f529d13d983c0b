package reparse

import (
	"sync"
	"testing"

	"github.com/jward/rubyscope/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingParser counts calls and remembers whether a reuse base was given.
type recordingParser struct {
	mu    sync.Mutex
	calls int
	bases []bool
}

func (p *recordingParser) Parse(old *sitter.Tree, src []byte) (*sitter.Tree, error) {
	p.mu.Lock()
	p.calls++
	p.bases = append(p.bases, old != nil)
	p.mu.Unlock()
	return syntax.NewParser().Parse(old, src)
}

func collect(dst *Result, sexp *string) Consumer {
	return func(r Result) error {
		*dst = r
		*sexp = r.Tree.RootNode().String()
		return nil
	}
}

func TestWholeDocumentEdit(t *testing.T) {
	t.Parallel()

	oldEnd := syntax.EndPosition([]byte("class Foo; end"))
	newEnd := syntax.EndPosition([]byte("class Foo; end\n\n"))
	edit, err := WholeDocumentEdit(oldEnd, newEnd)
	require.NoError(t, err)

	assert.Equal(t, uint32(0), edit.StartIndex)
	assert.Equal(t, uint32(14), edit.OldEndIndex)
	assert.Equal(t, uint32(16), edit.NewEndIndex)
	assert.Equal(t, sitter.Point{}, edit.StartPoint)
	assert.Equal(t, sitter.Point{Row: 0, Column: 14}, edit.OldEndPoint)
	assert.Equal(t, sitter.Point{Row: 2, Column: 0}, edit.NewEndPoint)
}

func TestMinimalEdit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                  string
		before, after         string
		start, oldEnd, newEnd uint32
		startPoint, newEndPt  sitter.Point
	}{
		{
			name: "replace one byte", before: "class Foo; end", after: "class Fob; end",
			start: 8, oldEnd: 9, newEnd: 9,
			startPoint: sitter.Point{Row: 0, Column: 8}, newEndPt: sitter.Point{Row: 0, Column: 9},
		},
		{
			name: "insert line", before: "a\nc", after: "a\nb\nc",
			start: 2, oldEnd: 2, newEnd: 4,
			startPoint: sitter.Point{Row: 1, Column: 0}, newEndPt: sitter.Point{Row: 2, Column: 0},
		},
		{
			name: "delete suffix", before: "x = 1 + 2", after: "x = 1",
			start: 5, oldEnd: 9, newEnd: 5,
			startPoint: sitter.Point{Row: 0, Column: 5}, newEndPt: sitter.Point{Row: 0, Column: 5},
		},
		{
			name: "identical", before: "abc", after: "abc",
			start: 3, oldEnd: 3, newEnd: 3,
			startPoint: sitter.Point{Row: 0, Column: 3}, newEndPt: sitter.Point{Row: 0, Column: 3},
		},
		{
			name: "repeated bytes", before: "aaa", after: "aaaa",
			start: 3, oldEnd: 3, newEnd: 4,
			startPoint: sitter.Point{Row: 0, Column: 3}, newEndPt: sitter.Point{Row: 0, Column: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			edit, err := MinimalEdit([]byte(tt.before), []byte(tt.after))
			require.NoError(t, err)
			assert.Equal(t, tt.start, edit.StartIndex)
			assert.Equal(t, tt.oldEnd, edit.OldEndIndex)
			assert.Equal(t, tt.newEnd, edit.NewEndIndex)
			assert.Equal(t, tt.startPoint, edit.StartPoint)
			assert.Equal(t, tt.newEndPt, edit.NewEndPoint)
		})
	}
}

func TestStateMachine(t *testing.T) {
	t.Parallel()

	for _, minimal := range []bool{false, true} {
		t.Run(map[bool]string{false: "whole document", true: "minimal"}[minimal], func(t *testing.T) {
			t.Parallel()

			p := &recordingParser{}
			r := New(p, WithMinimalEdits(minimal))
			defer r.Close()
			assert.Equal(t, Unparsed, r.State("a.rb"))

			var res Result
			var sexp string
			require.NoError(t, r.Parse("a.rb", []byte("class Foo; end"), collect(&res, &sexp)))
			assert.Equal(t, Parsed, r.State("a.rb"))
			assert.Nil(t, res.Edit)
			assert.Empty(t, res.Diagnostics)

			require.NoError(t, r.Reparse("a.rb", []byte("class Foo; "), collect(&res, &sexp)))
			assert.Equal(t, Parsed, r.State("a.rb"))
			require.NotNil(t, res.Edit)
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, syntax.Missing, res.Diagnostics[0].Kind)

			require.NoError(t, r.Reparse("a.rb", []byte("class Foo; end"), collect(&res, &sexp)))
			assert.Empty(t, res.Diagnostics, "diagnostics are replaced, not merged")

			var fresh Result
			var freshSexp string
			require.NoError(t, New(syntax.NewParser()).Parse("b.rb", []byte("class Foo; end"), collect(&fresh, &freshSexp)))
			assert.Equal(t, freshSexp, sexp, "incremental and fresh parses agree")

			assert.Equal(t, []bool{false, true, true}, p.bases)
		})
	}
}

func TestReparseWithoutTreeFallsBack(t *testing.T) {
	t.Parallel()

	p := &recordingParser{}
	r := New(p)
	defer r.Close()

	var res Result
	var sexp string
	require.NoError(t, r.Reparse("new.rb", []byte("class Foo\n  '\n  end"), collect(&res, &sexp)))
	assert.True(t, res.Fallback)
	assert.Nil(t, res.Edit)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, syntax.Error, res.Diagnostics[0].Kind)
	assert.Equal(t, []bool{false}, p.bases)
	assert.Equal(t, Parsed, r.State("new.rb"))
}

func TestViewAndForget(t *testing.T) {
	t.Parallel()

	r := New(syntax.NewParser())
	defer r.Close()

	assert.False(t, r.View("a.rb", func(*sitter.Tree) {}))
	require.NoError(t, r.Parse("a.rb", []byte("x = 1"), nil))

	var kind string
	assert.True(t, r.View("a.rb", func(tree *sitter.Tree) {
		kind = tree.RootNode().Type()
	}))
	assert.Equal(t, "program", kind)

	r.Forget("a.rb")
	assert.Equal(t, Unparsed, r.State("a.rb"))
	assert.False(t, r.View("a.rb", func(*sitter.Tree) {}))
	r.Forget("a.rb")
}

func TestConsumerErrorIsReturned(t *testing.T) {
	t.Parallel()

	r := New(syntax.NewParser())
	defer r.Close()

	err := r.Parse("a.rb", []byte("x"), func(Result) error { return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, Parsed, r.State("a.rb"), "the tree is stored before the consumer runs")
}
