package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) []Diagnostic {
	t.Helper()
	tree, err := NewParser().Parse(nil, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	diags, err := ExtractDiagnostics(tree, []byte(src))
	require.NoError(t, err)
	return diags
}

func TestIsRubyFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"app/models/user.rb", true},
		{"lib/tasks/db.RAKE", true},
		{"foo.gemspec", true},
		{"config.ru", true},
		{"Rakefile", true},
		{"vendor/Gemfile", true},
		{"main.go", false},
		{"README", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRubyFile(tt.path))
		})
	}
}

func TestEndPosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want Position
	}{
		{"empty", "", Position{Byte: 0, Point: Point{Row: 0, Column: 0}}},
		{"single line", "class Foo; end", Position{Byte: 14, Point: Point{Row: 0, Column: 14}}},
		{"only newlines", "\n\n\n", Position{Byte: 3, Point: Point{Row: 3, Column: 0}}},
		{"trailing partial line", "a\nbc", Position{Byte: 4, Point: Point{Row: 1, Column: 2}}},
		{"multibyte column is bytes", "é", Position{Byte: 2, Point: Point{Row: 0, Column: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EndPosition([]byte(tt.src)))
		})
	}
}

func TestToSitter(t *testing.T) {
	t.Parallel()

	p, err := ToSitter(Point{Row: 3, Column: 7})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), p.Row)
	assert.Equal(t, uint32(7), p.Column)
	assert.Equal(t, Point{Row: 3, Column: 7}, FromSitter(p))

	_, err = ToSitter(Point{Row: -1})
	assert.Error(t, err)
	_, err = ToSitterOffset(-5)
	assert.Error(t, err)
}

func TestLineIndex(t *testing.T) {
	t.Parallel()

	li := NewLineIndex("ab\ncd\n\nxyz")
	assert.Equal(t, 4, li.Lines())

	assert.Equal(t, Point{Row: 0, Column: 0}, li.Point(0))
	assert.Equal(t, Point{Row: 0, Column: 2}, li.Point(2), "the newline belongs to its row")
	assert.Equal(t, Point{Row: 1, Column: 0}, li.Point(3))
	assert.Equal(t, Point{Row: 2, Column: 0}, li.Point(6))
	assert.Equal(t, Point{Row: 3, Column: 3}, li.Point(10))
	assert.Equal(t, Point{Row: 3, Column: 3}, li.Point(99), "clamped")

	assert.Equal(t, 4, li.Offset(Point{Row: 1, Column: 1}))
	assert.Equal(t, 5, li.Offset(Point{Row: 1, Column: 50}), "clamped to row end")
	assert.Equal(t, 10, li.Offset(Point{Row: 9}))
	assert.Equal(t, 0, li.Offset(Point{Row: -1}))
}

func TestLineIndexUTF16(t *testing.T) {
	t.Parallel()

	// "é" is 2 bytes and 1 UTF-16 unit; the emoji is 4 bytes and 2 units.
	text := "é😀x\ny"
	li := NewLineIndex(text)

	assert.Equal(t, Point{Row: 0, Column: 3}, li.UTF16Point(6))
	assert.Equal(t, Point{Row: 0, Column: 1}, li.UTF16Point(2))
	assert.Equal(t, 6, li.OffsetUTF16(Point{Row: 0, Column: 3}))
	assert.Equal(t, 2, li.OffsetUTF16(Point{Row: 0, Column: 2}), "inside a surrogate pair")
	assert.Equal(t, 7, li.OffsetUTF16(Point{Row: 0, Column: 40}))
	assert.Equal(t, 8, li.OffsetUTF16(Point{Row: 1, Column: 0}))
}

func TestExtractDiagnostics(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, parse(t, ""))
	})

	t.Run("well formed", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, parse(t, "class Foo; end"))
	})

	t.Run("unterminated class", func(t *testing.T) {
		t.Parallel()
		diags := parse(t, "class Foo; ")
		require.Len(t, diags, 1)
		assert.Equal(t, Missing, diags[0].Kind)
		assert.Equal(t, "end", diags[0].ConstructKind)
		assert.Equal(t, "`end` missing", diags[0].Message())
		assert.Zero(t, diags[0].Span.Len())
	})

	t.Run("unterminated string", func(t *testing.T) {
		t.Parallel()
		diags := parse(t, "class Foo\n  '\n  end")
		require.Len(t, diags, 1)
		assert.Equal(t, Error, diags[0].Kind)
		assert.Equal(t, "ERROR", diags[0].ConstructKind)
		assert.Equal(t, "`ERROR` error", diags[0].Message())
		assert.NotEmpty(t, diags[0].Snippet)
	})

	t.Run("nil tree", func(t *testing.T) {
		t.Parallel()
		diags, err := ExtractDiagnostics(nil, nil)
		require.NoError(t, err)
		assert.Empty(t, diags)
	})
}

func TestDiagnosticKindText(t *testing.T) {
	t.Parallel()

	b, err := Missing.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "missing", string(b))
	assert.Equal(t, "error", Error.String())
}
