package analysis

import (
	"testing"

	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/scope"
	"github.com/jward/rubyscope/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, src string, strict bool) *FileAnalysis {
	t.Helper()
	tree, err := syntax.NewParser().Parse(nil, []byte(src))
	require.NoError(t, err)
	defer tree.Close()

	diags, err := syntax.ExtractDiagnostics(tree, []byte(src))
	require.NoError(t, err)
	return Build(Input{
		Identity:    "test.rb",
		Source:      []byte(src),
		Tree:        tree,
		Diagnostics: diags,
		Strict:      strict,
	})
}

const sample = `module Shop
  class Cart
    def add(item)
      items << item
    end

    def self.empty
      new
    end
  end
end
`

func TestBuildOutline(t *testing.T) {
	t.Parallel()

	fa := build(t, sample, false)
	require.False(t, fa.Failed)
	assert.Empty(t, fa.Diagnostics)

	outline := fa.Outline()
	require.Len(t, outline, 4)
	want := []string{"Shop", "Shop::Cart", "Shop::Cart#add", "Shop::Cart.empty"}
	for i, sym := range outline {
		assert.Equal(t, want[i], sym.Path.String())
	}
	assert.Equal(t, scope.Frame{Kind: scope.Def, Name: "add"}, outline[2].Frame)
	assert.Equal(t, syntax.Point{Row: 2, Column: 4}, outline[2].Start)
	assert.Equal(t, syntax.Point{Row: 4, Column: 7}, outline[2].End)
}

func TestNodeLookup(t *testing.T) {
	t.Parallel()

	fa := build(t, sample, false)
	for _, n := range fa.Nodes {
		got, ok := fa.Node(n.ID)
		require.True(t, ok)
		assert.Equal(t, n.ID, got.ID)
	}
	_, ok := fa.Node(ast.NodeID(len(fa.Nodes) + 1))
	assert.False(t, ok)

	counts := fa.Counts()
	assert.Equal(t, 1, counts[ast.KindModule])
	assert.Equal(t, 1, counts[ast.KindDef])
	assert.Equal(t, 1, counts[ast.KindDefs])
}

func TestFindScopeGate(t *testing.T) {
	t.Parallel()

	fa := build(t, sample, false)
	offset := len("module Shop\n  class Cart\n    def add(item)\n      ite")
	got, ok := fa.FindScopeGate(offset)
	require.True(t, ok)
	assert.Equal(t, "Shop::Cart#add", got.String())

	members := fa.Members(scope.Path{{Kind: scope.Module, Name: "Shop"}, {Kind: scope.Class, Name: "Cart"}})
	kinds := make([]ast.Kind, 0, len(members))
	for _, m := range members {
		kinds = append(kinds, m.Kind())
	}
	assert.Contains(t, kinds, ast.KindDef)
	assert.Contains(t, kinds, ast.KindDefs)
}

func TestBuildEmptyInput(t *testing.T) {
	t.Parallel()

	fa := build(t, "", false)
	assert.Empty(t, fa.Nodes)
	assert.Empty(t, fa.Diagnostics)
	_, ok := fa.FindScopeGate(0)
	assert.False(t, ok)
}

func TestStrictTreatsErrorsAsFailure(t *testing.T) {
	t.Parallel()

	lenient := build(t, "class Foo; ", false)
	assert.False(t, lenient.Failed)
	assert.NotEmpty(t, lenient.Nodes)
	require.Len(t, lenient.Diagnostics, 1)

	strict := build(t, "class Foo; ", true)
	assert.True(t, strict.Failed)
	assert.Empty(t, strict.Nodes)
	assert.Equal(t, lenient.Diagnostics, strict.Diagnostics)
	assert.Equal(t, 1, strict.Index.Scopes())
}

func TestBuildWithoutTree(t *testing.T) {
	t.Parallel()

	fa := Build(Input{Identity: "broken.rb", Source: []byte("x")})
	assert.True(t, fa.Failed)
	assert.Empty(t, fa.Nodes)
	path, ok := fa.FindScopeGate(0)
	assert.False(t, ok)
	assert.Nil(t, path)
	assert.Equal(t, 1, fa.Lines().Lines())
}
