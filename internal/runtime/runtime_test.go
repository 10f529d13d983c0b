package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/rubyscope/internal/analysis"
	"github.com/jward/rubyscope/internal/store"
	"github.com/jward/rubyscope/internal/syntax"
)

// pipeline is a minimal Analyzer with no caching.
type pipeline struct{}

func (pipeline) Analyze(ctx context.Context, identity string, content []byte) (*analysis.FileAnalysis, error) {
	tree, err := syntax.NewParser().Parse(nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	diags, err := syntax.ExtractDiagnostics(tree, content)
	if err != nil {
		return nil, err
	}
	return analysis.Build(analysis.Input{
		Identity:    identity,
		Source:      content,
		Tree:        tree,
		Diagnostics: diags,
	}), nil
}

const rubySource = `class Foo
  def bar
    1
  end
end
`

func run(t *testing.T, rt *Runtime, script string, globals map[string]any) {
	t.Helper()
	err := rt.RunSource(context.Background(), script, globals)
	require.NoError(t, err)
}

// --- Analysis builtins ---

func TestRunSource_AnalyzeSourceSummary(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(pipeline{}, "")

	run(t, rt, `
fa := analyze_source("foo.rb", src)
assert(fa["identity"] == "foo.rb", "identity")
assert(fa["failed"] == false, "failed")
assert(fa["nodes"] > 0, "nodes")
assert(fa["scopes"] == 3, 'expected 3 scopes, got {fa["scopes"]}')
assert(fa["diagnostics"] == 0, "diagnostics")

again := lookup("foo.rb")
assert(again["nodes"] == fa["nodes"], "lookup")
assert(lookup("other.rb") == nil, "unknown lookup")
`, map[string]any{"src": rubySource})
}

func TestRunSource_ScopeAt(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(pipeline{}, "")

	run(t, rt, `
analyze_source("foo.rb", src)
assert(scope_at("foo.rb", 0) == "Foo", 'got {scope_at("foo.rb", 0)}')
assert(scope_at("foo.rb", size) == "", 'root, got {scope_at("foo.rb", size)}')
assert(scope_at("foo.rb", 24) == "Foo#bar", 'got {scope_at("foo.rb", 24)}')

analyze_source("empty.rb", "")
assert(scope_at("empty.rb", 0) == nil, "empty file has no scope")
`, map[string]any{"src": rubySource, "size": len(rubySource)})
}

func TestRunSource_Members(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(pipeline{}, "")

	run(t, rt, `
analyze_source("foo.rb", src)
defs := []
for _, m := range members("foo.rb", "Foo") {
    if m["kind"] == "def" {
        defs.append(m["opens"])
    }
}
assert(len(defs) == 1, 'expected 1 def, got {len(defs)}')
assert(defs[0] == "Foo#bar", 'got {defs[0]}')
assert(len(members("foo.rb", "Nope")) == 0, "unknown scope has no members")
`, map[string]any{"src": rubySource})
}

func TestRunSource_DiagnosticsAndOutline(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(pipeline{}, "")

	run(t, rt, `
analyze_source("broken.rb", "class Foo; ")
diags := diagnostics("broken.rb")
assert(len(diags) == 1, 'expected 1 diagnostic, got {len(diags)}')
assert(diags[0]["kind"] == "missing", "kind")
assert(diags[0]["message"] == "` + "`end`" + ` missing", diags[0]["message"])

analyze_source("foo.rb", src)
syms := outline("foo.rb")
assert(len(syms) == 2, 'expected 2 symbols, got {len(syms)}')
assert(syms[1]["path"] == "Foo#bar", syms[1]["path"])
assert(syms[1]["start_line"] == 1, "start line")
`, map[string]any{"src": rubySource})
}

func TestRunSource_Query(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(pipeline{}, "")

	run(t, rt, `
analyze_source("foo.rb", src)
matches := query("foo.rb", "(method name: (identifier) @name)")
assert(len(matches) == 1, 'expected 1 match, got {len(matches)}')
assert(matches[0]["name"]["text"] == "bar", "name")
assert(len(query("foo.rb", "(module) @m")) == 0, "no modules")
`, map[string]any{"src": rubySource})
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(pipeline{}, "")

	err := rt.RunSource(context.Background(), `
analyze_source("foo.rb", src)
query("foo.rb", "((((")
`, map[string]any{"src": rubySource})
	require.Error(t, err)
}

func TestRunSource_UnknownIdentity(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(pipeline{}, "")

	err := rt.RunSource(context.Background(), `scope_at("missing.rb", 0)`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not been analyzed")
}

func TestRunSource_AnalyzeFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "foo.rb")
	require.NoError(t, os.WriteFile(path, []byte(rubySource), 0o644))
	rt := NewRuntime(pipeline{}, "")

	run(t, rt, `
fa := analyze(path)
assert(fa["identity"] == path, "identity is the path")
assert(scope_at(path, 24) == "Foo#bar", "scope")
`, map[string]any{"path": path})
}

func TestRunSource_NoAnalyzer(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	err := rt.RunSource(context.Background(), `analyze_source("a.rb", "")`, nil)
	require.Error(t, err)
}

// --- Store builtins ---

func TestRunSource_StoreBuiltins(t *testing.T) {
	t.Parallel()
	s, err := store.NewStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	files := []struct{ path, src string }{
		{"a.rb", "class Cart; end\n"},
		{"b.rb", "module Shop\n  class Cart\n  end\nend\n"},
	}
	for _, f := range files {
		fa, err := pipeline{}.Analyze(context.Background(), f.path, []byte(f.src))
		require.NoError(t, err)
		_, err = s.CommitBatch(store.NewBatch(fa))
		require.NoError(t, err)
	}

	rt := NewRuntime(nil, "", WithStore(s))
	run(t, rt, `
carts := scopes_named("Cart")
assert(len(carts) == 2, 'expected 2, got {len(carts)}')
assert(carts[0]["file"] == "a.rb", carts[0]["file"])
assert(carts[1]["path"] == "Shop::Cart", carts[1]["path"])

chain := scope_chain(carts[1]["id"])
assert(len(chain) == 3, 'expected 3, got {len(chain)}')
assert(chain[2]["kind"] == "root", "root last")

rows := db_query("SELECT COUNT(*) AS n FROM files")
assert(rows[0]["n"] == 2, "two files")
`, nil)

	err = rt.RunSource(context.Background(), `db_query("DELETE FROM files")`, nil)
	require.Error(t, err)
}

func TestBuildGlobals_StoreOnlyWhenAttached(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(pipeline{}, "")
	globals := rt.buildGlobals(nil)
	assert.Contains(t, globals, "analyze")
	assert.NotContains(t, globals, "scopes_named")

	extra := rt.buildGlobals(map[string]any{"x": 1})
	assert.Contains(t, extra, "x")
}

// --- Script loading ---

func TestRunScript_LoadsFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`result := 1 + 1`), 0o644))

	rt := NewRuntime(nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, t.TempDir())
	require.Error(t, rt.RunScript(context.Background(), "nonexistent.risor", nil))
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"scripts/count.risor": &fstest.MapFile{Data: []byte(`x := 1`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(fsys))

	got, err := rt.LoadScript("/scripts/count.risor")
	require.NoError(t, err)
	assert.Equal(t, "x := 1", got)

	_, err = rt.LoadScript("scripts/missing.risor")
	require.Error(t, err)
}
