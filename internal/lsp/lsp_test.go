package lsp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/rubyscope"
	"github.com/jward/rubyscope/internal/syntax"
)

const testURI = "file:///app/foo.rb"

type notification struct {
	method string
	params any
}

// recorder captures every notification the server sends. Debounced
// publishes arrive on timer goroutines, so access is locked.
type recorder struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recorder) context() *glsp.Context {
	return &glsp.Context{
		Notify: func(method string, params any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.sent = append(r.sent, notification{method, params})
		},
	}
}

func (r *recorder) published() []*protocol.PublishDiagnosticsParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*protocol.PublishDiagnosticsParams
	for _, n := range r.sent {
		if n.method == protocol.ServerTextDocumentPublishDiagnostics {
			out = append(out, n.params.(*protocol.PublishDiagnosticsParams))
		}
	}
	return out
}

func (r *recorder) messages() []*protocol.ShowMessageParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*protocol.ShowMessageParams
	for _, n := range r.sent {
		if n.method == protocol.ServerWindowShowMessage {
			out = append(out, n.params.(*protocol.ShowMessageParams))
		}
	}
	return out
}

func testServer(t *testing.T, opts ...Option) (*Server, *rubyscope.Engine, *recorder) {
	t.Helper()
	engine, err := rubyscope.New()
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	s := New(engine, opts...)
	s.exitFn = func(int) {}
	return s, engine, &recorder{}
}

func openDoc(t *testing.T, s *Server, r *recorder, uri string, version int32, text string) {
	t.Helper()
	require.NoError(t, s.textDocumentDidOpen(r.context(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: "ruby",
			Version:    version,
			Text:       text,
		},
	}))
}

func changeDoc(t *testing.T, s *Server, r *recorder, uri string, version int32, changes ...any) {
	t.Helper()
	require.NoError(t, s.textDocumentDidChange(r.context(), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: changes,
	}))
}

func rangeChange(startLine, startChar, endLine, endChar int, text string) protocol.TextDocumentContentChangeEvent {
	return protocol.TextDocumentContentChangeEvent{
		Range: &protocol.Range{
			Start: protocol.Position{Line: safeUint(startLine), Character: safeUint(startChar)},
			End:   protocol.Position{Line: safeUint(endLine), Character: safeUint(endChar)},
		},
		Text: text,
	}
}

func hoverAt(t *testing.T, s *Server, uri string, line, char int) *protocol.Hover {
	t.Helper()
	h, err := s.textDocumentHover(nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: safeUint(line), Character: safeUint(char)},
		},
	})
	require.NoError(t, err)
	return h
}

func hoverText(h *protocol.Hover) string {
	if h == nil {
		return ""
	}
	return h.Contents.(protocol.MarkupContent).Value
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestInitialize_Capabilities(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t)

	res, err := s.initialize(r.context(), &protocol.InitializeParams{})
	require.NoError(t, err)
	result := res.(protocol.InitializeResult)

	assert.Equal(t, serverName, result.ServerInfo.Name)
	syncOpts := result.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, *syncOpts.Change)
	assert.True(t, *syncOpts.OpenClose)
	assert.NotNil(t, result.Capabilities.HoverProvider)
	assert.NotNil(t, result.Capabilities.DocumentSymbolProvider)
}

func TestInitialized_LogsMessage(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t)

	require.NoError(t, s.initialized(r.context(), &protocol.InitializedParams{}))
	require.Len(t, r.sent, 1)
	assert.Equal(t, protocol.ServerWindowLogMessage, r.sent[0].method)
}

// =============================================================================
// Diagnostics
// =============================================================================

func TestDidOpen_PublishesDiagnostics(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t)

	openDoc(t, s, r, testURI, 1, "class Foo; ")

	pubs := r.published()
	require.Len(t, pubs, 1)
	assert.Equal(t, testURI, pubs[0].URI)
	require.Len(t, pubs[0].Diagnostics, 1)
	d := pubs[0].Diagnostics[0]
	assert.Equal(t, "`end` missing", d.Message)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, *d.Severity)
	assert.Equal(t, diagnosticSource, *d.Source)
	assert.Equal(t, protocol.UInteger(0), d.Range.Start.Line)
}

func TestDidOpen_CleanFileHasNoDiagnostics(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t)

	openDoc(t, s, r, testURI, 1, "class Foo\nend\n")

	pubs := r.published()
	require.Len(t, pubs, 1)
	assert.Empty(t, pubs[0].Diagnostics)
}

func TestSeverity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, protocol.DiagnosticSeverityError, *severity(syntax.Error))
	assert.Equal(t, protocol.DiagnosticSeverityWarning, *severity(syntax.Missing))
}

func TestDidOpen_IgnoresOtherLanguages(t *testing.T) {
	t.Parallel()
	s, engine, r := testServer(t)

	uri := "file:///app/view.html.erb"
	require.NoError(t, s.textDocumentDidOpen(r.context(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "erb", Version: 1, Text: "<%= x %>"},
	}))
	changeDoc(t, s, r, uri, 2, protocol.TextDocumentContentChangeEventWhole{Text: "<%= y %>"})

	assert.Empty(t, r.published())
	assert.Empty(t, engine.OpenDocuments())

	require.NoError(t, s.textDocumentDidClose(r.context(), &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	assert.Empty(t, r.published())
}

func TestDidClose_ClearsDiagnostics(t *testing.T) {
	t.Parallel()
	s, engine, r := testServer(t)

	openDoc(t, s, r, testURI, 1, "class Foo; ")
	require.NoError(t, s.textDocumentDidClose(r.context(), &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}))

	pubs := r.published()
	require.Len(t, pubs, 2)
	assert.Empty(t, pubs[1].Diagnostics)
	assert.Empty(t, engine.OpenDocuments())
	_, ok := engine.Analysis(testURI)
	assert.False(t, ok)
}

func TestDidSave_Republishes(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t)

	openDoc(t, s, r, testURI, 1, "class Foo; ")
	require.NoError(t, s.textDocumentDidSave(r.context(), &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}))

	pubs := r.published()
	require.Len(t, pubs, 2)
	assert.Equal(t, pubs[0].Diagnostics, pubs[1].Diagnostics)
}

// =============================================================================
// Incremental sync
// =============================================================================

func TestDidChange_Incremental(t *testing.T) {
	t.Parallel()
	s, engine, r := testServer(t)

	openDoc(t, s, r, testURI, 1, "class Foo\nend\n")
	changeDoc(t, s, r, testURI, 2, rangeChange(1, 0, 1, 0, "  def bar\n  end\n"))

	text, version, err := engine.Text(testURI)
	require.NoError(t, err)
	assert.Equal(t, "class Foo\n  def bar\n  end\nend\n", text)
	assert.Equal(t, int32(2), version)
	assert.Equal(t, "```ruby\nFoo#bar\n```", hoverText(hoverAt(t, s, testURI, 1, 4)))
	assert.Len(t, r.published(), 2)
}

func TestDidChange_SequentialChanges(t *testing.T) {
	t.Parallel()
	s, engine, r := testServer(t)

	openDoc(t, s, r, testURI, 1, "class A\nend\n")
	changeDoc(t, s, r, testURI, 2,
		rangeChange(0, 6, 0, 7, "Cart"),
		rangeChange(1, 0, 1, 0, "  def add\n  end\n"),
		rangeChange(1, 6, 1, 9, "remove"),
	)

	text, _, err := engine.Text(testURI)
	require.NoError(t, err)
	assert.Equal(t, "class Cart\n  def remove\n  end\nend\n", text)
	assert.Equal(t, "```ruby\nCart#remove\n```", hoverText(hoverAt(t, s, testURI, 2, 2)))
}

func TestDidChange_WholeDocument(t *testing.T) {
	t.Parallel()
	s, engine, r := testServer(t)

	openDoc(t, s, r, testURI, 1, "class A\nend\n")
	changeDoc(t, s, r, testURI, 2, protocol.TextDocumentContentChangeEventWhole{Text: "module B\nend\n"})

	text, _, err := engine.Text(testURI)
	require.NoError(t, err)
	assert.Equal(t, "module B\nend\n", text)
}

func TestDidChange_UnknownDocumentWithFullText(t *testing.T) {
	t.Parallel()
	s, engine, r := testServer(t)

	changeDoc(t, s, r, testURI, 3, protocol.TextDocumentContentChangeEventWhole{Text: "class A\nend\n"})

	assert.Equal(t, []string{testURI}, engine.OpenDocuments())
	assert.Len(t, r.published(), 1)
}

func TestDidChange_UnknownDocumentWithRange(t *testing.T) {
	t.Parallel()
	s, engine, r := testServer(t)

	changeDoc(t, s, r, testURI, 3, rangeChange(0, 0, 0, 0, "x"))

	assert.Empty(t, engine.OpenDocuments())
	assert.Empty(t, r.published())
}

// =============================================================================
// Version violations
// =============================================================================

func TestDidChange_StaleVersionAbortsDocument(t *testing.T) {
	t.Parallel()
	s, engine, r := testServer(t)

	openDoc(t, s, r, testURI, 2, "class Foo; ")
	changeDoc(t, s, r, testURI, 2, rangeChange(0, 0, 0, 0, "# "))

	pubs := r.published()
	require.Len(t, pubs, 2)
	assert.NotEmpty(t, pubs[0].Diagnostics)
	assert.Empty(t, pubs[1].Diagnostics)

	msgs := r.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.MessageTypeError, msgs[0].Type)
	assert.Contains(t, msgs[0].Message, testURI)

	// Later changes are dropped until the document is reopened.
	changeDoc(t, s, r, testURI, 3, rangeChange(0, 0, 0, 0, "# "))
	assert.Len(t, r.published(), 2)
	assert.Nil(t, hoverAt(t, s, testURI, 0, 7))

	openDoc(t, s, r, testURI, 4, "class Foo\nend\n")
	assert.Len(t, r.published(), 3)
	_, ok := engine.Analysis(testURI)
	assert.True(t, ok)
}

// =============================================================================
// Debounce
// =============================================================================

func TestDidChange_Debounced(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t, WithDebounce(20*time.Millisecond))

	openDoc(t, s, r, testURI, 1, "class Foo\nend\n")
	changeDoc(t, s, r, testURI, 2, rangeChange(1, 0, 1, 0, "  def"))
	changeDoc(t, s, r, testURI, 3, rangeChange(1, 5, 1, 5, " bar\n  end\n"))

	assert.Len(t, r.published(), 1, "open publishes immediately")
	require.Eventually(t, func() bool { return len(r.published()) == 2 }, time.Second, 5*time.Millisecond)

	// Only the last change publishes.
	time.Sleep(50 * time.Millisecond)
	pubs := r.published()
	require.Len(t, pubs, 2)
	assert.Empty(t, pubs[1].Diagnostics)
}

func TestShutdown_StopsTimers(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t, WithDebounce(time.Hour))

	openDoc(t, s, r, testURI, 1, "class Foo\nend\n")
	changeDoc(t, s, r, testURI, 2, rangeChange(1, 0, 1, 0, "  def bar; end\n"))
	require.NoError(t, s.shutdown(r.context()))

	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	assert.Empty(t, s.debounce)
}

// =============================================================================
// Hover and symbols
// =============================================================================

const shopSource = `module Shop
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

func TestHover(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t)
	openDoc(t, s, r, testURI, 1, shopSource)

	tests := []struct {
		name       string
		line, char int
		want       string
	}{
		{"module", 0, 3, "Shop"},
		{"class", 1, 8, "Shop::Cart"},
		{"instance method body", 3, 8, "Shop::Cart#add"},
		{"singleton method body", 7, 6, "Shop::Cart.empty"},
		{"past end", 11, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hoverText(hoverAt(t, s, testURI, tt.line, tt.char))
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, "```ruby\n"+tt.want+"\n```", got)
		})
	}
}

func TestHover_UnknownDocument(t *testing.T) {
	t.Parallel()
	s, _, _ := testServer(t)
	assert.Nil(t, hoverAt(t, s, "file:///nope.rb", 0, 0))
}

func TestDocumentSymbol_Hierarchy(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t)
	openDoc(t, s, r, testURI, 1, shopSource)

	res, err := s.textDocumentDocumentSymbol(nil, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	require.NoError(t, err)
	syms := res.([]protocol.DocumentSymbol)

	require.Len(t, syms, 1)
	shop := syms[0]
	assert.Equal(t, "Shop", shop.Name)
	assert.Equal(t, protocol.SymbolKindModule, shop.Kind)
	assert.Equal(t, protocol.UInteger(0), shop.Range.Start.Line)
	assert.Equal(t, protocol.UInteger(10), shop.Range.End.Line)

	require.Len(t, shop.Children, 1)
	cart := shop.Children[0]
	assert.Equal(t, protocol.SymbolKindClass, cart.Kind)
	assert.Equal(t, "Shop::Cart", *cart.Detail)

	require.Len(t, cart.Children, 2)
	assert.Equal(t, "add", cart.Children[0].Name)
	assert.Equal(t, "Shop::Cart#add", *cart.Children[0].Detail)
	assert.Equal(t, protocol.SymbolKindMethod, cart.Children[0].Kind)
	assert.Equal(t, "empty", cart.Children[1].Name)
	assert.Equal(t, "Shop::Cart.empty", *cart.Children[1].Detail)
	assert.Empty(t, cart.Children[1].Children)
}

func TestDocumentSymbol_SiblingsAtTopLevel(t *testing.T) {
	t.Parallel()
	s, _, r := testServer(t)
	openDoc(t, s, r, testURI, 1, "class A\nend\n\nclass B\n  def c; end\nend\n")

	res, err := s.textDocumentDocumentSymbol(nil, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	require.NoError(t, err)
	syms := res.([]protocol.DocumentSymbol)
	require.Len(t, syms, 2)
	assert.Empty(t, syms[0].Children)
	require.Len(t, syms[1].Children, 1)
	assert.Equal(t, "c", syms[1].Children[0].Name)
}

// =============================================================================
// Position conversion
// =============================================================================

func TestChangesToEdits(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		text    string
		changes []any
		want    []rubyscope.TextEdit
	}{
		{
			name:    "insert",
			text:    "ab\ncd\n",
			changes: []any{rangeChange(1, 1, 1, 1, "X")},
			want:    []rubyscope.TextEdit{{Range: &rubyscope.Range{Start: 4, End: 4}, Text: "X"}},
		},
		{
			name:    "utf16 columns",
			text:    "# é😀!\n",
			changes: []any{rangeChange(0, 3, 0, 5, "x")},
			want:    []rubyscope.TextEdit{{Range: &rubyscope.Range{Start: 4, End: 8}, Text: "x"}},
		},
		{
			name: "second range sees first change",
			text: "abc\n",
			changes: []any{
				rangeChange(0, 0, 0, 0, "zz\n"),
				rangeChange(1, 1, 1, 2, ""),
			},
			want: []rubyscope.TextEdit{
				{Range: &rubyscope.Range{Start: 0, End: 0}, Text: "zz\n"},
				{Range: &rubyscope.Range{Start: 4, End: 5}, Text: ""},
			},
		},
		{
			name:    "whole document",
			text:    "abc",
			changes: []any{protocol.TextDocumentContentChangeEventWhole{Text: "xyz"}},
			want:    []rubyscope.TextEdit{{Text: "xyz"}},
		},
		{
			name:    "column past line end clamps",
			text:    "ab\ncd",
			changes: []any{rangeChange(0, 9, 0, 9, "!")},
			want:    []rubyscope.TextEdit{{Range: &rubyscope.Range{Start: 2, End: 2}, Text: "!"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, changesToEdits(tt.text, tt.changes))
		})
	}
}

func TestSafeUint(t *testing.T) {
	t.Parallel()
	assert.Equal(t, protocol.UInteger(7), safeUint(7))
	assert.Equal(t, protocol.UInteger(0), safeUint(-1))
}
