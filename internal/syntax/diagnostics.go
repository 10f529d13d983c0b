package syntax

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/jward/rubyscope/internal/ast"
	sitter "github.com/smacker/go-tree-sitter"
)

// DiagnosticKind classifies a syntax anomaly.
type DiagnosticKind uint8

const (
	// Error marks a region the parser could not fit into the grammar.
	Error DiagnosticKind = iota + 1
	// Missing marks a token the parser inserted to recover, such as an
	// absent "end".
	Missing
)

func (k DiagnosticKind) String() string {
	switch k {
	case Error:
		return "error"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Diagnostic is one error or missing marker found in a tree.
type Diagnostic struct {
	Kind          DiagnosticKind `json:"kind" msgpack:"kind"`
	ConstructKind string         `json:"construct_kind" msgpack:"construct_kind"`
	Span          ast.Span       `json:"span" msgpack:"span"`
	Start         Point          `json:"start" msgpack:"start"`
	End           Point          `json:"end" msgpack:"end"`
	Snippet       string         `json:"snippet" msgpack:"snippet"`
}

// Message renders the editor-facing text, e.g. "`end` missing".
func (d Diagnostic) Message() string {
	return fmt.Sprintf("`%s` %s", d.ConstructKind, d.Kind)
}

const maxSnippet = 80

var (
	errorQuery     *sitter.Query
	errorQueryErr  error
	errorQueryOnce sync.Once
)

func compiledErrorQuery() (*sitter.Query, error) {
	errorQueryOnce.Do(func() {
		errorQuery, errorQueryErr = sitter.NewQuery([]byte("(ERROR) @error"), Language())
	})
	return errorQuery, errorQueryErr
}

// ExtractDiagnostics collects error markers first, in match order, then
// missing markers in traversal order.
func ExtractDiagnostics(tree *sitter.Tree, src []byte) ([]Diagnostic, error) {
	if tree == nil {
		return nil, nil
	}
	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}

	q, err := compiledErrorQuery()
	if err != nil {
		return nil, fmt.Errorf("syntax: compile error query: %w", err)
	}

	var diags []Diagnostic
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			diags = append(diags, newDiagnostic(Error, c.Node, src))
		}
	}

	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()
	walk(cursor, func(n *sitter.Node) {
		if n.IsMissing() {
			diags = append(diags, newDiagnostic(Missing, n, src))
		}
	})
	return diags, nil
}

// walk visits every node below the cursor's start in depth-first order.
func walk(c *sitter.TreeCursor, visit func(*sitter.Node)) {
	for {
		visit(c.CurrentNode())
		if c.GoToFirstChild() {
			continue
		}
		for !c.GoToNextSibling() {
			if !c.GoToParent() {
				return
			}
		}
	}
}

func newDiagnostic(kind DiagnosticKind, n *sitter.Node, src []byte) Diagnostic {
	begin, end := int(n.StartByte()), int(n.EndByte())
	snippet := ""
	if begin < end && end <= len(src) {
		snippet = string(src[begin:end])
		if len(snippet) > maxSnippet {
			cut := maxSnippet
			for cut > 0 && !utf8.RuneStart(snippet[cut]) {
				cut--
			}
			snippet = snippet[:cut]
		}
	}
	return Diagnostic{
		Kind:          kind,
		ConstructKind: n.Type(),
		Span:          ast.Span{Begin: begin, End: end},
		Start:         FromSitter(n.StartPoint()),
		End:           FromSitter(n.EndPoint()),
		Snippet:       snippet,
	}
}
