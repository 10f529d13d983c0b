// Package flatten walks a Ruby concrete syntax tree once, depth first,
// and produces the arena node model together with its scoped index.
//
// Ids are allocated in pre-order while nodes are appended in post-order,
// so the position of a node in Result.Nodes says nothing about its id.
package flatten

import (
	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/index"
	"github.com/jward/rubyscope/internal/scope"
	sitter "github.com/smacker/go-tree-sitter"
)

// Result is the output of one walk.
type Result struct {
	Nodes []ast.Node
	Index *index.ScopedIndex
}

// Flatten walks tree. A nil tree yields an empty result whose index holds
// only the root path.
func Flatten(tree *sitter.Tree, src []byte) Result {
	if tree == nil {
		return Result{Index: index.Empty()}
	}
	return FlattenNode(tree.RootNode(), src)
}

// FlattenNode walks the subtree rooted at n. A "program" node is not
// emitted itself; its statements become top-level nodes.
func FlattenNode(n *sitter.Node, src []byte) Result {
	w := &walker{
		src:     src,
		tracker: scope.NewTracker(),
		index:   index.NewBuilder(),
	}
	if n != nil {
		if n.Type() == "program" {
			w.visitAll(w.named(n))
		} else {
			w.visit(n)
		}
	}
	if w.tracker.Depth() != 0 {
		panic("flatten: unbalanced scope stack")
	}
	return Result{Nodes: w.nodes, Index: w.index.Build()}
}

// walker is the single-owner traversal context: id counter, scope stack
// and output buffers.
type walker struct {
	src     []byte
	nextID  ast.NodeID
	tracker *scope.Tracker
	nodes   []ast.Node
	index   *index.Builder
}

func (w *walker) visit(n *sitter.Node) ast.NodeID {
	if skip(n) {
		return 0
	}
	id := w.alloc()
	home := w.tracker.Current()

	var p ast.Payload
	switch t := n.Type(); t {
	case "class":
		p = w.class(n)
	case "module":
		p = w.module(n)
	case "method":
		p = w.method(n)
	case "singleton_method":
		p = w.singletonMethod(n)
	case "singleton_class":
		p = w.singletonClass(n)
	case "constant":
		p = ast.Const{Name: w.text(n)}
	case "scope_resolution":
		p = w.scopeResolution(n)
	case "identifier":
		p = ast.Ident{Name: w.text(n)}
	case "instance_variable", "class_variable", "global_variable":
		p = ast.Var{Sigil: t, Name: w.text(n)}
	case "call":
		p = w.call(n)
	case "element_reference":
		p = w.elementReference(n)
	case "block", "do_block":
		p = w.block(n)
	case "lambda":
		p = w.lambda(n)
	case "method_parameters", "block_parameters", "lambda_parameters":
		p = w.params(n)
	case "assignment", "operator_assignment":
		p = w.assign(n)
	case "binary":
		p = ast.Binary{
			Left:     w.visitField(n, "left"),
			Operator: w.fieldText(n, "operator"),
			Right:    w.visitField(n, "right"),
		}
	case "unary":
		p = ast.Unary{
			Operator: w.fieldText(n, "operator"),
			Operand:  w.visitField(n, "operand"),
		}
	case "if", "unless", "elsif", "while", "until", "conditional",
		"if_modifier", "unless_modifier", "while_modifier", "until_modifier", "rescue_modifier":
		p = w.branch(n)
	case "case", "case_match":
		p = w.caseExpr(n)
	case "array", "hash", "string_array", "symbol_array", "argument_list":
		p = ast.Collection{Type: t, Elements: w.visitAll(w.named(n))}
	case "pair":
		p = ast.Pair{Key: w.visitField(n, "key"), Value: w.visitField(n, "value")}
	case "return", "break", "next", "redo", "retry", "yield":
		p = ast.Jump{Keyword: t, Args: w.visitAll(w.arguments(n))}
	case "string", "delimited_symbol", "regex", "subshell", "heredoc_body", "bare_string", "bare_symbol":
		p = w.str(n)
	case "ERROR":
		p = ast.Error{Elements: w.visitAll(w.named(n))}
	default:
		switch {
		case literalTypes[t]:
			p = ast.Literal{Type: t, Text: w.text(n)}
		case groupTypes[t]:
			p = ast.Group{Type: t, Elements: w.visitAll(w.named(n))}
		default:
			p = w.other(n)
		}
	}

	w.emit(id, home, span(n), p)
	return id
}

func (w *walker) alloc() ast.NodeID {
	w.nextID++
	return w.nextID
}

func (w *walker) emit(id ast.NodeID, home scope.Path, s ast.Span, p ast.Payload) {
	node := ast.Node{ID: id, Scope: home, Span: s, Payload: p}
	w.nodes = append(w.nodes, node)
	w.index.Add(node)
}

func (w *walker) visitAll(ns []*sitter.Node) []ast.NodeID {
	out := make([]ast.NodeID, 0, len(ns))
	for _, n := range ns {
		if id := w.visit(n); id != 0 {
			out = append(out, id)
		}
	}
	return out
}

func (w *walker) visitField(n *sitter.Node, name string) ast.NodeID {
	return w.visit(n.ChildByFieldName(name))
}

func (w *walker) other(n *sitter.Node) ast.Payload {
	children := w.named(n)
	if len(children) == 0 {
		return ast.Other{Type: n.Type(), Text: w.text(n)}
	}
	return ast.Other{Type: n.Type(), Elements: w.visitAll(children)}
}

var literalTypes = map[string]bool{
	"integer":         true,
	"float":           true,
	"complex":         true,
	"rational":        true,
	"nil":             true,
	"true":            true,
	"false":           true,
	"self":            true,
	"simple_symbol":   true,
	"hash_key_symbol": true,
	"character":       true,
	"super":           true,
	"line":            true,
	"file":            true,
	"encoding":        true,
}

var groupTypes = map[string]bool{
	"begin":                    true,
	"parenthesized_statements": true,
	"then":                     true,
	"else":                     true,
	"do":                       true,
	"ensure":                   true,
	"rescue":                   true,
	"when":                     true,
	"in_clause":                true,
	"begin_block":              true,
	"end_block":                true,
	"block_body":               true,
	"body_statement":           true,
	"interpolation":            true,
	"exceptions":               true,
	"exception_variable":       true,
	"pattern":                  true,
}
