package flatten

import (
	"strings"

	"github.com/jward/rubyscope/internal/ast"
	"github.com/jward/rubyscope/internal/scope"
	sitter "github.com/smacker/go-tree-sitter"
)

// Header children (names, superclasses, parameters, receivers) are visited
// in the enclosing scope before the construct's own frame is pushed.

func (w *walker) class(n *sitter.Node) ast.Payload {
	name := n.ChildByFieldName("name")
	super := n.ChildByFieldName("superclass")
	c := ast.Class{
		Name:   w.constName(name),
		NameID: w.visit(name),
	}
	if super != nil {
		// superclass wraps "<" and the expression
		if expr := w.named(super); len(expr) > 0 {
			c.Superclass = w.visit(expr[0])
		}
	}
	c.Body = w.scopeBody(n, c.Frame(), name, super)
	return c
}

func (w *walker) module(n *sitter.Node) ast.Payload {
	name := n.ChildByFieldName("name")
	m := ast.Module{
		Name:   w.constName(name),
		NameID: w.visit(name),
	}
	m.Body = w.scopeBody(n, m.Frame(), name)
	return m
}

func (w *walker) method(n *sitter.Node) ast.Payload {
	name := n.ChildByFieldName("name")
	params := n.ChildByFieldName("parameters")
	d := ast.Def{
		Name:   w.text(name),
		Params: w.visit(params),
	}
	d.Body = w.scopeBody(n, d.Frame(), name, params)
	return d
}

func (w *walker) singletonMethod(n *sitter.Node) ast.Payload {
	object := n.ChildByFieldName("object")
	name := n.ChildByFieldName("name")
	params := n.ChildByFieldName("parameters")
	d := ast.Defs{
		Definee: w.visit(object),
		Name:    w.text(name),
		Params:  w.visit(params),
	}
	d.Body = w.scopeBody(n, d.Frame(), object, name, params)
	return d
}

func (w *walker) singletonClass(n *sitter.Node) ast.Payload {
	value := n.ChildByFieldName("value")
	return ast.SingletonClass{
		Value: w.visit(value),
		Body:  w.visitAll(w.body(n, value)),
	}
}

// scopeBody pushes f, visits the body statements of n and pops. A
// construct without statements gets an EmptyBody node so offsets between
// its header and closing keyword still resolve to f.
func (w *walker) scopeBody(n *sitter.Node, f scope.Frame, header ...*sitter.Node) []ast.NodeID {
	stmts := w.body(n, header...)

	w.tracker.Push(f)
	defer w.tracker.Pop()

	if len(stmts) == 0 {
		return []ast.NodeID{w.emptyBody(n, header...)}
	}
	return w.visitAll(stmts)
}

func (w *walker) emptyBody(n *sitter.Node, header ...*sitter.Node) ast.NodeID {
	begin := int(n.StartByte())
	end := int(n.EndByte())
	if count := int(n.ChildCount()); count > 0 {
		begin = int(n.Child(0).EndByte())
		if last := n.Child(count - 1); last.Type() == "end" && !last.IsMissing() {
			end = int(last.StartByte())
		}
	}
	for _, h := range header {
		if h != nil {
			begin = max(begin, int(h.EndByte()))
		}
	}
	end = max(end, begin)

	id := w.alloc()
	w.emit(id, w.tracker.Current(), ast.Span{Begin: begin, End: end}, ast.EmptyBody{})
	return id
}

// constName is the last segment of a class or module name: "Bar" for
// "Foo::Bar".
func (w *walker) constName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "scope_resolution" {
		if name := n.ChildByFieldName("name"); name != nil {
			return w.text(name)
		}
	}
	return w.text(n)
}

func (w *walker) scopeResolution(n *sitter.Node) ast.Payload {
	return ast.Const{
		Scope: w.visitField(n, "scope"),
		Name:  w.fieldText(n, "name"),
	}
}

func (w *walker) call(n *sitter.Node) ast.Payload {
	c := ast.Call{
		Receiver: w.visitField(n, "receiver"),
		Method:   w.fieldText(n, "method"),
		Safe:     w.fieldText(n, "operator") == "&.",
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		c.Args = w.visitAll(w.named(args))
	}
	c.Block = w.visitField(n, "block")
	if c.Method == "" && c.Receiver != 0 {
		// receiver.() is shorthand for receiver.call()
		c.Method = "call"
	}
	return c
}

func (w *walker) elementReference(n *sitter.Node) ast.Payload {
	object := n.ChildByFieldName("object")
	return ast.Call{
		Method:   "[]",
		Receiver: w.visit(object),
		Args:     w.visitAll(w.named(n, object)),
	}
}

func (w *walker) block(n *sitter.Node) ast.Payload {
	params := n.ChildByFieldName("parameters")
	return ast.Block{
		Type:   n.Type(),
		Params: w.visit(params),
		Body:   w.visitAll(w.body(n, params)),
	}
}

func (w *walker) lambda(n *sitter.Node) ast.Payload {
	params := n.ChildByFieldName("parameters")
	b := ast.Block{Type: "lambda", Params: w.visit(params)}
	if body := w.visitField(n, "body"); body != 0 {
		b.Body = []ast.NodeID{body}
	}
	return b
}

func (w *walker) params(n *sitter.Node) ast.Payload {
	p := ast.Params{Type: n.Type()}
	for _, c := range w.named(n) {
		if id := w.param(c); id != 0 {
			p.Params = append(p.Params, id)
		}
	}
	return p
}

// param emits one formal parameter. Destructured parameters fall back to
// the generic visit.
func (w *walker) param(n *sitter.Node) ast.NodeID {
	switch n.Type() {
	case "identifier", "optional_parameter", "keyword_parameter", "splat_parameter",
		"hash_splat_parameter", "block_parameter", "forward_parameter", "hash_splat_nil":
	default:
		return w.visit(n)
	}

	id := w.alloc()
	home := w.tracker.Current()
	p := ast.Param{Type: n.Type()}
	if p.Type == "identifier" {
		p.Type = "parameter"
		p.Name = w.text(n)
	} else {
		p.Name = w.fieldText(n, "name")
		p.Default = w.visitField(n, "value")
	}
	w.emit(id, home, span(n), p)
	return id
}

func (w *walker) assign(n *sitter.Node) ast.Payload {
	op := "="
	if n.Type() == "operator_assignment" {
		op = w.fieldText(n, "operator")
	}
	return ast.Assign{
		Target:   w.visitField(n, "left"),
		Operator: op,
		Value:    w.visitField(n, "right"),
	}
}

func (w *walker) branch(n *sitter.Node) ast.Payload {
	b := ast.Branch{Keyword: n.Type()}
	body := n.ChildByFieldName("consequence")
	if body == nil {
		body = n.ChildByFieldName("body")
	}
	if strings.HasSuffix(b.Keyword, "_modifier") {
		b.Body = w.visitAll(w.unwrap(body))
		b.Condition = w.visitField(n, "condition")
		if b.Keyword == "rescue_modifier" {
			b.Alternative = w.visitField(n, "handler")
		}
		return b
	}
	b.Condition = w.visitField(n, "condition")
	b.Body = w.visitAll(w.unwrap(body))
	b.Alternative = w.visitField(n, "alternative")
	return b
}

// unwrap returns the statements of a then/do clause, or n itself for a
// bare expression.
func (w *walker) unwrap(n *sitter.Node) []*sitter.Node {
	if n == nil || skip(n) {
		return nil
	}
	switch n.Type() {
	case "then", "do", "block_body", "body_statement":
		return w.named(n)
	}
	return []*sitter.Node{n}
}

func (w *walker) caseExpr(n *sitter.Node) ast.Payload {
	value := n.ChildByFieldName("value")
	return ast.Case{
		Keyword: n.Type(),
		Subject: w.visit(value),
		Clauses: w.visitAll(w.named(n, value)),
	}
}

func (w *walker) str(n *sitter.Node) ast.Payload {
	s := ast.String{Type: n.Type()}
	var value strings.Builder
	children := w.named(n)
	if len(children) == 0 {
		value.WriteString(w.text(n))
	}
	for _, c := range children {
		switch c.Type() {
		case "string_content", "escape_sequence", "heredoc_content":
			value.WriteString(w.text(c))
		default:
			if id := w.visit(c); id != 0 {
				s.Parts = append(s.Parts, id)
			}
		}
	}
	s.Value = value.String()
	return s
}
