package ast

import "github.com/jward/rubyscope/internal/scope"

// Kind names a payload variant.
type Kind string

const (
	KindClass          Kind = "class"
	KindModule         Kind = "module"
	KindDef            Kind = "def"
	KindDefs           Kind = "defs"
	KindSingletonClass Kind = "singleton_class"
	KindEmptyBody      Kind = "empty_body"
	KindConst          Kind = "const"
	KindIdent          Kind = "ident"
	KindVar            Kind = "var"
	KindLiteral        Kind = "literal"
	KindString         Kind = "string"
	KindCall           Kind = "call"
	KindBlock          Kind = "block"
	KindParams         Kind = "params"
	KindParam          Kind = "param"
	KindAssign         Kind = "assign"
	KindBinary         Kind = "binary"
	KindUnary          Kind = "unary"
	KindBranch         Kind = "branch"
	KindCase           Kind = "case"
	KindCollection     Kind = "collection"
	KindPair           Kind = "pair"
	KindJump           Kind = "jump"
	KindGroup          Kind = "group"
	KindError          Kind = "error"
	KindOther          Kind = "other"
)

// Payload is the kind-specific part of a node. Child references are ids
// into the same file's node collection.
type Payload interface {
	Kind() Kind
	Children() []NodeID
}

// ScopeIntroducer is implemented by the four payloads that open a scope.
type ScopeIntroducer interface {
	Frame() scope.Frame
}

// ids collects the non-zero ids in order.
func ids(single []NodeID, lists ...[]NodeID) []NodeID {
	out := make([]NodeID, 0, len(single))
	for _, id := range single {
		if id != 0 {
			out = append(out, id)
		}
	}
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

type Class struct {
	Name       string   `json:"name" msgpack:"name"`
	NameID     NodeID   `json:"name_id" msgpack:"name_id"`
	Superclass NodeID   `json:"superclass,omitempty" msgpack:"superclass"`
	Body       []NodeID `json:"body" msgpack:"body"`
}

func (Class) Kind() Kind           { return KindClass }
func (c Class) Children() []NodeID { return ids([]NodeID{c.NameID, c.Superclass}, c.Body) }
func (c Class) Frame() scope.Frame { return scope.Frame{Kind: scope.Class, Name: c.Name} }

type Module struct {
	Name   string   `json:"name" msgpack:"name"`
	NameID NodeID   `json:"name_id" msgpack:"name_id"`
	Body   []NodeID `json:"body" msgpack:"body"`
}

func (Module) Kind() Kind           { return KindModule }
func (m Module) Children() []NodeID { return ids([]NodeID{m.NameID}, m.Body) }
func (m Module) Frame() scope.Frame { return scope.Frame{Kind: scope.Module, Name: m.Name} }

// Def is an instance method definition.
type Def struct {
	Name   string   `json:"name" msgpack:"name"`
	Params NodeID   `json:"params,omitempty" msgpack:"params"`
	Body   []NodeID `json:"body" msgpack:"body"`
}

func (Def) Kind() Kind           { return KindDef }
func (d Def) Children() []NodeID { return ids([]NodeID{d.Params}, d.Body) }
func (d Def) Frame() scope.Frame { return scope.Frame{Kind: scope.Def, Name: d.Name} }

// Defs is a singleton method definition such as "def self.build".
type Defs struct {
	Name    string   `json:"name" msgpack:"name"`
	Definee NodeID   `json:"definee" msgpack:"definee"`
	Params  NodeID   `json:"params,omitempty" msgpack:"params"`
	Body    []NodeID `json:"body" msgpack:"body"`
}

func (Defs) Kind() Kind           { return KindDefs }
func (d Defs) Children() []NodeID { return ids([]NodeID{d.Definee, d.Params}, d.Body) }
func (d Defs) Frame() scope.Frame { return scope.Frame{Kind: scope.Defs, Name: d.Name} }

// SingletonClass is "class << expr". It does not open a frame.
type SingletonClass struct {
	Value NodeID   `json:"value" msgpack:"value"`
	Body  []NodeID `json:"body" msgpack:"body"`
}

func (SingletonClass) Kind() Kind           { return KindSingletonClass }
func (s SingletonClass) Children() []NodeID { return ids([]NodeID{s.Value}, s.Body) }

// EmptyBody stands in for the missing body of a scope-introducing
// construct, spanning the gap between its header and closing keyword.
type EmptyBody struct{}

func (EmptyBody) Kind() Kind         { return KindEmptyBody }
func (EmptyBody) Children() []NodeID { return nil }

// Const is a constant reference, possibly scoped ("A::B").
type Const struct {
	Name  string `json:"name" msgpack:"name"`
	Scope NodeID `json:"scope,omitempty" msgpack:"scope"`
}

func (Const) Kind() Kind           { return KindConst }
func (c Const) Children() []NodeID { return ids([]NodeID{c.Scope}) }

type Ident struct {
	Name string `json:"name" msgpack:"name"`
}

func (Ident) Kind() Kind         { return KindIdent }
func (Ident) Children() []NodeID { return nil }

// Var is an instance, class or global variable. Sigil holds the grammar
// kind, e.g. "instance_variable".
type Var struct {
	Sigil string `json:"sigil" msgpack:"sigil"`
	Name  string `json:"name" msgpack:"name"`
}

func (Var) Kind() Kind         { return KindVar }
func (Var) Children() []NodeID { return nil }

// Literal covers numbers, booleans, nil, self and simple symbols.
type Literal struct {
	Type string `json:"type" msgpack:"type"`
	Text string `json:"text" msgpack:"text"`
}

func (Literal) Kind() Kind         { return KindLiteral }
func (Literal) Children() []NodeID { return nil }

// String covers strings, symbols with delimiters, regexes, heredocs and
// backtick commands. Value is the static content; interpolations appear as
// Parts.
type String struct {
	Type  string   `json:"type" msgpack:"type"`
	Value string   `json:"value" msgpack:"value"`
	Parts []NodeID `json:"parts,omitempty" msgpack:"parts"`
}

func (String) Kind() Kind           { return KindString }
func (s String) Children() []NodeID { return ids(nil, s.Parts) }

// Call is a method send with optional receiver, arguments and block.
type Call struct {
	Method   string   `json:"method" msgpack:"method"`
	Receiver NodeID   `json:"receiver,omitempty" msgpack:"receiver"`
	Args     []NodeID `json:"args,omitempty" msgpack:"args"`
	Block    NodeID   `json:"block,omitempty" msgpack:"block"`
	Safe     bool     `json:"safe,omitempty" msgpack:"safe"`
}

func (Call) Kind() Kind { return KindCall }
func (c Call) Children() []NodeID {
	out := ids([]NodeID{c.Receiver}, c.Args)
	if c.Block != 0 {
		out = append(out, c.Block)
	}
	return out
}

// Block is a brace block, do block or lambda body.
type Block struct {
	Type   string   `json:"type" msgpack:"type"`
	Params NodeID   `json:"params,omitempty" msgpack:"params"`
	Body   []NodeID `json:"body" msgpack:"body"`
}

func (Block) Kind() Kind           { return KindBlock }
func (b Block) Children() []NodeID { return ids([]NodeID{b.Params}, b.Body) }

type Params struct {
	Type   string   `json:"type" msgpack:"type"`
	Params []NodeID `json:"params" msgpack:"params"`
}

func (Params) Kind() Kind           { return KindParams }
func (p Params) Children() []NodeID { return ids(nil, p.Params) }

// Param is one formal parameter. Type is the grammar kind, e.g.
// "optional_parameter".
type Param struct {
	Type    string `json:"type" msgpack:"type"`
	Name    string `json:"name" msgpack:"name"`
	Default NodeID `json:"default,omitempty" msgpack:"default"`
}

func (Param) Kind() Kind           { return KindParam }
func (p Param) Children() []NodeID { return ids([]NodeID{p.Default}) }

type Assign struct {
	Operator string `json:"operator" msgpack:"operator"`
	Target   NodeID `json:"target" msgpack:"target"`
	Value    NodeID `json:"value" msgpack:"value"`
}

func (Assign) Kind() Kind           { return KindAssign }
func (a Assign) Children() []NodeID { return ids([]NodeID{a.Target, a.Value}) }

type Binary struct {
	Operator string `json:"operator" msgpack:"operator"`
	Left     NodeID `json:"left" msgpack:"left"`
	Right    NodeID `json:"right" msgpack:"right"`
}

func (Binary) Kind() Kind           { return KindBinary }
func (b Binary) Children() []NodeID { return ids([]NodeID{b.Left, b.Right}) }

type Unary struct {
	Operator string `json:"operator" msgpack:"operator"`
	Operand  NodeID `json:"operand" msgpack:"operand"`
}

func (Unary) Kind() Kind           { return KindUnary }
func (u Unary) Children() []NodeID { return ids([]NodeID{u.Operand}) }

// Branch is a conditional or loop: if, unless, while, until, their
// modifier forms, the ternary and for.
type Branch struct {
	Keyword     string   `json:"keyword" msgpack:"keyword"`
	Condition   NodeID   `json:"condition,omitempty" msgpack:"condition"`
	Body        []NodeID `json:"body,omitempty" msgpack:"body"`
	Alternative NodeID   `json:"alternative,omitempty" msgpack:"alternative"`
}

func (Branch) Kind() Kind { return KindBranch }
func (b Branch) Children() []NodeID {
	out := ids([]NodeID{b.Condition}, b.Body)
	if b.Alternative != 0 {
		out = append(out, b.Alternative)
	}
	return out
}

type Case struct {
	Keyword string   `json:"keyword" msgpack:"keyword"`
	Subject NodeID   `json:"subject,omitempty" msgpack:"subject"`
	Clauses []NodeID `json:"clauses" msgpack:"clauses"`
}

func (Case) Kind() Kind           { return KindCase }
func (c Case) Children() []NodeID { return ids([]NodeID{c.Subject}, c.Clauses) }

// Collection is an array, hash or similar literal.
type Collection struct {
	Type     string   `json:"type" msgpack:"type"`
	Elements []NodeID `json:"elements" msgpack:"elements"`
}

func (Collection) Kind() Kind           { return KindCollection }
func (c Collection) Children() []NodeID { return ids(nil, c.Elements) }

type Pair struct {
	Key   NodeID `json:"key" msgpack:"key"`
	Value NodeID `json:"value,omitempty" msgpack:"value"`
}

func (Pair) Kind() Kind           { return KindPair }
func (p Pair) Children() []NodeID { return ids([]NodeID{p.Key, p.Value}) }

// Jump is return, break, next, redo, retry or yield.
type Jump struct {
	Keyword string   `json:"keyword" msgpack:"keyword"`
	Args    []NodeID `json:"args,omitempty" msgpack:"args"`
}

func (Jump) Kind() Kind           { return KindJump }
func (j Jump) Children() []NodeID { return ids(nil, j.Args) }

// Group is a structural wrapper with no data of its own: begin/rescue/
// ensure blocks, then/else clauses, parenthesized statements.
type Group struct {
	Type     string   `json:"type" msgpack:"type"`
	Elements []NodeID `json:"elements" msgpack:"elements"`
}

func (Group) Kind() Kind           { return KindGroup }
func (g Group) Children() []NodeID { return ids(nil, g.Elements) }

// Error wraps a region the parser could not make sense of. Whatever it
// did recognise inside is still flattened.
type Error struct {
	Elements []NodeID `json:"elements" msgpack:"elements"`
}

func (Error) Kind() Kind           { return KindError }
func (e Error) Children() []NodeID { return ids(nil, e.Elements) }

// Other is the fallback for grammar kinds without a dedicated payload.
type Other struct {
	Type     string   `json:"type" msgpack:"type"`
	Text     string   `json:"text,omitempty" msgpack:"text"`
	Elements []NodeID `json:"elements,omitempty" msgpack:"elements"`
}

func (Other) Kind() Kind           { return KindOther }
func (o Other) Children() []NodeID { return ids(nil, o.Elements) }
