package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for obli
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes. Every expression carries the
// secrecy label and type computed by the analyzer; both are Unknown until
// Analyze has run.
type Expr interface {
	Node
	Label() Label
	Type() Type
	setInfo(Label, Type)
	expr() // marker method
}

// info holds the analyzer's annotations for one node.
type info struct {
	label Label
	typ   Type
}

func (i *info) Label() Label            { return i.label }
func (i *info) Type() Type              { return i.typ }
func (i *info) setInfo(l Label, t Type) { i.label, i.typ = l, t }

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// BinOp is a binary operator.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binOpSymbols = [...]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAnd: "and",
	OpOr:  "or",
}

func (op BinOp) String() string { return binOpSymbols[op] }

// Precedence returns the binding strength of op; higher binds tighter.
func (op BinOp) Precedence() int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return 3
	case OpAdd, OpSub:
		return 4
	default:
		return 5
	}
}

// IsArithmetic reports whether op takes and yields integers.
func (op BinOp) IsArithmetic() bool { return op <= OpMod }

// IsComparison reports whether op compares two operands.
func (op BinOp) IsComparison() bool { return op >= OpEq && op <= OpGe }

// IsLogical reports whether op is and/or.
func (op BinOp) IsLogical() bool { return op == OpAnd || op == OpOr }

// IsPartial reports whether op can fail at runtime (division by zero).
func (op BinOp) IsPartial() bool { return op == OpDiv || op == OpMod }

// UnOp is a unary operator.
type UnOp int

const (
	OpNeg UnOp = iota
	OpNot
)

func (op UnOp) String() string {
	if op == OpNeg {
		return "-"
	}
	return "not"
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// IntLiteral represents an integer literal.
type IntLiteral struct {
	info
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	info
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// Identifier represents a variable reference.
type Identifier struct {
	info
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// BinaryOp represents a binary operation (left op right).
type BinaryOp struct {
	info
	SpanVal Span
	Op      BinOp
	Left    Expr
	Right   Expr
}

func (n *BinaryOp) Span() Span { return n.SpanVal }
func (n *BinaryOp) node()      {}
func (n *BinaryOp) expr()      {}

// UnaryOp represents negation or logical not.
type UnaryOp struct {
	info
	SpanVal Span
	Op      UnOp
	Operand Expr
}

func (n *UnaryOp) Span() Span { return n.SpanVal }
func (n *UnaryOp) node()      {}
func (n *UnaryOp) expr()      {}

// SecretWrap marks its inner expression, and everything computed from it,
// as secret.
type SecretWrap struct {
	info
	SpanVal Span
	Inner   Expr
}

func (n *SecretWrap) Span() Span { return n.SpanVal }
func (n *SecretWrap) node()      {}
func (n *SecretWrap) expr()      {}

// Mode records what the oblivious pass decided for a conditional.
type Mode int

const (
	ModeUnresolved Mode = iota
	ModePreserved       // public guard, emitted as a native branch
	ModeRewritten       // secret guard, replaced by a Select
)

func (m Mode) String() string {
	switch m {
	case ModePreserved:
		return "preserved"
	case ModeRewritten:
		return "rewritten"
	}
	return "unresolved"
}

// Conditional represents if guard then a else b.
type Conditional struct {
	info
	SpanVal Span
	Guard   Expr
	Then    Expr
	Else    Expr
	Mode    Mode
}

func (n *Conditional) Span() Span { return n.SpanVal }
func (n *Conditional) node()      {}
func (n *Conditional) expr()      {}

// Select is the constant-time replacement for a secret-guarded
// conditional. Both branches are always evaluated; the guard only picks
// which value survives. Only the oblivious pass creates Select nodes.
type Select struct {
	info
	SpanVal Span
	Guard   Expr
	Then    Expr
	Else    Expr
	Source  *Conditional // the conditional this select replaced
}

func (n *Select) Span() Span { return n.SpanVal }
func (n *Select) node()      {}
func (n *Select) expr()      {}

// LetBinding binds Name to Value. With a Body it is an expression whose
// value is the body; without one it is a declaration that scopes over the
// rest of the enclosing program or block.
type LetBinding struct {
	info
	SpanVal Span
	Name    string
	NamePos Position
	Value   Expr
	Body    Expr // nil for declarations
}

func (n *LetBinding) Span() Span { return n.SpanVal }
func (n *LetBinding) node()      {}
func (n *LetBinding) expr()      {}

// IsDecl reports whether the binding is a body-less declaration.
func (n *LetBinding) IsDecl() bool { return n.Body == nil }

// Block represents { let a = ...; let b = ...; result }.
type Block struct {
	info
	SpanVal Span
	Decls   []*LetBinding
	Result  Expr
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) expr()      {}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program is an ordered sequence of top-level declarations and
// expressions. Each expression item produces one output value.
type Program struct {
	SpanVal Span
	Items   []Expr
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// Outputs returns the items that produce a value, in order.
func (n *Program) Outputs() []Expr {
	var out []Expr
	for _, item := range n.Items {
		if let, ok := item.(*LetBinding); ok && let.IsDecl() {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Inspect traverses the tree rooted at node in depth-first order, calling f
// for each node before its children. If f returns false the children of
// that node are skipped.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	for _, child := range Children(node) {
		Inspect(child, f)
	}
}

// Children returns the direct children of node in source order.
func Children(node Node) []Node {
	switch n := node.(type) {
	case *Program:
		out := make([]Node, 0, len(n.Items))
		for _, item := range n.Items {
			out = append(out, item)
		}
		return out
	case *BinaryOp:
		return []Node{n.Left, n.Right}
	case *UnaryOp:
		return []Node{n.Operand}
	case *SecretWrap:
		return []Node{n.Inner}
	case *Conditional:
		return []Node{n.Guard, n.Then, n.Else}
	case *Select:
		return []Node{n.Guard, n.Then, n.Else}
	case *LetBinding:
		if n.Body == nil {
			return []Node{n.Value}
		}
		return []Node{n.Value, n.Body}
	case *Block:
		out := make([]Node, 0, len(n.Decls)+1)
		for _, d := range n.Decls {
			out = append(out, d)
		}
		return append(out, n.Result)
	}
	return nil
}
