package hash

// ---------------------------------------------------------------------------
// Frozen hashing AST types.
//
// These are stripped-down parallels of compiler/ast.go with no span data and
// de Bruijn indices instead of binder names. Two programs that differ only
// in how their bindings are named produce identical hashing ASTs.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing AST nodes.
type HNode interface {
	hnode() // marker method
}

type HIntLiteral struct{ Value int64 }
type HBoolLiteral struct{ Value bool }

func (*HIntLiteral) hnode()  {}
func (*HBoolLiteral) hnode() {}

// HBoundRef references a binding by de Bruijn index: 0 is the innermost
// binding in scope, 1 the one before it, and so on.
type HBoundRef struct {
	Index uint32
}

// HFreeRef references a name with no binding in scope. Analysis rejects
// these, but hashing does not require an analyzed program.
type HFreeRef struct {
	Name string
}

func (*HBoundRef) hnode() {}
func (*HFreeRef) hnode()  {}

// HUnary and HBinary carry the operator's source symbol.
type HUnary struct {
	Op      string
	Operand HNode
}

type HBinary struct {
	Op    string
	Left  HNode
	Right HNode
}

type HSecret struct {
	Inner HNode
}

func (*HUnary) hnode()  {}
func (*HBinary) hnode() {}
func (*HSecret) hnode() {}

// HConditional is a native branch; HSelect is its branch-free rewrite.
type HConditional struct {
	Guard, Then, Else HNode
}

type HSelect struct {
	Guard, Then, Else HNode
}

func (*HConditional) hnode() {}
func (*HSelect) hnode()      {}

// HLet binds Value for the duration of Body.
type HLet struct {
	Value HNode
	Body  HNode
}

// HDecl binds Value for the rest of the enclosing block or program.
type HDecl struct {
	Value HNode
}

type HBlock struct {
	Decls  []HNode
	Result HNode
}

// HProgram is the top-level hashing node.
type HProgram struct {
	Items []HNode
}

func (*HLet) hnode()     {}
func (*HDecl) hnode()    {}
func (*HBlock) hnode()   {}
func (*HProgram) hnode() {}
