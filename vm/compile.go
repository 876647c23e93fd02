package vm

import (
	"fmt"
	"math"

	"github.com/chazu/obli/compiler"
)

// ---------------------------------------------------------------------------
// Chunk: compiled program
// ---------------------------------------------------------------------------

// Chunk is a compiled obli program.
type Chunk struct {
	Code    []byte
	Temps   int                       // number of temporary slots
	Outputs []OutputInfo              // one per expression item, in order
	sites   map[int]compiler.Position // DIV/MOD offset -> source position
}

// OutputInfo describes one program result.
type OutputInfo struct {
	Type  compiler.Type
	Label compiler.Label
}

// Disassemble returns a readable listing of the chunk's bytecode.
func (c *Chunk) Disassemble() string {
	return Disassemble(c.Code)
}

// ---------------------------------------------------------------------------
// Compiler: analyzed AST -> bytecode
// ---------------------------------------------------------------------------

// Compile translates an analyzed program into bytecode. Selects compile to
// straight-line code that evaluates both arms; only conditionals and
// logical operators on public values jump.
func Compile(prog *compiler.Program) (*Chunk, error) {
	c := &chunkCompiler{
		b:     NewBytecodeBuilder(),
		chunk: &Chunk{sites: make(map[int]compiler.Position)},
	}
	c.scopes = []map[string]uint16{{}}

	for _, item := range prog.Items {
		if let, ok := item.(*compiler.LetBinding); ok && let.IsDecl() {
			if err := c.declare(let); err != nil {
				return nil, err
			}
			continue
		}
		if err := c.expr(item); err != nil {
			return nil, err
		}
		c.b.Emit(OpOutput)
		c.chunk.Outputs = append(c.chunk.Outputs, OutputInfo{Type: item.Type(), Label: item.Label()})
	}
	if err := c.b.Err(); err != nil {
		return nil, err
	}

	c.chunk.Code = c.b.Bytes()
	return c.chunk, nil
}

type chunkCompiler struct {
	b      *BytecodeBuilder
	chunk  *Chunk
	scopes []map[string]uint16
}

func (c *chunkCompiler) push() { c.scopes = append(c.scopes, map[string]uint16{}) }
func (c *chunkCompiler) pop()  { c.scopes = c.scopes[:len(c.scopes)-1] }

// declare evaluates a let's value into a fresh slot bound in the current
// scope. Slots are never reused, so shadowed bindings keep their values.
func (c *chunkCompiler) declare(let *compiler.LetBinding) error {
	if err := c.expr(let.Value); err != nil {
		return err
	}
	if c.chunk.Temps > math.MaxUint16 {
		return fmt.Errorf("%s: too many bindings", let.Name)
	}
	slot := uint16(c.chunk.Temps)
	c.chunk.Temps++
	c.b.EmitUint16(OpStoreTemp, slot)
	c.scopes[len(c.scopes)-1][let.Name] = slot
	return nil
}

func (c *chunkCompiler) lookup(name string) (uint16, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if slot, ok := c.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

var binaryOpcodes = map[compiler.BinOp]Opcode{
	compiler.OpAdd: OpAdd,
	compiler.OpSub: OpSub,
	compiler.OpMul: OpMul,
	compiler.OpDiv: OpDiv,
	compiler.OpMod: OpMod,
	compiler.OpEq:  OpEQ,
	compiler.OpNe:  OpNE,
	compiler.OpLt:  OpLT,
	compiler.OpLe:  OpLE,
	compiler.OpGt:  OpGT,
	compiler.OpGe:  OpGE,
	compiler.OpAnd: OpAnd,
	compiler.OpOr:  OpOr,
}

func (c *chunkCompiler) expr(expr compiler.Expr) error {
	switch e := expr.(type) {
	case *compiler.IntLiteral:
		c.b.EmitInt(e.Value)

	case *compiler.BoolLiteral:
		if e.Value {
			c.b.Emit(OpPushTrue)
		} else {
			c.b.Emit(OpPushFalse)
		}

	case *compiler.Identifier:
		slot, ok := c.lookup(e.Name)
		if !ok {
			return &compiler.TaintAnalysisError{Pos: e.SpanVal.Start, Name: e.Name, Reason: "unbound name"}
		}
		c.b.EmitUint16(OpPushTemp, slot)

	case *compiler.SecretWrap:
		return c.expr(e.Inner)

	case *compiler.UnaryOp:
		if err := c.expr(e.Operand); err != nil {
			return err
		}
		if e.Op == compiler.OpNot {
			c.b.Emit(OpNot)
		} else {
			c.b.Emit(OpNeg)
		}

	case *compiler.BinaryOp:
		if e.Op.IsLogical() && !e.Label().IsSecret() {
			return c.shortCircuit(e)
		}
		if err := c.expr(e.Left); err != nil {
			return err
		}
		if err := c.expr(e.Right); err != nil {
			return err
		}
		if e.Op.IsPartial() {
			c.chunk.sites[c.b.Len()] = e.SpanVal.Start
		}
		c.b.Emit(binaryOpcodes[e.Op])

	case *compiler.Conditional:
		if e.Guard == nil {
			return fmt.Errorf("conditional at %d:%d was detached by the oblivious transform", e.SpanVal.Start.Line, e.SpanVal.Start.Column)
		}
		elseLabel, end := c.b.NewLabel(), c.b.NewLabel()
		if err := c.expr(e.Guard); err != nil {
			return err
		}
		c.b.EmitJump(OpJumpFalse, elseLabel)
		if err := c.expr(e.Then); err != nil {
			return err
		}
		c.b.EmitJump(OpJump, end)
		c.b.Mark(elseLabel)
		if err := c.expr(e.Else); err != nil {
			return err
		}
		c.b.Mark(end)

	case *compiler.Select:
		for _, part := range []compiler.Expr{e.Guard, e.Then, e.Else} {
			if err := c.expr(part); err != nil {
				return err
			}
		}
		c.b.Emit(OpSelect)

	case *compiler.LetBinding:
		if e.IsDecl() {
			return fmt.Errorf("declaration of %s used as a value", e.Name)
		}
		c.push()
		defer c.pop()
		if err := c.declare(e); err != nil {
			return err
		}
		return c.expr(e.Body)

	case *compiler.Block:
		c.push()
		defer c.pop()
		for _, d := range e.Decls {
			if err := c.declare(d); err != nil {
				return err
			}
		}
		return c.expr(e.Result)

	default:
		return fmt.Errorf("vm: cannot compile %T", expr)
	}
	return nil
}

// shortCircuit compiles a public and/or so the right operand only runs
// when the left one does not decide the result.
func (c *chunkCompiler) shortCircuit(e *compiler.BinaryOp) error {
	decided, end := c.b.NewLabel(), c.b.NewLabel()
	if err := c.expr(e.Left); err != nil {
		return err
	}
	jump, result := OpJumpFalse, OpPushFalse
	if e.Op == compiler.OpOr {
		jump, result = OpJumpTrue, OpPushTrue
	}
	c.b.EmitJump(jump, decided)
	if err := c.expr(e.Right); err != nil {
		return err
	}
	c.b.EmitJump(OpJump, end)
	c.b.Mark(decided)
	c.b.Emit(result)
	c.b.Mark(end)
	return nil
}
