package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/chazu/obli/compiler"
	"github.com/chazu/obli/lib/ct"
)

// ---------------------------------------------------------------------------
// Values and errors
// ---------------------------------------------------------------------------

// Value is one program result. Booleans are held as 0 or 1 in Int.
type Value struct {
	Type  compiler.Type
	Label compiler.Label
	Int   int64
}

// Bool reports the value as a boolean.
func (v Value) Bool() bool {
	return ct.ToBool(v.Int)
}

// String prints the value the way a program result is shown.
func (v Value) String() string {
	if v.Type == compiler.TypeBool {
		return strconv.FormatBool(v.Bool())
	}
	return strconv.FormatInt(v.Int, 10)
}

// RuntimeError reports a fault while running a program.
type RuntimeError struct {
	Pos compiler.Position
	Msg string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// SourcePos and Kind let compiler.Diagnose render runtime faults.
func (e *RuntimeError) SourcePos() compiler.Position { return e.Pos }
func (e *RuntimeError) Kind() string                 { return "runtime error" }

// ---------------------------------------------------------------------------
// Interpreter: Bytecode execution engine
// ---------------------------------------------------------------------------

// Interpreter executes compiled chunks. It is not safe for concurrent use;
// create one per goroutine.
type Interpreter struct {
	stack []int64
	sp    int
	temps []int64

	// Steps counts executed instructions across runs. A program whose
	// secrets change but whose public inputs do not takes the same number
	// of steps.
	Steps int
}

// NewInterpreter creates a new interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		stack: make([]int64, 64),
	}
}

// Result is the outcome of one run.
type Result struct {
	Outputs []Value
	Steps   int
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (i *Interpreter) push(v int64) {
	if i.sp >= len(i.stack) {
		i.stack = append(i.stack, make([]int64, len(i.stack))...)
	}
	i.stack[i.sp] = v
	i.sp++
}

func (i *Interpreter) pop() int64 {
	if i.sp == 0 {
		panic("stack underflow")
	}
	i.sp--
	return i.stack[i.sp]
}

// ---------------------------------------------------------------------------
// Main interpreter loop
// ---------------------------------------------------------------------------

// Run executes chunk and returns its outputs in program order.
func (i *Interpreter) Run(chunk *Chunk) (*Result, error) {
	i.sp = 0
	i.temps = make([]int64, chunk.Temps)
	start := i.Steps
	outputs := make([]Value, 0, len(chunk.Outputs))

	bc := chunk.Code
	ip := 0
	for ip < len(bc) {
		op := Opcode(bc[ip])
		at := ip
		ip++
		i.Steps++

		switch op {
		case OpPushTrue:
			i.push(1)
		case OpPushFalse:
			i.push(0)
		case OpPushInt8:
			i.push(int64(int8(bc[ip])))
			ip++
		case OpPushInt64:
			i.push(int64(binary.LittleEndian.Uint64(bc[ip:])))
			ip += 8

		case OpPushTemp:
			i.push(i.temps[binary.LittleEndian.Uint16(bc[ip:])])
			ip += 2
		case OpStoreTemp:
			i.temps[binary.LittleEndian.Uint16(bc[ip:])] = i.pop()
			ip += 2

		case OpNeg:
			i.push(-i.pop())
		case OpNot:
			i.push(ct.Not(i.pop()))

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpLT, OpGT, OpLE, OpGE, OpEQ, OpNE, OpAnd, OpOr:
			b, a := i.pop(), i.pop()
			v, err := binaryOp(op, a, b)
			if err != nil {
				return nil, &RuntimeError{Pos: chunk.sites[at], Msg: err.Error()}
			}
			i.push(v)

		case OpSelect:
			els, then, cond := i.pop(), i.pop(), i.pop()
			i.push(ct.Select(cond, then, els))

		case OpJump:
			ip += 2 + int(int16(binary.LittleEndian.Uint16(bc[ip:])))
		case OpJumpTrue, OpJumpFalse:
			offset := int(int16(binary.LittleEndian.Uint16(bc[ip:])))
			ip += 2
			if ct.ToBool(i.pop()) == (op == OpJumpTrue) {
				ip += offset
			}

		case OpOutput:
			info := chunk.Outputs[len(outputs)]
			outputs = append(outputs, Value{Type: info.Type, Label: info.Label, Int: i.pop()})

		default:
			return nil, fmt.Errorf("vm: unknown opcode %s at %04d", op, at)
		}
	}

	return &Result{Outputs: outputs, Steps: i.Steps - start}, nil
}

var (
	errDivZero = errors.New("division by zero")
	errModZero = errors.New("remainder by zero")
)

// binaryOp applies op with two's complement wrapping. Division and
// remainder truncate toward zero.
func binaryOp(op Opcode, a, b int64) (int64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, errDivZero
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return 0, errModZero
		}
		return a % b, nil
	case OpLT:
		return ct.Lt(a, b), nil
	case OpGT:
		return ct.Gt(a, b), nil
	case OpLE:
		return ct.Le(a, b), nil
	case OpGE:
		return ct.Ge(a, b), nil
	case OpEQ:
		return ct.Eq(a, b), nil
	case OpNE:
		return ct.Ne(a, b), nil
	case OpAnd:
		return ct.And(a, b), nil
	case OpOr:
		return ct.Or(a, b), nil
	}
	return 0, fmt.Errorf("not a binary opcode: %s", op)
}

// Eval compiles and runs an analyzed program with a fresh interpreter.
func Eval(prog *compiler.Program) (*Result, error) {
	chunk, err := Compile(prog)
	if err != nil {
		return nil, err
	}
	return NewInterpreter().Run(chunk)
}
