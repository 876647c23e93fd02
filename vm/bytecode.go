package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Push Constants
const (
	OpPushTrue  Opcode = 0x11 // push 1
	OpPushFalse Opcode = 0x12 // push 0
	OpPushInt8  Opcode = 0x14 // push 8-bit signed integer
	OpPushInt64 Opcode = 0x15 // push 64-bit signed integer
)

// Variable Operations
const (
	OpPushTemp  Opcode = 0x20 // push temporary (16-bit index)
	OpStoreTemp Opcode = 0x23 // pop into temporary (16-bit index)
)

// Arithmetic and comparison. Binary ops pop 2 and push 1.
const (
	OpAdd Opcode = 0x40
	OpSub Opcode = 0x41
	OpMul Opcode = 0x42
	OpDiv Opcode = 0x43
	OpMod Opcode = 0x44
	OpLT  Opcode = 0x45
	OpGT  Opcode = 0x46
	OpLE  Opcode = 0x47
	OpGE  Opcode = 0x48
	OpEQ  Opcode = 0x49
	OpNE  Opcode = 0x4A
	OpNeg Opcode = 0x4B // pops 1, pushes 1
)

// Mask operations on 0/1 values. None of them branch.
const (
	OpAnd    Opcode = 0x50
	OpOr     Opcode = 0x51
	OpNot    Opcode = 0x52
	OpSelect Opcode = 0x53 // pops cond, then, else; pushes the chosen value
)

// Control Flow
const (
	OpJump      Opcode = 0x60 // unconditional jump (16-bit offset)
	OpJumpTrue  Opcode = 0x61 // pop, jump if true (16-bit offset)
	OpJumpFalse Opcode = 0x62 // pop, jump if false (16-bit offset)
)

// Output
const (
	OpOutput Opcode = 0x70 // pop a program result
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
	StackEffect  int    // net effect on stack
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpPushTrue:  {"PUSH_TRUE", 0, 1},
	OpPushFalse: {"PUSH_FALSE", 0, 1},
	OpPushInt8:  {"PUSH_INT8", 1, 1},
	OpPushInt64: {"PUSH_INT64", 8, 1},

	OpPushTemp:  {"PUSH_TEMP", 2, 1},
	OpStoreTemp: {"STORE_TEMP", 2, -1},

	OpAdd: {"ADD", 0, -1},
	OpSub: {"SUB", 0, -1},
	OpMul: {"MUL", 0, -1},
	OpDiv: {"DIV", 0, -1},
	OpMod: {"MOD", 0, -1},
	OpLT:  {"LT", 0, -1},
	OpGT:  {"GT", 0, -1},
	OpLE:  {"LE", 0, -1},
	OpGE:  {"GE", 0, -1},
	OpEQ:  {"EQ", 0, -1},
	OpNE:  {"NE", 0, -1},
	OpNeg: {"NEG", 0, 0},

	OpAnd:    {"AND", 0, -1},
	OpOr:     {"OR", 0, -1},
	OpNot:    {"NOT", 0, 0},
	OpSelect: {"SELECT", 0, -2},

	OpJump:      {"JUMP", 2, 0},
	OpJumpTrue:  {"JUMP_TRUE", 2, -1},
	OpJumpFalse: {"JUMP_FALSE", 2, -1},

	OpOutput: {"OUTPUT", 0, -1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
	err   error
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Err reports a jump that did not fit its 16-bit offset.
func (b *BytecodeBuilder) Err() error {
	return b.err
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitInt pushes v using the shortest encoding.
func (b *BytecodeBuilder) EmitInt(v int64) {
	if v >= math.MinInt8 && v <= math.MaxInt8 {
		b.bytes = append(b.bytes, byte(OpPushInt8), byte(int8(v)))
		return
	}
	b.bytes = append(b.bytes, byte(OpPushInt64))
	b.bytes = binary.LittleEndian.AppendUint64(b.bytes, uint64(v))
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a forward reference in bytecode. The language has no
// loops, so every jump is forward.
type Label struct {
	resolved bool
	position int
	refs     []int // operand positions waiting for this label
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches every jump
// that referenced it.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // offset from after the operand
		if offset > math.MaxInt16 && b.err == nil {
			b.err = fmt.Errorf("jump at %d spans %d bytes, more than a 16-bit offset can hold", ref-1, offset)
		}
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// EmitJump emits a forward jump to label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) {
	if label.resolved {
		panic("backward jump")
	}
	b.bytes = append(b.bytes, byte(op))
	label.refs = append(label.refs, len(b.bytes))
	b.bytes = append(b.bytes, 0, 0) // placeholder
}

// ---------------------------------------------------------------------------
// Bytecode reader for disassembly
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads and returns the next opcode.
func (r *BytecodeReader) ReadOpcode() Opcode {
	return Opcode(r.ReadByte())
}

// ReadByte reads a single byte operand.
func (r *BytecodeReader) ReadByte() byte {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *BytecodeReader) ReadUint16() uint16 {
	if r.pos+2 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadInt64 reads a 64-bit operand (little-endian).
func (r *BytecodeReader) ReadInt64() int64 {
	if r.pos+8 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint64(r.bytes[r.pos:])
	r.pos += 8
	return int64(v)
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's
// position and advances the reader.
func DisassembleInstruction(r *BytecodeReader) string {
	pos := r.Position()
	op := r.ReadOpcode()
	name := op.Info().Name

	switch op {
	case OpPushInt8:
		return fmt.Sprintf("%04d  %s %d", pos, name, int8(r.ReadByte()))

	case OpPushInt64:
		return fmt.Sprintf("%04d  %s %d", pos, name, r.ReadInt64())

	case OpPushTemp, OpStoreTemp:
		return fmt.Sprintf("%04d  %s %d", pos, name, r.ReadUint16())

	case OpJump, OpJumpTrue, OpJumpFalse:
		offset := int16(r.ReadUint16())
		target := r.Position() + int(offset)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, name, offset, target)
	}

	for i := 0; i < op.Info().OperandBytes; i++ {
		r.ReadByte()
	}
	return fmt.Sprintf("%04d  %s", pos, name)
}

// Disassemble returns a full disassembly of bytecode, one instruction per
// line.
func Disassemble(bc []byte) string {
	r := NewBytecodeReader(bc)
	var sb strings.Builder
	for r.HasMore() {
		sb.WriteString(DisassembleInstruction(r))
		sb.WriteByte('\n')
	}
	return sb.String()
}
