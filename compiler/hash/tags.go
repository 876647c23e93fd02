package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing AST serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every recorded structure hash.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing structure hashes.
const HashVersion byte = 1

// AST node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagIntLiteral  byte = 0x01
	TagBoolLiteral byte = 0x02

	// Variable references
	TagBoundRef byte = 0x0B // de Bruijn index
	TagFreeRef  byte = 0x0D // unbound name

	// Operators
	TagUnary  byte = 0x10
	TagBinary byte = 0x11
	TagSecret byte = 0x12

	// Branching
	TagConditional byte = 0x18
	TagSelect      byte = 0x19

	// Binding and structure
	TagLet     byte = 0x20
	TagDecl    byte = 0x21
	TagBlock   byte = 0x22
	TagProgram byte = 0x23

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral, TagBoolLiteral,
	TagBoundRef, TagFreeRef,
	TagUnary, TagBinary, TagSecret,
	TagConditional, TagSelect,
	TagLet, TagDecl, TagBlock, TagProgram,
}
