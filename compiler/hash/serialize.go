package hash

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B, uint32=4B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child nodes: serialized inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) writeInt64(v int64) {
	s.buf = binary.BigEndian.AppendUint64(s.buf, uint64(v))
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case *HIntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt64(n.Value)

	case *HBoolLiteral:
		s.writeByte(TagBoolLiteral)
		if n.Value {
			s.writeByte(1)
		} else {
			s.writeByte(0)
		}

	case *HBoundRef:
		s.writeByte(TagBoundRef)
		s.writeUint32(n.Index)

	case *HFreeRef:
		s.writeByte(TagFreeRef)
		s.writeString(n.Name)

	case *HUnary:
		s.writeByte(TagUnary)
		s.writeString(n.Op)
		s.serializeNode(n.Operand)

	case *HBinary:
		s.writeByte(TagBinary)
		s.writeString(n.Op)
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *HSecret:
		s.writeByte(TagSecret)
		s.serializeNode(n.Inner)

	case *HConditional:
		s.writeByte(TagConditional)
		s.serializeNode(n.Guard)
		s.serializeNode(n.Then)
		s.serializeNode(n.Else)

	case *HSelect:
		s.writeByte(TagSelect)
		s.serializeNode(n.Guard)
		s.serializeNode(n.Then)
		s.serializeNode(n.Else)

	case *HLet:
		s.writeByte(TagLet)
		s.serializeNode(n.Value)
		s.serializeNode(n.Body)

	case *HDecl:
		s.writeByte(TagDecl)
		s.serializeNode(n.Value)

	case *HBlock:
		s.writeByte(TagBlock)
		s.writeUint32(uint32(len(n.Decls)))
		for _, d := range n.Decls {
			s.serializeNode(d)
		}
		s.serializeNode(n.Result)

	case *HProgram:
		s.writeByte(TagProgram)
		s.writeUint32(uint32(len(n.Items)))
		for _, item := range n.Items {
			s.serializeNode(item)
		}
	}
}
