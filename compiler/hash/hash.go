// Package hash computes structure hashes of obli programs.
package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/obli/compiler"
)

// HashProgram computes the SHA-256 structure hash of a program.
//
// The hash is computed over a deterministic serialization of the program's
// normalized AST with de Bruijn variable indexing. Two programs that differ
// only in binding names, whitespace or comments produce the same hash.
func HashProgram(prog *compiler.Program) [32]byte {
	return sha256.Sum256(Serialize(NormalizeProgram(prog)))
}

// String returns the hash of prog in hex.
func String(prog *compiler.Program) string {
	h := HashProgram(prog)
	return hex.EncodeToString(h[:])
}
