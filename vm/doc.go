// Package vm runs obli programs.
//
// This package contains:
//   - a bytecode format with a builder, reader and disassembler
//   - a compiler from analyzed ASTs to bytecode
//   - a stack interpreter that evaluates selects with lib/ct masks and
//     counts executed instructions
package vm
