// Package ct provides branch-free primitives over int64 values.
//
// Booleans are carried as int64 masks holding 0 or 1. Every function
// executes the same instruction sequence whatever its inputs are, so the
// interpreter and generated Go code can combine secret values without
// data-dependent branches.
package ct

// Select returns a when c is 1 and b when c is 0. c must be 0 or 1.
func Select(c, a, b int64) int64 {
	m := -c
	return (a & m) | (b &^ m)
}

// Eq returns 1 if a == b, else 0.
func Eq(a, b int64) int64 {
	x := a ^ b
	// x|-x has the sign bit set exactly when x is non-zero.
	return 1 ^ int64((uint64(x)|uint64(-x))>>63)
}

// Ne returns 1 if a != b, else 0.
func Ne(a, b int64) int64 {
	return 1 ^ Eq(a, b)
}

// Lt returns 1 if a < b (signed), else 0.
func Lt(a, b int64) int64 {
	d := a - b
	return int64(uint64(d^((a^b)&(d^a))) >> 63)
}

// Le returns 1 if a <= b, else 0.
func Le(a, b int64) int64 {
	return 1 ^ Lt(b, a)
}

// Gt returns 1 if a > b, else 0.
func Gt(a, b int64) int64 {
	return Lt(b, a)
}

// Ge returns 1 if a >= b, else 0.
func Ge(a, b int64) int64 {
	return 1 ^ Lt(a, b)
}

// Not flips a 0/1 mask.
func Not(c int64) int64 {
	return c ^ 1
}

// And and Or combine 0/1 masks without short-circuiting.
func And(a, b int64) int64 { return a & b }
func Or(a, b int64) int64  { return a | b }

// FromBool converts a bool to a 0/1 mask.
func FromBool(b bool) int64 {
	var c int64
	if b {
		c = 1
	}
	return c
}

// ToBool converts a 0/1 mask back to a bool. Use it only on values that
// are about to leave the constant-time region.
func ToBool(c int64) bool {
	return c != 0
}
