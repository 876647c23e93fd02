package compiler

// Label is a point in the two-element secrecy lattice Public < Secret.
// Unknown is the bottom used before analysis and never survives it.
type Label uint8

const (
	Unknown Label = iota
	Public
	Secret
)

func (l Label) String() string {
	switch l {
	case Public:
		return "public"
	case Secret:
		return "secret"
	}
	return "unknown"
}

// Join returns the least upper bound of l and o. Secret absorbs everything,
// so a join can never produce Public from a Secret input.
func (l Label) Join(o Label) Label {
	if l > o {
		return l
	}
	return o
}

// JoinAll folds Join over labels, starting from Public.
func JoinAll(labels ...Label) Label {
	out := Public
	for _, l := range labels {
		out = out.Join(l)
	}
	return out
}

// IsSecret reports whether l is Secret.
func (l Label) IsSecret() bool { return l == Secret }

// Type is the value type of an expression.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeInt
	TypeBool
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	}
	return "unknown"
}
