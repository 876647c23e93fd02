package codegen

import "fmt"

// goBuiltins are Go keywords and predeclared identifiers, plus the names the
// Go backend itself emits. A source name that collides gets a trailing
// underscore.
var goBuiltins = map[string]bool{
	// Builtin functions
	"len": true, "cap": true, "make": true, "new": true, "append": true,
	"copy": true, "delete": true, "close": true, "panic": true, "recover": true,
	"print": true, "println": true, "complex": true, "real": true, "imag": true,
	"min": true, "max": true, "clear": true,
	// Constants
	"true": true, "false": true, "nil": true, "iota": true,
	// Types
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"byte": true, "rune": true, "string": true, "bool": true, "error": true,
	"any": true, "comparable": true, "uintptr": true,
	// Go keywords (cannot be used as identifiers)
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
	// Emitted by the backend
	"_": true, "main": true, "fmt": true,
	"ctSelect": true, "ctEq": true, "ctLt": true, "ctNot": true,
	"b2i": true, "i2b": true, "opaque": true,
}

// rustReserved are Rust keywords (strict and reserved) and the names the
// Rust backend emits.
var rustReserved = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "crate": true,
	"else": true, "enum": true, "extern": true, "false": true, "fn": true,
	"for": true, "if": true, "impl": true, "in": true, "let": true,
	"loop": true, "match": true, "mod": true, "move": true, "mut": true,
	"pub": true, "ref": true, "return": true, "self": true, "Self": true,
	"static": true, "struct": true, "super": true, "trait": true, "true": true,
	"type": true, "unsafe": true, "use": true, "where": true, "while": true,
	"async": true, "await": true, "dyn": true, "abstract": true, "become": true,
	"box": true, "do": true, "final": true, "macro": true, "override": true,
	"priv": true, "typeof": true, "unsized": true, "virtual": true, "yield": true,
	"try": true, "gen": true,
	"_": true, "main": true, "core": true, "std": true, "println": true,
	"ct_select_i64": true, "ct_select_bool": true,
}

// namer maps source names to target identifiers. It keeps renamed
// bindings from capturing each other: a target name is never reused while
// a different source name that owns it is still visible.
type namer struct {
	reserved map[string]bool

	// redeclare allows a name to be bound twice in one scope, as Rust's
	// let does. Go's := does not.
	redeclare bool

	scopes   []*nameScope
	warnings []string
}

type nameScope struct {
	names map[string]string // source name -> target name
	used  map[string]bool   // target names bound in this scope
}

func newNamer(reserved map[string]bool, redeclare bool) *namer {
	n := &namer{reserved: reserved, redeclare: redeclare}
	n.push()
	return n
}

func (n *namer) push() {
	n.scopes = append(n.scopes, &nameScope{names: map[string]string{}, used: map[string]bool{}})
}

func (n *namer) pop() {
	n.scopes = n.scopes[:len(n.scopes)-1]
}

// declare binds src in the innermost scope and returns its target name.
func (n *namer) declare(src string) string {
	base := src
	if n.reserved[base] {
		base += "_"
	}
	name := base
	for i := 1; !n.free(src, name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	if base != src {
		n.warn(fmt.Sprintf("renamed %s to %s: reserved in the target language", src, name))
	}

	cur := n.scopes[len(n.scopes)-1]
	cur.names[src] = name
	cur.used[name] = true
	return name
}

func (n *namer) free(src, name string) bool {
	if n.reserved[name] {
		return false
	}
	if !n.redeclare && n.scopes[len(n.scopes)-1].used[name] {
		return false
	}
	seen := map[string]bool{}
	for i := len(n.scopes) - 1; i >= 0; i-- {
		for s, t := range n.scopes[i].names {
			if seen[s] {
				continue
			}
			seen[s] = true
			if t == name && s != src {
				return false
			}
		}
	}
	return true
}

// resolve returns the target name of the innermost binding of src.
func (n *namer) resolve(src string) string {
	for i := len(n.scopes) - 1; i >= 0; i-- {
		if t, ok := n.scopes[i].names[src]; ok {
			return t
		}
	}
	return src
}

func (n *namer) warn(msg string) {
	for _, w := range n.warnings {
		if w == msg {
			return
		}
	}
	n.warnings = append(n.warnings, msg)
}
