package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/obli/compiler"
)

// ---------------------------------------------------------------------------
// Rust backend
// ---------------------------------------------------------------------------

// Integers are i64 with wrapping arithmetic. Secret booleans are plain
// bools combined with the non-short-circuit & and | operators. Selects call
// ct_select_*, which mask both arms behind core::hint::black_box so the
// optimizer cannot turn them back into a branch.
type rustBackend struct{}

func (rustBackend) Name() string      { return "rust" }
func (rustBackend) Extension() string { return ".rs" }

const rustHeader = `// Code generated by obli. DO NOT EDIT.

#![allow(unused_variables, unused_parens, unused_braces)]
`

const rustSelectInt = `
#[inline(always)]
fn ct_select_i64(c: bool, a: i64, b: i64) -> i64 {
    let m = (core::hint::black_box(c) as i64).wrapping_neg();
    (a & m) | (b & !m)
}
`

const rustSelectBool = `
#[inline(always)]
fn ct_select_bool(c: bool, a: bool, b: bool) -> bool {
    ct_select_i64(c, a as i64, b as i64) != 0
}
`

func (rustBackend) Generate(prog *compiler.Program, _ GenerateOptions) (*Result, error) {
	g := &rustGen{names: newNamer(rustReserved, true)}

	var body strings.Builder
	for _, item := range prog.Items {
		if let, ok := item.(*compiler.LetBinding); ok && let.IsDecl() {
			body.WriteString("    " + g.let(let) + "\n")
			continue
		}
		body.WriteString(`    println!("{}", ` + g.expr(item, rustTop) + ");\n")
	}

	var out strings.Builder
	out.WriteString(rustHeader)
	if g.selectInt || g.selectBool {
		out.WriteString(rustSelectInt)
	}
	if g.selectBool {
		out.WriteString(rustSelectBool)
	}
	out.WriteString("\nfn main() {\n")
	out.WriteString(body.String())
	out.WriteString("}\n")

	return &Result{Target: "rust", Code: out.String(), Warnings: g.names.warnings}, nil
}

// Precedence levels for parenthesization. Arithmetic renders as method
// calls, which bind tighter than any operator.
const (
	rustTop     = iota // argument position, no parentheses needed
	rustOr             // ||
	rustAnd            // &&
	rustCmp            // == != < <= > >=, non-associative
	rustBitOr          // |
	rustBitAnd         // &
	rustUnary          // ! -
	rustPostfix        // method call receiver
)

type rustGen struct {
	names      *namer
	selectInt  bool
	selectBool bool
}

func rustType(t compiler.Type) string {
	if t == compiler.TypeBool {
		return "bool"
	}
	return "i64"
}

// let renders a binding statement. The value is rendered before the name
// is bound, so it sees the previous binding.
func (g *rustGen) let(let *compiler.LetBinding) string {
	value := g.expr(let.Value, rustTop)
	name := g.names.declare(let.Name)
	return fmt.Sprintf("let %s: %s = %s;", name, rustType(let.Value.Type()), value)
}

// expr renders e for a context of precedence ctx.
func (g *rustGen) expr(expr compiler.Expr, ctx int) string {
	switch e := expr.(type) {
	case *compiler.IntLiteral:
		return strconv.FormatInt(e.Value, 10) + "i64"

	case *compiler.BoolLiteral:
		return strconv.FormatBool(e.Value)

	case *compiler.Identifier:
		return g.names.resolve(e.Name)

	case *compiler.SecretWrap:
		return "core::hint::black_box(" + g.expr(e.Inner, rustTop) + ")"

	case *compiler.UnaryOp:
		if e.Op == compiler.OpNeg {
			return g.expr(e.Operand, rustPostfix) + ".wrapping_neg()"
		}
		return wrap(ctx > rustUnary, "!"+g.expr(e.Operand, rustUnary))

	case *compiler.BinaryOp:
		return g.binary(e, ctx)

	case *compiler.Conditional:
		s := fmt.Sprintf("if %s { %s } else { %s }",
			g.expr(e.Guard, rustTop), g.expr(e.Then, rustTop), g.expr(e.Else, rustTop))
		return wrap(ctx > rustTop, s)

	case *compiler.Select:
		fn := "ct_select_i64"
		if e.Type() == compiler.TypeBool {
			fn = "ct_select_bool"
			g.selectBool = true
		} else {
			g.selectInt = true
		}
		return fmt.Sprintf("%s(%s, %s, %s)", fn,
			g.expr(e.Guard, rustTop), g.expr(e.Then, rustTop), g.expr(e.Else, rustTop))

	case *compiler.LetBinding:
		g.names.push()
		defer g.names.pop()
		s := "{ " + g.let(e) + " " + g.expr(e.Body, rustTop) + " }"
		return wrap(ctx > rustTop, s)

	case *compiler.Block:
		g.names.push()
		defer g.names.pop()
		var sb strings.Builder
		sb.WriteString("{ ")
		for _, d := range e.Decls {
			sb.WriteString(g.let(d) + " ")
		}
		sb.WriteString(g.expr(e.Result, rustTop) + " }")
		return wrap(ctx > rustTop, sb.String())
	}
	panic(fmt.Sprintf("codegen: unexpected node %T", expr))
}

var rustMethods = map[compiler.BinOp]string{
	compiler.OpAdd: "wrapping_add",
	compiler.OpSub: "wrapping_sub",
	compiler.OpMul: "wrapping_mul",
	compiler.OpDiv: "wrapping_div",
	compiler.OpMod: "wrapping_rem",
}

func (g *rustGen) binary(e *compiler.BinaryOp, ctx int) string {
	if m, ok := rustMethods[e.Op]; ok {
		return fmt.Sprintf("%s.%s(%s)", g.expr(e.Left, rustPostfix), m, g.expr(e.Right, rustTop))
	}

	var op string
	var prec int
	switch {
	case e.Op.IsComparison():
		op, prec = e.Op.String(), rustCmp
	case e.Op == compiler.OpAnd && e.Label().IsSecret():
		op, prec = "&", rustBitAnd
	case e.Op == compiler.OpOr && e.Label().IsSecret():
		op, prec = "|", rustBitOr
	case e.Op == compiler.OpAnd:
		op, prec = "&&", rustAnd
	default:
		op, prec = "||", rustOr
	}

	// Left-associative; comparisons do not chain, so both sides bind
	// tighter.
	leftCtx := prec
	if prec == rustCmp {
		leftCtx = prec + 1
	}
	s := g.expr(e.Left, leftCtx) + " " + op + " " + g.expr(e.Right, prec+1)
	return wrap(ctx > prec, s)
}

func wrap(cond bool, s string) string {
	if cond {
		return "(" + s + ")"
	}
	return s
}
