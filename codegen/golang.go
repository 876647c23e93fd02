package codegen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/obli/compiler"
)

// ---------------------------------------------------------------------------
// Go backend
// ---------------------------------------------------------------------------

// Public values are int64 and bool. Secret booleans are int64 masks holding
// 0 or 1, so that selects, comparisons and logic on them never need a
// branch. Expressions Go has no syntax for (conditionals, let-expressions,
// blocks) become immediately called closures.
type goBackend struct{}

func (goBackend) Name() string      { return "go" }
func (goBackend) Extension() string { return ".go" }

func (goBackend) Generate(prog *compiler.Program, opts GenerateOptions) (*Result, error) {
	g := &goGen{names: newNamer(goBuiltins, false), used: map[string]bool{}}

	var body []jen.Code
	for _, item := range prog.Items {
		if let, ok := item.(*compiler.LetBinding); ok && let.IsDecl() {
			body = append(body, g.let(let)...)
			continue
		}
		body = append(body, jen.Qual("fmt", "Println").Call(g.as(item, false)))
	}

	f := jen.NewFile("main")
	f.HeaderComment("Code generated by obli. DO NOT EDIT.")
	f.Func().Id("main").Params().Block(body...)
	for _, h := range goHelpers {
		if g.used[h.name] {
			f.Line()
			h.decl(f)
		}
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("codegen: render go: %w", err)
	}
	res := &Result{Target: "go", Code: buf.String(), Warnings: g.names.warnings}

	if !opts.SkipValidation {
		if errs := ValidateGo("main.go", res.Code); len(errs) > 0 {
			return nil, validationFailure(errs)
		}
	}
	return res, nil
}

// validationFailure reports generated Go that does not type-check. The
// functions holding the errors are named first: a broken helper points at
// the prelude, a broken main at the lowering of the program.
func validationFailure(errs []ValidationError) error {
	var fns []string
	for fn := range FunctionsWithErrors(errs) {
		fns = append(fns, fn)
	}
	sort.Strings(fns)
	where := ""
	if len(fns) > 0 {
		where = " in " + strings.Join(fns, ", ")
	}
	return fmt.Errorf("codegen: generated Go does not type-check%s:\n%s", where, FormatValidationErrors(errs, "main.go"))
}

// Go operator precedence, plus levels for unary and primary expressions.
const (
	goOr = iota + 1
	goAnd
	goCmp
	goAdd // + - | ^
	goMul // * / % & &^
	goUnary
	goPrimary
)

var goBinary = map[compiler.BinOp]struct {
	op   string
	prec int
}{
	compiler.OpAdd: {"+", goAdd},
	compiler.OpSub: {"-", goAdd},
	compiler.OpMul: {"*", goMul},
	compiler.OpDiv: {"/", goMul},
	compiler.OpMod: {"%", goMul},
	compiler.OpEq:  {"==", goCmp},
	compiler.OpNe:  {"!=", goCmp},
	compiler.OpLt:  {"<", goCmp},
	compiler.OpLe:  {"<=", goCmp},
	compiler.OpGt:  {">", goCmp},
	compiler.OpGe:  {">=", goCmp},
	compiler.OpAnd: {"&&", goAnd},
	compiler.OpOr:  {"||", goOr},
}

type goGen struct {
	names *namer
	used  map[string]bool // helpers referenced by the generated code
}

// code is a rendered expression and the precedence of its outermost
// operator.
type code struct {
	s    *jen.Statement
	prec int
}

func primary(s *jen.Statement) code { return code{s, goPrimary} }

// paren returns c, parenthesized when it binds looser than min.
func (c code) paren(min int) *jen.Statement {
	if c.prec < min {
		return jen.Parens(c.s)
	}
	return c.s
}

// isMask reports whether e is held as a 0/1 int64.
func isMask(e compiler.Expr) bool {
	return e.Type() == compiler.TypeBool && e.Label().IsSecret()
}

func (g *goGen) goType(e compiler.Expr) *jen.Statement {
	if e.Type() == compiler.TypeBool && !isMask(e) {
		return jen.Bool()
	}
	return jen.Int64()
}

func (g *goGen) call(helper string, args ...jen.Code) code {
	g.used[helper] = true
	return primary(jen.Id(helper).Call(args...))
}

// let renders a binding and the blank assignment that keeps Go from
// rejecting it as unused.
func (g *goGen) let(let *compiler.LetBinding) []jen.Code {
	value := g.as(let.Value, isMask(let.Value))
	name := g.names.declare(let.Name)
	return []jen.Code{
		jen.Id(name).Op(":=").Add(value),
		jen.Id("_").Op("=").Id(name),
	}
}

// as renders e converted to a mask (mask true) or to its native
// representation.
func (g *goGen) as(e compiler.Expr, mask bool) *jen.Statement {
	return g.conv(e, mask).s
}

func (g *goGen) conv(e compiler.Expr, mask bool) code {
	c := g.expr(e)
	if e.Type() != compiler.TypeBool || isMask(e) == mask {
		return c
	}
	if mask {
		return g.call("b2i", c.s)
	}
	return g.call("i2b", c.s)
}

// isConst reports whether Go would treat e's rendering as a constant
// expression. Arithmetic on two constants is made non-constant so that
// overflow and division by zero happen at run time, as they do in obli.
func isConst(e compiler.Expr) bool {
	switch e := e.(type) {
	case *compiler.IntLiteral, *compiler.BoolLiteral:
		return true
	case *compiler.UnaryOp:
		return isConst(e.Operand)
	}
	return false
}

func constZero(e compiler.Expr) bool {
	switch e := e.(type) {
	case *compiler.IntLiteral:
		return e.Value == 0
	case *compiler.UnaryOp:
		return e.Op == compiler.OpNeg && constZero(e.Operand)
	}
	return false
}

func (g *goGen) expr(expr compiler.Expr) code {
	switch e := expr.(type) {
	case *compiler.IntLiteral:
		return primary(jen.Lit(e.Value))

	case *compiler.BoolLiteral:
		return primary(jen.Lit(e.Value))

	case *compiler.Identifier:
		return primary(jen.Id(g.names.resolve(e.Name)))

	case *compiler.SecretWrap:
		if e.Type() == compiler.TypeBool {
			return g.conv(e.Inner, true)
		}
		if isConst(e.Inner) {
			return g.call("opaque", g.expr(e.Inner).s)
		}
		return g.expr(e.Inner)

	case *compiler.UnaryOp:
		if e.Op == compiler.OpNot && isMask(e) {
			return g.call("ctNot", g.as(e.Operand, true))
		}
		op := "-"
		if e.Op == compiler.OpNot {
			op = "!"
		}
		// A nested unary is parenthesized so "- -x" cannot print as "--x".
		return code{jen.Op(op).Add(g.expr(e.Operand).paren(goPrimary)), goUnary}

	case *compiler.BinaryOp:
		return g.binary(e)

	case *compiler.Conditional:
		mask := isMask(e)
		return primary(jen.Func().Params().Add(g.goType(e)).Block(
			jen.If(g.as(e.Guard, false)).Block(jen.Return(g.as(e.Then, mask))),
			jen.Return(g.as(e.Else, mask)),
		).Call())

	case *compiler.Select:
		mask := e.Type() == compiler.TypeBool
		return g.call("ctSelect", g.as(e.Guard, true), g.as(e.Then, mask), g.as(e.Else, mask))

	case *compiler.LetBinding:
		g.names.push()
		defer g.names.pop()
		stmts := g.let(e)
		stmts = append(stmts, jen.Return(g.as(e.Body, isMask(e))))
		return primary(jen.Func().Params().Add(g.goType(e)).Block(stmts...).Call())

	case *compiler.Block:
		g.names.push()
		defer g.names.pop()
		var stmts []jen.Code
		for _, d := range e.Decls {
			stmts = append(stmts, g.let(d)...)
		}
		stmts = append(stmts, jen.Return(g.as(e.Result, isMask(e))))
		return primary(jen.Func().Params().Add(g.goType(e)).Block(stmts...).Call())
	}
	panic(fmt.Sprintf("codegen: unexpected node %T", expr))
}

func (g *goGen) binary(e *compiler.BinaryOp) code {
	if isMask(e) {
		return g.maskBinary(e)
	}

	spec := goBinary[e.Op]
	left, right := g.expr(e.Left), g.expr(e.Right)
	if e.Op.IsArithmetic() {
		if isConst(e.Left) && isConst(e.Right) {
			left = g.call("opaque", left.s)
		}
		if e.Op.IsPartial() && isConst(e.Right) && constZero(e.Right) {
			right = g.call("opaque", right.s)
		}
	}
	return code{left.paren(spec.prec).Op(spec.op).Add(right.paren(spec.prec + 1)), spec.prec}
}

// maskBinary renders a secret comparison or logical operator as mask
// arithmetic.
func (g *goGen) maskBinary(e *compiler.BinaryOp) code {
	if e.Op.IsLogical() {
		op, prec := "&", goMul
		if e.Op == compiler.OpOr {
			op, prec = "|", goAdd
		}
		left, right := g.conv(e.Left, true), g.conv(e.Right, true)
		return code{left.paren(prec).Op(op).Add(right.paren(prec + 1)), prec}
	}

	// Bool operands of == and != are compared as masks.
	a, b := g.as(e.Left, true), g.as(e.Right, true)
	if e.Left.Type() == compiler.TypeInt {
		a, b = g.as(e.Left, false), g.as(e.Right, false)
	}
	not := func(c code) code { return code{jen.Lit(1).Op("^").Add(c.s), goAdd} }

	switch e.Op {
	case compiler.OpEq:
		return g.call("ctEq", a, b)
	case compiler.OpNe:
		return not(g.call("ctEq", a, b))
	case compiler.OpLt:
		return g.call("ctLt", a, b)
	case compiler.OpGt:
		return g.call("ctLt", b, a)
	case compiler.OpLe:
		return not(g.call("ctLt", b, a))
	default: // OpGe
		return not(g.call("ctLt", a, b))
	}
}

// ---------------------------------------------------------------------------
// Prelude helpers, emitted after main in this order when referenced
// ---------------------------------------------------------------------------

type goHelper struct {
	name string
	decl func(f *jen.File)
}

func ints(names ...string) jen.Code {
	ids := make([]jen.Code, len(names))
	for i, n := range names {
		ids[i] = jen.Id(n)
	}
	return jen.List(ids...).Int64()
}

var goHelpers = []goHelper{
	{"ctSelect", func(f *jen.File) {
		f.Comment("ctSelect returns a when c is 1 and b when c is 0.")
		f.Func().Id("ctSelect").Params(ints("c", "a", "b")).Int64().Block(
			jen.Id("m").Op(":=").Op("-").Id("c"),
			jen.Return(jen.Parens(jen.Id("a").Op("&").Id("m")).Op("|").Parens(jen.Id("b").Op("&^").Id("m"))),
		)
	}},
	{"ctEq", func(f *jen.File) {
		f.Func().Id("ctEq").Params(ints("a", "b")).Int64().Block(
			jen.Id("x").Op(":=").Id("a").Op("^").Id("b"),
			jen.Return(jen.Lit(1).Op("^").Int64().Call(
				jen.Parens(jen.Uint64().Call(jen.Id("x")).Op("|").Uint64().Call(jen.Op("-").Id("x"))).Op(">>").Lit(63),
			)),
		)
	}},
	{"ctLt", func(f *jen.File) {
		f.Comment("ctLt is 1 when a < b, computed from the sign of a - b corrected for overflow.")
		f.Func().Id("ctLt").Params(ints("a", "b")).Int64().Block(
			jen.Id("d").Op(":=").Id("a").Op("-").Id("b"),
			jen.Return(jen.Int64().Call(
				jen.Uint64().Call(
					jen.Id("d").Op("^").Parens(
						jen.Parens(jen.Id("a").Op("^").Id("b")).Op("&").Parens(jen.Id("d").Op("^").Id("a")),
					),
				).Op(">>").Lit(63),
			)),
		)
	}},
	{"ctNot", func(f *jen.File) {
		f.Func().Id("ctNot").Params(ints("c")).Int64().Block(
			jen.Return(jen.Id("c").Op("^").Lit(1)),
		)
	}},
	{"b2i", func(f *jen.File) {
		f.Func().Id("b2i").Params(jen.Id("b").Bool()).Int64().Block(
			jen.Var().Id("c").Int64(),
			jen.If(jen.Id("b")).Block(jen.Id("c").Op("=").Lit(1)),
			jen.Return(jen.Id("c")),
		)
	}},
	{"i2b", func(f *jen.File) {
		f.Func().Id("i2b").Params(ints("c")).Bool().Block(
			jen.Return(jen.Id("c").Op("!=").Lit(0)),
		)
	}},
	{"opaque", func(f *jen.File) {
		f.Comment("opaque hides a constant from the compiler.")
		f.Comment("//go:noinline")
		f.Func().Id("opaque").Params(ints("v")).Int64().Block(
			jen.Return(jen.Id("v")),
		)
	}},
}
