package compiler

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Format: canonical printer for obli source
// ---------------------------------------------------------------------------

const maxLineWidth = 80

// Format parses an obli source string and returns canonically formatted
// output. This is the library-level entry point; it does not touch the
// filesystem.
func Format(source string) (string, error) {
	prog, err := Parse(source)
	if err != nil {
		return "", err
	}
	return FormatProgram(prog), nil
}

// FormatProgram prints prog, one item per line. Transformed programs print
// their selects as select(guard, then, else), which is not valid source.
func FormatProgram(prog *Program) string {
	f := &formatter{buf: &strings.Builder{}}
	for _, item := range prog.Items {
		f.formatItem(item)
		f.writeln(";")
	}
	return f.buf.String()
}

// FormatExpr prints a single expression on one line.
func FormatExpr(e Expr) string {
	return inline(e, precLowest, false)
}

// formatter walks the AST and emits canonically formatted source.
type formatter struct {
	indent int
	buf    *strings.Builder
}

// write appends text to the output buffer.
func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

// writeln appends text followed by a newline.
func (f *formatter) writeln(s string) {
	f.buf.WriteString(s)
	f.buf.WriteByte('\n')
}

// writeIndent writes the current indentation prefix (two spaces per level).
func (f *formatter) writeIndent() {
	for i := 0; i < f.indent; i++ {
		f.buf.WriteString("  ")
	}
}

// formatItem prints a top-level item or block entry, starting at the
// current indentation. A chain of let-expressions is laid out one binding
// per line; everything else goes on one line when it fits.
func (f *formatter) formatItem(e Expr) {
	f.writeIndent()
	for {
		let, ok := e.(*LetBinding)
		if !ok || let.IsDecl() {
			break
		}
		f.writeln("let " + let.Name + " = " + inline(let.Value, precLowest, false))
		f.writeIndent()
		e = let.Body
		if body := inline(e, precLowest, false); strings.HasPrefix(body, "-") {
			f.write("(" + body + ")")
			return
		}
	}

	line := inline(e, precLowest, false)
	block, isBlock := e.(*Block)
	if !isBlock || f.indent*2+len(line) <= maxLineWidth {
		f.write(line)
		return
	}

	f.writeln("{")
	f.indent++
	for _, d := range block.Decls {
		f.formatItem(d)
		f.writeln(";")
	}
	f.formatItem(block.Result)
	f.writeln("")
	f.indent--
	f.writeIndent()
	f.write("}")
}

// Precedence levels for parenthesization. Let and if sit at precLowest
// because they extend as far right as possible.
const (
	precLowest = iota
	precOr
	precAnd
	precCompare
	precAdd
	precMul
	precUnary
)

func binaryPrec(op BinOp) int {
	switch op.Precedence() {
	case 1:
		return precOr
	case 2:
		return precAnd
	case 3:
		return precCompare
	case 4:
		return precAdd
	}
	return precMul
}

// inline prints e on one line. ctx is the minimum precedence the context
// accepts without parentheses; inCond is set inside the parts of a
// conditional, where a bare conditional must be parenthesized.
func inline(expr Expr, ctx int, inCond bool) string {
	switch e := expr.(type) {
	case *IntLiteral:
		return strconv.FormatInt(e.Value, 10)

	case *BoolLiteral:
		return strconv.FormatBool(e.Value)

	case *Identifier:
		return e.Name

	case *SecretWrap:
		return "secret(" + inline(e.Inner, precLowest, false) + ")"

	case *UnaryOp:
		operand := inline(e.Operand, precUnary, false)
		s := "-" + operand
		if e.Op == OpNot {
			s = "not " + operand
		}
		return parenIf(ctx > precUnary, s)

	case *BinaryOp:
		prec := binaryPrec(e.Op)
		leftCtx, rightCtx := prec, prec+1
		if e.Op.IsComparison() {
			leftCtx = prec + 1
		}
		s := inline(e.Left, leftCtx, false) + " " + e.Op.String() + " " + inline(e.Right, rightCtx, false)
		return parenIf(ctx > prec, s)

	case *Conditional:
		s := "if " + inline(e.Guard, precLowest, true) +
			" then " + inline(e.Then, precLowest, true) +
			" else " + inline(e.Else, precLowest, true)
		return parenIf(ctx > precLowest || inCond, s)

	case *Select:
		return "select(" + inline(e.Guard, precLowest, false) + ", " +
			inline(e.Then, precLowest, false) + ", " +
			inline(e.Else, precLowest, false) + ")"

	case *LetBinding:
		s := "let " + e.Name + " = " + inline(e.Value, precLowest, inCond)
		if e.Body != nil {
			body := inline(e.Body, precLowest, inCond)
			if strings.HasPrefix(body, "-") {
				body = "(" + body + ")"
			}
			s += " " + body
		}
		return parenIf(ctx > precLowest, s)

	case *Block:
		var sb strings.Builder
		sb.WriteString("{ ")
		for _, d := range e.Decls {
			sb.WriteString(inline(d, precLowest, false))
			sb.WriteString("; ")
		}
		sb.WriteString(inline(e.Result, precLowest, false))
		sb.WriteString(" }")
		return sb.String()
	}
	return "<?>"
}

func parenIf(cond bool, s string) string {
	if cond {
		return "(" + s + ")"
	}
	return s
}
