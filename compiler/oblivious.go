package compiler

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Oblivious Transform: secret-guarded conditionals become selects
// ---------------------------------------------------------------------------

// ErrNotAnalyzed is returned when the transform sees a node the taint
// analyzer has not labeled.
var ErrNotAnalyzed = errors.New("oblivious: program has not been analyzed")

// Decision records what the pass did with one conditional.
type Decision struct {
	Span Span
	Mode Mode
}

// Report summarizes a transform run.
type Report struct {
	Preserved int
	Rewritten int
	Decisions []Decision // in the order the pass finalized them (innermost first)
}

func (r *Report) record(c *Conditional) {
	switch c.Mode {
	case ModePreserved:
		r.Preserved++
	case ModeRewritten:
		r.Rewritten++
	}
	r.Decisions = append(r.Decisions, Decision{Span: c.SpanVal, Mode: c.Mode})
}

// Transform rewrites every secret-guarded conditional in prog into a
// Select and tags the public ones as preserved. prog must have been
// analyzed. Nested conditionals are processed before their parents.
func Transform(prog *Program) (*Report, error) {
	t := &transformer{report: &Report{}}
	for i, item := range prog.Items {
		out, err := t.rewrite(item)
		if err != nil {
			return nil, err
		}
		prog.Items[i] = out
	}
	return t.report, nil
}

// TransformExpr is Transform for a single analyzed expression.
func TransformExpr(e Expr) (Expr, *Report, error) {
	t := &transformer{report: &Report{}}
	out, err := t.rewrite(e)
	if err != nil {
		return nil, nil, err
	}
	return out, t.report, nil
}

type transformer struct {
	report *Report
}

// rewrite returns the replacement for e after rewriting its children.
func (t *transformer) rewrite(expr Expr) (Expr, error) {
	if expr.Label() == Unknown {
		return nil, ErrNotAnalyzed
	}

	var err error
	switch e := expr.(type) {
	case *IntLiteral, *BoolLiteral, *Identifier:
		return expr, nil

	case *SecretWrap:
		e.Inner, err = t.rewrite(e.Inner)

	case *UnaryOp:
		e.Operand, err = t.rewrite(e.Operand)

	case *BinaryOp:
		if e.Left, err = t.rewrite(e.Left); err == nil {
			e.Right, err = t.rewrite(e.Right)
		}
		// Secret and/or lower to non-short-circuit operators, so the right
		// operand always runs.
		if err == nil && e.Op.IsLogical() && e.Label().IsSecret() {
			err = checkTotal(e.Right, "even when the left operand decides the result")
		}

	case *LetBinding:
		if e.Value, err = t.rewrite(e.Value); err == nil && e.Body != nil {
			e.Body, err = t.rewrite(e.Body)
		}

	case *Block:
		for i, d := range e.Decls {
			var out Expr
			if out, err = t.rewrite(d); err != nil {
				return nil, err
			}
			e.Decls[i] = out.(*LetBinding)
		}
		e.Result, err = t.rewrite(e.Result)

	case *Select:
		// Already rewritten by an earlier run.
		if e.Guard, err = t.rewrite(e.Guard); err == nil {
			if e.Then, err = t.rewrite(e.Then); err == nil {
				e.Else, err = t.rewrite(e.Else)
			}
		}

	case *Conditional:
		return t.rewriteConditional(e)

	default:
		return nil, fmt.Errorf("oblivious: unexpected node %T", expr)
	}

	if err != nil {
		return nil, err
	}
	return expr, nil
}

// rewriteConditional decides between a native branch and a select. The
// decision depends only on the guard's label.
func (t *transformer) rewriteConditional(c *Conditional) (Expr, error) {
	var err error
	if c.Guard, err = t.rewrite(c.Guard); err != nil {
		return nil, err
	}
	if c.Then, err = t.rewrite(c.Then); err != nil {
		return nil, err
	}
	if c.Else, err = t.rewrite(c.Else); err != nil {
		return nil, err
	}

	if !c.Guard.Label().IsSecret() {
		c.Mode = ModePreserved
		t.report.record(c)
		return c, nil
	}

	// Both branches will run no matter what the guard says, so neither may
	// contain an operation that is only safe under its own branch.
	if err := checkTotal(c.Then, branchNotTaken); err != nil {
		return nil, err
	}
	if err := checkTotal(c.Else, branchNotTaken); err != nil {
		return nil, err
	}

	sel := &Select{
		SpanVal: c.SpanVal,
		Guard:   c.Guard,
		Then:    c.Then,
		Else:    c.Else,
		Source:  c,
	}
	sel.setInfo(c.Label(), c.Type())

	c.Mode = ModeRewritten
	c.Guard, c.Then, c.Else = nil, nil, nil
	t.report.record(c)
	return sel, nil
}

const branchNotTaken = "even when its branch is not taken"

// checkTotal rejects partial operations anywhere inside e. when completes
// the error message.
func checkTotal(e Expr, when string) error {
	var err error
	Inspect(e, func(n Node) bool {
		if err != nil {
			return false
		}
		op, ok := n.(*BinaryOp)
		if !ok || !op.Op.IsPartial() || isNonZeroConstant(op.Right) {
			return true
		}
		what := "division"
		if op.Op == OpMod {
			what = "remainder"
		}
		err = &NonObliviousError{
			Pos:    op.SpanVal.Start,
			Node:   op,
			Reason: fmt.Sprintf("%s by a value that may be zero would run %s", what, when),
		}
		return false
	})
	return err
}

// isNonZeroConstant reports whether e is a literal known to be non-zero.
func isNonZeroConstant(e Expr) bool {
	switch v := e.(type) {
	case *IntLiteral:
		return v.Value != 0
	case *SecretWrap:
		return isNonZeroConstant(v.Inner)
	case *UnaryOp:
		return v.Op == OpNeg && isNonZeroConstant(v.Operand)
	}
	return false
}
