package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Taint Analyzer: secrecy labels and types for every expression
// ---------------------------------------------------------------------------

// TaintAnalyzer computes a secrecy label and a type for every expression
// in one bottom-up pass. Children are always labeled before their parent.
type TaintAnalyzer struct {
	scopes []map[string]binding
}

// binding is what a let contributes to its scope.
type binding struct {
	label Label
	typ   Type
}

// NewTaintAnalyzer creates an analyzer with an empty global scope.
func NewTaintAnalyzer() *TaintAnalyzer {
	return &TaintAnalyzer{scopes: []map[string]binding{{}}}
}

// Analyze labels every node of prog. It stops at the first error.
func Analyze(prog *Program) error {
	return NewTaintAnalyzer().AnalyzeProgram(prog)
}

// AnalyzeProgram labels prog's items in order. Top-level declarations stay
// in scope for the items after them.
func (a *TaintAnalyzer) AnalyzeProgram(prog *Program) error {
	for _, item := range prog.Items {
		if err := a.analyzeItem(item); err != nil {
			return err
		}
	}
	return nil
}

// AnalyzeExpr labels a standalone expression.
func (a *TaintAnalyzer) AnalyzeExpr(e Expr) error {
	return a.analyzeExpr(e)
}

func (a *TaintAnalyzer) push() { a.scopes = append(a.scopes, map[string]binding{}) }
func (a *TaintAnalyzer) pop()  { a.scopes = a.scopes[:len(a.scopes)-1] }

func (a *TaintAnalyzer) define(name string, b binding) {
	a.scopes[len(a.scopes)-1][name] = b
}

func (a *TaintAnalyzer) lookup(name string) (binding, bool) {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if b, ok := a.scopes[i][name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// analyzeItem handles declarations, which bind into the current scope
// instead of opening a new one.
func (a *TaintAnalyzer) analyzeItem(e Expr) error {
	let, ok := e.(*LetBinding)
	if !ok || !let.IsDecl() {
		return a.analyzeExpr(e)
	}
	if err := a.analyzeExpr(let.Value); err != nil {
		return err
	}
	let.setInfo(let.Value.Label(), let.Value.Type())
	a.define(let.Name, binding{label: let.Value.Label(), typ: let.Value.Type()})
	return nil
}

// analyzeExpr is the bottom-up fold.
func (a *TaintAnalyzer) analyzeExpr(expr Expr) error {
	switch e := expr.(type) {
	case *IntLiteral:
		e.setInfo(Public, TypeInt)

	case *BoolLiteral:
		e.setInfo(Public, TypeBool)

	case *Identifier:
		b, ok := a.lookup(e.Name)
		if !ok {
			return &TaintAnalysisError{Pos: e.SpanVal.Start, Name: e.Name, Reason: "unbound name"}
		}
		e.setInfo(b.label, b.typ)

	case *SecretWrap:
		if err := a.analyzeExpr(e.Inner); err != nil {
			return err
		}
		e.setInfo(Secret, e.Inner.Type())

	case *UnaryOp:
		if err := a.analyzeExpr(e.Operand); err != nil {
			return err
		}
		want := TypeInt
		if e.Op == OpNot {
			want = TypeBool
		}
		if err := expectType(e.Operand, want, "operand of "+e.Op.String()); err != nil {
			return err
		}
		e.setInfo(e.Operand.Label(), want)

	case *BinaryOp:
		if err := a.analyzeExpr(e.Left); err != nil {
			return err
		}
		if err := a.analyzeExpr(e.Right); err != nil {
			return err
		}
		typ, err := binaryType(e)
		if err != nil {
			return err
		}
		e.setInfo(e.Left.Label().Join(e.Right.Label()), typ)

	case *Conditional:
		typ, err := a.analyzeBranches(e.Guard, e.Then, e.Else)
		if err != nil {
			return err
		}
		e.setInfo(JoinAll(e.Guard.Label(), e.Then.Label(), e.Else.Label()), typ)

	case *Select:
		typ, err := a.analyzeBranches(e.Guard, e.Then, e.Else)
		if err != nil {
			return err
		}
		e.setInfo(JoinAll(e.Guard.Label(), e.Then.Label(), e.Else.Label()), typ)

	case *LetBinding:
		if e.IsDecl() {
			return &TypeError{Pos: e.SpanVal.Start, Message: fmt.Sprintf("let %s has no body", e.Name)}
		}
		if err := a.analyzeExpr(e.Value); err != nil {
			return err
		}
		a.push()
		a.define(e.Name, binding{label: e.Value.Label(), typ: e.Value.Type()})
		err := a.analyzeExpr(e.Body)
		a.pop()
		if err != nil {
			return err
		}
		e.setInfo(e.Body.Label(), e.Body.Type())

	case *Block:
		a.push()
		defer a.pop()
		for _, d := range e.Decls {
			if err := a.analyzeItem(d); err != nil {
				return err
			}
		}
		if err := a.analyzeExpr(e.Result); err != nil {
			return err
		}
		e.setInfo(e.Result.Label(), e.Result.Type())

	default:
		return fmt.Errorf("taint: unexpected node %T", expr)
	}
	return nil
}

// analyzeBranches checks guard/then/else of a conditional or select and
// returns the result type.
func (a *TaintAnalyzer) analyzeBranches(guard, then, els Expr) (Type, error) {
	for _, part := range []Expr{guard, then, els} {
		if err := a.analyzeExpr(part); err != nil {
			return TypeUnknown, err
		}
	}
	if err := expectType(guard, TypeBool, "condition"); err != nil {
		return TypeUnknown, err
	}
	if then.Type() != els.Type() {
		return TypeUnknown, &TypeError{
			Pos:     els.Span().Start,
			Message: fmt.Sprintf("branches have different types: then is %s, else is %s", then.Type(), els.Type()),
		}
	}
	return then.Type(), nil
}

// binaryType returns the result type of a binary operation whose operands
// are already typed.
func binaryType(e *BinaryOp) (Type, error) {
	switch {
	case e.Op.IsArithmetic():
		if err := expectType(e.Left, TypeInt, "left operand of "+e.Op.String()); err != nil {
			return TypeUnknown, err
		}
		if err := expectType(e.Right, TypeInt, "right operand of "+e.Op.String()); err != nil {
			return TypeUnknown, err
		}
		return TypeInt, nil

	case e.Op == OpEq || e.Op == OpNe:
		if e.Left.Type() != e.Right.Type() {
			return TypeUnknown, &TypeError{
				Pos:     e.SpanVal.Start,
				Message: fmt.Sprintf("cannot compare %s with %s", e.Left.Type(), e.Right.Type()),
			}
		}
		return TypeBool, nil

	case e.Op.IsComparison():
		if err := expectType(e.Left, TypeInt, "left operand of "+e.Op.String()); err != nil {
			return TypeUnknown, err
		}
		if err := expectType(e.Right, TypeInt, "right operand of "+e.Op.String()); err != nil {
			return TypeUnknown, err
		}
		return TypeBool, nil
	}

	if err := expectType(e.Left, TypeBool, "left operand of "+e.Op.String()); err != nil {
		return TypeUnknown, err
	}
	if err := expectType(e.Right, TypeBool, "right operand of "+e.Op.String()); err != nil {
		return TypeUnknown, err
	}
	return TypeBool, nil
}

func expectType(e Expr, want Type, what string) error {
	if e.Type() == want {
		return nil
	}
	return &TypeError{
		Pos:     e.Span().Start,
		Message: fmt.Sprintf("%s must be %s, got %s", what, want, e.Type()),
	}
}
