package compiler

import (
	"errors"
	"strings"
	"testing"
)

func analyzed(t *testing.T, src string) *Program {
	t.Helper()
	prog := mustParse(t, src)
	if err := Analyze(prog); err != nil {
		t.Fatalf("Analyze(%q): %v", src, err)
	}
	return prog
}

func TestLabelJoin(t *testing.T) {
	tests := []struct {
		a, b, want Label
	}{
		{Public, Public, Public},
		{Public, Secret, Secret},
		{Secret, Public, Secret},
		{Secret, Secret, Secret},
		{Unknown, Public, Public},
	}
	for _, tc := range tests {
		if got := tc.a.Join(tc.b); got != tc.want {
			t.Errorf("%v.Join(%v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
	if JoinAll() != Public {
		t.Errorf("JoinAll() = %v, want public", JoinAll())
	}
}

func TestTaintLabels(t *testing.T) {
	tests := []struct {
		input string
		label Label
		typ   Type
	}{
		{"42", Public, TypeInt},
		{"true", Public, TypeBool},
		{"secret(42)", Secret, TypeInt},
		{"secret(1) + 2", Secret, TypeInt},
		{"1 + 2", Public, TypeInt},
		{"-secret(3)", Secret, TypeInt},
		{"not secret(true)", Secret, TypeBool},
		{"secret(1) < 2", Secret, TypeBool},
		{"let x = secret(1) x * 2", Secret, TypeInt},
		{"let x = secret(1) 5", Public, TypeInt},
		{"if true then secret(1) else 2", Secret, TypeInt},
		{"if secret(true) then 1 else 2", Secret, TypeInt},
		{"if false then 1 else 2", Public, TypeInt},
		{"{ let a = secret(2); let b = a + 1; b > 0 }", Secret, TypeBool},
		{"{ let a = secret(2); 7 }", Public, TypeInt},
	}

	for _, tc := range tests {
		prog := analyzed(t, tc.input)
		e := prog.Items[0]
		if e.Label() != tc.label {
			t.Errorf("%q label = %v, want %v", tc.input, e.Label(), tc.label)
		}
		if e.Type() != tc.typ {
			t.Errorf("%q type = %v, want %v", tc.input, e.Type(), tc.typ)
		}
	}
}

func TestTaintEveryNodeLabeled(t *testing.T) {
	prog := analyzed(t, "let s = secret(5); let p = 3; if s > p then (if p > 1 then s else p) else { let q = p; q + 1 }")
	Inspect(prog, func(n Node) bool {
		if e, ok := n.(Expr); ok && e.Label() == Unknown {
			t.Errorf("%T at %d:%d left unlabeled", n, e.Span().Start.Line, e.Span().Start.Column)
		}
		return true
	})
}

func TestTaintMonotonic(t *testing.T) {
	// Every ancestor of a secret node must itself be secret.
	prog := analyzed(t, "secret(1) * 2 + 3 - (4 * secret(5)) == 6 or false")
	Inspect(prog, func(n Node) bool {
		e, ok := n.(Expr)
		if !ok {
			return true
		}
		for _, c := range Children(n) {
			if ce, ok := c.(Expr); ok && ce.Label().IsSecret() && !e.Label().IsSecret() {
				t.Errorf("%s is public but has secret child %s", FormatExpr(e), FormatExpr(ce))
			}
		}
		return true
	})
}

func TestTaintScoping(t *testing.T) {
	// The inner x shadows the secret one only inside its body.
	prog := analyzed(t, "let x = secret(1) (let x = 2 x) + 0")
	let := prog.Items[0].(*LetBinding)
	body := let.Body.(*BinaryOp)
	inner := body.Left.(*LetBinding)
	if inner.Label() != Public {
		t.Errorf("shadowed binding label = %v, want public", inner.Label())
	}

	prog = analyzed(t, "let x = secret(1); let y = x; y")
	if prog.Items[2].Label() != Secret {
		t.Errorf("y label = %v, want secret", prog.Items[2].Label())
	}
}

func TestTaintUnboundName(t *testing.T) {
	prog := mustParse(t, "let a = 1; a + b")
	err := Analyze(prog)
	var taintErr *TaintAnalysisError
	if !errors.As(err, &taintErr) {
		t.Fatalf("error = %v, want *TaintAnalysisError", err)
	}
	if taintErr.Name != "b" {
		t.Errorf("name = %q, want b", taintErr.Name)
	}
	if taintErr.Pos.Column != 16 {
		t.Errorf("column = %d, want 16", taintErr.Pos.Column)
	}
}

func TestTaintBlockScopeDoesNotLeak(t *testing.T) {
	prog := mustParse(t, "{ let a = 1; a }; a")
	var taintErr *TaintAnalysisError
	if err := Analyze(prog); !errors.As(err, &taintErr) {
		t.Fatalf("error = %v, want *TaintAnalysisError", err)
	}
}

func TestTypeErrors(t *testing.T) {
	tests := []struct {
		input string
		frag  string
	}{
		{"1 + true", "right operand of + must be int"},
		{"not 1", "operand of not must be bool"},
		{"-true", "operand of - must be int"},
		{"1 and true", "left operand of and must be bool"},
		{"true < 1", "left operand of < must be int"},
		{"1 == true", "cannot compare int with bool"},
		{"if 1 then 2 else 3", "condition must be bool"},
		{"if true then 1 else false", "branches have different types"},
	}

	for _, tc := range tests {
		prog := mustParse(t, tc.input)
		err := Analyze(prog)
		var typeErr *TypeError
		if !errors.As(err, &typeErr) {
			t.Errorf("Analyze(%q) error = %v, want *TypeError", tc.input, err)
			continue
		}
		if !strings.Contains(typeErr.Message, tc.frag) {
			t.Errorf("Analyze(%q) = %q, want it to contain %q", tc.input, typeErr.Message, tc.frag)
		}
	}
}

func TestTaintBoolEquality(t *testing.T) {
	prog := analyzed(t, "secret(true) == false")
	if prog.Items[0].Type() != TypeBool || prog.Items[0].Label() != Secret {
		t.Errorf("got %v %v, want secret bool", prog.Items[0].Label(), prog.Items[0].Type())
	}
}
