package compiler

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

func TestParseSimpleExpr(t *testing.T) {
	prog := mustParse(t, "1 + 2")
	if len(prog.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(prog.Items))
	}
	bin, ok := prog.Items[0].(*BinaryOp)
	if !ok || bin.Op != OpAdd {
		t.Fatalf("item = %T, want BinaryOp(+)", prog.Items[0])
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "1 + 2 * 3"},
		{"(1 + 2) * 3", "(1 + 2) * 3"},
		{"1 - 2 - 3", "1 - 2 - 3"},
		{"1 - (2 - 3)", "1 - (2 - 3)"},
		{"a < b and c || d", "a < b and c or d"},
		{"not a && !b", "not a and not b"},
		{"-x * 2", "-x * 2"},
		{"-(x * 2)", "-(x * 2)"},
		{"x % 2 == 0", "x % 2 == 0"},
	}

	for _, tc := range tests {
		e, err := ParseExpr(tc.input)
		if err != nil {
			t.Errorf("ParseExpr(%q): %v", tc.input, err)
			continue
		}
		if got := FormatExpr(e); got != tc.want {
			t.Errorf("ParseExpr(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseSecret(t *testing.T) {
	e, err := ParseExpr("secret(42)")
	if err != nil {
		t.Fatal(err)
	}
	wrap, ok := e.(*SecretWrap)
	if !ok {
		t.Fatalf("got %T, want *SecretWrap", e)
	}
	if lit, ok := wrap.Inner.(*IntLiteral); !ok || lit.Value != 42 {
		t.Errorf("inner = %#v, want IntLiteral(42)", wrap.Inner)
	}
}

func TestParseConditional(t *testing.T) {
	e, err := ParseExpr("if x > 0 then 1 else 0")
	if err != nil {
		t.Fatal(err)
	}
	cond, ok := e.(*Conditional)
	if !ok {
		t.Fatalf("got %T, want *Conditional", e)
	}
	if cond.Mode != ModeUnresolved {
		t.Errorf("fresh conditional mode = %v, want unresolved", cond.Mode)
	}
	if _, ok := cond.Guard.(*BinaryOp); !ok {
		t.Errorf("guard = %T, want *BinaryOp", cond.Guard)
	}
}

func TestParseLetWithBody(t *testing.T) {
	prog := mustParse(t, "let x = 1 if x > 0 then 1 else 0")
	let, ok := prog.Items[0].(*LetBinding)
	if !ok {
		t.Fatalf("item = %T, want *LetBinding", prog.Items[0])
	}
	if let.IsDecl() {
		t.Fatal("let with body parsed as a declaration")
	}
	if _, ok := let.Body.(*Conditional); !ok {
		t.Errorf("body = %T, want *Conditional", let.Body)
	}
}

func TestParseDeclarations(t *testing.T) {
	prog := mustParse(t, "let a = 1; let b = a + 1; a * b; b;")
	if len(prog.Items) != 4 {
		t.Fatalf("got %d items, want 4", len(prog.Items))
	}
	for i := 0; i < 2; i++ {
		let, ok := prog.Items[i].(*LetBinding)
		if !ok || !let.IsDecl() {
			t.Errorf("item %d = %T, want declaration", i, prog.Items[i])
		}
	}
	if n := len(prog.Outputs()); n != 2 {
		t.Errorf("outputs = %d, want 2", n)
	}
}

func TestParseBlock(t *testing.T) {
	e, err := ParseExpr("{ let a = 1; let b = 2; a + b }")
	if err != nil {
		t.Fatal(err)
	}
	block, ok := e.(*Block)
	if !ok {
		t.Fatalf("got %T, want *Block", e)
	}
	if len(block.Decls) != 2 {
		t.Errorf("decls = %d, want 2", len(block.Decls))
	}
	if _, ok := block.Result.(*BinaryOp); !ok {
		t.Errorf("result = %T, want *BinaryOp", block.Result)
	}
}

func TestParseNestedParenthesizedConditional(t *testing.T) {
	src := "if p then (if secret(s) then 1 else 2) else 0"
	e, err := ParseExpr(src)
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	outer := e.(*Conditional)
	if _, ok := outer.Then.(*Conditional); !ok {
		t.Errorf("then = %T, want *Conditional", outer.Then)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"if a then 1 else if b then 2 else 3", "parenthesized conditional"},
		{"if a then if b then 1 else 2 else 3", "parenthesized conditional"},
		{"if if a then b else c then 1 else 2", "parenthesized conditional"},
		{"1 < 2 < 3", "parenthesized comparison"},
		{"if a 1 else 2", `"then"`},
		{"secret 1", `"("`},
		{"(1 + 2", `")"`},
		{"let = 1", "identifier"},
		{"let x 1", `"="`},
		{"1 2", `";" or end of input`},
		{"{ let a = 1; }", "expression"},
		{"1 +", "expression"},
	}

	for _, tc := range tests {
		_, err := Parse(tc.input)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("Parse(%q) error = %v, want *ParseError", tc.input, err)
			continue
		}
		if parseErr.Expected != tc.expected {
			t.Errorf("Parse(%q) expected = %q, want %q", tc.input, parseErr.Expected, tc.expected)
		}
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("let x = 1\nif x then 2 3")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if parseErr.Pos.Line != 2 || parseErr.Pos.Column != 13 {
		t.Errorf("position = %d:%d, want 2:13", parseErr.Pos.Line, parseErr.Pos.Column)
	}
	if !strings.Contains(parseErr.Found, "3") {
		t.Errorf("found = %q, want the literal 3", parseErr.Found)
	}
}

func TestParseReportsLexErrorsInOrder(t *testing.T) {
	// The parse error at "then" comes before the bad character.
	_, err := Parse("if then @")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}

	_, err = Parse("1 + @")
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("error = %v, want *LexError", err)
	}
}

func TestParseSpans(t *testing.T) {
	e, err := ParseExpr("secret(1) + 20")
	if err != nil {
		t.Fatal(err)
	}
	span := e.Span()
	if span.Start.Offset != 0 || span.End.Offset != 14 {
		t.Errorf("span = %d..%d, want 0..14", span.Start.Offset, span.End.Offset)
	}
}

func TestParseEmptyProgram(t *testing.T) {
	prog := mustParse(t, "# nothing here\n")
	if len(prog.Items) != 0 {
		t.Errorf("items = %d, want 0", len(prog.Items))
	}
}
