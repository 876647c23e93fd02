package codegen

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/obli/compiler"
	"github.com/chazu/obli/vm"
)

func transformed(t *testing.T, src string) *compiler.Program {
	t.Helper()
	prog, err := compiler.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	if err := compiler.Analyze(prog); err != nil {
		t.Fatalf("Analyze(%q): %v", src, err)
	}
	if _, err := compiler.Transform(prog); err != nil {
		t.Fatalf("Transform(%q): %v", src, err)
	}
	return prog
}

func generate(t *testing.T, src, target string) *Result {
	t.Helper()
	res, err := Generate(transformed(t, src), target, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate(%q, %s): %v", src, target, err)
	}
	return res
}

// programs exercises every node kind in both label variants.
var programs = []string{
	"1 + 2 * 3",
	"let x = 1; let x = x + 1; x",
	"let s = secret(5); if s > 3 then s * 2 else s - 1",
	"let p = 4; if p > 3 then p * 2 else p - 1",
	"let s = secret(true); if s then (if 1 < 2 then 3 else 4) else 5",
	"let s = secret(1); let b = s == 1; if b then b else not b",
	"let s = secret(2); s > 1 and s < 3; s == 0 or true; not (s != 2)",
	"true and false; not true; 1 == 1",
	"let x = 2 x * x",
	"{ let a = secret(2); let b = a + 1; b * b }",
	"let len = 3; let int64 = len + 1; int64",
	"let x = 1; let y = (let x = 5 x * 2); x + y",
	"9223372036854775807 + 1; -(-5); 7 % -2",
	"let d = 0; d != 0 and 10 / d > 1",
	"secret(true) == false; secret(3) <= 2; secret(3) >= 3",
	"let s = secret(false); if s then true else false",
	"let x_1 = 7; let x = 1; let x = 2; x + x_1",
}

func TestTargets(t *testing.T) {
	want := []string{"go", "ir", "rust"}
	if got := Targets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Targets() = %v, want %v", got, want)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("cobol")
	if err == nil || !strings.Contains(err.Error(), `unknown target "cobol"`) {
		t.Errorf("Lookup(cobol) error = %v", err)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Register(irBackend{})
}

func TestGenerateRefusesUntransformed(t *testing.T) {
	prog, err := compiler.Parse("if secret(true) then 1 else 2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Generate(prog, "rust", GenerateOptions{}); err == nil {
		t.Error("expected an error for an unanalyzed program")
	}
	if err := compiler.Analyze(prog); err != nil {
		t.Fatal(err)
	}
	for _, target := range Targets() {
		if _, err := Generate(prog, target, GenerateOptions{}); err == nil || !strings.Contains(err.Error(), "secret guard") {
			t.Errorf("%s: error = %v, want secret guard error", target, err)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	for _, target := range Targets() {
		for _, src := range programs {
			a := generate(t, src, target).Code
			b := generate(t, src, target).Code
			if a != b {
				t.Errorf("%s output for %q differs between runs", target, src)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Rust
// ---------------------------------------------------------------------------

func TestRustPublicConditionalIsBranch(t *testing.T) {
	code := generate(t, "let p = 4; if p > 3 then p * 2 else p - 1", "rust").Code
	if !strings.Contains(code, "if p > 3i64 { p.wrapping_mul(2i64) } else { p.wrapping_sub(1i64) }") {
		t.Errorf("missing native branch:\n%s", code)
	}
	if strings.Contains(code, "ct_select") {
		t.Errorf("public program pulled in the select prelude:\n%s", code)
	}
}

func TestRustSecretConditionalIsSelect(t *testing.T) {
	code := generate(t, "let s = secret(5); if s > 3 then s * 2 else s - 1", "rust").Code
	for _, frag := range []string{
		"let s: i64 = core::hint::black_box(5i64);",
		"ct_select_i64(s > 3i64, s.wrapping_mul(2i64), s.wrapping_sub(1i64))",
		"fn ct_select_i64(c: bool, a: i64, b: i64) -> i64 {",
	} {
		if !strings.Contains(code, frag) {
			t.Errorf("missing %q:\n%s", frag, code)
		}
	}
	if strings.Contains(code, "if ") || strings.Contains(code, "ct_select_bool") {
		t.Errorf("unexpected branch or bool prelude:\n%s", code)
	}
}

func TestRustBoolSelectPullsInBothHelpers(t *testing.T) {
	code := generate(t, "let s = secret(false); if s then true else false", "rust").Code
	if !strings.Contains(code, "fn ct_select_i64") || !strings.Contains(code, "fn ct_select_bool") {
		t.Errorf("missing prelude:\n%s", code)
	}
}

func TestRustSecretLogicDoesNotShortCircuit(t *testing.T) {
	code := generate(t, "let s = secret(2); s > 1 and s < 3; s == 0 or true; 1 < 2 and true", "rust").Code
	for _, frag := range []string{
		`println!("{}", (s > 1i64) & (s < 3i64));`,
		`println!("{}", (s == 0i64) | true);`,
		`println!("{}", 1i64 < 2i64 && true);`,
	} {
		if !strings.Contains(code, frag) {
			t.Errorf("missing %q:\n%s", frag, code)
		}
	}
}

func TestRustParenthesizesComparisons(t *testing.T) {
	code := generate(t, "(1 < 2) == true; not (1 == 2)", "rust").Code
	for _, frag := range []string{"(1i64 < 2i64) == true", "!(1i64 == 2i64)"} {
		if !strings.Contains(code, frag) {
			t.Errorf("missing %q:\n%s", frag, code)
		}
	}
}

func TestRustScopes(t *testing.T) {
	code := generate(t, "let x = 1; let y = (let x = 5 x * 2); { let z = x; z + y }", "rust").Code
	for _, frag := range []string{
		"let x: i64 = 1i64;",
		"let y: i64 = { let x: i64 = 5i64; x.wrapping_mul(2i64) };",
		`println!("{}", { let z: i64 = x; z.wrapping_add(y) });`,
	} {
		if !strings.Contains(code, frag) {
			t.Errorf("missing %q:\n%s", frag, code)
		}
	}
}

func TestRustRenamesReserved(t *testing.T) {
	res := generate(t, "let match = 1; let match_ = 2; match + match_", "rust")
	if !strings.Contains(res.Code, "let match_: i64 = 1i64;") || !strings.Contains(res.Code, "let match__1: i64 = 2i64;") {
		t.Errorf("unexpected renaming:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "match_.wrapping_add(match__1)") {
		t.Errorf("references not renamed:\n%s", res.Code)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "renamed match to match_") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

// ---------------------------------------------------------------------------
// Go
// ---------------------------------------------------------------------------

func TestGoOutputTypeChecks(t *testing.T) {
	for _, src := range programs {
		res, err := Generate(transformed(t, src), "go", GenerateOptions{SkipValidation: true})
		if err != nil {
			t.Fatalf("Generate(%q): %v", src, err)
		}
		if errs := ValidateGo("main.go", res.Code); len(errs) > 0 {
			t.Errorf("%q:\n%s\n%s", src, FormatValidationErrors(errs, "main.go"), res.Code)
		}
	}
}

func TestGoHelpersOnlyWhenUsed(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"1 + 2", []string{"opaque"}},
		{"let p = 1; p < 2", nil},
		{"let s = secret(5); if s > 3 then s else 0", []string{"ctSelect", "ctLt", "opaque"}},
		{"let s = secret(5); s == 5; not (s == 5)", []string{"ctEq", "ctNot", "i2b", "opaque"}},
		{"let s = secret(5); s > 1 and true", []string{"ctLt", "b2i", "i2b", "opaque"}},
	}
	for _, tc := range tests {
		code := generate(t, tc.src, "go").Code
		for _, h := range goHelpers {
			want := false
			for _, w := range tc.want {
				want = want || w == h.name
			}
			if got := strings.Contains(code, "func "+h.name+"("); got != want {
				t.Errorf("%q: helper %s emitted = %v, want %v\n%s", tc.src, h.name, got, want, code)
			}
		}
	}
}

func TestGoSecretValuesAreMasks(t *testing.T) {
	code := generate(t, "let s = secret(5); let b = s > 3; if b then s else 0", "go").Code
	for _, frag := range []string{
		"s := opaque(int64(5))",
		"b := ctLt(int64(3), s)",
		"fmt.Println(ctSelect(b, s, int64(0)))",
	} {
		if !strings.Contains(code, frag) {
			t.Errorf("missing %q:\n%s", frag, code)
		}
	}
	if strings.Contains(code, "if b") {
		t.Errorf("secret guard became a branch:\n%s", code)
	}
}

func TestGoShadowingRenames(t *testing.T) {
	code := generate(t, "let x = 1; let x = x + 1; x", "go").Code
	for _, frag := range []string{"x := int64(1)", "x_1 := x + int64(1)", "fmt.Println(x_1)"} {
		if !strings.Contains(code, frag) {
			t.Errorf("missing %q:\n%s", frag, code)
		}
	}
}

func TestGoConstantsStayRuntime(t *testing.T) {
	code := generate(t, "9223372036854775807 + 1; let d = 1; d / 0", "go").Code
	for _, frag := range []string{"opaque(int64(9223372036854775807)) + int64(1)", "d / opaque(int64(0))"} {
		if !strings.Contains(code, frag) {
			t.Errorf("missing %q:\n%s", frag, code)
		}
	}
}

func TestGoValidationFailureIsReported(t *testing.T) {
	// A backend bug would surface here; fake one by validating broken source.
	errs := ValidateGo("main.go", "package main\n\nfunc main() {\n\tx := 1\n}\n")
	if len(errs) == 0 {
		t.Fatal("expected an unused variable error")
	}
	if errs[0].Function != "main" || errs[0].Line != 4 {
		t.Errorf("error = %+v, want attributed to main on line 4", errs[0])
	}
}

// TestGoOutputMatchesInterpreter builds each generated program and compares
// what it prints against the bytecode interpreter.
func TestGoOutputMatchesInterpreter(t *testing.T) {
	if testing.Short() {
		t.Skip("builds Go programs")
	}
	goTool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go tool not found")
	}

	for i, src := range programs {
		if strings.Contains(src, "10 / d") {
			continue
		}
		want, err := vm.Eval(transformed(t, src))
		if err != nil {
			t.Fatalf("Eval(%q): %v", src, err)
		}
		var lines []string
		for _, v := range want.Outputs {
			lines = append(lines, v.String())
		}

		dir := t.TempDir()
		path := filepath.Join(dir, "main.go")
		if err := os.WriteFile(path, []byte(generate(t, src, "go").Code), 0o644); err != nil {
			t.Fatal(err)
		}
		out, err := exec.Command(goTool, "run", path).CombinedOutput()
		if err != nil {
			t.Fatalf("program %d %q: %v\n%s", i, src, err, out)
		}
		if got := strings.TrimSpace(string(out)); got != strings.Join(lines, "\n") {
			t.Errorf("%q printed\n%s\nwant\n%s", src, got, strings.Join(lines, "\n"))
		}
	}
}

// ---------------------------------------------------------------------------
// IR
// ---------------------------------------------------------------------------

func TestIRPrintsSelects(t *testing.T) {
	code := generate(t, "let s = secret(5); if s > 3 then 1 else 2", "ir").Code
	want := "let s = secret(5);\nselect(s > 3, 1, 2);\n"
	if code != want {
		t.Errorf("ir =\n%s\nwant\n%s", code, want)
	}
}
