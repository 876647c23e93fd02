package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"transpile", "run", "check", "fmt", "build", "watch", "audit", "show", "repl", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
			continue
		}
		if cmd.Short == "" {
			t.Errorf("%s has no short description", name)
		}
	}
}

func TestTranspileToStdout(t *testing.T) {
	path := writeSource(t, t.TempDir(), "a.obli", "let x = secret(1) if x > 0 then secret(1) else secret(0)\n")
	stdout, _, err := execute(t, "", "transpile", "--input", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "ct_select_i64(") || strings.Contains(stdout, "if x") {
		t.Errorf("stdout:\n%s", stdout)
	}
}

func TestTranspileToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "a.obli", "let x = 1 if x > 0 then 1 else 0\n")
	out := filepath.Join(dir, "gen", "a.go")
	if _, _, err := execute(t, "", "transpile", "-i", path, "-t", "go", "-o", out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "package main") {
		t.Errorf("output:\n%s", data)
	}
}

func TestTranspileStdin(t *testing.T) {
	stdout, _, err := execute(t, "secret(2) * 3", "transpile", "--input", "-", "--target", "ir")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "secret(2) * 3") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestTranspileDiagnostic(t *testing.T) {
	path := writeSource(t, t.TempDir(), "bad.obli", "let s = secret(1);\nlet d = 0;\nif s > 0 then 10 / d else 0\n")
	_, stderr, err := execute(t, "", "transpile", "--input", path)
	if !errors.Is(err, errReported) {
		t.Fatalf("error = %v, want errReported", err)
	}
	if !strings.Contains(stderr, path+":3:") || !strings.Contains(stderr, "non-oblivious") {
		t.Errorf("stderr:\n%s", stderr)
	}
	if !strings.Contains(stderr, "^") {
		t.Errorf("diagnostic has no caret:\n%s", stderr)
	}
}

func TestTranspileRequiresInput(t *testing.T) {
	if _, _, err := execute(t, "", "transpile"); err == nil {
		t.Error("expected error without --input")
	}
}

func TestRunExpr(t *testing.T) {
	stdout, _, err := execute(t, "", "run", "--expr", "1 + 2; secret(3) * 2; let s = secret(5); if s > 3 then s else 0")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "3\n6\n5\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRunShowCodeAndDisasm(t *testing.T) {
	stdout, _, err := execute(t, "", "run", "-e", "let s = secret(1); if s > 0 then 1 else 2", "--show-code", "--target", "go", "--disasm")
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(stdout, "---\n")
	if len(parts) != 3 {
		t.Fatalf("stdout:\n%s", stdout)
	}
	if !strings.Contains(parts[0], "ctSelect(") {
		t.Errorf("code:\n%s", parts[0])
	}
	if strings.TrimSpace(parts[2]) != "1" {
		t.Errorf("outputs = %q", parts[2])
	}
}

func TestRunRuntimeError(t *testing.T) {
	_, stderr, err := execute(t, "", "run", "--expr", "let d = 0; 1 / d")
	if !errors.Is(err, errReported) || !strings.Contains(stderr, "runtime error") {
		t.Errorf("err = %v, stderr:\n%s", err, stderr)
	}
}

func TestRunNeedsSource(t *testing.T) {
	if _, _, err := execute(t, "", "run"); err == nil {
		t.Error("expected error without --expr or --input")
	}
	if _, _, err := execute(t, "", "run", "--expr", "1", "--input", "x.obli"); err == nil {
		t.Error("expected error with both --expr and --input")
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.obli", "let s = secret(1); if s > 0 then 1 else 2\n")
	partial := writeSource(t, dir, "partial.obli", "let s = secret(1); let d = 0; if s > 0 then 1 / d else 0\n")
	broken := writeSource(t, dir, "broken.obli", "if 1 then\n")

	stdout, _, err := execute(t, "", "check", "--input", good)
	if err != nil || !strings.Contains(stdout, "good.obli: ok") {
		t.Errorf("check good: %v\n%s", err, stdout)
	}

	// Without --full the transform does not run.
	if _, _, err := execute(t, "", "check", partial); err != nil {
		t.Errorf("check partial: %v", err)
	}
	_, stderr, err := execute(t, "", "check", "--full", partial)
	if !errors.Is(err, errReported) || !strings.Contains(stderr, "non-oblivious") {
		t.Errorf("check --full partial: %v\n%s", err, stderr)
	}

	stdout, stderr, err = execute(t, "", "check", "--full", good, broken)
	if !errors.Is(err, errReported) {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(stdout, "good.obli: ok (0 preserved, 1 rewritten)") || !strings.Contains(stderr, "parse error") {
		t.Errorf("stdout:\n%s\nstderr:\n%s", stdout, stderr)
	}
}

func TestCheckWarnings(t *testing.T) {
	path := writeSource(t, t.TempDir(), "w.obli", "let unused = 1; if true then 1 else 2\n")
	_, stderr, err := execute(t, "", "check", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"unused declared and not used", "condition is always true"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestFmt(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "src/messy.obli", "let   x=1;x+   2\n")

	stdout, _, err := execute(t, "", "fmt", path)
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "let x = 1;\nx + 2;\n" {
		t.Errorf("formatted = %q", stdout)
	}

	if _, _, err := execute(t, "", "fmt", "--check", dir); !errors.Is(err, errReported) {
		t.Errorf("fmt --check on messy file: %v", err)
	}
	stdout, _, err = execute(t, "", "fmt", "--write", dir)
	if err != nil || !strings.Contains(stdout, "formatted: ") {
		t.Fatalf("fmt --write: %v\n%s", err, stdout)
	}
	if _, _, err := execute(t, "", "fmt", "--check", dir); err != nil {
		t.Errorf("fmt --check after write: %v", err)
	}
}

func TestFmtRejectsOtherFiles(t *testing.T) {
	path := writeSource(t, t.TempDir(), "notes.txt", "x")
	if _, _, err := execute(t, "", "fmt", path); err == nil {
		t.Error("expected error for non-source file")
	}
}

func TestBuildAuditShow(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "obli.toml", "[project]\nname = \"demo\"\n")
	writeSource(t, dir, "src/a.obli", "let s = secret(3); if s > 1 then s else 0\n")
	writeSource(t, dir, "src/b.obli", "let p = 3; if p > 1 then p else 0\n")

	stdout, _, err := execute(t, "", "build", "-C", dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"src/a.obli: 0 preserved, 1 rewritten", "src/b.obli: 1 preserved, 0 rewritten", "built 2 files for rust"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("build output missing %q:\n%s", want, stdout)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "a.rs")); err != nil {
		t.Error(err)
	}

	stdout, _, err = execute(t, "", "audit", "-C", dir, "--decisions")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "src/a.obli") || !strings.Contains(stdout, "rewritten") {
		t.Errorf("audit:\n%s", stdout)
	}
	var key string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, "src/a.obli") {
			key = strings.Fields(line)[0]
		}
	}
	if key == "" {
		t.Fatalf("no key for src/a.obli in:\n%s", stdout)
	}

	stdout, _, err = execute(t, "", "show", "-C", dir, key)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "source:    src/a.obli") || !strings.Contains(stdout, "ct_select_i64(") {
		t.Errorf("show:\n%s", stdout)
	}
}

func TestBuildFailure(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "obli.toml", "[project]\nname = \"demo\"\n[build]\nrecord = false\n")
	writeSource(t, dir, "src/bad.obli", "1 +\n")

	_, stderr, err := execute(t, "", "build", "--dir", dir)
	if !errors.Is(err, errReported) {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(stderr, "src/bad.obli:") || !strings.Contains(stderr, "build failed") {
		t.Errorf("stderr:\n%s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, ".obli")); !os.IsNotExist(err) {
		t.Error("artifacts recorded with record = false")
	}
}

func TestBuildWithoutManifest(t *testing.T) {
	if _, _, err := execute(t, "", "build", "-C", t.TempDir()); err == nil {
		t.Skip("a parent directory has an obli.toml")
	}
}

func TestRepl(t *testing.T) {
	input := strings.Join([]string{
		"let a = secret(4);",
		"if a > 3 \\",
		"  then a else 0",
		":history",
		"nope + 1",
		":code nonsense",
		":bogus",
		"exit",
	}, "\n")
	stdout, _, err := execute(t, input, "repl")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{".. 4\n", "let a = secret(4);\n", "taint error", "unknown target", "Unknown command: :bogus"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("repl output missing %q:\n%s", want, stdout)
		}
	}
}

func TestReplType(t *testing.T) {
	input := strings.Join([]string{
		"let a = secret(4);",
		":type if a > 3 then a else 0",
		":type 1 + 2",
		":type b",
		":type",
	}, "\n")
	stdout, _, err := execute(t, input, "repl")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"select(a > 3, a, 0) : secret int\n",
		"1 + 2 : public int\n",
		"taint error",
		"usage: :type <expr>",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("repl output missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "obli ") || !strings.Contains(stdout, "Targets: [go ir rust]") {
		t.Errorf("version output:\n%s", stdout)
	}
}
