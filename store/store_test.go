package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chazu/obli/compiler"
	"github.com/chazu/obli/compiler/hash"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), ".obli", "artifacts.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func artifactFor(t *testing.T, path, src string) *Artifact {
	t.Helper()
	prog, err := compiler.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := compiler.Analyze(prog); err != nil {
		t.Fatal(err)
	}
	report, err := compiler.Transform(prog)
	if err != nil {
		t.Fatal(err)
	}
	return NewArtifact(path, "rust", "0.3.0", hash.String(prog), "// code\n", report, nil)
}

func TestKeyDependsOnEveryPart(t *testing.T) {
	base := Key("src/a.obli", "abc", "rust", "0.3.0")
	if base != Key("src/a.obli", "abc", "rust", "0.3.0") {
		t.Fatal("Key is not deterministic")
	}
	for _, other := range []string{
		Key("src/b.obli", "abc", "rust", "0.3.0"),
		Key("src/a.obli", "abd", "rust", "0.3.0"),
		Key("src/a.obli", "abc", "go", "0.3.0"),
		Key("src/a.obli", "abc", "rust", "0.3.1"),
		Key("src/a.obli", "abcrust", "", "0.3.0"),
		Key("src/a.obliabc", "", "rust", "0.3.0"),
	} {
		if other == base {
			t.Errorf("key collision: %s", other)
		}
	}
}

func TestNewArtifactRecordsDecisions(t *testing.T) {
	a := artifactFor(t, "src/a.obli", "let s = secret(1);\nlet p = 2;\nif p > 0 then (if s > 0 then 1 else 2) else 3\n")
	if a.Preserved != 1 || a.Rewritten != 1 {
		t.Errorf("preserved=%d rewritten=%d, want 1 and 1", a.Preserved, a.Rewritten)
	}
	if len(a.Decisions) != 2 {
		t.Fatalf("decisions = %+v", a.Decisions)
	}
	// Innermost conditional is finalized first.
	if a.Decisions[0].Mode != "rewritten" || a.Decisions[1].Mode != "preserved" {
		t.Errorf("decision modes = %s, %s", a.Decisions[0].Mode, a.Decisions[1].Mode)
	}
	if a.Decisions[1].Line != 3 || a.Decisions[1].Column != 1 {
		t.Errorf("outer decision at %d:%d, want 3:1", a.Decisions[1].Line, a.Decisions[1].Column)
	}
}

func TestMarshalIsCanonical(t *testing.T) {
	a := artifactFor(t, "src/a.obli", "let s = secret(1); if s > 0 then 1 else 2")
	first, err := Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("encoding is not deterministic")
	}
	back, err := Unmarshal(first)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, back) {
		t.Errorf("decoded = %+v, want %+v", back, a)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error")
	}
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	a := artifactFor(t, "src/a.obli", "let s = secret(1); if s > 0 then 1 else 2")

	if err := s.Put(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, a.Key)
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != a.Path || got.Rewritten != 1 {
		t.Errorf("Get = %+v", got)
	}

	short, err := s.Get(ctx, a.Key[:8])
	if err != nil {
		t.Fatalf("prefix lookup: %v", err)
	}
	if short.Key != a.Key {
		t.Errorf("prefix lookup returned %s", short.Key)
	}
}

func TestGetErrors(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if _, err := s.Get(ctx, "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, ""); err == nil {
		t.Error("empty key should be rejected")
	}

	a := &Artifact{Key: "aa01", Path: "x", Target: "rust"}
	b := &Artifact{Key: "aa02", Path: "y", Target: "rust"}
	for _, art := range []*Artifact{a, b} {
		if err := s.Put(ctx, art); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Get(ctx, "aa"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("error = %v, want ErrAmbiguous", err)
	}
}

func TestPutReplacesSameKey(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	a := &Artifact{Key: "k1", Path: "src/a.obli", Target: "go", Code: "old", CreatedAt: 1}
	if err := s.Put(ctx, a); err != nil {
		t.Fatal(err)
	}
	a2 := &Artifact{Key: "k1", Path: "src/a.obli", Target: "go", Code: "new", CreatedAt: 2}
	if err := s.Put(ctx, a2); err != nil {
		t.Fatal(err)
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Code != "new" {
		t.Errorf("List = %+v", all)
	}
}

func TestPutKeepsAlphaEquivalentFiles(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	a := artifactFor(t, "src/a.obli", "let salary = secret(10); salary + 1")
	b := artifactFor(t, "src/b.obli", "let bonus = secret(10); bonus + 1")
	if a.Structure != b.Structure {
		t.Fatalf("structure hashes differ: %s vs %s", a.Structure, b.Structure)
	}
	if a.Key == b.Key {
		t.Fatalf("alpha-equivalent files share key %s", a.Key)
	}
	for _, art := range []*Artifact{a, b} {
		if err := s.Put(ctx, art); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []*Artifact{a, b} {
		got, err := s.Get(ctx, want.Key)
		if err != nil {
			t.Fatal(err)
		}
		if got.Path != want.Path {
			t.Errorf("Get(%s).Path = %q, want %q", want.Key[:8], got.Path, want.Path)
		}
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("List returned %d artifacts, want 2", len(all))
	}
}

func TestListOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for _, a := range []*Artifact{
		{Key: "k3", Path: "b.obli", CreatedAt: 1},
		{Key: "k1", Path: "a.obli", CreatedAt: 1},
		{Key: "k2", Path: "a.obli", CreatedAt: 5},
	} {
		if err := s.Put(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, a := range all {
		keys = append(keys, a.Key)
	}
	if want := []string{"k2", "k1", "k3"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("order = %v, want %v", keys, want)
	}
}

func TestReopenKeepsArtifacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(context.Background(), &Artifact{Key: "persist", Path: "p.obli"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get(context.Background(), "persist"); err != nil {
		t.Error(err)
	}
}
