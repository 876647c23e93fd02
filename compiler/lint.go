package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Linter: non-fatal checks over a parsed program
// ---------------------------------------------------------------------------

// Warning is a non-fatal finding. Warnings never stop a pipeline run.
type Warning struct {
	Pos Position
	Msg string
}

func (w Warning) String() string {
	return fmt.Sprintf("warning: line %d, column %d: %s", w.Pos.Line, w.Pos.Column, w.Msg)
}

// Linter looks for bindings that are never read, guards that are
// constant, and secret(...) applied to a value that is already secret.
type Linter struct {
	warnings []Warning
	scopes   []*lintScope
}

type lintScope struct {
	names map[string]*lintBinding
	order []*lintBinding
}

type lintBinding struct {
	let  *LetBinding
	used bool
}

// NewLinter creates a new linter.
func NewLinter() *Linter {
	return &Linter{}
}

// Lint runs the linter over prog and returns its warnings in source order.
// On an analyzed program secret(...) is checked against its operand's
// label; otherwise only a directly nested secret(secret(...)) is caught.
func Lint(prog *Program) []Warning {
	return NewLinter().LintProgram(prog)
}

// LintProgram checks every item of prog.
func (l *Linter) LintProgram(prog *Program) []Warning {
	l.warnings = nil
	l.push()
	for _, item := range prog.Items {
		if let, ok := item.(*LetBinding); ok && let.IsDecl() {
			l.bind(let)
			continue
		}
		l.lintExpr(item)
	}
	l.pop()

	sort.SliceStable(l.warnings, func(i, j int) bool {
		return l.warnings[i].Pos.Offset < l.warnings[j].Pos.Offset
	})
	return l.warnings
}

func (l *Linter) warnAt(pos Position, format string, args ...interface{}) {
	l.warnings = append(l.warnings, Warning{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (l *Linter) push() {
	l.scopes = append(l.scopes, &lintScope{names: map[string]*lintBinding{}})
}

// pop closes the innermost scope and reports its unread bindings.
func (l *Linter) pop() {
	s := l.scopes[len(l.scopes)-1]
	l.scopes = l.scopes[:len(l.scopes)-1]
	for _, b := range s.order {
		if !b.used {
			l.warnAt(b.let.NamePos, "%s declared and not used", b.let.Name)
		}
	}
}

// bind lints a let's value, then brings its name into the current scope.
func (l *Linter) bind(let *LetBinding) {
	l.lintExpr(let.Value)
	s := l.scopes[len(l.scopes)-1]
	b := &lintBinding{let: let}
	s.names[let.Name] = b
	s.order = append(s.order, b)
}

func (l *Linter) use(name string) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if b, ok := l.scopes[i].names[name]; ok {
			b.used = true
			return
		}
	}
}

func (l *Linter) lintExpr(expr Expr) {
	switch e := expr.(type) {
	case *Identifier:
		l.use(e.Name)

	case *SecretWrap:
		if alreadySecret(e.Inner) {
			l.warnAt(e.SpanVal.Start, "secret applied to a value that is already secret")
		}
		l.lintExpr(e.Inner)

	case *UnaryOp:
		l.lintExpr(e.Operand)

	case *BinaryOp:
		l.lintExpr(e.Left)
		l.lintExpr(e.Right)

	case *Conditional:
		if b, ok := e.Guard.(*BoolLiteral); ok {
			l.warnAt(e.Guard.Span().Start, "condition is always %t", b.Value)
		}
		l.lintExpr(e.Guard)
		l.lintExpr(e.Then)
		l.lintExpr(e.Else)

	case *Select:
		l.lintExpr(e.Guard)
		l.lintExpr(e.Then)
		l.lintExpr(e.Else)

	case *LetBinding:
		if e.IsDecl() {
			l.bind(e)
			return
		}
		l.push()
		l.bind(e)
		l.lintExpr(e.Body)
		l.pop()

	case *Block:
		l.push()
		for _, d := range e.Decls {
			l.bind(d)
		}
		l.lintExpr(e.Result)
		l.pop()

	// Literals don't need checking
	case *IntLiteral, *BoolLiteral:
	}
}

func alreadySecret(e Expr) bool {
	if e.Label() != Unknown {
		return e.Label().IsSecret()
	}
	_, ok := e.(*SecretWrap)
	return ok
}
