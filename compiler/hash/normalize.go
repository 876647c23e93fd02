package hash

import (
	"github.com/chazu/obli/compiler"
)

// ---------------------------------------------------------------------------
// AST Normalization: compiler AST → frozen hashing AST
//
// Walks the compiler's AST and produces the frozen hashing AST with de
// Bruijn indices for bound names. Spans, labels and types are dropped; a
// transformed program keeps its selects, so the hash tells rewritten and
// untouched conditionals apart.
// ---------------------------------------------------------------------------

// normalizer holds the names in scope, innermost last.
type normalizer struct {
	env []string
}

// NormalizeProgram transforms a compiler Program into a frozen HProgram.
func NormalizeProgram(prog *compiler.Program) *HProgram {
	n := &normalizer{}
	items := make([]HNode, len(prog.Items))
	for i, item := range prog.Items {
		if let, ok := item.(*compiler.LetBinding); ok && let.IsDecl() {
			items[i] = n.decl(let)
			continue
		}
		items[i] = n.normalizeExpr(item)
	}
	return &HProgram{Items: items}
}

// NormalizeExpr transforms a single expression with no names in scope.
func NormalizeExpr(e compiler.Expr) HNode {
	return (&normalizer{}).normalizeExpr(e)
}

// decl normalizes the value, then brings the name into scope. The caller
// pops it when the enclosing block ends.
func (n *normalizer) decl(let *compiler.LetBinding) HNode {
	d := &HDecl{Value: n.normalizeExpr(let.Value)}
	n.env = append(n.env, let.Name)
	return d
}

func (n *normalizer) lookup(name string) HNode {
	for i := len(n.env) - 1; i >= 0; i-- {
		if n.env[i] == name {
			return &HBoundRef{Index: uint32(len(n.env) - 1 - i)}
		}
	}
	return &HFreeRef{Name: name}
}

func (n *normalizer) normalizeExpr(expr compiler.Expr) HNode {
	switch e := expr.(type) {
	case *compiler.IntLiteral:
		return &HIntLiteral{Value: e.Value}

	case *compiler.BoolLiteral:
		return &HBoolLiteral{Value: e.Value}

	case *compiler.Identifier:
		return n.lookup(e.Name)

	case *compiler.SecretWrap:
		return &HSecret{Inner: n.normalizeExpr(e.Inner)}

	case *compiler.UnaryOp:
		return &HUnary{Op: e.Op.String(), Operand: n.normalizeExpr(e.Operand)}

	case *compiler.BinaryOp:
		return &HBinary{
			Op:    e.Op.String(),
			Left:  n.normalizeExpr(e.Left),
			Right: n.normalizeExpr(e.Right),
		}

	case *compiler.Conditional:
		return &HConditional{
			Guard: n.normalizeExpr(e.Guard),
			Then:  n.normalizeExpr(e.Then),
			Else:  n.normalizeExpr(e.Else),
		}

	case *compiler.Select:
		return &HSelect{
			Guard: n.normalizeExpr(e.Guard),
			Then:  n.normalizeExpr(e.Then),
			Else:  n.normalizeExpr(e.Else),
		}

	case *compiler.LetBinding:
		if e.IsDecl() {
			// A declaration outside a block: the binding has no body to
			// scope over.
			return &HDecl{Value: n.normalizeExpr(e.Value)}
		}
		value := n.normalizeExpr(e.Value)
		n.env = append(n.env, e.Name)
		body := n.normalizeExpr(e.Body)
		n.env = n.env[:len(n.env)-1]
		return &HLet{Value: value, Body: body}

	case *compiler.Block:
		mark := len(n.env)
		decls := make([]HNode, len(e.Decls))
		for i, d := range e.Decls {
			decls[i] = n.decl(d)
		}
		result := n.normalizeExpr(e.Result)
		n.env = n.env[:mark]
		return &HBlock{Decls: decls, Result: result}
	}

	// nil children appear only in conditionals detached by the transform.
	return &HFreeRef{}
}
