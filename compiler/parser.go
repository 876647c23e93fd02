package compiler

import (
	"strconv"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for obli
// ---------------------------------------------------------------------------

// Parser parses obli source code into an AST. Parsing stops at the first
// error; there is no recovery.
type Parser struct {
	lexer    *Lexer
	curToken Token
	curErr   error // lex error standing in for curToken
	peekTok  Token
	peekErr  error
	lastEnd  Position // end of the most recently consumed token
	err      error
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekTok
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program.
func Parse(input string) (*Program, error) {
	p := NewParser(input)
	prog := p.ParseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

// ParseExpr parses input as exactly one expression.
func ParseExpr(input string) (Expr, error) {
	p := NewParser(input)
	expr := p.ParseExpression()
	if p.err == nil && !p.curTokenIs(TokenEOF) {
		p.fail("end of input")
	}
	if p.err != nil {
		return nil, p.err
	}
	return expr, nil
}

// nextToken advances to the next token. A lex error is held back until the
// broken token becomes current, so errors are reported in source order.
func (p *Parser) nextToken() {
	if p.curToken.Literal != "" {
		p.lastEnd = tokenEnd(p.curToken)
	}
	p.curToken, p.curErr = p.peekTok, p.peekErr
	if p.curErr != nil {
		p.setErr(p.curErr)
		p.curToken = Token{Type: TokenEOF}
		return
	}
	p.peekTok, p.peekErr = p.lexer.NextToken()
}

// tokenEnd returns the position just past tok.
func tokenEnd(tok Token) Position {
	return Position{
		Offset: tok.Pos.Offset + len(tok.Literal),
		Line:   tok.Pos.Line,
		Column: tok.Pos.Column + utf8.RuneCountInString(tok.Literal),
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.err != nil {
		return false
	}
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.fail(strconv.Quote(t.String()))
	return false
}

// fail records a parse error at the current token.
func (p *Parser) fail(expected string) {
	p.setErr(&ParseError{Pos: p.curToken.Pos, Expected: expected, Found: p.curToken.String()})
}

// setErr keeps only the first error.
func (p *Parser) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}

// Err returns the first error encountered, if any.
func (p *Parser) Err() error {
	return p.err
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses items separated by semicolons until EOF.
func (p *Parser) ParseProgram() *Program {
	start := p.curToken.Pos
	prog := &Program{}

	for p.err == nil && !p.curTokenIs(TokenEOF) {
		item := p.parseItem()
		if item == nil {
			return nil
		}
		prog.Items = append(prog.Items, item)

		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			continue
		}
		if !p.curTokenIs(TokenEOF) {
			p.fail(`";" or end of input`)
			return nil
		}
	}
	if p.err != nil {
		return nil
	}

	prog.SpanVal = MakeSpan(start, p.lastEnd)
	return prog
}

// parseItem parses a declaration or an expression.
func (p *Parser) parseItem() Expr {
	if p.curTokenIs(TokenLet) {
		return p.parseLet(true, false)
	}
	return p.parseExpr(false)
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpr(false)
}

// parseExpr parses let, if, or an operator expression. inCond is set while
// parsing a part of a conditional, where a bare nested conditional would
// be ambiguous and must be parenthesized.
func (p *Parser) parseExpr(inCond bool) Expr {
	if p.err != nil {
		return nil
	}
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLet(false, inCond)
	case TokenIf:
		if inCond {
			p.fail("parenthesized conditional")
			return nil
		}
		return p.parseConditional()
	}
	return p.parseOr()
}

// parseLet parses let NAME = value [body]. When allowDecl is set and the
// value is followed by a terminator, the binding is a declaration.
func (p *Parser) parseLet(allowDecl, inCond bool) Expr {
	start := p.curToken.Pos
	p.nextToken() // consume let

	if !p.curTokenIs(TokenIdentifier) {
		p.fail("identifier")
		return nil
	}
	name := p.curToken.Literal
	namePos := p.curToken.Pos
	p.nextToken()

	if !p.expect(TokenAssign) {
		return nil
	}

	value := p.parseExpr(inCond)
	if value == nil {
		return nil
	}

	let := &LetBinding{Name: name, NamePos: namePos, Value: value}

	if allowDecl && (p.curTokenIs(TokenSemicolon) || p.curTokenIs(TokenRBrace) || p.curTokenIs(TokenEOF)) {
		let.SpanVal = MakeSpan(start, value.Span().End)
		return let
	}

	body := p.parseExpr(inCond)
	if body == nil {
		return nil
	}
	let.Body = body
	let.SpanVal = MakeSpan(start, body.Span().End)
	return let
}

// parseConditional parses if guard then a else b.
func (p *Parser) parseConditional() Expr {
	start := p.curToken.Pos
	p.nextToken() // consume if

	guard := p.parseExpr(true)
	if guard == nil || !p.expect(TokenThen) {
		return nil
	}
	then := p.parseExpr(true)
	if then == nil || !p.expect(TokenElse) {
		return nil
	}
	els := p.parseExpr(true)
	if els == nil {
		return nil
	}

	return &Conditional{
		SpanVal: MakeSpan(start, els.Span().End),
		Guard:   guard,
		Then:    then,
		Else:    els,
	}
}

// ---------------------------------------------------------------------------
// Operator precedence levels
// ---------------------------------------------------------------------------

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for left != nil && p.curTokenIs(TokenOr) {
		p.nextToken()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = binary(OpOr, left, right)
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseComparison()
	for left != nil && p.curTokenIs(TokenAnd) {
		p.nextToken()
		right := p.parseComparison()
		if right == nil {
			return nil
		}
		left = binary(OpAnd, left, right)
	}
	return left
}

var comparisonOps = map[TokenType]BinOp{
	TokenEq: OpEq,
	TokenNe: OpNe,
	TokenLt: OpLt,
	TokenLe: OpLe,
	TokenGt: OpGt,
	TokenGe: OpGe,
}

// parseComparison parses a non-associative comparison.
func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()
	if left == nil {
		return nil
	}
	op, ok := comparisonOps[p.curToken.Type]
	if !ok {
		return left
	}
	p.nextToken()
	right := p.parseAdditive()
	if right == nil {
		return nil
	}
	if _, chained := comparisonOps[p.curToken.Type]; chained {
		p.fail("parenthesized comparison")
		return nil
	}
	return binary(op, left, right)
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for left != nil {
		var op BinOp
		switch p.curToken.Type {
		case TokenPlus:
			op = OpAdd
		case TokenMinus:
			op = OpSub
		default:
			return left
		}
		p.nextToken()
		right := p.parseMultiplicative()
		if right == nil {
			return nil
		}
		left = binary(op, left, right)
	}
	return nil
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for left != nil {
		var op BinOp
		switch p.curToken.Type {
		case TokenStar:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		default:
			return left
		}
		p.nextToken()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = binary(op, left, right)
	}
	return nil
}

func (p *Parser) parseUnary() Expr {
	var op UnOp
	switch p.curToken.Type {
	case TokenMinus:
		op = OpNeg
	case TokenNot:
		op = OpNot
	default:
		return p.parsePrimary()
	}
	start := p.curToken.Pos
	p.nextToken()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &UnaryOp{SpanVal: MakeSpan(start, operand.Span().End), Op: op, Operand: operand}
}

func binary(op BinOp, left, right Expr) *BinaryOp {
	return &BinaryOp{
		SpanVal: MakeSpan(left.Span().Start, right.Span().End),
		Op:      op,
		Left:    left,
		Right:   right,
	}
}

// ---------------------------------------------------------------------------
// Primaries
// ---------------------------------------------------------------------------

func (p *Parser) parsePrimary() Expr {
	if p.err != nil {
		return nil
	}
	tok := p.curToken
	span := MakeSpan(tok.Pos, tokenEnd(tok))

	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.setErr(&LexError{Pos: tok.Pos, Msg: "integer literal " + tok.Literal + " overflows int64"})
			return nil
		}
		return &IntLiteral{SpanVal: span, Value: v}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: span, Value: tok.Type == TokenTrue}

	case TokenIdentifier:
		p.nextToken()
		return &Identifier{SpanVal: span, Name: tok.Literal}

	case TokenSecret:
		p.nextToken()
		if !p.expect(TokenLParen) {
			return nil
		}
		inner := p.parseExpr(false)
		if inner == nil || !p.expect(TokenRParen) {
			return nil
		}
		return &SecretWrap{SpanVal: MakeSpan(tok.Pos, p.lastEnd), Inner: inner}

	case TokenLParen:
		p.nextToken()
		inner := p.parseExpr(false)
		if inner == nil || !p.expect(TokenRParen) {
			return nil
		}
		return inner

	case TokenLBrace:
		return p.parseBlock()
	}

	p.fail("expression")
	return nil
}

// parseBlock parses { let a = x; ...; result }.
func (p *Parser) parseBlock() Expr {
	start := p.curToken.Pos
	p.nextToken() // consume {

	block := &Block{}
	for p.err == nil {
		if p.curTokenIs(TokenRBrace) {
			p.fail("expression")
			return nil
		}
		item := p.parseItem()
		if item == nil {
			return nil
		}
		if let, ok := item.(*LetBinding); ok && let.IsDecl() {
			block.Decls = append(block.Decls, let)
			if !p.expect(TokenSemicolon) {
				return nil
			}
			continue
		}
		block.Result = item
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
		}
		break
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	block.SpanVal = MakeSpan(start, p.lastEnd)
	return block
}
