package compiler

import (
	"iter"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for obli source
// ---------------------------------------------------------------------------

// Lexer tokenizes obli source code. Tokens are produced lazily, one per
// NextToken call, and the sequence can be restarted with Reset.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	col       int  // current column (1-based)
	lineStart int  // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.Reset()
	return l
}

// Reset rewinds the lexer to the beginning of its input.
func (l *Lexer) Reset() {
	l.pos = 0
	l.readPos = 0
	l.line = 1
	l.col = 0
	l.lineStart = 0
	l.ch = 0
	l.readChar()
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == '\n' {
		l.line++
		l.col = 0
		l.lineStart = l.readPos
	}
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// atEOF reports whether the whole input has been consumed. A literal NUL
// byte inside the input is not EOF.
func (l *Lexer) atEOF() bool {
	return l.ch == 0 && l.pos >= len(l.input)
}

// NextToken returns the next token. After the input is exhausted it keeps
// returning TokenEOF.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespaceAndComments()

	pos := l.position()

	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}, nil
	}

	switch l.ch {
	case '(':
		return l.single(TokenLParen, pos), nil
	case ')':
		return l.single(TokenRParen, pos), nil
	case '{':
		return l.single(TokenLBrace, pos), nil
	case '}':
		return l.single(TokenRBrace, pos), nil
	case ';':
		return l.single(TokenSemicolon, pos), nil
	case '+':
		return l.single(TokenPlus, pos), nil
	case '-':
		return l.single(TokenMinus, pos), nil
	case '*':
		return l.single(TokenStar, pos), nil
	case '/':
		return l.single(TokenSlash, pos), nil
	case '%':
		return l.single(TokenPercent, pos), nil
	case '=':
		return l.withEquals(TokenAssign, TokenEq, pos), nil
	case '!':
		return l.withEquals(TokenNot, TokenNe, pos), nil
	case '<':
		return l.withEquals(TokenLt, TokenLe, pos), nil
	case '>':
		return l.withEquals(TokenGt, TokenGe, pos), nil
	case '&':
		return l.doubled('&', TokenAnd, pos)
	case '|':
		return l.doubled('|', TokenOr, pos)
	}

	switch {
	case isDigit(l.ch):
		return l.readNumber(pos)
	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifierOrKeyword(pos), nil
	}

	ch := l.ch
	l.readChar()
	return Token{}, &LexError{Pos: pos, Char: ch}
}

// single consumes one character and returns a token of type t.
func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

// withEquals handles the X / X= operator pairs.
func (l *Lexer) withEquals(plain, eq TokenType, pos Position) Token {
	first := l.ch
	l.readChar()
	if l.ch == '=' {
		l.readChar()
		return Token{Type: eq, Literal: string(first) + "=", Pos: pos}
	}
	return Token{Type: plain, Literal: string(first), Pos: pos}
}

// doubled handles && and ||; a single & or | is not a valid token.
func (l *Lexer) doubled(ch rune, t TokenType, pos Position) (Token, error) {
	l.readChar()
	if l.ch != ch {
		return Token{}, &LexError{Pos: pos, Char: ch}
	}
	l.readChar()
	return Token{Type: t, Literal: string(ch) + string(ch), Pos: pos}, nil
}

// skipWhitespaceAndComments skips whitespace and # line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for !l.atEOF() && unicode.IsSpace(l.ch) {
			l.readChar()
		}

		if l.ch == '#' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		break
	}
}

// readNumber reads a decimal integer literal.
func (l *Lexer) readNumber(pos Position) (Token, error) {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if _, err := strconv.ParseInt(lit, 10, 64); err != nil {
		return Token{}, &LexError{Pos: pos, Msg: "integer literal " + lit + " overflows int64"}
	}
	return Token{Type: TokenInteger, Literal: lit, Pos: pos}, nil
}

// readIdentifierOrKeyword reads an identifier or reserved word.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	literal := l.input[start:l.pos]

	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: literal, Pos: pos}
}

func isLetter(ch rune) bool {
	return unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// Tokens returns the token sequence for input. Each range over the result
// lexes from the start again. The sequence ends after TokenEOF or the
// first error.
func Tokens(input string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l := NewLexer(input)
		for {
			tok, err := l.NextToken()
			if !yield(tok, err) {
				return
			}
			if err != nil || tok.Type == TokenEOF {
				return
			}
		}
	}
}

// Tokenize lexes the whole input, stopping at the first error.
func Tokenize(input string) ([]Token, error) {
	var toks []Token
	for tok, err := range Tokens(input) {
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
	}
	return toks, nil
}
