package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the obli lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Literals
	TokenInteger    // 42
	TokenIdentifier // foo, bar_2

	// Keywords
	TokenLet
	TokenIf
	TokenThen
	TokenElse
	TokenSecret
	TokenTrue
	TokenFalse
	TokenAnd // and, &&
	TokenOr  // or, ||
	TokenNot // not, !

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEq      // ==
	TokenNe      // !=
	TokenLt      // <
	TokenLe      // <=
	TokenGt      // >
	TokenGe      // >=

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenAssign    // =
	TokenSemicolon // ;
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenInteger:    "INTEGER",
	TokenIdentifier: "IDENTIFIER",
	TokenLet:        "let",
	TokenIf:         "if",
	TokenThen:       "then",
	TokenElse:       "else",
	TokenSecret:     "secret",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenAnd:        "and",
	TokenOr:         "or",
	TokenNot:        "not",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenPercent:    "%",
	TokenEq:         "==",
	TokenNe:         "!=",
	TokenLt:         "<",
	TokenLe:         "<=",
	TokenGt:         ">",
	TokenGe:         ">=",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenAssign:     "=",
	TokenSemicolon:  ";",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenInteger, TokenIdentifier:
		if len(t.Literal) > 20 {
			return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
		}
		return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
	}
	return fmt.Sprintf("%q", t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":    TokenLet,
	"if":     TokenIf,
	"then":   TokenThen,
	"else":   TokenElse,
	"secret": TokenSecret,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"and":    TokenAnd,
	"or":     TokenOr,
	"not":    TokenNot,
}
