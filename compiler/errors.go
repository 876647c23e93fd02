package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Errors: one type per pipeline stage
// ---------------------------------------------------------------------------

// LexError reports a character sequence the lexer cannot tokenize.
type LexError struct {
	Pos  Position
	Char rune   // offending character, 0 when Msg is set
	Msg  string // optional override for non-character failures
}

func (e *LexError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
	}
	return fmt.Sprintf("line %d, column %d: unexpected character %q", e.Pos.Line, e.Pos.Column, e.Char)
}

// ParseError reports a grammar violation.
type ParseError struct {
	Pos      Position
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: expected %s, found %s", e.Pos.Line, e.Pos.Column, e.Expected, e.Found)
}

// TaintAnalysisError reports a failure of the secrecy analysis, currently
// only references to names that are not bound.
type TaintAnalysisError struct {
	Pos    Position
	Name   string
	Reason string
}

func (e *TaintAnalysisError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s: %s", e.Pos.Line, e.Pos.Column, e.Name, e.Reason)
}

// TypeError reports an ill-typed expression.
type TypeError struct {
	Pos     Position
	Message string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// NonObliviousError reports a secret-guarded conditional whose branches
// cannot be evaluated unconditionally without changing program meaning.
type NonObliviousError struct {
	Pos    Position
	Node   Node // the offending operation inside the branch
	Reason string
}

func (e *NonObliviousError) Error() string {
	return fmt.Sprintf("line %d, column %d: cannot make conditional constant-time: %s", e.Pos.Line, e.Pos.Column, e.Reason)
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// SourceError is implemented by errors raised after compilation that still
// point into the source, such as interpreter faults.
type SourceError interface {
	error
	SourcePos() Position
	Kind() string
}

// ErrorKind names the stage an error came from, or "error" if err is not a
// compiler error.
func ErrorKind(err error) string {
	var (
		lexErr   *LexError
		parseErr *ParseError
		taintErr *TaintAnalysisError
		typeErr  *TypeError
		obliErr  *NonObliviousError
		srcErr   SourceError
	)
	switch {
	case errors.As(err, &lexErr):
		return "lex error"
	case errors.As(err, &parseErr):
		return "parse error"
	case errors.As(err, &taintErr):
		return "taint error"
	case errors.As(err, &typeErr):
		return "type error"
	case errors.As(err, &obliErr):
		return "non-oblivious"
	case errors.As(err, &srcErr):
		return srcErr.Kind()
	}
	return "error"
}

// ErrorPosition extracts the source position carried by err, if any.
func ErrorPosition(err error) (Position, bool) {
	var (
		lexErr   *LexError
		parseErr *ParseError
		taintErr *TaintAnalysisError
		typeErr  *TypeError
		obliErr  *NonObliviousError
		srcErr   SourceError
	)
	switch {
	case errors.As(err, &lexErr):
		return lexErr.Pos, true
	case errors.As(err, &parseErr):
		return parseErr.Pos, true
	case errors.As(err, &taintErr):
		return taintErr.Pos, true
	case errors.As(err, &typeErr):
		return typeErr.Pos, true
	case errors.As(err, &obliErr):
		return obliErr.Pos, true
	case errors.As(err, &srcErr):
		return srcErr.SourcePos(), true
	}
	return Position{}, false
}

// Diagnose renders err as a human-readable diagnostic:
//
//	file.obli:3:7: parse error: expected then, found "else"
//	    if x > 0 else 1
//	          ^
func Diagnose(filename, source string, err error) string {
	pos, ok := ErrorPosition(err)
	if !ok {
		return fmt.Sprintf("%s: %v", filename, err)
	}

	msg := err.Error()
	// Drop the "line N, column M: " prefix; the header already carries it.
	if i := strings.Index(msg, ": "); i >= 0 && strings.HasPrefix(msg, "line ") {
		msg = msg[i+2:]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d:%d: %s: %s", filename, pos.Line, pos.Column, ErrorKind(err), msg)

	lines := strings.Split(source, "\n")
	if pos.Line >= 1 && pos.Line <= len(lines) {
		line := strings.TrimRight(lines[pos.Line-1], "\r")
		sb.WriteString("\n    ")
		sb.WriteString(line)
		sb.WriteString("\n    ")
		for i, r := range []rune(line) {
			if i >= pos.Column-1 {
				break
			}
			if r == '\t' {
				sb.WriteByte('\t')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('^')
	}
	return sb.String()
}
