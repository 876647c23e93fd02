package codegen

// In-memory validation of generated Go using go/parser and go/types.

import (
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"strings"
)

// ValidationError represents a Go validation error with position info
type ValidationError struct {
	Line     int
	Column   int
	Function string // function containing the error, or "<package>"
	Message  string
}

// CodeValidator validates generated Go source code in-memory
type CodeValidator struct {
	fset     *token.FileSet
	filename string
}

// NewCodeValidator creates a validator for the given filename (used in error messages)
func NewCodeValidator(filename string) *CodeValidator {
	return &CodeValidator{
		filename: filename,
	}
}

// ValidateGo parses and type-checks source as a single-file package.
func ValidateGo(filename, source string) []ValidationError {
	return NewCodeValidator(filename).Validate(source)
}

// Validate parses and type-checks Go source code, returning any errors
func (cv *CodeValidator) Validate(source string) []ValidationError {
	cv.fset = token.NewFileSet()

	file, err := parser.ParseFile(cv.fset, cv.filename, source, parser.AllErrors)
	if err != nil {
		return cv.parseErrorsToValidationErrors(err)
	}

	funcMap := cv.buildFunctionMap(file)

	var typeCheckErrors []ValidationError
	conf := types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			// types.Error has a Pos field (not a Pos() method)
			var typeErr types.Error
			if !errors.As(err, &typeErr) {
				return
			}
			pos := cv.fset.Position(typeErr.Pos)
			fn := funcMap[pos.Line]
			if fn == "" {
				fn = "<package>"
			}
			typeCheckErrors = append(typeCheckErrors, ValidationError{
				Line:     pos.Line,
				Column:   pos.Column,
				Function: fn,
				Message:  typeErr.Msg,
			})
		},
	}

	_, _ = conf.Check(file.Name.Name, cv.fset, []*ast.File{file}, nil)
	return typeCheckErrors
}

// FunctionsWithErrors returns the set of function names that have errors.
func FunctionsWithErrors(errs []ValidationError) map[string]bool {
	fns := make(map[string]bool)
	for _, err := range errs {
		if err.Function != "" && err.Function != "<package>" {
			fns[err.Function] = true
		}
	}
	return fns
}

func (cv *CodeValidator) parseErrorsToValidationErrors(err error) []ValidationError {
	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return []ValidationError{{Line: 1, Column: 1, Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(list))
	for _, e := range list {
		out = append(out, ValidationError{
			Line:    e.Pos.Line,
			Column:  e.Pos.Column,
			Message: e.Msg,
		})
	}
	return out
}

// buildFunctionMap maps each source line to the top-level function that
// contains it.
func (cv *CodeValidator) buildFunctionMap(file *ast.File) map[int]string {
	funcMap := make(map[int]string)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		start := cv.fset.Position(fn.Pos()).Line
		end := cv.fset.Position(fn.End()).Line
		for line := start; line <= end; line++ {
			funcMap[line] = fn.Name.Name
		}
	}
	return funcMap
}

// FormatValidationErrors returns a human-readable error report
func FormatValidationErrors(errs []ValidationError, filename string) string {
	if len(errs) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, err := range errs {
		sb.WriteString("  ")
		if err.Line > 0 {
			fmt.Fprintf(&sb, "%s:%d:%d: ", filename, err.Line, err.Column)
		}
		if err.Function != "" && err.Function != "<package>" {
			sb.WriteString(err.Function)
			sb.WriteString(": ")
		}
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}
