// Package pipeline sequences the compiler stages for the three operation
// modes: transpile, run and check. Each call owns its program tree; calls
// share no state and may run concurrently.
package pipeline

import (
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/obli/codegen"
	"github.com/chazu/obli/compiler"
	"github.com/chazu/obli/vm"
)

var log = commonlog.GetLogger("obli.pipeline")

// DefaultTarget is the backend used when Options.Target is empty.
const DefaultTarget = "rust"

// Version is the obli release. Manifests constrain it with project.requires
// and recorded artifacts carry it.
const Version = "0.3.0"

// Options controls a pipeline run.
type Options struct {
	// Target names the codegen backend. Run only emits code when it is set.
	Target string
	// Filename labels log lines; diagnostics are rendered by the caller.
	Filename string
	// Full makes Check run the oblivious transform too, so it also reports
	// non-oblivious errors.
	Full bool
	// SkipValidation disables type-checking of generated Go.
	SkipValidation bool
}

func (o Options) target() string {
	if o.Target == "" {
		return DefaultTarget
	}
	return o.Target
}

func (o Options) name() string {
	if o.Filename == "" {
		return "<input>"
	}
	return o.Filename
}

// Result is what a pipeline run produced. Fields a mode does not reach are
// left zero.
type Result struct {
	Program  *compiler.Program
	Report   *compiler.Report // nil unless the transform ran
	Target   string
	Code     string
	Outputs  []vm.Value
	Steps    int
	Warnings []string
}

// Check lexes, parses and analyzes src without emitting code. With
// opts.Full it also runs the transform.
func Check(src string, opts Options) (*Result, error) {
	res, err := analyze(src, opts)
	if err != nil {
		return nil, err
	}
	if opts.Full {
		if err := transform(res, opts); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Transpile runs the whole pipeline and returns the emitted code.
func Transpile(src string, opts Options) (*Result, error) {
	res, err := analyze(src, opts)
	if err != nil {
		return nil, err
	}
	if err := transform(res, opts); err != nil {
		return nil, err
	}
	if err := emit(res, opts); err != nil {
		return nil, err
	}
	return res, nil
}

// Run transforms src and evaluates it with the bytecode interpreter. When
// opts.Target is set the code for that target is emitted as well.
func Run(src string, opts Options) (*Result, error) {
	res, err := analyze(src, opts)
	if err != nil {
		return nil, err
	}
	if err := transform(res, opts); err != nil {
		return nil, err
	}
	if opts.Target != "" {
		if err := emit(res, opts); err != nil {
			return nil, err
		}
	}

	out, err := vm.Eval(res.Program)
	if err != nil {
		return nil, err
	}
	res.Outputs, res.Steps = out.Outputs, out.Steps
	log.Debugf("%s: %d outputs in %d steps", opts.name(), len(out.Outputs), out.Steps)
	return res, nil
}

func analyze(src string, opts Options) (*Result, error) {
	prog, err := compiler.Parse(src)
	if err != nil {
		return nil, err
	}
	if err := compiler.Analyze(prog); err != nil {
		return nil, err
	}
	res := &Result{Program: prog}
	for _, w := range compiler.Lint(prog) {
		res.Warnings = append(res.Warnings, w.String())
	}
	log.Debugf("%s: analyzed %d items", opts.name(), len(prog.Items))
	return res, nil
}

func transform(res *Result, opts Options) error {
	report, err := compiler.Transform(res.Program)
	if err != nil {
		return err
	}
	res.Report = report
	log.Debugf("%s: %d conditionals preserved, %d rewritten", opts.name(), report.Preserved, report.Rewritten)
	return nil
}

func emit(res *Result, opts Options) error {
	out, err := codegen.Generate(res.Program, opts.target(), codegen.GenerateOptions{SkipValidation: opts.SkipValidation})
	if err != nil {
		return err
	}
	res.Target, res.Code = out.Target, out.Code
	res.Warnings = append(res.Warnings, out.Warnings...)
	return nil
}

// Explanation describes how one expression lowers in the scope of a set
// of declarations.
type Explanation struct {
	Label   compiler.Label
	Type    compiler.Type
	Lowered string // transformed expression in obli notation
	Report  *compiler.Report
}

// Explain analyzes and transforms expr with the declarations in decls in
// scope. decls is a program of declarations and may be empty.
func Explain(decls, expr string) (*Explanation, error) {
	a := compiler.NewTaintAnalyzer()
	if strings.TrimSpace(decls) != "" {
		prog, err := compiler.Parse(decls)
		if err != nil {
			return nil, err
		}
		if err := a.AnalyzeProgram(prog); err != nil {
			return nil, err
		}
	}

	e, err := compiler.ParseExpr(expr)
	if err != nil {
		return nil, err
	}
	if err := a.AnalyzeExpr(e); err != nil {
		return nil, err
	}
	out, report, err := compiler.TransformExpr(e)
	if err != nil {
		return nil, err
	}
	return &Explanation{
		Label:   out.Label(),
		Type:    out.Type(),
		Lowered: compiler.FormatExpr(out),
		Report:  report,
	}, nil
}
