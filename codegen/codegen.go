// Package codegen emits target-language source for transformed obli
// programs. Preserved conditionals become native branches; selects become
// calls to a branch-free helper that evaluates both arms.
package codegen

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/obli/compiler"
)

// Result contains the generated code and any warnings.
type Result struct {
	Target   string
	Code     string
	Warnings []string
}

// GenerateOptions controls code generation behavior.
type GenerateOptions struct {
	// SkipValidation disables type-checking of generated Go code. When
	// false (default), Go output that does not type-check is an error.
	SkipValidation bool
}

// Backend renders a program in one target language.
type Backend interface {
	// Name is the target name used on the command line and in obli.toml.
	Name() string
	// Extension is the file extension of generated files, with the dot.
	Extension() string
	Generate(prog *compiler.Program, opts GenerateOptions) (*Result, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Backend{}
)

// Register makes a backend available by name. Registering a name twice
// panics.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[b.Name()]; dup {
		panic("codegen: backend registered twice: " + b.Name())
	}
	registry[b.Name()] = b
}

// Lookup returns the backend for target.
func Lookup(target string) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[target]
	if !ok {
		return nil, fmt.Errorf("unknown target %q (have %v)", target, targetsLocked())
	}
	return b, nil
}

// Targets lists the registered target names in sorted order.
func Targets() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return targetsLocked()
}

func targetsLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate emits prog for target. prog must already be analyzed and
// transformed; a conditional that still has a secret guard is refused.
func Generate(prog *compiler.Program, target string, opts GenerateOptions) (*Result, error) {
	b, err := Lookup(target)
	if err != nil {
		return nil, err
	}
	if err := checkTransformed(prog); err != nil {
		return nil, err
	}
	return b.Generate(prog, opts)
}

func checkTransformed(prog *compiler.Program) error {
	var err error
	compiler.Inspect(prog, func(n compiler.Node) bool {
		if err != nil {
			return false
		}
		switch n := n.(type) {
		case *compiler.Conditional:
			if n.Guard == nil {
				err = fmt.Errorf("codegen: detached conditional at %d:%d", n.SpanVal.Start.Line, n.SpanVal.Start.Column)
			} else if n.Guard.Label().IsSecret() || n.Mode == compiler.ModeRewritten {
				err = fmt.Errorf("codegen: conditional at %d:%d has a secret guard; run the oblivious transform first",
					n.SpanVal.Start.Line, n.SpanVal.Start.Column)
			}
		case compiler.Expr:
			if n.Type() == compiler.TypeUnknown {
				err = compiler.ErrNotAnalyzed
			}
		}
		return err == nil
	})
	return err
}

func init() {
	Register(rustBackend{})
	Register(goBackend{})
	Register(irBackend{})
}

// irBackend prints the transformed program in obli notation. Selects print
// as select(guard, then, else).
type irBackend struct{}

func (irBackend) Name() string      { return "ir" }
func (irBackend) Extension() string { return ".oir" }

func (irBackend) Generate(prog *compiler.Program, _ GenerateOptions) (*Result, error) {
	return &Result{Target: "ir", Code: compiler.FormatProgram(prog)}, nil
}
