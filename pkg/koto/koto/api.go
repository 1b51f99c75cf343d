// Package koto provides a public API for embedding the Koto interpreter and
// translator.
//
// Basic usage:
//
//	out := koto.NewRecorder()
//	env, rt, err := koto.Run(source, koto.Options{Logger: out})
//	if err != nil {
//	    var kerr *errors.KotoError
//	    if stderrors.As(err, &kerr) {
//	        fmt.Println(kerr.PrettyString())
//	    }
//	}
//	fmt.Println(out.Values(), rt.Stats())
//	合計, _ := env.Get("合計")
package koto

import (
	"context"
	"time"

	"github.com/sambeau/koto/pkg/koto/ast"
	"github.com/sambeau/koto/pkg/koto/errors"
	"github.com/sambeau/koto/pkg/koto/evaluator"
	"github.com/sambeau/koto/pkg/koto/format"
	"github.com/sambeau/koto/pkg/koto/lexer"
	"github.com/sambeau/koto/pkg/koto/parser"
)

// DefaultBudget is the wall-clock time a Run may take before it fails with a
// timeout.
const DefaultBudget = 30 * time.Second

// Re-exported so embedders need a single import.
type (
	Program     = ast.Program
	Environment = evaluator.Environment
	Runtime     = evaluator.Runtime
	Object      = evaluator.Object
	Dialect     = format.Dialect
)

const (
	DialectJ = format.DialectJ
	DialectP = format.DialectP
)

// Options configures Run.
type Options struct {
	// Name labels the source in error messages, usually a file name.
	Name string

	// Env is the environment to evaluate in. It is mutated in place; nil
	// starts from an empty environment.
	Env *Environment

	// Budget limits wall-clock time. Zero means DefaultBudget; a negative
	// budget never times out.
	Budget time.Duration

	// Logger receives the value of every expression statement; nil writes
	// to stdout.
	Logger Logger

	// Context stops the evaluation when cancelled.
	Context context.Context

	// MaxDepth caps nested calls; zero means evaluator.DefaultMaxDepth.
	MaxDepth int

	// Runtime lets the caller keep a handle for Stop; nil creates one.
	Runtime *Runtime
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return evaluator.NewEnvironment()
}

// NewRuntime creates a runtime with the default logger and call depth.
func NewRuntime() *Runtime {
	return evaluator.NewRuntime()
}

// Parse parses source text. A failure is a *errors.KotoError.
func Parse(source string) (*Program, error) {
	return ParseNamed("", source)
}

// ParseNamed parses source text labelled with name.
func ParseNamed(name, source string) (*Program, error) {
	program, err := parser.Parse(name, source)
	if err != nil {
		return nil, withFile(err, name)
	}
	return program, nil
}

// ParseAll parses with error recovery and returns every parse error.
func ParseAll(name, source string) (*Program, []*errors.KotoError) {
	p := parser.New(lexer.New(source), parser.WithName(name), parser.WithRecovery())
	program := p.ParseProgram()
	errs := p.StructuredErrors()
	if name != "" {
		for i, e := range errs {
			errs[i] = e.WithFile(name)
		}
	}
	return program, errs
}

// Evaluate runs prog against env with rt within budget. A zero budget means
// DefaultBudget; a negative budget never times out. A failure is a
// *errors.KotoError; a failed doctest carries the value it produced in
// KotoError.Actual.
func Evaluate(prog *Program, env *Environment, rt *Runtime, budget time.Duration) error {
	if budget == 0 {
		budget = DefaultBudget
	}
	rt.Start(budget)
	if err := evaluator.EvalProgram(prog, rt, env); err != nil {
		kerr := err.ToKotoError()
		if prog.Source != nil && prog.Source.Name != "" {
			kerr = kerr.WithFile(prog.Source.Name)
		}
		return kerr
	}
	return nil
}

// Emit translates prog into dialect, starting at indent levels.
func Emit(prog *Program, dialect Dialect, indent int) string {
	return format.Emit(prog, dialect, indent)
}

// Translate parses source and emits it in dialect.
func Translate(source string, dialect Dialect, indent int) (string, error) {
	prog, err := Parse(source)
	if err != nil {
		return "", err
	}
	return Emit(prog, dialect, indent), nil
}

// Run parses and evaluates source. The environment and runtime are returned
// even when evaluation fails, so callers can inspect the state the program
// reached and the counters it accumulated.
func Run(source string, opts Options) (*Environment, *Runtime, error) {
	env := opts.Env
	if env == nil {
		env = NewEnvironment()
	}
	rt := newRuntime(opts)

	prog, err := ParseNamed(opts.Name, source)
	if err != nil {
		return env, rt, err
	}

	return env, rt, Evaluate(prog, env, rt, opts.Budget)
}

func newRuntime(opts Options) *Runtime {
	rt := opts.Runtime
	if rt == nil {
		rt = evaluator.NewRuntime()
	}
	if opts.Logger != nil {
		rt.Logger = opts.Logger
	}
	if opts.MaxDepth > 0 {
		rt.MaxDepth = opts.MaxDepth
	}
	if opts.Context != nil {
		rt.WithContext(opts.Context)
	}
	return rt
}

func withFile(err error, name string) error {
	if kerr, ok := err.(*errors.KotoError); ok && name != "" {
		return kerr.WithFile(name)
	}
	return err
}
