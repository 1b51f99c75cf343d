package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sambeau/koto/config"
	"github.com/sambeau/koto/pkg/koto/errors"
	"github.com/sambeau/koto/pkg/koto/koto"
	"github.com/sambeau/koto/pkg/koto/seed"
)

// runner runs programs with the settings of one invocation.
type runner struct {
	cfg      *config.Config
	seed     seed.Values
	recovery bool
	stdout   io.Writer
	stderr   io.Writer
}

func newRunner(cfg *config.Config, recovery bool, stdout, stderr io.Writer) (*runner, error) {
	values, err := loadSeed(cfg.Seed)
	if err != nil {
		return nil, err
	}
	return &runner{cfg: cfg, seed: values, recovery: recovery, stdout: stdout, stderr: stderr}, nil
}

// budget converts the configured timeout for koto.Options, where a
// negative budget disables the limit.
func budget(cfg *config.Config) time.Duration {
	if b := cfg.Run.Budget(); b > 0 {
		return b
	}
	return -1
}

// runFile reads and runs a source file
func (r *runner) runFile(ctx context.Context, filename string) int {
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(r.stderr, "Error reading file '%s': %v\n", filename, err)
		return exitUsage
	}
	return r.runSource(ctx, filename, string(content))
}

// runSource parses and evaluates source against a fresh environment
// holding the seed values.
func (r *runner) runSource(ctx context.Context, name, source string) int {
	env := koto.NewEnvironment()
	if err := seed.Apply(env, r.seed); err != nil {
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
		return exitUsage
	}

	if r.recovery {
		if _, errs := koto.ParseAll(name, source); len(errs) > 0 {
			for _, err := range errs {
				printError(r.stderr, err)
			}
			return exitProgram
		}
	}

	_, rt, err := koto.Run(source, koto.Options{
		Name:     name,
		Env:      env,
		Budget:   budget(r.cfg),
		Logger:   koto.WriterLogger(r.stdout),
		Context:  ctx,
		MaxDepth: r.cfg.Run.MaxDepth,
	})

	if r.cfg.Run.Stats {
		s := rt.Stats()
		fmt.Fprintf(r.stderr, "increments: %d, decrements: %d, comparisons: %d\n",
			s.Increments, s.Decrements, s.Comparisons)
	}

	if err != nil {
		var kerr *errors.KotoError
		if stderrors.As(err, &kerr) {
			printError(r.stderr, kerr)
		} else {
			fmt.Fprintf(r.stderr, "Error: %v\n", err)
		}
		return exitProgram
	}
	return exitOK
}

// checkFiles checks the syntax of one or more files without executing them
func (r *runner) checkFiles(files []string) int {
	hasErrors := false

	for _, filename := range files {
		content, err := os.ReadFile(filename)
		if err != nil {
			fmt.Fprintf(r.stderr, "Error reading %s: %v\n", filename, err)
			return exitUsage
		}

		if r.recovery {
			_, errs := koto.ParseAll(filename, string(content))
			for _, err := range errs {
				printError(r.stderr, err)
			}
			hasErrors = hasErrors || len(errs) > 0
			continue
		}

		if _, err := koto.ParseNamed(filename, string(content)); err != nil {
			var kerr *errors.KotoError
			if stderrors.As(err, &kerr) {
				printError(r.stderr, kerr)
			}
			hasErrors = true
		}
	}

	if hasErrors {
		return exitProgram
	}
	return exitOK
}

// printError prints an error with its source line and a caret under the
// offending column
func printError(w io.Writer, err *errors.KotoError) {
	fmt.Fprintln(w, err.PrettyString())
	if caret := err.Detail().Caret("    "); caret != "" {
		fmt.Fprintln(w, caret)
	}
}
