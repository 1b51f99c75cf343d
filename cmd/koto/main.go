package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/sambeau/koto/config"
	"github.com/sambeau/koto/pkg/koto/repl"
	"github.com/sambeau/koto/pkg/koto/seed"
)

// Version is set at compile time via -ldflags
var Version = "0.3.0"

// Exit codes
const (
	exitOK      = 0
	exitProgram = 1 // parse or runtime error
	exitUsage   = 2 // bad flags, unreadable files, bad config
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv))
}

// options are the flags shared by every mode
type options struct {
	help     bool
	version  bool
	eval     string
	check    bool
	timeout  float64
	seedPath string
	config   string
	stats    bool
	watch    bool
	recovery bool
}

func newFlagSet(name string, stderr io.Writer, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Display flags
	fs.BoolVar(&o.help, "h", false, "Show help message")
	fs.BoolVar(&o.help, "help", false, "Show help message")
	fs.BoolVar(&o.version, "V", false, "Show version information")
	fs.BoolVar(&o.version, "version", false, "Show version information")

	// Evaluation flags
	fs.StringVar(&o.eval, "e", "", "Evaluate code string")
	fs.StringVar(&o.eval, "eval", "", "Evaluate code string")
	fs.BoolVar(&o.check, "check", false, "Check syntax without executing")
	fs.Float64Var(&o.timeout, "t", -1, "Timeout in seconds (0 disables)")
	fs.Float64Var(&o.timeout, "timeout", -1, "Timeout in seconds (0 disables)")
	fs.StringVar(&o.seedPath, "seed", "", "Bind values from a .yaml or .csv file")
	fs.StringVar(&o.config, "config", "", "Config file")
	fs.BoolVar(&o.stats, "stats", false, "Print counters after the run")
	fs.BoolVar(&o.watch, "watch", false, "Re-run the file when it changes")
	fs.BoolVar(&o.recovery, "recover", false, "Report every parse error, not only the first")

	return fs
}

// run is main without the process: it returns the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	if len(args) > 0 {
		switch args[0] {
		case "emit":
			return emitCommand(args[1:], stdin, stdout, stderr, getenv)
		case "repl":
			return replCommand(args[1:], stdout, stderr, getenv)
		}
	}

	var o options
	fs := newFlagSet("koto", stderr, &o)
	fs.Usage = func() { printHelp(stderr) }
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	if o.help {
		printHelp(stdout)
		return exitOK
	}
	if o.version {
		fmt.Fprintf(stdout, "koto version %s\n", Version)
		return exitOK
	}

	cfg, err := loadConfig(o, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := newRunner(cfg, o.recovery, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	switch {
	case o.eval != "":
		return r.runSource(ctx, "<eval>", o.eval)

	case o.check:
		files := fs.Args()
		if len(files) == 0 {
			fmt.Fprintln(stderr, "Error: --check requires at least one file")
			return exitUsage
		}
		return r.checkFiles(files)

	case fs.NArg() > 0:
		filename := fs.Arg(0)
		if o.watch {
			return r.watchFile(ctx, filename)
		}
		return r.runFile(ctx, filename)

	case o.watch:
		fmt.Fprintln(stderr, "Error: --watch requires a file")
		return exitUsage

	case !isTerminal(stdin):
		source, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading stdin: %v\n", err)
			return exitUsage
		}
		return r.runSource(ctx, "<stdin>", string(source))

	default:
		return startREPL(cfg, r.seed, stdout, stderr)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(o options, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(o.config, getenv)
	if err != nil {
		return nil, err
	}
	if o.timeout >= 0 {
		cfg.Run.Timeout = o.timeout
	}
	if o.seedPath != "" {
		cfg.Seed = o.seedPath
	}
	if o.stats {
		cfg.Run.Stats = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func replCommand(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	var o options
	fs := newFlagSet("koto repl", stderr, &o)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := loadConfig(o, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	values, err := loadSeed(cfg.Seed)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	return startREPL(cfg, values, stdout, stderr)
}

func startREPL(cfg *config.Config, values seed.Values, stdout, stderr io.Writer) int {
	err := repl.Start(stdout, repl.Options{
		Version:  Version,
		History:  cfg.REPL.History,
		Budget:   budget(cfg),
		MaxDepth: cfg.Run.MaxDepth,
		Seed:     values,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	return exitOK
}

func loadSeed(path string) (seed.Values, error) {
	if path == "" {
		return nil, nil
	}
	return seed.Load(path)
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, `koto - Koto interpreter and translator version %s

Usage:
  koto [options] [file]
  koto -e "code"
  koto --check <file>...
  koto emit [-d js|py] [-indent n] [file]
  koto repl

Commands:
  emit                  Translate a program to JavaScript or Python
  repl                  Start an interactive session

Display Options:
  -h, --help            Show this help message
  -V, --version         Show version information

Evaluation Options:
  -e, --eval <code>     Evaluate code string
  --check               Check syntax without executing (can specify multiple files)
  -t, --timeout <secs>  Stop after this many seconds (0 disables, default 30)
  --seed <file>         Bind values from a .yaml or .csv file before running
  --config <file>       Read settings from this file instead of koto.yaml
  --stats               Print increment, decrement and comparison counts
  --watch               Re-run the file whenever it changes
  --recover             Report every parse error, not only the first

With no file and no -e, koto reads the program from stdin, or starts the
REPL when stdin is a terminal.

Examples:
  koto                          Start interactive REPL
  koto sum.koto                 Run a program
  koto -e "3 回くり返す { 1 }"    Evaluate inline code
  koto --seed data.yaml sum.koto
  koto --check *.koto           Check multiple files
  koto emit -d py sum.koto      Translate to Python
`, Version)
}
