package main

import (
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sambeau/koto/config"
	"github.com/sambeau/koto/pkg/koto/errors"
	"github.com/sambeau/koto/pkg/koto/format"
	"github.com/sambeau/koto/pkg/koto/koto"
)

// emitCommand implements the 'koto emit' subcommand
func emitCommand(args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("koto emit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dialectFlag := fs.String("d", "", "Output dialect: js or py")
	dialectLong := fs.String("dialect", "", "Output dialect: js or py")
	indentFlag := fs.Int("indent", -1, "Base indentation level")
	configFlag := fs.String("config", "", "Config file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: koto emit [-d js|py] [-indent n] [file]

Translates a Koto program to JavaScript (js) or Python (py). The program is
read from stdin when no file is given.`)
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(*configFlag, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	name := cfg.Emit.Dialect
	if *dialectLong != "" {
		name = *dialectLong
	}
	if *dialectFlag != "" {
		name = *dialectFlag
	}
	dialect, err := format.ParseDialect(name)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	indent := cfg.Emit.Indent
	if *indentFlag >= 0 {
		indent = *indentFlag
	}

	filename := "<stdin>"
	var content []byte
	switch fs.NArg() {
	case 0:
		content, err = io.ReadAll(stdin)
	case 1:
		filename = fs.Arg(0)
		content, err = os.ReadFile(filename)
	default:
		fs.Usage()
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error reading %s: %v\n", filename, err)
		return exitUsage
	}

	program, err := koto.ParseNamed(filename, string(content))
	if err != nil {
		var kerr *errors.KotoError
		if stderrors.As(err, &kerr) {
			printError(stderr, kerr)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitProgram
	}

	io.WriteString(stdout, koto.Emit(program, dialect, indent))
	return exitOK
}
