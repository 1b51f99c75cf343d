package repl

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/peterh/liner"

	"github.com/sambeau/koto/pkg/koto/errors"
	"github.com/sambeau/koto/pkg/koto/evaluator"
	"github.com/sambeau/koto/pkg/koto/format"
	"github.com/sambeau/koto/pkg/koto/koto"
	"github.com/sambeau/koto/pkg/koto/lexer"
	"github.com/sambeau/koto/pkg/koto/seed"
)

const PROMPT = ">> "
const CONTINUATION_PROMPT = ".. "

const LOGO = `
█▄▀ █▀█ ▀█▀ █▀█
█░█ █▄█ ░█░ █▄█ `

// Koto keywords for tab completion
var completionWords = []string{
	// Statements
	"もし", "ならば", "そうでなければ", "回くり返す", "回繰り返す", "くり返しを抜ける",
	"が答え", "入力", "に対し", "に対して", "を増やす", "を減らす", "の末尾に", "を追加する", "とする",
	// Comparators
	"以上", "以下", "より大きい", "より小さい", "未満", "以外",
	// REPL commands
	":help", ":env", ":clear", ":stats", ":emit", ":quit",
}

// Options configures a session.
type Options struct {
	Version  string
	History  string        // history file; empty disables history
	Budget   time.Duration // per-fragment time limit; zero means koto.DefaultBudget
	MaxDepth int
	Seed     seed.Values // bound at start and after :clear
}

// Session is the state shared by the fragments of one interactive session.
type Session struct {
	opts    Options
	out     io.Writer
	env     *evaluator.Environment
	sources []string // fragments that parsed, for :emit
	stats   evaluator.Stats
}

// NewSession creates a session writing to out.
func NewSession(out io.Writer, opts Options) (*Session, error) {
	s := &Session{opts: opts, out: out}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) reset() error {
	s.env = evaluator.NewEnvironment()
	s.sources = nil
	s.stats = evaluator.Stats{}
	if s.opts.Seed != nil {
		return seed.Apply(s.env, s.opts.Seed)
	}
	return nil
}

// Env returns the session environment.
func (s *Session) Env() *evaluator.Environment {
	return s.env
}

// Eval parses and evaluates one complete fragment against the session
// environment with a fresh runtime. Errors are printed, not returned.
func (s *Session) Eval(ctx context.Context, input string) {
	_, rt, err := koto.Run(input, koto.Options{
		Env:      s.env,
		Budget:   s.opts.Budget,
		Logger:   koto.WriterLogger(s.out),
		Context:  ctx,
		MaxDepth: s.opts.MaxDepth,
	})
	s.stats = rt.Stats()

	var kerr *errors.KotoError
	if stderrors.As(err, &kerr) {
		if kerr.Class != errors.ClassParse {
			s.sources = append(s.sources, input)
		}
		printError(s.out, kerr)
		return
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.sources = append(s.sources, input)
}

// Command handles a REPL meta-command that starts with ':'.
// It reports whether the session should end.
func (s *Session) Command(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case ":help", ":h", ":?":
		fmt.Fprintln(s.out, "REPL Commands:")
		fmt.Fprintln(s.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(s.out, "  :env              Show variables in scope")
		fmt.Fprintln(s.out, "  :clear            Clear all variables")
		fmt.Fprintln(s.out, "  :stats            Show counters from the last run")
		fmt.Fprintln(s.out, "  :emit js|py       Translate this session's input")
		fmt.Fprintln(s.out, "  :quit, exit       Exit the REPL")

	case ":env":
		printEnvironment(s.env, s.out)

	case ":clear":
		if err := s.reset(); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return false
		}
		fmt.Fprintln(s.out, "Environment cleared")

	case ":stats":
		fmt.Fprintf(s.out, "increments: %d, decrements: %d, comparisons: %d\n",
			s.stats.Increments, s.stats.Decrements, s.stats.Comparisons)

	case ":emit":
		name := "js"
		if len(fields) > 1 {
			name = fields[1]
		}
		dialect, err := format.ParseDialect(name)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return false
		}
		out, err := koto.Translate(strings.Join(s.sources, "\n"), dialect, 0)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return false
		}
		io.WriteString(s.out, out)

	case ":quit", ":q":
		return true

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type :help for commands)\n", fields[0])
	}
	return false
}

// Start starts the REPL with line editing, history, and tab completion
func Start(out io.Writer, opts Options) error {
	session, err := NewSession(out, opts)
	if err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()

	// Enable Ctrl+C to abort current line
	line.SetCtrlCAborts(true)

	line.SetCompleter(func(input string) []string {
		return filterCompletions(input, session.env.Names())
	})

	if opts.History != "" {
		if f, err := os.Open(opts.History); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(opts.History); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Fprintf(out, "%s", LOGO)
	fmt.Fprintln(out, "v", opts.Version)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "Use Tab for completion, ↑↓ for history")
	fmt.Fprintln(out, "Type ':help' for REPL commands")
	fmt.Fprintln(out, "")

	var inputBuffer strings.Builder

	for {
		currentPrompt := PROMPT
		if inputBuffer.Len() > 0 {
			currentPrompt = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(currentPrompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C - clear any buffered input and return to main prompt
				if inputBuffer.Len() > 0 {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				inputBuffer.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("error reading input: %w", err)
		}

		trimmed := strings.TrimSpace(input)
		if inputBuffer.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		if inputBuffer.Len() == 0 && strings.HasPrefix(trimmed, ":") {
			line.AppendHistory(trimmed)
			if session.Command(trimmed) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			continue
		}

		if inputBuffer.Len() == 0 && trimmed == "" {
			continue
		}

		if inputBuffer.Len() > 0 {
			inputBuffer.WriteString("\n")
		}
		inputBuffer.WriteString(input)

		fullInput := inputBuffer.String()
		if needsMoreInput(fullInput) {
			continue
		}
		line.AppendHistory(fullInput)
		inputBuffer.Reset()

		// Ctrl+C while a fragment runs stops it at the next loop iteration
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		session.Eval(ctx, fullInput)
		stop()
	}
}

// printEnvironment displays all bindings in the environment
func printEnvironment(env *evaluator.Environment, out io.Writer) {
	names := env.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, "(no variables)")
		return
	}

	for _, name := range names {
		obj, _ := env.Get(name)
		value := obj.Inspect()
		if utf8.RuneCountInString(value) > 60 {
			value = string([]rune(value)[:57]) + "..."
		}
		fmt.Fprintf(out, "  %s = %s\n", name, value)
	}
}

// filterCompletions returns whole-line candidates that complete the word
// being typed with a keyword, a command or a bound name. Japanese input
// has no spaces, so the word is the longest suffix that starts a candidate.
func filterCompletions(line string, names []string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t") {
		return nil
	}

	start := strings.LastIndexAny(line, " \t") + 1
	seen := make(map[string]bool)
	var matches []string

	candidates := append(append([]string{}, completionWords...), names...)
	for _, word := range candidates {
		for i := start; i < len(line); {
			suffix := line[i:]
			if strings.HasPrefix(word, suffix) && word != suffix {
				c := line[:i] + word
				if !seen[c] {
					seen[c] = true
					matches = append(matches, c)
				}
				break
			}
			_, size := utf8.DecodeRuneInString(line[i:])
			i += size
		}
	}
	sort.Strings(matches)
	return matches
}

// needsMoreInput reports whether the input has unclosed braces, brackets
// or parentheses, or ends with a doctest line still waiting for its
// expected value.
func needsMoreInput(input string) bool {
	input = strings.TrimSpace(lexer.Normalize(input))
	if input == "" {
		return false
	}

	lines := strings.Split(input, "\n")
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), ">>>") {
		return true
	}

	depth := 0
	inString := false
	inComment := false
	escapeNext := false

	for _, ch := range input {
		switch {
		case inComment:
			if ch == '\n' {
				inComment = false
			}
		case escapeNext:
			escapeNext = false
		case inString:
			switch ch {
			case '\\':
				escapeNext = true
			case '"', '\n':
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '#':
			inComment = true
		case ch == '{' || ch == '[' || ch == '(':
			depth++
		case ch == '}' || ch == ']' || ch == ')':
			depth--
		}
	}

	return depth > 0
}

// printError prints a parse or runtime error with the offending line.
func printError(out io.Writer, err *errors.KotoError) {
	io.WriteString(out, err.PrettyString())
	io.WriteString(out, "\n")
	if caret := err.Detail().Caret("  "); caret != "" {
		io.WriteString(out, caret)
		io.WriteString(out, "\n")
	}
}
