package evaluator

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sambeau/koto/pkg/koto/ast"
)

// DefaultMaxDepth caps nested calls. Go cannot recover from exhausting the
// goroutine stack, so runaway recursion is reported as an error instead.
const DefaultMaxDepth = 10000

// Logger receives the value of every expression statement, in order.
type Logger interface {
	LogValue(obj Object)
}

// LineLogger writes each value on its own line: texts as their characters,
// everything else as a literal.
type LineLogger struct {
	W io.Writer
}

func (l *LineLogger) LogValue(obj Object) {
	fmt.Fprintln(l.W, ObjectToPrintString(obj))
}

// DefaultLogger writes observed values to stdout.
var DefaultLogger Logger = &LineLogger{W: os.Stdout}

// Frame is one active call.
type Frame struct {
	Name string
	Args []Object
	Pos  ast.Position
}

// String renders the frame as `name(args) at line N`.
func (f Frame) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = describe(a)
	}
	s := fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
	if d := f.Pos.Detail(); d.Line > 0 {
		s += fmt.Sprintf(" at line %d", d.Line)
	}
	return s
}

// Stats are the counters a run accumulates.
type Stats struct {
	Increments  int
	Decrements  int
	Comparisons int
}

// Runtime is the state of one top-level evaluation: counters, the call
// stack, the execution budget and the stop flag.
type Runtime struct {
	Increments  int
	Decrements  int
	Comparisons int

	// MaxDepth caps nested calls; zero means DefaultMaxDepth.
	MaxDepth int

	// Logger receives the value of every expression statement.
	Logger Logger

	// RandomIndex picks the element a `?` index reads; it returns a value in [0, n).
	RandomIndex func(n int) int

	ctx      context.Context
	frames   []Frame
	stopped  atomic.Bool
	budget   time.Duration
	deadline time.Time
}

// NewRuntime creates a runtime with the default logger and call depth.
func NewRuntime() *Runtime {
	return &Runtime{
		MaxDepth:    DefaultMaxDepth,
		Logger:      DefaultLogger,
		RandomIndex: rand.IntN,
	}
}

// WithContext makes cancellation of ctx stop the evaluation at the next
// loop iteration.
func (rt *Runtime) WithContext(ctx context.Context) *Runtime {
	rt.ctx = ctx
	return rt
}

// Start resets the counters, the call stack and the stop flag and starts
// the clock. A budget of zero or less never times out.
func (rt *Runtime) Start(budget time.Duration) {
	rt.Increments = 0
	rt.Decrements = 0
	rt.Comparisons = 0
	rt.frames = rt.frames[:0]
	rt.stopped.Store(false)
	rt.budget = budget
	rt.deadline = time.Time{}
	if budget > 0 {
		rt.deadline = time.Now().Add(budget)
	}
}

// Stop asks the evaluation to stop at the next loop iteration. It may be
// called from any goroutine.
func (rt *Runtime) Stop() {
	rt.stopped.Store(true)
}

// Stopped reports whether Stop has been called since Start.
func (rt *Runtime) Stopped() bool {
	return rt.stopped.Load()
}

// CheckExecution returns a timeout or stop error when the evaluation must
// end. It is called before every loop iteration and nowhere else.
func (rt *Runtime) CheckExecution(node ast.Node) *Error {
	if rt.stopped.Load() || (rt.ctx != nil && rt.ctx.Err() != nil) {
		return rt.newError(node, "STOP-0001", nil)
	}
	if !rt.deadline.IsZero() && time.Now().After(rt.deadline) {
		return rt.newError(node, "TIME-0001", map[string]any{"Budget": rt.budget.String()})
	}
	return nil
}

// Stats returns the counters.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Increments:  rt.Increments,
		Decrements:  rt.Decrements,
		Comparisons: rt.Comparisons,
	}
}

// Frames returns the active calls, outermost first.
func (rt *Runtime) Frames() []Frame {
	frames := make([]Frame, len(rt.frames))
	copy(frames, rt.frames)
	return frames
}

// Depth returns the number of active calls.
func (rt *Runtime) Depth() int {
	return len(rt.frames)
}

func (rt *Runtime) maxDepth() int {
	if rt.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return rt.MaxDepth
}

func (rt *Runtime) pushFrame(f Frame) {
	rt.frames = append(rt.frames, f)
}

func (rt *Runtime) popFrame() {
	rt.frames = rt.frames[:len(rt.frames)-1]
}

// trace renders the active calls, innermost first.
func (rt *Runtime) trace() []string {
	if len(rt.frames) == 0 {
		return nil
	}
	trace := make([]string, 0, len(rt.frames))
	for i := len(rt.frames) - 1; i >= 0; i-- {
		trace = append(trace, rt.frames[i].String())
		if len(trace) == 10 && i > 0 {
			trace = append(trace, fmt.Sprintf("… %d more", i))
			break
		}
	}
	return trace
}

func (rt *Runtime) randomIndex(n int) int {
	if rt.RandomIndex == nil {
		return rand.IntN(n)
	}
	return rt.RandomIndex(n)
}

func (rt *Runtime) log(obj Object) {
	if rt.Logger == nil {
		return
	}
	rt.Logger.LogValue(obj)
}
