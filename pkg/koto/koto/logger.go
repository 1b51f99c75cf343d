package koto

import (
	"io"
	"strings"
	"sync"

	"github.com/sambeau/koto/pkg/koto/evaluator"
)

// Logger receives the value of every expression statement.
type Logger = evaluator.Logger

// WriterLogger returns a logger that writes each observed value as a line to w.
func WriterLogger(w io.Writer) Logger {
	return &evaluator.LineLogger{W: w}
}

// Recorder keeps the values a program observes so an embedder can inspect
// them as values rather than text. Sequences are kept by reference: a
// sequence the program changes after printing it shows the change.
type Recorder struct {
	mu     sync.Mutex
	values []Object
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) LogValue(obj Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, obj)
}

// Values returns the observed values in order.
func (r *Recorder) Values() []Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	values := make([]Object, len(r.values))
	copy(values, r.values)
	return values
}

// String renders the observed values the way WriterLogger prints them.
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sb strings.Builder
	for _, v := range r.values {
		sb.WriteString(evaluator.ObjectToPrintString(v))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Reset forgets the observed values.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = nil
}
