package evaluator

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sambeau/koto/pkg/koto/ast"
	"github.com/sambeau/koto/pkg/koto/errors"
)

// ObjectType represents the type of objects in our language
type ObjectType string

const (
	INTEGER_OBJ  = "INTEGER"
	NULL_OBJ     = "NULL"
	SEQUENCE_OBJ = "SEQUENCE"
	FUNCTION_OBJ = "FUNCTION"
	RETURN_OBJ   = "RETURN_VALUE"
	BREAK_OBJ    = "BREAK"
	ERROR_OBJ    = "ERROR"
)

// Object represents all values in our language
type Object interface {
	Type() ObjectType
	Inspect() string
}

// Integer represents integer objects. Values are never mutated in place, so
// an Integer may be shared between bindings.
type Integer struct {
	Value *big.Int
}

func (i *Integer) Inspect() string  { return i.Value.String() }
func (i *Integer) Type() ObjectType { return INTEGER_OBJ }

// NewInteger creates an integer object from an int64.
func NewInteger(n int64) *Integer {
	return &Integer{Value: big.NewInt(n)}
}

// Null represents the absent value `?`
type Null struct{}

func (n *Null) Inspect() string  { return "?" }
func (n *Null) Type() ObjectType { return NULL_OBJ }

// NULL is the only Null value.
var NULL = &Null{}

// Sequence is an ordered, mutable list of values. A text is a sequence of
// code points with IsText set; the flag is fixed when the sequence is made.
type Sequence struct {
	Elements []Object
	IsText   bool
}

func (s *Sequence) Type() ObjectType { return SEQUENCE_OBJ }

// Inspect renders the sequence as a literal: texts quoted, lists bracketed.
func (s *Sequence) Inspect() string {
	return s.inspect(map[*Sequence]bool{})
}

// inspect renders a sequence that already appears in seen as [...] so a
// sequence appended to itself still prints.
func (s *Sequence) inspect(seen map[*Sequence]bool) string {
	if seen[s] {
		return "[...]"
	}
	if s.IsText {
		return strconv.Quote(s.text(seen))
	}
	seen[s] = true
	defer delete(seen, s)

	elements := make([]string, len(s.Elements))
	for i, e := range s.Elements {
		if inner, ok := e.(*Sequence); ok {
			elements[i] = inner.inspect(seen)
			continue
		}
		elements[i] = e.Inspect()
	}
	return "[" + strings.Join(elements, ", ") + "]"
}

// Text renders the elements as code points. Elements that are not valid
// code points are rendered with Inspect.
func (s *Sequence) Text() string {
	return s.text(map[*Sequence]bool{})
}

func (s *Sequence) text(seen map[*Sequence]bool) string {
	seen[s] = true
	defer delete(seen, s)

	var sb strings.Builder
	for _, e := range s.Elements {
		if i, ok := e.(*Integer); ok && i.Value.IsInt64() {
			if r := rune(i.Value.Int64()); int64(r) == i.Value.Int64() && utf8.ValidRune(r) {
				sb.WriteRune(r)
				continue
			}
		}
		if inner, ok := e.(*Sequence); ok {
			sb.WriteString(inner.inspect(seen))
			continue
		}
		sb.WriteString(e.Inspect())
	}
	return sb.String()
}

// NewText creates a text sequence holding the code points of s.
func NewText(s string) *Sequence {
	elements := make([]Object, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		elements = append(elements, NewInteger(int64(r)))
	}
	return &Sequence{Elements: elements, IsText: true}
}

// NewList creates a list sequence.
func NewList(elements ...Object) *Sequence {
	if elements == nil {
		elements = []Object{}
	}
	return &Sequence{Elements: elements}
}

// Function is a user-defined function. It captures no environment: a call
// sees the names bound at its call site.
type Function struct {
	Name   string // display name, set when first assigned to a name
	Params []string
	Body   *ast.BlockStatement
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string {
	name := f.Name
	if name == "" {
		name = "anonymous"
	}
	return fmt.Sprintf("<function %s(%s)>", name, strings.Join(f.Params, ", "))
}

// ReturnValue carries the value of `e が答え` up to the nearest call.
type ReturnValue struct {
	Value Object
	Node  ast.Node
}

func (rv *ReturnValue) Type() ObjectType { return RETURN_OBJ }
func (rv *ReturnValue) Inspect() string  { return rv.Value.Inspect() }

// BreakSignal carries `くり返しを抜ける` up to the nearest loop.
type BreakSignal struct {
	Node ast.Node
}

func (bs *BreakSignal) Type() ObjectType { return BREAK_OBJ }
func (bs *BreakSignal) Inspect() string  { return "break" }

// Error represents error objects with structured error information.
type Error struct {
	Class    errors.ErrorClass
	Code     string
	Message  string
	Hints    []string
	Line     int
	Column   int
	Offset   int
	LineText string
	Data     map[string]any
	Trace    []string // innermost call first
	Actual   Object   // the value a failed doctest produced
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }
func (e *Error) Inspect() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return "ERROR: " + e.Message
}

// ToKotoError converts this Error to a KotoError for structured error handling.
func (e *Error) ToKotoError() *errors.KotoError {
	class := e.Class
	if class == "" {
		class = errors.ClassType
	}
	kerr := &errors.KotoError{
		Class:    class,
		Code:     e.Code,
		Message:  e.Message,
		Hints:    e.Hints,
		Line:     e.Line,
		Column:   e.Column,
		Offset:   e.Offset,
		LineText: e.LineText,
		Data:     e.Data,
		Trace:    e.Trace,
	}
	if e.Actual != nil {
		kerr.Actual = e.Actual
	}
	return kerr
}

func isError(obj Object) bool {
	if obj != nil {
		return obj.Type() == ERROR_OBJ
	}
	return false
}

// isSignal reports whether obj unwinds the enclosing block.
func isSignal(obj Object) bool {
	if obj == nil {
		return false
	}
	switch obj.Type() {
	case ERROR_OBJ, RETURN_OBJ, BREAK_OBJ:
		return true
	}
	return false
}

// ObjectToPrintString renders a value for output: texts raw, everything
// else as Inspect.
func ObjectToPrintString(obj Object) string {
	if s, ok := obj.(*Sequence); ok && s.IsText {
		return s.Text()
	}
	if obj == nil {
		return NULL.Inspect()
	}
	return obj.Inspect()
}

// typeName names the kind of a value for error messages.
func typeName(obj Object) string {
	switch o := obj.(type) {
	case *Integer:
		return "integer"
	case *Null:
		return "?"
	case *Sequence:
		if o.IsText {
			return "text"
		}
		return "sequence"
	case *Function:
		return "function"
	}
	return strings.ToLower(string(obj.Type()))
}

// describe renders a value for an error message, shortened when long.
func describe(obj Object) string {
	s := obj.Inspect()
	if r := []rune(s); len(r) > 40 {
		s = string(r[:40]) + "…"
	}
	return s
}

// Equal compares two values structurally. Sequences compare element-wise
// regardless of the text flag; functions compare by identity.
func Equal(a, b Object) bool {
	return equal(a, b, map[[2]*Sequence]bool{})
}

func equal(a, b Object, seen map[[2]*Sequence]bool) bool {
	switch av := a.(type) {
	case *Integer:
		bv, ok := b.(*Integer)
		return ok && av.Value.Cmp(bv.Value) == 0
	case *Null:
		_, ok := b.(*Null)
		return ok
	case *Sequence:
		bv, ok := b.(*Sequence)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		pair := [2]*Sequence{av, bv}
		if av == bv || seen[pair] {
			return true
		}
		seen[pair] = true
		for i := range av.Elements {
			if !equal(av.Elements[i], bv.Elements[i], seen) {
				return false
			}
		}
		return true
	case *Function:
		bv, ok := b.(*Function)
		return ok && av == bv
	}
	return false
}
