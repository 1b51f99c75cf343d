// Package errors provides structured error types for the Koto language.
//
// KotoError is the single error type raised by the parser and the evaluator.
// It carries a class for programmatic handling, a catalog code, a rendered
// message and the source location of the offending node.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse     ErrorClass = "parse"     // Malformed source
	ClassType      ErrorClass = "type"      // Operation applied to the wrong kind of value
	ClassArity     ErrorClass = "arity"     // Wrong argument count
	ClassUndefined ErrorClass = "undefined" // Unknown variable or function
	ClassIndex     ErrorClass = "index"     // Index outside [0, length)
	ClassLoop      ErrorClass = "loop"      // Negative or non-scalar repeat count
	ClassTimeout   ErrorClass = "timeout"   // Execution budget exhausted
	ClassStopped   ErrorClass = "stopped"   // Stopped from outside
	ClassAssertion ErrorClass = "assertion" // Doctest mismatch
	ClassState     ErrorClass = "state"     // Escaped control signal, recursion limit
)

// KotoError represents any error from parsing or evaluation.
type KotoError struct {
	Class    ErrorClass     `json:"class"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Hints    []string       `json:"hints,omitempty"`
	Line     int            `json:"line"`   // 1-based line (0 if unknown)
	Column   int            `json:"column"` // 1-based column in runes (0 if unknown)
	Offset   int            `json:"offset"` // byte offset into the normalized source
	LineText string         `json:"line_text,omitempty"`
	File     string         `json:"file,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Trace    []string       `json:"trace,omitempty"` // active calls, innermost first

	// Actual is the value a failed doctest produced, as an evaluator value.
	Actual any `json:"-"`
}

// Error implements the error interface.
func (e *KotoError) Error() string {
	return e.String()
}

// String returns a single-line location prefix followed by the message and hints.
func (e *KotoError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line string for terminal display.
func (e *KotoError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassParse:
		sb.WriteString("Parser error")
	default:
		sb.WriteString("Runtime error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for i, hint := range e.Hints {
		sb.WriteString("\n  ")
		if i == 0 {
			sb.WriteString("hint: ")
		} else {
			sb.WriteString("  or: ")
		}
		sb.WriteString(hint)
	}

	for _, call := range e.Trace {
		sb.WriteString("\n  in ")
		sb.WriteString(call)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *KotoError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *KotoError) WithFile(file string) *KotoError {
	copy := *e
	copy.File = file
	return &copy
}

// WithDetail returns a copy of the error located at the given detail.
func (e *KotoError) WithDetail(d Detail) *KotoError {
	copy := *e
	copy.Line = d.Line
	copy.Column = d.Column
	copy.Offset = d.Offset
	copy.LineText = d.LineText
	return &copy
}

// Detail returns the location of the error.
func (e *KotoError) Detail() Detail {
	return Detail{
		Line:     e.Line,
		Column:   e.Column,
		LineText: e.LineText,
		Offset:   e.Offset,
	}
}

// IsParseError returns true if this is a parser error.
func (e *KotoError) IsParseError() bool {
	return e.Class == ClassParse
}

// Is lets errors.Is match on class: errors.Is(err, &KotoError{Class: ClassTimeout}).
func (e *KotoError) Is(target error) bool {
	t, ok := target.(*KotoError)
	if !ok {
		return false
	}
	return t.Class == e.Class && (t.Code == "" || t.Code == e.Code)
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Parse errors
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unrecognized statement",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "infix operators are not supported: '{{.Operator}}'",
		Hints:    []string{"use a function that returns the result instead"},
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "fractional numbers are not supported",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "unclosed text literal",
		Hints:    []string{`close the text with "`},
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "duplicate parameter name '{{.Name}}'",
	},
	"PARSE-0007": {
		Class:    ClassParse,
		Template: "unclosed block",
		Hints:    []string{"add a closing }"},
	},
	"PARSE-0008": {
		Class:    ClassParse,
		Template: "unexpected text after statement: '{{.Got}}'",
	},
	"PARSE-0009": {
		Class:    ClassParse,
		Template: "text index {{.Index}} out of range for a text of length {{.Length}}",
	},
	"PARSE-0010": {
		Class:    ClassParse,
		Template: "parameter name '{{.Name}}' cannot be referenced in the body",
		Hints:    []string{"names end at particles and keywords such as が, を, 回 and 以上; rename the parameter"},
	},

	// Undefined
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "undefined name: {{.Name}}",
	},
	"UNDEF-0002": {
		Class:    ClassUndefined,
		Template: "undefined function: {{.Name}}",
	},

	// Arity
	"ARITY-0001": {
		Class:    ClassArity,
		Template: "`{{.Function}}` expects {{.Want}} argument(s), got {{.Got}}",
	},

	// Type
	"TYPE-0001": {
		Class:    ClassType,
		Template: "cannot increment {{.Got}}, it is not an integer",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "cannot decrement {{.Got}}, it is not an integer",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "cannot negate {{.Got}}, it is not an integer",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "cannot take the length of {{.Got}}, it is not a sequence",
	},
	"TYPE-0005": {
		Class:    ClassType,
		Template: "cannot index {{.Got}}, it is not a sequence",
	},
	"TYPE-0006": {
		Class:    ClassType,
		Template: "index must be an integer, got {{.Got}}",
	},
	"TYPE-0007": {
		Class:    ClassType,
		Template: "cannot append to {{.Got}}, it is not a sequence",
	},
	"TYPE-0008": {
		Class:    ClassType,
		Template: "cannot call {{.Got}} as a function",
	},
	"TYPE-0009": {
		Class:    ClassType,
		Template: "cannot compare {{.Left}} with {{.Right}} using {{.Operator}}",
		Hints:    []string{"only integers can be ordered"},
	},

	// Index
	"INDEX-0001": {
		Class:    ClassIndex,
		Template: "index {{.Index}} out of range [0, {{.Max}}]",
	},
	"INDEX-0002": {
		Class:    ClassIndex,
		Template: "index {{.Index}} out of range: the sequence is empty",
	},

	// Loop
	"LOOP-0001": {
		Class:    ClassLoop,
		Template: "repeat count must not be negative, got {{.Count}}",
	},
	"LOOP-0002": {
		Class:    ClassLoop,
		Template: "repeat count must be an integer or ?, got {{.Got}}",
	},

	// Cancellation
	"TIME-0001": {
		Class:    ClassTimeout,
		Template: "execution timed out after {{.Budget}}",
		Hints:    []string{"check that every unbounded loop can reach くり返しを抜ける"},
	},
	"STOP-0001": {
		Class:    ClassStopped,
		Template: "execution stopped",
	},

	// Assertion
	"ASSERT-0001": {
		Class:    ClassAssertion,
		Template: "doctest failed: expected {{.Expected}}, got {{.Actual}}",
	},

	// State
	"STATE-0001": {
		Class:    ClassState,
		Template: "が答え used outside of a function",
	},
	"STATE-0002": {
		Class:    ClassState,
		Template: "くり返しを抜ける used outside of a loop",
	},
	"STATE-0003": {
		Class:    ClassState,
		Template: "call depth exceeded {{.Max}} in {{.Function}}",
		Hints:    []string{"check that the recursion reaches a case that answers without calling itself"},
	},
}

// New creates a KotoError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *KotoError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &KotoError{
			Class:   ClassType,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &KotoError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewAt creates a catalog error located at the given detail.
func NewAt(code string, d Detail, data map[string]any) *KotoError {
	err := New(code, data)
	err.Line = d.Line
	err.Column = d.Column
	err.Offset = d.Offset
	err.LineText = d.LineText
	return err
}

// NewSimple creates an error without using the catalog.
func NewSimple(class ErrorClass, message string) *KotoError {
	return &KotoError{
		Class:   class,
		Message: message,
	}
}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings, counted in runes.
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// FindClosestMatch finds the closest candidate within an edit-distance threshold
// that grows with the input length. Returns "" when nothing is close enough.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	in := []rune(strings.ToLower(input))

	// Stable choice between equally distant candidates.
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	var bestMatch string
	bestDistance := -1
	for _, candidate := range sorted {
		dist := levenshteinDistance(in, []rune(strings.ToLower(candidate)))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	threshold := 1
	if len(in) >= 4 && len(in) <= 6 {
		threshold = 2
	} else if len(in) >= 7 {
		threshold = 3
	}

	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}
	return bestMatch
}

// NewUndefinedName creates an undefined-name error with a "did you mean" hint.
func NewUndefinedName(code, name string, available []string) *KotoError {
	err := New(code, map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, available); suggestion != "" {
		err.Hints = append(err.Hints, "did you mean `"+suggestion+"`?")
	}
	return err
}
