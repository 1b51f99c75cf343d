package format

import (
	"strings"
)

// IndentString is one level of indentation in both dialects.
const IndentString = "    "

// Printer manages output and indentation state
type Printer struct {
	output strings.Builder
	indent int // Current indentation level
}

// NewPrinter creates a Printer starting at the given indentation level
func NewPrinter(indent int) *Printer {
	return &Printer{indent: max(indent, 0)}
}

// String returns the output so far
func (p *Printer) String() string {
	return p.output.String()
}

// line writes s as one indented line
func (p *Printer) line(s string) {
	p.output.WriteString(indentation(p.indent))
	p.output.WriteString(s)
	p.output.WriteByte('\n')
}

func (p *Printer) indentInc() {
	p.indent++
}

func (p *Printer) indentDec() {
	if p.indent > 0 {
		p.indent--
	}
}

func indentation(level int) string {
	return strings.Repeat(IndentString, level)
}
