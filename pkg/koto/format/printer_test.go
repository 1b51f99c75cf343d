package format

import "testing"

func TestPrinterIndentation(t *testing.T) {
	p := NewPrinter(1)
	p.line("a")
	p.indentInc()
	p.line("b")
	p.indentDec()
	p.indentDec()
	p.indentDec()
	p.line("c")

	want := "    a\n        b\nc\n"
	if got := p.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestNewPrinterClampsNegativeIndent(t *testing.T) {
	p := NewPrinter(-2)
	p.line("x")
	if got := p.String(); got != "x\n" {
		t.Errorf("output = %q", got)
	}
}
