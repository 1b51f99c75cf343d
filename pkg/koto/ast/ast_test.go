package ast

import "testing"

func TestPositionString(t *testing.T) {
	src := &Source{Name: "t", Text: "合計 = 0\n合計を増やす"}
	p := Position{Source: src, Start: 11, End: len(src.Text)}
	if got := p.String(); got != "合計を増やす" {
		t.Errorf("String() = %q", got)
	}
	d := p.Detail()
	if d.Line != 2 || d.Column != 1 || d.LineText != "合計を増やす" {
		t.Errorf("Detail() = %+v", d)
	}

	if got := (Position{}).String(); got != "" {
		t.Errorf("zero position String() = %q", got)
	}
	if got := (Position{Source: src, Start: 5, End: 2}).String(); got != "" {
		t.Errorf("inverted position String() = %q", got)
	}
}

func TestComparatorSymbol(t *testing.T) {
	tests := []struct {
		c        Comparator
		symbol   string
		ordering bool
	}{
		{CompareEqual, "=", false},
		{CompareNotEqual, "≠", false},
		{CompareGreaterEqual, "≥", true},
		{CompareLessEqual, "≤", true},
		{CompareGreater, ">", true},
		{CompareLess, "<", true},
	}
	for _, tt := range tests {
		if got := tt.c.Symbol(); got != tt.symbol {
			t.Errorf("Symbol() = %q, want %q", got, tt.symbol)
		}
		if got := tt.c.IsOrdering(); got != tt.ordering {
			t.Errorf("%s IsOrdering() = %v", tt.symbol, got)
		}
	}
}

func TestVariableIndices(t *testing.T) {
	bare := &Variable{Name: "a"}
	if !bare.IsBare() || bare.AppendsOnWrite() {
		t.Error("bare variable misclassified")
	}
	appending := &Variable{Name: "a", Indices: []Expression{&IntegerLiteral{}, &NullLiteral{}}}
	if appending.IsBare() || !appending.AppendsOnWrite() {
		t.Error("appending variable misclassified")
	}
	indexed := &Variable{Name: "a", Indices: []Expression{&NullLiteral{}, &IntegerLiteral{}}}
	if indexed.AppendsOnWrite() {
		t.Error("only a terminal ? appends")
	}
}

func TestLoopIsUnbounded(t *testing.T) {
	if !(&LoopStatement{Count: &NullLiteral{}}).IsUnbounded() {
		t.Error("? count should be unbounded")
	}
	if (&LoopStatement{Count: &IntegerLiteral{}}).IsUnbounded() {
		t.Error("integer count should be bounded")
	}
}

func TestFunctionSignature(t *testing.T) {
	fl := &FunctionLiteral{Parameters: []string{"a", "b"}}
	if got := fl.Signature(); got != "a, b" {
		t.Errorf("Signature() = %q", got)
	}
}
