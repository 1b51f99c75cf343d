package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sambeau/koto/pkg/koto/evaluator"
	"github.com/sambeau/koto/pkg/koto/seed"
)

func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"x = 1", false},
		{"3 回くり返す {", true},
		{"3 回くり返す {\n  x を増やす\n}", false},
		{"3 回くり返す ｛", true},
		{"a = [1,", true},
		{"f(1,", true},
		{`x = "{"`, false},
		{`x = "\"{"`, false},
		{"x = 1 # {", false},
		{">>> x", true},
		{">>> x\n1", false},
		{"もし x が 1 ならば {\n  y = 1\n} そうでなければ {", true},
	}
	for _, tt := range tests {
		if got := needsMoreInput(tt.input); got != tt.want {
			t.Errorf("needsMoreInput(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFilterCompletions(t *testing.T) {
	names := []string{"合計", "合格者"}
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"x ", nil},
		{"もし x が 5 以", []string{"もし x が 5 以上", "もし x が 5 以下", "もし x が 5 以外"}},
		{"合", []string{"合格者", "合計"}},
		{"合計を増", []string{"合計を増やす"}},
		{":em", []string{":emit"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		got := filterCompletions(tt.line, names)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("filterCompletions(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func newSession(t *testing.T, opts Options) (*Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s, err := NewSession(&out, opts)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s, &out
}

func TestSessionKeepsEnvironment(t *testing.T) {
	s, out := newSession(t, Options{})
	s.Eval(context.Background(), "x = 1")
	s.Eval(context.Background(), "x を増やす")
	s.Eval(context.Background(), "x")

	if out.String() != "2\n" {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	s.Command(":stats")
	if !strings.Contains(out.String(), "increments: 0") {
		t.Errorf("stats after a plain read = %q", out.String())
	}
}

func TestSessionErrors(t *testing.T) {
	s, out := newSession(t, Options{})
	s.Eval(context.Background(), "y を増やす")
	if !strings.Contains(out.String(), "Runtime error") || !strings.Contains(out.String(), "^") {
		t.Errorf("runtime error output = %q", out.String())
	}

	out.Reset()
	s.Eval(context.Background(), "x = 1.5")
	if !strings.Contains(out.String(), "Parser error") {
		t.Errorf("parse error output = %q", out.String())
	}
}

func TestSessionCommands(t *testing.T) {
	s, out := newSession(t, Options{Seed: seed.Values{"点数": evaluator.NewList(evaluator.NewInteger(80))}})

	s.Command(":env")
	if !strings.Contains(out.String(), "点数 = [80]") {
		t.Errorf(":env = %q", out.String())
	}

	s.Eval(context.Background(), "x = 0\n3 回くり返す {\n  x を増やす\n}")
	out.Reset()
	s.Command(":stats")
	if !strings.Contains(out.String(), "increments: 3") {
		t.Errorf(":stats = %q", out.String())
	}

	out.Reset()
	s.Command(":emit py")
	want := "x = 0\nfor _ in range(3):\n    x += 1\n"
	if out.String() != want {
		t.Errorf(":emit py = %q, want %q", out.String(), want)
	}

	out.Reset()
	s.Command(":emit ruby")
	if !strings.Contains(out.String(), "unknown dialect") {
		t.Errorf(":emit ruby = %q", out.String())
	}

	out.Reset()
	s.Command(":clear")
	if s.Env().Has("x") || !s.Env().Has("点数") {
		t.Errorf("after :clear names = %v", s.Env().Names())
	}

	out.Reset()
	s.Command(":nope")
	if !strings.Contains(out.String(), "Unknown command") {
		t.Errorf(":nope = %q", out.String())
	}

	if s.Command(":help") {
		t.Error(":help should not quit")
	}
	if !s.Command(":quit") {
		t.Error(":quit should quit")
	}
}

func TestSessionRejectsBadSeed(t *testing.T) {
	var out bytes.Buffer
	if _, err := NewSession(&out, Options{Seed: seed.Values{"1x": evaluator.NULL}}); err == nil {
		t.Error("expected error for invalid seed name")
	}
}
