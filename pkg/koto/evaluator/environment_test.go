package evaluator

import (
	"strings"
	"testing"
)

func TestEnvironmentCopyOnWrite(t *testing.T) {
	env := NewEnvironment()
	env.Set("x", NewInteger(1))
	seq := NewList(NewInteger(1))
	env.Set("a", seq)

	copied := env.Copy()
	copied.Set("x", NewInteger(2))
	copied.Set("y", NewInteger(3))

	if got, _ := env.Get("x"); got.Inspect() != "1" {
		t.Errorf("original x = %s, want 1", got.Inspect())
	}
	if env.Has("y") {
		t.Error("y leaked into the original")
	}

	env.Set("z", NewInteger(4))
	if copied.Has("z") {
		t.Error("z leaked into the copy")
	}

	shared, _ := copied.Get("a")
	shared.(*Sequence).Elements = append(shared.(*Sequence).Elements, NewInteger(2))
	if seq.Inspect() != "[1, 2]" {
		t.Errorf("sequence not shared: %s", seq.Inspect())
	}
}

func TestEnvironmentRelease(t *testing.T) {
	env := NewEnvironment()
	env.Set("x", NewInteger(1))
	table := env.b

	copied := env.Copy()
	copied.Release()

	env.Set("x", NewInteger(2))
	if env.b != table {
		t.Error("write after release should not clone the table")
	}
}

func TestEnvironmentNames(t *testing.T) {
	env := NewEnvironment()
	for _, name := range []string{"b", "a", "合計"} {
		env.Set(name, NULL)
	}
	if got := strings.Join(env.Names(), ","); got != "a,b,合計" {
		t.Errorf("Names() = %s", got)
	}
	env.Delete("b")
	if env.Len() != 2 || env.Has("b") {
		t.Errorf("Delete failed: %v", env.Names())
	}
}

func TestObjectInspect(t *testing.T) {
	tests := []struct {
		obj      Object
		inspect  string
		printed  string
		typeName string
	}{
		{NewInteger(-3), "-3", "-3", "integer"},
		{NULL, "?", "?", "?"},
		{NewText("あ\"い"), `"あ\"い"`, `あ"い`, "text"},
		{NewList(NewInteger(1), NewText("x")), `[1, "x"]`, `[1, "x"]`, "sequence"},
		{NewList(), "[]", "[]", "sequence"},
		{&Function{Name: "f", Params: []string{"a"}}, "<function f(a)>", "<function f(a)>", "function"},
		{&Function{}, "<function anonymous()>", "<function anonymous()>", "function"},
	}
	for _, tt := range tests {
		if got := tt.obj.Inspect(); got != tt.inspect {
			t.Errorf("Inspect() = %q, want %q", got, tt.inspect)
		}
		if got := ObjectToPrintString(tt.obj); got != tt.printed {
			t.Errorf("ObjectToPrintString() = %q, want %q", got, tt.printed)
		}
		if got := typeName(tt.obj); got != tt.typeName {
			t.Errorf("typeName() = %q, want %q", got, tt.typeName)
		}
	}
}

func TestEqual(t *testing.T) {
	fn := &Function{Name: "f"}
	tests := []struct {
		a, b  Object
		equal bool
	}{
		{NewInteger(1), NewInteger(1), true},
		{NewInteger(1), NewInteger(2), false},
		{NULL, NULL, true},
		{NULL, NewInteger(0), false},
		{NewText("ab"), NewList(NewInteger('a'), NewInteger('b')), true},
		{NewList(NewList()), NewList(NewList()), true},
		{NewList(NewInteger(1)), NewList(NewInteger(1), NewInteger(2)), false},
		{fn, fn, true},
		{fn, &Function{Name: "f"}, false},
	}
	for i, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.equal {
			t.Errorf("%d: Equal(%s, %s) = %v", i, tt.a.Inspect(), tt.b.Inspect(), got)
		}
	}
}

func TestTextWithNonCodePoint(t *testing.T) {
	text := NewText("a")
	text.Elements = append(text.Elements, NewList(NewInteger(1)))
	if got := text.Text(); got != "a[1]" {
		t.Errorf("Text() = %q", got)
	}
}
