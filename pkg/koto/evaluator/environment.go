package evaluator

import (
	"maps"
	"sort"
)

// bindings is a name table shared by environments until one of them writes.
type bindings struct {
	values map[string]Object
	refs   int
}

// Environment maps names to values.
//
// Copy is O(1): the copy shares the original's table and whichever side
// writes first takes a private clone. Bindings therefore copy by value while
// the sequences they hold stay shared by reference. An Environment belongs to
// one evaluation and is not safe for concurrent use.
type Environment struct {
	b *bindings
}

// NewEnvironment creates a new, empty environment
func NewEnvironment() *Environment {
	return &Environment{b: &bindings{values: make(map[string]Object), refs: 1}}
}

// Get retrieves a value from the environment
func (e *Environment) Get(name string) (Object, bool) {
	value, ok := e.b.values[name]
	return value, ok
}

// Has reports whether name is bound.
func (e *Environment) Has(name string) bool {
	_, ok := e.b.values[name]
	return ok
}

// Set stores a value in the environment
func (e *Environment) Set(name string, val Object) Object {
	e.own()
	e.b.values[name] = val
	return val
}

// Delete removes a binding.
func (e *Environment) Delete(name string) {
	if !e.Has(name) {
		return
	}
	e.own()
	delete(e.b.values, name)
}

// Copy returns an environment with the same bindings.
func (e *Environment) Copy() *Environment {
	e.b.refs++
	return &Environment{b: e.b}
}

// Release gives up this environment's share of its table, so the environment
// it was copied from can write without cloning. The environment must not be
// used afterwards.
func (e *Environment) Release() {
	if e.b == nil {
		return
	}
	e.b.refs--
	e.b = nil
}

// own makes the table private before a write.
func (e *Environment) own() {
	if e.b.refs <= 1 {
		return
	}
	e.b.refs--
	e.b = &bindings{values: maps.Clone(e.b.values), refs: 1}
}

// Names returns the bound names in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.b.values))
	for name := range e.b.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bindings.
func (e *Environment) Len() int {
	return len(e.b.values)
}
