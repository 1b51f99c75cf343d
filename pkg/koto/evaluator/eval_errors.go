package evaluator

import (
	"github.com/sambeau/koto/pkg/koto/ast"
	"github.com/sambeau/koto/pkg/koto/errors"
)

// newError creates a catalog error located at node, with the active calls
// as its trace.
func (rt *Runtime) newError(node ast.Node, code string, data map[string]any) *Error {
	return rt.fromKotoError(node, errors.New(code, data))
}

// newUndefinedError creates an undefined-name error with a "did you mean"
// hint drawn from the names bound in env.
func (rt *Runtime) newUndefinedError(node ast.Node, code, name string, env *Environment) *Error {
	return rt.fromKotoError(node, errors.NewUndefinedName(code, name, env.Names()))
}

func (rt *Runtime) fromKotoError(node ast.Node, kerr *errors.KotoError) *Error {
	err := &Error{
		Class:   kerr.Class,
		Code:    kerr.Code,
		Message: kerr.Message,
		Hints:   kerr.Hints,
		Data:    kerr.Data,
		Trace:   rt.trace(),
	}
	if node != nil {
		d := node.Pos().Detail()
		err.Line = d.Line
		err.Column = d.Column
		err.Offset = d.Offset
		err.LineText = d.LineText
	}
	return err
}
