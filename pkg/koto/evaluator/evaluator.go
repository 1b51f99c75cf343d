// Package evaluator runs Koto programs by walking the AST.
//
// Errors and control flow are ordinary return values: Eval returns an *Error,
// a *ReturnValue or a *BreakSignal, and blocks, loops and calls unwind them
// explicitly.
package evaluator

import (
	"math"
	"math/big"

	"github.com/sambeau/koto/pkg/koto/ast"
)

// EvalProgram runs every top-level statement of program against env, which
// is mutated in place. It returns the first error, or nil.
func EvalProgram(program *ast.Program, rt *Runtime, env *Environment) *Error {
	for _, stmt := range program.Statements {
		switch result := Eval(stmt, rt, env).(type) {
		case *Error:
			return result
		case *ReturnValue:
			return rt.newError(result.Node, "STATE-0001", nil)
		case *BreakSignal:
			return rt.newError(result.Node, "STATE-0002", nil)
		}
	}
	return nil
}

// Eval evaluates one node.
func Eval(node ast.Node, rt *Runtime, env *Environment) Object {
	switch node := node.(type) {

	// Statements
	case *ast.Program:
		if err := EvalProgram(node, rt, env); err != nil {
			return err
		}
		return NULL

	case *ast.BlockStatement:
		return evalBlockStatement(node, rt, env)

	case *ast.AssignmentStatement:
		return evalAssignment(node, rt, env)

	case *ast.AppendStatement:
		return evalAppend(node, rt, env)

	case *ast.IncrementStatement:
		return evalStep(node, node.Target, 1, rt, env)

	case *ast.DecrementStatement:
		return evalStep(node, node.Target, -1, rt, env)

	case *ast.IfStatement:
		return evalIfStatement(node, rt, env)

	case *ast.LoopStatement:
		return evalLoopStatement(node, rt, env)

	case *ast.BreakStatement:
		return &BreakSignal{Node: node}

	case *ast.ReturnStatement:
		val := Eval(node.Value, rt, env)
		if isError(val) {
			return val
		}
		return &ReturnValue{Value: val, Node: node}

	case *ast.ExpressionStatement:
		val := Eval(node.Expression, rt, env)
		if isError(val) {
			return val
		}
		rt.log(val)
		return NULL

	case *ast.DocTestStatement:
		return evalDocTest(node, rt, env)

	// Expressions
	case *ast.IntegerLiteral:
		return &Integer{Value: node.Value}

	case *ast.NullLiteral:
		return NULL

	case *ast.TextLiteral:
		if node.HasIndex {
			return NewInteger(int64([]rune(node.Value)[node.Index]))
		}
		return NewText(node.Value)

	case *ast.SequenceLiteral:
		elements := make([]Object, 0, len(node.Elements))
		for _, e := range node.Elements {
			val := Eval(e, rt, env)
			if isError(val) {
				return val
			}
			elements = append(elements, val)
		}
		return NewList(elements...)

	case *ast.Variable:
		p, err := resolvePlace(node, false, rt, env)
		if err != nil {
			return err
		}
		return p.get(env)

	case *ast.FunctionLiteral:
		return &Function{Params: node.Parameters, Body: node.Body}

	case *ast.CallExpression:
		return evalCall(node, rt, env)

	case *ast.NegateExpression:
		val := Eval(node.Operand, rt, env)
		if isError(val) {
			return val
		}
		i, ok := val.(*Integer)
		if !ok {
			return rt.newError(node, "TYPE-0003", map[string]any{"Got": describe(val)})
		}
		return &Integer{Value: new(big.Int).Neg(i.Value)}

	case *ast.LengthExpression:
		val := Eval(node.Operand, rt, env)
		if isError(val) {
			return val
		}
		s, ok := val.(*Sequence)
		if !ok {
			return rt.newError(node, "TYPE-0004", map[string]any{"Got": describe(val)})
		}
		return NewInteger(int64(len(s.Elements)))
	}

	return nil
}

func evalBlockStatement(block *ast.BlockStatement, rt *Runtime, env *Environment) Object {
	for _, stmt := range block.Statements {
		result := Eval(stmt, rt, env)
		if isSignal(result) {
			return result
		}
	}
	return NULL
}

func evalAssignment(node *ast.AssignmentStatement, rt *Runtime, env *Environment) Object {
	val := Eval(node.Value, rt, env)
	if isError(val) {
		return val
	}

	target := node.Target
	if target.IsBare() {
		if fn, ok := val.(*Function); ok && fn.Name == "" {
			named := *fn
			named.Name = target.Name
			val = &named
		}
		if !env.Has(target.Name) {
			env.Set(target.Name, NewInteger(0))
		}
		env.Set(target.Name, val)
		return NULL
	}

	p, err := resolvePlace(target, true, rt, env)
	if err != nil {
		return err
	}
	p.set(env, val)
	return NULL
}

func evalAppend(node *ast.AppendStatement, rt *Runtime, env *Environment) Object {
	target := Eval(node.Target, rt, env)
	if isError(target) {
		return target
	}
	seq, ok := target.(*Sequence)
	if !ok {
		return rt.newError(node, "TYPE-0007", map[string]any{"Got": describe(target)})
	}

	val := Eval(node.Value, rt, env)
	if isError(val) {
		return val
	}
	seq.Elements = append(seq.Elements, val)
	return NULL
}

// evalStep adds delta to the integer held by target.
func evalStep(node ast.Node, target *ast.Variable, delta int64, rt *Runtime, env *Environment) Object {
	p, err := resolvePlace(target, false, rt, env)
	if err != nil {
		return err
	}

	current, ok := p.get(env).(*Integer)
	if !ok {
		code := "TYPE-0001"
		if delta < 0 {
			code = "TYPE-0002"
		}
		return rt.newError(node, code, map[string]any{"Got": describe(p.get(env))})
	}

	p.set(env, &Integer{Value: new(big.Int).Add(current.Value, big.NewInt(delta))})
	if delta > 0 {
		rt.Increments++
	} else {
		rt.Decrements++
	}
	return NULL
}

func evalIfStatement(node *ast.IfStatement, rt *Runtime, env *Environment) Object {
	left := Eval(node.Left, rt, env)
	if isError(left) {
		return left
	}
	right := Eval(node.Right, rt, env)
	if isError(right) {
		return right
	}

	holds, err := compare(node, left, right, rt)
	if err != nil {
		return err
	}
	rt.Comparisons++

	if holds {
		return evalBlockStatement(node.Consequence, rt, env)
	}
	if node.Alternative != nil {
		return evalBlockStatement(node.Alternative, rt, env)
	}
	return NULL
}

// compare applies the comparator. Equality is structural on any values;
// ordering needs two integers.
func compare(node *ast.IfStatement, left, right Object, rt *Runtime) (bool, *Error) {
	switch node.Comparator {
	case ast.CompareEqual:
		return Equal(left, right), nil
	case ast.CompareNotEqual:
		return !Equal(left, right), nil
	}

	l, lok := left.(*Integer)
	r, rok := right.(*Integer)
	if !lok || !rok {
		return false, rt.newError(node, "TYPE-0009", map[string]any{
			"Left":     typeName(left),
			"Right":    typeName(right),
			"Operator": node.Comparator.Symbol(),
		})
	}

	c := l.Value.Cmp(r.Value)
	switch node.Comparator {
	case ast.CompareGreaterEqual:
		return c >= 0, nil
	case ast.CompareLessEqual:
		return c <= 0, nil
	case ast.CompareGreater:
		return c > 0, nil
	default:
		return c < 0, nil
	}
}

func evalLoopStatement(node *ast.LoopStatement, rt *Runtime, env *Environment) Object {
	count := Eval(node.Count, rt, env)
	if isError(count) {
		return count
	}

	var limit int64
	unbounded := false
	switch c := count.(type) {
	case *Null:
		unbounded = true
	case *Integer:
		if c.Value.Sign() < 0 {
			return rt.newError(node, "LOOP-0001", map[string]any{"Count": c.Inspect()})
		}
		limit = math.MaxInt64
		if c.Value.IsInt64() {
			limit = c.Value.Int64()
		}
	default:
		return rt.newError(node, "LOOP-0002", map[string]any{"Got": typeName(count)})
	}

	for i := int64(0); unbounded || i < limit; i++ {
		if err := rt.CheckExecution(node); err != nil {
			return err
		}

		switch result := evalBlockStatement(node.Body, rt, env).(type) {
		case *Error, *ReturnValue:
			return result
		case *BreakSignal:
			return NULL
		}
	}
	return NULL
}

func evalDocTest(node *ast.DocTestStatement, rt *Runtime, env *Environment) Object {
	actual := Eval(node.Expression, rt, env)
	if isError(actual) {
		return actual
	}
	expected := Eval(node.Expected, rt, env)
	if isError(expected) {
		return expected
	}

	if !Equal(actual, expected) {
		err := rt.newError(node, "ASSERT-0001", map[string]any{
			"Expected": describe(expected),
			"Actual":   describe(actual),
		})
		err.Actual = actual
		return err
	}
	return NULL
}

func evalCall(node *ast.CallExpression, rt *Runtime, env *Environment) Object {
	callee, ok := env.Get(node.Function)
	if !ok {
		return rt.newUndefinedError(node, "UNDEF-0002", node.Function, env)
	}
	fn, ok := callee.(*Function)
	if !ok {
		return rt.newError(node, "TYPE-0008", map[string]any{"Got": describe(callee)})
	}
	if len(node.Arguments) != len(fn.Params) {
		return rt.newError(node, "ARITY-0001", map[string]any{
			"Function": node.Function,
			"Want":     len(fn.Params),
			"Got":      len(node.Arguments),
		})
	}

	args := make([]Object, len(node.Arguments))
	for i, a := range node.Arguments {
		val := Eval(a, rt, env)
		if isError(val) {
			return val
		}
		args[i] = val
	}

	if rt.Depth() >= rt.maxDepth() {
		return rt.newError(node, "STATE-0003", map[string]any{
			"Max":      rt.maxDepth(),
			"Function": node.Function,
		})
	}

	callEnv := env.Copy()
	for i, name := range fn.Params {
		callEnv.Set(name, args[i])
	}

	rt.pushFrame(Frame{Name: node.Function, Args: args, Pos: node.Pos()})
	result := evalBlockStatement(fn.Body, rt, callEnv)
	var breakErr *Error
	if b, ok := result.(*BreakSignal); ok {
		breakErr = rt.newError(b.Node, "STATE-0002", nil)
	}
	rt.popFrame()
	callEnv.Release()

	switch result := result.(type) {
	case *Error:
		return result
	case *ReturnValue:
		return result.Value
	case *BreakSignal:
		return breakErr
	}
	return NULL
}
