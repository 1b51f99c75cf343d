// Package format translates Koto programs into JavaScript-like (J) and
// Python-like (P) source text. Emission never evaluates the program.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/koto/pkg/koto/ast"
)

// Dialect selects the output surface syntax.
type Dialect string

const (
	DialectJ Dialect = "js"
	DialectP Dialect = "py"
)

// ParseDialect accepts "js"/"j"/"javascript" and "py"/"p"/"python".
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "js", "j", "javascript":
		return DialectJ, nil
	case "py", "p", "python":
		return DialectP, nil
	}
	return "", fmt.Errorf("unknown dialect %q (want js or py)", name)
}

// Emit renders prog in the given dialect, starting at indent levels. The
// output is deterministic: emitting the same program twice gives identical
// text.
func Emit(prog *ast.Program, dialect Dialect, indent int) string {
	if prog == nil {
		return ""
	}
	e := &emitter{dialect: dialect, p: NewPrinter(indent)}
	e.statements(prog.Statements)

	if e.usesRandom && dialect == DialectP {
		header := indentation(max(indent, 0)) + "import random\n"
		if len(prog.Statements) > 0 {
			header += "\n"
		}
		return header + e.p.String()
	}
	return e.p.String()
}

type emitter struct {
	dialect    Dialect
	p          *Printer
	loopDepth  int
	lambdas    int
	usesRandom bool
}

func (e *emitter) js() bool { return e.dialect == DialectJ }

// stmt terminates a J statement with a semicolon.
func (e *emitter) stmt(s string) {
	if e.js() {
		s += ";"
	}
	e.p.line(s)
}

func (e *emitter) statements(stmts []ast.Statement) {
	for _, s := range stmts {
		e.statement(s)
	}
}

// block writes the body of a braced or indented block at one deeper level.
// In P an empty block becomes `pass`.
func (e *emitter) block(b *ast.BlockStatement) {
	e.p.indentInc()
	if b == nil || len(b.Statements) == 0 {
		if !e.js() {
			e.p.line("pass")
		}
	} else {
		e.statements(b.Statements)
	}
	e.p.indentDec()
}

// Expressions are rendered before the line that holds them is started, so
// that P can place hoisted lambda definitions above the statement.
func (e *emitter) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.AssignmentStatement:
		e.assignment(s)

	case *ast.AppendStatement:
		target := e.variable(s.Target, false)
		value := e.expr(s.Value)
		e.stmt(e.appendCall(target, value))

	case *ast.IncrementStatement:
		e.stmt(e.variable(s.Target, true) + " += 1")

	case *ast.DecrementStatement:
		e.stmt(e.variable(s.Target, true) + " -= 1")

	case *ast.IfStatement:
		cond := e.expr(s.Left) + " " + e.comparator(s.Comparator) + " " + e.expr(s.Right)
		if e.js() {
			e.p.line("if (" + cond + ") {")
			e.block(s.Consequence)
			if s.Alternative != nil {
				e.p.line("} else {")
				e.block(s.Alternative)
			}
			e.p.line("}")
			return
		}
		e.p.line("if " + cond + ":")
		e.block(s.Consequence)
		if s.Alternative != nil {
			e.p.line("else:")
			e.block(s.Alternative)
		}

	case *ast.LoopStatement:
		e.loop(s)

	case *ast.BreakStatement:
		e.stmt("break")

	case *ast.ReturnStatement:
		e.stmt("return " + e.expr(s.Value))

	case *ast.ExpressionStatement:
		value := e.expr(s.Expression)
		if e.js() {
			e.stmt("console.log(" + value + ")")
		} else {
			e.stmt("print(" + value + ")")
		}

	case *ast.DocTestStatement:
		actual := e.expr(s.Expression)
		expected := e.expr(s.Expected)
		if e.js() {
			e.stmt("console.assert(JSON.stringify(" + actual + ") === JSON.stringify(" + expected + "))")
		} else {
			e.stmt("assert " + actual + " == " + expected)
		}

	case *ast.BlockStatement:
		e.statements(s.Statements)
	}
}

func (e *emitter) assignment(s *ast.AssignmentStatement) {
	if fn, ok := s.Value.(*ast.FunctionLiteral); ok && s.Target.IsBare() {
		if e.js() {
			e.p.line("function " + s.Target.Name + "(" + fn.Signature() + ") {")
			e.block(fn.Body)
			e.p.line("}")
		} else {
			e.p.line("def " + s.Target.Name + "(" + fn.Signature() + "):")
			e.block(fn.Body)
		}
		return
	}

	if s.Target.AppendsOnWrite() {
		base := &ast.Variable{Position: s.Target.Position, Name: s.Target.Name, Indices: s.Target.Indices[:len(s.Target.Indices)-1]}
		target := e.variable(base, false)
		value := e.expr(s.Value)
		e.stmt(e.appendCall(target, value))
		return
	}

	target := e.variable(s.Target, true)
	value := e.expr(s.Value)
	e.stmt(target + " = " + value)
}

func (e *emitter) appendCall(target, value string) string {
	if e.js() {
		return target + ".push(" + value + ")"
	}
	return target + ".append(" + value + ")"
}

func (e *emitter) loop(s *ast.LoopStatement) {
	if s.IsUnbounded() {
		if e.js() {
			e.p.line("while (true) {")
		} else {
			e.p.line("while True:")
		}
	} else {
		count := e.expr(s.Count)
		if e.js() {
			v := loopVariable(e.loopDepth)
			if _, literal := s.Count.(*ast.IntegerLiteral); literal {
				e.p.line(fmt.Sprintf("for (let %s = 0; %s < %s; %s++) {", v, v, count, v))
			} else {
				// the count is evaluated once, before the first iteration
				end := v + "End"
				e.p.line(fmt.Sprintf("for (let %s = 0, %s = %s; %s < %s; %s++) {", v, end, count, v, end, v))
			}
		} else {
			e.p.line("for _ in range(" + count + "):")
		}
	}

	e.loopDepth++
	e.block(s.Body)
	e.loopDepth--

	if e.js() {
		e.p.line("}")
	}
}

// loopVariable names the J counter for a loop nested depth levels deep:
// i, j, k, then i3, i4, ...
func loopVariable(depth int) string {
	if depth < 3 {
		return string("ijk"[depth])
	}
	return "i" + strconv.Itoa(depth)
}

func (e *emitter) comparator(c ast.Comparator) string {
	switch c {
	case ast.CompareEqual:
		if e.js() {
			return "==="
		}
		return "=="
	case ast.CompareNotEqual:
		if e.js() {
			return "!=="
		}
		return "!="
	case ast.CompareGreaterEqual:
		return ">="
	case ast.CompareLessEqual:
		return "<="
	case ast.CompareGreater:
		return ">"
	default:
		return "<"
	}
}

func (e *emitter) expr(x ast.Expression) string {
	switch x := x.(type) {
	case *ast.IntegerLiteral:
		return x.Value.String()

	case *ast.NullLiteral:
		if e.js() {
			return "null"
		}
		return "None"

	case *ast.TextLiteral:
		text := quoteText(x.Value)
		if !x.HasIndex {
			return text
		}
		if e.js() {
			// Spread by code point; codePointAt alone counts UTF-16 units.
			return fmt.Sprintf("[...%s][%d].codePointAt(0)", text, x.Index)
		}
		return fmt.Sprintf("ord(%s[%d])", text, x.Index)

	case *ast.SequenceLiteral:
		return "[" + e.exprList(x.Elements) + "]"

	case *ast.Variable:
		return e.variable(x, false)

	case *ast.FunctionLiteral:
		return e.functionLiteral(x)

	case *ast.CallExpression:
		return x.Function + "(" + e.exprList(x.Arguments) + ")"

	case *ast.NegateExpression:
		// `--x` would read as a decrement in J.
		operand := e.expr(x.Operand)
		if strings.HasPrefix(operand, "-") {
			operand = "(" + operand + ")"
		}
		return "-" + operand

	case *ast.LengthExpression:
		if e.js() {
			return e.expr(x.Operand) + ".length"
		}
		return "len(" + e.expr(x.Operand) + ")"
	}
	return ""
}

func (e *emitter) exprList(list []ast.Expression) string {
	parts := make([]string, len(list))
	for i, x := range list {
		parts[i] = e.expr(x)
	}
	return strings.Join(parts, ", ")
}

// variable renders a name with its index chain. A `?` index is a random
// element. When lvalue is set the random pick in P must stay assignable, so
// the last `?` becomes a random subscript instead of random.choice.
func (e *emitter) variable(v *ast.Variable, lvalue bool) string {
	out := v.Name
	for i, index := range v.Indices {
		if _, random := index.(*ast.NullLiteral); !random {
			out += "[" + e.expr(index) + "]"
			continue
		}
		switch {
		case e.js():
			out = fmt.Sprintf("%s[Math.floor(Math.random() * %s.length)]", out, out)
		case lvalue && i == len(v.Indices)-1:
			e.usesRandom = true
			out = fmt.Sprintf("%s[random.randrange(len(%s))]", out, out)
		default:
			e.usesRandom = true
			out = "random.choice(" + out + ")"
		}
	}
	return out
}

// functionLiteral renders a function value outside a direct name binding.
// J uses an arrow function; P uses a lambda when the body is a single
// return, and otherwise hoists a def above the current statement.
func (e *emitter) functionLiteral(fn *ast.FunctionLiteral) string {
	if e.js() {
		outer := e.p
		e.p = NewPrinter(outer.indent)
		e.block(fn.Body)
		body := e.p.String()
		e.p = outer
		return "(" + fn.Signature() + ") => {\n" + body + indentation(outer.indent) + "}"
	}

	if len(fn.Body.Statements) == 1 {
		if ret, ok := fn.Body.Statements[0].(*ast.ReturnStatement); ok {
			if _, nested := ret.Value.(*ast.FunctionLiteral); !nested {
				if len(fn.Parameters) == 0 {
					return "lambda: " + e.expr(ret.Value)
				}
				return "lambda " + fn.Signature() + ": " + e.expr(ret.Value)
			}
		}
	}

	e.lambdas++
	name := "_lambda" + strconv.Itoa(e.lambdas)
	e.p.line("def " + name + "(" + fn.Signature() + "):")
	e.block(fn.Body)
	return name
}

// quoteText renders a text as a double-quoted literal valid in both
// dialects.
func quoteText(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
