// Package parser turns Koto source text into an AST.
//
// The parser is recursive descent with lexing folded in: every production
// scans characters through a lexer.Lexer cursor and restores the cursor when
// an alternative does not match. Alternatives are tried in a fixed order and
// the first one that matches wins.
package parser

import (
	"fmt"
	"math/big"

	"github.com/sambeau/koto/pkg/koto/ast"
	"github.com/sambeau/koto/pkg/koto/errors"
	"github.com/sambeau/koto/pkg/koto/lexer"
)

// Parser represents the parser
type Parser struct {
	l      *lexer.Lexer
	source *ast.Source

	recovering bool

	// err is the first hard error of the statement being parsed. Once set,
	// every production unwinds without trying further alternatives.
	err *errors.KotoError

	structuredErrors []*errors.KotoError
}

// Option configures a Parser.
type Option func(*Parser)

// WithName labels the source, usually with its file name.
func WithName(name string) Option {
	return func(p *Parser) {
		p.source.Name = name
	}
}

// WithRecovery makes a malformed top-level statement skip to the next line
// instead of aborting the parse. Every skipped statement's error is kept.
func WithRecovery() Option {
	return func(p *Parser) {
		p.recovering = true
	}
}

// New creates a new parser instance
func New(l *lexer.Lexer, opts ...Option) *Parser {
	p := &Parser{
		l:      l,
		source: &ast.Source{Text: l.Input()},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses text and returns the program and the first error, if any.
// With WithRecovery the program holds every statement that parsed.
func Parse(name, text string, opts ...Option) (*ast.Program, error) {
	p := New(lexer.New(text), append([]Option{WithName(name)}, opts...)...)
	program := p.ParseProgram()
	if errs := p.StructuredErrors(); len(errs) > 0 {
		return program, errs[0]
	}
	return program, nil
}

// Source returns the normalized source the positions refer to.
func (p *Parser) Source() *ast.Source {
	return p.source
}

// Errors returns parser errors as strings (convenience method for tests).
// Prefer StructuredErrors() for production code.
func (p *Parser) Errors() []string {
	result := make([]string, len(p.structuredErrors))
	for i, err := range p.structuredErrors {
		if err.Line > 0 {
			result[i] = fmt.Sprintf("line %d, column %d: %s", err.Line, err.Column, err.Message)
		} else {
			result[i] = err.Message
		}
	}
	return result
}

// StructuredErrors returns parser errors as structured KotoError objects.
func (p *Parser) StructuredErrors() []*errors.KotoError {
	return p.structuredErrors
}

// fail records a hard error at offset.
// Only the first error is recorded - subsequent errors are usually cascading noise.
func (p *Parser) fail(offset int, code string, data map[string]any) {
	if p.err != nil {
		return
	}
	p.err = errors.NewAt(code, p.source.Detail(offset), data)
}

// expected records a PARSE-0001 error at the cursor.
func (p *Parser) expected(what string) {
	p.fail(p.l.Pos(), "PARSE-0001", map[string]any{
		"Expected": what,
		"Got":      p.describeNext(),
	})
}

// describeNext names what the cursor is looking at, for error messages.
func (p *Parser) describeNext() string {
	if p.l.AtEOF() {
		return "end of input"
	}
	if p.l.Peek() == '\n' {
		return "newline"
	}
	rest := []rune(p.l.RestOfLine())
	if len(rest) > 12 {
		return string(rest[:12]) + "…"
	}
	return string(rest)
}

func (p *Parser) pos(start int) ast.Position {
	return ast.Position{Source: p.source, Start: start, End: p.l.Pos()}
}

// ParseProgram parses the program and returns the AST
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	program.Statements = []ast.Statement{}

	for {
		p.l.SkipBlank()
		if p.l.AtEOF() {
			break
		}

		stmt := p.parseStatement()
		if p.err == nil {
			program.Statements = append(program.Statements, stmt)
			continue
		}

		p.structuredErrors = append(p.structuredErrors, p.err)
		if !p.recovering {
			break
		}
		p.l.SkipLineFrom(p.err.Offset)
		p.err = nil
	}

	program.Position = ast.Position{Source: p.source, Start: 0, End: p.l.Pos()}
	return program
}

// parseStatement tries each statement form in priority order.
func (p *Parser) parseStatement() ast.Statement {
	start := p.l.Pos()
	alternatives := []func(int) ast.Statement{
		p.parseIfStatement,
		p.parseLoopStatement,
		p.parseDocTestStatement,
		p.parseTargetStatement,
		p.parseReturnStatement,
		p.parseBreakStatement,
		p.parseExpressionStatement,
	}

	for _, alt := range alternatives {
		state := p.l.SaveState()
		stmt := alt(start)
		if p.err != nil {
			return nil
		}
		if stmt == nil {
			p.l.RestoreState(state)
			continue
		}
		if !p.l.AtStatementEnd() {
			p.l.SkipSpaces()
			p.fail(p.l.Pos(), "PARSE-0008", map[string]any{"Got": p.l.RestOfLine()})
			return nil
		}
		return stmt
	}

	p.fail(start, "PARSE-0002", nil)
	return nil
}

// parseBlockStatement parses `{ statements }`. The opening brace is required.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	start := p.l.Pos()
	if !p.l.Consume("{") {
		p.expected("'{'")
		return nil
	}

	block := &ast.BlockStatement{Statements: []ast.Statement{}}
	for {
		p.l.SkipBlank()
		if p.l.Consume("}") {
			break
		}
		if p.l.AtEOF() {
			p.fail(start, "PARSE-0007", nil)
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
	}

	block.Position = p.pos(start)
	return block
}

// parseIfStatement parses `もし l が r [particle] ならば [、] {…} [そうでなければ {…}]`.
func (p *Parser) parseIfStatement(start int) ast.Statement {
	if !p.l.Consume("もし") {
		return nil
	}
	p.l.SkipSpaces()

	left := p.parseExpression()
	if left == nil {
		return nil
	}
	p.l.SkipSpaces()
	if !p.l.Consume("が") {
		return nil
	}
	p.l.SkipSpaces()

	right := p.parseExpression()
	if right == nil {
		return nil
	}
	p.l.SkipSpaces()

	comparator := ast.CompareEqual
	for _, c := range ast.Comparators {
		if p.l.Consume(c.Particle) {
			comparator = c.Comparator
			p.l.SkipSpaces()
			break
		}
	}

	if !p.l.Consume("ならば") {
		return nil
	}
	p.skipPause()

	consequence := p.parseBlockStatement()
	if consequence == nil {
		return nil
	}

	stmt := &ast.IfStatement{
		Left:        left,
		Right:       right,
		Comparator:  comparator,
		Consequence: consequence,
	}

	state := p.l.SaveState()
	p.l.SkipBlank()
	if p.l.Consume("そうでなければ") {
		p.skipPause()
		stmt.Alternative = p.parseBlockStatement()
		if stmt.Alternative == nil {
			return nil
		}
	} else {
		p.l.RestoreState(state)
	}

	stmt.Position = p.pos(start)
	return stmt
}

// skipPause skips spaces around an optional 、 before a block.
func (p *Parser) skipPause() {
	p.l.SkipSpaces()
	if p.l.Consume("、") {
		p.l.SkipSpaces()
	}
}

// parseLoopStatement parses `n 回くり返す {…}`.
func (p *Parser) parseLoopStatement(start int) ast.Statement {
	count := p.parseExpression()
	if count == nil {
		return nil
	}
	p.l.SkipSpaces()
	if !p.l.Consume("回") {
		return nil
	}
	p.l.SkipSpaces()
	if _, ok := p.l.ConsumeAny("くり返す", "繰り返す"); !ok {
		return nil
	}
	p.skipPause()

	body := p.parseBlockStatement()
	if body == nil {
		return nil
	}
	return &ast.LoopStatement{Position: p.pos(start), Count: count, Body: body}
}

// parseDocTestStatement parses `>>> e` with the expected value on the next line.
func (p *Parser) parseDocTestStatement(start int) ast.Statement {
	if !p.l.Consume(">>>") {
		return nil
	}
	p.l.SkipSpaces()

	expr := p.parseExpression()
	if expr == nil {
		if p.err == nil {
			p.expected("an expression")
		}
		return nil
	}
	if !p.l.AtStatementEnd() {
		p.l.SkipSpaces()
		p.fail(p.l.Pos(), "PARSE-0008", map[string]any{"Got": p.l.RestOfLine()})
		return nil
	}
	p.l.SkipSpaces()
	if !p.l.Consume("\n") {
		p.expected("the expected value on the next line")
		return nil
	}
	p.l.SkipSpaces()

	expected := p.parseExpression()
	if expected == nil {
		if p.err == nil {
			p.expected("the expected value")
		}
		return nil
	}
	return &ast.DocTestStatement{Position: p.pos(start), Expression: expr, Expected: expected}
}

// parseTargetStatement parses the statements that start with a target
// variable: assignment, increment, decrement and append.
func (p *Parser) parseTargetStatement(start int) ast.Statement {
	target := p.parseVariable()
	if target == nil {
		return nil
	}
	p.l.SkipSpaces()

	switch {
	case p.l.Consume("を増やす"):
		return &ast.IncrementStatement{Position: p.pos(start), Target: target}

	case p.l.Consume("を減らす"):
		return &ast.DecrementStatement{Position: p.pos(start), Target: target}

	case p.l.Consume("の末尾に"):
		p.l.SkipSpaces()
		value := p.requireExpression()
		if value == nil {
			return nil
		}
		p.l.SkipSpaces()
		if !p.l.Consume("を追加する") {
			p.expected("'を追加する'")
			return nil
		}
		return &ast.AppendStatement{Position: p.pos(start), Target: target, Value: value}

	case p.l.Consume("="):
		p.l.SkipSpaces()
		value := p.requireExpression()
		if value == nil {
			return nil
		}
		return &ast.AssignmentStatement{Position: p.pos(start), Target: target, Value: value}

	case p.l.Consume("を"):
		p.l.SkipSpaces()
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		p.l.SkipSpaces()
		if !p.l.Consume("とする") {
			return nil
		}
		return &ast.AssignmentStatement{Position: p.pos(start), Target: target, Value: value}
	}

	return nil
}

// parseReturnStatement parses `e が答え`.
func (p *Parser) parseReturnStatement(start int) ast.Statement {
	value := p.parseExpression()
	if value == nil {
		return nil
	}
	p.l.SkipSpaces()
	if !p.l.Consume("が答え") {
		return nil
	}
	return &ast.ReturnStatement{Position: p.pos(start), Value: value}
}

// parseBreakStatement parses `くり返しを抜ける`.
func (p *Parser) parseBreakStatement(start int) ast.Statement {
	if _, ok := p.l.ConsumeAny("くり返しを抜ける", "繰り返しを抜ける"); !ok {
		return nil
	}
	return &ast.BreakStatement{Position: p.pos(start)}
}

func (p *Parser) parseExpressionStatement(start int) ast.Statement {
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	return &ast.ExpressionStatement{Position: p.pos(start), Expression: expr}
}

// requireExpression parses an expression after a point where the statement
// form is already certain, so a missing expression is a hard error.
func (p *Parser) requireExpression() ast.Expression {
	expr := p.parseExpression()
	if expr == nil && p.err == nil {
		p.expected("an expression")
	}
	return expr
}

// parseExpression parses one expression and rejects a following infix operator.
func (p *Parser) parseExpression() ast.Expression {
	expr := p.parsePrimary()
	if expr == nil || p.err != nil {
		return nil
	}

	state := p.l.SaveState()
	p.l.SkipSpaces()
	if r := p.l.Peek(); lexer.IsInfixOperator(r) {
		p.fail(p.l.Pos(), "PARSE-0003", map[string]any{"Operator": string(r)})
		return nil
	}
	p.l.RestoreState(state)
	return expr
}

// parsePrimary tries each expression form in priority order.
func (p *Parser) parsePrimary() ast.Expression {
	start := p.l.Pos()

	switch r := p.l.Peek(); {
	case r >= '0' && r <= '9':
		return p.parseIntegerLiteral(start)
	case r == '"':
		return p.parseTextLiteral(start)
	case r == '|':
		return p.parseLengthExpression(start)
	case r == '-':
		return p.parseNegateExpression(start)
	case r == '[':
		return p.parseSequenceLiteral(start)
	case r == '?':
		p.l.Advance()
		return &ast.NullLiteral{Position: p.pos(start)}
	}

	if p.l.HasPrefix("入力") {
		state := p.l.SaveState()
		if fn := p.parseFunctionLiteral(start); fn != nil || p.err != nil {
			return fn
		}
		p.l.RestoreState(state)
	}

	name := p.l.ReadIdentifier()
	if name == "" {
		return nil
	}
	if p.l.Peek() == '(' {
		return p.parseCallExpression(start, name)
	}
	return p.parseIndices(start, name)
}

func (p *Parser) parseIntegerLiteral(start int) ast.Expression {
	digits, _ := p.l.ReadInteger()
	if p.l.Peek() == '.' {
		p.fail(start, "PARSE-0004", nil)
		return nil
	}

	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		p.fail(start, "PARSE-0001", map[string]any{"Expected": "an integer", "Got": digits})
		return nil
	}
	return &ast.IntegerLiteral{Position: p.pos(start), Value: value}
}

func (p *Parser) parseTextLiteral(start int) ast.Expression {
	value, terminated := p.l.ReadText()
	if !terminated {
		p.fail(start, "PARSE-0005", nil)
		return nil
	}
	lit := &ast.TextLiteral{Value: value}

	if p.l.Peek() == '[' {
		state := p.l.SaveState()
		p.l.Advance()
		p.l.SkipSpaces()
		indexStart := p.l.Pos()
		digits, ok := p.l.ReadInteger()
		p.l.SkipSpaces()
		if ok && p.l.Consume("]") {
			index, valid := new(big.Int).SetString(digits, 10)
			length := len([]rune(value))
			if !valid || !index.IsInt64() || index.Int64() >= int64(length) {
				p.fail(indexStart, "PARSE-0009", map[string]any{"Index": digits, "Length": length})
				return nil
			}
			lit.Index = int(index.Int64())
			lit.HasIndex = true
		} else {
			p.l.RestoreState(state)
		}
	}

	lit.Position = p.pos(start)
	return lit
}

func (p *Parser) parseLengthExpression(start int) ast.Expression {
	p.l.Advance()
	p.l.SkipSpaces()
	operand := p.requireExpression()
	if operand == nil {
		return nil
	}
	p.l.SkipSpaces()
	if !p.l.Consume("|") {
		p.expected("'|'")
		return nil
	}
	return &ast.LengthExpression{Position: p.pos(start), Operand: operand}
}

func (p *Parser) parseNegateExpression(start int) ast.Expression {
	p.l.Advance()
	p.l.SkipSpaces()
	operand := p.parsePrimary()
	if operand == nil {
		return nil
	}
	return &ast.NegateExpression{Position: p.pos(start), Operand: operand}
}

// parseFunctionLiteral parses `入力 a, b に対し[て][、] {…}`. It returns nil
// without an error when the text turns out not to be a function literal,
// such as a variable named 入力値.
func (p *Parser) parseFunctionLiteral(start int) ast.Expression {
	p.l.Consume("入力")
	p.l.SkipSpaces()

	var params []string
	seen := map[string]bool{}
	duplicate, duplicateAt := "", 0
	unreadable, unreadableAt := "", 0

	if !p.l.HasPrefix("に対し") {
		for {
			nameStart := p.l.Pos()
			name := p.l.ReadName()
			if name == "" {
				return nil
			}
			if !IsIdentifier(name) && unreadable == "" {
				unreadable, unreadableAt = name, nameStart
			}
			if seen[name] && duplicate == "" {
				duplicate, duplicateAt = name, nameStart
			}
			seen[name] = true
			params = append(params, name)

			p.l.SkipSpaces()
			if _, ok := p.l.ConsumeAny(",", "、"); !ok {
				break
			}
			p.l.SkipSpaces()
		}
	}

	if !p.l.Consume("に対し") {
		return nil
	}
	if unreadable != "" {
		p.fail(unreadableAt, "PARSE-0010", map[string]any{"Name": unreadable})
		return nil
	}
	if duplicate != "" {
		p.fail(duplicateAt, "PARSE-0006", map[string]any{"Name": duplicate})
		return nil
	}
	p.l.Consume("て")
	p.skipPause()

	body := p.parseBlockStatement()
	if body == nil {
		return nil
	}
	return &ast.FunctionLiteral{Position: p.pos(start), Parameters: params, Body: body}
}

func (p *Parser) parseSequenceLiteral(start int) ast.Expression {
	p.l.Advance()
	elements := p.parseExpressionList("]")
	if elements == nil {
		return nil
	}
	return &ast.SequenceLiteral{Position: p.pos(start), Elements: elements}
}

func (p *Parser) parseCallExpression(start int, name string) ast.Expression {
	p.l.Advance()
	args := p.parseExpressionList(")")
	if args == nil {
		return nil
	}
	return &ast.CallExpression{Position: p.pos(start), Function: name, Arguments: args}
}

// parseExpressionList parses comma separated expressions up to end, after
// the opening bracket. Elements may also be separated by 、 and may span lines.
func (p *Parser) parseExpressionList(end string) []ast.Expression {
	list := []ast.Expression{}

	p.l.SkipBlank()
	if p.l.Consume(end) {
		return list
	}

	for {
		expr := p.requireExpression()
		if expr == nil {
			return nil
		}
		list = append(list, expr)

		p.l.SkipBlank()
		if _, ok := p.l.ConsumeAny(",", "、"); ok {
			p.l.SkipBlank()
			continue
		}
		if p.l.Consume(end) {
			return list
		}
		p.expected(fmt.Sprintf("',' or '%s'", end))
		return nil
	}
}

// parseVariable parses a target: a name with optional index suffixes.
func (p *Parser) parseVariable() *ast.Variable {
	start := p.l.Pos()
	name := p.l.ReadIdentifier()
	if name == "" || p.l.Peek() == '(' {
		return nil
	}
	v, _ := p.parseIndices(start, name).(*ast.Variable)
	return v
}

// parseIndices parses the `[i]` suffixes after a name.
func (p *Parser) parseIndices(start int, name string) ast.Expression {
	v := &ast.Variable{Name: name}
	for p.l.Peek() == '[' {
		p.l.Advance()
		p.l.SkipSpaces()
		index := p.requireExpression()
		if index == nil {
			return nil
		}
		p.l.SkipSpaces()
		if !p.l.Consume("]") {
			p.expected("']'")
			return nil
		}
		v.Indices = append(v.Indices, index)
	}
	v.Position = p.pos(start)
	return v
}

// IsIdentifier reports whether name can be read back as a single reference
// identifier, which is what seed data and the REPL need to bind it.
func IsIdentifier(name string) bool {
	l := lexer.New(name)
	return name != "" && l.ReadIdentifier() == name && l.AtEOF()
}
