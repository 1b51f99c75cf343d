package ast

import (
	"math/big"
	"strings"

	"github.com/sambeau/koto/pkg/koto/errors"
)

// Source is one normalized program text.
type Source struct {
	Name string // file name or a label such as "<stdin>"
	Text string // normalized text every Position refers to
}

// Detail locates offset within the source.
func (s *Source) Detail(offset int) errors.Detail {
	if s == nil {
		return errors.Detail{}
	}
	return errors.DetailAt(s.Text, offset)
}

// Position records where a node came from: byte offsets into Source.Text.
type Position struct {
	Source *Source
	Start  int
	End    int
}

// Pos returns the position itself so every node embedding it satisfies Node.
func (p Position) Pos() Position { return p }

// Detail locates the start of the node.
func (p Position) Detail() errors.Detail {
	return p.Source.Detail(p.Start)
}

// String returns the source slice the node was parsed from.
func (p Position) String() string {
	if p.Source == nil || p.Start < 0 || p.End > len(p.Source.Text) || p.Start > p.End {
		return ""
	}
	return p.Source.Text[p.Start:p.End]
}

// Node represents any node in the AST
type Node interface {
	Pos() Position
	String() string
}

// Statement represents statement nodes
type Statement interface {
	Node
	statementNode()
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
}

// Program represents the root node of every AST
type Program struct {
	Position
	Statements []Statement
}

// BlockStatement is a braced statement list.
type BlockStatement struct {
	Position
	Statements []Statement
}

func (bs *BlockStatement) statementNode() {}

// AssignmentStatement: `x = e` or `x を e とする`.
type AssignmentStatement struct {
	Position
	Target *Variable
	Value  Expression
}

func (as *AssignmentStatement) statementNode() {}

// AppendStatement: `x の末尾に e を追加する`.
type AppendStatement struct {
	Position
	Target *Variable
	Value  Expression
}

func (as *AppendStatement) statementNode() {}

// IncrementStatement: `x を増やす`.
type IncrementStatement struct {
	Position
	Target *Variable
}

func (is *IncrementStatement) statementNode() {}

// DecrementStatement: `x を減らす`.
type DecrementStatement struct {
	Position
	Target *Variable
}

func (ds *DecrementStatement) statementNode() {}

// Comparator is the relation tested by an IfStatement.
type Comparator int

const (
	CompareEqual Comparator = iota
	CompareNotEqual
	CompareGreaterEqual
	CompareLessEqual
	CompareGreater
	CompareLess
)

// Symbol returns the mathematical symbol for the comparator.
func (c Comparator) Symbol() string {
	switch c {
	case CompareNotEqual:
		return "≠"
	case CompareGreaterEqual:
		return "≥"
	case CompareLessEqual:
		return "≤"
	case CompareGreater:
		return ">"
	case CompareLess:
		return "<"
	default:
		return "="
	}
}

// IsOrdering reports whether the comparator needs ordered (integer) operands.
func (c Comparator) IsOrdering() bool {
	return c != CompareEqual && c != CompareNotEqual
}

// Comparators maps each comparison particle to its comparator. Longer
// particles come first so より大きい is never read as より.
var Comparators = []struct {
	Particle   string
	Comparator Comparator
}{
	{"より大きい", CompareGreater},
	{"より小さい", CompareLess},
	{"以上", CompareGreaterEqual},
	{"以下", CompareLessEqual},
	{"未満", CompareLess},
	{"以外", CompareNotEqual},
}

// IfStatement: `もし l が r [particle] ならば {…} [そうでなければ {…}]`.
type IfStatement struct {
	Position
	Left        Expression
	Right       Expression
	Comparator  Comparator
	Consequence *BlockStatement
	Alternative *BlockStatement // nil when there is no else branch
}

func (is *IfStatement) statementNode() {}

// LoopStatement: `n 回くり返す {…}`; a NullLiteral count repeats until broken.
type LoopStatement struct {
	Position
	Count Expression
	Body  *BlockStatement
}

func (ls *LoopStatement) statementNode() {}

// IsUnbounded reports whether the count is the literal `?`.
func (ls *LoopStatement) IsUnbounded() bool {
	_, ok := ls.Count.(*NullLiteral)
	return ok
}

// BreakStatement: `くり返しを抜ける`.
type BreakStatement struct {
	Position
}

func (bs *BreakStatement) statementNode() {}

// ReturnStatement: `e が答え`.
type ReturnStatement struct {
	Position
	Value Expression
}

func (rs *ReturnStatement) statementNode() {}

// ExpressionStatement is a bare expression whose value is observed.
type ExpressionStatement struct {
	Position
	Expression Expression
}

func (es *ExpressionStatement) statementNode() {}

// DocTestStatement: `>>> e` followed by the expected value on the next line.
type DocTestStatement struct {
	Position
	Expression Expression
	Expected   Expression
}

func (ds *DocTestStatement) statementNode() {}

// IntegerLiteral is a run of decimal digits.
type IntegerLiteral struct {
	Position
	Value *big.Int
}

func (il *IntegerLiteral) expressionNode() {}

// NullLiteral is `?`.
type NullLiteral struct {
	Position
}

func (nl *NullLiteral) expressionNode() {}

// TextLiteral is a quoted text, optionally indexed to a single code point.
type TextLiteral struct {
	Position
	Value    string
	Index    int
	HasIndex bool
}

func (tl *TextLiteral) expressionNode() {}

// SequenceLiteral is `[a, b, …]`.
type SequenceLiteral struct {
	Position
	Elements []Expression
}

func (sl *SequenceLiteral) expressionNode() {}

// Variable is a name with zero or more index suffixes. A NullLiteral index
// appends on write and picks a random element on read.
type Variable struct {
	Position
	Name    string
	Indices []Expression
}

func (v *Variable) expressionNode() {}

// IsBare reports whether the variable has no index suffix.
func (v *Variable) IsBare() bool {
	return len(v.Indices) == 0
}

// AppendsOnWrite reports whether the last index is `?`.
func (v *Variable) AppendsOnWrite() bool {
	if len(v.Indices) == 0 {
		return false
	}
	_, ok := v.Indices[len(v.Indices)-1].(*NullLiteral)
	return ok
}

// FunctionLiteral: `入力 a, b に対し {…}`.
type FunctionLiteral struct {
	Position
	Parameters []string
	Body       *BlockStatement
}

func (fl *FunctionLiteral) expressionNode() {}

// Signature renders the parameter list as `a, b`.
func (fl *FunctionLiteral) Signature() string {
	return strings.Join(fl.Parameters, ", ")
}

// CallExpression: `name(a, b)`.
type CallExpression struct {
	Position
	Function  string
	Arguments []Expression
}

func (ce *CallExpression) expressionNode() {}

// NegateExpression: `-e`.
type NegateExpression struct {
	Position
	Operand Expression
}

func (ne *NegateExpression) expressionNode() {}

// LengthExpression: `|e|`.
type LengthExpression struct {
	Position
	Operand Expression
}

func (le *LengthExpression) expressionNode() {}
