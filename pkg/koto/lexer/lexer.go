// Package lexer provides the character-level scanner used by the Koto parser.
//
// Koto has no separate token stream: the parser drives a Lexer cursor
// directly, scanning the characters each production needs and saving or
// restoring the cursor to backtrack between alternatives.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ReferenceKeywords stop a reference identifier early, even in the middle of
// a run of letters, so that "合計を増やす" scans as 合計 followed by を増やす.
// The one-character particles do not stop the first character, so 回数 and
// をかし are names.
var ReferenceKeywords = []string{
	"の末尾",
	"ならば",
	"とする",
	"くり返",
	"繰り返",
	"以上",
	"以下",
	"より",
	"未満",
	"以外",
	"が",
	"を",
	"回",
}

// BindingStops end a parameter name being bound by a function literal.
var BindingStops = []string{
	"に対し",
	"を増やす",
	"を減らす",
	"の末尾に",
}

// bindingPunct ends a binding name in addition to whitespace.
const bindingPunct = ",、{}()[]=\"|#"

// Lexer is a cursor over normalized source text.
type Lexer struct {
	input    string
	position int // byte offset of the current rune
}

// LexerState holds the state of a lexer for save/restore
type LexerState struct {
	position int
}

// New creates a lexer over the normalized form of input.
func New(input string) *Lexer {
	return &Lexer{input: Normalize(input)}
}

// Input returns the normalized text the lexer scans.
func (l *Lexer) Input() string {
	return l.input
}

// Pos returns the byte offset of the cursor.
func (l *Lexer) Pos() int {
	return l.position
}

// SaveState saves the cursor for potential restoration
func (l *Lexer) SaveState() LexerState {
	return LexerState{position: l.position}
}

// RestoreState restores the cursor to a previously saved state
func (l *Lexer) RestoreState(state LexerState) {
	l.position = state.position
}

// AtEOF reports whether the cursor is at the end of input.
func (l *Lexer) AtEOF() bool {
	return l.position >= len(l.input)
}

// Peek returns the current rune without advancing, or 0 at end of input.
func (l *Lexer) Peek() rune {
	if l.position >= len(l.input) {
		return 0
	}
	b := l.input[l.position]
	if b < utf8.RuneSelf {
		return rune(b)
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.position:])
	return r
}

// Advance moves past the current rune.
func (l *Lexer) Advance() {
	if l.position >= len(l.input) {
		return
	}
	if l.input[l.position] < utf8.RuneSelf {
		l.position++
		return
	}
	_, size := utf8.DecodeRuneInString(l.input[l.position:])
	l.position += size
}

// HasPrefix reports whether the remaining input starts with s.
func (l *Lexer) HasPrefix(s string) bool {
	return strings.HasPrefix(l.input[l.position:], s)
}

// Consume advances past s if the remaining input starts with it.
func (l *Lexer) Consume(s string) bool {
	if !l.HasPrefix(s) {
		return false
	}
	l.position += len(s)
	return true
}

// ConsumeAny consumes the first of the given strings that matches and returns it.
func (l *Lexer) ConsumeAny(options ...string) (string, bool) {
	for _, s := range options {
		if l.Consume(s) {
			return s, true
		}
	}
	return "", false
}

// SkipSpaces skips spaces, tabs, carriage returns and a trailing comment,
// stopping at a newline.
func (l *Lexer) SkipSpaces() {
	for !l.AtEOF() {
		switch l.input[l.position] {
		case ' ', '\t', '\r':
			l.position++
		case '#':
			l.skipComment()
		default:
			return
		}
	}
}

// SkipBlank skips whitespace including newlines and comments.
func (l *Lexer) SkipBlank() {
	for !l.AtEOF() {
		switch l.input[l.position] {
		case ' ', '\t', '\r', '\n':
			l.position++
		case '#':
			l.skipComment()
		default:
			return
		}
	}
}

func (l *Lexer) skipComment() {
	for !l.AtEOF() && l.input[l.position] != '\n' {
		l.position++
	}
}

// AtStatementEnd reports whether only spaces or a comment remain before a
// newline, a closing brace or the end of input. The cursor is not moved.
func (l *Lexer) AtStatementEnd() bool {
	state := l.SaveState()
	defer l.RestoreState(state)
	l.SkipSpaces()
	return l.AtEOF() || l.Peek() == '\n' || l.Peek() == '}'
}

// SkipLineFrom moves the cursor to the start of the line following offset.
func (l *Lexer) SkipLineFrom(offset int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(l.input) {
		offset = len(l.input)
	}
	l.position = offset
	if i := strings.IndexByte(l.input[offset:], '\n'); i >= 0 {
		l.position = offset + i + 1
	} else {
		l.position = len(l.input)
	}
}

// RestOfLine returns the text from the cursor up to the next newline.
func (l *Lexer) RestOfLine() string {
	rest := l.input[l.position:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimRight(rest, " \t\r")
}

// ReadInteger reads a run of ASCII digits.
func (l *Lexer) ReadInteger() (string, bool) {
	start := l.position
	for !l.AtEOF() && isDigit(l.input[l.position]) {
		l.position++
	}
	return l.input[start:l.position], l.position > start
}

// ReadText reads a text literal starting at the opening quote, with escape
// sequence support. Returns the content and whether it was terminated.
// Text literals cannot span lines.
func (l *Lexer) ReadText() (string, bool) {
	var result strings.Builder
	l.Advance() // opening quote

	for !l.AtEOF() && l.Peek() != '"' && l.Peek() != '\n' {
		ch := l.Peek()
		if ch == '\\' {
			l.Advance()
			switch l.Peek() {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case '\\':
				result.WriteByte('\\')
			case '"':
				result.WriteByte('"')
			case 0, '\n':
				// Unterminated; leave the backslash and let the caller fail.
				result.WriteByte('\\')
				continue
			default:
				// Unknown escape, keep as-is
				result.WriteByte('\\')
				result.WriteRune(l.Peek())
			}
			l.Advance()
			continue
		}
		result.WriteRune(ch)
		l.Advance()
	}

	if l.Peek() != '"' {
		return result.String(), false
	}
	l.Advance()
	return result.String(), true
}

// ReadIdentifier reads an identifier in reference position: letters, then
// digits. The run of letters stops as soon as the remaining text starts with
// one of ReferenceKeywords.
func (l *Lexer) ReadIdentifier() string {
	start := l.position
	for !l.AtEOF() {
		r := l.Peek()
		if !isLetterRune(r) || l.atReferenceKeyword(l.position == start) {
			break
		}
		l.Advance()
	}
	if l.position == start {
		return ""
	}
	for !l.AtEOF() && isDigit(l.input[l.position]) {
		l.position++
	}
	return l.input[start:l.position]
}

func (l *Lexer) atReferenceKeyword(first bool) bool {
	for _, kw := range ReferenceKeywords {
		if first && utf8.RuneCountInString(kw) == 1 {
			continue
		}
		if l.HasPrefix(kw) {
			return true
		}
	}
	return false
}

// ReadName reads a name in binding position: the maximal run of characters
// up to whitespace, punctuation or one of BindingStops, trimmed.
func (l *Lexer) ReadName() string {
	start := l.position
	for !l.AtEOF() {
		r := l.Peek()
		if unicode.IsSpace(r) || strings.ContainsRune(bindingPunct, r) || l.atBindingStop() {
			break
		}
		l.Advance()
	}
	return strings.TrimSpace(l.input[start:l.position])
}

func (l *Lexer) atBindingStop() bool {
	for _, stop := range BindingStops {
		if l.HasPrefix(stop) {
			return true
		}
	}
	return false
}

func isLetterRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// IsInfixOperator reports whether r is an arithmetic operator the grammar rejects.
func IsInfixOperator(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '%':
		return true
	}
	return false
}
