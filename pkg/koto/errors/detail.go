package errors

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// Detail locates an error in source text.
type Detail struct {
	Text     string // full source text the offset refers to
	Line     int    // 1-based
	Column   int    // 1-based, in runes
	LineText string // the offending line without its newline
	Offset   int    // byte offset into Text
}

// DetailAt derives the line, column and line text for a byte offset.
// Offsets past the end of text are clamped.
func DetailAt(text string, offset int) Detail {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}

	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	lineEnd := strings.IndexByte(text[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text)
	} else {
		lineEnd += offset
	}

	return Detail{
		Text:     text,
		Line:     strings.Count(text[:offset], "\n") + 1,
		Column:   utf8.RuneCountInString(text[lineStart:offset]) + 1,
		LineText: strings.TrimRight(text[lineStart:lineEnd], "\r"),
		Offset:   offset,
	}
}

// Caret returns the offending line and a caret under the column, indented by prefix.
func (d Detail) Caret(prefix string) string {
	if d.Line == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(d.LineText)
	sb.WriteString("\n")
	sb.WriteString(prefix)
	col := 0
	for _, r := range d.LineText {
		if col >= d.Column-1 {
			break
		}
		switch {
		case r == '\t':
			sb.WriteString("\t")
		case isWide(r):
			sb.WriteString("  ")
		default:
			sb.WriteString(" ")
		}
		col++
	}
	sb.WriteString("^")
	return sb.String()
}

// isWide reports whether r occupies two terminal cells.
func isWide(r rune) bool {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return true
	}
	return false
}
