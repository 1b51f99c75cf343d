package lexer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`)

// Normalize rewrites source text into the form the parser scans.
//
// Text is composed to NFC, full-width Latin letters, digits, punctuation and
// the ideographic space are folded to their ASCII forms, and curly double
// quotes become straight quotes. Half-width katakana is widened by the fold,
// so kana keywords match whichever width the author typed.
func Normalize(input string) string {
	s := norm.NFC.String(input)
	s = width.Fold.String(s)
	return quoteReplacer.Replace(s)
}
