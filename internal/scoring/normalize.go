package scoring

import (
	"strings"
	"unicode"
)

// symbolReplacer maps the symbol spellings students type to one canonical form.
var symbolReplacer = strings.NewReplacer(
	"×", "x",
	"÷", "/",
	"^2", "²",
	"^3", "³",
	"₀", "0", "₁", "1", "₂", "2", "₃", "3", "₄", "4",
	"₅", "5", "₆", "6", "₇", "7", "₈", "8", "₉", "9",
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
)

// Normalize canonicalizes an answer for equality comparison. Both the
// student's answer and the answer key go through it before grading.
//
// Rules, in order:
//   - lowercase
//   - × to x, ÷ to /, ^2 to ², ^3 to ³
//   - subscript digits to ASCII digits
//   - curly quotes to straight quotes
//   - whitespace runs collapsed to one space, ends trimmed
//   - the word "per" between spaces becomes /
//   - any rune that is not a letter, number, space, _ / . - or + is dropped
//   - whitespace collapsed and trimmed again
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = symbolReplacer.Replace(s)
	s = collapseSpaces(s)
	s = strings.ReplaceAll(s, " per ", "/")
	s = strings.Map(keepRune, s)
	return collapseSpaces(s)
}

func keepRune(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsNumber(r):
		return r
	case unicode.IsSpace(r):
		return ' '
	case r == '_', r == '/', r == '.', r == '-', r == '+':
		return r
	}
	return -1
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Equal reports whether two answers are the same after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
