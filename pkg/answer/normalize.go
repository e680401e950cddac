// Package answer compares player input against canonical level answers.
package answer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// punctuation is removed from both sides before comparison. Full-width
// forms of the ASCII marks are folded to ASCII before this set is applied.
// Semicolons (';' and '；') and the ideographic comma '、' are stripped
// too, so answers typed as lists match their canonical form.
var punctuation = map[rune]bool{
	'.': true, ',': true, '?': true, '!': true, ';': true, ':': true,
	'"': true, '\'': true,
	'，': true, '。': true, '？': true, '！': true, '；': true, '：': true,
	'「': true, '」': true, '『': true, '』': true, '、': true,
	'“': true, '”': true, '‘': true, '’': true,
}

// Normalize reduces text to the form used for answer and command matching:
// width variants folded, lowercased, punctuation and all whitespace
// (including the ideographic space) removed. Normalize is idempotent.
func Normalize(text string) string {
	folded := width.Fold.String(text)
	lowered := cases.Lower(language.Und).String(folded)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsSpace(r) || punctuation[r] {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Match reports whether input is an accepted spelling of canonical. Both
// sides go through Normalize. Input that normalizes to nothing never
// matches, even against an empty canonical answer.
func Match(input, canonical string) bool {
	in := Normalize(input)
	if in == "" {
		return false
	}
	return in == Normalize(canonical)
}

// MatchAny reports whether input matches any of the tokens.
func MatchAny(input string, tokens []string) bool {
	for _, t := range tokens {
		if Match(input, t) {
			return true
		}
	}
	return false
}
