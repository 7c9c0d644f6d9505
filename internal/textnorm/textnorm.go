// Package textnorm normalizes free-text survey comments before noise
// filtering and keyword matching. Keywords and texts must go through the
// same normalization or matches silently disappear.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes to NFD, drops combining marks, and recomposes,
// turning "é" into "e" and "ñ" into "n".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases the text, folds diacritics, maps every unicode
// space to a plain space, collapses whitespace runs, and trims. It is a
// pure, total function: any input (including empty) yields a defined
// output. Digits and punctuation are preserved; the noise filter needs
// them to spot punctuation-only and "n/a"-style answers.
func Normalize(text string) string {
	folded, _, err := transform.String(foldDiacritics, text)
	if err != nil {
		// Invalid UTF-8 passes through unfolded; lower-casing and
		// whitespace collapsing still apply.
		folded = text
	}

	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
