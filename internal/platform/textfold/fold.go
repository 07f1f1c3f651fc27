// Package textfold lowercases text and strips diacritics so French and
// English questions compare equal regardless of accents.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures are not decomposed by NFD
var ligatures = strings.NewReplacer(
	"œ", "oe", "Œ", "OE",
	"æ", "ae", "Æ", "AE",
	"ß", "ss",
	"’", "'", "‘", "'", "`", "'",
)

// StripDiacritics removes combining marks: "différence" becomes "difference".
func StripDiacritics(s string) string {
	s = ligatures.Replace(s)
	// transform.Chain is stateful, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lowercases and strips diacritics.
func Fold(s string) string {
	return StripDiacritics(strings.ToLower(s))
}

// Words folds s and replaces every rune that is not a letter or digit with a
// single space. Apostrophes become separators too.
func Words(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
