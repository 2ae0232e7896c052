// SPDX-License-Identifier: MIT

// Package normalize holds character-level text folding used when comparing
// channel names.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func isEdgeNoise(r rune) bool {
	return unicode.IsSpace(r) ||
		r == '\u200B' || // Zero Width Space
		r == '\u200C' || // Zero Width Non-Joiner
		r == '\u200D' || // Zero Width Joiner
		r == '\uFEFF' // Zero Width Non-Breaking Space (BOM)
}

// Trim removes Unicode whitespace and invisible characters from both ends
// and collapses inner whitespace runs to a single ASCII space.
func Trim(s string) string {
	s = strings.TrimFunc(s, isEdgeNoise)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Token normalizes a string token for case-insensitive comparisons.
func Token(s string) string {
	return strings.ToLower(Trim(s))
}

// Letters that carry no combining mark under NFD and would otherwise be
// dropped by ASCII folding.
var foldUnmarked = strings.NewReplacer(
	"ß", "ss", "ẞ", "SS",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ı", "i",
)

// StripDiacritics removes combining marks, so "Știri" becomes "Stiri".
func StripDiacritics(s string) string {
	// transform.Chain keeps state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return foldUnmarked.Replace(out)
}

// AlnumUpper keeps only ASCII letters and digits and uppercases them.
// Diacritics must already be stripped.
func AlnumUpper(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Key folds s into an uppercase ASCII alphanumeric comparison key.
func Key(s string) string {
	return AlnumUpper(StripDiacritics(s))
}
