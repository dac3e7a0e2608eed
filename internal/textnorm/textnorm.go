// Package textnorm folds text into a canonical form used for trigger
// matching. The canonical form is diacritic-free and lower-cased; it is
// only ever compared, never displayed or persisted.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// folder decomposes precomposed characters (NFD) and strips the resulting
// combining marks, so "cześć" and "czesc" compare equal. Stroke letters
// like ł never decompose (the bar is part of the letter, not a combining
// mark), so they are mapped to their base letter explicitly.
var folder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Map(foldStroke),
	norm.NFC,
)

func foldStroke(r rune) rune {
	switch r {
	case 'ł':
		return 'l'
	case 'Ł':
		return 'L'
	}
	return r
}

// Normalize returns the canonical comparison form of s: accents removed,
// lower-cased. It is total over all input; the empty string maps to itself.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	folded, _, err := transform.String(folder, s)
	if err != nil {
		// The transform chain cannot fail on valid UTF-8; if the input is
		// malformed we still want a usable comparison key.
		folded = s
	}

	return strings.ToLower(folded)
}
