// Package textnorm folds patient text into a comparable form: lower case,
// no diacritics, single spaces. Matching helpers work on word boundaries so
// "no" never matches inside "know".
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics and collapses everything that is not
// a letter, digit or ':' / '/' into single spaces.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToLower(stripped)

	var b strings.Builder
	b.Grow(len(stripped))
	space := true
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ':' || r == '/' || r == '-' {
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

// Tokens returns the folded words of s.
func Tokens(s string) []string {
	return strings.Fields(Fold(s))
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries.
// Both sides are folded first.
func ContainsPhrase(text, phrase string) bool {
	ft := Fold(text)
	fp := Fold(phrase)
	if ft == "" || fp == "" {
		return false
	}
	padded := " " + ft + " "
	return strings.Contains(padded, " "+fp+" ")
}

// ContainsAny reports whether any of phrases occurs in text on word boundaries.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if ContainsPhrase(text, p) {
			return true
		}
	}
	return false
}

// HasDigit reports whether s contains at least one decimal digit.
func HasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
