package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnum      = regexp.MustCompile("[^a-z0-9]+")
	leadingDigits = regexp.MustCompile(`^\s*(\d+)\b`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// StripDiacritics removes combining marks so "Fermée" compares equal to "Fermee".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)
	return s
}

// Slugify creates a slug from the given string.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = StripDiacritics(s)
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Normalize collapses runs of whitespace (including non-breaking spaces from
// the panel's HTML) and trims the result.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "\x00", "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// EntityID derives a stable id from a display name: the leading numeric
// prefix when present, otherwise a slug. The panel assigns no machine ids,
// so this is what keeps entities stable across fetches.
func EntityID(name string) string {
	if m := leadingDigits.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if slug := Slugify(name); slug != "" {
		return slug
	}
	return "unknown"
}
