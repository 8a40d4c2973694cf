package teams

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKey lowercases, strips diacritics and punctuation, and collapses
// whitespace. "St. Louis Blues" and "st louis  blues" produce the same key.
func NormalizeKey(s string) string {
	if s == "" {
		return ""
	}
	s = stripDiacritics(s)
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '&':
			return r
		case r == '\'' || r == '.' || r == '’':
			return -1
		default:
			return ' '
		}
	}, s)
	return collapseWhitespace(s)
}

// Slug is the best-effort identifier returned for unresolved names.
func Slug(s string) string {
	return strings.ReplaceAll(NormalizeKey(s), " ", "-")
}

func stripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing (combining accents)
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
