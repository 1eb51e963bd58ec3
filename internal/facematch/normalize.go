package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// DisplayText prepares a student or class name for the ASCII bitmap font:
// diacritics are removed and any remaining non-ASCII rune becomes '?'.
func DisplayText(s string) string {
	s = RemoveDiacritics(s)
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || (r < ' ' && r != '\t') {
			return '?'
		}
		return r
	}, s)
}
