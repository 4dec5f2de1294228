package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, and recomposes,
// turning "São" into "Sao".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize uppercases s and strips diacritics, producing an
// ASCII-comparable key for district name matching. Idempotent.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, strings.ToUpper(s))
	if err != nil {
		// transform.String fails only on invalid UTF-8; fall back to the
		// case-folded input so matching still has a chance.
		return strings.ToUpper(s)
	}
	return out
}
