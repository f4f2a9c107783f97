package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters without a canonical decomposition into base + mark.
var extraFolds = strings.NewReplacer("ı", "i", "ø", "o", "ß", "ss", "æ", "ae", "œ", "oe", "đ", "d", "ł", "l")

// Generate derives a URL-safe, case- and accent-insensitive identifier:
// lower case, accents stripped, every run of other characters collapsed
// into a single hyphen, no leading or trailing hyphens.
//
//	"Azul Marino"     -> "azul-marino"
//	"Camión  Ñandú!"  -> "camion-nandu"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = extraFolds.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Equal reports whether a and b produce the same slug.
func Equal(a, b string) bool {
	return Generate(a) == Generate(b)
}

// All slugs each value, dropping values whose slug is empty.
func All(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := Generate(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
