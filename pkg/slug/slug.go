// Package slug turns product names into URL-friendly identifiers.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	// Letters that carry no combining mark under NFD.
	letters = strings.NewReplacer("ı", "i", "ø", "o", "ß", "ss", "ł", "l", "đ", "d", "æ", "ae", "œ", "oe")
)

// Generate lowercases name, strips diacritics and joins the remaining
// alphanumeric runs with single hyphens.
//
//	"Çocuk Ürünleri" -> "cocuk-urunleri"
//	"Hello   World!" -> "hello-world"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = letters.Replace(s)

	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}

// WithSuffix appends a short disambiguating suffix taken from id, so two
// products sharing a name still get distinct slugs.
func WithSuffix(name, id string) string {
	suffix := nonAlnum.ReplaceAllString(strings.ToLower(id), "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	base := Generate(name)
	switch {
	case suffix == "":
		return base
	case base == "":
		return suffix
	default:
		return base + "-" + suffix
	}
}
