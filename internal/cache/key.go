package cache

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes characters and removes combining marks so accented
// and unaccented spellings collapse to the same key.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Key normalizes a raw title into the cache key: case-folded, trimmed,
// diacritics and punctuation dropped, interior whitespace collapsed. A
// positive year hint is appended so "Title (2017)" lookups key separately
// from bare-title lookups.
func Key(title string, year int) string {
	k := Normalize(title)
	if year > 0 {
		k += "|" + strconv.Itoa(year)
	}
	return k
}

// Normalize applies the key normalization without a year suffix.
func Normalize(title string) string {
	folded := cases.Fold().String(strings.TrimSpace(title))

	stripped, _, err := transform.String(stripMarks, folded)
	if err != nil {
		stripped = folded
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			// Punctuation, symbols, and whitespace all become separators.
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
