package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldDiacritics strips combining marks: "Pokémon" becomes "Pokemon".
func FoldDiacritics(value string) string {
	// Transformers carry state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// Normalize returns the comparison form of a title: folded, lowercased,
// punctuation collapsed to single spaces, "&"/"+" spelled as "and".
func Normalize(value string) string {
	value = strings.ToLower(FoldDiacritics(value))
	var b strings.Builder
	b.Grow(len(value))
	pendingSpace := false
	write := func(s string) {
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteString(s)
	}
	for _, r := range value {
		switch {
		case r == '&' || r == '+':
			pendingSpace = true
			write("and")
			pendingSpace = true
		case r == '\'' || r == '’':
			// "Batman's" and "Batmans" compare equal.
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			write(string(r))
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

// Key is the grouping form of a title: Normalize without a leading article.
func Key(value string) string {
	normalized := Normalize(value)
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(normalized, article) && len(normalized) > len(article) {
			return normalized[len(article):]
		}
	}
	return normalized
}

// TitleCase renders a cleaned display title.
func TitleCase(value string) string {
	return cases.Title(language.Und, cases.NoLower).String(strings.TrimSpace(value))
}
