package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxKeyTokens = 2

// NormalizeKey canonicalises a make or model name into a lookup key:
// lowercase, diacritics folded, anything outside letters, digits, underscore,
// whitespace and hyphen dropped, whitespace collapsed, first two tokens kept.
// It never fails and NormalizeKey(NormalizeKey(x)) == NormalizeKey(x).
func NormalizeKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)

	tokens := strings.Fields(s)
	if len(tokens) > maxKeyTokens {
		tokens = tokens[:maxKeyTokens]
	}
	return strings.Join(tokens, " ")
}

// JoinKey is the make_norm|model_base key used to match listings and models.
func JoinKey(carMake, carModel string) string {
	return NormalizeKey(carMake) + "|" + NormalizeKey(carModel)
}
