package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input and caps it at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}

// NormalizeCode upper-cases a door or promo code and drops separators staff
// type by hand ("abcd-1234" and "ABCD 1234" both become "ABCD1234").
func NormalizeCode(input string, maxLen int) string {
	var b strings.Builder
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return SanitizeString(b.String(), maxLen)
}
