package evaluator

import (
	"strings"
	"unicode"
)

// Normalize case-folds, removes punctuation, hyphens and underscores, and
// collapses whitespace runs to single spaces. "Wi-Fi" and "wifi" normalize
// to the same string.
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if sb.Len() > 0 {
				pendingSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace {
				sb.WriteByte(' ')
				pendingSpace = false
			}
			sb.WriteRune(r)
		default:
			// Punctuation, hyphens, underscores: dropped entirely so
			// hyphenated spellings collapse onto their plain forms.
		}
	}
	return sb.String()
}

// ContainsNormalized reports whether phrase occurs in haystack after both
// sides are normalized.
func ContainsNormalized(haystack string, phrase string) bool {
	p := Normalize(phrase)
	if p == "" {
		return true
	}
	return strings.Contains(Normalize(haystack), p)
}
