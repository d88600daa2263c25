package grid

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldMarks strips combining marks after NFKD decomposition so accented
// header text normalizes to plain ASCII keys.
var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SnakeCase converts header display text into a canonical field key. The
// substitution table is consulted per rune before folding; every character
// not covered by it maps to an underscore separator, so normalization is
// total and deterministic.
func SnakeCase(text string, symbols map[string]string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	// Symbol substitution runs on the raw text so marks like ° survive
	// until they are replaced by their token.
	var replaced strings.Builder
	for _, r := range text {
		if token, ok := symbols[string(r)]; ok {
			replaced.WriteByte(' ')
			replaced.WriteString(token)
			replaced.WriteByte(' ')
			continue
		}
		replaced.WriteRune(r)
	}

	folded, _, err := transform.String(foldMarks, replaced.String())
	if err != nil {
		folded = replaced.String()
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	pendingSep := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// isMajorityAlpha reports whether letters outnumber the other non-space
// characters of the text.
func isMajorityAlpha(text string) bool {
	var alpha, other int
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			alpha++
		case unicode.IsSpace(r):
		default:
			other++
		}
	}
	return alpha > other
}
