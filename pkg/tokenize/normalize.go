// Package tokenize normalizes raw OCR tokens into cleaned, optionally
// numeric tokens consumed by the line segmenter and field extractor.
// Normalization is idempotent: applying it to already-normalized text
// yields the same result.
package tokenize

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/kiranakit/reconcile/pkg/ocr"
)

// Token is a raw OCR token plus its cleaned text and, when the cleaned
// text parses as a number, its numeric value.
type Token struct {
	ocr.RawToken

	Clean   string   `json:"clean"`
	Numeric *float64 `json:"numeric,omitempty"`
}

// IsNumeric reports whether the token carries a parsed numeric value.
func (t Token) IsNumeric() bool {
	return t.Numeric != nil
}

// IsAlphabetic reports whether the cleaned text contains at least one
// letter and no parsed numeric value.
func (t Token) IsAlphabetic() bool {
	if t.Numeric != nil {
		return false
	}
	return strings.ContainsFunc(t.Clean, unicode.IsLetter)
}

// confusables maps glyphs that OCR engines commonly misread for digits.
// The mapping is applied only next to digits so that words like "Oil"
// or "Salt" are left alone.
var confusables = map[rune]rune{
	'o': '0',
	'O': '0',
	'l': '1',
	'I': '1',
	'S': '5',
	'B': '8',
}

// Normalize cleans a sequence of raw tokens, preserving order. Tokens
// whose text is empty after cleaning are dropped.
func Normalize(tokens []ocr.RawToken) []Token {
	out := make([]Token, 0, len(tokens))

	for _, raw := range tokens {
		clean := CleanText(raw.Text)
		if clean == "" {
			continue
		}

		t := Token{RawToken: raw, Clean: clean}
		if v, ok := ParseNumeric(clean); ok {
			t.Numeric = &v
			t.Clean = formatNumericText(clean)
		}

		out = append(out, t)
	}

	return out
}

// CleanText lowercases, trims, collapses whitespace, and corrects
// OCR-confusable glyphs that appear inside digit runs.
func CleanText(s string) string {
	s = correctConfusables(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// correctConfusables replaces confusable glyphs that are directly
// adjacent to a digit, so "1O0" becomes "100" but "Oil" is untouched.
func correctConfusables(s string) string {
	runes := []rune(s)
	out := make([]rune, len(runes))

	for i, r := range runes {
		replacement, confusable := confusables[r]
		if !confusable {
			out[i] = r
			continue
		}

		prevDigit := i > 0 && unicode.IsDigit(runes[i-1])
		nextDigit := i+1 < len(runes) && unicode.IsDigit(runes[i+1])

		if prevDigit || nextDigit {
			out[i] = replacement
		} else {
			out[i] = r
		}
	}

	return string(out)
}

// currencyRunes are symbols stripped from numeric-looking text before parsing.
const currencyRunes = "₹$€£¥"

// ParseNumeric attempts to parse s as a monetary or quantity value,
// tolerating a leading currency symbol and thousands separators.
func ParseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(currencyRunes, r), r == ',':
			continue
		default:
			b.WriteRune(r)
		}
	}

	stripped := b.String()
	if stripped == "" || !validNumericShape(stripped) {
		return 0, false
	}

	v, err := strconv.ParseFloat(stripped, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// validNumericShape accepts digit strings with at most one decimal point
// and an optional leading sign.
func validNumericShape(s string) bool {
	dots := 0
	digits := 0

	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.':
			dots++
		case r == '-' && i == 0:
		default:
			return false
		}
	}

	return digits > 0 && dots <= 1
}

// formatNumericText re-renders a numeric token's cleaned text without
// currency symbols or separators so repeated normalization is stable.
func formatNumericText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(currencyRunes, r) || r == ',' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
