package match

import (
	"sort"
	"strings"
	"unicode"
)

// Similarity computes a normalized string similarity in [0,1] between
// two product names. Both inputs are case- and whitespace-insensitive,
// and word reordering is tolerated by also comparing the names with
// their words sorted. Similarity(x, x) == 1 for any non-empty x, and
// the function is symmetric.
func Similarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	direct := levenshteinSimilarity(na, nb)
	reordered := levenshteinSimilarity(sortWords(na), sortWords(nb))

	return max(direct, reordered)
}

// normalizeName lowercases, strips non-alphanumeric characters, and
// collapses whitespace.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func sortWords(s string) string {
	words := strings.Fields(s)
	sort.Strings(words)
	return strings.Join(words, " ")
}

// levenshteinSimilarity converts edit distance to a [0,1] score scaled
// by the longer input's length.
func levenshteinSimilarity(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with a two-row dynamic program.
func levenshtein(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
