// Package fuzzy does typo-tolerant matching of short search queries.
package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// LevenshteinDistance counts the single-rune edits needed to turn s1 into
// s2 after both are normalized.
func LevenshteinDistance(s1, s2 string) int {
	return distance([]rune(Normalize(s1)), []rune(Normalize(s2)))
}

func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
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

// Threshold is the edit distance tolerated for a query of this length.
func Threshold(query string) int {
	n := len([]rune(Normalize(query)))
	switch {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	default:
		return 2
	}
}

// Match reports whether query matches text: as a substring, as a prefix of
// a word, or within threshold edits of a word.
func Match(query, text string, threshold int) bool {
	q := Normalize(query)
	t := Normalize(text)
	if q == "" {
		return true
	}
	if strings.Contains(t, q) {
		return true
	}

	qr := []rune(q)
	for _, word := range strings.Fields(t) {
		if strings.HasPrefix(word, q) || distance(qr, []rune(word)) <= threshold {
			return true
		}
	}
	return false
}

// MatchAny reports whether query matches any of the fields, using the
// tolerance for the query's length.
func MatchAny(query string, fields ...string) bool {
	threshold := Threshold(query)
	for _, field := range fields {
		if field != "" && Match(query, field, threshold) {
			return true
		}
	}
	return false
}

// Normalize lowercases s, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r == 'đ' {
			r = 'd'
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
