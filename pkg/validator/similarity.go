package validator

import "strings"

// NameMatchThreshold is the minimum similarity for two names to be treated as the same person
const NameMatchThreshold = 0.70

// NormalizeName lower-cases and collapses runs of whitespace
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity returns (maxLen - distance) / maxLen over the normalized names.
// Two empty names are identical.
func Similarity(a, b string) float64 {
	ra := []rune(NormalizeName(a))
	rb := []rune(NormalizeName(b))

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}

	return float64(maxLen-levenshtein(ra, rb)) / float64(maxLen)
}

// NamesMatch accepts names whose similarity reaches the threshold or where one contains the other
func NamesMatch(a, b string) (bool, float64) {
	score := Similarity(a, b)
	if score >= NameMatchThreshold {
		return true, score
	}

	na, nb := NormalizeName(a), NormalizeName(b)
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return true, score
	}
	return false, score
}

// levenshtein computes the edit distance with a two-row table
func levenshtein(a, b []rune) int {
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
