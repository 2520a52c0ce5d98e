package tools

import "strings"

// fuzzyMatch reports whether query matches target or one of its dash, underscore
// or space separated words within a small edit distance.
func fuzzyMatch(query, target string) bool {
	if query == "" {
		return true
	}

	queryLower := strings.ToLower(query)
	targetLower := strings.ToLower(target)

	// Exact substring match (fast path)
	if strings.Contains(targetLower, queryLower) {
		return true
	}

	// Calculate allowed edit distance based on query length
	// Shorter queries get stricter matching
	maxDistance := len(queryLower) / 3
	if maxDistance < 1 {
		maxDistance = 1
	}
	if maxDistance > 3 {
		maxDistance = 3
	}

	words := strings.FieldsFunc(targetLower, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	})

	for _, word := range words {
		if levenshteinDistance(queryLower, word) <= maxDistance {
			return true
		}
	}

	return false
}

// levenshteinDistance returns the number of single-byte edits between s1 and s2.
func levenshteinDistance(s1, s2 string) int {
	len1, len2 := len(s1), len(s2)

	// Two rolling rows of the edit matrix.
	prev := make([]int, len2+1)
	curr := make([]int, len2+1)
	for j := 0; j <= len2; j++ {
		prev[j] = j
	}

	for i := 1; i <= len1; i++ {
		curr[0] = i
		for j := 1; j <= len2; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len2]
}
