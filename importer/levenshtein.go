package importer

func levenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
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
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = min(
				prev[j]+1,   // deletion
				curr[j-1]+1, // insertion
				prev[j-1]+1, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// similarity is 1 for equal strings and falls toward 0 as the edit
// distance approaches the longer length.
func similarity(s1, s2 string) float64 {
	longest := max(len([]rune(s1)), len([]rune(s2)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(s1, s2))/float64(longest)
}
