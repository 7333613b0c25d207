package dedupe

// withinDistance reports whether the Levenshtein distance between a and b
// is at most maxDist. The DP table is computed row by row and aborts as
// soon as a row's minimum exceeds the bound, which keeps the n² scan
// cheap for the common all-different case.
func withinDistance(a, b string, maxDist int) bool {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la-lb > maxDist || lb-la > maxDist {
		return false
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d := prev[j-1] + cost // substitution
			if v := prev[j] + 1; v < d { // deletion
				d = v
			}
			if v := cur[j-1] + 1; v < d { // insertion
				d = v
			}
			cur[j] = d
			if d < rowMin {
				rowMin = d
			}
		}
		if rowMin > maxDist {
			return false
		}
		prev, cur = cur, prev
	}
	return prev[lb] <= maxDist
}
