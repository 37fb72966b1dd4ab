package textutil

// EditRatio returns 1 - levenshtein(a,b)/max(len(a),len(b)) over runes.
func EditRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

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

// TitleSimilarity compares two titles in normalized form, taking the better
// of the edit ratio and the token cosine. The result is in [0,1].
func TitleSimilarity(a, b string) float64 {
	na, nb := Key(a), Key(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	edit := EditRatio(na, nb)
	cosine := Cosine(NewTokenVector(na), NewTokenVector(nb))
	if cosine > edit {
		return cosine
	}
	return edit
}
