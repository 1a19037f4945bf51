package store

import "math"

// selectMMR greedily picks k candidate indices maximizing
// lambda*relevance - (1-lambda)*max-similarity-to-selected.
// rel holds relevance per candidate; sim reports pairwise candidate
// similarity. Ties resolve to the lowest index, keeping selection stable.
func selectMMR(rel []float64, sim func(i, j int) float64, k int, lambda float64) []int {
	n := len(rel)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	selected := make([]int, 0, k)
	used := make([]bool, n)

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			redundancy := 0.0
			for _, j := range selected {
				if s := sim(i, j); s > redundancy {
					redundancy = s
				}
			}
			score := lambda*rel[i] - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		selected = append(selected, best)
	}

	return selected
}

// cosine returns the cosine similarity of two vectors, 0 for mismatched or
// zero-length input.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
