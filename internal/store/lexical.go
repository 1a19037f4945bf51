package store

import "strings"

// tokenSet lower-cases text and splits it into alphanumeric tokens.
func tokenSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		isAlpha := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		return !isAlpha && !isDigit
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// overlapScore returns the fraction of query tokens present in the document
// token set. Ranking by this fraction is identical to ranking by raw overlap
// count for a fixed query.
func overlapScore(queryTokens, docTokens map[string]struct{}) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	matched := 0
	for tok := range queryTokens {
		if _, ok := docTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// jaccard returns the Jaccard similarity of two token sets, used as the
// pairwise redundancy measure for MMR in lexical mode.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// matchesWhere reports whether every key/value pair of where equals the
// flattened metadata.
func matchesWhere(flat map[string]string, where map[string]string) bool {
	for k, v := range where {
		if flat[k] != v {
			return false
		}
	}
	return true
}
