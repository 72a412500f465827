// Package types contains common types used across the application
package types

// WordCounts maps a word to its number of occurrences.
type WordCounts map[string]int

// Merge adds every count in other to w.
func (w WordCounts) Merge(other WordCounts) {
	for word, n := range other {
		w[word] += n
	}
}

// Clone returns an independent copy. A nil receiver yields an empty map.
func (w WordCounts) Clone() WordCounts {
	out := make(WordCounts, len(w))
	for word, n := range w {
		out[word] = n
	}
	return out
}

// Total returns the sum of all counts.
func (w WordCounts) Total() int {
	total := 0
	for _, n := range w {
		total += n
	}
	return total
}
