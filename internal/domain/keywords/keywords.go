// Package keywords narrows word counts down to candidate keywords.
package keywords

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/msci/internal/domain/types"
)

// ErrPercentileRange is returned for percentiles outside [0, 100].
var ErrPercentileRange = errors.New("percentile must be between 0 and 100")

// Filter removes every word in ignore from words, in place.
func Filter(words types.WordCounts, ignore []string) types.WordCounts {
	for _, w := range ignore {
		delete(words, w)
	}
	return words
}

// Percentile returns the p-th percentile of values using linear
// interpolation between the closest ranks. values is not modified.
func Percentile(values []int, p float64) (float64, error) {
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("%w: got %v", ErrPercentileRange, p)
	}
	if len(values) == 0 {
		return 0, errors.New("percentile of empty set")
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return float64(sorted[lo]), nil
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[hi])-float64(sorted[lo]))*frac, nil
}

// BelowPercentile keeps the words whose count is strictly below the p-th
// percentile of all counts. An empty input yields an empty result.
func BelowPercentile(words types.WordCounts, p float64) (types.WordCounts, error) {
	if len(words) == 0 {
		if p < 0 || p > 100 || math.IsNaN(p) {
			return nil, fmt.Errorf("%w: got %v", ErrPercentileRange, p)
		}
		return types.WordCounts{}, nil
	}
	counts := make([]int, 0, len(words))
	for _, n := range words {
		counts = append(counts, n)
	}
	threshold, err := Percentile(counts, p)
	if err != nil {
		return nil, err
	}
	out := make(types.WordCounts)
	for w, n := range words {
		if float64(n) < threshold {
			out[w] = n
		}
	}
	return out, nil
}
