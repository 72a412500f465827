// Package counting turns article text into word counts.
package counting

import (
	"strings"
	"unicode"

	"github.com/okian/msci/internal/domain/types"
)

// keep reports whether r survives token cleanup: word characters plus
// hyphen, slash and apostrophe.
func keep(r rune) bool {
	switch r {
	case '_', '-', '/', '\'':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Clean strips every rune that is not part of a word.
func Clean(token string) string {
	return strings.Map(func(r rune) rune {
		if keep(r) {
			return r
		}
		return -1
	}, token)
}

// Tokenize splits text on Unicode whitespace and cleans each token.
// Tokens that become empty are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	out := fields[:0]
	for _, f := range fields {
		if w := Clean(f); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Count tokenizes text and counts each word. Words are case-sensitive.
func Count(text string) types.WordCounts {
	counts := make(types.WordCounts)
	for _, w := range Tokenize(text) {
		counts[w]++
	}
	return counts
}
